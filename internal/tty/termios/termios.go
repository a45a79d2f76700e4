// Package termios defines the POSIX terminal attribute structure used by the
// line discipline, together with the Linux flag values, control character
// indices and the default settings a freshly allocated pair starts with.
package termios

// NumControlCharacters is the size of the control character table.
const NumControlCharacters = 19

// Disabled marks a control character slot as unused.
const Disabled = 0

// Termios is the terminal attribute block shared by both ends of a pair.
type Termios struct {
	Iflag  uint32
	Oflag  uint32
	Cflag  uint32
	Lflag  uint32
	Line   uint8
	CC     [NumControlCharacters]uint8
	Ispeed uint32
	Ospeed uint32
}

// Winsize is the terminal window size.
type Winsize struct {
	Rows   uint16
	Cols   uint16
	Xpixel uint16
	Ypixel uint16
}

// IEnabled reports whether all bits of flag are set in the input flags.
func (t *Termios) IEnabled(flag uint32) bool {
	return t.Iflag&flag == flag
}

// OEnabled reports whether all bits of flag are set in the output flags.
func (t *Termios) OEnabled(flag uint32) bool {
	return t.Oflag&flag == flag
}

// CEnabled reports whether all bits of flag are set in the control flags.
func (t *Termios) CEnabled(flag uint32) bool {
	return t.Cflag&flag == flag
}

// LEnabled reports whether all bits of flag are set in the local flags.
func (t *Termios) LEnabled(flag uint32) bool {
	return t.Lflag&flag == flag
}

// Canonical reports whether canonical (line) input processing is on.
func (t *Termios) Canonical() bool {
	return t.Lflag&ICANON != 0
}

// Is reports whether c is the control character at index idx. Disabled
// slots never match.
func (t *Termios) Is(idx int, c byte) bool {
	cc := t.CC[idx]
	return cc != Disabled && cc == c
}

// IsEOF reports whether c is the EOF character.
func (t *Termios) IsEOF(c byte) bool {
	return t.Is(VEOF, c)
}

// IsLineBoundary reports whether c ends a canonical line: newline, carriage
// return, EOL or EOF.
func (t *Termios) IsLineBoundary(c byte) bool {
	switch {
	case c == '\n', c == '\r':
		return true
	case t.Is(VEOF, c), t.Is(VEOL, c):
		return true
	}
	return false
}

// Input flags.
const (
	IGNBRK  = 0000001
	BRKINT  = 0000002
	IGNPAR  = 0000004
	PARMRK  = 0000010
	INPCK   = 0000020
	ISTRIP  = 0000040
	INLCR   = 0000100
	IGNCR   = 0000200
	ICRNL   = 0000400
	IUCLC   = 0001000
	IXON    = 0002000
	IXANY   = 0004000
	IXOFF   = 0010000
	IMAXBEL = 0020000
	IUTF8   = 0040000
)

// Output flags.
const (
	OPOST  = 0000001
	OLCUC  = 0000002
	ONLCR  = 0000004
	OCRNL  = 0000010
	ONOCR  = 0000020
	ONLRET = 0000040
	OFILL  = 0000100
	OFDEL  = 0000200
)

// Control flags.
const (
	CBAUD  = 0010017
	B9600  = 0000015
	B19200 = 0000016
	B38400 = 0000017
	CSIZE  = 0000060
	CS5    = 0000000
	CS6    = 0000020
	CS7    = 0000040
	CS8    = 0000060
	CSTOPB = 0000100
	CREAD  = 0000200
	PARENB = 0000400
	PARODD = 0001000
	HUPCL  = 0002000
	CLOCAL = 0004000
)

// Local flags.
const (
	ISIG    = 0000001
	ICANON  = 0000002
	XCASE   = 0000004
	ECHO    = 0000010
	ECHOE   = 0000020
	ECHOK   = 0000040
	ECHONL  = 0000100
	NOFLSH  = 0000200
	TOSTOP  = 0000400
	ECHOCTL = 0001000
	ECHOPRT = 0002000
	ECHOKE  = 0004000
	FLUSHO  = 0010000
	PENDIN  = 0040000
	IEXTEN  = 0100000
)

// Control character indices.
const (
	VINTR    = 0
	VQUIT    = 1
	VERASE   = 2
	VKILL    = 3
	VEOF     = 4
	VTIME    = 5
	VMIN     = 6
	VSWTC    = 7
	VSTART   = 8
	VSTOP    = 9
	VSUSP    = 10
	VEOL     = 11
	VREPRINT = 12
	VDISCARD = 13
	VWERASE  = 14
	VLNEXT   = 15
	VEOL2    = 16
)

// Control returns the control character for a letter, e.g. Control('C')
// is ^C.
func Control(c byte) uint8 {
	return c - 'A' + 1
}

// DefaultControlCharacters is the control character table of a new pair.
var DefaultControlCharacters = [NumControlCharacters]uint8{
	VINTR:    Control('C'),
	VQUIT:    Control('\\'),
	VERASE:   0x7f,
	VKILL:    Control('U'),
	VEOF:     Control('D'),
	VTIME:    0,
	VMIN:     1,
	VSTART:   Control('Q'),
	VSTOP:    Control('S'),
	VSUSP:    Control('Z'),
	VREPRINT: Control('R'),
	VDISCARD: Control('O'),
	VWERASE:  Control('W'),
	VLNEXT:   Control('V'),
}

// Default returns the settings a new pair starts with: canonical input with
// echo and signals, CR to NL on input, NL to CR-NL on output.
func Default() Termios {
	return Termios{
		Iflag:  ICRNL,
		Oflag:  OPOST | ONLCR,
		Cflag:  B38400 | CS8 | CREAD | HUPCL,
		Lflag:  ISIG | ICANON | ECHO,
		CC:     DefaultControlCharacters,
		Ispeed: 38400,
		Ospeed: 38400,
	}
}

// DefaultWinsize is the window size of a new pair.
var DefaultWinsize = Winsize{Rows: 24, Cols: 80}

// MakeRaw returns a copy of t with input and output processing, echo and
// signal generation turned off, reading byte by byte.
func MakeRaw(t Termios) Termios {
	t.Iflag &^= IGNBRK | BRKINT | PARMRK | ISTRIP | INLCR | IGNCR | ICRNL | IXON
	t.Oflag &^= OPOST
	t.Lflag &^= ECHO | ECHONL | ICANON | ISIG | IEXTEN
	t.Cflag &^= CSIZE | PARENB
	t.Cflag |= CS8
	t.CC[VMIN] = 1
	t.CC[VTIME] = 0
	return t
}
