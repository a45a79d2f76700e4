package termios

import (
	"fmt"
	"sort"
	"strings"
)

// FlagSet selects one of the four termios flag words.
type FlagSet int

const (
	InputFlags FlagSet = iota
	OutputFlags
	ControlFlags
	LocalFlags
)

// String returns the stty-style name of the flag set.
func (s FlagSet) String() string {
	switch s {
	case InputFlags:
		return "iflag"
	case OutputFlags:
		return "oflag"
	case ControlFlags:
		return "cflag"
	case LocalFlags:
		return "lflag"
	default:
		return fmt.Sprintf("flagset(%d)", int(s))
	}
}

var flagNames = map[FlagSet]map[string]uint32{
	InputFlags: {
		"IGNBRK": IGNBRK, "BRKINT": BRKINT, "IGNPAR": IGNPAR, "PARMRK": PARMRK,
		"INPCK": INPCK, "ISTRIP": ISTRIP, "INLCR": INLCR, "IGNCR": IGNCR,
		"ICRNL": ICRNL, "IUCLC": IUCLC, "IXON": IXON, "IXANY": IXANY,
		"IXOFF": IXOFF, "IMAXBEL": IMAXBEL, "IUTF8": IUTF8,
	},
	OutputFlags: {
		"OPOST": OPOST, "OLCUC": OLCUC, "ONLCR": ONLCR, "OCRNL": OCRNL,
		"ONOCR": ONOCR, "ONLRET": ONLRET, "OFILL": OFILL, "OFDEL": OFDEL,
	},
	ControlFlags: {
		"CS5": CS5, "CS6": CS6, "CS7": CS7, "CS8": CS8, "CSTOPB": CSTOPB,
		"CREAD": CREAD, "PARENB": PARENB, "PARODD": PARODD, "HUPCL": HUPCL,
		"CLOCAL": CLOCAL, "B9600": B9600, "B19200": B19200, "B38400": B38400,
	},
	LocalFlags: {
		"ISIG": ISIG, "ICANON": ICANON, "XCASE": XCASE, "ECHO": ECHO,
		"ECHOE": ECHOE, "ECHOK": ECHOK, "ECHONL": ECHONL, "NOFLSH": NOFLSH,
		"TOSTOP": TOSTOP, "ECHOCTL": ECHOCTL, "ECHOPRT": ECHOPRT,
		"ECHOKE": ECHOKE, "FLUSHO": FLUSHO, "PENDIN": PENDIN, "IEXTEN": IEXTEN,
	},
}

// ControlCharNames maps lower-case stty names to control character indices.
var ControlCharNames = map[string]int{
	"intr": VINTR, "quit": VQUIT, "erase": VERASE, "kill": VKILL,
	"eof": VEOF, "time": VTIME, "min": VMIN, "swtc": VSWTC,
	"start": VSTART, "stop": VSTOP, "susp": VSUSP, "eol": VEOL,
	"reprint": VREPRINT, "discard": VDISCARD, "werase": VWERASE,
	"lnext": VLNEXT, "eol2": VEOL2,
}

// ParseFlags ORs together the named flags of a flag set. Names are matched
// case-insensitively.
func ParseFlags(set FlagSet, names []string) (uint32, error) {
	table, ok := flagNames[set]
	if !ok {
		return 0, fmt.Errorf("unknown flag set %v", set)
	}
	var v uint32
	for _, name := range names {
		bit, ok := table[strings.ToUpper(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("unknown %s flag %q", set, name)
		}
		v |= bit
	}
	return v, nil
}

// FlagNames returns the sorted names of the single-bit flags set in v.
// Multi-bit fields (character size, baud rate) are omitted.
func FlagNames(set FlagSet, v uint32) []string {
	var names []string
	for name, bit := range flagNames[set] {
		if bit == 0 || bit&(bit-1) != 0 {
			continue
		}
		if set == ControlFlags && (bit&CSIZE != 0 || bit&CBAUD != 0) {
			continue
		}
		if v&bit != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Flags returns the flag word selected by set.
func (t *Termios) Flags(set FlagSet) uint32 {
	switch set {
	case InputFlags:
		return t.Iflag
	case OutputFlags:
		return t.Oflag
	case ControlFlags:
		return t.Cflag
	default:
		return t.Lflag
	}
}

// SetFlags replaces the flag word selected by set.
func (t *Termios) SetFlags(set FlagSet, v uint32) {
	switch set {
	case InputFlags:
		t.Iflag = v
	case OutputFlags:
		t.Oflag = v
	case ControlFlags:
		t.Cflag = v
	default:
		t.Lflag = v
	}
}

// String renders t in a compact stty-like form.
func (t Termios) String() string {
	var b strings.Builder
	for _, set := range []FlagSet{InputFlags, OutputFlags, ControlFlags, LocalFlags} {
		fmt.Fprintf(&b, "%s=%s ", set, strings.Join(FlagNames(set, t.Flags(set)), "|"))
	}
	fmt.Fprintf(&b, "min=%d time=%d", t.CC[VMIN], t.CC[VTIME])
	return b.String()
}
