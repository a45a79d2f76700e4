//go:build linux

package termios

import "golang.org/x/sys/unix"

// ToUnix converts t to the kernel's termios layout.
func (t *Termios) ToUnix() *unix.Termios {
	u := &unix.Termios{
		Iflag:  t.Iflag,
		Oflag:  t.Oflag,
		Cflag:  t.Cflag,
		Lflag:  t.Lflag,
		Line:   t.Line,
		Ispeed: t.Ispeed,
		Ospeed: t.Ospeed,
	}
	copy(u.Cc[:], t.CC[:])
	return u
}

// FromUnix converts a kernel termios into a Termios.
func FromUnix(u *unix.Termios) Termios {
	t := Termios{
		Iflag:  u.Iflag,
		Oflag:  u.Oflag,
		Cflag:  u.Cflag,
		Lflag:  u.Lflag,
		Line:   u.Line,
		Ispeed: u.Ispeed,
		Ospeed: u.Ospeed,
	}
	copy(t.CC[:], u.Cc[:])
	return t
}

// ToUnix converts w to the kernel's winsize layout.
func (w Winsize) ToUnix() *unix.Winsize {
	return &unix.Winsize{Row: w.Rows, Col: w.Cols, Xpixel: w.Xpixel, Ypixel: w.Ypixel}
}
