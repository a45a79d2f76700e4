//go:build linux

package transport

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/dshills/ttyld/internal/tty/termios"
)

// Serial drives a real terminal device through ioctls.
type Serial struct {
	mu     sync.Mutex
	file   *os.File
	closed bool
}

var _ Transport = (*Serial)(nil)

// OpenSerial opens the device at path without making it the controlling
// terminal.
func OpenSerial(path string) (*Serial, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return NewSerial(os.NewFile(uintptr(fd), path)), nil
}

// NewSerial wraps an already open terminal device. The transport takes
// ownership of f.
func NewSerial(f *os.File) *Serial {
	return &Serial{file: f}
}

// File returns the underlying device.
func (s *Serial) File() *os.File {
	return s.file
}

func (s *Serial) fd() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return -1, ErrClosed
	}
	return int(s.file.Fd()), nil
}

// ApplyTermios sets the device attributes immediately.
func (s *Serial) ApplyTermios(t *termios.Termios) error {
	fd, err := s.fd()
	if err != nil {
		return err
	}
	return errors.Wrap(unix.IoctlSetTermios(fd, unix.TCSETS, t.ToUnix()), "TCSETS")
}

// Termios reads the device attributes back.
func (s *Serial) Termios() (termios.Termios, error) {
	fd, err := s.fd()
	if err != nil {
		return termios.Termios{}, err
	}
	u, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return termios.Termios{}, errors.Wrap(err, "TCGETS")
	}
	return termios.FromUnix(u), nil
}

func (s *Serial) modemBit(bit int, on bool) error {
	fd, err := s.fd()
	if err != nil {
		return err
	}
	req := uint(unix.TIOCMBIC)
	if on {
		req = unix.TIOCMBIS
	}
	return errors.Wrap(unix.IoctlSetPointerInt(fd, req, bit), "TIOCMBIS/TIOCMBIC")
}

// SetDTR raises or drops DTR.
func (s *Serial) SetDTR(on bool) error {
	return s.modemBit(unix.TIOCM_DTR, on)
}

// SetRTS raises or drops RTS.
func (s *Serial) SetRTS(on bool) error {
	return s.modemBit(unix.TIOCM_RTS, on)
}

// SetBreak starts or stops a break condition.
func (s *Serial) SetBreak(on bool) error {
	fd, err := s.fd()
	if err != nil {
		return err
	}
	req := uint(unix.TIOCCBRK)
	if on {
		req = unix.TIOCSBRK
	}
	return errors.Wrap(unix.IoctlSetInt(fd, req, 0), "TIOCSBRK/TIOCCBRK")
}

// Flush discards queued data in the device driver.
func (s *Serial) Flush(q FlushQueue) error {
	fd, err := s.fd()
	if err != nil {
		return err
	}
	sel := unix.TCIOFLUSH
	switch q {
	case FlushInput:
		sel = unix.TCIFLUSH
	case FlushOutput:
		sel = unix.TCOFLUSH
	}
	return errors.Wrap(unix.IoctlSetInt(fd, unix.TCFLSH, sel), "TCFLSH")
}

// GetSignals reads the modem lines.
func (s *Serial) GetSignals() (Signals, error) {
	fd, err := s.fd()
	if err != nil {
		return 0, err
	}
	bits, err := unix.IoctlGetInt(fd, unix.TIOCMGET)
	if err != nil {
		return 0, errors.Wrap(err, "TIOCMGET")
	}
	var sig Signals
	for _, m := range []struct {
		bit int
		sig Signals
	}{
		{unix.TIOCM_CAR, DCD},
		{unix.TIOCM_CTS, CTS},
		{unix.TIOCM_DSR, DSR},
		{unix.TIOCM_RNG, RI},
		{unix.TIOCM_DTR, DTR},
		{unix.TIOCM_RTS, RTS},
	} {
		if bits&m.bit != 0 {
			sig |= m.sig
		}
	}
	return sig, nil
}

// Close releases the device.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}
