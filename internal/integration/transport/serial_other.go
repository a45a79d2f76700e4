//go:build !linux

package transport

import (
	"os"

	"github.com/dshills/ttyld/internal/tty/termios"
)

// Serial is unavailable on this platform.
type Serial struct{}

var _ Transport = (*Serial)(nil)

// OpenSerial always fails with ErrUnsupported.
func OpenSerial(string) (*Serial, error) { return nil, ErrUnsupported }

// NewSerial returns a transport whose operations fail with ErrUnsupported.
func NewSerial(*os.File) *Serial { return &Serial{} }

func (*Serial) ApplyTermios(*termios.Termios) error { return ErrUnsupported }
func (*Serial) SetDTR(bool) error                    { return ErrUnsupported }
func (*Serial) SetRTS(bool) error                    { return ErrUnsupported }
func (*Serial) SetBreak(bool) error                  { return ErrUnsupported }
func (*Serial) Flush(FlushQueue) error               { return ErrUnsupported }
func (*Serial) GetSignals() (Signals, error)         { return 0, ErrUnsupported }
func (*Serial) Close() error                         { return nil }
