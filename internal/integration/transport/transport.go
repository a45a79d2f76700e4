// Package transport defines the capability interface a terminal line
// discipline uses to reach the physical (or virtual) line underneath it, and
// provides a virtual implementation for pseudo-terminals and a serial
// implementation for real character devices.
package transport

import (
	"sync"

	"github.com/dshills/ttyld/internal/tty/termios"
)

// Signals is a bit mask of modem line states.
type Signals uint32

// Modem line bits.
const (
	DCD Signals = 1 << iota // data carrier detect
	CTS                     // clear to send
	DSR                     // data set ready
	RI                      // ring indicator
	DTR                     // data terminal ready
	RTS                     // request to send
)

// String returns a compact listing of the set bits.
func (s Signals) String() string {
	names := []string{"DCD", "CTS", "DSR", "RI", "DTR", "RTS"}
	out := ""
	for i, name := range names {
		if s&(1<<i) != 0 {
			if out != "" {
				out += "|"
			}
			out += name
		}
	}
	if out == "" {
		return "none"
	}
	return out
}

// FlushQueue selects the queue(s) discarded by Flush.
type FlushQueue int

const (
	FlushInput FlushQueue = iota
	FlushOutput
	FlushBoth
)

// Transport is implemented by the driver below the line discipline. Calls
// are synchronous and must not block for long; they are made without the
// terminal lock held.
type Transport interface {
	// ApplyTermios pushes new line settings (speed, parity, character size)
	// down to the line.
	ApplyTermios(t *termios.Termios) error

	// SetDTR raises or drops data terminal ready.
	SetDTR(on bool) error

	// SetRTS raises or drops request to send.
	SetRTS(on bool) error

	// SetBreak starts or stops sending a break condition.
	SetBreak(on bool) error

	// Flush discards data queued in the driver.
	Flush(q FlushQueue) error

	// GetSignals returns the current modem line state.
	GetSignals() (Signals, error)
}

// Virtual is the transport of a pseudo-terminal: there is no line, so it
// only records the requested state.
type Virtual struct {
	mu      sync.Mutex
	termios termios.Termios
	signals Signals
	breakOn bool
	flushes int
	breaks  int
}

// NewVirtual returns a virtual transport with DTR and RTS raised and carrier
// present.
func NewVirtual() *Virtual {
	return &Virtual{termios: termios.Default(), signals: DTR | RTS | DCD | CTS | DSR}
}

var _ Transport = (*Virtual)(nil)

// ApplyTermios records t.
func (v *Virtual) ApplyTermios(t *termios.Termios) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.termios = *t
	return nil
}

// Termios returns the last settings applied.
func (v *Virtual) Termios() termios.Termios {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.termios
}

func (v *Virtual) setBit(bit Signals, on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if on {
		v.signals |= bit
	} else {
		v.signals &^= bit
	}
}

// SetDTR records the DTR state.
func (v *Virtual) SetDTR(on bool) error {
	v.setBit(DTR, on)
	return nil
}

// SetRTS records the RTS state.
func (v *Virtual) SetRTS(on bool) error {
	v.setBit(RTS, on)
	return nil
}

// SetBreak records the break state.
func (v *Virtual) SetBreak(on bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if on && !v.breakOn {
		v.breaks++
	}
	v.breakOn = on
	return nil
}

// Breaking reports whether a break is in progress and how many were started.
func (v *Virtual) Breaking() (on bool, count int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.breakOn, v.breaks
}

// Flush counts the request.
func (v *Virtual) Flush(FlushQueue) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.flushes++
	return nil
}

// Flushes returns how many flushes were requested.
func (v *Virtual) Flushes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.flushes
}

// GetSignals returns the recorded line state.
func (v *Virtual) GetSignals() (Signals, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.signals, nil
}

// SetSignals overrides the line state, as a modem would.
func (v *Virtual) SetSignals(s Signals) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.signals = s
}
