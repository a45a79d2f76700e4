package tty

import "github.com/dshills/ttyld/internal/integration/transport"

// HardwareSignal records a change of one modem input line (DCD, CTS, DSR or
// RI) of the endpoint c was opened on. It takes no lock and may be called
// from a driver's interrupt path.
func HardwareSignal(c *Cookie, line transport.Signals, set bool) error {
	switch line {
	case transport.DCD, transport.CTS, transport.DSR, transport.RI:
	default:
		return newOpError("hardware signal", c.tty, ErrBadValue)
	}

	if set {
		c.tty.hardwareBits.Or(uint32(line))
	} else {
		c.tty.hardwareBits.And(^uint32(line))
	}
	return nil
}

// HardwareSignals returns the modem input lines last reported through
// HardwareSignal.
func (e *Endpoint) HardwareSignals() transport.Signals {
	return transport.Signals(e.hardwareBits.Load())
}
