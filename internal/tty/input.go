package tty

import (
	"golang.org/x/sys/unix"

	"github.com/dshills/ttyld/internal/tty/termios"
)

// inputPutcLocked stores one processed input byte in e's buffer, acting on
// signal and line editing characters on the way.
func (e *Endpoint) inputPutcLocked(c byte) {
	cfg := e.config
	t := &cfg.termios

	if t.LEnabled(termios.ISIG) {
		var sig unix.Signal
		switch {
		case t.Is(termios.VINTR, c):
			sig = unix.SIGINT
		case t.Is(termios.VQUIT, c):
			sig = unix.SIGQUIT
		case t.Is(termios.VSUSP, c):
			sig = unix.SIGTSTP
		}
		if sig != 0 {
			if !t.LEnabled(termios.NOFLSH) {
				e.clearLocked()
			}
			cfg.signalGroupLocked(cfg.pgrpID, sig)
			return
		}
	}

	if t.LEnabled(termios.ICANON) {
		switch {
		case t.Is(termios.VERASE, c):
			e.eraseLocked()
			return
		case t.Is(termios.VKILL, c):
			for e.eraseLocked() {
			}
			return
		case t.Is(termios.VEOF, c):
			// stored so that the reader can find the end of the line
			e.pendingEOF++
		}
	}

	e.buffer.Putc(c)
}

// eraseLocked removes the last buffered byte unless it ends a line. It
// reports whether a byte was removed.
func (e *Endpoint) eraseLocked() bool {
	last, ok := e.buffer.TailGetc()
	if !ok {
		return false
	}
	if e.config.termios.IsLineBoundary(last) {
		e.buffer.Putc(last)
		return false
	}
	return true
}
