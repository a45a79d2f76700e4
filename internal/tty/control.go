package tty

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dshills/ttyld/internal/integration/transport"
	"github.com/dshills/ttyld/internal/tty/termios"
)

// ControlOp selects a Control operation.
type ControlOp int

// Control operations and the argument each expects.
const (
	TCGETA     ControlOp = iota + 1 // *termios.Termios (out)
	TCSETA                          // *termios.Termios
	TCSETAW                         // *termios.Termios; output is never queued, same as TCSETA
	TCSETAF                         // *termios.Termios; discards pending input first
	TIOCGPGRP                       // *int (out)
	TIOCSPGRP                       // *int
	TIOCGSID                        // *int (out)
	TIOCSCTTY                       // nil
	TIOCNOTTY                       // nil
	TIOCGWINSZ                      // *termios.Winsize (out)
	TIOCSWINSZ                      // *termios.Winsize
	FIONBIO                         // *bool
	FIONREAD                        // *int (out)
	TIOCOUTQ                        // *int (out)
	TIOCMGET                        // *transport.Signals (out)
	TIOCMSET                        // *transport.Signals
	TIOCMBIS                        // *transport.Signals
	TIOCMBIC                        // *transport.Signals
	TIOCSBRK                        // nil
	TIOCCBRK                        // nil
	TCSBRK                          // *time.Duration or nil
	TCFLSH                          // *transport.FlushQueue
	TIOCEXCL                        // nil
	TIOCNXCL                        // nil
)

var controlOpNames = map[ControlOp]string{
	TCGETA:     "TCGETA",
	TCSETA:     "TCSETA",
	TCSETAW:    "TCSETAW",
	TCSETAF:    "TCSETAF",
	TIOCGPGRP:  "TIOCGPGRP",
	TIOCSPGRP:  "TIOCSPGRP",
	TIOCGSID:   "TIOCGSID",
	TIOCSCTTY:  "TIOCSCTTY",
	TIOCNOTTY:  "TIOCNOTTY",
	TIOCGWINSZ: "TIOCGWINSZ",
	TIOCSWINSZ: "TIOCSWINSZ",
	FIONBIO:    "FIONBIO",
	FIONREAD:   "FIONREAD",
	TIOCOUTQ:   "TIOCOUTQ",
	TIOCMGET:   "TIOCMGET",
	TIOCMSET:   "TIOCMSET",
	TIOCMBIS:   "TIOCMBIS",
	TIOCMBIC:   "TIOCMBIC",
	TIOCSBRK:   "TIOCSBRK",
	TIOCCBRK:   "TIOCCBRK",
	TCSBRK:     "TCSBRK",
	TCFLSH:     "TCFLSH",
	TIOCEXCL:   "TIOCEXCL",
	TIOCNXCL:   "TIOCNXCL",
}

// String returns the conventional ioctl name.
func (op ControlOp) String() string {
	if name, ok := controlOpNames[op]; ok {
		return name
	}
	return fmt.Sprintf("ControlOp(%d)", int(op))
}

// DefaultBreakDuration is the length of a TCSBRK break without an explicit
// duration.
const DefaultBreakDuration = 250 * time.Millisecond

// Control performs op on the endpoint c was opened on. arg must have the
// type listed next to op; anything else is ErrBadValue.
func Control(ctx context.Context, c *Cookie, op ControlOp, arg any) error {
	if !c.enter() {
		return newOpError("control", c.tty, ErrFileError)
	}
	defer c.leave()

	if err := control(ctx, c, op, arg); err != nil {
		return newOpError(op.String(), c.tty, err)
	}
	return nil
}

func control(ctx context.Context, c *Cookie, op ControlOp, arg any) error {
	tty := c.tty
	cfg := tty.config

	switch op {
	case TCGETA:
		out, ok := arg.(*termios.Termios)
		if !ok || out == nil {
			return ErrBadValue
		}
		cfg.mu.Lock()
		*out = cfg.termios
		cfg.mu.Unlock()
		return nil

	case TCSETA, TCSETAW, TCSETAF:
		in, ok := arg.(*termios.Termios)
		if !ok || in == nil {
			return ErrBadValue
		}
		cfg.mu.Lock()
		if op == TCSETAF {
			tty.clearLocked()
		}
		cfg.termios = *in
		applied := cfg.termios
		// switching modes can make buffered input readable
		notifyIfAvailable(tty, tty.other, true)
		if tty.other != nil {
			notifyIfAvailable(tty.other, tty, true)
		}
		cfg.mu.Unlock()
		return tty.transport.ApplyTermios(&applied)

	case TIOCGPGRP, TIOCGSID:
		out, ok := arg.(*int)
		if !ok || out == nil {
			return ErrBadValue
		}
		cfg.mu.Lock()
		if op == TIOCGPGRP {
			*out = cfg.pgrpID
		} else {
			*out = cfg.sessionID
		}
		cfg.mu.Unlock()
		return nil

	case TIOCSPGRP:
		in, ok := arg.(*int)
		if !ok || in == nil || *in < 0 {
			return ErrBadValue
		}
		cfg.mu.Lock()
		defer cfg.mu.Unlock()
		if caller, ok := CallerFrom(ctx); ok && cfg.sessionID != 0 && caller.SID != cfg.sessionID {
			return ErrNotAllowed
		}
		cfg.pgrpID = *in
		return cfg.sessions.SetForegroundProcessGroup(tty.name, *in)

	case TIOCSCTTY:
		caller, ok := CallerFrom(ctx)
		if !ok || !caller.IsSessionLeader() {
			return ErrNotAllowed
		}
		cfg.mu.Lock()
		defer cfg.mu.Unlock()
		if cfg.sessionID != 0 && cfg.sessionID != caller.SID {
			return ErrNotAllowed
		}
		return tty.becomeControllingLocked(caller)

	case TIOCNOTTY:
		caller, ok := CallerFrom(ctx)
		if !ok {
			return ErrNotAllowed
		}
		cfg.mu.Lock()
		defer cfg.mu.Unlock()
		if cfg.sessionID == 0 || cfg.sessionID != caller.SID {
			return ErrNotAllowed
		}
		if !caller.IsSessionLeader() {
			// only the leader detaches the session
			return nil
		}
		cfg.signalGroupLocked(cfg.pgrpID, unix.SIGHUP)
		cfg.signalGroupLocked(cfg.pgrpID, unix.SIGCONT)
		cfg.sessionID = 0
		cfg.pgrpID = 0
		return cfg.sessions.SetControllingTerminal(caller.SID, "")

	case TIOCGWINSZ:
		out, ok := arg.(*termios.Winsize)
		if !ok || out == nil {
			return ErrBadValue
		}
		cfg.mu.Lock()
		*out = cfg.winsize
		cfg.mu.Unlock()
		return nil

	case TIOCSWINSZ:
		in, ok := arg.(*termios.Winsize)
		if !ok || in == nil {
			return ErrBadValue
		}
		cfg.mu.Lock()
		defer cfg.mu.Unlock()
		changed := cfg.winsize != *in
		cfg.winsize = *in
		if changed {
			cfg.signalGroupLocked(cfg.pgrpID, unix.SIGWINCH)
		}
		return nil

	case FIONBIO:
		in, ok := arg.(*bool)
		if !ok || in == nil {
			return ErrBadValue
		}
		cfg.mu.Lock()
		if *in {
			c.mode |= NonBlocking
		} else {
			c.mode &^= NonBlocking
		}
		cfg.mu.Unlock()
		return nil

	case FIONREAD, TIOCOUTQ:
		out, ok := arg.(*int)
		if !ok || out == nil {
			return ErrBadValue
		}
		cfg.mu.Lock()
		defer cfg.mu.Unlock()
		if op == FIONREAD {
			*out = tty.readableBytesLocked()
			return nil
		}
		*out = 0
		if other := c.otherTTY; other.isOpenLocked() {
			*out = other.buffer.Readable()
		}
		return nil

	case TIOCMGET:
		out, ok := arg.(*transport.Signals)
		if !ok || out == nil {
			return ErrBadValue
		}
		lines, err := tty.transport.GetSignals()
		if err != nil {
			return err
		}
		*out = lines | transport.Signals(tty.hardwareBits.Load())
		return nil

	case TIOCMSET, TIOCMBIS, TIOCMBIC:
		in, ok := arg.(*transport.Signals)
		if !ok || in == nil {
			return ErrBadValue
		}
		return setModemLines(tty.transport, op, *in)

	case TIOCSBRK, TIOCCBRK:
		return tty.transport.SetBreak(op == TIOCSBRK)

	case TCSBRK:
		d := DefaultBreakDuration
		switch v := arg.(type) {
		case nil:
		case *time.Duration:
			if v != nil && *v > 0 {
				d = *v
			}
		default:
			return ErrBadValue
		}
		return sendBreak(ctx, tty.transport, d)

	case TCFLSH:
		in, ok := arg.(*transport.FlushQueue)
		if !ok || in == nil {
			return ErrBadValue
		}
		q := *in
		if q < transport.FlushInput || q > transport.FlushBoth {
			return ErrBadValue
		}
		cfg.mu.Lock()
		if q == transport.FlushInput || q == transport.FlushBoth {
			tty.clearLocked()
			notifyIfAvailable(tty, tty.other, true)
		}
		if other := c.otherTTY; (q == transport.FlushOutput || q == transport.FlushBoth) && other.isOpenLocked() {
			other.clearLocked()
			notifyIfAvailable(other, tty, true)
		}
		cfg.mu.Unlock()
		return tty.transport.Flush(q)

	case TIOCEXCL, TIOCNXCL:
		cfg.mu.Lock()
		tty.exclusive = op == TIOCEXCL
		cfg.mu.Unlock()
		return nil
	}

	return ErrBadValue
}

// becomeControllingLocked makes tty the controlling terminal of the
// caller's session with the caller's group in the foreground.
func (e *Endpoint) becomeControllingLocked(caller Caller) error {
	cfg := e.config
	if err := cfg.sessions.SetControllingTerminal(caller.SID, e.name); err != nil {
		return err
	}
	cfg.sessionID = caller.SID
	cfg.pgrpID = caller.PGID
	return cfg.sessions.SetForegroundProcessGroup(e.name, caller.PGID)
}

func setModemLines(tr transport.Transport, op ControlOp, lines transport.Signals) error {
	for _, line := range []struct {
		bit transport.Signals
		set func(bool) error
	}{
		{transport.DTR, tr.SetDTR},
		{transport.RTS, tr.SetRTS},
	} {
		var err error
		switch {
		case op == TIOCMSET:
			err = line.set(lines&line.bit != 0)
		case lines&line.bit == 0:
			continue
		default:
			err = line.set(op == TIOCMBIS)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func sendBreak(ctx context.Context, tr transport.Transport, d time.Duration) error {
	if err := tr.SetBreak(true); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	var err error
	select {
	case <-timer.C:
	case <-ctx.Done():
		err = fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}
	if stopErr := tr.SetBreak(false); err == nil {
		err = stopErr
	}
	return err
}
