package tty

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"

	"github.com/dshills/ttyld/internal/integration/transport"
	"github.com/dshills/ttyld/internal/tty/termios"
)

func TestControlTermios(t *testing.T) {
	p := newTestPair(t)
	ctx := context.Background()

	var got termios.Termios
	if err := Control(ctx, p.sc, TCGETA, &got); err != nil {
		t.Fatalf("TCGETA: %v", err)
	}
	if diff := cmp.Diff(termios.Default(), got); diff != "" {
		t.Errorf("default termios mismatch (-want +got):\n%s", diff)
	}

	raw := termios.MakeRaw(got)
	if err := Control(ctx, p.mc, TCSETA, &raw); err != nil {
		t.Fatalf("TCSETA: %v", err)
	}
	if diff := cmp.Diff(raw, p.tr.Termios()); diff != "" {
		t.Errorf("transport did not get the new settings (-want +got):\n%s", diff)
	}
}

func TestControlSetFlushDiscardsInput(t *testing.T) {
	p := newTestPair(t)
	mustWrite(t, p.mc, "pending")

	tio := p.master.Config().Termios()
	if err := Control(context.Background(), p.sc, TCSETAF, &tio); err != nil {
		t.Fatalf("TCSETAF: %v", err)
	}
	if got := p.slave.Buffered(); got != 0 {
		t.Errorf("buffered = %d after TCSETAF", got)
	}
}

func TestControlModeSwitchWakesReader(t *testing.T) {
	p := newTestPair(t)

	mustWrite(t, p.mc, "no newline")
	ch := readAsync(context.Background(), p.sc, 64)
	waitFor(t, "reader to queue", func() bool { return p.slave.readerQueue.Len() == 1 })

	p.setTermios(t, func(tio *termios.Termios) { tio.Lflag &^= termios.ICANON })

	r := expectResult(t, ch, "read after leaving canonical mode")
	if r.err != nil || r.data != "no newline" {
		t.Errorf("read = %q, %v", r.data, r.err)
	}
}

func TestControlBadArguments(t *testing.T) {
	p := newTestPair(t)
	ctx := context.Background()

	tests := []struct {
		name string
		op   ControlOp
		arg  any
	}{
		{"TCGETA nil", TCGETA, nil},
		{"TCSETA wrong type", TCSETA, termios.Default()},
		{"TIOCGWINSZ wrong type", TIOCGWINSZ, new(int)},
		{"TIOCSPGRP negative", TIOCSPGRP, ptr(-1)},
		{"FIONBIO int", FIONBIO, ptr(1)},
		{"TCFLSH out of range", TCFLSH, ptr(transport.FlushQueue(9))},
		{"TCSBRK wrong type", TCSBRK, ptr(5)},
		{"unknown op", ControlOp(999), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Control(ctx, p.sc, tt.op, tt.arg)
			if !errors.Is(err, ErrBadValue) {
				t.Errorf("err = %v, want ErrBadValue", err)
			}
		})
	}
}

func TestControlWindowSize(t *testing.T) {
	p := newTestPair(t)
	ctx := context.Background()
	if err := Control(ctx, p.sc, TIOCSPGRP, ptr(9)); err != nil {
		t.Fatalf("TIOCSPGRP: %v", err)
	}

	var ws termios.Winsize
	if err := Control(ctx, p.sc, TIOCGWINSZ, &ws); err != nil {
		t.Fatalf("TIOCGWINSZ: %v", err)
	}
	if ws != termios.DefaultWinsize {
		t.Errorf("winsize = %+v, want %+v", ws, termios.DefaultWinsize)
	}

	same := ws
	if err := Control(ctx, p.mc, TIOCSWINSZ, &same); err != nil {
		t.Fatalf("TIOCSWINSZ: %v", err)
	}
	if d := p.sessions.Deliveries(); len(d) != 0 {
		t.Errorf("unchanged size raised signals: %v", d)
	}

	bigger := termios.Winsize{Rows: 40, Cols: 120}
	if err := Control(ctx, p.mc, TIOCSWINSZ, &bigger); err != nil {
		t.Fatalf("TIOCSWINSZ: %v", err)
	}
	if !delivered(p, -9, unix.SIGWINCH) {
		t.Error("SIGWINCH not sent on resize")
	}
	if err := Control(ctx, p.sc, TIOCGWINSZ, &ws); err != nil || ws != bigger {
		t.Errorf("TIOCGWINSZ = %+v, %v; want %+v", ws, err, bigger)
	}
}

func TestControlProcessGroup(t *testing.T) {
	p := newTestPair(t)

	notLeader := WithCaller(context.Background(), Caller{PID: 5, PGID: 5, SID: 1})
	if err := Control(notLeader, p.sc, TIOCSCTTY, nil); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("TIOCSCTTY by non leader err = %v, want ErrNotAllowed", err)
	}

	leader := WithCaller(context.Background(), Caller{PID: 10, PGID: 10, SID: 10})
	if err := Control(leader, p.sc, TIOCSCTTY, nil); err != nil {
		t.Fatalf("TIOCSCTTY: %v", err)
	}

	var sid, pgrp int
	if err := Control(leader, p.sc, TIOCGSID, &sid); err != nil || sid != 10 {
		t.Errorf("TIOCGSID = %d, %v", sid, err)
	}
	if err := Control(leader, p.sc, TIOCGPGRP, &pgrp); err != nil || pgrp != 10 {
		t.Errorf("TIOCGPGRP = %d, %v", pgrp, err)
	}

	other := WithCaller(context.Background(), Caller{PID: 20, PGID: 20, SID: 20})
	if err := Control(other, p.sc, TIOCSCTTY, nil); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("stealing the terminal err = %v, want ErrNotAllowed", err)
	}
	if err := Control(other, p.sc, TIOCSPGRP, ptr(20)); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("TIOCSPGRP from another session err = %v, want ErrNotAllowed", err)
	}

	if err := Control(leader, p.sc, TIOCSPGRP, ptr(11)); err != nil {
		t.Fatalf("TIOCSPGRP: %v", err)
	}
	if got := p.sessions.ForegroundProcessGroup(10); got != 11 {
		t.Errorf("session foreground = %d, want 11", got)
	}

	if err := Control(leader, p.sc, TIOCNOTTY, nil); err != nil {
		t.Fatalf("TIOCNOTTY: %v", err)
	}
	if _, ok := p.sessions.ControllingTerminal(10); ok {
		t.Error("session still has a controlling terminal")
	}
	if !delivered(p, -11, unix.SIGHUP) {
		t.Error("foreground group did not get SIGHUP on disassociation")
	}
}

func TestOpenAcquiresControllingTerminal(t *testing.T) {
	p := newTestPair(t)
	leader := WithCaller(context.Background(), Caller{PID: 30, PGID: 30, SID: 30})

	c, err := CreateCookie(leader, p.slave, nil, NoControllingTerminal)
	if err != nil {
		t.Fatalf("CreateCookie: %v", err)
	}
	DestroyCookie(c)
	if _, ok := p.sessions.ControllingTerminal(30); ok {
		t.Fatal("NoControllingTerminal open acquired the terminal")
	}

	c, err = CreateCookie(leader, p.slave, nil, 0)
	if err != nil {
		t.Fatalf("CreateCookie: %v", err)
	}
	defer DestroyCookie(c)
	if id, ok := p.sessions.ControllingTerminal(30); !ok || id != p.slave.Name() {
		t.Errorf("ControllingTerminal = %q, %v", id, ok)
	}
	if got := p.master.Config().ProcessGroup(); got != 30 {
		t.Errorf("ProcessGroup() = %d, want 30", got)
	}
}

func TestControlQueueLengths(t *testing.T) {
	p := newTestPair(t)
	ctx := context.Background()

	mustWrite(t, p.mc, "ab\rcd")
	var n int
	if err := Control(ctx, p.sc, FIONREAD, &n); err != nil || n != 3 {
		t.Errorf("FIONREAD = %d, %v; want one line of 3", n, err)
	}

	mustRead(t, p.sc, 16)
	eof := string([]byte{termios.DefaultControlCharacters[termios.VEOF]})
	mustWrite(t, p.mc, eof)
	if err := Control(ctx, p.sc, FIONREAD, &n); err != nil || n != 2 {
		t.Errorf("FIONREAD after EOF = %d, %v; want 2 without the EOF marker", n, err)
	}
	mustWrite(t, p.mc, eof)
	if err := Control(ctx, p.sc, FIONREAD, &n); err != nil || n != 2 {
		t.Errorf("FIONREAD with two EOFs = %d, %v; want 2", n, err)
	}

	mustRead(t, p.mc, 64)
	mustWrite(t, p.sc, "xyz")
	if err := Control(ctx, p.sc, TIOCOUTQ, &n); err != nil || n != 3 {
		t.Errorf("TIOCOUTQ = %d, %v", n, err)
	}
}

func TestControlFlush(t *testing.T) {
	p := newTestPair(t)
	ctx := context.Background()

	mustWrite(t, p.mc, "in")
	mustWrite(t, p.sc, "out")

	if err := Control(ctx, p.sc, TCFLSH, ptr(transport.FlushInput)); err != nil {
		t.Fatalf("TCFLSH input: %v", err)
	}
	if p.slave.Buffered() != 0 || p.master.Buffered() == 0 {
		t.Errorf("input flush: slave %d, master %d", p.slave.Buffered(), p.master.Buffered())
	}

	if err := Control(ctx, p.sc, TCFLSH, ptr(transport.FlushOutput)); err != nil {
		t.Fatalf("TCFLSH output: %v", err)
	}
	if p.master.Buffered() != 0 {
		t.Errorf("output flush left %d bytes", p.master.Buffered())
	}
	if got := p.tr.Flushes(); got != 2 {
		t.Errorf("transport flushes = %d, want 2", got)
	}
}

func TestControlModemLines(t *testing.T) {
	p := newTestPair(t)
	ctx := context.Background()

	if err := Control(ctx, p.sc, TIOCMBIC, ptr(transport.DTR)); err != nil {
		t.Fatalf("TIOCMBIC: %v", err)
	}
	var lines transport.Signals
	if err := Control(ctx, p.sc, TIOCMGET, &lines); err != nil {
		t.Fatalf("TIOCMGET: %v", err)
	}
	if lines&transport.DTR != 0 || lines&transport.RTS == 0 {
		t.Errorf("lines = %v, want RTS without DTR", lines)
	}

	if err := Control(ctx, p.sc, TIOCMSET, ptr(transport.DTR)); err != nil {
		t.Fatalf("TIOCMSET: %v", err)
	}
	lines, _ = p.tr.GetSignals()
	if lines&transport.DTR == 0 || lines&transport.RTS != 0 {
		t.Errorf("lines = %v, want DTR without RTS", lines)
	}

	if err := Control(ctx, p.sc, TIOCMBIS, ptr(transport.RTS)); err != nil {
		t.Fatalf("TIOCMBIS: %v", err)
	}
	lines, _ = p.tr.GetSignals()
	if lines&(transport.DTR|transport.RTS) != transport.DTR|transport.RTS {
		t.Errorf("lines = %v, want DTR and RTS", lines)
	}
}

func TestControlBreak(t *testing.T) {
	p := newTestPair(t)
	ctx := context.Background()

	if err := Control(ctx, p.sc, TIOCSBRK, nil); err != nil {
		t.Fatalf("TIOCSBRK: %v", err)
	}
	if on, _ := p.tr.Breaking(); !on {
		t.Error("break not started")
	}
	if err := Control(ctx, p.sc, TIOCCBRK, nil); err != nil {
		t.Fatalf("TIOCCBRK: %v", err)
	}

	d := time.Millisecond
	if err := Control(ctx, p.sc, TCSBRK, &d); err != nil {
		t.Fatalf("TCSBRK: %v", err)
	}
	if on, count := p.tr.Breaking(); on || count != 2 {
		t.Errorf("Breaking() = %v, %d; want off after 2 breaks", on, count)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	long := time.Hour
	if err := Control(cancelled, p.sc, TCSBRK, &long); !errors.Is(err, ErrInterrupted) {
		t.Errorf("cancelled TCSBRK err = %v, want ErrInterrupted", err)
	}
	if on, _ := p.tr.Breaking(); on {
		t.Error("break left on after interruption")
	}
}

func TestHardwareSignal(t *testing.T) {
	p := newTestPair(t)
	p.tr.SetSignals(transport.DTR)

	if err := HardwareSignal(p.sc, transport.RI, true); err != nil {
		t.Fatalf("HardwareSignal: %v", err)
	}
	if err := HardwareSignal(p.sc, transport.DCD, true); err != nil {
		t.Fatalf("HardwareSignal: %v", err)
	}
	if err := HardwareSignal(p.sc, transport.DCD, false); err != nil {
		t.Fatalf("HardwareSignal: %v", err)
	}
	if got := p.slave.HardwareSignals(); got != transport.RI {
		t.Errorf("HardwareSignals() = %v, want RI", got)
	}

	var lines transport.Signals
	if err := Control(context.Background(), p.sc, TIOCMGET, &lines); err != nil {
		t.Fatalf("TIOCMGET: %v", err)
	}
	if lines != transport.DTR|transport.RI {
		t.Errorf("TIOCMGET = %v, want DTR|RI", lines)
	}

	if err := HardwareSignal(p.sc, transport.DTR, true); !errors.Is(err, ErrBadValue) {
		t.Errorf("output line err = %v, want ErrBadValue", err)
	}
}

func TestControlOpString(t *testing.T) {
	if got := TIOCSWINSZ.String(); got != "TIOCSWINSZ" {
		t.Errorf("String() = %q", got)
	}
	if got := ControlOp(999).String(); got != "ControlOp(999)" {
		t.Errorf("String() = %q", got)
	}
}
