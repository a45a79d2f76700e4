package tty

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/ttyld/internal/tty/termios"
)

func TestCreateSharesConfiguration(t *testing.T) {
	master, err := Create(nil, nil)
	if err != nil {
		t.Fatalf("Create master: %v", err)
	}
	slave, err := Create(nil, master)
	if err != nil {
		t.Fatalf("Create slave: %v", err)
	}

	if !master.IsMaster() || slave.IsMaster() {
		t.Fatal("master/slave roles are wrong")
	}
	if master.Config() != slave.Config() {
		t.Error("slave should share the master's configuration")
	}
	if master.Other() != slave || slave.Other() != master {
		t.Error("endpoints should be linked")
	}
	if slave.Transport() != master.Transport() {
		t.Error("slave should inherit the master's transport")
	}
	if master.Name() != "master" || slave.Name() != "slave" {
		t.Errorf("default names = %q, %q", master.Name(), slave.Name())
	}
	if got := master.State(); got != StateCreated {
		t.Errorf("State() = %v, want %v", got, StateCreated)
	}
}

func TestCreateRejectsSecondSlave(t *testing.T) {
	master, _ := Create(nil, nil)
	if _, err := Create(nil, master); err != nil {
		t.Fatalf("Create slave: %v", err)
	}
	if _, err := Create(nil, master); !errors.Is(err, ErrBusy) {
		t.Errorf("second slave err = %v, want ErrBusy", err)
	}

	slave := master.Other()
	if _, err := Create(nil, slave); !errors.Is(err, ErrBadValue) {
		t.Errorf("slave of slave err = %v, want ErrBadValue", err)
	}
}

func TestCreateOptions(t *testing.T) {
	raw := termios.MakeRaw(termios.Default())
	ws := termios.Winsize{Rows: 50, Cols: 132}
	master, err := Create(nil, nil, WithTermios(raw), WithWinsize(ws), WithBufferSize(32))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := master.Config().Termios(); got != raw {
		t.Errorf("Termios() = %v, want %v", got, raw)
	}
	if got := master.Config().Winsize(); got != ws {
		t.Errorf("Winsize() = %+v, want %+v", got, ws)
	}
	if got := master.buffer.Cap(); got != 32 {
		t.Errorf("buffer cap = %d, want 32", got)
	}
}

func TestSettingsVisibleFromBothEnds(t *testing.T) {
	p := newTestPair(t)
	p.setTermios(t, func(tio *termios.Termios) { tio.Oflag &^= termios.ONLCR })

	var got termios.Termios
	if err := Control(context.Background(), p.mc, TCGETA, &got); err != nil {
		t.Fatalf("TCGETA: %v", err)
	}
	if got.OEnabled(termios.ONLCR) {
		t.Error("master still sees ONLCR after the slave cleared it")
	}

	// and the output path uses it at once
	mustWrite(t, p.sc, "x\n")
	if got := mustRead(t, p.mc, 16); got != "x\n" {
		t.Errorf("master read %q, want %q", got, "x\n")
	}
}

func TestCookieCounters(t *testing.T) {
	master, _ := Create(nil, nil)
	slave, _ := Create(nil, master)

	c1, err := CreateCookie(context.Background(), slave, nil, 0)
	if err != nil {
		t.Fatalf("CreateCookie: %v", err)
	}
	c2, err := CreateCookie(context.Background(), slave, nil, NonBlocking)
	if err != nil {
		t.Fatalf("CreateCookie: %v", err)
	}
	if c1.Peer() != master || c1.Endpoint() != slave {
		t.Error("cookie endpoints are wrong")
	}
	if c2.Mode()&NonBlocking == 0 {
		t.Error("open mode lost")
	}
	if got := slave.OpenCount(); got != 2 {
		t.Errorf("OpenCount() = %d, want 2", got)
	}

	CloseCookie(c1)
	if got := slave.State(); got != StateOpen {
		t.Errorf("State() after first close = %v, want open", got)
	}
	CloseCookie(c2)
	if got := slave.State(); got != StateClosed {
		t.Errorf("State() after last close = %v, want closed", got)
	}
	if got := slave.RefCount(); got != 2 {
		t.Errorf("RefCount() before destroy = %d, want 2", got)
	}

	if err := Destroy(slave); !errors.Is(err, ErrBusy) {
		t.Errorf("Destroy with live cookies err = %v, want ErrBusy", err)
	}
	DestroyCookie(c1)
	DestroyCookie(c2)
	DestroyCookie(c2)
	if got := slave.RefCount(); got != 0 {
		t.Errorf("RefCount() = %d, want 0", got)
	}
	if err := Destroy(slave); err != nil {
		t.Errorf("Destroy: %v", err)
	}
	if _, err := CreateCookie(context.Background(), slave, nil, 0); !errors.Is(err, ErrFileError) {
		t.Errorf("open of destroyed endpoint err = %v, want ErrFileError", err)
	}
}

func TestCloseWithoutOperationsDoesNotBlock(t *testing.T) {
	p := newTestPair(t)

	done := make(chan struct{})
	go func() {
		CloseCookie(p.sc)
		CloseCookie(p.sc)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("CloseCookie blocked on an idle cookie")
	}
	if !p.sc.Closed() {
		t.Error("cookie not marked closed")
	}
	if _, err := Read(context.Background(), p.sc, make([]byte, 1)); !errors.Is(err, ErrFileError) {
		t.Errorf("Read after close err = %v, want ErrFileError", err)
	}
}

func TestCloseDrainsInFlightRead(t *testing.T) {
	p := newTestPair(t)

	ch := readAsync(context.Background(), p.sc, 8)
	waitFor(t, "reader to queue", func() bool { return p.slave.readerQueue.Len() == 1 })

	CloseCookie(p.sc)

	r := expectResult(t, ch, "blocked read")
	if !errors.Is(r.err, ErrFileError) {
		t.Errorf("read err = %v, want ErrFileError", r.err)
	}
	p.sc.mu.Lock()
	threads := p.sc.threadCount
	p.sc.mu.Unlock()
	if threads != 0 {
		t.Errorf("threadCount = %d after close", threads)
	}
}

func TestExclusiveOpen(t *testing.T) {
	p := newTestPair(t)

	if err := Control(context.Background(), p.sc, TIOCEXCL, nil); err != nil {
		t.Fatalf("TIOCEXCL: %v", err)
	}
	if _, err := CreateCookie(context.Background(), p.slave, nil, 0); !errors.Is(err, ErrBusy) {
		t.Errorf("second open err = %v, want ErrBusy", err)
	}

	if err := Control(context.Background(), p.sc, TIOCNXCL, nil); err != nil {
		t.Fatalf("TIOCNXCL: %v", err)
	}
	c, err := CreateCookie(context.Background(), p.slave, nil, 0)
	if err != nil {
		t.Fatalf("open after TIOCNXCL: %v", err)
	}
	DestroyCookie(c)
}

func TestOperationErrorWrapping(t *testing.T) {
	p := newTestPair(t)
	p.sc.mode |= NonBlocking

	_, err := Read(context.Background(), p.sc, make([]byte, 1))
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("err = %T, want *OperationError", err)
	}
	if opErr.Op != "read" || opErr.Endpoint != "pty0-slave" {
		t.Errorf("OperationError = %+v", opErr)
	}
	if !errors.Is(err, ErrWouldBlock) {
		t.Error("OperationError should match the wrapped error")
	}
	if want := "tty read pty0-slave: operation would block"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
