package tty

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dshills/ttyld/internal/integration/session"
	"github.com/dshills/ttyld/internal/integration/transport"
	"github.com/dshills/ttyld/internal/tty/termios"
)

type testPair struct {
	master   *Endpoint
	slave    *Endpoint
	mc       *Cookie
	sc       *Cookie
	tr       *transport.Virtual
	sessions *session.Table
}

func newTestPair(t *testing.T, slaveOpts ...Option) *testPair {
	t.Helper()

	p := &testPair{
		tr:       transport.NewVirtual(),
		sessions: session.NewTable(),
	}

	var err error
	p.master, err = Create(p.tr, nil, WithName("pty0-master"), WithSessions(p.sessions))
	if err != nil {
		t.Fatalf("Create master: %v", err)
	}
	p.slave, err = Create(nil, p.master, append([]Option{WithName("pty0-slave")}, slaveOpts...)...)
	if err != nil {
		t.Fatalf("Create slave: %v", err)
	}

	p.mc, err = CreateCookie(context.Background(), p.master, nil, 0)
	if err != nil {
		t.Fatalf("CreateCookie master: %v", err)
	}
	p.sc, err = CreateCookie(context.Background(), p.slave, nil, 0)
	if err != nil {
		t.Fatalf("CreateCookie slave: %v", err)
	}

	t.Cleanup(func() {
		DestroyCookie(p.sc)
		DestroyCookie(p.mc)
	})
	return p
}

func (p *testPair) setTermios(t *testing.T, mutate func(*termios.Termios)) {
	t.Helper()
	var tio termios.Termios
	if err := Control(context.Background(), p.sc, TCGETA, &tio); err != nil {
		t.Fatalf("TCGETA: %v", err)
	}
	mutate(&tio)
	if err := Control(context.Background(), p.sc, TCSETA, &tio); err != nil {
		t.Fatalf("TCSETA: %v", err)
	}
}

func (p *testPair) makeRaw(t *testing.T) {
	t.Helper()
	p.setTermios(t, func(tio *termios.Termios) { *tio = termios.MakeRaw(*tio) })
}

func mustWrite(t *testing.T, c *Cookie, s string) {
	t.Helper()
	n, err := Write(context.Background(), c, []byte(s))
	if err != nil {
		t.Fatalf("Write(%q): %v", s, err)
	}
	if n != len(s) {
		t.Fatalf("Write(%q) = %d, want %d", s, n, len(s))
	}
}

func mustRead(t *testing.T, c *Cookie, size int) string {
	t.Helper()
	buf := make([]byte, size)
	n, err := Read(context.Background(), c, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return string(buf[:n])
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

type readResult struct {
	data string
	err  error
}

func readAsync(ctx context.Context, c *Cookie, size int) <-chan readResult {
	ch := make(chan readResult, 1)
	go func() {
		buf := make([]byte, size)
		n, err := Read(ctx, c, buf)
		ch <- readResult{data: string(buf[:n]), err: err}
	}()
	return ch
}

func expectPending(t *testing.T, ch <-chan readResult, what string) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("%s returned early: %q, %v", what, r.data, r.err)
	case <-time.After(20 * time.Millisecond):
	}
}

func expectResult(t *testing.T, ch <-chan readResult, what string) readResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("%s did not return", what)
	}
	return readResult{}
}

// recordingSync is a SelectSync that remembers its notifications.
type recordingSync struct {
	mu     sync.Mutex
	events []SelectEvent
	refs   []uint32
}

func (r *recordingSync) Notify(ref uint32, event SelectEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.refs = append(r.refs, ref)
}

func (r *recordingSync) Events() []SelectEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SelectEvent(nil), r.events...)
}

func (r *recordingSync) count(event SelectEvent) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}
