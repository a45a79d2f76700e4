//go:build linux

package transport

import (
	"errors"
	"testing"

	"github.com/creack/pty"

	"github.com/dshills/ttyld/internal/tty/termios"
)

func openSerial(t *testing.T) *Serial {
	t.Helper()
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("no pseudo-terminal available: %v", err)
	}
	t.Cleanup(func() { ptmx.Close() })

	s := NewSerial(tty)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSerialTermios(t *testing.T) {
	s := openSerial(t)

	cur, err := s.Termios()
	if err != nil {
		t.Fatalf("Termios() error = %v", err)
	}
	raw := termios.MakeRaw(cur)
	if err := s.ApplyTermios(&raw); err != nil {
		t.Fatalf("ApplyTermios() error = %v", err)
	}

	got, err := s.Termios()
	if err != nil {
		t.Fatal(err)
	}
	if got.LEnabled(termios.ICANON) || got.LEnabled(termios.ECHO) {
		t.Errorf("raw mode not applied: %v", got)
	}
	if got.CC[termios.VMIN] != 1 {
		t.Errorf("VMIN = %d, want 1", got.CC[termios.VMIN])
	}
}

func TestSerialFlushAndBreak(t *testing.T) {
	s := openSerial(t)

	for _, q := range []FlushQueue{FlushInput, FlushOutput, FlushBoth} {
		if err := s.Flush(q); err != nil {
			t.Errorf("Flush(%d) error = %v", q, err)
		}
	}
	if err := s.SetBreak(true); err != nil {
		t.Errorf("SetBreak(true) error = %v", err)
	}
	if err := s.SetBreak(false); err != nil {
		t.Errorf("SetBreak(false) error = %v", err)
	}
}

func TestSerialClosed(t *testing.T) {
	s := openSerial(t)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := s.Termios(); !errors.Is(err, ErrClosed) {
		t.Errorf("Termios() after Close = %v, want ErrClosed", err)
	}
	if err := s.SetBreak(true); !errors.Is(err, ErrClosed) {
		t.Errorf("SetBreak() after Close = %v, want ErrClosed", err)
	}
}

func TestOpenSerialMissing(t *testing.T) {
	if _, err := OpenSerial("/dev/does-not-exist-ttyld"); err == nil {
		t.Fatal("OpenSerial() succeeded for a missing device")
	}
}
