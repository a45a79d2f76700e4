//go:build linux

package pty

import (
	"context"
	"testing"

	creackpty "github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/dshills/ttyld/internal/integration/transport"
	"github.com/dshills/ttyld/internal/tty"
	"github.com/dshills/ttyld/internal/tty/termios"
)

func TestSerialDeviceTransport(t *testing.T) {
	ptmx, dev, err := creackpty.Open()
	if err != nil {
		t.Skipf("no pseudo-terminal available: %v", err)
	}
	t.Cleanup(func() {
		dev.Close()
		ptmx.Close()
	})

	path := dev.Name()
	m := newTestManager(t, WithTransportFactory(func(int) (transport.Transport, error) {
		return transport.OpenSerial(path)
	}))
	master, slave := openPair(t, m)

	raw := termios.MakeRaw(termios.Default())
	if err := slave.Control(context.Background(), tty.TCSETA, &raw); err != nil {
		t.Fatalf("TCSETA: %v", err)
	}

	u, err := unix.IoctlGetTermios(int(dev.Fd()), unix.TCGETS)
	if err != nil {
		t.Fatalf("TCGETS: %v", err)
	}
	if u.Lflag&(unix.ICANON|unix.ECHO) != 0 {
		t.Errorf("device lflag = %#o, raw mode not applied", u.Lflag)
	}

	if err := slave.Close(); err != nil {
		t.Fatal(err)
	}
	if err := master.Close(); err != nil {
		t.Fatal(err)
	}
}
