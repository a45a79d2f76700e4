package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dshills/ttyld/internal/integration/pty"
	"github.com/dshills/ttyld/internal/integration/session"
	"github.com/dshills/ttyld/internal/tty/termios"
)

func TestPrintStty(t *testing.T) {
	var buf bytes.Buffer
	printStty(&buf, termios.Default(), termios.DefaultWinsize)
	out := buf.String()

	for _, want := range []string{
		"speed 38400 baud; rows 24; columns 80;",
		"lflag: echo icanon isig",
		"oflag: onlcr opost",
		"intr = ^C",
		"erase = ^?",
		"eol = <undef>",
		"min = 1",
		"time = 0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatControlChar(t *testing.T) {
	tests := []struct {
		idx  int
		c    uint8
		want string
	}{
		{termios.VINTR, 0x03, "^C"},
		{termios.VQUIT, 0x1c, `^\`},
		{termios.VERASE, 0x7f, "^?"},
		{termios.VEOL, 0, "<undef>"},
		{termios.VKILL, '@', "@"},
		{termios.VMIN, 0, "0"},
		{termios.VTIME, 12, "12"},
	}
	for _, tt := range tests {
		if got := formatControlChar(tt.idx, tt.c); got != tt.want {
			t.Errorf("formatControlChar(%d, %#x) = %q, want %q", tt.idx, tt.c, got, tt.want)
		}
	}
}

func TestServeLines(t *testing.T) {
	m := pty.NewManager()
	defer m.Shutdown(context.Background())

	ctx := context.Background()
	master, err := m.OpenMaster(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	slave, err := m.OpenSlave(ctx, master.Index(), 0)
	if err != nil {
		t.Fatal(err)
	}

	output := make(chan string, 64)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := master.Read(buf)
			if n > 0 {
				output <- string(buf[:n])
			}
			if err != nil {
				close(output)
				return
			}
		}
	}()

	var seen strings.Builder
	await := func(want string) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for !strings.Contains(seen.String(), want) {
			select {
			case s, ok := <-output:
				if !ok {
					t.Fatalf("master closed before %q; got %q", want, seen.String())
				}
				seen.WriteString(s)
			case <-deadline:
				t.Fatalf("timed out waiting for %q; got %q", want, seen.String())
			}
		}
	}

	done := make(chan error, 1)
	go func() { done <- serveLines(ctx, slave, make(chan session.Delivery)) }()

	await("> ")
	if _, err := master.Write([]byte("hello\r")); err != nil {
		t.Fatal(err)
	}
	await(`read 6 bytes: "hello\n"`)

	if _, err := master.Write([]byte("stty\r")); err != nil {
		t.Fatal(err)
	}
	await("rows 24; columns 80")

	if _, err := master.Write([]byte("exit\r")); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serveLines() = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("serveLines did not return")
	}
}
