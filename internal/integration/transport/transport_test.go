package transport

import (
	"testing"

	"github.com/dshills/ttyld/internal/tty/termios"
)

func TestSignalsString(t *testing.T) {
	tests := []struct {
		in   Signals
		want string
	}{
		{0, "none"},
		{DCD, "DCD"},
		{DTR | RTS, "DTR|RTS"},
		{DCD | CTS | DSR | RI | DTR | RTS, "DCD|CTS|DSR|RI|DTR|RTS"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("Signals(%d).String() = %q, want %q", uint32(tt.in), got, tt.want)
		}
	}
}

func TestVirtual(t *testing.T) {
	v := NewVirtual()

	sig, err := v.GetSignals()
	if err != nil {
		t.Fatal(err)
	}
	if sig&(DTR|RTS|DCD) != DTR|RTS|DCD {
		t.Errorf("initial signals = %v", sig)
	}

	if err := v.SetDTR(false); err != nil {
		t.Fatal(err)
	}
	if err := v.SetRTS(false); err != nil {
		t.Fatal(err)
	}
	sig, _ = v.GetSignals()
	if sig&(DTR|RTS) != 0 {
		t.Errorf("DTR/RTS still set: %v", sig)
	}

	raw := termios.MakeRaw(termios.Default())
	if err := v.ApplyTermios(&raw); err != nil {
		t.Fatal(err)
	}
	if got := v.Termios(); got != raw {
		t.Errorf("Termios() = %v, want %v", got, raw)
	}

	v.SetBreak(true)
	v.SetBreak(true)
	v.SetBreak(false)
	if on, count := v.Breaking(); on || count != 1 {
		t.Errorf("Breaking() = %v, %d; want false, 1", on, count)
	}

	v.Flush(FlushInput)
	v.Flush(FlushBoth)
	if v.Flushes() != 2 {
		t.Errorf("Flushes() = %d, want 2", v.Flushes())
	}

	v.SetSignals(RI)
	if sig, _ := v.GetSignals(); sig != RI {
		t.Errorf("GetSignals() = %v, want RI", sig)
	}
}
