package linebuf

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func fill(t *testing.T, b *Buffer, s string) {
	t.Helper()
	for i := 0; i < len(s); i++ {
		if !b.Putc(s[i]) {
			t.Fatalf("Putc(%q) failed at %d", s[i], i)
		}
	}
}

func TestNewDefaultSize(t *testing.T) {
	if got := New(0).Cap(); got != DefaultSize {
		t.Errorf("Cap() = %d, want %d", got, DefaultSize)
	}
}

func TestPutGet(t *testing.T) {
	b := New(4)
	fill(t, b, "abcd")
	if b.Putc('e') {
		t.Error("Putc succeeded on a full buffer")
	}
	if b.Readable() != 4 || b.Writable() != 0 {
		t.Errorf("Readable/Writable = %d/%d", b.Readable(), b.Writable())
	}

	for _, want := range []byte("ab") {
		if c, ok := b.Getc(); !ok || c != want {
			t.Fatalf("Getc() = %q, %v; want %q", c, ok, want)
		}
	}

	// wrap around
	fill(t, b, "ef")
	got := make([]byte, 8)
	n, hitEOF := b.Read(got, nil)
	if hitEOF {
		t.Error("unexpected EOF")
	}
	if diff := cmp.Diff("cdef", string(got[:n])); diff != "" {
		t.Errorf("Read mismatch (-want +got):\n%s", diff)
	}
	if _, ok := b.Getc(); ok {
		t.Error("Getc on empty buffer succeeded")
	}
}

func TestTailGetcAndPeek(t *testing.T) {
	b := New(3)
	if _, ok := b.TailGetc(); ok {
		t.Error("TailGetc on empty buffer succeeded")
	}
	fill(t, b, "xyz")
	b.Getc()
	fill(t, b, "w")

	if c, ok := b.TailGetc(); !ok || c != 'w' {
		t.Errorf("TailGetc() = %q, %v; want 'w'", c, ok)
	}
	if c, ok := b.Peek(); !ok || c != 'y' {
		t.Errorf("Peek() = %q, %v; want 'y'", c, ok)
	}
	if b.Readable() != 2 {
		t.Errorf("Readable() = %d, want 2", b.Readable())
	}
}

func TestReadableLine(t *testing.T) {
	isNL := func(c byte) bool { return c == '\n' }

	tests := []struct {
		name string
		size int
		data string
		want int
	}{
		{"empty", 8, "", 0},
		{"no boundary", 8, "abc", 0},
		{"one line", 8, "ab\ncd", 3},
		{"boundary first", 8, "\nab", 1},
		{"full without boundary", 4, "abcd", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.size)
			fill(t, b, tt.data)
			if got := b.ReadableLine(isNL); got != tt.want {
				t.Errorf("ReadableLine() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCount(t *testing.T) {
	isEOF := func(c byte) bool { return c == 0x04 }

	b := New(4)
	fill(t, b, "a\x04b\x04")
	b.Getc()
	b.Putc('c')

	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{4, 2},
		{9, 2},
	}
	for _, tt := range tests {
		if got := b.Count(tt.n, isEOF); got != tt.want {
			t.Errorf("Count(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestReadStopsAtEOF(t *testing.T) {
	b := New(8)
	fill(t, b, "ab\x04cd")

	p := make([]byte, 8)
	n, hitEOF := b.Read(p, func(c byte) bool { return c == 0x04 })
	if !hitEOF || string(p[:n]) != "ab" {
		t.Errorf("Read() = %q, %v; want \"ab\", true", p[:n], hitEOF)
	}
	if b.Readable() != 2 {
		t.Errorf("EOF not consumed: Readable() = %d", b.Readable())
	}
}

func TestClear(t *testing.T) {
	b := New(4)
	fill(t, b, "abc")
	b.Clear()
	if b.Readable() != 0 || b.Writable() != 4 {
		t.Errorf("after Clear Readable/Writable = %d/%d", b.Readable(), b.Writable())
	}
	fill(t, b, "wxyz")
}
