// Package linebuf implements the fixed-capacity byte ring buffer that holds
// the pending input of one terminal endpoint.
//
// A Buffer is mutated only while the owning endpoint's lock is held, but its
// occupancy is kept in an atomic counter so that Readable and Writable may be
// sampled without the lock (for example from a hardware signal path).
package linebuf

import "sync/atomic"

// DefaultSize is the capacity used when none is configured.
const DefaultSize = 4096

// Buffer is a single-producer, single-consumer ring of bytes.
type Buffer struct {
	data  []byte
	first int
	in    atomic.Int32
}

// New returns an empty buffer with the given capacity.
func New(size int) *Buffer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Buffer{data: make([]byte, size)}
}

// Cap returns the capacity of the buffer.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Readable returns the number of buffered bytes.
func (b *Buffer) Readable() int {
	return int(b.in.Load())
}

// Writable returns the free space in bytes.
func (b *Buffer) Writable() int {
	return len(b.data) - int(b.in.Load())
}

// Clear drops all buffered bytes.
func (b *Buffer) Clear() {
	b.first = 0
	b.in.Store(0)
}

// Putc appends c. It reports false if the buffer is full.
func (b *Buffer) Putc(c byte) bool {
	in := int(b.in.Load())
	if in >= len(b.data) {
		return false
	}
	b.data[(b.first+in)%len(b.data)] = c
	b.in.Add(1)
	return true
}

// Getc removes and returns the oldest byte.
func (b *Buffer) Getc() (byte, bool) {
	if b.in.Load() == 0 {
		return 0, false
	}
	c := b.data[b.first]
	b.first = (b.first + 1) % len(b.data)
	b.in.Add(-1)
	return c, true
}

// Peek returns the oldest byte without removing it.
func (b *Buffer) Peek() (byte, bool) {
	if b.in.Load() == 0 {
		return 0, false
	}
	return b.data[b.first], true
}

// TailGetc removes and returns the most recently appended byte.
func (b *Buffer) TailGetc() (byte, bool) {
	in := int(b.in.Load())
	if in == 0 {
		return 0, false
	}
	c := b.data[(b.first+in-1)%len(b.data)]
	b.in.Add(-1)
	return c, true
}

// ReadableLine returns how many bytes a canonical reader may consume: up to
// and including the first byte for which isBoundary reports true. With no
// boundary buffered it returns 0, unless the buffer is full, in which case
// the whole buffer is readable.
func (b *Buffer) ReadableLine(isBoundary func(byte) bool) int {
	in := int(b.in.Load())
	for i := 0; i < in; i++ {
		if isBoundary(b.data[(b.first+i)%len(b.data)]) {
			return i + 1
		}
	}
	if in == len(b.data) {
		return in
	}
	return 0
}

// Count returns how many of the oldest n bytes match reports true for.
func (b *Buffer) Count(n int, match func(byte) bool) int {
	n = min(n, int(b.in.Load()))
	count := 0
	for i := 0; i < n; i++ {
		if match(b.data[(b.first+i)%len(b.data)]) {
			count++
		}
	}
	return count
}

// Read moves up to len(p) bytes into p. If isEOF is non-nil and reports
// true for a byte, the copy stops there: the EOF byte is consumed but not
// copied, and hitEOF is set.
func (b *Buffer) Read(p []byte, isEOF func(byte) bool) (n int, hitEOF bool) {
	for n < len(p) {
		c, ok := b.Getc()
		if !ok {
			break
		}
		if isEOF != nil && isEOF(c) {
			return n, true
		}
		p[n] = c
		n++
	}
	return n, false
}
