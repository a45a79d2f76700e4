package pty

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dshills/ttyld/internal/integration/transport"
	"github.com/dshills/ttyld/internal/tty"
)

// File is one open of a pair endpoint.
type File struct {
	m      *Manager
	pair   *Pair
	cookie *tty.Cookie

	closeOnce sync.Once
	closed    atomic.Bool
}

var _ io.ReadWriteCloser = (*File)(nil)

func newFile(m *Manager, p *Pair, c *tty.Cookie) *File {
	return &File{m: m, pair: p, cookie: c}
}

// Name returns the endpoint name, e.g. "pty/0" or "tty/0".
func (f *File) Name() string {
	return f.cookie.Endpoint().Name()
}

// Index returns the pair number.
func (f *File) Index() int {
	return f.pair.index
}

// PairID returns the unique identifier of the pair.
func (f *File) PairID() string {
	return f.pair.id
}

// IsMaster reports whether the file is open on the master endpoint.
func (f *File) IsMaster() bool {
	return f.cookie.Endpoint().IsMaster()
}

// Cookie returns the underlying open.
func (f *File) Cookie() *tty.Cookie {
	return f.cookie
}

// Read implements io.Reader. Once the peer has hung up and no data is
// left, Read returns io.EOF.
func (f *File) Read(p []byte) (int, error) {
	return f.ReadContext(context.Background(), p)
}

// ReadContext reads like Read; cancelling ctx interrupts a blocked read.
func (f *File) ReadContext(ctx context.Context, p []byte) (int, error) {
	if f.closed.Load() {
		return 0, ErrFileClosed
	}
	n, err := tty.Read(ctx, f.cookie, p)
	if n == 0 && errors.Is(err, tty.ErrFileError) && !f.closed.Load() {
		return 0, io.EOF
	}
	return n, err
}

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) {
	return f.WriteContext(context.Background(), p)
}

// WriteContext writes like Write; cancelling ctx interrupts a blocked
// write.
func (f *File) WriteContext(ctx context.Context, p []byte) (int, error) {
	if f.closed.Load() {
		return 0, ErrFileClosed
	}
	return tty.Write(ctx, f.cookie, p)
}

// Control performs a terminal control operation.
func (f *File) Control(ctx context.Context, op tty.ControlOp, arg any) error {
	if f.closed.Load() {
		return ErrFileClosed
	}
	return tty.Control(ctx, f.cookie, op, arg)
}

// Select registers sync for event.
func (f *File) Select(event tty.SelectEvent, ref uint32, sync tty.SelectSync) error {
	return tty.Select(f.cookie, event, ref, sync)
}

// Deselect removes a registration made with Select.
func (f *File) Deselect(event tty.SelectEvent, sync tty.SelectSync) error {
	return tty.Deselect(f.cookie, event, sync)
}

// HardwareSignal reports a modem input line change on the endpoint.
func (f *File) HardwareSignal(line transport.Signals, set bool) error {
	return tty.HardwareSignal(f.cookie, line, set)
}

// Close closes the file. Operations blocked on it fail with
// tty.ErrFileError; Close waits for them to return.
func (f *File) Close() error {
	err := ErrFileClosed
	f.closeOnce.Do(func() {
		f.closed.Store(true)
		tty.DestroyCookie(f.cookie)
		f.m.release(f)
		err = nil
	})
	return err
}
