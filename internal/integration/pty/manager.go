package pty

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/ttyld/internal/integration/transport"
	"github.com/dshills/ttyld/internal/tty"
	"github.com/dshills/ttyld/internal/tty/linebuf"
	"github.com/dshills/ttyld/internal/tty/request"
	"github.com/dshills/ttyld/internal/tty/termios"
)

// DefaultMaxPairs is the number of pairs a manager serves by default.
const DefaultMaxPairs = 64

// EventPublisher receives pair lifecycle events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(eventType string, data map[string]any)
}

// Logger is the logging surface the manager and its terminals use.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}

// Defaults are the settings a new pair starts with.
type Defaults struct {
	// BufferSize is the input buffer capacity of each endpoint.
	BufferSize int

	// Termios is the initial terminal configuration.
	Termios termios.Termios

	// Winsize is the initial window size.
	Winsize termios.Winsize
}

// DefaultDefaults returns the built-in pair settings.
func DefaultDefaults() Defaults {
	return Defaults{
		BufferSize: linebuf.DefaultSize,
		Termios:    termios.Default(),
		Winsize:    termios.DefaultWinsize,
	}
}

// TransportFactory returns the driver below the master of pair index. A
// transport that implements io.Closer is closed when the pair is released.
type TransportFactory func(index int) (transport.Transport, error)

// Pair is an allocated master/slave pair.
type Pair struct {
	id        string
	index     int
	master    *tty.Endpoint
	slave     *tty.Endpoint
	transport transport.Transport
	created   time.Time
	files     map[*File]struct{}
}

// ID returns the pair's unique identifier.
func (p *Pair) ID() string { return p.id }

// Index returns the pair number.
func (p *Pair) Index() int { return p.index }

// Master returns the master endpoint.
func (p *Pair) Master() *tty.Endpoint { return p.master }

// Slave returns the slave endpoint.
func (p *Pair) Slave() *tty.Endpoint { return p.slave }

// PairInfo is a snapshot of one allocated pair.
type PairInfo struct {
	ID          string
	Index       int
	Master      string
	Slave       string
	MasterState tty.State
	SlaveState  tty.State
	Files       int
	Created     time.Time
}

// Manager allocates pseudo-terminal pairs.
type Manager struct {
	mu       sync.Mutex
	pairs    []*Pair
	defaults Defaults

	coord        *request.Coordinator
	newTransport TransportFactory
	sessions     tty.Sessions
	logger   Logger
	events   EventPublisher

	closed atomic.Bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxPairs sets the number of pair indices.
func WithMaxPairs(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.pairs = make([]*Pair, n)
		}
	}
}

// WithDefaults sets the settings of new pairs.
func WithDefaults(d Defaults) Option {
	return func(m *Manager) { m.defaults = d }
}

// WithSessions sets the session manager signals and controlling terminals
// are reported to.
func WithSessions(s tty.Sessions) Option {
	return func(m *Manager) { m.sessions = s }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTransportFactory sets where pairs get their transport from. Without
// it every pair runs on a virtual one.
func WithTransportFactory(f TransportFactory) Option {
	return func(m *Manager) { m.newTransport = f }
}

// WithEventPublisher sets the event publisher.
func WithEventPublisher(p EventPublisher) Option {
	return func(m *Manager) { m.events = p }
}

// NewManager creates a manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		pairs:    make([]*Pair, DefaultMaxPairs),
		defaults: DefaultDefaults(),
		coord:    request.NewCoordinator(),
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxPairs returns the number of pair indices.
func (m *Manager) MaxPairs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pairs)
}

// Defaults returns the settings new pairs start with.
func (m *Manager) Defaults() Defaults {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaults
}

// SetDefaults changes the settings of pairs allocated from now on.
func (m *Manager) SetDefaults(d Defaults) {
	m.mu.Lock()
	m.defaults = d
	m.mu.Unlock()
	m.logger.Debug("pty defaults updated: buffer=%d %s", d.BufferSize, d.Termios.String())
}

// OpenMaster allocates the lowest free pair and opens its master.
func (m *Manager) OpenMaster(ctx context.Context, mode tty.OpenMode) (*File, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	m.mu.Lock()
	idx := -1
	for i, p := range m.pairs {
		if p == nil {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return nil, ErrNoFreePair
	}

	p, err := m.newPairLocked(idx)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("allocate pair %d: %w", idx, err)
	}
	cookie, err := tty.CreateCookie(ctx, p.master, nil, mode)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	f := newFile(m, p, cookie)
	p.files[f] = struct{}{}
	m.pairs[idx] = p
	m.mu.Unlock()

	m.logger.Info("pty %d allocated (%s)", idx, p.id)
	m.publishEvent("pty.created", map[string]any{
		"id":     p.id,
		"index":  idx,
		"master": p.master.Name(),
		"slave":  p.slave.Name(),
	})
	return f, nil
}

func (m *Manager) newPairLocked(idx int) (*Pair, error) {
	d := m.defaults

	var tr transport.Transport
	if m.newTransport != nil {
		var err error
		if tr, err = m.newTransport(idx); err != nil {
			return nil, fmt.Errorf("open transport: %w", err)
		}
	}

	master, err := tty.Create(tr, nil,
		tty.WithName(fmt.Sprintf("pty/%d", idx)),
		tty.WithBufferSize(d.BufferSize),
		tty.WithTermios(d.Termios),
		tty.WithWinsize(d.Winsize),
		tty.WithCoordinator(m.coord),
		tty.WithSessions(m.sessions),
		tty.WithLogger(m.logger),
	)
	if err != nil {
		m.closeTransport(idx, tr)
		return nil, err
	}
	slave, err := tty.Create(nil, master,
		tty.WithName(fmt.Sprintf("tty/%d", idx)),
		tty.WithBufferSize(d.BufferSize),
	)
	if err != nil {
		m.closeTransport(idx, tr)
		return nil, err
	}
	return &Pair{
		id:        uuid.New().String(),
		index:     idx,
		master:    master,
		slave:     slave,
		transport: tr,
		created:   time.Now(),
		files:     make(map[*File]struct{}),
	}, nil
}

func (m *Manager) closeTransport(idx int, tr transport.Transport) {
	c, ok := tr.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		m.logger.Warn("pty %d: close transport: %v", idx, err)
	}
}

// OpenSlave opens the slave of pair index. The master must be open.
func (m *Manager) OpenSlave(ctx context.Context, index int, mode tty.OpenMode) (*File, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.pairs) || m.pairs[index] == nil {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchPair, index)
	}
	p := m.pairs[index]
	if p.master.OpenCount() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMasterClosed, p.master.Name())
	}

	cookie, err := tty.CreateCookie(ctx, p.slave, nil, mode)
	if err != nil {
		return nil, err
	}
	f := newFile(m, p, cookie)
	p.files[f] = struct{}{}
	m.logger.Debug("%s opened", p.slave.Name())
	return f, nil
}

// Pair returns the pair allocated at index.
func (m *Manager) Pair(index int) (*Pair, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.pairs) || m.pairs[index] == nil {
		return nil, false
	}
	return m.pairs[index], true
}

// Pairs returns a snapshot of the allocated pairs ordered by index.
func (m *Manager) Pairs() []PairInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []PairInfo
	for _, p := range m.pairs {
		if p == nil {
			continue
		}
		out = append(out, PairInfo{
			ID:          p.id,
			Index:       p.index,
			Master:      p.master.Name(),
			Slave:       p.slave.Name(),
			MasterState: p.master.State(),
			SlaveState:  p.slave.State(),
			Files:       len(p.files),
			Created:     p.created,
		})
	}
	return out
}

// Count returns the number of allocated pairs.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.pairs {
		if p != nil {
			n++
		}
	}
	return n
}

// release forgets f and frees its pair once no file is left on it. The
// cookie has already been destroyed.
func (m *Manager) release(f *File) {
	m.mu.Lock()
	p := f.pair
	delete(p.files, f)
	if len(p.files) > 0 || m.pairs[p.index] != p {
		m.mu.Unlock()
		return
	}

	for _, e := range []*tty.Endpoint{p.slave, p.master} {
		if err := tty.Destroy(e); err != nil {
			m.logger.Warn("destroy %s: %v", e.Name(), err)
		}
	}
	m.pairs[p.index] = nil
	m.mu.Unlock()
	m.closeTransport(p.index, p.transport)

	uptime := time.Since(p.created)
	m.logger.Info("pty %d released after %s", p.index, uptime.Round(time.Millisecond))
	m.publishEvent("pty.closed", map[string]any{
		"id":     p.id,
		"index":  p.index,
		"uptime": uptime.String(),
	})
}

// Shutdown closes every open file. Operations blocked on those files fail.
// It returns ctx's error if the files do not close in time.
//
// It is safe to call Shutdown multiple times.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.closed.Swap(true) {
		return nil
	}

	m.mu.Lock()
	var files []*File
	for _, p := range m.pairs {
		if p == nil {
			continue
		}
		for f := range p.files {
			files = append(files, f)
		}
	}
	m.mu.Unlock()

	m.logger.Info("shutting down %d open files", len(files))

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(func() error {
			done := make(chan error, 1)
			go func() { done <- f.Close() }()
			select {
			case err := <-done:
				if errors.Is(err, ErrFileClosed) {
					return nil
				}
				return err
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}

// IsClosed returns true if the manager has been shut down.
func (m *Manager) IsClosed() bool {
	return m.closed.Load()
}

// publishEvent publishes an event if a publisher is configured.
func (m *Manager) publishEvent(eventType string, data map[string]any) {
	if m.events == nil {
		return
	}
	eventData := make(map[string]any, len(data)+1)
	for k, v := range data {
		eventData[k] = v
	}
	eventData["timestamp"] = time.Now().UnixMilli()

	func() {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Warn("event publisher panicked on %s: %v", eventType, r)
			}
		}()
		m.events.Publish(eventType, eventData)
	}()
}
