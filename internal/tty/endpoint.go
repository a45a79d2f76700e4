package tty

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/dshills/ttyld/internal/integration/transport"
	"github.com/dshills/ttyld/internal/tty/linebuf"
	"github.com/dshills/ttyld/internal/tty/request"
	"github.com/dshills/ttyld/internal/tty/termios"
)

// State is the open state of an endpoint.
type State int

const (
	// StateCreated means the endpoint has never been opened.
	StateCreated State = iota
	// StateOpen means at least one cookie is open.
	StateOpen
	// StateClosing means the last cookie is being torn down.
	StateClosing
	// StateClosed means every cookie has been closed.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PairedConfiguration is the state shared by the two endpoints of a pair.
// Exactly one exists per pair; both endpoints point at it.
type PairedConfiguration struct {
	mu        sync.Mutex // the tty lock
	termios   termios.Termios
	winsize   termios.Winsize
	pgrpID    int
	sessionID int

	coord    *request.Coordinator
	sessions Sessions
	logger   Logger
}

// Termios returns a copy of the current settings.
func (p *PairedConfiguration) Termios() termios.Termios {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.termios
}

// Winsize returns the current window size.
func (p *PairedConfiguration) Winsize() termios.Winsize {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.winsize
}

// ProcessGroup returns the foreground process group, 0 if none.
func (p *PairedConfiguration) ProcessGroup() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pgrpID
}

// Session returns the session the pair is the controlling terminal of.
func (p *PairedConfiguration) Session() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

func (p *PairedConfiguration) signalGroupLocked(pgid int, sig unix.Signal) {
	if pgid <= 0 {
		return
	}
	if err := p.sessions.SendSignal(-pgid, sig); err != nil {
		p.logger.Warn("signal %v to group %d: %v", sig, pgid, err)
	}
}

// Endpoint is one half of a terminal pair.
//
// open counts live cookies, opened counts every cookie ever created (it
// tells a peer that was never opened from one that hung up) and ref keeps
// the endpoint alive until its cookies are destroyed.
type Endpoint struct {
	name      string
	isMaster  bool
	config    *PairedConfiguration
	transport transport.Transport
	other     *Endpoint

	buffer      *linebuf.Buffer
	readerQueue *request.Queue
	writerQueue *request.Queue
	selectPool  selectPool

	cookies     []*Cookie
	openCount   int
	openedCount int
	refCount    int
	state       State
	exclusive   bool
	pendingEOF  int
	destroyed   bool

	// modem input lines; updated without the tty lock
	hardwareBits atomic.Uint32
}

type options struct {
	name       string
	bufferSize int
	termios    *termios.Termios
	winsize    *termios.Winsize
	coord      *request.Coordinator
	sessions   Sessions
	logger     Logger
}

// Option configures Create.
type Option func(*options)

// WithName sets the endpoint name used in errors, logs and as the terminal
// id handed to the session manager.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithBufferSize sets the input buffer capacity.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}

// WithTermios sets the initial settings of a new pair. Ignored for slaves.
func WithTermios(t termios.Termios) Option {
	return func(o *options) { o.termios = &t }
}

// WithWinsize sets the initial window size of a new pair. Ignored for
// slaves.
func WithWinsize(w termios.Winsize) Option {
	return func(o *options) { o.winsize = &w }
}

// WithCoordinator sets the request coordinator. Ignored for slaves.
func WithCoordinator(c *request.Coordinator) Option {
	return func(o *options) { o.coord = c }
}

// WithSessions sets the session manager. Ignored for slaves.
func WithSessions(s Sessions) Option {
	return func(o *options) { o.sessions = s }
}

// WithLogger sets the diagnostics logger. Ignored for slaves.
func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

// Create allocates an endpoint. With master == nil a master is created
// together with a new PairedConfiguration; otherwise a slave is created,
// sharing master's configuration and linked to it.
//
// tr may be nil: a master then gets a virtual transport and a slave uses
// its master's.
func Create(tr transport.Transport, master *Endpoint, opts ...Option) (*Endpoint, error) {
	o := options{bufferSize: linebuf.DefaultSize}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Endpoint{
		name:      o.name,
		isMaster:  master == nil,
		transport: tr,
		buffer:    linebuf.New(o.bufferSize),
	}

	if master == nil {
		cfg := &PairedConfiguration{
			termios:  termios.Default(),
			winsize:  termios.DefaultWinsize,
			coord:    o.coord,
			sessions: o.sessions,
			logger:   o.logger,
		}
		if o.termios != nil {
			cfg.termios = *o.termios
		}
		if o.winsize != nil {
			cfg.winsize = *o.winsize
		}
		if cfg.coord == nil {
			cfg.coord = request.NewCoordinator()
		}
		if cfg.sessions == nil {
			cfg.sessions = noSessions{}
		}
		if cfg.logger == nil {
			cfg.logger = nopLogger{}
		}
		if e.name == "" {
			e.name = "master"
		}
		if e.transport == nil {
			e.transport = transport.NewVirtual()
		}
		e.config = cfg
		e.init()
		return e, nil
	}

	cfg := master.config
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	switch {
	case !master.isMaster:
		return nil, newOpError("create", master, ErrBadValue)
	case master.destroyed:
		return nil, newOpError("create", master, ErrFileError)
	case master.other != nil:
		return nil, newOpError("create", master, ErrBusy)
	}

	if e.name == "" {
		e.name = "slave"
	}
	if e.transport == nil {
		e.transport = master.transport
	}
	e.config = cfg
	e.init()
	e.other = master
	master.other = e
	return e, nil
}

func (e *Endpoint) init() {
	e.readerQueue = request.NewQueue(e.config.coord)
	e.writerQueue = request.NewQueue(e.config.coord)
}

// Destroy releases an endpoint whose cookies have all been destroyed.
func Destroy(e *Endpoint) error {
	cfg := e.config
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	if e.refCount > 0 || e.openCount > 0 {
		return newOpError("destroy", e, ErrBusy)
	}
	e.destroyed = true
	e.state = StateClosed
	e.clearLocked()
	e.selectPool.clear()
	return nil
}

// Name returns the endpoint name.
func (e *Endpoint) Name() string {
	return e.name
}

// IsMaster reports whether e is the master half of its pair.
func (e *Endpoint) IsMaster() bool {
	return e.isMaster
}

// Config returns the configuration shared with the peer.
func (e *Endpoint) Config() *PairedConfiguration {
	return e.config
}

// Transport returns the driver below the endpoint.
func (e *Endpoint) Transport() transport.Transport {
	return e.transport
}

// Other returns the peer endpoint, nil before the slave is created.
func (e *Endpoint) Other() *Endpoint {
	e.config.mu.Lock()
	defer e.config.mu.Unlock()
	return e.other
}

// State returns the open state.
func (e *Endpoint) State() State {
	e.config.mu.Lock()
	defer e.config.mu.Unlock()
	return e.state
}

// OpenCount returns the number of open cookies.
func (e *Endpoint) OpenCount() int {
	e.config.mu.Lock()
	defer e.config.mu.Unlock()
	return e.openCount
}

// RefCount returns the number of cookies not yet destroyed.
func (e *Endpoint) RefCount() int {
	e.config.mu.Lock()
	defer e.config.mu.Unlock()
	return e.refCount
}

// Buffered returns the number of bytes in the input buffer.
func (e *Endpoint) Buffered() int {
	return e.buffer.Readable()
}

func (e *Endpoint) isOpenLocked() bool {
	return e != nil && e.openCount > 0
}

// hungUpLocked reports whether e was opened and has since been closed.
func (e *Endpoint) hungUpLocked() bool {
	return e != nil && e.openedCount > 0 && e.openCount == 0
}

// readableLocked returns what a reader may take now: up to the next line
// boundary on a canonical slave, everything otherwise.
func (e *Endpoint) readableLocked() int {
	t := &e.config.termios
	if !e.isMaster && t.Canonical() {
		return e.buffer.ReadableLine(t.IsLineBoundary)
	}
	return e.buffer.Readable()
}

// readableBytesLocked is readableLocked without the EOF markers a reader
// consumes but never returns.
func (e *Endpoint) readableBytesLocked() int {
	n := e.readableLocked()
	t := &e.config.termios
	if n > 0 && e.pendingEOF > 0 && !e.isMaster && t.Canonical() {
		n -= e.buffer.Count(n, t.IsEOF)
	}
	return n
}

func (e *Endpoint) clearLocked() {
	e.buffer.Clear()
	e.pendingEOF = 0
}

func (e *Endpoint) removeCookieLocked(c *Cookie) {
	for i, other := range e.cookies {
		if other == c {
			e.cookies = append(e.cookies[:i], e.cookies[i+1:]...)
			return
		}
	}
}
