// Package app wires the ttyld components together: configuration, logging,
// the pseudo-terminal manager, the session table and metrics. It also owns
// the application lifecycle and live configuration reload.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/ttyld/internal/config"
	"github.com/dshills/ttyld/internal/config/watcher"
	"github.com/dshills/ttyld/internal/integration/pty"
	"github.com/dshills/ttyld/internal/integration/session"
	"github.com/dshills/ttyld/internal/integration/transport"
)

// EventHandler receives pty events after metrics have recorded them.
type EventHandler func(eventType string, data map[string]any)

// Application is the central coordinator for all ttyld components.
type Application struct {
	mu sync.RWMutex

	config    *config.Config
	logger    *Logger
	logCloser io.Closer

	manager  *pty.Manager
	sessions *session.Table
	metrics  *Metrics
	watcher  *watcher.Watcher

	handlers []EventHandler

	running atomic.Bool
	stop    chan struct{}
	stopped sync.Once

	opts Options
}

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file. Empty means
	// defaults and environment only.
	ConfigPath string

	// LogLevel overrides the configured log level when set.
	LogLevel string

	// Device overrides the configured pty.device when set.
	Device string

	// LogOutput overrides the configured log destination when set.
	LogOutput io.Writer

	// Quiet discards all log output.
	Quiet bool

	// Watch reloads the configuration file when it changes.
	Watch bool

	// HostSignals forwards terminal-generated signals to host processes.
	HostSignals bool

	// ConfigOptions are passed to config.Load and config.WatchFile.
	ConfigOptions []config.LoadOption
}

// New creates a new Application with the given options.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts: opts,
		stop: make(chan struct{}),
	}

	if err := app.bootstrap(); err != nil {
		app.cleanup()
		return nil, err
	}
	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap() error {
	// 1. Config
	cfg, err := config.Load(app.opts.ConfigPath, app.opts.ConfigOptions...)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	if app.opts.LogLevel != "" {
		cfg.Log.Level = app.opts.LogLevel
	}
	if app.opts.Device != "" {
		cfg.PTY.Device = app.opts.Device
	}
	if err := cfg.Validate(); err != nil {
		return &InitError{Component: "config", Err: err}
	}
	app.config = cfg

	// 2. Logger
	if err := app.initLogger(); err != nil {
		return &InitError{Component: "logger", Err: err}
	}

	// 3. Metrics and sessions
	app.metrics = NewMetrics()
	var sessOpts []session.Option
	if app.opts.HostSignals {
		sessOpts = append(sessOpts, session.WithHostDelivery())
	}
	app.sessions = session.NewTable(sessOpts...)
	sigLog := app.logger.WithComponent("session")
	app.sessions.OnSignal(func(d session.Delivery) {
		app.metrics.RecordSignal(d)
		sigLog.Debug("signal %s", d)
	})

	// 4. PTY manager
	defaults, err := DefaultsFromConfig(cfg)
	if err != nil {
		return &InitError{Component: "pty", Err: err}
	}
	ptyLog := app.logger.WithComponent("pty")
	ptyOpts := []pty.Option{
		pty.WithMaxPairs(cfg.PTY.MaxPairs),
		pty.WithDefaults(defaults),
		pty.WithSessions(app.sessions),
		pty.WithLogger(ptyLog),
		pty.WithEventPublisher(app),
	}
	if cfg.PTY.Device != "" {
		ptyOpts = append(ptyOpts, pty.WithTransportFactory(serialTransport(cfg.PTY.Device, ptyLog)))
	}
	app.manager = pty.NewManager(ptyOpts...)

	// 5. Live reload
	if app.opts.Watch && app.opts.ConfigPath != "" {
		w, err := config.WatchFile(app.opts.ConfigPath, app.reload, app.opts.ConfigOptions...)
		if err != nil {
			return &InitError{Component: "watcher", Err: err}
		}
		app.watcher = w
	}

	app.logger.Debug("bootstrap complete: maxPairs=%d", cfg.PTY.MaxPairs)
	return nil
}

func (app *Application) initLogger() error {
	if app.opts.Quiet {
		app.logger = NullLogger()
		return nil
	}

	lc := DefaultLoggerConfig()
	lc.Level = ParseLogLevel(app.config.Log.Level)

	switch {
	case app.opts.LogOutput != nil:
		lc.Output = app.opts.LogOutput
	case app.config.Log.File != "":
		f, err := os.OpenFile(app.config.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		lc.Output = f
		app.logCloser = f
	}

	app.logger = NewLogger(lc)
	return nil
}

// serialTransport opens device for every pair allocated.
func serialTransport(device string, log *Logger) pty.TransportFactory {
	return func(index int) (transport.Transport, error) {
		s, err := transport.OpenSerial(device)
		if err != nil {
			return nil, err
		}
		log.Debug("pty %d drives %s", index, device)
		return s, nil
	}
}

// DefaultsFromConfig converts the tty section of cfg into pair defaults.
func DefaultsFromConfig(cfg *config.Config) (pty.Defaults, error) {
	tio, err := cfg.TTY.Termios()
	if err != nil {
		return pty.Defaults{}, err
	}
	return pty.Defaults{
		BufferSize: cfg.TTY.BufferSize,
		Termios:    tio,
		Winsize:    cfg.TTY.Winsize(),
	}, nil
}

// reload applies a configuration reloaded from disk. Only settings that
// can change at runtime are applied: log level and the defaults of pairs
// allocated from now on.
func (app *Application) reload(cfg *config.Config, err error) {
	log := app.logger.WithComponent("config")
	if err != nil {
		log.Warn("reload failed: %v", err)
		return
	}
	if app.opts.LogLevel != "" {
		cfg.Log.Level = app.opts.LogLevel
	}
	if app.opts.Device != "" {
		cfg.PTY.Device = app.opts.Device
	}

	defaults, err := DefaultsFromConfig(cfg)
	if err != nil {
		log.Warn("reload failed: %v", err)
		return
	}

	app.mu.Lock()
	prev := app.config
	app.config = cfg
	app.mu.Unlock()

	app.logger.SetLevel(ParseLogLevel(cfg.Log.Level))
	app.manager.SetDefaults(defaults)
	if prev.PTY.MaxPairs != cfg.PTY.MaxPairs {
		log.Warn("pty.maxPairs change to %d takes effect after restart", cfg.PTY.MaxPairs)
	}
	if prev.PTY.Device != cfg.PTY.Device {
		log.Warn("pty.device change to %q takes effect after restart", cfg.PTY.Device)
	}
	log.Info("configuration reloaded")
}

// Publish implements pty.EventPublisher. Events are recorded in metrics
// and passed to every registered handler.
func (app *Application) Publish(eventType string, data map[string]any) {
	app.metrics.Publish(eventType, data)

	app.mu.RLock()
	handlers := append([]EventHandler(nil), app.handlers...)
	app.mu.RUnlock()

	for _, h := range handlers {
		h(eventType, data)
	}
}

// OnEvent registers a handler for pty events.
func (app *Application) OnEvent(h EventHandler) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.handlers = append(app.handlers, h)
}

// Run blocks until ctx is cancelled or Shutdown is called, then shuts the
// manager down.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	app.logger.Info("running with %d pair slots", app.manager.MaxPairs())

	select {
	case <-ctx.Done():
	case <-app.stop:
	}
	return app.shutdown()
}

// Go runs fn on a new goroutine, converting a panic into an error passed
// to the returned channel.
func (app *Application) Go(fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := &RecoveredPanicError{Value: r, Stack: string(debug.Stack())}
				app.logger.Error("recovered: %v", r)
				done <- err
			}
		}()
		done <- fn()
	}()
	return done
}

// Shutdown asks Run to return. It returns ErrNotRunning when Run is not in
// progress.
func (app *Application) Shutdown() error {
	if !app.running.Load() {
		return ErrNotRunning
	}
	app.stopped.Do(func() { close(app.stop) })
	return nil
}

func (app *Application) shutdown() error {
	defer app.running.Store(false)

	timeout := app.Config().PTY.ShutdownTimeout
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := app.manager.Shutdown(ctx)
	if ctx.Err() != nil {
		err = fmt.Errorf("%w after %s: %v", ErrShutdownTimeout, timeout, err)
	} else if err != nil {
		err = NewComponentError("pty", "shutdown", err)
	}

	snap := app.metrics.Snapshot()
	app.logger.Info("stopped after %s: %d pairs created, %d signals",
		snap.Uptime.Round(time.Millisecond), snap.PairsCreated, snap.Signals)

	app.cleanup()
	return err
}

func (app *Application) cleanup() {
	if app.watcher != nil {
		app.watcher.Stop()
	}
	if app.logCloser != nil {
		_ = app.logCloser.Close()
	}
}

// IsRunning returns whether Run is in progress.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Config returns the current configuration.
func (app *Application) Config() *config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.config
}

// Logger returns the application logger.
func (app *Application) Logger() *Logger {
	return app.logger
}

// Manager returns the pty manager.
func (app *Application) Manager() *pty.Manager {
	return app.manager
}

// Sessions returns the session table.
func (app *Application) Sessions() *session.Table {
	return app.sessions
}

// Metrics returns the application metrics.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}
