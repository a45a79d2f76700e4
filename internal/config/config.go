package config

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/dshills/ttyld/internal/config/loader"
	"github.com/dshills/ttyld/internal/config/watcher"
	"github.com/dshills/ttyld/internal/tty/linebuf"
	"github.com/dshills/ttyld/internal/tty/termios"
)

// DefaultEnvPrefix prefixes every environment variable read by Load.
const DefaultEnvPrefix = "TTYLD_"

// Config is the complete ttyld configuration.
type Config struct {
	Log LogConfig `toml:"log" yaml:"log"`
	TTY TTYConfig `toml:"tty" yaml:"tty"`
	PTY PTYConfig `toml:"pty" yaml:"pty"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `toml:"level" yaml:"level"`
	// File is an optional log file; empty means stderr.
	File string `toml:"file" yaml:"file"`
}

// TTYConfig holds the settings a new pair starts with.
type TTYConfig struct {
	BufferSize int `toml:"bufferSize" yaml:"bufferSize"`

	Iflag []string `toml:"iflag" yaml:"iflag"`
	Oflag []string `toml:"oflag" yaml:"oflag"`
	Cflag []string `toml:"cflag" yaml:"cflag"`
	Lflag []string `toml:"lflag" yaml:"lflag"`

	// ControlChars overrides entries of the control character table,
	// keyed by stty name (intr, erase, min, ...).
	ControlChars map[string]string `toml:"controlChars" yaml:"controlChars"`

	Rows int `toml:"rows" yaml:"rows"`
	Cols int `toml:"cols" yaml:"cols"`
}

// PTYConfig configures the pair manager.
type PTYConfig struct {
	MaxPairs        int           `toml:"maxPairs" yaml:"maxPairs"`
	ShutdownTimeout time.Duration `toml:"shutdownTimeout" yaml:"shutdownTimeout"`

	// Device is a terminal device the masters drive through ioctls, such
	// as a serial port. Empty means pairs are purely virtual.
	Device string `toml:"device" yaml:"device"`
}

// Default returns the built-in configuration. Its terminal settings are
// exactly termios.Default.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		TTY: TTYConfig{
			BufferSize: linebuf.DefaultSize,
			Iflag:      []string{"ICRNL"},
			Oflag:      []string{"OPOST", "ONLCR"},
			Cflag:      []string{"B38400", "CS8", "CREAD", "HUPCL"},
			Lflag:      []string{"ISIG", "ICANON", "ECHO"},
			Rows:       int(termios.DefaultWinsize.Rows),
			Cols:       int(termios.DefaultWinsize.Cols),
		},
		PTY: PTYConfig{
			MaxPairs:        64,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Termios builds the terminal attributes described by c.
func (c TTYConfig) Termios() (termios.Termios, error) {
	t := termios.Default()

	lists := []struct {
		set   termios.FlagSet
		names []string
	}{
		{termios.InputFlags, c.Iflag},
		{termios.OutputFlags, c.Oflag},
		{termios.ControlFlags, c.Cflag},
		{termios.LocalFlags, c.Lflag},
	}
	for _, l := range lists {
		if l.names == nil {
			continue
		}
		v, err := termios.ParseFlags(l.set, l.names)
		if err != nil {
			return t, errors.Wrap(ErrUnknownFlag, err.Error())
		}
		t.SetFlags(l.set, v)
	}

	for name, value := range c.ControlChars {
		idx, ch, err := ParseControlChar(name, value)
		if err != nil {
			return t, err
		}
		t.CC[idx] = ch
	}
	return t, nil
}

// Winsize returns the window size described by c.
func (c TTYConfig) Winsize() termios.Winsize {
	return termios.Winsize{Rows: uint16(c.Rows), Cols: uint16(c.Cols)}
}

// LoadOption configures Load and WatchFile.
type LoadOption func(*loadOptions)

type loadOptions struct {
	fs        loader.FileSystem
	envPrefix string
	env       bool
	watch     []watcher.Option
}

// WithFS reads configuration files from fsys instead of the OS.
func WithFS(fsys loader.FileSystem) LoadOption {
	return func(o *loadOptions) {
		o.fs = fsys
	}
}

// WithEnvPrefix changes the environment variable prefix.
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithoutEnv ignores the environment.
func WithoutEnv() LoadOption {
	return func(o *loadOptions) {
		o.env = false
	}
}

// WithWatcherOptions passes options to the watcher created by WatchFile.
func WithWatcherOptions(opts ...watcher.Option) LoadOption {
	return func(o *loadOptions) {
		o.watch = append(o.watch, opts...)
	}
}

// Load builds a configuration from the defaults, the file at path and the
// environment. An empty path or a missing file contributes nothing. The
// result is not validated.
func Load(path string, opts ...LoadOption) (*Config, error) {
	o := loadOptions{fs: loader.DefaultFS(), envPrefix: DefaultEnvPrefix, env: true}
	for _, opt := range opts {
		opt(&o)
	}

	var data map[string]any
	if path != "" {
		l, err := loader.ForPath(o.fs, path)
		if err != nil {
			return nil, errors.Wrap(err, "config")
		}
		fileData, err := l.Load()
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s", path)
		}
		data = loader.DeepMerge(data, fileData)
	}

	if o.env {
		envData, err := loader.NewEnvLoader(o.envPrefix).Load()
		if err != nil {
			return nil, errors.Wrap(err, "loading environment")
		}
		data = loader.DeepMerge(data, envData)
	}

	cfg := Default()
	if len(data) == 0 {
		return cfg, nil
	}
	if err := decode(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", describe(path))
	}
	return cfg, nil
}

// decode overlays the merged settings on cfg. Sections and settings absent
// from data keep their current values.
func decode(data map[string]any, cfg *Config) error {
	raw, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	return yaml.NewDecoder(bytes.NewReader(raw)).Decode(cfg)
}

func describe(path string) string {
	if path == "" {
		return "environment"
	}
	return path
}

// WatchFile watches the file at path and calls fn with every reloaded and
// validated configuration, or with the error that prevented it. The
// returned watcher is already running; the caller stops it.
func WatchFile(path string, fn func(*Config, error), opts ...LoadOption) (*watcher.Watcher, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	wopts := append([]watcher.Option{
		watcher.WithErrorHandler(func(err error) { fn(nil, err) }),
	}, o.watch...)
	w := watcher.New(wopts...)
	if err := w.Watch(path); err != nil {
		return nil, errors.Wrapf(err, "watching %s", path)
	}

	w.OnChange(func(ev watcher.Event) {
		if ev.Op == watcher.OpRemove {
			return
		}
		cfg, err := Load(path, opts...)
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			fn(nil, err)
			return
		}
		fn(cfg, nil)
	})
	w.Start()
	return w, nil
}
