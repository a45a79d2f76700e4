package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dshills/ttyld/internal/tty/termios"
)

// Limits enforced by Validate.
const (
	MinBufferSize = 16
	MaxBufferSize = 1 << 20
	MaxPairsLimit = 1024
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks every setting and returns all failures joined together.
// Each failure is a *ValidationError matching ErrValidationFailed.
func (c *Config) Validate() error {
	var errs []error
	add := func(path, msg string, value any, code ValidationErrorCode) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value, Code: code})
	}

	if !logLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "must be one of debug, info, warn, error", c.Log.Level, ErrCodeInvalidEnum)
	}

	if c.TTY.BufferSize < MinBufferSize || c.TTY.BufferSize > MaxBufferSize {
		add("tty.bufferSize", fmt.Sprintf("must be between %d and %d", MinBufferSize, MaxBufferSize),
			c.TTY.BufferSize, ErrCodeOutOfRange)
	}

	flagLists := []struct {
		path  string
		set   termios.FlagSet
		names []string
	}{
		{"tty.iflag", termios.InputFlags, c.TTY.Iflag},
		{"tty.oflag", termios.OutputFlags, c.TTY.Oflag},
		{"tty.cflag", termios.ControlFlags, c.TTY.Cflag},
		{"tty.lflag", termios.LocalFlags, c.TTY.Lflag},
	}
	for _, l := range flagLists {
		if _, err := termios.ParseFlags(l.set, l.names); err != nil {
			add(l.path, err.Error(), l.names, ErrCodeUnknownName)
		}
	}

	for name, value := range c.TTY.ControlChars {
		if _, _, err := ParseControlChar(name, value); err != nil {
			code := ErrCodeBadFormat
			if errors.Is(err, ErrUnknownControlChar) {
				code = ErrCodeUnknownName
			}
			add("tty.controlChars."+name, err.Error(), value, code)
		}
	}

	if c.TTY.Rows < 1 || c.TTY.Rows > 65535 {
		add("tty.rows", "must be between 1 and 65535", c.TTY.Rows, ErrCodeOutOfRange)
	}
	if c.TTY.Cols < 1 || c.TTY.Cols > 65535 {
		add("tty.cols", "must be between 1 and 65535", c.TTY.Cols, ErrCodeOutOfRange)
	}

	if c.PTY.MaxPairs < 1 || c.PTY.MaxPairs > MaxPairsLimit {
		add("pty.maxPairs", fmt.Sprintf("must be between 1 and %d", MaxPairsLimit), c.PTY.MaxPairs, ErrCodeOutOfRange)
	}
	if c.PTY.ShutdownTimeout < 0 {
		add("pty.shutdownTimeout", "must not be negative", c.PTY.ShutdownTimeout, ErrCodeOutOfRange)
	}
	if c.PTY.Device != "" && !filepath.IsAbs(c.PTY.Device) {
		add("pty.device", "must be an absolute path", c.PTY.Device, ErrCodeBadFormat)
	}

	return errors.Join(errs...)
}

// ParseControlChar resolves a control character setting. name is an stty
// name such as "intr" or "min". For min and time the value is a decimal
// count; otherwise it is "^X", "^?" for DEL, "undef" to disable the slot, a
// single literal character, or a number in Go syntax.
func ParseControlChar(name, value string) (int, uint8, error) {
	idx, ok := termios.ControlCharNames[strings.ToLower(name)]
	if !ok {
		return 0, 0, fmt.Errorf("%w %q", ErrUnknownControlChar, name)
	}

	if idx == termios.VMIN || idx == termios.VTIME {
		n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 8)
		if err != nil {
			return 0, 0, fmt.Errorf("%s: %q is not a count in 0..255", name, value)
		}
		return idx, uint8(n), nil
	}

	switch v := value; {
	case v == "" || strings.EqualFold(v, "undef") || v == "^-":
		return idx, termios.Disabled, nil
	case v == "^?":
		return idx, 0x7f, nil
	case len(v) == 2 && v[0] == '^':
		c := v[1]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < '@' || c > '_' {
			return 0, 0, fmt.Errorf("%s: %q is not a control key", name, value)
		}
		return idx, c & 0x1f, nil
	case len(v) == 1:
		return idx, v[0], nil
	}

	n, err := strconv.ParseUint(value, 0, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: cannot parse %q", name, value)
	}
	return idx, uint8(n), nil
}
