package tty

import "golang.org/x/sys/unix"

// Sessions is the process and session manager the line discipline reports
// to. Terminals are identified by their endpoint name.
//
// Methods are called with the tty lock held and must not call back into
// the terminal.
type Sessions interface {
	// SendSignal delivers sig to target; a negative target is a process
	// group.
	SendSignal(target int, sig unix.Signal) error

	// ControllingTerminal returns the terminal controlling session sid.
	ControllingTerminal(sid int) (string, bool)

	// SetControllingTerminal attaches (or with an empty id detaches) the
	// controlling terminal of session sid.
	SetControllingTerminal(sid int, id string) error

	// SetForegroundProcessGroup records the foreground group of the session
	// controlled by terminal id.
	SetForegroundProcessGroup(id string, pgid int) error
}

// Logger receives diagnostics the line discipline cannot return to a
// caller. Messages are printf-style.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any) {}

// noSessions drops signals and keeps no controlling terminals.
type noSessions struct{}

func (noSessions) SendSignal(int, unix.Signal) error { return nil }
func (noSessions) ControllingTerminal(int) (string, bool) { return "", false }
func (noSessions) SetControllingTerminal(int, string) error { return nil }
func (noSessions) SetForegroundProcessGroup(string, int) error { return nil }
