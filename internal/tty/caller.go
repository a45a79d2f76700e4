package tty

import "context"

// Caller identifies the process on whose behalf an operation runs. Job
// control decisions (background reads and writes, becoming the controlling
// terminal) are made against it.
type Caller struct {
	PID  int
	PGID int
	SID  int
}

// IsSessionLeader reports whether the caller leads its session.
func (c Caller) IsSessionLeader() bool {
	return c.PID != 0 && c.PID == c.SID
}

type callerKey struct{}

// WithCaller returns a context carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored in ctx. Operations without a caller
// are treated as coming from the foreground process group.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
