package tty

import (
	"errors"
	"fmt"

	"github.com/dshills/ttyld/internal/tty/request"
)

// Line discipline errors.
var (
	// ErrWouldBlock is returned by non-blocking calls that cannot proceed.
	ErrWouldBlock = errors.New("operation would block")

	// ErrFileError indicates the endpoint, its peer or the cookie is gone.
	ErrFileError = errors.New("file error")

	// ErrBadValue indicates a malformed control argument or select event.
	ErrBadValue = errors.New("bad value")

	// ErrBadAddress indicates a failed copy to or from a caller buffer.
	ErrBadAddress = errors.New("bad address")

	// ErrNotAllowed indicates a job control request the caller may not make.
	ErrNotAllowed = errors.New("operation not allowed")

	// ErrNoMemory indicates an allocation failure.
	ErrNoMemory = errors.New("no memory")

	// ErrBusy indicates the endpoint is opened exclusively or still in use.
	ErrBusy = errors.New("device busy")

	// ErrInterrupted is returned when a blocked call is cancelled.
	ErrInterrupted = request.ErrInterrupted

	// ErrTimedOut is returned when a blocked call runs out of time.
	ErrTimedOut = request.ErrTimedOut
)

// OperationError records the operation and endpoint that failed.
type OperationError struct {
	Op       string // operation name (e.g. "read", "control")
	Endpoint string // endpoint name
	Err      error  // underlying error
}

func newOpError(op string, e *Endpoint, err error) error {
	if err == nil {
		return nil
	}
	name := ""
	if e != nil {
		name = e.name
	}
	return &OperationError{Op: op, Endpoint: name, Err: err}
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Endpoint != "" {
		return fmt.Sprintf("tty %s %s: %v", e.Op, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("tty %s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is implements errors.Is for OperationError.
// Matches both the wrapper itself and the wrapped error.
func (e *OperationError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*OperationError); ok {
		return e == t
	}
	return errors.Is(e.Err, target)
}
