package transport

import "errors"

// ErrUnsupported is returned where the platform has no serial support.
var ErrUnsupported = errors.New("serial transport not supported on this platform")

// ErrClosed is returned by operations on a closed serial transport.
var ErrClosed = errors.New("serial transport is closed")
