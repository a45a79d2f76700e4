package pty

import "errors"

// Sentinel errors for the pty package.
var (
	// ErrManagerClosed is returned when operations are attempted on a closed manager.
	ErrManagerClosed = errors.New("pty manager is closed")

	// ErrNoFreePair is returned when every pair index is in use.
	ErrNoFreePair = errors.New("no free pseudo-terminal pair")

	// ErrNoSuchPair is returned when a pair index is out of range or unallocated.
	ErrNoSuchPair = errors.New("no such pseudo-terminal pair")

	// ErrMasterClosed is returned when opening the slave of a pair whose
	// master is no longer open.
	ErrMasterClosed = errors.New("pseudo-terminal master is closed")

	// ErrFileClosed is returned by operations on a closed File.
	ErrFileClosed = errors.New("file already closed")
)
