// Package pty allocates pseudo-terminal pairs on top of the tty line
// discipline and hands out file-like handles to their endpoints.
//
// # Pairs
//
// A pair is a master endpoint and a slave endpoint sharing one terminal
// configuration. Pairs are numbered 0 to MaxPairs-1; the master of pair N is
// named "pty/N" and the slave "tty/N", and the slave name is what sessions
// record as their controlling terminal.
//
// OpenMaster allocates the lowest free pair and opens its master. OpenSlave
// opens the slave of a pair whose master is open. A pair is released, and its
// index becomes free again, once every File opened on it has been closed.
//
// # Files
//
// A File adapts one open of an endpoint to io.ReadWriteCloser. The
// ReadContext and WriteContext variants take a context whose cancellation
// interrupts a blocked operation. Control, Select and Deselect expose the
// remaining line discipline operations.
//
// # Events
//
// When an EventPublisher is configured the manager publishes:
//
//   - pty.created: a pair was allocated (id, index, master, slave)
//   - pty.closed: a pair was released (id, index, uptime)
//
// # Thread Safety
//
// Manager and File are safe for concurrent use.
package pty
