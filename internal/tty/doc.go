// Package tty implements the terminal line discipline of a master/slave
// terminal pair.
//
// A pair consists of two Endpoints sharing one PairedConfiguration: the
// termios settings, the window size, the foreground process group and the
// lock covering both halves. Each endpoint owns its own input buffer. Bytes
// written to the master pass through input processing (signals, line
// editing, echo) into the slave's buffer; bytes written to the slave pass
// through output processing into the master's buffer.
//
// # Concurrency
//
// Three locks are involved, always taken in this order:
//
//   - the tty lock (PairedConfiguration), held while buffers, settings,
//     counters or select pools are inspected or changed;
//   - the request lock (request.Coordinator), held for short queue updates;
//   - the per-cookie lock, guarding only the in-flight count and the closed
//     flag of one open handle.
//
// Blocking happens in exactly one place, request.Owner.Wait, and always with
// the tty lock released. Readers and writers queue up per endpoint; only the
// head of a queue is woken when bytes or space become available, so waiters
// are served in arrival order.
//
// # Operations
//
// The surface mirrors what a file system layer needs: Create and Destroy for
// endpoints, CreateCookie, CloseCookie and DestroyCookie for open handles,
// Read, Write, Control, Select, Deselect and HardwareSignal.
//
// Reads and writes report partial transfers as success: an error is only
// returned when no byte was moved.
package tty
