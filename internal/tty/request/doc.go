// Package request implements the wait queues that order blocked terminal
// readers and writers.
//
// Every blocking operation is represented by an Owner. An Owner registers
// one Request in each queue it depends on (a master-side echoing write
// depends on two buffers: the peer's and its own) and then waits until every
// Request has been notified or an error has been posted. Only the request at
// the head of a queue is ever notified about new bytes, so waiters are served
// strictly in registration order.
//
// All queue, request and owner state is guarded by the lock of the
// Coordinator they were created with. The lock is only held for short
// critical sections and never while an owner is blocked.
package request
