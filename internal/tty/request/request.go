package request

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Infinite disables the timeout of Owner.Wait.
const Infinite = time.Duration(1<<63 - 1)

var (
	// ErrInterrupted is returned by Wait when its context is cancelled.
	ErrInterrupted = errors.New("interrupted")

	// ErrTimedOut is returned by Wait when the timeout expires first.
	ErrTimedOut = errors.New("timed out")
)

// Coordinator owns the request lock shared by a set of queues and owners.
// One coordinator typically serves every terminal pair of a driver instance.
type Coordinator struct {
	mu sync.Mutex
}

// NewCoordinator returns a new coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Request is one owner's registration in one queue.
type Request struct {
	owner    *Owner
	cookie   any
	needed   int
	notified bool
	errored  bool
}

func (r *Request) init(owner *Owner, cookie any, needed int) {
	r.owner = owner
	r.cookie = cookie
	r.needed = needed
	r.notified = false
	r.errored = false
}

// notify marks r satisfied if available covers its need. A notified request
// is never notified again.
func (r *Request) notify(available int) {
	if !r.notified && available >= r.needed && r.owner != nil {
		r.owner.notifyLocked(r)
		r.notified = true
	}
}

func (r *Request) notifyError(err error) {
	if !r.errored && r.owner != nil {
		r.owner.notifyErrorLocked(err)
		r.errored = true
		r.notified = true
	}
}

// Queue is a FIFO of requests waiting on one buffer.
type Queue struct {
	coord    *Coordinator
	requests []*Request
}

// NewQueue returns an empty queue guarded by c.
func NewQueue(c *Coordinator) *Queue {
	return &Queue{coord: c}
}

// IsEmpty reports whether nobody is waiting.
func (q *Queue) IsEmpty() bool {
	q.coord.mu.Lock()
	defer q.coord.mu.Unlock()
	return len(q.requests) == 0
}

// Len returns the number of queued requests.
func (q *Queue) Len() int {
	q.coord.mu.Lock()
	defer q.coord.mu.Unlock()
	return len(q.requests)
}

func (q *Queue) firstLocked() *Request {
	if len(q.requests) == 0 {
		return nil
	}
	return q.requests[0]
}

func (q *Queue) addLocked(r *Request) {
	q.requests = append(q.requests, r)
}

func (q *Queue) removeLocked(r *Request) {
	if i := slices.Index(q.requests, r); i >= 0 {
		q.requests = slices.Delete(q.requests, i, i+1)
	}
}

// NotifyFirst tells the head of the queue that available bytes (or bytes of
// space) are now present. Requests behind the head are left alone.
func (q *Queue) NotifyFirst(available int) {
	q.coord.mu.Lock()
	defer q.coord.mu.Unlock()
	if r := q.firstLocked(); r != nil {
		r.notify(available)
	}
}

// NotifyError posts err to every request in the queue.
func (q *Queue) NotifyError(err error) {
	q.coord.mu.Lock()
	defer q.coord.mu.Unlock()
	for _, r := range q.requests {
		r.notifyError(err)
	}
}

// NotifyErrorFor posts err to the requests registered for cookie.
func (q *Queue) NotifyErrorFor(cookie any, err error) {
	q.coord.mu.Lock()
	defer q.coord.mu.Unlock()
	for _, r := range q.requests {
		if r.cookie == cookie {
			r.notifyError(err)
		}
	}
}

// Owner is the waiting side of up to two requests.
type Owner struct {
	coord    *Coordinator
	cookie   any
	needed   int
	queues   [2]*Queue
	requests [2]Request
	wake     chan struct{}
	err      error
}

// NewOwner returns an owner guarded by c.
func NewOwner(c *Coordinator) *Owner {
	return &Owner{coord: c, needed: 1}
}

// Enqueue appends the owner's requests to queue1 and, if non-nil, queue2. A
// nil queue counts as already satisfied.
func (o *Owner) Enqueue(cookie any, queue1, queue2 *Queue) {
	o.coord.mu.Lock()
	defer o.coord.mu.Unlock()

	o.cookie = cookie
	o.queues = [2]*Queue{queue1, queue2}
	for i, q := range o.queues {
		r := &o.requests[i]
		r.init(o, cookie, o.needed)
		if q != nil {
			q.addLocked(r)
		} else {
			r.notify(o.needed)
		}
	}
}

// Dequeue removes the owner's requests from their queues.
func (o *Owner) Dequeue() {
	o.coord.mu.Lock()
	defer o.coord.mu.Unlock()

	for i, q := range o.queues {
		if q != nil {
			q.removeLocked(&o.requests[i])
		}
	}
	o.queues = [2]*Queue{}
}

// SetBytesNeeded changes the amount the owner waits for and resets the
// notification state of its queued requests, so that a notification from
// before the call cannot satisfy the new need.
func (o *Owner) SetBytesNeeded(n int) {
	o.coord.mu.Lock()
	defer o.coord.mu.Unlock()

	o.needed = n
	for i, q := range o.queues {
		if q != nil {
			o.requests[i].init(o, o.cookie, n)
		}
	}
}

// IsFirstInQueues reports whether each queued request is at its queue head.
func (o *Owner) IsFirstInQueues() bool {
	o.coord.mu.Lock()
	defer o.coord.mu.Unlock()

	for i, q := range o.queues {
		if q != nil && q.firstLocked() != &o.requests[i] {
			return false
		}
	}
	return true
}

// Error returns the first error posted to the owner.
func (o *Owner) Error() error {
	o.coord.mu.Lock()
	defer o.coord.mu.Unlock()
	return o.err
}

// Wait blocks until both requests have been notified, an error has been
// posted, ctx is done or timeout elapses. It returns at once if the owner is
// already satisfied. Interruption and timeout are recorded as the owner's
// error unless another error was posted first.
func (o *Owner) Wait(ctx context.Context, timeout time.Duration) error {
	o.coord.mu.Lock()
	if o.err == nil && !o.satisfiedLocked() {
		wake := make(chan struct{}, 1)
		o.wake = wake
		o.coord.mu.Unlock()

		var expired <-chan time.Time
		if timeout < Infinite {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			expired = timer.C
		}

		var err error
		select {
		case <-wake:
		case <-ctx.Done():
			err = fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		case <-expired:
			err = ErrTimedOut
		}

		o.coord.mu.Lock()
		o.wake = nil
		if err != nil && o.err == nil {
			o.err = err
		}
	}
	err := o.err
	o.coord.mu.Unlock()
	return err
}

func (o *Owner) satisfiedLocked() bool {
	return o.requests[0].notified && o.requests[1].notified
}

// notifyLocked wakes the owner once r and its sibling are both notified.
func (o *Owner) notifyLocked(r *Request) {
	if o.wake == nil {
		return
	}
	if (r == &o.requests[0] || o.requests[0].notified) &&
		(r == &o.requests[1] || o.requests[1].notified) {
		o.signalLocked()
	}
}

func (o *Owner) notifyErrorLocked(err error) {
	if o.err != nil {
		return
	}
	o.err = err
	if !o.satisfiedLocked() {
		o.signalLocked()
	}
}

func (o *Owner) signalLocked() {
	if o.wake == nil {
		return
	}
	select {
	case o.wake <- struct{}{}:
	default:
	}
}
