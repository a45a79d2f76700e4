package tty

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dshills/ttyld/internal/tty/request"
	"github.com/dshills/ttyld/internal/tty/termios"
)

// readerLocker holds the tty lock of a reading cookie's endpoint for the
// length of one read and keeps the reader's place in the reader queue.
type readerLocker struct {
	tty    *Endpoint
	cookie *Cookie
	owner  *request.Owner
	bytes  int
}

// lockReader takes the tty lock and queues the reader. The caller must
// call unlock.
func lockReader(c *Cookie) *readerLocker {
	l := &readerLocker{
		tty:    c.tty,
		cookie: c,
		owner:  request.NewOwner(c.tty.config.coord),
	}
	l.tty.config.mu.Lock()
	l.owner.Enqueue(c, l.tty.readerQueue, nil)
	return l
}

func (l *readerLocker) unlock() {
	l.owner.Dequeue()
	notifyIfAvailable(l.tty, l.tty.other, true)
	l.tty.config.mu.Unlock()
}

// available returns the bytes the last acquire found readable.
func (l *readerLocker) available() int {
	return l.bytes
}

// acquire waits until needed bytes are readable and it is this reader's
// turn. A timeout <= 0 never blocks. On success available may still be
// short of needed when the peer hung up with a partial line buffered.
func (l *readerLocker) acquire(ctx context.Context, timeout time.Duration, needed int) error {
	if l.cookie.Closed() {
		return ErrFileError
	}
	l.checkBackgroundRead(ctx)

	if l.owner.IsFirstInQueues() {
		l.bytes = l.tty.readableLocked()
		if l.bytes >= needed {
			return nil
		}
		if l.tty.other.hungUpLocked() {
			return l.drainAfterHangup()
		}
	}

	if timeout <= 0 {
		return ErrWouldBlock
	}

	l.owner.SetBytesNeeded(needed)
	notifyIfAvailable(l.tty, l.tty.other, false)

	cfg := l.tty.config
	cfg.mu.Unlock()
	err := l.owner.Wait(ctx, timeout)
	cfg.mu.Lock()

	l.bytes = l.tty.readableLocked()
	if err != nil {
		if errors.Is(err, ErrFileError) && !l.cookie.Closed() && l.tty.other.hungUpLocked() {
			return l.drainAfterHangup()
		}
		return err
	}
	l.checkBackgroundRead(ctx)
	return nil
}

// drainAfterHangup hands out whatever is left once the peer is gone.
func (l *readerLocker) drainAfterHangup() error {
	if n := l.tty.buffer.Readable(); n > 0 {
		l.bytes = n
		return nil
	}
	l.bytes = 0
	return ErrFileError
}

// checkBackgroundRead sends SIGTTIN to a background group reading its
// controlling terminal. The read itself goes ahead.
func (l *readerLocker) checkBackgroundRead(ctx context.Context) {
	if l.tty.isMaster {
		return
	}
	if caller, ok := l.tty.backgroundCallerLocked(ctx); ok {
		l.tty.config.signalGroupLocked(caller.PGID, unix.SIGTTIN)
	}
}

// writerLocker holds the tty lock for one write from a source cookie into
// its peer. A master with echo on also waits for room in its own buffer,
// where the echo goes.
type writerLocker struct {
	source *Endpoint
	target *Endpoint
	cookie *Cookie
	owner  *request.Owner
	echo   bool
	bytes  int
}

// lockWriter takes the tty lock and queues the writer. If the target is not
// open every acquire fails. The caller must call unlock.
func lockWriter(c *Cookie) *writerLocker {
	l := &writerLocker{
		source: c.tty,
		target: c.otherTTY,
		cookie: c,
		owner:  request.NewOwner(c.tty.config.coord),
	}
	cfg := l.source.config
	cfg.mu.Lock()

	if !l.target.isOpenLocked() {
		l.target = nil
		return l
	}
	// Once queued on the target it stays valid until we dequeue: the
	// closer waits for the queue to drain.
	l.echo = l.source.isMaster && echoEnabled(&cfg.termios)
	var echoQueue *request.Queue
	if l.echo {
		echoQueue = l.source.writerQueue
	}
	l.owner.Enqueue(c, l.target.writerQueue, echoQueue)
	return l
}

func (l *writerLocker) unlock() {
	l.owner.Dequeue()
	if l.target != nil {
		notifyIfAvailable(l.target, l.source, true)
	}
	if l.echo {
		notifyIfAvailable(l.source, l.target, true)
	}
	l.source.config.mu.Unlock()
}

func (l *writerLocker) available() int {
	return l.bytes
}

func (l *writerLocker) availableLocked() int {
	n := l.target.buffer.Writable()
	if l.echo {
		n = min(n, l.source.buffer.Writable())
	}
	return n
}

// acquire waits until needed bytes of space are free in the target (and
// the echo buffer) and it is this writer's turn.
func (l *writerLocker) acquire(ctx context.Context, dontBlock bool, needed int) error {
	if !l.target.isOpenLocked() || l.cookie.Closed() {
		return ErrFileError
	}
	if err := l.checkBackgroundWrite(ctx); err != nil {
		return err
	}

	if l.owner.IsFirstInQueues() {
		l.bytes = l.availableLocked()
		if l.bytes >= needed {
			return nil
		}
	}

	if dontBlock {
		return ErrWouldBlock
	}

	// We may be first in one of the queues already; the reset done by
	// SetBytesNeeded would otherwise lose that.
	l.owner.SetBytesNeeded(needed)
	notifyIfAvailable(l.target, l.source, false)
	if l.echo {
		notifyIfAvailable(l.source, l.target, false)
	}

	cfg := l.source.config
	cfg.mu.Unlock()
	err := l.owner.Wait(ctx, request.Infinite)
	cfg.mu.Lock()

	// Re-read the error under the tty lock: a closer may have posted one
	// after we were woken.
	if err == nil {
		err = l.owner.Error()
	}
	if err == nil && (!l.target.isOpenLocked() || l.cookie.Closed()) {
		err = ErrFileError
	}
	if err == nil {
		err = l.checkBackgroundWrite(ctx)
	}
	if err == nil {
		l.bytes = l.availableLocked()
	}
	return err
}

// checkBackgroundWrite stops a background group writing to its controlling
// terminal when TOSTOP is set: the group gets SIGTTOU and the write fails.
func (l *writerLocker) checkBackgroundWrite(ctx context.Context) error {
	cfg := l.source.config
	if l.source.isMaster || !cfg.termios.LEnabled(termios.TOSTOP) {
		return nil
	}
	caller, ok := l.source.backgroundCallerLocked(ctx)
	if !ok {
		return nil
	}
	cfg.signalGroupLocked(caller.PGID, unix.SIGTTOU)
	return ErrInterrupted
}

// backgroundCallerLocked returns the caller if it belongs to a background
// process group of the session e is the controlling terminal of.
func (e *Endpoint) backgroundCallerLocked(ctx context.Context) (Caller, bool) {
	cfg := e.config
	caller, ok := CallerFrom(ctx)
	if !ok || cfg.pgrpID == 0 || caller.PGID == cfg.pgrpID {
		return Caller{}, false
	}
	id, has := cfg.sessions.ControllingTerminal(caller.SID)
	if !has || id != e.name {
		return Caller{}, false
	}
	return caller, true
}

func echoEnabled(t *termios.Termios) bool {
	return t.LEnabled(termios.ECHO) || (t.LEnabled(termios.ECHONL) && t.Canonical())
}

// notifyIfAvailable wakes the head reader of tty if something is readable
// and the head writer into tty if there is room. With notifySelect, idle
// queues turn into select events instead: read readiness on tty, write
// readiness on other, since writes into tty come from there.
func notifyIfAvailable(tty, other *Endpoint, notifySelect bool) {
	if tty == nil {
		return
	}

	if tty.buffer.Readable() > 0 {
		if readable := tty.readableLocked(); readable > 0 {
			if tty.readerQueue.IsEmpty() {
				if notifySelect {
					tty.selectPool.notify(SelectRead)
				}
			} else {
				tty.readerQueue.NotifyFirst(readable)
			}
		}
	}

	if writable := tty.buffer.Writable(); writable > 0 {
		if tty.writerQueue.IsEmpty() {
			if notifySelect && other.isOpenLocked() {
				other.selectPool.notify(SelectWrite)
			}
		} else {
			tty.writerQueue.NotifyFirst(writable)
		}
	}
}
