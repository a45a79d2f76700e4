package tty

import (
	"context"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/dshills/ttyld/internal/tty/request"
)

// OpenMode holds the flags an endpoint was opened with.
type OpenMode int

const (
	// NonBlocking makes reads and writes fail with ErrWouldBlock instead of
	// waiting.
	NonBlocking OpenMode = 1 << iota
	// NoControllingTerminal keeps a session leader opening a slave from
	// acquiring it as controlling terminal.
	NoControllingTerminal
)

// Cookie is one open of one endpoint.
type Cookie struct {
	tty      *Endpoint
	otherTTY *Endpoint
	mode     OpenMode // guarded by the tty lock

	mu          sync.Mutex
	threadCount int
	closed      bool
	destroyed   bool
	drained     chan struct{}
}

// CreateCookie opens tty. other is the peer the cookie writes to; nil
// selects tty's peer.
func CreateCookie(ctx context.Context, tty, other *Endpoint, mode OpenMode) (*Cookie, error) {
	if tty == nil {
		return nil, newOpError("open", nil, ErrBadValue)
	}

	cfg := tty.config
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	if tty.destroyed {
		return nil, newOpError("open", tty, ErrFileError)
	}
	if tty.exclusive && tty.openCount > 0 {
		return nil, newOpError("open", tty, ErrBusy)
	}
	if other == nil {
		other = tty.other
	}

	c := &Cookie{tty: tty, otherTTY: other, mode: mode}
	if tty.openCount == 0 {
		tty.clearLocked()
		tty.state = StateOpen
	}
	tty.cookies = append(tty.cookies, c)
	tty.openCount++
	tty.openedCount++
	tty.refCount++

	if !tty.isMaster && mode&NoControllingTerminal == 0 {
		if caller, ok := CallerFrom(ctx); ok && caller.IsSessionLeader() {
			if _, has := cfg.sessions.ControllingTerminal(caller.SID); !has && cfg.sessionID == 0 {
				if err := tty.becomeControllingLocked(caller); err != nil {
					cfg.logger.Warn("%s: controlling terminal for session %d: %v", tty.name, caller.SID, err)
				}
			}
		}
	}
	return c, nil
}

// Endpoint returns the endpoint the cookie was opened on.
func (c *Cookie) Endpoint() *Endpoint {
	return c.tty
}

// Peer returns the endpoint writes go to.
func (c *Cookie) Peer() *Endpoint {
	return c.otherTTY
}

// Mode returns the current open mode.
func (c *Cookie) Mode() OpenMode {
	c.tty.config.mu.Lock()
	defer c.tty.config.mu.Unlock()
	return c.mode
}

// Closed reports whether CloseCookie has been called.
func (c *Cookie) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// enter registers an in-flight operation. It fails once the cookie is
// closed.
func (c *Cookie) enter() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.threadCount++
	return true
}

// leave ends an in-flight operation and releases a waiting closer when it
// was the last one.
func (c *Cookie) leave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threadCount--
	if c.threadCount == 0 && c.drained != nil {
		close(c.drained)
		c.drained = nil
	}
}

// CloseCookie marks c closed, wakes and waits for the operations still
// running on it, and detaches it from its endpoint. When c was the last
// open cookie the endpoint is shut down: waiters on both ends fail with
// ErrFileError, the input buffer is dropped and the peer's select pool is
// told. Closing a closed cookie does nothing.
func CloseCookie(c *Cookie) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	var drained chan struct{}
	if c.threadCount > 0 {
		drained = make(chan struct{})
		c.drained = drained
	}
	c.mu.Unlock()

	tty := c.tty
	cfg := tty.config

	if drained != nil {
		cfg.mu.Lock()
		tty.readerQueue.NotifyErrorFor(c, ErrFileError)
		tty.writerQueue.NotifyErrorFor(c, ErrFileError)
		if other := c.otherTTY; other.isOpenLocked() {
			other.readerQueue.NotifyErrorFor(c, ErrFileError)
			other.writerQueue.NotifyErrorFor(c, ErrFileError)
		}
		cfg.mu.Unlock()

		cfg.logger.Debug("%s: waiting for in-flight operations to drain", tty.name)
		<-drained
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	tty.removeCookieLocked(c)
	tty.openCount--
	if tty.openCount > 0 {
		return
	}
	tty.state = StateClosing

	other := tty.other
	if other != nil {
		other.readerQueue.NotifyError(ErrFileError)
		other.writerQueue.NotifyError(ErrFileError)
	}

	// Writers from the peer may still believe there is room in our buffer.
	// Fail them, then queue behind them so that the last one is gone before
	// the buffer is dropped.
	if !tty.writerQueue.IsEmpty() {
		tty.writerQueue.NotifyError(ErrFileError)

		owner := request.NewOwner(cfg.coord)
		owner.Enqueue(c, tty.writerQueue, nil)
		tty.clearLocked()

		cfg.mu.Unlock()
		_ = owner.Wait(context.Background(), request.Infinite)
		cfg.mu.Lock()

		owner.Dequeue()
	}

	if tty.openCount > 0 {
		// reopened while we were waiting
		return
	}
	tty.clearLocked()
	tty.state = StateClosed
	cfg.logger.Debug("%s: closed", tty.name)

	if tty.isMaster {
		cfg.signalGroupLocked(cfg.pgrpID, unix.SIGHUP)
	}
	if other.isOpenLocked() {
		other.selectPool.notify(SelectRead)
		other.selectPool.notify(SelectWrite)
		other.selectPool.notify(SelectError)
	}
}

// DestroyCookie releases c. It closes c first if that has not happened.
func DestroyCookie(c *Cookie) {
	CloseCookie(c)

	cfg := c.tty.config
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	c.mu.Lock()
	already := c.destroyed
	c.destroyed = true
	c.mu.Unlock()

	if !already {
		c.tty.refCount--
	}
}
