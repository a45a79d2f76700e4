package tty

import (
	"context"

	"github.com/dshills/ttyld/internal/tty/charproc"
)

// Write writes p through the endpoint c was opened on to its peer. Master
// writes are input to the slave: they are translated, edited, may raise
// signals and are echoed back to the master. Slave writes are output:
// they are post-processed into the master's buffer.
func Write(ctx context.Context, c *Cookie, p []byte) (int, error) {
	if !c.enter() {
		return 0, newOpError("write", c.tty, ErrFileError)
	}
	defer c.leave()

	var n int
	var err error
	if c.tty.isMaster {
		n, err = writeFromMaster(ctx, c, p)
	} else {
		n, err = writeFromSlave(ctx, c, p)
	}
	return n, newOpError("write", c.tty, err)
}

func writeFromMaster(ctx context.Context, c *Cookie, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	l := lockWriter(c)
	defer l.unlock()

	dontBlock := c.mode&NonBlocking != 0
	if err := l.acquire(ctx, dontBlock, 0); err != nil {
		return 0, err
	}

	source, target := l.source, l.target
	writable := l.available()
	written, unannounced := 0, 0
	var err error

	for written < len(p) {
		// Settings may change while we wait; never carry them across.
		t := &source.config.termios
		in, needed, skip := charproc.ProcessInput(t, p[written])
		if skip {
			written++
			continue
		}

		var echo [charproc.MaxOutput]byte
		echoed := 0
		if l.echo {
			echoed = charproc.ProcessOutput(t, in, true, &echo)
			needed = max(needed, echoed)
		}

		if writable < needed {
			if unannounced > 0 {
				notifyIfAvailable(target, source, true)
				if l.echo {
					notifyIfAvailable(source, target, true)
				}
				unannounced = 0
			}
			if err = l.acquire(ctx, dontBlock, needed); err != nil {
				break
			}
			writable = l.available()
			continue
		}

		target.inputPutcLocked(in)
		for _, b := range echo[:echoed] {
			source.buffer.Putc(b)
		}
		writable -= needed
		written++
		unannounced++
	}

	if written > 0 {
		return written, nil
	}
	return 0, err
}

func writeFromSlave(ctx context.Context, c *Cookie, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	l := lockWriter(c)
	defer l.unlock()

	dontBlock := c.mode&NonBlocking != 0
	if err := l.acquire(ctx, dontBlock, 0); err != nil {
		return 0, err
	}

	source, target := l.source, l.target
	writable := l.available()
	written, unannounced := 0, 0
	var err error

	for written < len(p) {
		var out [charproc.MaxOutput]byte
		needed := charproc.ProcessOutput(&source.config.termios, p[written], false, &out)

		if writable < needed {
			if unannounced > 0 {
				notifyIfAvailable(target, source, true)
				unannounced = 0
			}
			if err = l.acquire(ctx, dontBlock, needed); err != nil {
				break
			}
			writable = l.available()
			continue
		}

		for _, b := range out[:needed] {
			target.buffer.Putc(b)
		}
		writable -= needed
		written++
		unannounced += needed
	}

	if written > 0 {
		return written, nil
	}
	return 0, err
}
