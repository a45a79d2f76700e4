package tty

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/ttyld/internal/tty/request"
	"github.com/dshills/ttyld/internal/tty/termios"
)

// vtimeUnit is the unit of the VTIME control character.
const vtimeUnit = 100 * time.Millisecond

// Read reads from the endpoint c was opened on.
//
// A canonical slave returns at most one line; an EOF character ends the
// read without being copied. A raw slave honours VMIN and VTIME: with
// VMIN > 0 the read waits for min(VMIN, len(p)) bytes and VTIME is the gap
// allowed between bytes; with VMIN == 0, VTIME is the total time to wait
// and running out of it is a 0-byte success. The master returns whatever
// is buffered.
func Read(ctx context.Context, c *Cookie, p []byte) (int, error) {
	if !c.enter() {
		return 0, newOpError("read", c.tty, ErrFileError)
	}
	defer c.leave()

	n, err := inputRead(ctx, c, p)
	return n, newOpError("read", c.tty, err)
}

func inputRead(ctx context.Context, c *Cookie, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	tty := c.tty
	l := lockReader(c)
	defer l.unlock()

	t := &tty.config.termios
	dontBlock := c.mode&NonBlocking != 0
	raw := !tty.isMaster && !t.Canonical()
	timeout := request.Infinite
	if dontBlock {
		timeout = 0
	}
	var interChar time.Duration
	needed := 1
	// with a finite gap the clock only starts at the first byte
	gapTimed := false

	if raw && !dontBlock {
		vmin := int(t.CC[termios.VMIN])
		vtime := time.Duration(t.CC[termios.VTIME]) * vtimeUnit
		if vmin == 0 {
			timeout = vtime
		} else {
			interChar = vtime
			if vtime == 0 {
				interChar = request.Infinite
			}
			gapTimed = vtime > 0
			needed = min(vmin, len(p))
		}
	}

	var n int
	var err error
	for needed > 0 && n < len(p) {
		want := needed
		if gapTimed && n == 0 {
			want = 1
		}
		err = l.acquire(ctx, timeout, want)
		toRead := min(l.available(), len(p)-n)
		if err != nil && toRead == 0 {
			break
		}

		var isEOF func(byte) bool
		if !raw && tty.pendingEOF > 0 {
			isEOF = t.IsEOF
		}
		read, hitEOF := tty.buffer.Read(p[n:n+toRead], isEOF)
		n += read
		needed = max(needed-read, 0)
		if hitEOF {
			tty.pendingEOF--
			break
		}
		if read > 0 && interChar > 0 {
			timeout = interChar
		}
	}

	if raw && !dontBlock && (errors.Is(err, ErrWouldBlock) || errors.Is(err, ErrTimedOut)) {
		err = nil
	}
	if n > 0 {
		return n, nil
	}
	return 0, err
}
