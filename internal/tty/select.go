package tty

// SelectEvent is an event a select or poll caller can wait for.
type SelectEvent uint8

// Select events.
const (
	SelectRead SelectEvent = iota + 1
	SelectWrite
	SelectError
)

// String returns the event name.
func (e SelectEvent) String() string {
	switch e {
	case SelectRead:
		return "read"
	case SelectWrite:
		return "write"
	case SelectError:
		return "error"
	default:
		return "unknown"
	}
}

func (e SelectEvent) valid() bool {
	return e >= SelectRead && e <= SelectError
}

// SelectSync receives select notifications. Notify is called with the tty
// lock held and must not block or call back into the terminal.
type SelectSync interface {
	Notify(ref uint32, event SelectEvent)
}

type selectEntry struct {
	sync   SelectSync
	ref    uint32
	events uint8
}

// selectPool is the set of select registrations of one endpoint. It is
// guarded by the tty lock.
type selectPool struct {
	entries []*selectEntry
}

func (p *selectPool) add(sync SelectSync, ref uint32, event SelectEvent) {
	for _, e := range p.entries {
		if e.sync == sync {
			e.ref = ref
			e.events |= 1 << event
			return
		}
	}
	p.entries = append(p.entries, &selectEntry{sync: sync, ref: ref, events: 1 << event})
}

func (p *selectPool) remove(sync SelectSync, event SelectEvent) {
	for i, e := range p.entries {
		if e.sync != sync {
			continue
		}
		e.events &^= 1 << event
		if e.events == 0 {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
		}
		return
	}
}

func (p *selectPool) notify(event SelectEvent) {
	for _, e := range p.entries {
		if e.events&(1<<event) != 0 {
			e.sync.Notify(e.ref, event)
		}
	}
}

func (p *selectPool) clear() {
	p.entries = nil
}

// Select registers sync for event on the endpoint c was opened on. If the
// event is already present and nobody is queued ahead, sync is notified
// before Select returns. A closed cookie is always ready.
func Select(c *Cookie, event SelectEvent, ref uint32, sync SelectSync) error {
	if !event.valid() || sync == nil {
		return newOpError("select", c.tty, ErrBadValue)
	}
	if !c.enter() {
		sync.Notify(ref, event)
		return nil
	}
	defer c.leave()

	tty := c.tty
	cfg := tty.config
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	tty.selectPool.add(sync, ref, event)

	switch event {
	case SelectRead:
		if tty.readerQueue.IsEmpty() && (tty.readableLocked() > 0 || tty.other.hungUpLocked()) {
			sync.Notify(ref, event)
		}

	case SelectWrite:
		// writes go to the peer; a missing peer fails at once
		other := c.otherTTY
		if !other.isOpenLocked() {
			sync.Notify(ref, event)
			break
		}
		if !other.writerQueue.IsEmpty() || other.buffer.Writable() == 0 {
			break
		}
		// echoed input needs room on our side as well
		echo := tty.isMaster && echoEnabled(&cfg.termios)
		if !echo || (tty.writerQueue.IsEmpty() && tty.buffer.Writable() > 0) {
			sync.Notify(ref, event)
		}
	}
	return nil
}

// Deselect removes the registration of sync for event.
func Deselect(c *Cookie, event SelectEvent, sync SelectSync) error {
	if !event.valid() {
		return newOpError("deselect", c.tty, ErrBadValue)
	}
	if !c.enter() {
		return nil
	}
	defer c.leave()

	cfg := c.tty.config
	cfg.mu.Lock()
	c.tty.selectPool.remove(sync, event)
	cfg.mu.Unlock()
	return nil
}
