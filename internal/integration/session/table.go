// Package session keeps the session and process-group bookkeeping a terminal
// needs for job control: which terminal controls which session, which group
// is in the foreground, and where signals generated by the line discipline
// go.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrNoSuchGroup is returned when signalling an unknown process group.
	ErrNoSuchGroup = errors.New("no such process group")

	// ErrAlreadyControlled is returned when a session already has a
	// controlling terminal other than the one requested.
	ErrAlreadyControlled = errors.New("session already has a controlling terminal")
)

// Delivery records one signal sent through the table.
type Delivery struct {
	Target int // negative: process group
	Signal unix.Signal
	Time   time.Time
}

// String returns a short description of the delivery.
func (d Delivery) String() string {
	return fmt.Sprintf("%s -> %d", unix.SignalName(d.Signal), d.Target)
}

type sessionInfo struct {
	controlling string
	foreground  int
}

// Table is an in-memory session manager. It is safe for concurrent use.
type Table struct {
	mu         sync.Mutex
	sessions   map[int]*sessionInfo
	groups     map[int]int
	deliveries []Delivery
	handlers   []func(Delivery)
	host       bool
	strict     bool
}

// Option configures a Table.
type Option func(*Table)

// WithHostDelivery forwards every signal to the host with kill(2).
func WithHostDelivery() Option {
	return func(t *Table) { t.host = true }
}

// WithStrictGroups makes SendSignal fail for groups that were never added.
func WithStrictGroups() Option {
	return func(t *Table) { t.strict = true }
}

// NewTable returns an empty table.
func NewTable(opts ...Option) *Table {
	t := &Table{
		sessions: make(map[int]*sessionInfo),
		groups:   make(map[int]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AddGroup registers process group pgid as a member of session sid.
func (t *Table) AddGroup(pgid, sid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.groups[pgid] = sid
	if _, ok := t.sessions[sid]; !ok {
		t.sessions[sid] = &sessionInfo{}
	}
}

// OnSignal registers fn to be called for every delivery, after it has been
// recorded. fn runs on the sending goroutine and must not block.
func (t *Table) OnSignal(fn func(Delivery)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, fn)
}

// SendSignal delivers sig to target; a negative target names a process
// group.
func (t *Table) SendSignal(target int, sig unix.Signal) error {
	t.mu.Lock()
	if t.strict && target < 0 {
		if _, ok := t.groups[-target]; !ok {
			t.mu.Unlock()
			return fmt.Errorf("%w: %d", ErrNoSuchGroup, -target)
		}
	}
	d := Delivery{Target: target, Signal: sig, Time: time.Now()}
	t.deliveries = append(t.deliveries, d)
	handlers := append([]func(Delivery){}, t.handlers...)
	host := t.host
	t.mu.Unlock()

	for _, fn := range handlers {
		fn(d)
	}
	if host {
		if err := unix.Kill(target, sig); err != nil {
			return fmt.Errorf("kill %d: %w", target, err)
		}
	}
	return nil
}

// Deliveries returns a copy of the signals sent so far.
func (t *Table) Deliveries() []Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Delivery(nil), t.deliveries...)
}

// ControllingTerminal returns the terminal controlling session sid.
func (t *Table) ControllingTerminal(sid int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[sid]
	if !ok || s.controlling == "" {
		return "", false
	}
	return s.controlling, true
}

// SetControllingTerminal makes terminal id the controlling terminal of
// session sid. An empty id detaches the session.
func (t *Table) SetControllingTerminal(sid int, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[sid]
	if !ok {
		s = &sessionInfo{}
		t.sessions[sid] = s
	}
	if id != "" && s.controlling != "" && s.controlling != id {
		return ErrAlreadyControlled
	}
	s.controlling = id
	if id == "" {
		s.foreground = 0
	}
	return nil
}

// SetForegroundProcessGroup records pgid as the foreground group of the
// session controlled by terminal id.
func (t *Table) SetForegroundProcessGroup(id string, pgid int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.sessions {
		if s.controlling == id {
			s.foreground = pgid
			return nil
		}
	}
	return nil
}

// ForegroundProcessGroup returns the foreground group of session sid.
func (t *Table) ForegroundProcessGroup(sid int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[sid]; ok {
		return s.foreground
	}
	return 0
}
