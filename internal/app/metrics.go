package app

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/ttyld/internal/integration/session"
)

// Metrics tracks pair and signal counters. It implements
// pty.EventPublisher so a Manager can feed it directly.
type Metrics struct {
	mu        sync.RWMutex
	startTime time.Time

	pairsCreated atomic.Uint64
	pairsClosed  atomic.Uint64

	// Pair lifetimes
	lifeCount   atomic.Uint64
	lifeTotalNs atomic.Int64
	lifeMinNs   atomic.Int64
	lifeMaxNs   atomic.Int64

	signals atomic.Uint64
	events  atomic.Uint64
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{startTime: time.Now()}
	m.lifeMinNs.Store(1<<63 - 1)
	return m
}

// Publish records a pty event.
func (m *Metrics) Publish(eventType string, data map[string]any) {
	m.events.Add(1)

	switch eventType {
	case "pty.created":
		m.pairsCreated.Add(1)
	case "pty.closed":
		m.pairsClosed.Add(1)
		if s, ok := data["uptime"].(string); ok {
			if d, err := time.ParseDuration(s); err == nil {
				m.recordLifetime(d)
			}
		}
	}
}

func (m *Metrics) recordLifetime(d time.Duration) {
	ns := d.Nanoseconds()
	m.lifeCount.Add(1)
	m.lifeTotalNs.Add(ns)

	for {
		old := m.lifeMinNs.Load()
		if ns >= old || m.lifeMinNs.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.lifeMaxNs.Load()
		if ns <= old || m.lifeMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordSignal records a signal generated by a terminal.
func (m *Metrics) RecordSignal(session.Delivery) {
	m.signals.Add(1)
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	start := m.startTime
	m.mu.RUnlock()

	created := m.pairsCreated.Load()
	closed := m.pairsClosed.Load()

	var avg int64
	if n := m.lifeCount.Load(); n > 0 {
		avg = m.lifeTotalNs.Load() / int64(n)
	}
	minNs := m.lifeMinNs.Load()
	if minNs == 1<<63-1 {
		minNs = 0
	}

	var open uint64
	if created > closed {
		open = created - closed
	}

	return MetricsSnapshot{
		Uptime:          time.Since(start),
		PairsCreated:    created,
		PairsClosed:     closed,
		OpenPairs:       open,
		AvgPairLifetime: time.Duration(avg),
		MinPairLifetime: time.Duration(minNs),
		MaxPairLifetime: time.Duration(m.lifeMaxNs.Load()),
		Signals:         m.signals.Load(),
		Events:          m.events.Load(),
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.pairsCreated.Store(0)
	m.pairsClosed.Store(0)
	m.lifeCount.Store(0)
	m.lifeTotalNs.Store(0)
	m.lifeMinNs.Store(1<<63 - 1)
	m.lifeMaxNs.Store(0)
	m.signals.Store(0)
	m.events.Store(0)

	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime          time.Duration
	PairsCreated    uint64
	PairsClosed     uint64
	OpenPairs       uint64
	AvgPairLifetime time.Duration
	MinPairLifetime time.Duration
	MaxPairLifetime time.Duration
	Signals         uint64
	Events          uint64
}
