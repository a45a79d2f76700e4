package app

import (
	"testing"
	"time"

	"github.com/dshills/ttyld/internal/integration/session"
)

func TestMetricsPublish(t *testing.T) {
	m := NewMetrics()

	m.Publish("pty.created", map[string]any{"index": 0})
	m.Publish("pty.created", map[string]any{"index": 1})
	m.Publish("pty.closed", map[string]any{"index": 0, "uptime": "2s"})
	m.Publish("pty.closed", map[string]any{"index": 1, "uptime": "4s"})
	m.Publish("pty.created", map[string]any{"index": 0})
	m.Publish("other", nil)

	s := m.Snapshot()
	if s.PairsCreated != 3 || s.PairsClosed != 2 || s.OpenPairs != 1 {
		t.Errorf("pairs = %d/%d/%d", s.PairsCreated, s.PairsClosed, s.OpenPairs)
	}
	if s.Events != 6 {
		t.Errorf("Events = %d, want 6", s.Events)
	}
	if s.MinPairLifetime != 2*time.Second || s.MaxPairLifetime != 4*time.Second || s.AvgPairLifetime != 3*time.Second {
		t.Errorf("lifetimes = %s/%s/%s", s.MinPairLifetime, s.AvgPairLifetime, s.MaxPairLifetime)
	}
}

func TestMetricsIgnoresBadUptime(t *testing.T) {
	m := NewMetrics()
	m.Publish("pty.closed", map[string]any{"uptime": "soon"})
	m.Publish("pty.closed", map[string]any{"uptime": 5})

	s := m.Snapshot()
	if s.PairsClosed != 2 || s.AvgPairLifetime != 0 || s.MinPairLifetime != 0 {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.Publish("pty.created", nil)
	m.RecordSignal(session.Delivery{Target: -1})

	m.Reset()
	s := m.Snapshot()
	if s.PairsCreated != 0 || s.Signals != 0 || s.Events != 0 {
		t.Errorf("snapshot after Reset = %+v", s)
	}
}
