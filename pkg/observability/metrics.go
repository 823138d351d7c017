package observability

import (
	"sync"
	"time"
)

// Metrics is a lightweight in-process metrics collector.
// It tracks counters and duration summaries keyed by name; the worker
// and API expose snapshots through logs and the health endpoint.
type Metrics struct {
	mu        sync.Mutex
	counters  map[string]int64
	durations map[string]*durationSummary
}

type durationSummary struct {
	count int64
	total time.Duration
	max   time.Duration
}

// NewMetrics creates an empty metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		counters:  make(map[string]int64),
		durations: make(map[string]*durationSummary),
	}
}

// Inc increments a counter by one.
func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

// Add increments a counter by delta.
func (m *Metrics) Add(name string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
}

// Observe records a duration sample.
func (m *Metrics) Observe(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary, ok := m.durations[name]
	if !ok {
		summary = &durationSummary{}
		m.durations[name] = summary
	}
	summary.count++
	summary.total += d
	if d > summary.max {
		summary.max = d
	}
}

// Counter returns the current value of a counter.
func (m *Metrics) Counter(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// DurationSnapshot describes one duration series.
type DurationSnapshot struct {
	Count int64
	Avg   time.Duration
	Max   time.Duration
}

// Durations returns a snapshot of all duration series.
func (m *Metrics) Durations() map[string]DurationSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]DurationSnapshot, len(m.durations))
	for name, s := range m.durations {
		snap := DurationSnapshot{Count: s.count, Max: s.max}
		if s.count > 0 {
			snap.Avg = s.total / time.Duration(s.count)
		}
		out[name] = snap
	}
	return out
}

// Counters returns a snapshot of all counters.
func (m *Metrics) Counters() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int64, len(m.counters))
	for name, v := range m.counters {
		out[name] = v
	}
	return out
}
