package monitoring

import (
	"sort"
	"sync"
)

// Counter names emitted by the scheduler.
const (
	CounterDiscovered  = "discovered"
	CounterAdvanced    = "advanced"
	CounterSucceeded   = "succeeded"
	CounterFailed      = "failed"
	CounterRetried     = "retried"
	CounterRateLimited = "rate_limited"
)

// Counters is a concurrency-safe registry of monotonic counters and gauges.
// Counters accumulate over process lifetime; gauges are point-in-time values
// (queue depth per stage) overwritten each tick.
type Counters struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]int64
}

// NewCounters returns an empty registry.
func NewCounters() *Counters {
	return &Counters{
		counters: make(map[string]int64),
		gauges:   make(map[string]int64),
	}
}

// Add increments a counter by delta.
func (c *Counters) Add(name string, delta int64) {
	if c == nil || delta == 0 {
		return
	}
	c.mu.Lock()
	c.counters[name] += delta
	c.mu.Unlock()
}

// SetGauge records a point-in-time value.
func (c *Counters) SetGauge(name string, value int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.gauges[name] = value
	c.mu.Unlock()
}

// Snapshot is a stable copy of the registry for rendering.
type Snapshot struct {
	Counters map[string]int64 `json:"counters"`
	Gauges   map[string]int64 `json:"gauges"`
}

// Snapshot copies the current registry state.
func (c *Counters) Snapshot() Snapshot {
	snap := Snapshot{
		Counters: make(map[string]int64),
		Gauges:   make(map[string]int64),
	}
	if c == nil {
		return snap
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, v := range c.counters {
		snap.Counters[name] = v
	}
	for name, v := range c.gauges {
		snap.Gauges[name] = v
	}
	return snap
}

// Names returns the counter names present in the snapshot, sorted.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Counters))
	for name := range s.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
