package api

import (
	"sync"
)

// Counters is the access-count snapshot behind /api/statistic. It is an
// explicitly owned object handed to the server, not process-global
// state, and it takes the lock unconditionally: a concurrent reader
// waits instead of being handed a silently empty default.
type Counters struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func NewCounters() *Counters {
	return &Counters{counts: make(map[string]uint64)}
}

// Inc bumps one named counter.
func (c *Counters) Inc(name string) {
	c.mu.Lock()
	c.counts[name]++
	c.mu.Unlock()
}

// Snapshot returns a copy of all counters.
func (c *Counters) Snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}
