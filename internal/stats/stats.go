// Package stats tracks per-provider context outcomes for transparency.
package stats

import (
	"sync"
	"time"

	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/provider"
)

// Collector counts requests, refusals and per-provider outcomes.
// Safe for concurrent use.
type Collector struct {
	mu        sync.Mutex
	startTime time.Time

	requests  int64
	refusals  int64
	tokens    int64
	elapsed   time.Duration
	providers map[string]*ProviderStats
}

// ProviderStats aggregates one provider's outcomes across requests.
type ProviderStats struct {
	Live     int64
	Fallback int64
	Empty    int64
	Skipped  int64
	Tokens   int64
}

// Snapshot is a point-in-time copy of the collector's counters.
type Snapshot struct {
	Uptime       time.Duration
	Requests     int64
	Refusals     int64
	TotalTokens  int64
	AvgLatencyMs float64
	Providers    map[string]ProviderStats
}

// NewCollector creates a new collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		providers: make(map[string]*ProviderStats),
	}
}

// RecordBundle records the outcome of one completed allocation.
func (c *Collector) RecordBundle(bundle *provider.Bundle) {
	if c == nil || bundle == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests++
	c.tokens += int64(bundle.TotalTokensUsed)
	c.elapsed += bundle.Elapsed

	for id, env := range bundle.Envelopes {
		ps := c.providerLocked(id)
		switch env.Status {
		case provider.StatusLive:
			ps.Live++
		case provider.StatusFallback:
			ps.Fallback++
		case provider.StatusEmpty:
			ps.Empty++
		}
		ps.Tokens += int64(env.TokensUsed)
	}

	for _, id := range bundle.Skipped {
		c.providerLocked(id).Skipped++
	}
}

// RecordRefusal records an insufficient-context refusal.
func (c *Collector) RecordRefusal() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refusals++
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Uptime:      time.Since(c.startTime),
		Requests:    c.requests,
		Refusals:    c.refusals,
		TotalTokens: c.tokens,
		Providers:   make(map[string]ProviderStats, len(c.providers)),
	}
	if c.requests > 0 {
		snap.AvgLatencyMs = float64(c.elapsed.Nanoseconds()) / float64(c.requests) / 1e6
	}
	for id, ps := range c.providers {
		snap.Providers[id] = *ps
	}
	return snap
}

func (c *Collector) providerLocked(id string) *ProviderStats {
	ps, ok := c.providers[id]
	if !ok {
		ps = &ProviderStats{}
		c.providers[id] = ps
	}
	return ps
}
