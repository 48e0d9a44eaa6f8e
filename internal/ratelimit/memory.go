package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	sweepInterval  = 5 * time.Minute
	staleThreshold = 1 * time.Hour
)

// Memory is the in-process sliding-window limiter. Each key holds the
// timestamps of its requests inside the current window; a periodic sweep
// evicts keys whose newest timestamp is older than an hour so the map does
// not grow without bound.
//
// Memory provides no cross-process guarantee. It exists so the service runs
// without Redis, not as a correctness-equivalent substitute.
type Memory struct {
	cfg Config

	mu      sync.Mutex
	entries map[string][]time.Time
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// MemoryOption configures a Memory limiter.
type MemoryOption func(*Memory)

// WithNowFunc overrides the time source, for tests.
func WithNowFunc(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory constructs an in-process limiter and starts its eviction sweep.
func NewMemory(cfg Config, opts ...MemoryOption) *Memory {
	m := &Memory{
		cfg:     cfg,
		entries: make(map[string][]time.Time),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.sweepLoop()
	return m
}

// Allow prunes timestamps outside the window, rejects when the remainder is
// at the limit (echoing when the earliest one expires), and otherwise
// records now and accepts.
func (m *Memory) Allow(_ context.Context, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.cfg.Window)

	kept := m.entries[key][:0]
	for _, ts := range m.entries[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= m.cfg.Limit {
		m.entries[key] = kept
		return Result{
			Allowed: false,
			ResetAt: kept[0].Add(m.cfg.Window),
		}, nil
	}

	m.entries[key] = append(kept, now)
	return Result{Allowed: true, Remaining: m.cfg.Limit - len(kept) - 1}, nil
}

// Stop terminates the eviction sweep.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.evictStale()
		}
	}
}

func (m *Memory) evictStale() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-staleThreshold)
	for key, stamps := range m.entries {
		if len(stamps) == 0 || stamps[len(stamps)-1].Before(cutoff) {
			delete(m.entries, key)
		}
	}
}
