package window

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStoreConfig configures the in-memory counter store.
type MemoryStoreConfig struct {
	// SweepInterval is how often the background sweep evicts expired
	// counters. Default: 1 minute.
	SweepInterval time.Duration

	// Clock supplies the current time. Default: time.Now.
	Clock Clock
}

// MemoryStore is an in-process fixed-window counter store.
//
// Counters are reset lazily on increment; a periodic sweep evicts expired
// entries so the map stays bounded by the set of recently active principals.
// State is not durable: a process restart zeroes all counts, which is
// acceptable for a best-effort abuse guard.
//
// The sweep goroutine is owned by the store. Call Start to launch it and
// Stop to halt it; Increment works either way.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]Counter

	sweepInterval time.Duration
	clock         Clock
	logger        *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewMemoryStore creates a memory store with the given configuration.
func NewMemoryStore(cfg MemoryStoreConfig) *MemoryStore {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &MemoryStore{
		counters:      make(map[string]Counter),
		sweepInterval: cfg.SweepInterval,
		clock:         cfg.Clock,
		logger:        slog.Default().With("component", "ai.window.memory"),
		done:          make(chan struct{}),
	}
}

// Increment implements Store. It never fails.
func (s *MemoryStore) Increment(_ context.Context, key Key, window time.Duration) (Counter, error) {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	c, ok := s.counters[k]
	if !ok || !now.Before(c.ResetAt) {
		c = Counter{Count: 1, ResetAt: now.Add(window)}
	} else {
		c.Count++
	}
	s.counters[k] = c

	return c, nil
}

// Start launches the background sweep. Calling Start more than once is a
// no-op.
func (s *MemoryStore) Start() {
	s.startOnce.Do(func() {
		go s.sweepLoop()
	})
}

// Stop halts the background sweep. The store remains usable afterwards.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// Len reports the number of live counters. Used by tests and metrics.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// Sweep evicts every counter whose window has expired and reports how many
// were removed. The background loop calls this on each tick; tests call it
// directly with a fake clock.
func (s *MemoryStore) Sweep() int {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for k, c := range s.counters {
		if !now.Before(c.ResetAt) {
			delete(s.counters, k)
			evicted++
		}
	}
	return evicted
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if evicted := s.Sweep(); evicted > 0 {
				s.logger.Debug("evicted expired counters", "count", evicted)
			}
		case <-s.done:
			return
		}
	}
}
