package window

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for deterministic window tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_IncrementCreatesWindow(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryStoreConfig{Clock: clock.Now})

	key := Key{Scope: ScopeActor, ID: "alice", Granularity: GranularityMinute}

	c, err := store.Increment(context.Background(), key, time.Minute)
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if c.Count != 1 {
		t.Errorf("Expected count 1, got %d", c.Count)
	}
	if want := clock.Now().Add(time.Minute); !c.ResetAt.Equal(want) {
		t.Errorf("Expected reset at %v, got %v", want, c.ResetAt)
	}
}

func TestMemoryStore_IncrementWithinWindow(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryStoreConfig{Clock: clock.Now})

	key := Key{Scope: ScopeActor, ID: "alice", Granularity: GranularityMinute}
	first, _ := store.Increment(context.Background(), key, time.Minute)

	clock.Advance(30 * time.Second)

	c, _ := store.Increment(context.Background(), key, time.Minute)
	if c.Count != 2 {
		t.Errorf("Expected count 2, got %d", c.Count)
	}
	// Window boundary is fixed: the reset time must not slide.
	if !c.ResetAt.Equal(first.ResetAt) {
		t.Errorf("Reset time moved from %v to %v", first.ResetAt, c.ResetAt)
	}
}

func TestMemoryStore_ExpiredWindowResets(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryStoreConfig{Clock: clock.Now})

	key := Key{Scope: ScopeActor, ID: "alice", Granularity: GranularityMinute}
	for i := 0; i < 25; i++ {
		store.Increment(context.Background(), key, time.Minute)
	}

	clock.Advance(time.Minute)

	// Regardless of prior overage the counter restarts at 1.
	c, _ := store.Increment(context.Background(), key, time.Minute)
	if c.Count != 1 {
		t.Errorf("Expected count 1 after expiry, got %d", c.Count)
	}
	if want := clock.Now().Add(time.Minute); !c.ResetAt.Equal(want) {
		t.Errorf("Expected reset at %v, got %v", want, c.ResetAt)
	}
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryStoreConfig{Clock: clock.Now})

	actorKey := Key{Scope: ScopeActor, ID: "alice", Granularity: GranularityMinute}
	groupKey := Key{Scope: ScopeGroup, ID: "platform-team", Granularity: GranularityMinute}

	store.Increment(context.Background(), actorKey, time.Minute)
	store.Increment(context.Background(), actorKey, time.Minute)
	c, _ := store.Increment(context.Background(), groupKey, time.Minute)

	if c.Count != 1 {
		t.Errorf("Expected independent counter, got count %d", c.Count)
	}
}

func TestMemoryStore_SweepEvictsExpired(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryStoreConfig{Clock: clock.Now})

	minuteKey := Key{Scope: ScopeActor, ID: "alice", Granularity: GranularityMinute}
	hourKey := Key{Scope: ScopeActor, ID: "alice", Granularity: GranularityHour}
	store.Increment(context.Background(), minuteKey, time.Minute)
	store.Increment(context.Background(), hourKey, time.Hour)

	clock.Advance(2 * time.Minute)

	evicted := store.Sweep()
	if evicted != 1 {
		t.Errorf("Expected 1 eviction, got %d", evicted)
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 live counter, got %d", store.Len())
	}
}

func TestMemoryStore_StartStopIdempotent(t *testing.T) {
	store := NewMemoryStore(MemoryStoreConfig{SweepInterval: 10 * time.Millisecond})

	store.Start()
	store.Start()
	store.Stop()
	store.Stop()

	// Store must remain usable after the sweep is halted.
	key := Key{Scope: ScopeActor, ID: "alice", Granularity: GranularityMinute}
	if _, err := store.Increment(context.Background(), key, time.Minute); err != nil {
		t.Fatalf("Increment after Stop failed: %v", err)
	}
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	store := NewMemoryStore(MemoryStoreConfig{})
	key := Key{Scope: ScopeGroup, ID: "platform-team", Granularity: GranularityHour}

	const goroutines = 20
	const perGoroutine = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				store.Increment(context.Background(), key, time.Hour)
			}
		}()
	}
	wg.Wait()

	c, _ := store.Increment(context.Background(), key, time.Hour)
	if c.Count != goroutines*perGoroutine+1 {
		t.Errorf("Expected %d increments, got %d", goroutines*perGoroutine+1, c.Count)
	}
}

func TestGranularity_Duration(t *testing.T) {
	tests := []struct {
		granularity Granularity
		want        time.Duration
	}{
		{GranularityMinute, time.Minute},
		{GranularityHour, time.Hour},
		{GranularityDay, 24 * time.Hour},
	}

	for _, tt := range tests {
		if got := tt.granularity.Duration(); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.granularity, tt.want, got)
		}
	}
}

func TestKey_String(t *testing.T) {
	key := Key{Scope: ScopeActor, ID: "alice", Granularity: GranularityDay}
	if got := key.String(); got != "actor:alice:day" {
		t.Errorf("Expected %q, got %q", "actor:alice:day", got)
	}
}
