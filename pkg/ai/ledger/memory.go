package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lcortez-code/strengthsync/pkg/ai"
)

// MemoryStore is an in-memory ledger for tests and ephemeral tooling. It
// honors the same append-only contract as the SQLite store but loses
// everything on restart, so it must never back production budget checks.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
	closed  bool
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store. The record is copied so later caller mutations
// cannot rewrite history.
func (s *MemoryStore) Append(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	cp := *rec
	s.records = append(s.records, &cp)
	return nil
}

// SumActorTokensSince implements Store.
func (s *MemoryStore) SumActorTokensSince(_ context.Context, actor ai.ActorID, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	var sum int64
	for _, r := range s.records {
		if r.ActorID == actor && r.Success && !r.CreatedAt.Before(since) {
			sum += int64(r.TotalTokens)
		}
	}
	return sum, nil
}

// SumGroupTokensSince implements Store.
func (s *MemoryStore) SumGroupTokensSince(_ context.Context, group ai.GroupID, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	var sum int64
	for _, r := range s.records {
		if r.GroupID == group && r.Success && !r.CreatedAt.Before(since) {
			sum += int64(r.TotalTokens)
		}
	}
	return sum, nil
}

// ActorUsageSince implements Store.
func (s *MemoryStore) ActorUsageSince(_ context.Context, actor ai.ActorID, since time.Time) (Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Usage{}, ErrClosed
	}

	var u Usage
	for _, r := range s.records {
		if r.ActorID != actor || r.CreatedAt.Before(since) {
			continue
		}
		u.Requests++
		if r.Success {
			u.TotalTokens += int64(r.TotalTokens)
			u.CostCents += r.CostCents
		}
	}
	return u, nil
}

// GroupUsageSince implements Store.
func (s *MemoryStore) GroupUsageSince(_ context.Context, group ai.GroupID, since time.Time) (Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Usage{}, ErrClosed
	}

	var u Usage
	for _, r := range s.records {
		if r.GroupID != group || r.CreatedAt.Before(since) {
			continue
		}
		u.Requests++
		if r.Success {
			u.TotalTokens += int64(r.TotalTokens)
			u.CostCents += r.CostCents
		}
	}
	return u, nil
}

// ListRecent implements Store.
func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 50
	}

	out := make([]*Record, len(s.records))
	copy(out, s.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteOlderThan implements Store.
func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	kept := s.records[:0]
	var deleted int64
	for _, r := range s.records {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return deleted, nil
}

// Len reports the number of stored records. Used by tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
