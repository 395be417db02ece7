package chat

import (
	"context"
	"sync"
	"time"

	"github.com/lcortez-code/strengthsync/pkg/ai"
)

// MemoryStore is an in-memory conversation store for tests.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []*Message
	closed   bool
}

// NewMemoryStore creates an empty in-memory chat store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	cp := *msg
	s.messages = append(s.messages, &cp)
	return nil
}

// History implements Store.
func (s *MemoryStore) History(_ context.Context, conversationID string, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 100
	}

	var out []*Message
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// OwnerOf implements Store.
func (s *MemoryStore) OwnerOf(_ context.Context, conversationID string) (ai.ActorID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrClosed
	}

	for _, msg := range s.messages {
		if msg.ConversationID == conversationID {
			return msg.ActorID, nil
		}
	}
	return "", ErrNotFound
}

// DeleteOlderThan implements Store.
func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	kept := s.messages[:0]
	var deleted int64
	for _, msg := range s.messages {
		if msg.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, msg)
	}
	s.messages = kept
	return deleted, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
