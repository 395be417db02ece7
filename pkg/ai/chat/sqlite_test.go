package chat

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "chat.db"),
	})
	if err != nil {
		t.Fatalf("Failed to open chat store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testMessage(conversationID string, role Role, content string, at time.Time) *Message {
	return &Message{
		ID:             NewMessageID(),
		ConversationID: conversationID,
		ActorID:        "alice",
		Role:           role,
		Content:        content,
		CreatedAt:      at,
	}
}

func TestSQLiteStore_HistoryOrderedOldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	convo := NewConversationID()
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	turns := []struct {
		role    Role
		content string
	}{
		{RoleUser, "How do I give feedback to a peer?"},
		{RoleAssistant, "Start with a specific observation."},
		{RoleUser, "Can you give an example?"},
	}
	for i, turn := range turns {
		msg := testMessage(convo, turn.role, turn.content, base.Add(time.Duration(i)*time.Second))
		if err := store.Append(ctx, msg); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	history, err := store.History(ctx, convo, 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(history))
	}
	for i, turn := range turns {
		if history[i].Role != turn.role || history[i].Content != turn.content {
			t.Errorf("Turn %d out of order: %+v", i, history[i])
		}
	}
}

func TestSQLiteStore_HistoryScopedToConversation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := NewConversationID()
	second := NewConversationID()
	store.Append(ctx, testMessage(first, RoleUser, "one", now))
	store.Append(ctx, testMessage(second, RoleUser, "two", now))

	history, err := store.History(ctx, first, 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || history[0].Content != "one" {
		t.Errorf("Expected only first conversation's messages, got %+v", history)
	}
}

func TestSQLiteStore_HistoryEmptyForUnknownConversation(t *testing.T) {
	store := newTestStore(t)

	history, err := store.History(context.Background(), "no-such-conversation", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected empty history, got %d messages", len(history))
	}
}

func TestSQLiteStore_OwnerOf(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	convo := NewConversationID()
	store.Append(ctx, testMessage(convo, RoleUser, "hello", time.Now().UTC()))

	owner, err := store.OwnerOf(ctx, convo)
	if err != nil {
		t.Fatalf("OwnerOf failed: %v", err)
	}
	if owner != "alice" {
		t.Errorf("Expected owner alice, got %q", owner)
	}

	if _, err := store.OwnerOf(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_DeleteOlderThan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	convo := NewConversationID()
	store.Append(ctx, testMessage(convo, RoleUser, "old", cutoff.Add(-time.Hour)))
	store.Append(ctx, testMessage(convo, RoleUser, "new", cutoff.Add(time.Hour)))

	deleted, err := store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deletion, got %d", deleted)
	}

	history, _ := store.History(ctx, convo, 10)
	if len(history) != 1 || history[0].Content != "new" {
		t.Errorf("Expected only the new message to survive, got %+v", history)
	}
}

func TestMemoryStore_MatchesContract(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	convo := NewConversationID()
	store.Append(ctx, testMessage(convo, RoleUser, "hi", time.Now().UTC()))

	owner, err := store.OwnerOf(ctx, convo)
	if err != nil || owner != "alice" {
		t.Errorf("Expected owner alice, got %q err %v", owner, err)
	}

	store.Close()
	if err := store.Append(ctx, testMessage(convo, RoleUser, "late", time.Now())); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}
}
