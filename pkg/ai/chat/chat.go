// Package chat persists assistant conversations.
//
// The chat assistant feature is multi-turn: each invocation replays the
// conversation history to the model. History lives here, keyed by
// conversation ID, so a conversation survives process restarts.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lcortez-code/strengthsync/pkg/ai"
)

// ErrClosed is returned when a store is used after Close.
var ErrClosed = errors.New("chat store is closed")

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Role identifies the author of a stored message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one stored conversation turn.
type Message struct {
	ID             string
	ConversationID string
	ActorID        ai.ActorID
	Role           Role
	Content        string
	CreatedAt      time.Time
}

// NewConversationID allocates a fresh conversation identifier.
func NewConversationID() string {
	return uuid.New().String()
}

// NewMessageID allocates a fresh message identifier.
func NewMessageID() string {
	return uuid.New().String()
}

// Store persists conversation turns.
type Store interface {
	// Append stores one message at the end of its conversation.
	Append(ctx context.Context, msg *Message) error

	// History returns a conversation's messages, oldest first, capped
	// at limit. A missing conversation returns an empty slice, not an
	// error.
	History(ctx context.Context, conversationID string, limit int) ([]*Message, error)

	// OwnerOf reports which actor started the conversation. Returns
	// ErrNotFound for an unknown conversation.
	OwnerOf(ctx context.Context, conversationID string) (ai.ActorID, error)

	// DeleteOlderThan removes messages created before the cutoff and
	// reports how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases the store.
	Close() error
}
