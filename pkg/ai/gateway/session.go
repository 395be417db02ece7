package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/lcortez-code/strengthsync/pkg/ai"
	"github.com/lcortez-code/strengthsync/pkg/ai/chat"
	"github.com/lcortez-code/strengthsync/pkg/ai/features"
	"github.com/lcortez-code/strengthsync/pkg/ai/provider"
)

// historyLimit caps how many prior turns are replayed to the model.
const historyLimit = 50

// Session is the multi-turn wrapper around the gateway for the chat
// assistant feature.
//
// The gateway itself is stateless per call; the session owns conversation
// continuity. Send persists the user's turn before invoking the gateway
// so a provider failure never loses the user's input, replays prior turns
// as context, and leaves the caller to persist the assistant's reply via
// SaveAssistantReply once it has the final text.
type Session struct {
	gateway *Gateway
	store   chat.Store
	id      string
	actor   ai.ActorID
	group   ai.GroupID
	clock   func() time.Time
}

// NewSession starts a fresh conversation for the actor.
func NewSession(gw *Gateway, store chat.Store, actor ai.ActorID, group ai.GroupID) *Session {
	return &Session{
		gateway: gw,
		store:   store,
		id:      chat.NewConversationID(),
		actor:   actor,
		group:   group,
		clock:   gw.clock,
	}
}

// ResumeSession reopens an existing conversation. The actor must be the
// conversation's owner.
func ResumeSession(ctx context.Context, gw *Gateway, store chat.Store, conversationID string, actor ai.ActorID, group ai.GroupID) (*Session, error) {
	owner, err := store.OwnerOf(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to resume conversation: %w", err)
	}
	if owner != actor {
		return nil, fmt.Errorf("conversation %s does not belong to actor %s", conversationID, actor)
	}

	return &Session{
		gateway: gw,
		store:   store,
		id:      conversationID,
		actor:   actor,
		group:   group,
		clock:   gw.clock,
	}, nil
}

// ID returns the conversation identifier.
func (s *Session) ID() string {
	return s.id
}

// Send persists the user's message, replays the conversation to the
// model, and returns the reply. The reply is not persisted; call
// SaveAssistantReply after a successful Send.
func (s *Session) Send(ctx context.Context, message string) (*GenerateResult, error) {
	history, err := s.store.History(ctx, s.id, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	if err := s.store.Append(ctx, &chat.Message{
		ID:             chat.NewMessageID(),
		ConversationID: s.id,
		ActorID:        s.actor,
		Role:           chat.RoleUser,
		Content:        message,
		CreatedAt:      s.clock(),
	}); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	messages := make([]provider.Message, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, provider.Message{
			Role:    provider.Role(turn.Role),
			Content: turn.Content,
		})
	}
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: message})

	return s.gateway.GenerateText(ctx, &GenerateRequest{
		Actor:    s.actor,
		Group:    s.group,
		Feature:  features.FeatureChatAssistant,
		Messages: messages,
	})
}

// SaveAssistantReply persists the assistant's turn. Callers invoke it
// after Send (or after consuming a stream) with the final reply text.
func (s *Session) SaveAssistantReply(ctx context.Context, content string) error {
	if err := s.store.Append(ctx, &chat.Message{
		ID:             chat.NewMessageID(),
		ConversationID: s.id,
		ActorID:        s.actor,
		Role:           chat.RoleAssistant,
		Content:        content,
		CreatedAt:      s.clock(),
	}); err != nil {
		return fmt.Errorf("failed to persist assistant reply: %w", err)
	}
	return nil
}
