package provider

import "context"

// Provider is a model backend capable of serving completions.
//
// Implementations must be safe for concurrent use. Both methods respect
// context cancellation; a cancelled Complete returns ctx.Err(), a
// cancelled Stream stops delivering chunks.
type Provider interface {
	// Complete performs a blocking completion and returns the full
	// response with token usage.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Stream performs a streaming completion. Chunks arrive on the
	// returned channel in order; the final chunk carries Usage and
	// StopReason, or Err if the stream failed. The channel is closed
	// when the stream ends either way.
	Stream(ctx context.Context, req *Request) (<-chan Chunk, error)

	// Name identifies the provider in logs and error messages.
	Name() string

	// Close releases idle connections and background resources.
	Close() error
}

func validateRequest(req *Request) error {
	if req == nil {
		return &RequestError{Field: "request", Message: "request cannot be nil"}
	}
	if req.Model == "" {
		return &RequestError{Field: "model", Message: "model is required"}
	}
	if len(req.Messages) == 0 {
		return &RequestError{Field: "messages", Message: "at least one message is required"}
	}
	if req.Messages[len(req.Messages)-1].Role != RoleUser {
		return &RequestError{Field: "messages", Message: "conversation must end with a user message"}
	}
	if req.MaxTokens <= 0 {
		return &RequestError{Field: "max_tokens", Message: "max_tokens must be positive"}
	}
	return nil
}
