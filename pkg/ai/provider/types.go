// Package provider defines the model provider abstraction and an HTTP
// client for the Anthropic Messages API.
//
// The gateway never talks to a vendor API directly. It builds a Request,
// hands it to a Provider, and gets back a Response with token usage
// attached. Swapping vendors means swapping the Provider implementation,
// nothing upstream changes.
package provider

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	// Model is the vendor model identifier.
	Model string

	// System is the system prompt, empty for none.
	System string

	// Messages is the conversation so far, oldest first. Must end with
	// a user message.
	Messages []Message

	// MaxTokens caps the completion length.
	MaxTokens int

	// Temperature controls sampling randomness, 0 to 1.
	Temperature float64
}

// Usage reports token consumption for one invocation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Response is a completed model invocation.
type Response struct {
	// Text is the generated completion.
	Text string

	// Model is the model that served the request, as reported by the
	// vendor.
	Model string

	// StopReason describes why generation ended, e.g. "end_turn" or
	// "max_tokens".
	StopReason string

	// Usage is the vendor-reported token consumption.
	Usage Usage
}

// Chunk is one increment of a streaming completion.
type Chunk struct {
	// Delta is the text produced since the previous chunk.
	Delta string

	// Usage is non-nil on the final chunk, carrying totals for the
	// whole stream.
	Usage *Usage

	// StopReason is set on the final chunk.
	StopReason string

	// Err is set when the stream failed. No further chunks follow.
	Err error
}
