package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig(url string) Config {
	return Config{
		Name:       "test-anthropic",
		BaseURL:    url,
		APIKey:     "test-key",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	}
}

func testRequest() *Request {
	return &Request{
		Model:     "claude-haiku-4-5",
		Messages:  []Message{{Role: RoleUser, Content: "Say hello"}},
		MaxTokens: 100,
	}
}

func TestComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("Missing version header")
		}
		fmt.Fprint(w, `{
			"model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 5}
		}`)
	}))
	defer server.Close()

	p, err := NewAnthropicProvider(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewAnthropicProvider failed: %v", err)
	}
	defer p.Close()

	resp, err := p.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != "Hello there" {
		t.Errorf("Expected concatenated text blocks, got %q", resp.Text)
	}
	if resp.Usage.PromptTokens != 12 || resp.Usage.CompletionTokens != 5 {
		t.Errorf("Unexpected usage: %+v", resp.Usage)
	}
	if resp.Usage.Total() != 17 {
		t.Errorf("Expected total 17, got %d", resp.Usage.Total())
	}
	if resp.StopReason != "end_turn" {
		t.Errorf("Unexpected stop reason: %q", resp.StopReason)
	}
}

func TestComplete_AuthErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider(testConfig(server.URL))
	defer p.Close()

	_, err := p.Complete(context.Background(), testRequest())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected no retries for auth failure, got %d calls", calls.Load())
	}
}

func TestComplete_RateLimitCarriesRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider(testConfig(server.URL))
	defer p.Close()

	_, err := p.Complete(context.Background(), testRequest())
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("Expected RateLimitError, got %v", err)
	}
	if rlErr.RetryAfter != 30*time.Second {
		t.Errorf("Expected RetryAfter 30s, got %s", rlErr.RetryAfter)
	}
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{
			"model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "ok"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`)
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider(testConfig(server.URL))
	defer p.Close()

	resp, err := p.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete failed after retry: %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("Unexpected text: %q", resp.Text)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", calls.Load())
	}
}

func TestComplete_ValidatesRequest(t *testing.T) {
	p, _ := NewAnthropicProvider(testConfig("http://unused"))
	defer p.Close()

	tests := []struct {
		name  string
		req   *Request
		field string
	}{
		{"nil request", nil, "request"},
		{"missing model", &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}, MaxTokens: 10}, "model"},
		{"no messages", &Request{Model: "m", MaxTokens: 10}, "messages"},
		{
			"assistant last",
			&Request{Model: "m", MaxTokens: 10, Messages: []Message{{Role: RoleAssistant, Content: "hi"}}},
			"messages",
		},
		{"zero max tokens", &Request{Model: "m", Messages: []Message{{Role: RoleUser, Content: "hi"}}}, "max_tokens"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Complete(context.Background(), tt.req)
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("Expected RequestError, got %v", err)
			}
			if reqErr.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, reqErr.Field)
			}
		})
	}
}

func TestNewAnthropicProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicProvider(Config{Name: "x"})
	if err == nil {
		t.Fatal("Expected missing API key to be rejected")
	}
}

func TestStream_DeliversDeltasAndFinalUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\n")
		fmt.Fprint(w, `data: {"type": "message_start", "message": {"model": "claude-haiku-4-5", "usage": {"input_tokens": 20, "output_tokens": 0}}}`+"\n\n")
		fmt.Fprint(w, "event: content_block_delta\n")
		fmt.Fprint(w, `data: {"type": "content_block_delta", "delta": {"type": "text_delta", "text": "Hel"}}`+"\n\n")
		fmt.Fprint(w, "event: content_block_delta\n")
		fmt.Fprint(w, `data: {"type": "content_block_delta", "delta": {"type": "text_delta", "text": "lo"}}`+"\n\n")
		fmt.Fprint(w, "event: message_delta\n")
		fmt.Fprint(w, `data: {"type": "message_delta", "delta": {"stop_reason": "end_turn"}, "usage": {"output_tokens": 9}}`+"\n\n")
		fmt.Fprint(w, "event: message_stop\n")
		fmt.Fprint(w, `data: {"type": "message_stop"}`+"\n\n")
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider(testConfig(server.URL))
	defer p.Close()

	chunks, err := p.Stream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var text string
	var final *Chunk
	for chunk := range chunks {
		if chunk.Err != nil {
			t.Fatalf("Unexpected stream error: %v", chunk.Err)
		}
		text += chunk.Delta
		if chunk.Usage != nil {
			c := chunk
			final = &c
		}
	}

	if text != "Hello" {
		t.Errorf("Expected streamed text %q, got %q", "Hello", text)
	}
	if final == nil {
		t.Fatal("Expected a final chunk with usage")
	}
	if final.Usage.PromptTokens != 20 || final.Usage.CompletionTokens != 9 {
		t.Errorf("Unexpected final usage: %+v", final.Usage)
	}
	if final.StopReason != "end_turn" {
		t.Errorf("Unexpected stop reason: %q", final.StopReason)
	}
}

func TestStream_ErrorEventSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: error\n")
		fmt.Fprint(w, `data: {"type": "error", "error": {"type": "overloaded_error", "message": "overloaded"}}`+"\n\n")
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider(testConfig(server.URL))
	defer p.Close()

	chunks, err := p.Stream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var streamErr error
	for chunk := range chunks {
		if chunk.Err != nil {
			streamErr = chunk.Err
		}
	}

	var se *StreamError
	if !errors.As(streamErr, &se) {
		t.Fatalf("Expected StreamError, got %v", streamErr)
	}
}

func TestStream_CancellationReleasesReader(t *testing.T) {
	// Many more deltas than the chunk buffer holds, flushed so the
	// reader keeps producing after the consumer walks away.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: message_start\n")
		fmt.Fprint(w, `data: {"type": "message_start", "message": {"usage": {"input_tokens": 10, "output_tokens": 0}}}`+"\n\n")
		for i := 0; i < 500; i++ {
			fmt.Fprint(w, "event: content_block_delta\n")
			fmt.Fprint(w, `data: {"type": "content_block_delta", "delta": {"type": "text_delta", "text": "x"}}`+"\n\n")
			flusher.Flush()
			select {
			case <-r.Context().Done():
				return
			default:
			}
		}
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider(testConfig(server.URL))
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	chunks, err := p.Stream(ctx, testRequest())
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	// Consume one delta, then abandon the stream.
	<-chunks
	cancel()

	// The reader goroutine must exit and close the channel; draining
	// with a deadline proves it is not blocked on a send.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-chunks:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Stream reader still running after cancellation")
		}
	}
}

func TestStream_TruncatedStreamStillReportsUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\n")
		fmt.Fprint(w, `data: {"type": "message_start", "message": {"usage": {"input_tokens": 15, "output_tokens": 0}}}`+"\n\n")
		fmt.Fprint(w, "event: content_block_delta\n")
		fmt.Fprint(w, `data: {"type": "content_block_delta", "delta": {"type": "text_delta", "text": "partial"}}`+"\n\n")
		// Connection drops before message_stop.
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider(testConfig(server.URL))
	defer p.Close()

	chunks, err := p.Stream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var final *Chunk
	for chunk := range chunks {
		if chunk.Usage != nil {
			c := chunk
			final = &c
		}
	}

	if final == nil {
		t.Fatal("Expected a final chunk even for truncated stream")
	}
	if final.Usage.PromptTokens != 15 {
		t.Errorf("Expected prompt tokens preserved, got %+v", final.Usage)
	}
}
