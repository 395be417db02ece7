package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

const anthropicVersion = "2023-06-01"

// Config holds the settings for the Anthropic HTTP client.
type Config struct {
	// Name identifies this provider instance in logs.
	Name string `yaml:"name"`

	// BaseURL is the API endpoint. Default: https://api.anthropic.com.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates requests. Required.
	APIKey string `yaml:"api_key"`

	// Timeout bounds each HTTP request. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is how many times transient failures are retried.
	// Default: 2.
	MaxRetries int `yaml:"max_retries"`

	// MaxIdleConns and MaxIdleConnsPerHost tune the connection pool.
	MaxIdleConns        int `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "anthropic"
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.anthropic.com"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 100
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = 10
	}
}

// AnthropicProvider talks to the Anthropic Messages API over HTTP.
type AnthropicProvider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// NewAnthropicProvider creates a provider for the Anthropic Messages API.
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	cfg.applyDefaults()

	if cfg.APIKey == "" {
		return nil, &RequestError{Field: "api_key", Message: "API key is required"}
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &AnthropicProvider{
		config: cfg,
		client: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		logger: slog.Default().With("component", "ai.provider", "provider", cfg.Name),
	}, nil
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string {
	return p.config.Name
}

// Close implements Provider.
func (p *AnthropicProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// Wire types for the Messages API.

type anthropicRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
}

func buildWireRequest(req *Request, stream bool) *anthropicRequest {
	return &anthropicRequest{
		Model:       req.Model,
		System:      req.System,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
}

// Complete implements Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	body, err := json.Marshal(buildWireRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := p.doRequest(ctx, body, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ParseError{Provider: p.config.Name, Cause: fmt.Errorf("failed to read response: %w", err)}
	}

	var wire anthropicResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &ParseError{Provider: p.config.Name, Cause: err}
	}

	var text string
	for _, block := range wire.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	out := &Response{
		Text:       text,
		Model:      wire.Model,
		StopReason: wire.StopReason,
		Usage: Usage{
			PromptTokens:     wire.Usage.InputTokens,
			CompletionTokens: wire.Usage.OutputTokens,
		},
	}

	p.logger.Debug("completion succeeded",
		"model", out.Model,
		"tokens", out.Usage.Total(),
		"stop_reason", out.StopReason,
	)
	return out, nil
}

// Stream implements Provider.
func (p *AnthropicProvider) Stream(ctx context.Context, req *Request) (<-chan Chunk, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	body, err := json.Marshal(buildWireRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := p.doRequest(ctx, body, true)
	if err != nil {
		return nil, err
	}

	chunks := make(chan Chunk, 16)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()
		p.readStream(ctx, resp.Body, chunks)
	}()
	return chunks, nil
}

// doRequest sends the request with exponential backoff on transient
// failures. Authentication, rate-limit, and bad-request responses are
// returned immediately; 5xx and network errors are retried.
func (p *AnthropicProvider) doRequest(ctx context.Context, body []byte, stream bool) (*http.Response, error) {
	url := p.config.BaseURL + "/v1/messages"
	var lastErr error

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			p.logger.Debug("retrying request", "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("x-api-key", p.config.APIKey)
		req.Header.Set("anthropic-version", anthropicVersion)
		req.Header.Set("Content-Type", "application/json")
		if stream {
			req.Header.Set("Accept", "text/event-stream")
		}

		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &TimeoutError{Provider: p.config.Name, Timeout: p.config.Timeout}
			}
			lastErr = err
			p.logger.Warn("request failed, will retry", "attempt", attempt+1, "error", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		errorBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, &AuthError{Provider: p.config.Name, Message: string(errorBody)}

		case http.StatusTooManyRequests:
			return nil, &RateLimitError{
				Provider:   p.config.Name,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Message:    string(errorBody),
			}

		case http.StatusBadRequest:
			return nil, &APIError{
				Provider:   p.config.Name,
				StatusCode: resp.StatusCode,
				Message:    string(errorBody),
			}

		default:
			lastErr = &APIError{
				Provider:   p.config.Name,
				StatusCode: resp.StatusCode,
				Message:    string(errorBody),
			}
			p.logger.Warn("request returned error status, will retry",
				"status", resp.StatusCode,
				"attempt", attempt+1,
			)
		}
	}

	return nil, lastErr
}

// parseRetryAfter handles both delay-seconds and HTTP-date forms.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}
