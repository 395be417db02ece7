package provider

import (
	"fmt"
	"time"
)

// APIError is a non-success response from the vendor API.
type APIError struct {
	// Provider is the name of the provider that returned the error.
	Provider string

	// StatusCode is the HTTP status code, 0 if not applicable.
	StatusCode int

	// Message is the vendor's error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q error: %s", e.Provider, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// AuthError is an API key rejection (HTTP 401 or 403). Never retried.
type AuthError struct {
	Provider string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider %q authentication failed: %s", e.Provider, e.Message)
}

// RateLimitError is a vendor-side rate limit (HTTP 429). The vendor's
// Retry-After hint is carried when present.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %q rate limited (retry after %s): %s",
			e.Provider, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("provider %q rate limited: %s", e.Provider, e.Message)
}

// TimeoutError is a request that exceeded the configured timeout.
type TimeoutError struct {
	Provider string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %q request timed out after %s", e.Provider, e.Timeout)
}

// ParseError is a malformed vendor response.
type ParseError struct {
	Provider string
	Cause    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q response parse error: %v", e.Provider, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// RequestError is a request rejected before it was sent.
type RequestError struct {
	Field   string
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid request field %q: %s", e.Field, e.Message)
}

// StreamError is a failure partway through a streaming response.
type StreamError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider %q stream error: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider %q stream error: %s", e.Provider, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}
