// Package window provides fixed-window counters for request rate limiting.
//
// A counter lives for exactly one window: once now >= ResetAt the next
// increment replaces it wholesale with {1, now+window} regardless of prior
// overage. Windows are fixed, not sliding, which keeps the store a cheap
// best-effort abuse guard rather than a precise audit trail.
//
// Two backends implement Store: MemoryStore for single-process deployments
// and RedisStore for deployments where replicas must share one set of
// counters. The multi-tier limiter is written against the interface and does
// not care which backend it runs on.
package window

import (
	"context"
	"time"
)

// Scope is the principal type a counter belongs to.
type Scope string

const (
	// ScopeActor counts requests for an individual actor.
	ScopeActor Scope = "actor"

	// ScopeGroup counts requests for an owning group.
	ScopeGroup Scope = "group"
)

// Granularity is the wall-clock size of a counting window.
type Granularity string

const (
	GranularityMinute Granularity = "minute"
	GranularityHour   Granularity = "hour"
	GranularityDay    Granularity = "day"
)

// Duration returns the window length for the granularity.
func (g Granularity) Duration() time.Duration {
	switch g {
	case GranularityMinute:
		return time.Minute
	case GranularityHour:
		return time.Hour
	case GranularityDay:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// Key identifies one counter: a principal of a given scope counted at a
// given granularity.
type Key struct {
	Scope       Scope
	ID          string
	Granularity Granularity
}

// String renders the key in the form "actor:alice:minute". This is the
// storage key for both backends.
func (k Key) String() string {
	return string(k.Scope) + ":" + k.ID + ":" + string(k.Granularity)
}

// Counter is the state of one fixed window after an increment.
type Counter struct {
	// Count is the number of increments observed in the current window,
	// including the increment that produced this value.
	Count int64

	// ResetAt is when the current window expires.
	ResetAt time.Time
}

// Store is the fixed-window counter backend.
//
// Increment creates {1, now+window} when the key is absent or its window
// has expired, and otherwise increments the existing counter in place.
// Implementations must be safe for concurrent use.
type Store interface {
	Increment(ctx context.Context, key Key, window time.Duration) (Counter, error)
}

// Clock returns the current time. Stores take an injectable clock so tests
// can drive window expiry without sleeping.
type Clock func() time.Time
