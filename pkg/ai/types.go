package ai

import (
	"fmt"
	"time"
)

// ActorID identifies the authenticated individual issuing a request.
type ActorID string

// GroupID identifies the organizational collective that aggregates many
// actors' usage for shared budget enforcement.
type GroupID string

// Feature is a named use case mapped to a model and generation parameters
// by the feature registry.
type Feature string

// Decision is the result of an admission check. It is computed fresh for
// every call and never persisted.
type Decision struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Remaining is the minimum remaining allowance actually observed
	// across the limits that were evaluated.
	Remaining int64

	// ResetAt is when the binding limit resets. For an allowed decision
	// this is the tightest (minute-level) window examined; for a denial
	// it is the reset time of the limit that denied.
	ResetAt time.Time

	// Reason names the violated tier or budget when Allowed is false,
	// for example "actor-minute" or "group-daily-tokens".
	Reason string
}

// Allow builds an allowed decision.
func Allow(remaining int64, resetAt time.Time) Decision {
	return Decision{Allowed: true, Remaining: remaining, ResetAt: resetAt}
}

// Deny builds a denied decision naming the violated limit.
func Deny(reason string, resetAt time.Time) Decision {
	return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt, Reason: reason}
}

// String renders the decision for logs and error messages.
func (d Decision) String() string {
	if d.Allowed {
		return fmt.Sprintf("allowed (remaining=%d, reset=%s)", d.Remaining, d.ResetAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("denied (%s, reset=%s)", d.Reason, d.ResetAt.Format(time.RFC3339))
}
