// Package ledger is the durable, append-only record of every attempted
// model invocation and its outcome.
//
// Records are immutable once written: the ledger is the audit trail that
// token budget enforcement is recomputed from, so nothing in the system
// updates or rewrites a row. The SQLite store is the production backend;
// the memory store serves tests and ephemeral tooling.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lcortez-code/strengthsync/pkg/ai"
)

// ErrClosed is returned when a store is used after Close.
var ErrClosed = errors.New("ledger store is closed")

// Record is one attempted model invocation. Exactly one record exists per
// invocation that passed admission, whether it succeeded or failed; a
// request rejected at admission produces none.
type Record struct {
	// ID is a UUID assigned at append time.
	ID string

	ActorID ai.ActorID
	GroupID ai.GroupID
	Feature ai.Feature

	// Token counts as reported by the provider. Zero on provider failure.
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int

	// Model actually invoked and the end-to-end latency observed.
	Model     string
	LatencyMs int64

	// Success marks whether the invocation produced a usable result.
	// Budget sums cover successful records only.
	Success      bool
	ErrorMessage string

	// Truncated prompt/response excerpts, kept short to bound row size.
	RequestSummary  string
	ResponseSummary string

	// CostCents is the priced cost of the invocation.
	CostCents int64

	CreatedAt time.Time
}

// NewID mints a record identifier.
func NewID() string {
	return uuid.NewString()
}

// Usage aggregates one principal's consumption over a period.
type Usage struct {
	Requests    int64
	TotalTokens int64
	CostCents   int64
}

// Store is the ledger backend. Append is the only write; everything else
// is read-only aggregation, plus retention pruning.
type Store interface {
	// Append persists a record. The record's ID and CreatedAt must be
	// set by the caller.
	Append(ctx context.Context, rec *Record) error

	// SumActorTokensSince sums TotalTokens across the actor's successful
	// records with CreatedAt >= since.
	SumActorTokensSince(ctx context.Context, actor ai.ActorID, since time.Time) (int64, error)

	// SumGroupTokensSince sums TotalTokens across the group's successful
	// records with CreatedAt >= since.
	SumGroupTokensSince(ctx context.Context, group ai.GroupID, since time.Time) (int64, error)

	// ActorUsageSince aggregates the actor's attempts (successful or
	// not) with CreatedAt >= since. Token and cost sums cover successful
	// records only.
	ActorUsageSince(ctx context.Context, actor ai.ActorID, since time.Time) (Usage, error)

	// GroupUsageSince aggregates the group's attempts with
	// CreatedAt >= since.
	GroupUsageSince(ctx context.Context, group ai.GroupID, since time.Time) (Usage, error)

	// ListRecent returns up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]*Record, error)

	// DeleteOlderThan removes records with CreatedAt < cutoff and
	// reports how many were deleted. Used by retention pruning only.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases the backend's resources.
	Close() error
}
