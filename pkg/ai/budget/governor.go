// Package budget enforces daily token-cost ceilings computed from the
// durable usage ledger.
//
// Unlike the request rate limiter, budget checks are always recomputed from
// already-committed ledger records rather than an in-memory running total:
// cost control must survive restarts, be auditable, and cannot drift under
// concurrency. The trade-off is a pair of aggregation queries per check.
package budget

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lcortez-code/strengthsync/pkg/ai"
)

// Config holds the daily token ceilings. A zero ceiling disables that
// check.
type Config struct {
	// ActorDailyTokens is the per-actor ceiling on successful tokens per
	// UTC calendar day.
	ActorDailyTokens int64 `yaml:"actor_daily_tokens"`

	// GroupDailyTokens is the per-group ceiling on successful tokens per
	// UTC calendar day.
	GroupDailyTokens int64 `yaml:"group_daily_tokens"`
}

// DefaultConfig returns the documented default ceilings.
func DefaultConfig() Config {
	return Config{
		ActorDailyTokens: 100_000,
		GroupDailyTokens: 1_000_000,
	}
}

// Ledger is the slice of the usage ledger the governor reads. Sums cover
// successful records only.
type Ledger interface {
	SumActorTokensSince(ctx context.Context, actor ai.ActorID, since time.Time) (int64, error)
	SumGroupTokensSince(ctx context.Context, group ai.GroupID, since time.Time) (int64, error)
}

// Governor checks daily token budgets against the ledger.
type Governor struct {
	ledger Ledger
	config atomic.Pointer[Config]
	clock  func() time.Time
	logger *slog.Logger
}

// Option configures a Governor.
type Option func(*Governor)

// WithClock injects the clock used to find the current UTC day. Tests use
// this to pin the day boundary.
func WithClock(clock func() time.Time) Option {
	return func(g *Governor) { g.clock = clock }
}

// NewGovernor creates a governor reading from the given ledger.
func NewGovernor(ledger Ledger, cfg Config, opts ...Option) *Governor {
	g := &Governor{
		ledger: ledger,
		clock:  time.Now,
		logger: slog.Default().With("component", "ai.budget"),
	}
	g.config.Store(&cfg)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetConfig atomically replaces the ceilings.
func (g *Governor) SetConfig(cfg Config) {
	g.config.Store(&cfg)
	g.logger.Info("token budget ceilings updated",
		"actor_daily_tokens", cfg.ActorDailyTokens,
		"group_daily_tokens", cfg.GroupDailyTokens,
	)
}

// Config returns the currently configured ceilings.
func (g *Governor) Config() Config {
	return *g.config.Load()
}

// UTCDayStart returns the start of the UTC calendar day containing t.
// Budget accounting uses this boundary regardless of rate-limiter windows.
func UTCDayStart(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// Check evaluates the actor's and then the group's daily token budget.
//
// A budget denies once the day's successful token sum meets its ceiling.
// ResetAt is always the next UTC midnight. If the ledger query fails the
// governor fails closed: spending against an unverifiable budget is worse
// than refusing a request, so the decision denies and the error is
// returned for logging.
func (g *Governor) Check(ctx context.Context, actor ai.ActorID, group ai.GroupID) (ai.Decision, error) {
	cfg := g.Config()
	dayStart := UTCDayStart(g.clock())
	resetAt := dayStart.Add(24 * time.Hour)

	var minRemaining int64 = -1

	if cfg.ActorDailyTokens > 0 {
		used, err := g.ledger.SumActorTokensSince(ctx, actor, dayStart)
		if err != nil {
			g.logger.Error("ledger unavailable during budget check, denying request",
				"actor", actor, "error", err)
			return ai.Deny("budget-unavailable", resetAt),
				fmt.Errorf("actor token budget check: %w", err)
		}
		if used >= cfg.ActorDailyTokens {
			return ai.Deny("actor-daily-tokens", resetAt), nil
		}
		minRemaining = cfg.ActorDailyTokens - used
	}

	if cfg.GroupDailyTokens > 0 {
		used, err := g.ledger.SumGroupTokensSince(ctx, group, dayStart)
		if err != nil {
			g.logger.Error("ledger unavailable during budget check, denying request",
				"group", group, "error", err)
			return ai.Deny("budget-unavailable", resetAt),
				fmt.Errorf("group token budget check: %w", err)
		}
		if used >= cfg.GroupDailyTokens {
			return ai.Deny("group-daily-tokens", resetAt), nil
		}
		if remaining := cfg.GroupDailyTokens - used; minRemaining < 0 || remaining < minRemaining {
			minRemaining = remaining
		}
	}

	if minRemaining < 0 {
		minRemaining = 0
	}

	return ai.Allow(minRemaining, resetAt), nil
}
