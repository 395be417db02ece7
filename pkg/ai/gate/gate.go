// Package gate aggregates the rate limiter and the token budget governor
// into the single admission check the generation gateway runs before any
// cost is incurred.
package gate

import (
	"context"

	"github.com/lcortez-code/strengthsync/pkg/ai"
	"github.com/lcortez-code/strengthsync/pkg/ai/budget"
	"github.com/lcortez-code/strengthsync/pkg/ai/ratelimit"
)

// Gate runs both admission subsystems in order.
type Gate struct {
	limiter  *ratelimit.Limiter
	governor *budget.Governor
}

// New creates a gate over the given limiter and governor.
func New(limiter *ratelimit.Limiter, governor *budget.Governor) *Gate {
	return &Gate{limiter: limiter, governor: governor}
}

// Check evaluates the rate limiter first and returns its denial
// immediately if it fires; only then does it evaluate the token budget.
//
// An allowed decision carries the minimum of both subsystems' remaining
// allowances and the rate limiter's reset time, which is always at or
// before the budget's daily reset.
//
// Errors from either subsystem accompany an already fail-closed decision;
// callers should log them but can act on the decision alone.
func (g *Gate) Check(ctx context.Context, actor ai.ActorID, group ai.GroupID) (ai.Decision, error) {
	rate, err := g.limiter.CheckActor(ctx, actor, group)
	if err != nil || !rate.Allowed {
		return rate, err
	}

	tokens, err := g.governor.Check(ctx, actor, group)
	if err != nil || !tokens.Allowed {
		return tokens, err
	}

	remaining := rate.Remaining
	if tokens.Remaining < remaining {
		remaining = tokens.Remaining
	}
	return ai.Allow(remaining, rate.ResetAt), nil
}

// Ceilings exposes the limiter's current request ceilings for usage
// reporting.
func (g *Gate) Ceilings() ratelimit.Ceilings {
	return g.limiter.Ceilings()
}

// BudgetConfig exposes the governor's current token ceilings for usage
// reporting.
func (g *Gate) BudgetConfig() budget.Config {
	return g.governor.Config()
}
