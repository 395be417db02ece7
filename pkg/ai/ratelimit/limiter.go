package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lcortez-code/strengthsync/pkg/ai"
	"github.com/lcortez-code/strengthsync/pkg/ai/window"
)

// Limiter evaluates request ceilings for an actor and its owning group
// across minute, hour and day windows.
//
// Tiers are evaluated in order: actor-minute, actor-hour, actor-day, then
// group-minute, group-hour, group-day. Evaluation short-circuits on the
// first violation, and each tier's counter is incremented only when that
// tier is actually reached. A request denied at the minute tier therefore
// never touches the hour or day counters, so rejected traffic cannot
// launder into coarser budgets it never reached. It does count against
// every tier it did reach, including on retries.
//
// Ceilings can be swapped at runtime (config hot reload) without
// interrupting in-flight checks.
type Limiter struct {
	store    window.Store
	ceilings atomic.Pointer[Ceilings]
	logger   *slog.Logger
}

// tier pairs a counter key with its ceiling for one evaluation pass.
type tier struct {
	name        string
	key         window.Key
	ceiling     int64
	granularity window.Granularity
}

// NewLimiter creates a limiter over the given counter store.
func NewLimiter(store window.Store, ceilings Ceilings) *Limiter {
	l := &Limiter{
		store:  store,
		logger: slog.Default().With("component", "ai.ratelimit"),
	}
	l.ceilings.Store(&ceilings)
	return l
}

// SetCeilings atomically replaces the ceilings. In-flight checks keep the
// set they started with.
func (l *Limiter) SetCeilings(c Ceilings) {
	l.ceilings.Store(&c)
	l.logger.Info("rate limit ceilings updated",
		"actor_minute", c.Actor.Minute,
		"actor_hour", c.Actor.Hour,
		"actor_day", c.Actor.Day,
		"group_minute", c.Group.Minute,
		"group_hour", c.Group.Hour,
		"group_day", c.Group.Day,
	)
}

// Ceilings returns the currently configured ceilings.
func (l *Limiter) Ceilings() Ceilings {
	return *l.ceilings.Load()
}

// CheckActor evaluates all tiers for one request from the given actor.
//
// The returned decision's Remaining is the minimum remaining allowance
// observed across the tiers that passed; ResetAt is the tightest
// minute-level reset examined unless a coarser tier was the one that
// denied. Tiers with a zero ceiling are skipped entirely.
//
// If the counter store fails the limiter fails closed: the request is
// denied and the store error is returned alongside the decision.
func (l *Limiter) CheckActor(ctx context.Context, actor ai.ActorID, group ai.GroupID) (ai.Decision, error) {
	c := l.Ceilings()

	tiers := []tier{
		{"actor-minute", window.Key{Scope: window.ScopeActor, ID: string(actor), Granularity: window.GranularityMinute}, c.Actor.Minute, window.GranularityMinute},
		{"actor-hour", window.Key{Scope: window.ScopeActor, ID: string(actor), Granularity: window.GranularityHour}, c.Actor.Hour, window.GranularityHour},
		{"actor-day", window.Key{Scope: window.ScopeActor, ID: string(actor), Granularity: window.GranularityDay}, c.Actor.Day, window.GranularityDay},
		{"group-minute", window.Key{Scope: window.ScopeGroup, ID: string(group), Granularity: window.GranularityMinute}, c.Group.Minute, window.GranularityMinute},
		{"group-hour", window.Key{Scope: window.ScopeGroup, ID: string(group), Granularity: window.GranularityHour}, c.Group.Hour, window.GranularityHour},
		{"group-day", window.Key{Scope: window.ScopeGroup, ID: string(group), Granularity: window.GranularityDay}, c.Group.Day, window.GranularityDay},
	}

	var (
		minRemaining int64 = -1
		tightReset   time.Time
	)

	for _, t := range tiers {
		if t.ceiling <= 0 {
			continue
		}

		counter, err := l.store.Increment(ctx, t.key, t.granularity.Duration())
		if err != nil {
			// Fail closed: an unavailable counter store must not
			// become an open door.
			l.logger.Error("counter store unavailable, denying request",
				"tier", t.name, "error", err)
			return ai.Deny("rate-limit-unavailable", time.Time{}),
				fmt.Errorf("rate limit check for %s: %w", t.name, err)
		}

		if counter.Count > t.ceiling {
			return ai.Deny(t.name, counter.ResetAt), nil
		}

		remaining := t.ceiling - counter.Count
		if minRemaining < 0 || remaining < minRemaining {
			minRemaining = remaining
		}
		if t.granularity == window.GranularityMinute {
			if tightReset.IsZero() || counter.ResetAt.Before(tightReset) {
				tightReset = counter.ResetAt
			}
		}
	}

	if minRemaining < 0 {
		// Every tier disabled; nothing to limit.
		minRemaining = 0
	}

	return ai.Allow(minRemaining, tightReset), nil
}
