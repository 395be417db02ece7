// Package gateway is the single choke point through which every model
// call flows.
//
// Each entry point runs the same shared algorithm: verify a provider is
// configured, run the admission check, resolve the feature profile,
// invoke the provider, and write exactly one usage record whether the
// invocation succeeded or failed. Configuration and admission failures
// short-circuit before anything is attempted and write nothing.
//
// No caller may write the ledger directly or reach the provider around
// the gateway.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lcortez-code/strengthsync/pkg/ai"
	"github.com/lcortez-code/strengthsync/pkg/ai/features"
	"github.com/lcortez-code/strengthsync/pkg/ai/gate"
	"github.com/lcortez-code/strengthsync/pkg/ai/ledger"
	"github.com/lcortez-code/strengthsync/pkg/ai/provider"
	"github.com/lcortez-code/strengthsync/pkg/ai/ratelimit"
)

// summaryLimit bounds the prompt/response excerpts stored on a usage
// record.
const summaryLimit = 200

// Observer receives gateway events. The metrics package implements it;
// a nil observer disables observation.
type Observer interface {
	// ObserveAdmission is called once per admission check.
	ObserveAdmission(feature ai.Feature, allowed bool, reason string)

	// ObserveGeneration is called once per attempted invocation.
	ObserveGeneration(feature ai.Feature, model string, success bool, latency time.Duration, totalTokens int)
}

// Options configures a Gateway.
type Options struct {
	// Gate performs the combined admission check. Required.
	Gate *gate.Gate

	// Registry resolves feature profiles. Required.
	Registry *features.Registry

	// Ledger receives usage records. Required.
	Ledger ledger.Store

	// Provider is the model backend. May be nil: the gateway then
	// reports unready and every call fails with a ConfigError.
	Provider provider.Provider

	// Observer receives admission and generation events. Optional.
	Observer Observer

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Gateway coordinates admission, invocation, and usage accounting.
type Gateway struct {
	gate     *gate.Gate
	registry *features.Registry
	ledger   ledger.Store
	provider provider.Provider
	observer Observer
	clock    func() time.Time
	logger   *slog.Logger
}

// New creates a gateway. Gate, Registry, and Ledger are required;
// Provider may be nil for a deployment that has not configured one.
func New(opts Options) (*Gateway, error) {
	if opts.Gate == nil {
		return nil, fmt.Errorf("gateway requires an admission gate")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("gateway requires a feature registry")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("gateway requires a usage ledger")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Gateway{
		gate:     opts.Gate,
		registry: opts.Registry,
		ledger:   opts.Ledger,
		provider: opts.Provider,
		observer: opts.Observer,
		clock:    opts.Clock,
		logger:   slog.Default().With("component", "ai.gateway"),
	}, nil
}

// GenerateRequest identifies who is asking, for which feature, and with
// what input.
type GenerateRequest struct {
	Actor   ai.ActorID
	Group   ai.GroupID
	Feature ai.Feature

	// System is an optional system prompt prepended to the feature's
	// configured behavior.
	System string

	// Prompt is the user input for single-turn calls.
	Prompt string

	// Messages replaces Prompt for multi-turn calls. When set, it must
	// end with a user message.
	Messages []provider.Message

	// BypassAdmission skips the admission check. Reserved for internal
	// maintenance callers; usage is still logged.
	BypassAdmission bool
}

func (r *GenerateRequest) messages() []provider.Message {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	return []provider.Message{{Role: provider.RoleUser, Content: r.Prompt}}
}

// GenerateResult is a successful invocation.
type GenerateResult struct {
	// Text is the generated output.
	Text string

	// Model is the model that served the request.
	Model string

	// Usage is the provider-reported token consumption.
	Usage provider.Usage

	// CostCents is the priced cost of the invocation.
	CostCents int64

	// RecordID is the usage record written for this invocation.
	RecordID string
}

// CheckAIReady reports whether the gateway can serve generation requests.
// It returns a *ConfigError describing what is missing, or nil.
func (gw *Gateway) CheckAIReady() error {
	if gw.provider == nil {
		return &ConfigError{Message: "model provider is not configured"}
	}
	return nil
}

// preflight runs steps shared by every entry point: provider check, then
// admission. It returns an error with no usage record written, or nil.
func (gw *Gateway) preflight(ctx context.Context, req *GenerateRequest) error {
	if gw.provider == nil {
		return &ConfigError{Message: "model provider is not configured"}
	}

	if req.BypassAdmission {
		gw.logger.Debug("admission bypassed", "actor", req.Actor, "feature", req.Feature)
		return nil
	}

	decision, err := gw.gate.Check(ctx, req.Actor, req.Group)
	if gw.observer != nil {
		gw.observer.ObserveAdmission(req.Feature, decision.Allowed, decision.Reason)
	}
	if err != nil {
		gw.logger.Error("admission check failed",
			"actor", req.Actor,
			"group", req.Group,
			"error", err,
		)
		return &AdmissionError{Decision: decision, Cause: err}
	}
	if !decision.Allowed {
		gw.logger.Info("admission denied",
			"actor", req.Actor,
			"group", req.Group,
			"feature", req.Feature,
			"reason", decision.Reason,
			"reset_at", decision.ResetAt,
		)
		return &AdmissionError{Decision: decision}
	}
	return nil
}

// resolveProfile maps the feature to its generation parameters. An
// unknown feature is a configuration error, not a provider failure.
func (gw *Gateway) resolveProfile(req *GenerateRequest) (features.Profile, error) {
	profile, err := gw.registry.Profile(req.Feature)
	if err != nil {
		return features.Profile{}, &ConfigError{
			Message: "feature is not configured",
			Cause:   err,
		}
	}
	return profile, nil
}

// record writes the one usage record for an attempted invocation. An
// append failure cannot be recovered here; it is logged loudly and the
// invocation outcome stands.
func (gw *Gateway) record(ctx context.Context, rec *ledger.Record) string {
	rec.ID = ledger.NewID()
	rec.CreatedAt = gw.clock()

	if err := gw.ledger.Append(ctx, rec); err != nil {
		gw.logger.Error("failed to append usage record",
			"actor", rec.ActorID,
			"feature", rec.Feature,
			"success", rec.Success,
			"error", err,
		)
	}
	if gw.observer != nil {
		gw.observer.ObserveGeneration(rec.Feature, rec.Model,
			rec.Success, time.Duration(rec.LatencyMs)*time.Millisecond, rec.TotalTokens)
	}
	return rec.ID
}

// UsageStats is a read-only report of a principal pair's consumption for
// the current UTC day against the configured limits.
type UsageStats struct {
	// Actor and Group aggregate today's attempts, tokens, and cost.
	Actor ledger.Usage
	Group ledger.Usage

	// ActorDailyTokens and GroupDailyTokens are the configured budget
	// ceilings. Zero means unlimited.
	ActorDailyTokens int64
	GroupDailyTokens int64

	// RateCeilings are the configured request-count ceilings.
	RateCeilings ratelimit.Ceilings

	// DayStart is the UTC midnight the report covers from.
	DayStart time.Time
}

// UsageStats reports today's consumption for an actor and its group.
func (gw *Gateway) UsageStats(ctx context.Context, actor ai.ActorID, group ai.GroupID) (*UsageStats, error) {
	dayStart := gw.clock().UTC().Truncate(24 * time.Hour)

	actorUsage, err := gw.ledger.ActorUsageSince(ctx, actor, dayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate actor usage: %w", err)
	}
	groupUsage, err := gw.ledger.GroupUsageSince(ctx, group, dayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate group usage: %w", err)
	}

	budgetCfg := gw.gate.BudgetConfig()
	return &UsageStats{
		Actor:            actorUsage,
		Group:            groupUsage,
		ActorDailyTokens: budgetCfg.ActorDailyTokens,
		GroupDailyTokens: budgetCfg.GroupDailyTokens,
		RateCeilings:     gw.gate.Ceilings(),
		DayStart:         dayStart,
	}, nil
}

// truncate bounds a summary excerpt. Cuts on a byte boundary; summaries
// are for operators, not display.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
