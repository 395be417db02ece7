package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/lcortez-code/strengthsync/pkg/ai/ledger"
	"github.com/lcortez-code/strengthsync/pkg/ai/provider"
	"github.com/lcortez-code/strengthsync/pkg/ai/schema"
)

// GenerateText performs a blocking text generation.
//
// Exactly one usage record is written once the call passes admission,
// success or failure. Configuration and admission errors write nothing.
func (gw *Gateway) GenerateText(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	if err := gw.preflight(ctx, req); err != nil {
		return nil, err
	}
	profile, err := gw.resolveProfile(req)
	if err != nil {
		return nil, err
	}

	messages := req.messages()
	start := gw.clock()
	resp, invokeErr := gw.provider.Complete(ctx, &provider.Request{
		Model:       profile.ModelID,
		System:      req.System,
		Messages:    messages,
		MaxTokens:   profile.MaxTokens,
		Temperature: profile.Temperature,
	})
	latencyMs := gw.clock().Sub(start).Milliseconds()

	if invokeErr != nil {
		gw.record(ctx, &ledger.Record{
			ActorID:        req.Actor,
			GroupID:        req.Group,
			Feature:        req.Feature,
			Model:          profile.ModelID,
			LatencyMs:      latencyMs,
			Success:        false,
			ErrorMessage:   invokeErr.Error(),
			RequestSummary: truncate(messages[len(messages)-1].Content, summaryLimit),
		})
		return nil, &ProviderError{Feature: req.Feature, Cause: invokeErr}
	}

	cost := gw.registry.CalculateCost(resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	recordID := gw.record(ctx, &ledger.Record{
		ActorID:          req.Actor,
		GroupID:          req.Group,
		Feature:          req.Feature,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.Total(),
		Model:            resp.Model,
		LatencyMs:        latencyMs,
		Success:          true,
		RequestSummary:   truncate(messages[len(messages)-1].Content, summaryLimit),
		ResponseSummary:  truncate(resp.Text, summaryLimit),
		CostCents:        cost,
	})

	return &GenerateResult{
		Text:      resp.Text,
		Model:     resp.Model,
		Usage:     resp.Usage,
		CostCents: cost,
		RecordID:  recordID,
	}, nil
}

// StructuredResult is a successful schema-validated generation.
type StructuredResult struct {
	// Value is the validated object with unknown members dropped.
	Value map[string]any

	// Raw is the provider's original text output.
	Raw string

	Model     string
	Usage     provider.Usage
	CostCents int64
	RecordID  string
}

// GenerateStructured performs a generation whose output must parse as
// JSON and satisfy the given schema.
//
// A validation failure is logged like a provider failure, except that the
// tokens actually consumed are recorded, and is surfaced as a
// *SchemaError so callers can decide whether to re-prompt.
func (gw *Gateway) GenerateStructured(ctx context.Context, req *GenerateRequest, s *schema.Schema) (*StructuredResult, error) {
	if err := gw.preflight(ctx, req); err != nil {
		return nil, err
	}
	profile, err := gw.resolveProfile(req)
	if err != nil {
		return nil, err
	}

	messages := req.messages()
	start := gw.clock()
	resp, invokeErr := gw.provider.Complete(ctx, &provider.Request{
		Model:       profile.ModelID,
		System:      req.System,
		Messages:    messages,
		MaxTokens:   profile.MaxTokens,
		Temperature: profile.Temperature,
	})
	latencyMs := gw.clock().Sub(start).Milliseconds()

	requestSummary := truncate(messages[len(messages)-1].Content, summaryLimit)

	if invokeErr != nil {
		gw.record(ctx, &ledger.Record{
			ActorID:        req.Actor,
			GroupID:        req.Group,
			Feature:        req.Feature,
			Model:          profile.ModelID,
			LatencyMs:      latencyMs,
			Success:        false,
			ErrorMessage:   invokeErr.Error(),
			RequestSummary: requestSummary,
		})
		return nil, &ProviderError{Feature: req.Feature, Cause: invokeErr}
	}

	value, violations := s.ValidateJSON([]byte(resp.Text))
	if len(violations) > 0 {
		schemaErr := &SchemaError{Feature: req.Feature, Violations: violations}
		gw.record(ctx, &ledger.Record{
			ActorID:          req.Actor,
			GroupID:          req.Group,
			Feature:          req.Feature,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.Total(),
			Model:            resp.Model,
			LatencyMs:        latencyMs,
			Success:          false,
			ErrorMessage:     schemaErr.Error(),
			RequestSummary:   requestSummary,
			ResponseSummary:  truncate(resp.Text, summaryLimit),
		})
		return nil, schemaErr
	}

	cost := gw.registry.CalculateCost(resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	recordID := gw.record(ctx, &ledger.Record{
		ActorID:          req.Actor,
		GroupID:          req.Group,
		Feature:          req.Feature,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.Total(),
		Model:            resp.Model,
		LatencyMs:        latencyMs,
		Success:          true,
		RequestSummary:   requestSummary,
		ResponseSummary:  truncate(resp.Text, summaryLimit),
		CostCents:        cost,
	})

	return &StructuredResult{
		Value:     value,
		Raw:       resp.Text,
		Model:     resp.Model,
		Usage:     resp.Usage,
		CostCents: cost,
		RecordID:  recordID,
	}, nil
}

// StreamCallbacks receives streaming output. OnDelta is called for each
// text increment; returning an error aborts the stream. OnComplete is
// called once with the final result after the usage record is written,
// and only on success.
type StreamCallbacks struct {
	OnDelta    func(delta string) error
	OnComplete func(result *GenerateResult)
}

// StreamText performs a streaming generation, blocking until the stream
// ends.
//
// The usage record is deferred to stream completion, when final token
// counts are known. Exactly one record is written even when the stream is
// aborted mid-flight: cancellation and delta-callback failures write a
// failure record carrying the tokens consumed up to that point, estimated
// when the provider never reported totals.
func (gw *Gateway) StreamText(ctx context.Context, req *GenerateRequest, cb StreamCallbacks) error {
	if err := gw.preflight(ctx, req); err != nil {
		return err
	}
	profile, err := gw.resolveProfile(req)
	if err != nil {
		return err
	}

	// Every return path must release the provider's stream reader, which
	// blocks on channel sends until its context is cancelled.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages := req.messages()
	start := gw.clock()
	chunks, invokeErr := gw.provider.Stream(ctx, &provider.Request{
		Model:       profile.ModelID,
		System:      req.System,
		Messages:    messages,
		MaxTokens:   profile.MaxTokens,
		Temperature: profile.Temperature,
	})

	requestSummary := truncate(messages[len(messages)-1].Content, summaryLimit)

	if invokeErr != nil {
		gw.record(ctx, &ledger.Record{
			ActorID:        req.Actor,
			GroupID:        req.Group,
			Feature:        req.Feature,
			Model:          profile.ModelID,
			LatencyMs:      gw.clock().Sub(start).Milliseconds(),
			Success:        false,
			ErrorMessage:   invokeErr.Error(),
			RequestSummary: requestSummary,
		})
		return &ProviderError{Feature: req.Feature, Cause: invokeErr}
	}

	var (
		logOnce sync.Once
		text    string
	)

	// logFailure writes the one failure record for an aborted stream.
	// Token counts are estimated from the text received so far since the
	// provider never delivered totals.
	logFailure := func(cause error) {
		logOnce.Do(func() {
			gw.record(ctx, &ledger.Record{
				ActorID:          req.Actor,
				GroupID:          req.Group,
				Feature:          req.Feature,
				CompletionTokens: estimateTokens(text),
				TotalTokens:      estimateTokens(text),
				Model:            profile.ModelID,
				LatencyMs:        gw.clock().Sub(start).Milliseconds(),
				Success:          false,
				ErrorMessage:     cause.Error(),
				RequestSummary:   requestSummary,
				ResponseSummary:  truncate(text, summaryLimit),
			})
		})
	}

	for chunk := range chunks {
		if chunk.Err != nil {
			logFailure(chunk.Err)
			return &ProviderError{Feature: req.Feature, Cause: chunk.Err}
		}

		if chunk.Delta != "" {
			text += chunk.Delta
			if cb.OnDelta != nil {
				if err := cb.OnDelta(chunk.Delta); err != nil {
					logFailure(err)
					return &ProviderError{Feature: req.Feature, Cause: err}
				}
			}
		}

		if chunk.Usage == nil {
			continue
		}

		// Final chunk: the stream completed.
		usage := *chunk.Usage
		latencyMs := gw.clock().Sub(start).Milliseconds()
		cost := gw.registry.CalculateCost(profile.ModelID, usage.PromptTokens, usage.CompletionTokens)

		var recordID string
		logOnce.Do(func() {
			recordID = gw.record(ctx, &ledger.Record{
				ActorID:          req.Actor,
				GroupID:          req.Group,
				Feature:          req.Feature,
				PromptTokens:     usage.PromptTokens,
				CompletionTokens: usage.CompletionTokens,
				TotalTokens:      usage.Total(),
				Model:            profile.ModelID,
				LatencyMs:        latencyMs,
				Success:          true,
				RequestSummary:   requestSummary,
				ResponseSummary:  truncate(text, summaryLimit),
				CostCents:        cost,
			})
		})

		if cb.OnComplete != nil {
			cb.OnComplete(&GenerateResult{
				Text:      text,
				Model:     profile.ModelID,
				Usage:     usage,
				CostCents: cost,
				RecordID:  recordID,
			})
		}
		return nil
	}

	// Channel closed without a final chunk: the stream was cut off,
	// usually by context cancellation.
	cause := ctx.Err()
	if cause == nil {
		cause = errors.New("stream ended without completion")
	}
	logFailure(cause)
	return &ProviderError{Feature: req.Feature, Cause: cause}
}

// estimateTokens approximates token count for text the provider never
// priced. Four bytes per token is the usual rough figure for English.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(text)/4 + 1
}
