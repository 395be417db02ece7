package gateway

import (
	"fmt"

	"github.com/lcortez-code/strengthsync/pkg/ai"
	"github.com/lcortez-code/strengthsync/pkg/ai/schema"
)

// ConfigError means the gateway cannot serve the request as configured:
// no provider, or an unknown feature. Nothing was attempted, so no usage
// record exists for it.
type ConfigError struct {
	// Message describes what is unconfigured or misconfigured.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("gateway configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("gateway configuration error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// AdmissionError means the admission check denied the request, or the
// check itself could not run. The decision carries the denied tier or
// budget and when it resets. No usage record is written for a denial.
type AdmissionError struct {
	// Decision is the denying admission decision.
	Decision ai.Decision

	// Cause is set when the check failed rather than denied.
	Cause error
}

func (e *AdmissionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("admission check failed: %v (%s)", e.Cause, e.Decision)
	}
	return fmt.Sprintf("admission denied: %s", e.Decision)
}

func (e *AdmissionError) Unwrap() error {
	return e.Cause
}

// ProviderError means the model invocation failed after admission. A
// usage record with success=false was written before this was returned.
type ProviderError struct {
	// Feature is the feature whose invocation failed.
	Feature ai.Feature

	// Cause is the provider's error.
	Cause error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("generation failed for feature %q: %v", e.Feature, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// SchemaError means the provider produced output that failed schema
// validation. The invocation is logged like a provider failure; callers
// get a distinct kind so they can decide whether to re-prompt.
type SchemaError struct {
	// Feature is the feature whose output failed validation.
	Feature ai.Feature

	// Violations lists what failed, with paths.
	Violations []schema.Violation
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("structured output for feature %q failed validation: %s",
		e.Feature, schema.FormatViolations(e.Violations))
}
