// Package features maps StrengthSync's AI use cases to models and
// generation parameters, and prices completed generations.
//
// The feature set is closed: product code selects one of the declared
// Feature constants, the registry resolves it to a Profile, and the gateway
// uses the profile to build the provider request. Profiles come from
// documented defaults merged with optional configuration overrides at
// construction; there is no runtime mutation.
package features

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/lcortez-code/strengthsync/pkg/ai"
)

// The closed set of features the product may request.
const (
	// FeatureReviewDraft drafts a performance review from bullet notes.
	FeatureReviewDraft ai.Feature = "review_draft"

	// FeatureShoutoutSuggest suggests recognition shoutout wording.
	FeatureShoutoutSuggest ai.Feature = "shoutout_suggest"

	// FeatureSkillSummary summarizes a member's marketplace skill profile.
	FeatureSkillSummary ai.Feature = "skill_summary"

	// FeatureGoalCoach coaches a member through goal refinement.
	FeatureGoalCoach ai.Feature = "goal_coach"

	// FeatureChatAssistant powers the multi-turn assistant.
	FeatureChatAssistant ai.Feature = "chat_assistant"
)

// Profile is the resolved generation configuration for one feature.
type Profile struct {
	Feature     ai.Feature
	ModelID     string
	Temperature float64
	MaxTokens   int
}

// Override adjusts a feature's default profile from configuration. Zero
// values leave the default in place; Temperature is a pointer so an
// explicit 0 can be expressed.
type Override struct {
	ModelID     string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
}

// ErrUnknownFeature is returned when a caller asks for a feature outside
// the closed set.
type ErrUnknownFeature struct {
	Feature ai.Feature
}

func (e *ErrUnknownFeature) Error() string {
	return fmt.Sprintf("unknown AI feature %q", e.Feature)
}

// defaultProfiles are the documented defaults every deployment starts from.
func defaultProfiles() map[ai.Feature]Profile {
	return map[ai.Feature]Profile{
		FeatureReviewDraft:     {Feature: FeatureReviewDraft, ModelID: "claude-sonnet-4-5", Temperature: 0.4, MaxTokens: 1024},
		FeatureShoutoutSuggest: {Feature: FeatureShoutoutSuggest, ModelID: "claude-haiku-4-5", Temperature: 0.8, MaxTokens: 256},
		FeatureSkillSummary:    {Feature: FeatureSkillSummary, ModelID: "claude-haiku-4-5", Temperature: 0.2, MaxTokens: 512},
		FeatureGoalCoach:       {Feature: FeatureGoalCoach, ModelID: "claude-sonnet-4-5", Temperature: 0.6, MaxTokens: 768},
		FeatureChatAssistant:   {Feature: FeatureChatAssistant, ModelID: "claude-sonnet-4-5", Temperature: 0.7, MaxTokens: 1024},
	}
}

// Registry resolves features to profiles and prices model usage. It is
// immutable after construction and safe for concurrent use.
type Registry struct {
	profiles map[ai.Feature]Profile
	prices   map[string]ModelPrice
	logger   *slog.Logger
}

// NewRegistry builds a registry from the documented defaults merged with
// the given overrides. Overrides for unknown features are rejected so a
// config typo cannot silently create a dead entry.
func NewRegistry(overrides map[string]Override) (*Registry, error) {
	profiles := defaultProfiles()

	for name, ov := range overrides {
		feature := ai.Feature(name)
		profile, ok := profiles[feature]
		if !ok {
			return nil, &ErrUnknownFeature{Feature: feature}
		}
		if ov.ModelID != "" {
			profile.ModelID = ov.ModelID
		}
		if ov.Temperature != nil {
			profile.Temperature = *ov.Temperature
		}
		if ov.MaxTokens > 0 {
			profile.MaxTokens = ov.MaxTokens
		}
		profiles[feature] = profile
	}

	return &Registry{
		profiles: profiles,
		prices:   defaultPrices(),
		logger:   slog.Default().With("component", "ai.features"),
	}, nil
}

// Profile resolves the feature's generation configuration.
func (r *Registry) Profile(feature ai.Feature) (Profile, error) {
	profile, ok := r.profiles[feature]
	if !ok {
		return Profile{}, &ErrUnknownFeature{Feature: feature}
	}
	return profile, nil
}

// Features lists the closed feature set in stable order.
func (r *Registry) Features() []ai.Feature {
	out := make([]ai.Feature, 0, len(r.profiles))
	for f := range r.profiles {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
