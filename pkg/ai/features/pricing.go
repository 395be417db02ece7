package features

// ModelPrice is the static price for one model, expressed in cents per
// million tokens so the arithmetic stays integral.
type ModelPrice struct {
	PromptCentsPerMillion     int64
	CompletionCentsPerMillion int64
}

// defaultPrices is the static per-model price table. Prices change rarely
// enough that a release is the right vehicle for updates.
func defaultPrices() map[string]ModelPrice {
	return map[string]ModelPrice{
		"claude-sonnet-4-5": {PromptCentsPerMillion: 300, CompletionCentsPerMillion: 1500},
		"claude-haiku-4-5":  {PromptCentsPerMillion: 100, CompletionCentsPerMillion: 500},
		"claude-opus-4-1":   {PromptCentsPerMillion: 1500, CompletionCentsPerMillion: 7500},
		"gpt-4o":            {PromptCentsPerMillion: 250, CompletionCentsPerMillion: 1000},
		"gpt-4o-mini":       {PromptCentsPerMillion: 15, CompletionCentsPerMillion: 60},
	}
}

// CalculateCost prices a completed generation in cents, rounded up so
// fractional cents are never given away. An unrecognized model logs a
// warning and prices as zero rather than failing the call: billing data
// being late is recoverable, a failed generation is not.
func (r *Registry) CalculateCost(modelID string, promptTokens, completionTokens int) int64 {
	price, ok := r.prices[modelID]
	if !ok {
		r.logger.Warn("no price configured for model, recording zero cost",
			"model", modelID)
		return 0
	}

	raw := int64(promptTokens)*price.PromptCentsPerMillion +
		int64(completionTokens)*price.CompletionCentsPerMillion
	if raw == 0 {
		return 0
	}
	return (raw + 999_999) / 1_000_000
}
