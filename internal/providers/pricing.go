package providers

import "strings"

// ModelPricing is per-million-token USD rates.
type ModelPricing struct {
	Input      float64
	CacheWrite float64
	CacheRead  float64
	Output     float64
}

// Default rate card. Matched by model-name prefix so dated snapshots
// (claude-sonnet-4-20250514) hit the family entry.
var defaultPricing = map[string]ModelPricing{
	"claude-sonnet":           {Input: 3.00, CacheWrite: 3.75, CacheRead: 0.30, Output: 15.00},
	"claude-haiku":            {Input: 0.80, CacheWrite: 1.00, CacheRead: 0.08, Output: 4.00},
	"llama-3.3-70b-versatile": {Input: 0.59, Output: 0.79},
	"llama-3.1-8b-instant":    {Input: 0.05, Output: 0.08},
}

// PricingOverride lets config pin rates for a model.
type PricingOverride struct {
	Model   string
	Pricing ModelPricing
}

// PricingFor resolves the rate card for a model, checking overrides first,
// then prefix-matching the defaults. Unknown models price at zero.
func PricingFor(model string, overrides []PricingOverride) ModelPricing {
	for _, o := range overrides {
		if o.Model == model {
			return o.Pricing
		}
	}
	for prefix, p := range defaultPricing {
		if strings.HasPrefix(model, prefix) {
			return p
		}
	}
	return ModelPricing{}
}

// CostBreakdown is the USD spend for one usage record.
type CostBreakdown struct {
	Input  float64
	Output float64
	Total  float64
}

// CostForUsage prices a usage record. Cache writes and reads bill at their
// own rates; both count toward the input side of the breakdown.
func CostForUsage(model string, u *Usage, overrides []PricingOverride) CostBreakdown {
	if u == nil {
		return CostBreakdown{}
	}
	p := PricingFor(model, overrides)
	const mtok = 1_000_000.0

	in := float64(u.PromptTokens)/mtok*p.Input +
		float64(u.CacheWriteTokens)/mtok*p.CacheWrite +
		float64(u.CacheReadTokens)/mtok*p.CacheRead
	out := float64(u.CompletionTokens) / mtok * p.Output

	return CostBreakdown{Input: in, Output: out, Total: in + out}
}
