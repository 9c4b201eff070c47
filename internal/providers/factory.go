package providers

import (
	"fmt"

	"github.com/nextlevelbuilder/voxtask/internal/config"
)

const groqAPIBase = "https://api.groq.com/openai/v1"

// FromConfig builds the active provider from configuration.
func FromConfig(cfg *config.Config) (Provider, error) {
	name, pc := cfg.ActiveProvider()
	if pc.APIKey == "" {
		return nil, fmt.Errorf("provider %s: no api key configured", name)
	}

	switch name {
	case "anthropic":
		return NewAnthropicProvider(pc.APIKey,
			WithAnthropicModel(pc.Model),
			WithAnthropicBaseURL(pc.BaseURL),
		), nil
	case "groq":
		base := pc.BaseURL
		if base == "" {
			base = groqAPIBase
		}
		model := pc.Model
		if model == "" {
			model = "llama-3.3-70b-versatile"
		}
		return NewOpenAIProvider("groq", pc.APIKey, base, model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// OverridesFromConfig converts config cost overrides to pricing overrides.
func OverridesFromConfig(cfg *config.Config) []PricingOverride {
	out := make([]PricingOverride, 0, len(cfg.Costs))
	for _, c := range cfg.Costs {
		out = append(out, PricingOverride{
			Model: c.Model,
			Pricing: ModelPricing{
				Input:      c.Input,
				CacheWrite: c.CacheWrite,
				CacheRead:  c.CacheRead,
				Output:     c.Output,
			},
		})
	}
	return out
}
