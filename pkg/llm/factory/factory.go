package factory

import (
	"fmt"
	"log"
	"time"

	"persona-chat-be/pkg/chat/waterfall"
	"persona-chat-be/pkg/llm"
	"persona-chat-be/pkg/llm/gemini"
	"persona-chat-be/pkg/llm/huggingface"
	"persona-chat-be/pkg/llm/ollama"
)

// TierConfig describes one generation tier as data. Order in the slice is
// waterfall priority order.
type TierConfig struct {
	Label        string
	ProviderType string // "ollama", "gemini", "huggingface"
	Model        string
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
}

func NewProvider(providerType, model, baseURL, apiKey string) (llm.Provider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, model), nil
	case "gemini":
		return gemini.NewGeminiProvider(apiKey, model), nil
	case "huggingface":
		return huggingface.NewHuggingFaceProvider(apiKey, baseURL, model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}

// BuildTiers turns tier configuration into the dispatcher's ordered tier
// list. A tier with an unknown provider type fails construction: a typo in
// configuration should stop the process, not silently shrink the waterfall.
func BuildTiers(configs []TierConfig) ([]waterfall.Tier, error) {
	tiers := make([]waterfall.Tier, 0, len(configs))
	for _, cfg := range configs {
		provider, err := NewProvider(cfg.ProviderType, cfg.Model, cfg.BaseURL, cfg.APIKey)
		if err != nil {
			return nil, fmt.Errorf("tier %s: %w", cfg.Label, err)
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		tiers = append(tiers, waterfall.Tier{
			Label:    cfg.Label,
			Provider: provider,
			Timeout:  timeout,
		})
		log.Printf("[INFO] Configured generation tier: %s (%s/%s, timeout %s)", cfg.Label, cfg.ProviderType, cfg.Model, timeout)
	}
	return tiers, nil
}

// CheapestTier picks the tier the title summarizer should use: the one whose
// label matches preferred, falling back to the last configured tier (hosted
// tiers sit at the bottom of the waterfall). Returning the full tier keeps
// its timeout attached to its provider.
func CheapestTier(tiers []waterfall.Tier, preferred string) (waterfall.Tier, error) {
	if len(tiers) == 0 {
		return waterfall.Tier{}, fmt.Errorf("no generation tiers configured")
	}
	for _, tier := range tiers {
		if tier.Label == preferred {
			return tier, nil
		}
	}
	return tiers[len(tiers)-1], nil
}
