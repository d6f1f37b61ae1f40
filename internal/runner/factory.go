package runner

import (
	"fmt"
	"os"
	"sync"

	"github.com/openclaw/planweave/internal/config"
	"github.com/vinayprograms/agentkit/llm"
)

// ProfileFactory builds providers for the config's model profiles and
// caches them per profile. Implements plan.ProviderSource.
type ProfileFactory struct {
	cfg *config.Config

	mu        sync.Mutex
	providers map[string]llm.Provider
}

// NewProfileFactory creates a factory over the loaded config.
func NewProfileFactory(cfg *config.Config) *ProfileFactory {
	return &ProfileFactory{
		cfg:       cfg,
		providers: make(map[string]llm.Provider),
	}
}

// GetProvider returns the provider for profile, constructing it on
// first use. An unknown non-empty profile is an error so callers can
// fall back to the default model.
func (f *ProfileFactory) GetProvider(profile string) (llm.Provider, error) {
	if profile != "" && !f.cfg.HasProfile(profile) {
		return nil, fmt.Errorf("unknown model profile: %s", profile)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.providers[profile]; ok {
		return p, nil
	}

	llmCfg := f.cfg.GetProfile(profile)
	providerName := llmCfg.Provider
	if providerName == "" {
		providerName = llm.InferProviderFromModel(llmCfg.Model)
	}
	if providerName == "" && llmCfg.Model == "" {
		return nil, fmt.Errorf("LLM model not configured")
	}

	apiKeyEnv := llmCfg.APIKeyEnv
	if apiKeyEnv == "" {
		apiKeyEnv = config.DefaultAPIKeyEnv(providerName)
	}

	p, err := llm.NewProvider(llm.ProviderConfig{
		Provider:  providerName,
		Model:     llmCfg.Model,
		APIKey:    os.Getenv(apiKeyEnv),
		MaxTokens: llmCfg.MaxTokens,
		BaseURL:   llmCfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating provider for profile %q: %w", profile, err)
	}
	f.providers[profile] = p
	return p, nil
}
