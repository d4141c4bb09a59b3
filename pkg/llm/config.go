package llm

import (
	"errors"
	"fmt"
	"strings"

	"herald/pkg/config"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	APIURL    string
	MaxTokens int
}

// LoadConfig reads LLM_* variables. The provider name is lower-cased.
func LoadConfig() Config {
	return Config{
		Provider:  strings.ToLower(strings.TrimSpace(config.GetEnv("LLM_PROVIDER", ProviderOpenAI))),
		Model:     config.GetEnv("LLM_MODEL", ""),
		APIKey:    config.GetEnv("LLM_API_KEY", ""),
		APIURL:    config.GetEnv("LLM_API_URL", ""),
		MaxTokens: config.GetEnvInt("LLM_MAX_TOKENS", 0),
	}
}

// Validate reports settings the chosen provider cannot start without.
// Ollama runs without a model or key since it has local defaults.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Provider) {
	case ProviderOpenAI, ProviderAnthropic:
		if strings.TrimSpace(c.Model) == "" {
			errs = append(errs, errors.New("LLM_MODEL is required"))
		}
	case ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER %q is not supported", c.Provider))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, errors.New("LLM_MAX_TOKENS must not be negative"))
	}
	return errors.Join(errs...)
}

// NewProvider returns the provider named by cfg.Provider.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg), nil
	case ProviderOllama:
		return NewOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
