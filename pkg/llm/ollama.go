package llm

import (
	"context"
	"strings"
)

const (
	defaultOllamaURL   = "http://localhost:11434/v1"
	defaultOllamaModel = "llama3.1"
)

// OllamaProvider talks to a local Ollama daemon through its OpenAI-compatible
// endpoint. A bare host URL gets the /v1 suffix appended.
type OllamaProvider struct {
	openai *OpenAIProvider
}

func NewOllamaProvider(cfg Config) *OllamaProvider {
	apiURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	switch {
	case apiURL == "":
		apiURL = defaultOllamaURL
	case !strings.HasSuffix(apiURL, "/v1"):
		apiURL += "/v1"
	}
	cfg.APIURL = apiURL
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultOllamaModel
	}
	return &OllamaProvider{openai: NewOpenAIProvider(cfg)}
}

func (p *OllamaProvider) Complete(ctx context.Context, messages []Message) (Stream, error) {
	return p.openai.Complete(ctx, messages)
}
