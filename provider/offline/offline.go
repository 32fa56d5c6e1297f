package offline_provider

import (
	"context"
	"strings"

	"github.com/mohammad-safakhou/scholar/provider/llm"
)

// Provider answers without a model: it echoes the last user turn so the rest
// of the pipeline (storage, extraction, summaries) can run without network
// access or credentials.
type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) Name() string { return "offline" }

func (p *Provider) Chat(_ context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	var last string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llm.RoleUser {
			last = strings.TrimSpace(history[i].Content)
			break
		}
	}
	if last == "" {
		return "Hello! I'm your research assistant. How can I help with your research today?", nil
	}
	return "_Offline mode: no language model is configured._\n\n" + last, nil
}
