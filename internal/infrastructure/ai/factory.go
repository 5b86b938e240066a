// Package ai adapts language-model endpoints into command generators with a
// strict response schema and a safety self-assessment gate.
package ai

import (
	"net/http"
	"strings"
	"time"

	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/ports"
)

type Factory struct {
	httpClient *http.Client
}

// NewFactory builds a generator factory. timeout bounds each model call,
// independently of the execution timeout.
func NewFactory(timeout time.Duration) *Factory {
	if timeout <= 0 {
		timeout = domain.DefaultGeneratorTimeout
	}
	return &Factory{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (f *Factory) ForModel(model domain.ModelDefinition) (ports.CommandGenerator, error) {
	switch inferProviderKind(model.Endpoint, model.Name) {
	case domain.ProviderKindAnthropic:
		return newHTTPGenerator("anthropic", model, f.httpClient, anthropicAdapter()), nil
	case domain.ProviderKindOpenAI:
		return newHTTPGenerator("openai", model, f.httpClient, openaiAdapter()), nil
	case domain.ProviderKindOllama:
		return newHTTPGenerator("ollama", model, f.httpClient, ollamaAdapter()), nil
	default:
		return f.Heuristic(), nil
	}
}

// Heuristic returns the deterministic offline generator.
func (f *Factory) Heuristic() ports.CommandGenerator {
	return NewHeuristic()
}

func inferProviderKind(endpoint string, name string) domain.ProviderKind {
	nameLower := strings.ToLower(name)

	switch {
	case strings.Contains(endpoint, "anthropic.com"):
		return domain.ProviderKindAnthropic
	case strings.Contains(endpoint, "openai.com"):
		return domain.ProviderKindOpenAI
	case strings.Contains(nameLower, "ollama"), strings.Contains(endpoint, "11434"), strings.Contains(endpoint, "localhost"):
		return domain.ProviderKindOllama
	default:
		return domain.ProviderKindUnknown
	}
}

var _ ports.GeneratorFactory = (*Factory)(nil)
