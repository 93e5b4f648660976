// Package narrative produces regulator-ready SAR narratives from a
// classified case. Generation never fails the pipeline: the OpenRouter
// client degrades to the deterministic template on any transport or
// model error.
package narrative

import (
	"context"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

// Input is the case material a narrative is written from.
type Input struct {
	Transactions []domain.Transaction
	Result       *domain.CaseResult
}

// Generator writes a SAR narrative for a classified case.
type Generator interface {
	Generate(ctx context.Context, input Input) (string, error)
}

// New builds a generator from configuration. An unset or unknown
// provider, or a missing API key, selects the deterministic template.
func New(cfg domain.NarrativeConfig) Generator {
	if cfg.Provider == "openrouter" && cfg.OpenRouterKey != "" {
		return NewOpenRouterClient(cfg)
	}
	return &TemplateGenerator{}
}
