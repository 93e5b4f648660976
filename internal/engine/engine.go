package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

// ExtensionEvaluator contributes tenant-defined pattern matches on top
// of the built-in detector bank. Each returned match carries its score
// contribution in the Score field. Implementations must be safe for
// concurrent use.
type ExtensionEvaluator interface {
	Evaluate(ctx context.Context, tenantID string, txs []domain.Transaction) ([]domain.PatternMatch, error)
}

// Engine classifies a transaction collection against the built-in
// detector bank and optional extension rules. It holds no per-case
// state and is safe for concurrent use.
type Engine struct {
	cfg        domain.EngineConfig
	detectors  []Detector
	ext        ExtensionEvaluator
	maxWorkers int
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension attaches an extension evaluator whose matches are
// merged after the built-in bank.
func WithExtension(ext ExtensionEvaluator) Option {
	return func(e *Engine) { e.ext = ext }
}

// WithDetectors replaces the built-in detector bank. Used in tests.
func WithDetectors(detectors []Detector) Option {
	return func(e *Engine) { e.detectors = detectors }
}

// New constructs an Engine from a threshold configuration.
func New(cfg domain.EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		cfg:        cfg,
		detectors:  defaultDetectors(cfg),
		maxWorkers: cfg.MaxWorkers,
	}
	if e.maxWorkers <= 0 {
		e.maxWorkers = 1
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify runs every detector over the collection and assembles the
// case result. Detectors run in parallel up to maxWorkers; the result
// ordering follows detector declaration order regardless of completion
// order. Classify never fails: extension evaluation errors degrade to
// the built-in result.
func (e *Engine) Classify(ctx context.Context, tenantID string, txs []domain.Transaction) *domain.CaseResult {
	idx := BuildDayIndex(txs)

	results := make([]*domain.PatternMatch, len(e.detectors))
	sem := make(chan struct{}, e.maxWorkers)
	var wg sync.WaitGroup
	for i, det := range e.detectors {
		wg.Add(1)
		go func(i int, det Detector) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = det.Evaluate(txs, idx)
		}(i, det)
	}
	wg.Wait()

	patterns := make([]domain.PatternMatch, 0, len(results))
	for _, m := range results {
		if m != nil {
			patterns = append(patterns, *m)
		}
	}

	if e.ext != nil {
		extMatches, err := e.ext.Evaluate(ctx, tenantID, txs)
		if err != nil {
			slog.Warn("extension evaluation failed, using builtin result only",
				"tenant_id", tenantID,
				"error", err,
			)
		} else {
			patterns = append(patterns, extMatches...)
		}
	}

	score := riskScore(patterns)
	driver := selectDriver(patterns)
	return &domain.CaseResult{
		Patterns:             patterns,
		RiskScore:            score,
		RiskBand:             riskBand(score),
		MainDriver:           driver,
		SupportingIndicators: supportingIndicators(patterns, driver),
		Recommendation:       recommend(patterns, score),
	}
}
