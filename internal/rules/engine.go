// Package rules provides the CEL-Go based extension rule engine.
// Tenant-authored expressions run over case-level aggregates and
// contribute extra pattern matches alongside the built-in detectors.
package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

// Engine compiles and evaluates tenant extension rules.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a new extension rule engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment exposing the case-level aggregates.
	env, err := cel.NewEnv(
		cel.Variable("tx_count", cel.IntType),
		cel.Variable("day_count", cel.IntType),
		cel.Variable("distinct_channels", cel.IntType),
		cel.Variable("total_amount", cel.DoubleType),
		cel.Variable("max_amount", cel.DoubleType),
		cel.Variable("cash_total", cel.DoubleType),
		cel.Variable("inbound_total", cel.DoubleType),
		cel.Variable("outbound_total", cel.DoubleType),
		cel.Variable("channels", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

// Evaluate runs every loaded rule for the tenant against the case
// aggregates and returns one PatternMatch per firing rule, ordered by
// rule ID for deterministic output. A rule whose expression errors at
// runtime abstains rather than failing the case.
func (e *Engine) Evaluate(ctx context.Context, tenantID string, txs []domain.Transaction) ([]domain.PatternMatch, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		if rule.Config.TenantID == "" || rule.Config.TenantID == tenantID {
			rules = append(rules, rule)
		}
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Config.ID < rules[j].Config.ID })

	activation := caseActivation(txs)

	// Parallel evaluation using worker pool pattern
	fired := make([]bool, len(rules))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			out, _, err := r.Program.Eval(activation)
			if err != nil {
				return
			}
			if b, ok := out.(types.Bool); ok && bool(b) {
				fired[idx] = true
			}
		}(i, rule)
	}

	wg.Wait()

	var matches []domain.PatternMatch
	for i, rule := range rules {
		if !fired[i] {
			continue
		}
		matches = append(matches, domain.PatternMatch{
			Code:        rule.Config.Code,
			Name:        rule.Config.Name,
			Description: rule.Config.Description,
			Score:       rule.Config.Score,
		})
	}
	return matches, nil
}

// caseActivation computes the aggregate variables visible to rule
// expressions.
func caseActivation(txs []domain.Transaction) map[string]any {
	var total, maxAmount, cashTotal, inTotal, outTotal float64
	channelSet := make(map[string]struct{})
	daySet := make(map[string]struct{})

	for i := range txs {
		tx := &txs[i]
		amt := tx.AmountValue()
		total += amt
		if amt > maxAmount {
			maxAmount = amt
		}
		ch := tx.Channel()
		channelSet[ch] = struct{}{}
		if ch == domain.ChannelCash {
			cashTotal += amt
		}
		switch tx.DirectionValue() {
		case domain.DirectionInbound:
			inTotal += amt
		case domain.DirectionOutbound:
			outTotal += amt
		}
		if day, ok := tx.Day(); ok {
			daySet[day.Format("2006-01-02")] = struct{}{}
		}
	}

	channels := make([]string, 0, len(channelSet))
	for ch := range channelSet {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	return map[string]any{
		"tx_count":          int64(len(txs)),
		"day_count":         int64(len(daySet)),
		"distinct_channels": int64(len(channelSet)),
		"total_amount":      total,
		"max_amount":        maxAmount,
		"cash_total":        cashTotal,
		"inbound_total":     inTotal,
		"outbound_total":    outTotal,
		"channels":          channels,
	}
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
