// Package jobs runs the async case pipeline: it consumes submissions
// from the event bus and carries each job through parsing, pattern
// classification, narrative generation, and persistence.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/Shauryaditya/aml-case-processor/internal/bus"
	"github.com/Shauryaditya/aml-case-processor/internal/domain"
	"github.com/Shauryaditya/aml-case-processor/internal/engine"
	"github.com/Shauryaditya/aml-case-processor/internal/narrative"
	"github.com/Shauryaditya/aml-case-processor/internal/normalize"
)

// resultTTL is how long completed case results stay in the cache.
const resultTTL = time.Hour

// Processor consumes case submissions from the EventBus and drives
// each job through the pipeline states.
type Processor struct {
	bus       domain.EventBus
	repo      domain.Repository
	cache     domain.Cache
	engine    *engine.Engine
	generator narrative.Generator

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds processor configuration.
type Config struct {
	// TenantIDs is the list of tenants to process.
	TenantIDs []string
}

// NewProcessor creates a new async case processor.
func NewProcessor(bus domain.EventBus, repo domain.Repository, cache domain.Cache, eng *engine.Engine, gen narrative.Generator) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		bus:       bus,
		repo:      repo,
		cache:     cache,
		engine:    eng,
		generator: gen,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the submission topic for the given tenants. An
// empty list starts one wildcard subscription covering every tenant.
func (p *Processor) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return p.startTenant(domain.TenantAll)
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := p.startTenant(tenantID); err != nil {
			slog.Error("failed to start processor for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("case processors started",
		"tenant_count", len(cfg.TenantIDs),
	)
	return nil
}

func (p *Processor) startTenant(tenantID string) error {
	sub, err := p.bus.Subscribe(p.ctx, tenantID, domain.TopicCaseSubmitted, func(ctx context.Context, msg *domain.Message) error {
		return p.handleSubmission(ctx, msg)
	})
	if err != nil {
		return err
	}
	p.subscriptions = append(p.subscriptions, sub)

	slog.Info("case processor subscribed",
		"tenant_id", tenantID,
		"topic", domain.TopicCaseSubmitted,
	)
	return nil
}

// handleSubmission runs one job through the pipeline. Failures mark
// the job as errored rather than bubbling up, so a poison message
// cannot wedge the subscription.
func (p *Processor) handleSubmission(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	sub, err := bus.DecodeSubmission(msg)
	if err != nil {
		slog.Error("failed to parse case submission",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	tenantID := sub.TenantID

	slog.Debug("processing case",
		"job_id", sub.JobID,
		"tenant_id", tenantID,
		"file", sub.FileName,
	)

	// 1. Parse the statement if the submission carries a raw file.
	p.transition(ctx, tenantID, sub.JobID, domain.JobParsing)
	txs := sub.Transactions
	if len(sub.Raw) > 0 {
		parsed, err := normalize.Extract(sub.FileName, sub.Raw)
		if err != nil {
			p.fail(ctx, tenantID, sub, err)
			return nil
		}
		txs = parsed
	}

	// 2. Classify.
	p.transition(ctx, tenantID, sub.JobID, domain.JobRules)
	result := p.engine.Classify(ctx, tenantID, txs)

	// 3. Write the narrative.
	p.transition(ctx, tenantID, sub.JobID, domain.JobNarrative)
	text, err := p.generator.Generate(ctx, narrative.Input{
		Transactions: txs,
		Result:       result,
	})
	if err != nil {
		// Narrative failure degrades the job, it does not sink it.
		slog.Warn("narrative generation failed",
			"job_id", sub.JobID,
			"error", err,
		)
		text = ""
	}

	// 4. Persist the completed job and cache its result.
	completed := time.Now().UTC()
	job := &domain.Job{
		ID:          sub.JobID,
		TenantID:    tenantID,
		Status:      domain.JobDone,
		FileName:    sub.FileName,
		SubmittedAt: time.Unix(0, msg.Timestamp).UTC(),
		CompletedAt: &completed,
		TxCount:     len(txs),
		Result:      result,
		Narrative:   text,
	}
	if p.cache != nil {
		if err := p.cache.SetResult(ctx, tenantID, sub.JobID, result, resultTTL); err != nil {
			slog.Warn("failed to cache result",
				"job_id", sub.JobID,
				"error", err,
			)
		}
	}
	if p.repo != nil {
		if err := p.repo.SaveJob(ctx, tenantID, job); err != nil {
			slog.Error("failed to save job",
				"job_id", sub.JobID,
				"error", err,
			)
		}
	}

	// 5. Publish completion; actionable results also raise an alert.
	if err := bus.PublishCompletion(ctx, p.bus, job); err != nil {
		slog.Error("failed to publish case events",
			"job_id", sub.JobID,
			"error", err,
		)
	}

	slog.Info("case processed",
		"job_id", sub.JobID,
		"tenant_id", tenantID,
		"tx_count", len(txs),
		"risk_score", result.RiskScore,
		"recommendation", result.Recommendation,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// transition moves a job to the next pipeline state; transitions are
// advisory progress markers, so persistence failures only log.
func (p *Processor) transition(ctx context.Context, tenantID, jobID string, status domain.JobStatus) {
	if p.repo == nil {
		return
	}
	if err := p.repo.UpdateJobStatus(ctx, tenantID, jobID, status); err != nil {
		slog.Warn("failed to update job status",
			"job_id", jobID,
			"status", status,
			"error", err,
		)
	}
}

// fail marks a job as errored and publishes the completion event.
func (p *Processor) fail(ctx context.Context, tenantID string, sub *domain.CaseSubmission, cause error) {
	slog.Error("case processing failed",
		"job_id", sub.JobID,
		"tenant_id", tenantID,
		"error", cause,
	)

	completed := time.Now().UTC()
	job := &domain.Job{
		ID:          sub.JobID,
		TenantID:    tenantID,
		Status:      domain.JobError,
		FileName:    sub.FileName,
		SubmittedAt: completed,
		CompletedAt: &completed,
		Error:       cause.Error(),
	}
	if p.repo != nil {
		if existing, err := p.repo.GetJob(ctx, tenantID, sub.JobID); err == nil {
			job.SubmittedAt = existing.SubmittedAt
		}
		if err := p.repo.SaveJob(ctx, tenantID, job); err != nil {
			slog.Error("failed to save errored job",
				"job_id", sub.JobID,
				"error", err,
			)
		}
	}

	_ = bus.PublishCompletion(ctx, p.bus, job)
}

// Stop gracefully stops the processor.
func (p *Processor) Stop() error {
	p.cancel()

	for _, sub := range p.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	p.subscriptions = nil

	slog.Info("case processors stopped")
	return nil
}

// Stats returns processor statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current processor statistics.
func (p *Processor) GetStats() Stats {
	topics := make([]string, len(p.subscriptions))
	for i, sub := range p.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(p.subscriptions),
		Topics:            topics,
	}
}
