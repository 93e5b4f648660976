package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

// PublishSubmission queues a case submission for the job processor.
func PublishSubmission(ctx context.Context, b domain.EventBus, sub *domain.CaseSubmission) error {
	if sub.TenantID == "" {
		return fmt.Errorf("submission missing tenant")
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	return b.Publish(ctx, sub.TenantID, domain.TopicCaseSubmitted, payload)
}

// DecodeSubmission unpacks a case submission from a bus message,
// filling the tenant from the envelope when the payload omits it.
func DecodeSubmission(msg *domain.Message) (*domain.CaseSubmission, error) {
	var sub domain.CaseSubmission
	if err := json.Unmarshal(msg.Payload, &sub); err != nil {
		return nil, fmt.Errorf("decode submission: %w", err)
	}
	if sub.TenantID == "" {
		sub.TenantID = msg.TenantID
	}
	return &sub, nil
}

// PublishCompletion announces a finished job on the completion topic.
// Jobs whose result calls for action (any recommendation other than
// "No SAR") also raise an alert for downstream consumers.
func PublishCompletion(ctx context.Context, b domain.EventBus, job *domain.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := b.Publish(ctx, job.TenantID, domain.TopicCaseCompleted, payload); err != nil {
		return fmt.Errorf("publish completion: %w", err)
	}
	if job.Result != nil && job.Result.Recommendation != domain.RecommendNoSAR {
		if err := b.Publish(ctx, job.TenantID, domain.TopicCaseAlert, payload); err != nil {
			return fmt.Errorf("publish alert: %w", err)
		}
	}
	return nil
}
