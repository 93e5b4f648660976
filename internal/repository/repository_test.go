package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleJob(id string) *domain.Job {
	return &domain.Job{
		ID:          id,
		TenantID:    "tenant-a",
		Status:      domain.JobQueued,
		FileName:    "statement.csv",
		SubmittedAt: time.Now().UTC().Truncate(time.Second),
		TxCount:     12,
	}
}

func TestJobLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	job := sampleJob("job-1")
	if err := repo.SaveJob(ctx, "tenant-a", job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	t.Run("get round trip", func(t *testing.T) {
		got, err := repo.GetJob(ctx, "tenant-a", "job-1")
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if got.Status != domain.JobQueued || got.FileName != "statement.csv" || got.TxCount != 12 {
			t.Errorf("round trip mangled job: %+v", got)
		}
		if got.Result != nil || got.CompletedAt != nil {
			t.Errorf("fresh job should have no result or completion time")
		}
	})

	t.Run("status update", func(t *testing.T) {
		if err := repo.UpdateJobStatus(ctx, "tenant-a", "job-1", domain.JobRules); err != nil {
			t.Fatalf("UpdateJobStatus: %v", err)
		}
		got, _ := repo.GetJob(ctx, "tenant-a", "job-1")
		if got.Status != domain.JobRules {
			t.Errorf("status = %s, want rules", got.Status)
		}
	})

	t.Run("completion upsert with result", func(t *testing.T) {
		driver := domain.PatternStructuring
		done := time.Now().UTC().Truncate(time.Second)
		job.Status = domain.JobDone
		job.CompletedAt = &done
		job.Narrative = "1. Summary of Activity\n..."
		job.Result = &domain.CaseResult{
			Patterns:             []domain.PatternMatch{{Code: domain.PatternStructuring, Name: "Structuring"}},
			RiskScore:            3,
			RiskBand:             domain.BandMedium,
			MainDriver:           &driver,
			SupportingIndicators: []string{"CASH_INTENSITY"},
			Recommendation:       domain.RecommendReview,
		}

		if err := repo.SaveJob(ctx, "tenant-a", job); err != nil {
			t.Fatalf("SaveJob upsert: %v", err)
		}

		got, err := repo.GetJob(ctx, "tenant-a", "job-1")
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if got.Status != domain.JobDone || got.CompletedAt == nil {
			t.Errorf("completed job = %+v", got)
		}
		if got.Result == nil || got.Result.RiskScore != 3 || *got.Result.MainDriver != driver {
			t.Errorf("stored result = %+v", got.Result)
		}
		if got.Narrative == "" {
			t.Error("narrative not persisted")
		}
	})

	t.Run("tenant isolation", func(t *testing.T) {
		if _, err := repo.GetJob(ctx, "tenant-b", "job-1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("tenant-b should not see tenant-a jobs, got %v", err)
		}
	})

	t.Run("missing job", func(t *testing.T) {
		if _, err := repo.GetJob(ctx, "tenant-a", "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
		if err := repo.UpdateJobStatus(ctx, "tenant-a", "nope", domain.JobDone); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("tenant required", func(t *testing.T) {
		if err := repo.SaveJob(ctx, "", job); err == nil {
			t.Error("expected error for empty tenant")
		}
	})
}

func TestListJobs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"j1", "j2", "j3"} {
		job := sampleJob(id)
		job.SubmittedAt = base.Add(time.Duration(i) * time.Hour)
		if err := repo.SaveJob(ctx, "tenant-a", job); err != nil {
			t.Fatalf("SaveJob %s: %v", id, err)
		}
	}

	jobs, err := repo.ListJobs(ctx, "tenant-a", 2)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].ID != "j3" || jobs[1].ID != "j2" {
		t.Errorf("order = %s, %s, want newest first", jobs[0].ID, jobs[1].ID)
	}
}

func TestRuleConfigs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := &domain.RuleConfig{
		ID:         "rule-1",
		Code:       "EXT_HIGH_TOTAL",
		Name:       "high total",
		Version:    "1",
		Expression: "total_amount > 50000.0",
		Score:      2,
		Enabled:    true,
	}

	if err := repo.SaveRuleConfig(ctx, "tenant-a", rule); err != nil {
		t.Fatalf("SaveRuleConfig: %v", err)
	}

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetRuleConfig(ctx, "tenant-a", "rule-1")
		if err != nil {
			t.Fatalf("GetRuleConfig: %v", err)
		}
		if got.Code != "EXT_HIGH_TOTAL" || got.Score != 2 || !got.Enabled {
			t.Errorf("round trip mangled rule: %+v", got)
		}
	})

	t.Run("upsert same version", func(t *testing.T) {
		rule.Score = 5
		if err := repo.SaveRuleConfig(ctx, "tenant-a", rule); err != nil {
			t.Fatalf("SaveRuleConfig upsert: %v", err)
		}
		got, _ := repo.GetRuleConfig(ctx, "tenant-a", "rule-1")
		if got.Score != 5 {
			t.Errorf("score = %d, want updated 5", got.Score)
		}
	})

	t.Run("list excludes disabled", func(t *testing.T) {
		off := &domain.RuleConfig{
			ID: "rule-2", Code: "EXT_OFF", Name: "off", Version: "1",
			Expression: "tx_count > 0", Score: 1, Enabled: false,
		}
		if err := repo.SaveRuleConfig(ctx, "tenant-a", off); err != nil {
			t.Fatalf("SaveRuleConfig: %v", err)
		}

		configs, err := repo.ListRuleConfigs(ctx, "tenant-a")
		if err != nil {
			t.Fatalf("ListRuleConfigs: %v", err)
		}
		if len(configs) != 1 || configs[0].ID != "rule-1" {
			t.Errorf("list = %+v, want only the enabled rule", configs)
		}
	})

	t.Run("missing rule", func(t *testing.T) {
		if _, err := repo.GetRuleConfig(ctx, "tenant-a", "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}

func TestRebind(t *testing.T) {
	pg := &SQLRepository{driver: "postgres"}
	got := pg.rebind("SELECT * FROM jobs WHERE tenant_id = ? AND id = ?")
	want := "SELECT * FROM jobs WHERE tenant_id = $1 AND id = $2"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	lite := &SQLRepository{driver: "sqlite"}
	query := "SELECT 1 WHERE a = ?"
	if lite.rebind(query) != query {
		t.Error("sqlite queries should pass through unchanged")
	}
}
