// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveJob inserts or replaces a job row with tenant isolation. The
// case result is stored as a JSON document.
func (r *SQLRepository) SaveJob(ctx context.Context, tenantID string, job *domain.Job) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job with an id is required", ErrInvalidInput)
	}

	var result []byte
	if job.Result != nil {
		var err error
		result, err = json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	}

	query := `
		INSERT INTO jobs (
			id, tenant_id, status, file_name, submitted_at, completed_at,
			tx_count, result, narrative, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			tx_count = excluded.tx_count,
			result = excluded.result,
			narrative = excluded.narrative,
			error = excluded.error
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		job.ID, tenantID, string(job.Status), job.FileName,
		job.SubmittedAt.UTC(), job.CompletedAt,
		job.TxCount, nullableString(result), job.Narrative, job.Error,
	)
	return err
}

// UpdateJobStatus transitions a job without touching its payload.
func (r *SQLRepository) UpdateJobStatus(ctx context.Context, tenantID string, jobID string, status domain.JobStatus) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE jobs
		SET status = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), string(status), tenantID, jobID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetJob retrieves a job by ID with tenant isolation.
func (r *SQLRepository) GetJob(ctx context.Context, tenantID string, jobID string) (*domain.Job, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, status, file_name, submitted_at, completed_at,
			   tx_count, result, narrative, error
		FROM jobs
		WHERE tenant_id = ? AND id = ?
	`

	job, err := scanJob(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// ListJobs retrieves the most recently submitted jobs for a tenant.
func (r *SQLRepository) ListJobs(ctx context.Context, tenantID string, limit int) ([]*domain.Job, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, tenant_id, status, file_name, submitted_at, completed_at,
			   tx_count, result, narrative, error
		FROM jobs
		WHERE tenant_id = ?
		ORDER BY submitted_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var status string
	var fileName, result, narrative, jobErr sql.NullString
	var completedAt sql.NullTime

	if err := row.Scan(
		&job.ID, &job.TenantID, &status, &fileName,
		&job.SubmittedAt, &completedAt,
		&job.TxCount, &result, &narrative, &jobErr,
	); err != nil {
		return nil, err
	}

	job.Status = domain.JobStatus(status)
	job.FileName = fileName.String
	job.Narrative = narrative.String
	job.Error = jobErr.String
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if result.Valid && result.String != "" {
		var cr domain.CaseResult
		if err := json.Unmarshal([]byte(result.String), &cr); err != nil {
			return nil, fmt.Errorf("failed to parse stored result for job %s: %w", job.ID, err)
		}
		job.Result = &cr
	}

	return &job, nil
}

// SaveRuleConfig stores a rule configuration with tenant isolation.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, tenantID string, rule *domain.RuleConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, tenant_id, code, name, description, version, expression, score, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			score = excluded.score,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Code, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Score, enabled,
		now, now,
	)
	return err
}

// GetRuleConfig retrieves the latest enabled version of a rule.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, tenantID string, ruleID string) (*domain.RuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, code, name, description, version, expression, score, enabled
		FROM rule_configs
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.RuleConfig
	var description sql.NullString
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Code, &cfg.Name, &description,
		&cfg.Version, &cfg.Expression, &cfg.Score, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Description = description.String
	cfg.Enabled = enabled == 1

	return &cfg, nil
}

// ListRuleConfigs retrieves all active rule configurations for a tenant.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context, tenantID string) ([]*domain.RuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, code, name, description, version, expression, score, enabled
		FROM rule_configs
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var description sql.NullString
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Code, &cfg.Name, &description,
			&cfg.Version, &cfg.Expression, &cfg.Score, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Description = description.String
		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// nullableString maps an empty payload to SQL NULL.
func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
