package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Shauryaditya/aml-case-processor/internal/bus"
	"github.com/Shauryaditya/aml-case-processor/internal/domain"
	"github.com/Shauryaditya/aml-case-processor/internal/engine"
	"github.com/Shauryaditya/aml-case-processor/internal/narrative"
	"github.com/Shauryaditya/aml-case-processor/internal/rules"
	"github.com/Shauryaditya/aml-case-processor/internal/velocity"
)

// maxUploadBytes caps statement uploads at 16 MiB.
const maxUploadBytes = 16 << 20

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	classifier *engine.Engine
	ruleEngine *rules.Engine
	generator  narrative.Generator
	throttle   *velocity.Service
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, classifier *engine.Engine, ruleEngine *rules.Engine, generator narrative.Generator, throttle *velocity.Service, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		classifier: classifier,
		ruleEngine: ruleEngine,
		generator:  generator,
		throttle:   throttle,
		version:    version,
	}
}

// SubmitRequest is the JSON request body for POST /api/cases when the
// caller submits transactions inline instead of uploading a file.
type SubmitRequest struct {
	FileName     string               `json:"fileName,omitempty"`
	Transactions []domain.Transaction `json:"transactions"`
}

// SubmitResponse is the response for POST /api/cases.
type SubmitResponse struct {
	JobID       string           `json:"jobId"`
	Status      domain.JobStatus `json:"status"`
	SubmittedAt time.Time        `json:"submittedAt"`
}

// SubmitCase handles POST /api/cases: a multipart statement upload or an
// inline transaction batch, queued for async processing.
func (h *Handler) SubmitCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	if h.throttle != nil {
		ok, count, err := h.throttle.Allow(ctx, tenantID)
		if err == nil && !ok {
			slog.Warn("submission throttled",
				"tenant_id", tenantID,
				"count", count,
				"limit", h.throttle.Limit(),
			)
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "submission rate limit exceeded",
			})
			return
		}
	}

	sub := domain.CaseSubmission{
		JobID:    uuid.New().String(),
		TenantID: tenantID,
		TraceID:  traceID,
	}

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid multipart form",
			})
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "file field is required",
			})
			return
		}
		defer file.Close()

		raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "failed to read uploaded file",
			})
			return
		}
		sub.FileName = header.Filename
		sub.Raw = raw
	} else {
		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
		if len(req.Transactions) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "transactions are required",
			})
			return
		}
		sub.FileName = req.FileName
		sub.Transactions = req.Transactions
	}

	submitted := time.Now().UTC()
	job := &domain.Job{
		ID:          sub.JobID,
		TenantID:    tenantID,
		Status:      domain.JobQueued,
		FileName:    sub.FileName,
		SubmittedAt: submitted,
		TxCount:     len(sub.Transactions),
	}
	if h.repo != nil {
		if err := h.repo.SaveJob(ctx, tenantID, job); err != nil {
			slog.Error("failed to save job", "job_id", job.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to queue case",
			})
			return
		}
	}

	if err := bus.PublishSubmission(ctx, h.bus, &sub); err != nil {
		slog.Error("failed to publish submission", "job_id", job.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue case",
		})
		return
	}

	slog.Info("case submitted",
		"job_id", job.ID,
		"tenant_id", tenantID,
		"file", sub.FileName,
		"tx_count", len(sub.Transactions),
	)
	writeJSON(w, http.StatusAccepted, SubmitResponse{
		JobID:       job.ID,
		Status:      domain.JobQueued,
		SubmittedAt: submitted,
	})
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// ClassifyRequest is the request body for POST /api/classify.
type ClassifyRequest struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// ClassifyResponse is the response for POST /api/classify.
type ClassifyResponse struct {
	Result    *domain.CaseResult `json:"result"`
	Narrative string             `json:"narrative,omitempty"`
	Metadata  struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Classify handles POST /api/classify: synchronous classification of an
// inline transaction batch. Pass ?narrative=true to include a SAR
// narrative in the response.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions are required",
		})
		return
	}

	result := h.classifier.Classify(ctx, tenantID, req.Transactions)

	resp := ClassifyResponse{Result: result}
	if r.URL.Query().Get("narrative") == "true" && h.generator != nil {
		text, err := h.generator.Generate(ctx, narrative.Input{
			Transactions: req.Transactions,
			Result:       result,
		})
		if err != nil {
			slog.Warn("narrative generation failed", "error", err)
		} else {
			resp.Narrative = text
		}
	}

	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// GetCase retrieves a case job by ID, including its result and
// narrative once processing completes.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	jobID := chi.URLParam(r, "id")

	job, ok := h.lookupJob(w, ctx, tenantID, jobID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetCaseStatus returns the pipeline state of a case job.
func (h *Handler) GetCaseStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	jobID := chi.URLParam(r, "id")

	job, ok := h.lookupJob(w, ctx, tenantID, jobID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobId":  job.ID,
		"status": job.Status,
		"error":  job.Error,
	})
}

// GetCaseNarrative returns the SAR narrative of a completed case.
func (h *Handler) GetCaseNarrative(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	jobID := chi.URLParam(r, "id")

	job, ok := h.lookupJob(w, ctx, tenantID, jobID)
	if !ok {
		return
	}
	if job.Status != domain.JobDone {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "case is not complete",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"jobId":     job.ID,
		"narrative": job.Narrative,
	})
}

func (h *Handler) lookupJob(w http.ResponseWriter, ctx context.Context, tenantID, jobID string) (*domain.Job, bool) {
	if jobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "case id is required",
		})
		return nil, false
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return nil, false
	}

	job, err := h.repo.GetJob(ctx, tenantID, jobID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "case not found",
		})
		return nil, false
	}
	return job, true
}

// ListCases returns the tenant's recent case jobs, newest first. The
// limit query parameter caps the page size.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	jobs, err := h.repo.ListJobs(ctx, tenantID, limit)
	if err != nil {
		slog.Error("failed to list jobs", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list cases",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cases": jobs,
		"count": len(jobs),
	})
}

// ListRules returns the extension rules loaded in the engine that are
// visible to the tenant.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())

	var visible []*domain.RuleConfig
	for _, rule := range h.ruleEngine.GetLoadedRules() {
		if rule.TenantID == "" || rule.TenantID == tenantID {
			visible = append(visible, rule)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": visible,
		"count": len(visible),
	})
}

// GetRule retrieves an extension rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.ruleEngine.GetLoadedRules() {
		if rule.ID == ruleID && (rule.TenantID == "" || rule.TenantID == tenantID) {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating an extension rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Score       int    `json:"score"`
	Enabled     bool   `json:"enabled"`
}

// CreateRule validates, persists, and hot-loads a tenant extension rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Code == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, code, name, and expression are required",
		})
		return
	}
	if req.Score < 0 || req.Score > 10 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "score must be between 0 and 10",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		TenantID:    tenantID,
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Score:       req.Score,
		Enabled:     req.Enabled,
	}

	if err := h.ruleEngine.ValidateRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, tenantID, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	if ruleConfig.Enabled {
		if err := h.ruleEngine.LoadRule(ruleConfig); err != nil {
			slog.Error("failed to load rule into engine", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to load rule",
			})
			return
		}
	}

	slog.Info("extension rule created",
		"id", ruleConfig.ID,
		"code", ruleConfig.Code,
		"tenant_id", tenantID,
	)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule": ruleConfig,
	})
}

// ReloadRules reloads the tenant's extension rules from the database
// into the engine, enabling hot-reload without a restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	configs, err := h.repo.ListRuleConfigs(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.ruleEngine.ReloadRules(configs); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("extension rules reloaded", "tenant_id", tenantID, "count", len(configs))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   len(configs),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
