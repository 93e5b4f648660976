package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Shauryaditya/aml-case-processor/internal/bus"
	"github.com/Shauryaditya/aml-case-processor/internal/cache"
	"github.com/Shauryaditya/aml-case-processor/internal/domain"
	"github.com/Shauryaditya/aml-case-processor/internal/engine"
	"github.com/Shauryaditya/aml-case-processor/internal/jobs"
	"github.com/Shauryaditya/aml-case-processor/internal/narrative"
	"github.com/Shauryaditya/aml-case-processor/internal/repository"
	"github.com/Shauryaditya/aml-case-processor/internal/rules"
	"github.com/Shauryaditya/aml-case-processor/internal/velocity"
)

// createTestServer wires a full Community-tier stack: sqlite repo,
// in-process bus, LRU cache, and a running job processor.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: t.TempDir() + "/api.db",
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}

	b := bus.NewChannelBus(100)
	lru := cache.NewLRUCache(100)
	ruleEngine, err := rules.NewEngine(5)
	if err != nil {
		t.Fatalf("failed to create rule engine: %v", err)
	}
	classifier := engine.New(domain.DefaultEngineConfig(), engine.WithExtension(ruleEngine))
	generator := narrative.New(domain.NarrativeConfig{Provider: "template"})

	processor := jobs.NewProcessor(b, repo, lru, classifier, generator)
	if err := processor.Start(jobs.Config{TenantIDs: []string{"tenant-001"}}); err != nil {
		t.Fatalf("failed to start processor: %v", err)
	}

	t.Cleanup(func() {
		processor.Stop()
		lru.Close()
		b.Close()
		repo.Close()
	})

	throttle := velocity.NewService(lru, time.Minute, 100)
	return NewServer(cfg, repo, lru, b, classifier, ruleEngine, generator, throttle, "test-v1")
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func waitForStatus(t *testing.T, server *Server, jobID string, want domain.JobStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rr := doJSON(t, server, http.MethodGet, "/api/cases/"+jobID+"/status", nil)
		if rr.Code == http.StatusOK {
			var status struct {
				Status domain.JobStatus `json:"status"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &status); err == nil && status.Status == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
}

func TestClassifyEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("StructuringBatch", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/api/classify", ClassifyRequest{
			Transactions: []domain.Transaction{
				{Date: "2024-01-01", Amount: "9950", Type: "CASH", Details: "cash deposit"},
				{Date: "2024-01-02", Amount: "9920", Type: "CASH", Details: "cash deposit"},
			},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp ClassifyResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Result == nil {
			t.Fatal("expected result in response")
		}
		if !resp.Result.HasPattern(domain.PatternStructuring) {
			t.Errorf("expected structuring pattern, got %v", resp.Result.PatternCodes())
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
		if resp.Narrative != "" {
			t.Error("narrative should be omitted without ?narrative=true")
		}
	})

	t.Run("WithNarrative", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/api/classify?narrative=true", ClassifyRequest{
			Transactions: []domain.Transaction{
				{Date: "2024-01-01", Amount: "9950", Type: "CASH", Details: "cash deposit"},
			},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var resp ClassifyResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Narrative == "" {
			t.Error("expected narrative in response")
		}
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/api/classify", ClassifyRequest{})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/classify", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/classify", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestCaseLifecycle(t *testing.T) {
	server := createTestServer(t)

	t.Run("SubmitInlineTransactions", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/api/cases", SubmitRequest{
			Transactions: []domain.Transaction{
				{Date: "2024-01-01", Amount: "9950", Type: "CASH", Details: "cash deposit"},
				{Date: "2024-01-02", Amount: "9920", Type: "CASH", Details: "cash deposit"},
			},
		})
		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp SubmitResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.JobID == "" || resp.Status != domain.JobQueued {
			t.Fatalf("submit response = %+v", resp)
		}

		waitForStatus(t, server, resp.JobID, domain.JobDone)

		getRR := doJSON(t, server, http.MethodGet, "/api/cases/"+resp.JobID, nil)
		if getRR.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", getRR.Code)
		}
		var job domain.Job
		if err := json.Unmarshal(getRR.Body.Bytes(), &job); err != nil {
			t.Fatalf("failed to parse job: %v", err)
		}
		if job.Result == nil || len(job.Result.Patterns) == 0 {
			t.Errorf("completed job missing result: %+v", job)
		}

		narrRR := doJSON(t, server, http.MethodGet, "/api/cases/"+resp.JobID+"/narrative", nil)
		if narrRR.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", narrRR.Code)
		}
		var narr struct {
			Narrative string `json:"narrative"`
		}
		if err := json.Unmarshal(narrRR.Body.Bytes(), &narr); err != nil {
			t.Fatalf("failed to parse narrative: %v", err)
		}
		if narr.Narrative == "" {
			t.Error("expected narrative for completed case")
		}
	})

	t.Run("SubmitFileUpload", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "statement.csv")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write([]byte("Date,Amount,Type,Details\n2024-02-01,9950,CASH,cash deposit branch\n"))
		mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/cases", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp SubmitResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		waitForStatus(t, server, resp.JobID, domain.JobDone)

		getRR := doJSON(t, server, http.MethodGet, "/api/cases/"+resp.JobID, nil)
		var job domain.Job
		if err := json.Unmarshal(getRR.Body.Bytes(), &job); err != nil {
			t.Fatalf("failed to parse job: %v", err)
		}
		if job.FileName != "statement.csv" || job.TxCount != 1 {
			t.Errorf("job = %+v, want 1 parsed row from statement.csv", job)
		}
	})

	t.Run("SubmitEmptyBody", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/api/cases", SubmitRequest{})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UnknownCase", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/api/cases/nope", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("ListCases", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/api/cases?limit=10", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count < 2 {
			t.Errorf("expected at least 2 cases, got %d", resp.Count)
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CreateAndGet", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/api/rules", CreateRuleRequest{
			ID:         "rule-1",
			Code:       "EXT_HIGH_TOTAL",
			Name:       "High case total",
			Expression: "total_amount > 50000.0",
			Score:      3,
			Enabled:    true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		getRR := doJSON(t, server, http.MethodGet, "/api/rules/rule-1", nil)
		if getRR.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", getRR.Code)
		}
		var rule domain.RuleConfig
		if err := json.Unmarshal(getRR.Body.Bytes(), &rule); err != nil {
			t.Fatalf("failed to parse rule: %v", err)
		}
		if rule.Code != "EXT_HIGH_TOTAL" || rule.Score != 3 {
			t.Errorf("rule = %+v", rule)
		}
	})

	t.Run("CreatedRuleAffectsClassification", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/api/classify", ClassifyRequest{
			Transactions: []domain.Transaction{
				{Date: "2024-01-01", Amount: "60000", Type: "WIRE", Details: "invoice settlement"},
			},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var resp ClassifyResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if !resp.Result.HasPattern("EXT_HIGH_TOTAL") {
			t.Errorf("expected extension pattern, got %v", resp.Result.PatternCodes())
		}
	})

	t.Run("InvalidExpression", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/api/rules", CreateRuleRequest{
			ID:         "rule-bad",
			Code:       "EXT_BAD",
			Name:       "bad",
			Expression: "total_amount + 1.0",
			Score:      1,
			Enabled:    true,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for non-bool expression, got %d", rr.Code)
		}
	})

	t.Run("MissingFields", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/api/rules", CreateRuleRequest{ID: "x"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ListAndReload", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/api/rules", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var list struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if list.Count != 1 {
			t.Errorf("expected 1 loaded rule, got %d", list.Count)
		}

		reloadRR := doJSON(t, server, http.MethodPost, "/api/rules/reload", nil)
		if reloadRR.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", reloadRR.Code, reloadRR.Body.String())
		}

		afterRR := doJSON(t, server, http.MethodGet, "/api/rules/rule-1", nil)
		if afterRR.Code != http.StatusOK {
			t.Errorf("rule lost after reload: %d", afterRR.Code)
		}
	})
}

func TestThrottling(t *testing.T) {
	server := createTestServer(t)

	// Rebuild the handler's throttle with a tiny limit.
	counters := cache.NewLRUCache(10)
	defer counters.Close()
	server.Handler().throttle = velocity.NewService(counters, time.Minute, 2)

	body := SubmitRequest{
		Transactions: []domain.Transaction{
			{Date: "2024-01-01", Amount: "100", Type: "CARD", Details: "coffee"},
		},
	}
	for i := 0; i < 2; i++ {
		rr := doJSON(t, server, http.MethodPost, "/api/cases", body)
		if rr.Code != http.StatusAccepted {
			t.Fatalf("submission %d: expected 202, got %d", i+1, rr.Code)
		}
	}
	rr := doJSON(t, server, http.MethodPost, "/api/cases", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429 over limit, got %d", rr.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var health map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if health["status"] != "healthy" || health["version"] != "test-v1" {
		t.Errorf("health = %v", health)
	}

	readyReq := httptest.NewRequest(http.MethodGet, "/ready", nil)
	readyRR := httptest.NewRecorder()
	server.Router().ServeHTTP(readyRR, readyReq)
	if readyRR.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", readyRR.Code)
	}
}
