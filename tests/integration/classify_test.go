//go:build integration
// +build integration

// Package integration provides end-to-end tests for the amlproc case
// classification pipeline against a running server.
//
// These tests verify the COMPLETE pipeline:
//
//	Statement → Normalizer → Detector Bank → Scoring → Narrative
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// The server must be running first:
//
//	go run cmd/amlproc/main.go
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration.
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("AMLPROC_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "test-tenant",
	}
}

// Transaction matches the API wire contract.
type Transaction struct {
	Date    string `json:"Date"`
	Amount  string `json:"amount"`
	Type    string `json:"Type"`
	Details string `json:"Details"`
}

// ClassifyRequest is the body for POST /api/classify.
type ClassifyRequest struct {
	Transactions []Transaction `json:"transactions"`
}

// ClassifyResponse is what POST /api/classify returns.
type ClassifyResponse struct {
	Result struct {
		Patterns []struct {
			Code string `json:"code"`
		} `json:"patterns"`
		RiskScore      int      `json:"risk_score"`
		RiskBand       string   `json:"risk_band"`
		MainDriver     *string  `json:"main_driver"`
		Indicators     []string `json:"supporting_indicators"`
		Recommendation string   `json:"recommendation"`
	} `json:"result"`
	Narrative string `json:"narrative"`
}

func classify(t *testing.T, cfg TestConfig, path string, txs []Transaction) ClassifyResponse {
	t.Helper()

	body, err := json.Marshal(ClassifyRequest{Transactions: txs})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", cfg.TenantID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("server not reachable at %s: %v", cfg.BaseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out ClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestClassifyStructuring(t *testing.T) {
	cfg := getTestConfig()

	resp := classify(t, cfg, "/api/classify", []Transaction{
		{Date: "2024-01-01", Amount: "9950", Type: "CASH", Details: "cash deposit"},
		{Date: "2024-01-02", Amount: "9920", Type: "CASH", Details: "cash deposit"},
		{Date: "2024-01-03", Amount: "9980", Type: "CASH", Details: "cash deposit"},
	})

	found := false
	for _, p := range resp.Result.Patterns {
		if p.Code == "STRUCTURING_NEAR_THRESHOLD_CASH" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected structuring pattern, got %+v", resp.Result.Patterns)
	}
	if resp.Result.Recommendation == "No SAR" {
		t.Errorf("structuring case cleared: %+v", resp.Result)
	}
}

func TestClassifyCleanAccount(t *testing.T) {
	cfg := getTestConfig()

	resp := classify(t, cfg, "/api/classify", []Transaction{
		{Date: "2024-01-05", Amount: "42.17", Type: "CARD", Details: "grocery store"},
		{Date: "2024-01-09", Amount: "120.00", Type: "ACH", Details: "utility payment"},
	})

	if len(resp.Result.Patterns) != 0 {
		t.Errorf("clean account fired patterns: %+v", resp.Result.Patterns)
	}
	if resp.Result.Recommendation != "No SAR" {
		t.Errorf("recommendation = %s, want No SAR", resp.Result.Recommendation)
	}
}

func TestClassifyWithNarrative(t *testing.T) {
	cfg := getTestConfig()

	resp := classify(t, cfg, "/api/classify?narrative=true", []Transaction{
		{Date: "2024-01-01", Amount: "9950", Type: "CASH", Details: "cash deposit"},
	})

	if resp.Narrative == "" {
		t.Error("expected narrative in response")
	}
}

func TestAsyncCaseLifecycle(t *testing.T) {
	cfg := getTestConfig()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "statement.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fmt.Fprint(part, "Date,Amount,Type,Details\n2024-01-01,9950,CASH,cash deposit\n2024-01-02,9920,CASH,cash deposit\n")
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, cfg.BaseURL+"/api/cases", &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Tenant-ID", cfg.TenantID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("server not reachable: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var submit struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submit); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatalf("job %s never completed", submit.JobID)
		}

		req, _ := http.NewRequest(http.MethodGet, cfg.BaseURL+"/api/cases/"+submit.JobID, nil)
		req.Header.Set("X-Tenant-ID", cfg.TenantID)
		getResp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("get case: %v", err)
		}

		var job struct {
			Status    string `json:"status"`
			Narrative string `json:"narrative"`
			Result    *struct {
				RiskScore int `json:"risk_score"`
			} `json:"result"`
		}
		err = json.NewDecoder(getResp.Body).Decode(&job)
		getResp.Body.Close()
		if err != nil {
			t.Fatalf("decode job: %v", err)
		}

		if job.Status == "done" {
			if job.Result == nil || job.Result.RiskScore < 3 {
				t.Errorf("structuring statement scored too low: %+v", job.Result)
			}
			if job.Narrative == "" {
				t.Error("completed job missing narrative")
			}
			return
		}
		if job.Status == "error" {
			t.Fatalf("job failed")
		}
		time.Sleep(100 * time.Millisecond)
	}
}
