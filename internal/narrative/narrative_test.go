package narrative

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

func sampleInput() Input {
	driver := domain.PatternStructuring
	return Input{
		Transactions: []domain.Transaction{
			{Date: "2024-01-01", Amount: "9950", Type: "cash", Details: "cash deposit"},
			{Date: "2024-01-02", Amount: "6000", Type: "wire", Details: "wire to vendor"},
		},
		Result: &domain.CaseResult{
			Patterns: []domain.PatternMatch{
				{Code: domain.PatternStructuring, Name: "Structuring (Near-Threshold Cash)"},
			},
			RiskScore:      3,
			RiskBand:       domain.BandMedium,
			MainDriver:     &driver,
			Recommendation: domain.RecommendReview,
		},
	}
}

func TestTemplateGenerator(t *testing.T) {
	g := &TemplateGenerator{}

	t.Run("flagged case recommends filing", func(t *testing.T) {
		text, err := g.Generate(context.Background(), sampleInput())
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		for _, section := range []string{
			"1. Summary of Activity",
			"2. What Happened",
			"3. Why It Is Suspicious",
			"4. Transaction Summary",
			"5. Final Recommendation",
		} {
			if !strings.Contains(text, section) {
				t.Errorf("narrative missing section %q", section)
			}
		}
		if !strings.Contains(text, domain.PatternStructuring) {
			t.Error("narrative should name the fired pattern code")
		}
		if !strings.Contains(text, "a Suspicious Activity Report is recommended") {
			t.Error("medium-band flagged case should recommend filing")
		}
	})

	t.Run("quiet case does not recommend filing", func(t *testing.T) {
		input := Input{Result: &domain.CaseResult{RiskScore: 1, RiskBand: domain.BandLow}}
		text, err := g.Generate(context.Background(), input)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !strings.Contains(text, "is not recommended") {
			t.Error("quiet case should not recommend filing")
		}
		if !strings.Contains(text, "No material red flags") {
			t.Error("quiet case should state the absence of red flags")
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		first, _ := g.Generate(context.Background(), sampleInput())
		second, _ := g.Generate(context.Background(), sampleInput())
		if first != second {
			t.Error("two renderings of the same case diverged")
		}
	})
}

func TestFormatTx(t *testing.T) {
	tx := domain.Transaction{Date: "2024-01-01", Amount: "$9,950", Type: "cash", Details: "cash deposit"}
	got := formatTx(&tx)
	want := "2024-01-01 - credit of $9950.00 via CASH - cash deposit"
	if got != want {
		t.Errorf("formatTx = %q, want %q", got, want)
	}
}

func openRouterCfg(url string) domain.NarrativeConfig {
	return domain.NarrativeConfig{
		Provider:        "openrouter",
		OpenRouterURL:   url,
		OpenRouterKey:   "test-key",
		OpenRouterModel: "test-model",
		RequestTimeout:  2 * time.Second,
	}
}

func TestOpenRouterClient(t *testing.T) {
	t.Run("successful completion", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("auth header = %q", got)
			}
			w.Write([]byte(`{"choices":[{"message":{"content":"model narrative"}}]}`))
		}))
		defer srv.Close()

		c := NewOpenRouterClient(openRouterCfg(srv.URL))
		text, err := c.Generate(context.Background(), sampleInput())
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if text != "model narrative" {
			t.Errorf("text = %q", text)
		}
	})

	t.Run("server error falls back to template", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := NewOpenRouterClient(openRouterCfg(srv.URL))
		text, err := c.Generate(context.Background(), sampleInput())
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !strings.Contains(text, "1. Summary of Activity") {
			t.Error("fallback narrative expected on server error")
		}
	})

	t.Run("empty completion falls back", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		c := NewOpenRouterClient(openRouterCfg(srv.URL))
		text, err := c.Generate(context.Background(), sampleInput())
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !strings.Contains(text, "5. Final Recommendation") {
			t.Error("fallback narrative expected on empty completion")
		}
	})
}

func TestNewSelectsProvider(t *testing.T) {
	if _, ok := New(domain.NarrativeConfig{Provider: "template"}).(*TemplateGenerator); !ok {
		t.Error("template provider should yield TemplateGenerator")
	}
	if _, ok := New(domain.NarrativeConfig{Provider: "openrouter"}).(*TemplateGenerator); !ok {
		t.Error("openrouter without a key should yield TemplateGenerator")
	}
	cfg := domain.NarrativeConfig{Provider: "openrouter", OpenRouterKey: "k"}
	if _, ok := New(cfg).(*OpenRouterClient); !ok {
		t.Error("openrouter with a key should yield OpenRouterClient")
	}
}
