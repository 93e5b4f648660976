// Benchmark tool for testing amlproc against synthetic labeled cases.
//
// Usage:
//
//	go run cmd/benchmark/main.go -url http://localhost:8080 -cases 1000
//
// This tool:
//  1. Generates synthetic account statements with known laundering patterns
//  2. Sends each case to POST /api/classify
//  3. Compares the recommendation (SAR/Review vs No SAR) with the label
//  4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Transaction mirrors the API wire format.
type Transaction struct {
	Date      string `json:"Date"`
	Amount    string `json:"amount"`
	Type      string `json:"Type"`
	Details   string `json:"Details"`
	Direction string `json:"direction,omitempty"`
}

// ClassifyRequest is the amlproc API request format.
type ClassifyRequest struct {
	Transactions []Transaction `json:"transactions"`
}

// ClassifyResponse is the amlproc API response format.
type ClassifyResponse struct {
	Result struct {
		RiskScore      int      `json:"risk_score"`
		RiskBand       string   `json:"risk_band"`
		Recommendation string   `json:"recommendation"`
		MainDriver     *string  `json:"main_driver"`
		Indicators     []string `json:"supporting_indicators"`
	} `json:"result"`
}

// Case is one labeled synthetic statement.
type Case struct {
	Transactions []Transaction
	Suspicious   bool
	Scenario     string
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Suspicious case flagged
	FalsePositives int64 // Clean case flagged
	TrueNegatives  int64 // Clean case cleared
	FalseNegatives int64 // Suspicious case cleared

	TotalProcessed int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "amlproc base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	caseCount := flag.Int("cases", 1000, "Number of synthetic cases to classify")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	suspiciousRate := flag.Float64("suspicious", 0.3, "Fraction of cases carrying a laundering pattern")
	seed := flag.Int64("seed", 42, "Random seed for reproducible case generation")
	verbose := flag.Bool("verbose", false, "Print each case result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        AMLPROC BENCHMARK - Synthetic Case Classification      ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\namlproc URL:     %s\n", *baseURL)
	fmt.Printf("Tenant ID:       %s\n", *tenantID)
	fmt.Printf("Cases:           %d\n", *caseCount)
	fmt.Printf("Workers:         %d\n", *workers)
	fmt.Printf("Suspicious Rate: %.2f\n", *suspiciousRate)
	fmt.Printf("Seed:            %d\n", *seed)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: amlproc not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure amlproc is running:")
		fmt.Println("  go run cmd/amlproc/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ amlproc is healthy")

	rng := rand.New(rand.NewSource(*seed))
	cases := generateCases(rng, *caseCount, *suspiciousRate)
	suspicious := 0
	for _, c := range cases {
		if c.Suspicious {
			suspicious++
		}
	}
	fmt.Printf("✓ Generated %d cases (%d suspicious, %d clean)\n", len(cases), suspicious, len(cases)-suspicious)

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(cases, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func day(rng *rand.Rand) string {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, rng.Intn(28)).Format("2006-01-02")
}

func amount(rng *rand.Rand, lo, hi float64) string {
	return fmt.Sprintf("%.2f", lo+rng.Float64()*(hi-lo))
}

// generateCases builds labeled statements: suspicious cases carry one of
// the laundering scenarios the detectors target, clean cases are routine
// retail activity.
func generateCases(rng *rand.Rand, count int, suspiciousRate float64) []Case {
	scenarios := []func(*rand.Rand) Case{
		structuringCase,
		smurfingCase,
		cryptoFlowCase,
		atmStructuringCase,
		highRiskWireCase,
	}

	cases := make([]Case, 0, count)
	for i := 0; i < count; i++ {
		if rng.Float64() < suspiciousRate {
			cases = append(cases, scenarios[rng.Intn(len(scenarios))](rng))
		} else {
			cases = append(cases, cleanCase(rng))
		}
	}
	return cases
}

func cleanCase(rng *rand.Rand) Case {
	n := 5 + rng.Intn(10)
	txs := make([]Transaction, 0, n)
	for i := 0; i < n; i++ {
		txs = append(txs, Transaction{
			Date:    day(rng),
			Amount:  amount(rng, 5, 400),
			Type:    []string{"CARD", "ACH", "CHECK"}[rng.Intn(3)],
			Details: []string{"grocery store", "utility payment", "subscription", "restaurant"}[rng.Intn(4)],
		})
	}
	return Case{Transactions: txs, Scenario: "clean"}
}

func structuringCase(rng *rand.Rand) Case {
	n := 2 + rng.Intn(3)
	txs := make([]Transaction, 0, n)
	for i := 0; i < n; i++ {
		txs = append(txs, Transaction{
			Date:    day(rng),
			Amount:  amount(rng, 9901, 9999),
			Type:    "CASH",
			Details: "cash deposit branch",
		})
	}
	return Case{Transactions: txs, Suspicious: true, Scenario: "structuring"}
}

func smurfingCase(rng *rand.Rand) Case {
	d := day(rng)
	senders := []string{"incoming from alpha", "incoming from bravo", "incoming from charlie", "incoming from delta"}
	txs := make([]Transaction, 0, len(senders))
	for _, s := range senders {
		txs = append(txs, Transaction{
			Date:    d,
			Amount:  amount(rng, 400, 900),
			Type:    "P2P",
			Details: s,
		})
	}
	return Case{Transactions: txs, Suspicious: true, Scenario: "smurfing"}
}

func cryptoFlowCase(rng *rand.Rand) Case {
	d := time.Date(2024, 1, 1+rng.Intn(20), 0, 0, 0, 0, time.UTC)
	return Case{
		Transactions: []Transaction{
			{Date: d.Format("2006-01-02"), Amount: amount(rng, 8000, 20000), Type: "CRYPTO", Details: "coinbase settlement"},
			{Date: d.AddDate(0, 0, 1).Format("2006-01-02"), Amount: amount(rng, 6000, 15000), Type: "WIRE", Details: "wire to holdings llc"},
		},
		Suspicious: true,
		Scenario:   "crypto-flow",
	}
}

func atmStructuringCase(rng *rand.Rand) Case {
	txs := make([]Transaction, 0, 3)
	for i := 0; i < 3; i++ {
		txs = append(txs, Transaction{
			Date:    day(rng),
			Amount:  amount(rng, 8000, 9999),
			Type:    "ATM",
			Details: "atm withdrawal",
		})
	}
	return Case{Transactions: txs, Suspicious: true, Scenario: "atm-structuring"}
}

func highRiskWireCase(rng *rand.Rand) Case {
	return Case{
		Transactions: []Transaction{
			{Date: day(rng), Amount: amount(rng, 2000, 50000), Type: "WIRE", Details: "wire to CountryX import export"},
		},
		Suspicious: true,
		Scenario:   "high-risk-wire",
	}
}

func runBenchmark(cases []Case, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan Case, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for c := range work {
				start := time.Now()
				result, err := classifyCase(client, baseURL, tenantID, c)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", c.Scenario, err)
					}
					continue
				}

				predicted := result.Result.Recommendation != "No SAR"
				actual := c.Suspicious

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else {
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if predicted != actual {
						status = "✗"
					}
					driver := "-"
					if result.Result.MainDriver != nil {
						driver = *result.Result.MainDriver
					}
					fmt.Printf("%s %-16s | txs: %2d | score: %2d (%s) | %-8s | driver: %s\n",
						status,
						c.Scenario,
						len(c.Transactions),
						result.Result.RiskScore,
						result.Result.RiskBand,
						result.Result.Recommendation,
						driver,
					)
				}
			}
		}()
	}

	for _, c := range cases {
		work <- c
	}
	close(work)

	wg.Wait()

	return metrics
}

func classifyCase(client *http.Client, baseURL, tenantID string, c Case) (*ClassifyResponse, error) {
	body, err := json.Marshal(ClassifyRequest{Transactions: c.Transactions})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/api/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\nDATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\nCONFUSION MATRIX\n")
	fmt.Println("                         Predicted")
	fmt.Println("                    Flagged     Cleared")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  S  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           C  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\nDETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged cases, how many were suspicious)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of suspicious cases, how many were caught)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		cps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f cases/sec\n", cps)
	}

	fmt.Println()
}
