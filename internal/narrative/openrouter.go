package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

const sarPromptHeader = `You are an experienced AML Investigator.
Your job is to write a concise, regulator-ready SAR narrative using ONLY the information provided.

Use this exact structure:

1. Summary of Activity
2. What Happened (Factual Description)
3. Why It Is Suspicious (Red Flags)
4. Transaction Summary (Selected Examples)
5. Final Recommendation

STRICT RULES:
- Do NOT include placeholders or invented institution names.
- Do NOT mention internal systems, alerts, scores, or models in the narrative body.
- Do NOT invent information that is not present in the input.
`

// maxPromptTxs bounds how many transactions are quoted in the prompt.
const maxPromptTxs = 100

// OpenRouterClient generates narratives through the OpenRouter chat
// completions API. Any transport, auth, or model failure falls back to
// the deterministic template so the pipeline never breaks on an
// external dependency.
type OpenRouterClient struct {
	cfg      domain.NarrativeConfig
	client   *http.Client
	fallback *TemplateGenerator
}

// NewOpenRouterClient builds the LLM-backed generator.
func NewOpenRouterClient(cfg domain.NarrativeConfig) *OpenRouterClient {
	return &OpenRouterClient{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		fallback: &TemplateGenerator{},
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate asks the model for a narrative, degrading to the template on
// any failure.
func (c *OpenRouterClient) Generate(ctx context.Context, input Input) (string, error) {
	text, err := c.complete(ctx, input)
	if err != nil {
		slog.Warn("narrative model unavailable, using template fallback", "error", err)
		return c.fallback.Generate(ctx, input)
	}
	return text, nil
}

func (c *OpenRouterClient) complete(ctx context.Context, input Input) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:     c.cfg.OpenRouterModel,
		Messages:  []chatMessage{{Role: "user", Content: buildPrompt(input)}},
		MaxTokens: 800,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenRouterURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.OpenRouterKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty completion")
	}
	return parsed.Choices[0].Message.Content, nil
}

// buildPrompt assembles the investigation material below the fixed
// instruction header.
func buildPrompt(input Input) string {
	var b strings.Builder
	b.WriteString(sarPromptHeader)
	b.WriteString("\nINPUT DATA:\nTransactions:\n")

	txs := input.Transactions
	if len(txs) > maxPromptTxs {
		txs = txs[:maxPromptTxs]
	}
	for i := range txs {
		b.WriteString(formatTx(&txs[i]) + "\n")
	}

	b.WriteString("\nDetected Patterns:\n")
	if input.Result != nil {
		for _, p := range input.Result.Patterns {
			fmt.Fprintf(&b, "- %s: %s\n", p.Code, p.Name)
		}
		fmt.Fprintf(&b, "\nRisk Information:\nrisk_score: %d\nrisk_band: %s\n",
			input.Result.RiskScore, input.Result.RiskBand)
	}
	return b.String()
}
