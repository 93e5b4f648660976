package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

// maxSampleTxs bounds the example transactions quoted in the narrative.
const maxSampleTxs = 5

// TemplateGenerator writes a deterministic five-section SAR narrative.
// It is the Community-tier provider and the fallback for the LLM
// client, so it must never fail.
type TemplateGenerator struct{}

// Generate renders the narrative. The error return satisfies the
// Generator contract; it is always nil here.
func (g *TemplateGenerator) Generate(_ context.Context, input Input) (string, error) {
	txs := input.Transactions
	sample := txs
	if len(sample) > maxSampleTxs {
		sample = sample[:maxSampleTxs]
	}

	var codes []string
	if input.Result != nil {
		codes = input.Result.PatternCodes()
	}

	var b strings.Builder

	b.WriteString("1. Summary of Activity\n")
	if len(txs) == 0 {
		b.WriteString("The account shows limited activity with no transactions available for review.\n")
	} else {
		b.WriteString("The account shows transaction activity over the observed period, " +
			"including cash, electronic transfers, and other channels. " +
			"Rule-based monitoring identified potential red flags based on the transaction patterns.\n")
	}
	b.WriteString("\n")

	b.WriteString("2. What Happened (Factual Description)\n")
	if len(sample) > 0 {
		b.WriteString("Selected example transactions include:\n")
		for i := range sample {
			b.WriteString("- " + formatTx(&sample[i]) + "\n")
		}
	} else {
		b.WriteString("- No transaction-level details are available.\n")
	}
	b.WriteString("\n")

	b.WriteString("3. Why It Is Suspicious (Red Flags)\n")
	if len(codes) > 0 {
		b.WriteString("The following rule-based patterns were detected:\n")
		for _, code := range codes {
			b.WriteString("- " + code + "\n")
		}
	} else {
		b.WriteString("No material red flags were detected based on the rule set applied to this account's activity.\n")
	}
	b.WriteString("\n")

	b.WriteString("4. Transaction Summary (Selected Examples)\n")
	if len(sample) > 0 {
		for i := range sample {
			b.WriteString("- " + formatTx(&sample[i]) + "\n")
		}
	} else {
		b.WriteString("- No transactions to summarize.\n")
	}
	b.WriteString("\n")

	b.WriteString("5. Final Recommendation\n")
	if recommendSAR(codes, input.Result) {
		b.WriteString("Based on the above activity and associated red flags, a Suspicious Activity Report is recommended.")
	} else {
		b.WriteString("Based on the above activity and lack of significant red flags, a Suspicious Activity Report is not recommended.")
	}

	return b.String(), nil
}

// recommendSAR leans toward filing when patterns fired and the band is
// Medium or High.
func recommendSAR(codes []string, result *domain.CaseResult) bool {
	if len(codes) == 0 || result == nil {
		return false
	}
	switch result.RiskBand {
	case domain.BandHigh, domain.BandMedium:
		return true
	}
	return false
}

// formatTx renders one transaction line with direction-aware wording.
func formatTx(tx *domain.Transaction) string {
	date := tx.Date
	if date == "" {
		date = "Unknown date"
	}
	channel := strings.ToUpper(tx.Channel())
	details := tx.Details
	if details == "" {
		details = "no description"
	}

	flow := "transaction"
	switch tx.DirectionValue() {
	case domain.DirectionInbound:
		flow = "credit"
	case domain.DirectionOutbound:
		flow = "debit"
	}

	return fmt.Sprintf("%s - %s of $%.2f via %s - %s", date, flow, tx.AmountValue(), channel, details)
}
