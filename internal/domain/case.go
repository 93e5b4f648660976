package domain

// Pattern codes emitted by the detector bank. The code strings are a
// compatibility surface consumed by narrative generation and existing
// API callers - do not rename.
const (
	PatternStructuring  = "STRUCTURING_NEAR_THRESHOLD_CASH"
	PatternCashToWire   = "RAPID_CASH_TO_WIRE"
	PatternSmurfing     = "INBOUND_SMURFING"
	PatternP2PBurst     = "P2P_MULTIPLE_TRANSFERS_SAME_DAY"
	PatternCryptoToBank = "CRYPTO_TO_BANK_FLOW"
	PatternHighRiskWire = "HIGH_RISK_JURISDICTION_WIRE"
	PatternATMStruct    = "ATM_STRUCTURING_WITHDRAWALS"
	PatternRapidOutflow = "RAPID_OUTFLOW"
	PatternLayering     = "LAYERING_ACTIVITY"
	PatternFunneling    = "FUNNELING_ACTIVITY"
)

// MatchGroup is one evidentiary group inside a PatternMatch: a flat set
// of transactions for list-style detectors, or a dated/anchored window
// for the correlated ones.
type MatchGroup struct {
	Date         string        `json:"date,omitempty"`
	Anchor       *Transaction  `json:"anchor,omitempty"`
	Transactions []Transaction `json:"transactions"`
	TotalAmount  float64       `json:"total_amount,omitempty"`
	Count        int           `json:"count,omitempty"`
}

// PatternMatch is the aggregated output of one detector: at most one
// per detector per run, holding every qualifying group.
type PatternMatch struct {
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Matches     []MatchGroup `json:"matches"`

	// Score is this pattern's fixed contribution to the case risk
	// score, carried so the scorer does not need a second lookup.
	Score int `json:"-"`
}

// Risk bands derived from the clamped score.
const (
	BandLow    = "Low"
	BandMedium = "Medium"
	BandHigh   = "High"
)

// Regulatory dispositions.
const (
	RecommendNoSAR  = "No SAR"
	RecommendReview = "Review"
	RecommendSAR    = "SAR"
)

// CaseResult is the final classification artifact for one transaction
// collection. Constructed once per run and never mutated afterward;
// ownership passes to the caller.
type CaseResult struct {
	Patterns             []PatternMatch `json:"patterns"`
	RiskScore            int            `json:"risk_score"`
	RiskBand             string         `json:"risk_band"`
	MainDriver           *string        `json:"main_driver"`
	SupportingIndicators []string       `json:"supporting_indicators"`
	Recommendation       string         `json:"recommendation"`
}

// PatternCodes returns the fired pattern codes in declaration order.
func (r *CaseResult) PatternCodes() []string {
	codes := make([]string, 0, len(r.Patterns))
	for _, p := range r.Patterns {
		codes = append(codes, p.Code)
	}
	return codes
}

// HasPattern reports whether a pattern code fired for this case.
func (r *CaseResult) HasPattern(code string) bool {
	for _, p := range r.Patterns {
		if p.Code == code {
			return true
		}
	}
	return false
}
