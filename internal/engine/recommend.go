package engine

import (
	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

// highRiskDrivers are the codes that forbid a "No SAR" disposition on
// their own, regardless of the aggregate score.
var highRiskDrivers = map[string]bool{
	domain.PatternStructuring:  true,
	domain.PatternATMStruct:    true,
	domain.PatternSmurfing:     true,
	domain.PatternP2PBurst:     true,
	domain.PatternCryptoToBank: true,
	domain.PatternRapidOutflow: true,
	domain.PatternCashToWire:   true,
	domain.PatternHighRiskWire: true,
}

// recommend applies the disposition gate. "No SAR" requires both a low
// score and the absence of any high-risk code; everything else splits
// on the SAR threshold.
func recommend(patterns []domain.PatternMatch, score int) string {
	highRisk := false
	for _, p := range patterns {
		if highRiskDrivers[p.Code] {
			highRisk = true
			break
		}
	}
	if !highRisk && score <= 2 {
		return domain.RecommendNoSAR
	}
	if score >= 7 {
		return domain.RecommendSAR
	}
	return domain.RecommendReview
}
