package engine

import (
	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

// Score bounds. Every case lands in [minScore, maxScore], including the
// empty case.
const (
	minScore = 1
	maxScore = 10
)

// riskScore sums the fixed contributions of the fired patterns and
// clamps the total into [1, 10].
func riskScore(patterns []domain.PatternMatch) int {
	total := 0
	for _, p := range patterns {
		total += p.Score
	}
	if total < minScore {
		return minScore
	}
	if total > maxScore {
		return maxScore
	}
	return total
}

// riskBand maps a clamped score onto the three-band scale.
func riskBand(score int) string {
	switch {
	case score <= 2:
		return domain.BandLow
	case score <= 6:
		return domain.BandMedium
	default:
		return domain.BandHigh
	}
}
