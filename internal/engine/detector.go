// Package engine implements the AML classification core: a bank of
// pattern detectors over a transaction collection, a bounded risk
// scorer, driver prioritization, and the disposition gate.
package engine

import (
	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

// Detector is one suspicious-activity shape. Evaluate is a pure
// function over the immutable transaction collection and its day
// index: it returns one aggregated PatternMatch holding every
// qualifying group, or nil to abstain. Detectors never fail - a
// malformed record simply does not match.
type Detector interface {
	// Code returns the stable pattern identifier.
	Code() string

	// Contribution returns the fixed score added when the detector fires.
	Contribution() int

	// Evaluate scans the collection and reports at most one match.
	Evaluate(txs []domain.Transaction, idx *DayIndex) *domain.PatternMatch
}

// defaultDetectors returns the detector bank in declaration order.
// The final matches ordering on a CaseResult follows this order, not
// execution order.
func defaultDetectors(cfg domain.EngineConfig) []Detector {
	return []Detector{
		structuringDetector{cfg: cfg},
		cashToWireDetector{cfg: cfg},
		smurfingDetector{cfg: cfg},
		p2pBurstDetector{cfg: cfg},
		cryptoFlowDetector{cfg: cfg},
		highRiskWireDetector{cfg: cfg},
		atmStructuringDetector{cfg: cfg},
		rapidOutflowDetector{cfg: cfg},
		layeringDetector{cfg: cfg},
		funnelingDetector{cfg: cfg},
	}
}
