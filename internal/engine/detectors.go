package engine

import (
	"strings"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

// structuringDetector flags cash transactions parked just under the
// currency reporting threshold: amounts strictly inside
// (StructuringLower, StructuringUpper).
type structuringDetector struct {
	cfg domain.EngineConfig
}

func (d structuringDetector) Code() string      { return domain.PatternStructuring }
func (d structuringDetector) Contribution() int { return 3 }

func (d structuringDetector) Evaluate(txs []domain.Transaction, _ *DayIndex) *domain.PatternMatch {
	var hits []domain.Transaction
	var total float64
	for _, tx := range txs {
		amt := tx.AmountValue()
		if tx.Channel() == domain.ChannelCash && amt > d.cfg.StructuringLower && amt < d.cfg.StructuringUpper {
			hits = append(hits, tx)
			total += amt
		}
	}
	if len(hits) == 0 {
		return nil
	}
	return &domain.PatternMatch{
		Code:        d.Code(),
		Name:        "Structuring (Near-Threshold Cash)",
		Description: "Cash transactions just below the 10,000 reporting threshold that may indicate structuring.",
		Matches: []domain.MatchGroup{
			{Transactions: hits, TotalAmount: total, Count: len(hits)},
		},
		Score: d.Contribution(),
	}
}

// cashToWireDetector flags days where cash deposits coincide with
// outbound-sized wires over the configured floor.
type cashToWireDetector struct {
	cfg domain.EngineConfig
}

func (d cashToWireDetector) Code() string      { return domain.PatternCashToWire }
func (d cashToWireDetector) Contribution() int { return 4 }

func (d cashToWireDetector) Evaluate(_ []domain.Transaction, idx *DayIndex) *domain.PatternMatch {
	var groups []domain.MatchGroup
	for _, day := range idx.Days() {
		var cash, wires []domain.Transaction
		for _, tx := range idx.On(day) {
			switch tx.Channel() {
			case domain.ChannelCash:
				cash = append(cash, tx)
			case domain.ChannelWire:
				if tx.AmountValue() > d.cfg.CashToWireMinWire {
					wires = append(wires, tx)
				}
			}
		}
		if len(cash) > 0 && len(wires) > 0 {
			group := domain.MatchGroup{Date: day.Format(dayFormat)}
			group.Transactions = append(group.Transactions, cash...)
			group.Transactions = append(group.Transactions, wires...)
			group.Count = len(group.Transactions)
			groups = append(groups, group)
		}
	}
	if len(groups) == 0 {
		return nil
	}
	return &domain.PatternMatch{
		Code:        d.Code(),
		Name:        "Rapid Cash-to-Wire (Same Day)",
		Description: "Same-day cash deposits followed by outbound wire transfers over 5,000.",
		Matches:     groups,
		Score:       d.Contribution(),
	}
}

// smurfingDetector flags days with many small inbound electronic
// credits from several distinct senders. Senders are approximated by
// raw description equality, a known heuristic limitation.
type smurfingDetector struct {
	cfg domain.EngineConfig
}

func (d smurfingDetector) Code() string      { return domain.PatternSmurfing }
func (d smurfingDetector) Contribution() int { return 4 }

func isElectronicCredit(tx domain.Transaction) bool {
	switch tx.Channel() {
	case domain.ChannelP2P, domain.ChannelACH, domain.ChannelWire:
		return tx.DirectionValue() == domain.DirectionInbound
	}
	return false
}

func (d smurfingDetector) Evaluate(_ []domain.Transaction, idx *DayIndex) *domain.PatternMatch {
	var groups []domain.MatchGroup
	for _, day := range idx.Days() {
		var credits []domain.Transaction
		senders := make(map[string]struct{})
		var total float64
		for _, tx := range idx.On(day) {
			if !isElectronicCredit(tx) || tx.AmountValue() >= d.cfg.SmurfingPerCreditMax {
				continue
			}
			credits = append(credits, tx)
			senders[tx.DetailsLower()] = struct{}{}
			total += tx.AmountValue()
		}
		if len(credits) >= d.cfg.SmurfingMinCount &&
			len(senders) >= d.cfg.SmurfingMinSenders &&
			total >= d.cfg.SmurfingMinTotal {
			groups = append(groups, domain.MatchGroup{
				Date:         day.Format(dayFormat),
				Transactions: credits,
				TotalAmount:  total,
				Count:        len(credits),
			})
		}
	}
	if len(groups) == 0 {
		return nil
	}
	return &domain.PatternMatch{
		Code:        d.Code(),
		Name:        "Smurfing via Inbound Credits",
		Description: "Many small inbound electronic credits from multiple senders on the same day.",
		Matches:     groups,
		Score:       d.Contribution(),
	}
}

// p2pBurstDetector flags same-day P2P bursts, including single rows
// that describe an aggregated batch of transfers.
type p2pBurstDetector struct {
	cfg domain.EngineConfig
}

func (d p2pBurstDetector) Code() string      { return domain.PatternP2PBurst }
func (d p2pBurstDetector) Contribution() int { return 3 }

func (d p2pBurstDetector) Evaluate(_ []domain.Transaction, idx *DayIndex) *domain.PatternMatch {
	var groups []domain.MatchGroup
	for _, day := range idx.Days() {
		var p2p []domain.Transaction
		aggregated := false
		for _, tx := range idx.On(day) {
			if tx.Channel() != domain.ChannelP2P {
				continue
			}
			p2p = append(p2p, tx)
			details := tx.DetailsLower()
			if strings.Contains(details, "multiple") && strings.Contains(details, "transfer") {
				aggregated = true
			}
		}
		if len(p2p) >= d.cfg.P2PBurstMinCount || (len(p2p) == 1 && aggregated) {
			groups = append(groups, domain.MatchGroup{
				Date:         day.Format(dayFormat),
				Transactions: p2p,
				Count:        len(p2p),
			})
		}
	}
	if len(groups) == 0 {
		return nil
	}
	return &domain.PatternMatch{
		Code:        d.Code(),
		Name:        "P2P Unknown Counterparties (Burst)",
		Description: "Multiple or batch P2P transfers on the same day, suggesting potential layering.",
		Matches:     groups,
		Score:       d.Contribution(),
	}
}

// highRiskWireDetector flags wires whose description references a
// high-risk or sanctioned jurisdiction keyword.
type highRiskWireDetector struct {
	cfg domain.EngineConfig
}

func (d highRiskWireDetector) Code() string      { return domain.PatternHighRiskWire }
func (d highRiskWireDetector) Contribution() int { return 7 }

func (d highRiskWireDetector) Evaluate(txs []domain.Transaction, _ *DayIndex) *domain.PatternMatch {
	var hits []domain.Transaction
	for _, tx := range txs {
		if tx.Channel() != domain.ChannelWire {
			continue
		}
		details := tx.DetailsLower()
		for _, kw := range d.cfg.HighRiskKeywords {
			if strings.Contains(details, kw) {
				hits = append(hits, tx)
				break
			}
		}
	}
	if len(hits) == 0 {
		return nil
	}
	return &domain.PatternMatch{
		Code:        d.Code(),
		Name:        "High-Risk Jurisdiction Wire",
		Description: "Wire transfers referencing a high-risk or sanctioned jurisdiction.",
		Matches: []domain.MatchGroup{
			{Transactions: hits, Count: len(hits)},
		},
		Score: d.Contribution(),
	}
}

// atmStructuringDetector flags repeated ATM withdrawals just below the
// reporting threshold: amounts in [ATMStructMinAmount, ATMStructMaxAmount).
type atmStructuringDetector struct {
	cfg domain.EngineConfig
}

func (d atmStructuringDetector) Code() string      { return domain.PatternATMStruct }
func (d atmStructuringDetector) Contribution() int { return 3 }

func (d atmStructuringDetector) Evaluate(txs []domain.Transaction, _ *DayIndex) *domain.PatternMatch {
	var hits []domain.Transaction
	var total float64
	for _, tx := range txs {
		if tx.Channel() != domain.ChannelATM && !strings.Contains(tx.DetailsLower(), "atm withdrawal") {
			continue
		}
		amt := tx.AmountValue()
		if amt >= d.cfg.ATMStructMinAmount && amt < d.cfg.ATMStructMaxAmount {
			hits = append(hits, tx)
			total += amt
		}
	}
	if len(hits) < d.cfg.ATMStructMinCount {
		return nil
	}
	return &domain.PatternMatch{
		Code:        d.Code(),
		Name:        "ATM Structuring",
		Description: "Repeated ATM withdrawals just below the reporting threshold.",
		Matches: []domain.MatchGroup{
			{Transactions: hits, TotalAmount: total, Count: len(hits)},
		},
		Score: d.Contribution(),
	}
}
