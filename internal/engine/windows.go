package engine

import (
	"strings"
	"time"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

// dayOffset returns the signed distance in calendar days from anchor to
// day. Both values must already be truncated to UTC midnight.
func dayOffset(anchor, day time.Time) int {
	return int(day.Sub(anchor).Hours() / 24)
}

// electronicRails are the transfer channels that can pair with a
// crypto anchor or drain an inbound credit.
var electronicRails = map[string]bool{
	domain.ChannelWire: true,
	domain.ChannelACH:  true,
	domain.ChannelP2P:  true,
}

// depositRails are the channels that can anchor a rapid-outflow window.
var depositRails = map[string]bool{
	domain.ChannelCash:  true,
	domain.ChannelACH:   true,
	domain.ChannelCheck: true,
}

// cryptoFlowDetector flags crypto exchange activity paired with large
// electronic transfers within a short window around the crypto anchor.
type cryptoFlowDetector struct {
	cfg domain.EngineConfig
}

func (d cryptoFlowDetector) Code() string      { return domain.PatternCryptoToBank }
func (d cryptoFlowDetector) Contribution() int { return 7 }

func (d cryptoFlowDetector) isCryptoLinked(tx domain.Transaction) bool {
	if tx.Channel() == domain.ChannelCrypto {
		return true
	}
	details := tx.DetailsLower()
	for _, kw := range d.cfg.CryptoKeywords {
		if strings.Contains(details, kw) {
			return true
		}
	}
	return false
}

func (d cryptoFlowDetector) Evaluate(txs []domain.Transaction, _ *DayIndex) *domain.PatternMatch {
	dated := datedTransactions(txs)

	var groups []domain.MatchGroup
	seen := make(map[time.Time]bool)
	for i := range dated {
		anchor := dated[i]
		if !d.isCryptoLinked(anchor.tx) || seen[anchor.day] {
			continue
		}

		var transfers []domain.Transaction
		var total float64
		for j := range dated {
			other := dated[j]
			if d.isCryptoLinked(other.tx) {
				continue
			}
			if daysBetween(anchor.day, other.day) > d.cfg.CryptoWindowDays {
				continue
			}
			if !electronicRails[other.tx.Channel()] {
				continue
			}
			if other.tx.AmountValue() < d.cfg.CryptoMinOutflow {
				continue
			}
			transfers = append(transfers, other.tx)
			total += other.tx.AmountValue()
		}
		if len(transfers) == 0 {
			continue
		}

		seen[anchor.day] = true
		anchorTx := anchor.tx
		group := domain.MatchGroup{
			Date:        anchor.day.Format(dayFormat),
			Anchor:      &anchorTx,
			TotalAmount: total,
		}
		group.Transactions = append(group.Transactions, anchorTx)
		group.Transactions = append(group.Transactions, transfers...)
		group.Count = len(group.Transactions)
		groups = append(groups, group)
	}
	if len(groups) == 0 {
		return nil
	}
	return &domain.PatternMatch{
		Code:        d.Code(),
		Name:        "Crypto-to-Bank Flow",
		Description: "Crypto exchange activity paired with large wire, ACH, or P2P transfers within a short window.",
		Matches:     groups,
		Score:       d.Contribution(),
	}
}

// rapidOutflowDetector flags large inbound credits on deposit rails
// that are drained shortly after arrival by a single comparable-sized
// electronic transfer out.
type rapidOutflowDetector struct {
	cfg domain.EngineConfig
}

func (d rapidOutflowDetector) Code() string      { return domain.PatternRapidOutflow }
func (d rapidOutflowDetector) Contribution() int { return 4 }

func (d rapidOutflowDetector) Evaluate(txs []domain.Transaction, _ *DayIndex) *domain.PatternMatch {
	dated := datedTransactions(txs)

	var groups []domain.MatchGroup
	for i := range dated {
		anchor := dated[i]
		amt := anchor.tx.AmountValue()
		if !depositRails[anchor.tx.Channel()] ||
			anchor.tx.DirectionValue() != domain.DirectionInbound ||
			amt < d.cfg.OutflowMinAmount {
			continue
		}

		// Each paired outflow must individually clear the floor and the
		// ratio of the credit; small debits never accumulate into a match.
		var outflows []domain.Transaction
		var total float64
		for j := range dated {
			other := dated[j]
			if i == j || daysBetween(anchor.day, other.day) > d.cfg.OutflowWindowDays {
				continue
			}
			if !electronicRails[other.tx.Channel()] ||
				other.tx.DirectionValue() != domain.DirectionOutbound {
				continue
			}
			oamt := other.tx.AmountValue()
			if oamt < d.cfg.OutflowMinAmount || oamt < d.cfg.OutflowRatio*amt {
				continue
			}
			outflows = append(outflows, other.tx)
			total += oamt
		}
		if len(outflows) == 0 {
			continue
		}

		anchorTx := anchor.tx
		group := domain.MatchGroup{
			Date:        anchor.day.Format(dayFormat),
			Anchor:      &anchorTx,
			TotalAmount: total,
		}
		group.Transactions = append(group.Transactions, anchorTx)
		group.Transactions = append(group.Transactions, outflows...)
		group.Count = len(group.Transactions)
		groups = append(groups, group)
	}
	if len(groups) == 0 {
		return nil
	}
	return &domain.PatternMatch{
		Code:        d.Code(),
		Name:        "Rapid In-Out Velocity",
		Description: "Large inbound credits drained by comparable electronic transfers shortly after arrival.",
		Matches:     groups,
		Score:       d.Contribution(),
	}
}

// layeringDetector flags dense multi-channel movement inside a forward
// window: enough transactions across enough distinct channels, with
// significant funds leaving the account. Payroll-sized credits do not
// open windows.
type layeringDetector struct {
	cfg domain.EngineConfig
}

func (d layeringDetector) Code() string      { return domain.PatternLayering }
func (d layeringDetector) Contribution() int { return 6 }

func isPayrollLike(tx domain.Transaction) bool {
	details := tx.DetailsLower()
	return strings.Contains(details, "salary") || strings.Contains(details, "payroll")
}

func (d layeringDetector) Evaluate(txs []domain.Transaction, _ *DayIndex) *domain.PatternMatch {
	dated := datedTransactions(txs)

	var groups []domain.MatchGroup
	seen := make(map[time.Time]bool)
	for i := range dated {
		anchor := dated[i]
		if isPayrollLike(anchor.tx) || seen[anchor.day] {
			continue
		}

		var window []domain.Transaction
		channels := make(map[string]struct{})
		var movement float64
		for j := range dated {
			other := dated[j]
			off := dayOffset(anchor.day, other.day)
			if off < 0 || off >= d.cfg.LayeringWindowDays {
				continue
			}
			window = append(window, other.tx)
			channels[other.tx.Channel()] = struct{}{}
			if other.tx.DirectionValue() == domain.DirectionOutbound || other.tx.Channel() == domain.ChannelCrypto {
				movement += other.tx.AmountValue()
			}
		}
		if len(window) < d.cfg.LayeringMinTxs ||
			len(channels) < d.cfg.LayeringMinChannels ||
			movement < d.cfg.LayeringMinMovement {
			continue
		}

		seen[anchor.day] = true
		groups = append(groups, domain.MatchGroup{
			Date:         anchor.day.Format(dayFormat),
			Transactions: window,
			TotalAmount:  movement,
			Count:        len(window),
		})
	}
	if len(groups) == 0 {
		return nil
	}
	return &domain.PatternMatch{
		Code:        d.Code(),
		Name:        "Layering Chain",
		Description: "Dense movement across multiple channels within a week, with significant funds leaving the account.",
		Matches:     groups,
		Score:       d.Contribution(),
	}
}

// funnelingDetector flags many-senders-in, one-destination-out: a
// forward window with enough inbound credits from distinct senders
// whose total is largely consolidated to a single outbound destination.
type funnelingDetector struct {
	cfg domain.EngineConfig
}

func (d funnelingDetector) Code() string      { return domain.PatternFunneling }
func (d funnelingDetector) Contribution() int { return 5 }

func (d funnelingDetector) Evaluate(txs []domain.Transaction, _ *DayIndex) *domain.PatternMatch {
	dated := datedTransactions(txs)

	var groups []domain.MatchGroup
	seen := make(map[time.Time]bool)
	for i := range dated {
		anchor := dated[i]
		if anchor.tx.DirectionValue() != domain.DirectionInbound || seen[anchor.day] {
			continue
		}

		var credits []domain.Transaction
		senders := make(map[string]struct{})
		var creditTotal float64
		destinations := make(map[string]float64)
		var window []domain.Transaction
		for j := range dated {
			other := dated[j]
			off := dayOffset(anchor.day, other.day)
			if off < 0 || off >= d.cfg.FunnelingWindowDays {
				continue
			}
			window = append(window, other.tx)
			switch other.tx.DirectionValue() {
			case domain.DirectionInbound:
				credits = append(credits, other.tx)
				senders[other.tx.DetailsLower()] = struct{}{}
				creditTotal += other.tx.AmountValue()
			case domain.DirectionOutbound:
				destinations[other.tx.DetailsLower()] += other.tx.AmountValue()
			}
		}
		if len(credits) < d.cfg.FunnelingMinCredits ||
			len(senders) < d.cfg.FunnelingMinSenders ||
			creditTotal < d.cfg.FunnelingMinTotal {
			continue
		}
		var consolidated float64
		for _, sum := range destinations {
			if sum > consolidated {
				consolidated = sum
			}
		}
		if consolidated < d.cfg.FunnelingConsolidationRatio*creditTotal {
			continue
		}

		seen[anchor.day] = true
		groups = append(groups, domain.MatchGroup{
			Date:         anchor.day.Format(dayFormat),
			Transactions: window,
			TotalAmount:  creditTotal,
			Count:        len(window),
		})
	}
	if len(groups) == 0 {
		return nil
	}
	return &domain.PatternMatch{
		Code:        d.Code(),
		Name:        "Funnel Account Pattern",
		Description: "Many small credits from distinct senders consolidated to a single outbound destination.",
		Matches:     groups,
		Score:       d.Contribution(),
	}
}
