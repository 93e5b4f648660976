package engine

import (
	"sort"
	"time"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

// DayIndex groups transactions by calendar day for windowed detectors.
// Order within a day is the insertion order of the input. Transactions
// without a parseable date are dropped from the index but remain
// visible to detectors that scan the full list directly.
type DayIndex struct {
	days  []time.Time
	byDay map[time.Time][]domain.Transaction
}

// BuildDayIndex constructs a day index over a transaction collection.
func BuildDayIndex(txs []domain.Transaction) *DayIndex {
	idx := &DayIndex{
		byDay: make(map[time.Time][]domain.Transaction),
	}
	for _, tx := range txs {
		day, ok := tx.Day()
		if !ok {
			continue
		}
		if _, seen := idx.byDay[day]; !seen {
			idx.days = append(idx.days, day)
		}
		idx.byDay[day] = append(idx.byDay[day], tx)
	}
	sort.Slice(idx.days, func(i, j int) bool { return idx.days[i].Before(idx.days[j]) })
	return idx
}

// Days returns the indexed calendar days in ascending order.
func (idx *DayIndex) Days() []time.Time {
	return idx.days
}

// On returns the transactions recorded on a calendar day.
func (idx *DayIndex) On(day time.Time) []domain.Transaction {
	return idx.byDay[day]
}

// Len returns the number of distinct days in the index.
func (idx *DayIndex) Len() int {
	return len(idx.days)
}

// datedTx pairs a transaction with its parsed calendar day, for
// detectors that correlate across days from per-transaction anchors.
type datedTx struct {
	tx  domain.Transaction
	day time.Time
}

// datedTransactions returns the subset of txs with a parseable date.
func datedTransactions(txs []domain.Transaction) []datedTx {
	dated := make([]datedTx, 0, len(txs))
	for _, tx := range txs {
		if day, ok := tx.Day(); ok {
			dated = append(dated, datedTx{tx: tx, day: day})
		}
	}
	return dated
}

// daysBetween returns the absolute distance in calendar days.
func daysBetween(a, b time.Time) int {
	d := int(a.Sub(b).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

const dayFormat = "2006-01-02"
