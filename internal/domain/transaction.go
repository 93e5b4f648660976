package domain

import (
	"strconv"
	"strings"
	"time"
)

// Transaction is one canonical financial movement produced by the
// statement normalizer. Field names match the wire contract expected by
// existing callers; values arrive as raw strings and are parsed lazily
// by the accessor methods. Transactions are immutable inputs - the
// engine only reads them.
type Transaction struct {
	Date      string `json:"Date"`
	Amount    string `json:"amount"`
	Type      string `json:"Type"`
	Details   string `json:"Details"`
	Direction string `json:"direction,omitempty"`
}

// Channel tags recognized by the detectors.
const (
	ChannelCash    = "cash"
	ChannelWire    = "wire"
	ChannelACH     = "ach"
	ChannelP2P     = "p2p"
	ChannelATM     = "atm"
	ChannelCard    = "card"
	ChannelCrypto  = "crypto"
	ChannelCheck   = "check"
	ChannelUnknown = "unknown"
)

// Direction values. Unknown direction disqualifies a transaction from
// direction-sensitive detectors.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
	DirectionUnknown  = "unknown"
)

var amountCleaner = strings.NewReplacer("$", "", ",", "", " ", "", "€", "", "£", "")

// AmountValue parses the raw amount, stripping currency symbols and
// thousands separators. Unparseable amounts resolve to 0.0 so they can
// never satisfy a positive-amount threshold (fails closed, never errors).
func (t *Transaction) AmountValue() float64 {
	raw := amountCleaner.Replace(strings.TrimSpace(t.Amount))
	if raw == "" {
		return 0.0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0.0
	}
	return v
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-01-2006",
}

// Day parses the transaction date and truncates it to a calendar day in
// UTC. The second return value reports whether a date could be parsed;
// undated transactions are excluded from day-indexed detectors only.
func (t *Transaction) Day() (time.Time, bool) {
	raw := strings.TrimSpace(t.Date)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			y, m, d := parsed.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Channel returns the lower-cased channel tag.
func (t *Transaction) Channel() string {
	ch := strings.ToLower(strings.TrimSpace(t.Type))
	if ch == "" {
		return ChannelUnknown
	}
	return ch
}

// DetailsLower returns the free-text description lower-cased for keyword
// matching.
func (t *Transaction) DetailsLower() string {
	return strings.ToLower(t.Details)
}

var inboundMarkers = []string{"incoming", "from ", "credit", "deposit", "salary", "payroll"}
var outboundMarkers = []string{"transfer to", "wire to", "withdrawal", "payment", "sent", "debit"}

// DirectionValue returns the explicit direction when present, otherwise
// infers it from description keywords. Inbound markers are checked
// first; transactions matching neither set resolve to unknown.
func (t *Transaction) DirectionValue() string {
	switch strings.ToLower(strings.TrimSpace(t.Direction)) {
	case DirectionInbound:
		return DirectionInbound
	case DirectionOutbound:
		return DirectionOutbound
	}

	details := t.DetailsLower()
	for _, marker := range inboundMarkers {
		if strings.Contains(details, marker) {
			return DirectionInbound
		}
	}
	for _, marker := range outboundMarkers {
		if strings.Contains(details, marker) {
			return DirectionOutbound
		}
	}
	return DirectionUnknown
}
