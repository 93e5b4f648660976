package engine

import (
	"sort"

	"github.com/Shauryaditya/aml-case-processor/internal/domain"
)

// driverPriority is the hand-ordered severity list used to select the
// main driver. Kept as data rather than control flow so the ordering
// can be audited and tested on its own.
var driverPriority = []string{
	domain.PatternFunneling,
	domain.PatternLayering,
	domain.PatternSmurfing,
	domain.PatternCryptoToBank,
	domain.PatternRapidOutflow,
	domain.PatternCashToWire,
	domain.PatternStructuring,
	domain.PatternATMStruct,
	domain.PatternP2PBurst,
}

// driverIndicators maps a main driver to the implicit indicator codes
// it always carries, beyond whatever other patterns fired.
var driverIndicators = map[string][]string{
	domain.PatternFunneling:    {"MULTIPLE_SENDERS", "SINGLE_DESTINATION_CONSOLIDATION"},
	domain.PatternLayering:     {"MULTI_CHANNEL_MOVEMENT", "RAPID_FUND_REDISTRIBUTION"},
	domain.PatternSmurfing:     {"MULTIPLE_SENDERS", "SUB_THRESHOLD_CREDITS"},
	domain.PatternCryptoToBank: {"RAPID_FUND_REDISTRIBUTION", "VIRTUAL_ASSET_EXPOSURE"},
	domain.PatternRapidOutflow: {"HIGH_VELOCITY_MOVEMENT"},
	domain.PatternCashToWire:   {"CASH_INTENSITY", "HIGH_VELOCITY_MOVEMENT"},
	domain.PatternStructuring:  {"CASH_INTENSITY", "THRESHOLD_AVOIDANCE"},
	domain.PatternATMStruct:    {"CASH_INTENSITY", "THRESHOLD_AVOIDANCE"},
	domain.PatternHighRiskWire: {"GEOGRAPHIC_RISK", "SANCTIONS_EXPOSURE"},
	domain.PatternP2PBurst:     {"UNKNOWN_COUNTERPARTIES"},
}

// builtinCodes is the set of codes eligible to be the main driver.
// Tenant extension rules contribute patterns and score but never
// displace a built-in driver.
var builtinCodes = func() map[string]bool {
	set := make(map[string]bool)
	for _, d := range defaultDetectors(domain.DefaultEngineConfig()) {
		set[d.Code()] = true
	}
	return set
}()

// selectDriver picks the main driver from the fired patterns: the
// first priority-list code present, falling back to the first fired
// built-in code in pattern order. Nil when nothing fired.
func selectDriver(patterns []domain.PatternMatch) *string {
	fired := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		fired[p.Code] = true
	}
	for _, code := range driverPriority {
		if fired[code] {
			c := code
			return &c
		}
	}
	for _, p := range patterns {
		if builtinCodes[p.Code] {
			c := p.Code
			return &c
		}
	}
	return nil
}

// supportingIndicators returns every fired code other than the driver,
// unioned with the driver's implicit indicators, deduplicated and
// sorted.
func supportingIndicators(patterns []domain.PatternMatch, driver *string) []string {
	set := make(map[string]struct{})
	for _, p := range patterns {
		if driver != nil && p.Code == *driver {
			continue
		}
		set[p.Code] = struct{}{}
	}
	if driver != nil {
		for _, ind := range driverIndicators[*driver] {
			set[ind] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
