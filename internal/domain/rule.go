package domain

// RuleConfig defines a tenant-authored extension rule evaluated with
// CEL over case-level aggregates. Extension rules run alongside the
// builtin detector bank: a firing rule contributes one PatternMatch and
// its Score to the case before clamping. Extension codes never become
// the main driver - they surface as supporting indicators only.
type RuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// Expression is a CEL expression over the case aggregate
	// variables; it must evaluate to a bool.
	Expression string `json:"expression"`

	// Score is the contribution added to the case risk score when the
	// expression is true.
	Score int `json:"score"`

	// Whether the rule is active
	Enabled bool `json:"enabled"`
}
