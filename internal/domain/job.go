package domain

import "time"

// JobStatus tracks a case through the async pipeline.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobParsing   JobStatus = "parsing"
	JobRules     JobStatus = "rules"
	JobNarrative JobStatus = "narrative"
	JobDone      JobStatus = "done"
	JobError     JobStatus = "error"
)

// Job is one submitted case: an uploaded statement (or inline
// transaction batch) working its way to a CaseResult and narrative.
type Job struct {
	ID       string    `json:"id"`
	TenantID string    `json:"tenantId"`
	Status   JobStatus `json:"status"`
	FileName string    `json:"fileName,omitempty"`

	SubmittedAt time.Time  `json:"submittedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	TxCount   int         `json:"txCount"`
	Result    *CaseResult `json:"result,omitempty"`
	Narrative string      `json:"narrative,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// CaseSubmission is the bus payload for an async case submission. The
// worker normalizes Raw when present, otherwise uses Transactions.
type CaseSubmission struct {
	JobID        string        `json:"jobId"`
	TenantID     string        `json:"tenantId"`
	TraceID      string        `json:"traceId,omitempty"`
	FileName     string        `json:"fileName,omitempty"`
	Raw          []byte        `json:"raw,omitempty"`
	Transactions []Transaction `json:"transactions,omitempty"`
}
