package model

import "time"

// RunStatus represents the outcome of an enrichment run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusComplete    RunStatus = "complete"
	RunStatusPartial     RunStatus = "partial"
	RunStatusNothingToDo RunStatus = "nothing_to_do"
	RunStatusFailed      RunStatus = "failed"
)

// StopReason explains why the submitter stopped issuing calls.
type StopReason string

const (
	StopReasonDrained StopReason = "drained" // every planned record was submitted
	StopReasonQuota   StopReason = "quota"   // server-reported quota ran out mid-run
)

// RunSummary is reported at the end of every enrichment run.
type RunSummary struct {
	NewlyEnriched    int        `json:"newly_enriched"`
	NewlyRejected    int        `json:"newly_rejected"`
	StillPending     int        `json:"still_pending"`
	TotalEnriched    int        `json:"total_enriched"`
	TotalRejected    int        `json:"total_rejected"`
	Calls            int        `json:"calls"`
	RecordsSubmitted int        `json:"records_submitted"`
	DailyRemaining   int        `json:"daily_remaining"`
	StopReason       StopReason `json:"stop_reason,omitempty"`
	NothingToDo      bool       `json:"nothing_to_do,omitempty"`
	DurationMs       int64      `json:"duration_ms"`
}

// Status derives the ledger status from the summary.
func (s *RunSummary) Status() RunStatus {
	switch {
	case s.NothingToDo:
		return RunStatusNothingToDo
	case s.StopReason == StopReasonQuota || s.StillPending > 0:
		return RunStatusPartial
	default:
		return RunStatusComplete
	}
}

// Run is one entry of the enrichment run ledger.
type Run struct {
	ID        string      `json:"id"`
	Status    RunStatus   `json:"status"`
	Pending   int         `json:"pending"`
	Summary   *RunSummary `json:"summary,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
