package domain

import "time"

// FlowReport summarizes one flow (entries or weather) of a pipeline run.
type FlowReport struct {
	Flow      string   `json:"flow"`
	Read      int      `json:"read"`
	BackedUp  int      `json:"backed_up"`
	Cleaned   int      `json:"cleaned"`
	Dropped   int      `json:"dropped"`
	Stored    int      `json:"stored"`
	Snapshots []string `json:"snapshots,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID       string       `json:"run_id"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	Flows       []FlowReport `json:"flows"`
	Error       string       `json:"error,omitempty"`
}
