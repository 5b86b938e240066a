package domain

import "time"

// RunRecord captures one pipeline run for the audit ledger.
type RunRecord struct {
	Timestamp  time.Time  `json:"timestamp"`
	RequestID  string     `json:"request_id"`
	Operation  string     `json:"operation"`
	Command    string     `json:"command"`
	Provenance Provenance `json:"provenance"`
	Confidence float64    `json:"confidence"`
	Valid      bool       `json:"valid"`
	Success    bool       `json:"success"`
	Exit       ExitClass  `json:"exit"`
	ExitCode   int        `json:"exit_code"`
	DurationMS int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
}
