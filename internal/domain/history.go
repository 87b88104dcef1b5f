package domain

import "time"

// HistoryEntry is the summary of a terminal session shown in history views.
// ID is empty for failed sessions.
type HistoryEntry struct {
	ID              string        `json:"id,omitempty"`
	IssueKey        string        `json:"issue_key"`
	Summary         string        `json:"summary"`
	ProviderUsed    ProviderTag   `json:"provider_used"`
	Status          SessionStatus `json:"status"`
	DurationSeconds float64       `json:"duration_seconds"`
	CompletedAt     time.Time     `json:"completed_at"`
	Error           *ErrorInfo    `json:"error,omitempty"`
}
