package domain

import (
	"fmt"
	"math"
	"time"
)

// GenerationSession is one attempt to turn a fetched issue into a test plan
// through a specific provider.
//
// A session is owned by the goroutine driving it until it reaches a terminal
// status; after that it is never mutated and is shared only as a value copy.
// ID and Content are set together, exactly once, on completion.
type GenerationSession struct {
	ID              string        `json:"id,omitempty"`
	Issue           IssueRecord   `json:"issue"`
	ProviderUsed    ProviderTag   `json:"provider_used"`
	Model           string        `json:"model,omitempty"`
	Content         string        `json:"content,omitempty"`
	Status          SessionStatus `json:"status"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	DurationSeconds float64       `json:"duration_seconds"`
	Error           *ErrorInfo    `json:"error,omitempty"`
	TemplateUsed    string        `json:"template_used,omitempty"`
	TokenUsage      int           `json:"token_usage"`
}

// NewSession creates a Pending session for issue and the chosen provider.
func NewSession(issue IssueRecord, provider ProviderTag, now time.Time) *GenerationSession {
	return &GenerationSession{
		Issue:        issue,
		ProviderUsed: provider,
		Status:       SessionStatusPending,
		StartedAt:    now,
	}
}

// BeginGenerating moves a Pending session to Generating.
func (s *GenerationSession) BeginGenerating() error {
	if s.Status != SessionStatusPending {
		return fmt.Errorf("illegal transition %s -> %s", s.Status, SessionStatusGenerating)
	}
	s.Status = SessionStatusGenerating
	return nil
}

// Complete records the generated content and assigns the session id.
func (s *GenerationSession) Complete(id, content string, now time.Time) error {
	if s.Status != SessionStatusGenerating {
		return fmt.Errorf("illegal transition %s -> %s", s.Status, SessionStatusCompleted)
	}
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	if content == "" {
		return fmt.Errorf("content is required")
	}
	s.ID = id
	s.Content = content
	s.finish(SessionStatusCompleted, now)
	return nil
}

// Fail records err and ends the session. Only non-terminal sessions can fail.
func (s *GenerationSession) Fail(err error, now time.Time) error {
	if s.Status.IsTerminal() {
		return fmt.Errorf("illegal transition %s -> %s", s.Status, SessionStatusFailed)
	}
	if err == nil {
		return fmt.Errorf("failure cause is required")
	}
	s.Error = InfoOf(err)
	s.finish(SessionStatusFailed, now)
	return nil
}

func (s *GenerationSession) finish(status SessionStatus, now time.Time) {
	completedAt := now
	s.CompletedAt = &completedAt
	s.DurationSeconds = math.Round(now.Sub(s.StartedAt).Seconds()*100) / 100
	s.Status = status
}

// Snapshot returns an independent copy of the session.
func (s *GenerationSession) Snapshot() GenerationSession {
	cp := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	if s.Error != nil {
		e := *s.Error
		cp.Error = &e
	}
	return cp
}

// CheckTerminal verifies the shape of a terminal session: an id and
// content exist if and only if it completed, and an error exists if and only
// if it failed.
func (s GenerationSession) CheckTerminal() error {
	switch s.Status {
	case SessionStatusCompleted:
		if s.ID == "" || s.Content == "" {
			return fmt.Errorf("completed session must carry id and content")
		}
		if s.Error != nil {
			return fmt.Errorf("completed session must not carry an error")
		}
	case SessionStatusFailed:
		if s.ID != "" || s.Content != "" {
			return fmt.Errorf("failed session must not carry id or content")
		}
		if s.Error == nil {
			return fmt.Errorf("failed session must carry an error")
		}
	default:
		return fmt.Errorf("session is not terminal: %s", s.Status)
	}
	if s.CompletedAt == nil {
		return fmt.Errorf("terminal session must carry completed_at")
	}
	return nil
}

// Summary converts the session into a history entry.
func (s GenerationSession) Summary() HistoryEntry {
	entry := HistoryEntry{
		ID:              s.ID,
		IssueKey:        s.Issue.Key,
		Summary:         s.Issue.Summary,
		ProviderUsed:    s.ProviderUsed,
		Status:          s.Status,
		DurationSeconds: s.DurationSeconds,
		Error:           s.Error,
	}
	if s.CompletedAt != nil {
		entry.CompletedAt = *s.CompletedAt
	}
	return entry
}
