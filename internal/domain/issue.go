package domain

import "strings"

// IssueRecord is an immutable snapshot of a tracked work item.
type IssueRecord struct {
	Key                string `json:"key"`
	Summary            string `json:"summary"`
	Description        string `json:"description,omitempty"`
	Priority           string `json:"priority,omitempty"`
	IssueType          string `json:"issueType,omitempty"`
	AcceptanceCriteria string `json:"acceptanceCriteria,omitempty"`
}

// NormalizeIssueKey trims and upper-cases an issue key.
func NormalizeIssueKey(key string) (string, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return "", NewError(KindConfigInvalid, "issue key is required")
	}
	return key, nil
}

// Validate checks the fields a generation needs.
func (r IssueRecord) Validate() error {
	if strings.TrimSpace(r.Key) == "" {
		return NewError(KindConfigInvalid, "issue key is required")
	}
	if strings.TrimSpace(r.Summary) == "" {
		return NewError(KindConfigInvalid, "issue summary is required")
	}
	return nil
}
