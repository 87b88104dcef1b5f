package jira

import (
	"context"
	"sync"

	"github.com/tpcreator/tpagent/internal/domain"
)

// MockSource serves issues from memory. It backs TPAGENT_MODE=MOCK and tests.
type MockSource struct {
	mu     sync.RWMutex
	issues map[string]domain.IssueRecord
	calls  int
}

// Ensure MockSource implements Source.
var _ Source = (*MockSource)(nil)

// NewMockSource creates a source seeded with issues.
func NewMockSource(issues ...domain.IssueRecord) *MockSource {
	m := &MockSource{issues: make(map[string]domain.IssueRecord)}
	for _, issue := range issues {
		m.Add(issue)
	}
	return m
}

// DemoIssue is the issue served by the mock source in MOCK mode.
func DemoIssue() domain.IssueRecord {
	return domain.IssueRecord{
		Key:                "PROJ-123",
		Summary:            "Fix login bug",
		Description:        "Users are intermittently logged out after submitting valid credentials.",
		Priority:           "High",
		IssueType:          "Bug",
		AcceptanceCriteria: "A user with valid credentials lands on the dashboard and stays signed in.",
	}
}

// Add registers or replaces an issue.
func (m *MockSource) Add(issue domain.IssueRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, err := domain.NormalizeIssueKey(issue.Key)
	if err != nil {
		return
	}
	issue.Key = key
	m.issues[key] = issue
}

// FetchIssue returns the stored issue or IssueNotFound.
func (m *MockSource) FetchIssue(ctx context.Context, key string) (domain.IssueRecord, error) {
	key, err := domain.NormalizeIssueKey(key)
	if err != nil {
		return domain.IssueRecord{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	issue, ok := m.issues[key]
	if !ok {
		return domain.IssueRecord{}, domain.Errorf(domain.KindIssueNotFound, "issue %s not found", key)
	}
	return issue, nil
}

// Calls returns how many fetches were made.
func (m *MockSource) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// TestConnection always succeeds.
func (m *MockSource) TestConnection(ctx context.Context) domain.ConnectionResult {
	return domain.ConnectionResult{
		Status:  domain.ConnectionConnected,
		User:    "Mock User",
		Message: "Jira connection successful",
	}
}
