package llm

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tpcreator/tpagent/internal/domain"
)

// MockClient is a mock Backend for MOCK mode and tests.
type MockClient struct {
	// Delay is waited out (or the context, whichever ends first) before
	// answering.
	Delay time.Duration
	// Err, when set, is returned instead of a completion.
	Err error

	calls atomic.Int64
}

// NewMockClient creates a new mock backend.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements Backend.
var _ Backend = (*MockClient)(nil)

// Complete returns a small Markdown test plan for issue.
func (m *MockClient) Complete(ctx context.Context, issue domain.IssueRecord, prompt string, cfg domain.ProviderConfig) (Completion, error) {
	n := m.calls.Add(1)
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Completion{}, transportError(ctx.Err())
		case <-timer.C:
		}
	}
	if m.Err != nil {
		return Completion{}, m.Err
	}

	text := m.generateMockResponse(issue, n)
	return Completion{
		Text:       text,
		Model:      "mock-" + string(cfg.Provider()),
		TokenUsage: (len(prompt) + len(text)) / 4,
	}, nil
}

// Ping always reports a connected mock backend.
func (m *MockClient) Ping(ctx context.Context, cfg domain.ProviderConfig) domain.ConnectionResult {
	return domain.ConnectionResult{
		Status:          domain.ConnectionConnected,
		Provider:        cfg.Provider(),
		Model:           "mock-" + string(cfg.Provider()),
		AvailableModels: []string{"mock-" + string(cfg.Provider())},
		Message:         "[MOCK] connection successful",
	}
}

// Calls returns the number of Complete calls.
func (m *MockClient) Calls() int {
	return int(m.calls.Load())
}

func (m *MockClient) generateMockResponse(issue domain.IssueRecord, run int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Test Plan: %s - %s\n\n", issue.Key, issue.Summary)
	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "[MOCK] Run %d. Verifies %s (%s, priority %s).\n\n", run, issue.Key, issue.IssueType, issue.Priority)
	b.WriteString("## Scope\n\n")
	b.WriteString("- Functional behaviour described in the issue\n- Regression of adjacent flows\n\n")
	b.WriteString("## Test Scenarios\n\n")
	b.WriteString("1. **Positive**: valid input produces the expected result\n")
	b.WriteString("2. **Negative**: invalid input is rejected with a clear message\n")
	b.WriteString("3. **Edge**: boundary values are handled\n\n")
	b.WriteString("## Exit Criteria\n\n")
	if ac := strings.TrimSpace(issue.AcceptanceCriteria); ac != "" {
		fmt.Fprintf(&b, "- %s\n", ac)
	}
	b.WriteString("- All scenarios pass\n")
	return b.String()
}
