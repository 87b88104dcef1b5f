// Package prompt builds the test plan generation prompt.
package prompt

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/tpcreator/tpagent/internal/domain"
)

// MaxTemplateChars is how much of a template is embedded in the prompt.
const MaxTemplateChars = 1000

// DefaultOutline is used when no template is configured.
const DefaultOutline = "[Default template: Create test plan with Overview, Scope, Test Scenarios, Exit Criteria]"

var qaPrompt = template.Must(template.New("qa").Parse(`You are a QA expert creating a professional test plan.

JIRA ISSUE:
- Key: {{.Issue.Key}}
- Summary: {{.Issue.Summary}}
- Description: {{.Issue.Description}}
- Acceptance Criteria: {{.Issue.AcceptanceCriteria}}
- Priority: {{.Issue.Priority}}

TEMPLATE STRUCTURE:
{{.Outline}}

Generate a comprehensive, professional test plan in Markdown format that:
1. Covers positive, negative, and edge case scenarios
2. Includes specific test steps and expected results
3. Addresses all acceptance criteria
4. Uses professional QA terminology
5. Is ready for immediate use by QA engineers`))

// Build renders the prompt for issue. templateText may be empty.
func Build(issue domain.IssueRecord, templateText string) (string, error) {
	var b strings.Builder
	if err := Write(&b, issue, templateText); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Write renders the prompt for issue to w.
func Write(w io.Writer, issue domain.IssueRecord, templateText string) error {
	data := struct {
		Issue   domain.IssueRecord
		Outline string
	}{
		Issue:   issue,
		Outline: outline(templateText),
	}
	if err := qaPrompt.Execute(w, data); err != nil {
		return fmt.Errorf("render prompt: %w", err)
	}
	return nil
}

func outline(templateText string) string {
	if strings.TrimSpace(templateText) == "" {
		return DefaultOutline
	}
	runes := []rune(templateText)
	if len(runes) > MaxTemplateChars {
		runes = runes[:MaxTemplateChars]
	}
	return string(runes)
}
