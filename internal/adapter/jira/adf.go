package jira

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// NotSpecified is used when an issue carries no acceptance criteria.
const NotSpecified = "Not specified"

// adfNode is a node of an Atlassian Document Format tree.
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

// FlattenField converts a raw Jira field into plain text. The field may be a
// JSON string, an ADF document, or null.
func FlattenField(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	var b strings.Builder
	writeADF(&b, doc, 0)
	return tidy(b.String())
}

func writeADF(b *strings.Builder, n adfNode, depth int) {
	switch n.Type {
	case "text":
		b.WriteString(n.Text)
	case "hardBreak":
		b.WriteString("\n")
	case "paragraph":
		writeChildren(b, n, depth)
		b.WriteString("\n")
	case "heading":
		writeChildren(b, n, depth)
		b.WriteString("\n")
	case "bulletList", "orderedList":
		for i, item := range n.Content {
			b.WriteString(strings.Repeat("  ", depth))
			if n.Type == "orderedList" {
				b.WriteString(strconv.Itoa(i+1) + ". ")
			} else {
				b.WriteString("- ")
			}
			var inner strings.Builder
			writeChildren(&inner, item, depth+1)
			b.WriteString(strings.TrimLeft(inner.String(), " "))
		}
	case "codeBlock":
		writeChildren(b, n, depth)
		b.WriteString("\n")
	case "rule":
		b.WriteString("\n")
	default:
		writeChildren(b, n, depth)
	}
}

func writeChildren(b *strings.Builder, n adfNode, depth int) {
	for _, c := range n.Content {
		writeADF(b, c, depth)
	}
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

var criteriaHeading = regexp.MustCompile(`(?i)^\s*(?:#+\s*|\*\*|h\d\.\s*)?acceptance\s+criteria\s*(?:\*\*)?\s*(?::\s*(.*))?$`)
var sectionHeading = regexp.MustCompile(`^\s*(?:#+\s+\S|h\d\.\s|\*\*[^*]+\*\*\s*:?\s*$|[A-Z][A-Za-z ]{2,40}:\s*$)`)

// ExtractAcceptanceCriteria finds the "Acceptance Criteria" section of a
// flattened description. It returns the empty string if there is none.
func ExtractAcceptanceCriteria(description string) string {
	lines := strings.Split(description, "\n")
	for i, line := range lines {
		m := criteriaHeading.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		var section []string
		if rest := strings.Trim(m[1], "* \t"); rest != "" {
			section = append(section, rest)
		}
		for _, next := range lines[i+1:] {
			if sectionHeading.MatchString(next) {
				break
			}
			section = append(section, next)
		}
		return strings.TrimSpace(strings.Join(section, "\n"))
	}
	return ""
}
