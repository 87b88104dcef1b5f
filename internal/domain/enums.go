// Package domain defines the core domain models for the test plan agent.
package domain

import "strings"

// SessionStatus represents the status of a generation session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "PENDING"
	SessionStatusFetching   SessionStatus = "FETCHING"
	SessionStatusGenerating SessionStatus = "GENERATING"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusFailed     SessionStatus = "FAILED"
)

// IsTerminal reports whether no transition can leave the status.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// ProviderTag selects a generation backend.
type ProviderTag string

const (
	// ProviderGrok is the metered cloud API (OpenAI-compatible chat completions).
	ProviderGrok ProviderTag = "grok"
	// ProviderOllama is a locally hosted inference server.
	ProviderOllama ProviderTag = "ollama"
)

// ParseProviderTag normalizes a user supplied provider name.
func ParseProviderTag(raw string) (ProviderTag, error) {
	switch tag := ProviderTag(strings.ToLower(strings.TrimSpace(raw))); tag {
	case ProviderGrok, ProviderOllama:
		return tag, nil
	case "":
		return "", NewError(KindConfigInvalid, "provider is required")
	default:
		return "", Errorf(KindConfigInvalid, "unknown provider %q", raw)
	}
}

// ExportFormat is a rendered artifact format.
type ExportFormat string

const (
	FormatPDF      ExportFormat = "pdf"
	FormatDOCX     ExportFormat = "docx"
	FormatMarkdown ExportFormat = "md"
)

// ExportFormats lists every supported format in a stable order.
var ExportFormats = []ExportFormat{FormatPDF, FormatDOCX, FormatMarkdown}

// ParseExportFormat validates a format name. "markdown" and "word" are accepted
// as aliases.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pdf":
		return FormatPDF, nil
	case "docx", "word":
		return FormatDOCX, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	default:
		return "", Errorf(KindConfigInvalid, "unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	}
	return "application/octet-stream"
}

// ConnectionStatus is the last known result of a connection test.
type ConnectionStatus string

const (
	ConnectionUntested  ConnectionStatus = "untested"
	ConnectionConnected ConnectionStatus = "connected"
	ConnectionFailed    ConnectionStatus = "failed"
)
