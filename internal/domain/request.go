package domain

// GenerateRequest asks for a test plan. Either JiraDetails (already fetched)
// or JiraIssueID (fetch first) must be given.
type GenerateRequest struct {
	JiraIssueID string       `json:"jira_issue_id,omitempty"`
	JiraDetails *IssueRecord `json:"jira_details,omitempty"`
	Provider    string       `json:"provider"`
	Temperature *float64     `json:"temperature,omitempty"`
	MaxTokens   *int         `json:"max_tokens,omitempty"`
}

// Overrides extracts the per-request provider overrides.
func (r GenerateRequest) Overrides() ProviderOverrides {
	return ProviderOverrides{Temperature: r.Temperature, MaxTokens: r.MaxTokens}
}

// GenerateResponse describes a completed generation.
type GenerateResponse struct {
	ID           string             `json:"id"`
	JiraIssueID  string             `json:"jira_issue_id"`
	JiraSummary  string             `json:"jira_summary"`
	Content      string             `json:"content"`
	Format       string             `json:"format"`
	ProviderUsed ProviderTag        `json:"provider_used"`
	Metadata     GenerationMetadata `json:"metadata"`
	Exports      ExportLinks        `json:"exports"`
}

// GenerationMetadata carries timing and provenance of a generation.
type GenerationMetadata struct {
	GeneratedAt           string  `json:"generated_at"`
	GenerationTimeSeconds float64 `json:"generation_time_seconds"`
	TemplateUsed          string  `json:"template_used"`
	TokenUsage            int     `json:"token_usage"`
}

// ExportLinks are the fetchable references of a completed session.
type ExportLinks struct {
	PDFURL      string `json:"pdf_url"`
	WordURL     string `json:"word_url"`
	MarkdownURL string `json:"markdown_url"`
}

// HistoryResponse lists history entries.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
	Total   int            `json:"total"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error ErrorInfo `json:"error"`
}
