package domain

import "time"

// JiraSettings holds the tracker connection settings. The API token lives in
// the secret store and is only populated on the write path.
type JiraSettings struct {
	ID               int64            `json:"id,omitempty"`
	Domain           string           `json:"domain"`
	Email            string           `json:"email"`
	APIToken         string           `json:"api_token,omitempty"`
	ConnectionStatus ConnectionStatus `json:"connection_status"`
	LastTestedAt     *time.Time       `json:"last_tested_at,omitempty"`
}

// LLMSettings holds the stored provider settings for both backends.
type LLMSettings struct {
	ID               int64            `json:"id,omitempty"`
	Provider         ProviderTag      `json:"provider"`
	GrokAPIKey       string           `json:"grok_api_key,omitempty"`
	GrokModel        string           `json:"grok_model"`
	GrokTemperature  *float64         `json:"grok_temperature,omitempty"`
	GrokMaxTokens    *int             `json:"grok_max_tokens,omitempty"`
	GrokBaseURL      string           `json:"grok_base_url,omitempty"`
	OllamaURL        string           `json:"ollama_url"`
	OllamaModel      string           `json:"ollama_model"`
	ConnectionStatus ConnectionStatus `json:"connection_status"`
	LastTestedAt     *time.Time       `json:"last_tested_at,omitempty"`
}

// WithDefaults fills unset fields with the documented defaults. Numeric
// fields are unset only when nil, so an explicit zero is kept.
func (s LLMSettings) WithDefaults() LLMSettings {
	if s.GrokModel == "" {
		s.GrokModel = DefaultGrokModel
	}
	if s.GrokTemperature == nil {
		t := DefaultTemperature
		s.GrokTemperature = &t
	}
	if s.GrokMaxTokens == nil {
		n := DefaultMaxTokens
		s.GrokMaxTokens = &n
	}
	if s.GrokBaseURL == "" {
		s.GrokBaseURL = DefaultGrokBaseURL
	}
	if s.OllamaURL == "" {
		s.OllamaURL = DefaultOllamaURL
	}
	if s.OllamaModel == "" {
		s.OllamaModel = DefaultOllamaModelName
	}
	if s.ConnectionStatus == "" {
		s.ConnectionStatus = ConnectionUntested
	}
	return s
}

// ProviderConfig builds the config variant selected by tag from the stored
// settings. Fields are copied as is; range checks happen in the config policy.
func (s LLMSettings) ProviderConfig(tag ProviderTag) (ProviderConfig, error) {
	s = s.WithDefaults()
	switch tag {
	case ProviderGrok:
		return CloudConfig{
			APIKey:      s.GrokAPIKey,
			Model:       s.GrokModel,
			Temperature: *s.GrokTemperature,
			MaxTokens:   *s.GrokMaxTokens,
			BaseURL:     s.GrokBaseURL,
		}, nil
	case ProviderOllama:
		return LocalConfig{
			EndpointURL: s.OllamaURL,
			ModelName:   s.OllamaModel,
			Temperature: *s.GrokTemperature,
		}, nil
	}
	return nil, Errorf(KindConfigInvalid, "unknown provider %q", tag)
}

// TemplateSettings points at the test plan template file.
type TemplateSettings struct {
	ID               int64      `json:"id,omitempty"`
	FilePath         string     `json:"file_path"`
	FileFormat       string     `json:"file_format"`
	ValidationStatus string     `json:"validation_status"`
	LastTestedAt     *time.Time `json:"last_tested_at,omitempty"`
}

// ConnectionResult is the outcome of a connection test.
type ConnectionResult struct {
	Status          ConnectionStatus `json:"status"`
	Provider        ProviderTag      `json:"provider,omitempty"`
	Model           string           `json:"model,omitempty"`
	User            string           `json:"user,omitempty"`
	AvailableModels []string         `json:"available_models,omitempty"`
	Message         string           `json:"message"`
	Error           string           `json:"error,omitempty"`
}
