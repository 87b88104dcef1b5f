package domain

// Provider parameter bounds. Values outside them are a configuration error.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinMaxTokens   = 100
	MaxMaxTokens   = 8192

	DefaultGrokModel       = "grok-2"
	DefaultGrokBaseURL     = "https://api.groq.com/openai/v1"
	DefaultTemperature     = 0.7
	DefaultMaxTokens       = 2000
	DefaultOllamaURL       = "http://localhost:11434"
	DefaultOllamaModelName = "mistral"
)

// ProviderConfig is the parameter set of exactly one generation backend.
// It is implemented by CloudConfig and LocalConfig only.
type ProviderConfig interface {
	Provider() ProviderTag
	isProviderConfig()
}

// CloudConfig configures the metered cloud API.
type CloudConfig struct {
	APIKey      string  `json:"-"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	BaseURL     string  `json:"base_url,omitempty"`
}

// Provider implements ProviderConfig.
func (CloudConfig) Provider() ProviderTag { return ProviderGrok }
func (CloudConfig) isProviderConfig()     {}

// LocalConfig configures a local inference server.
type LocalConfig struct {
	EndpointURL string  `json:"endpoint_url"`
	ModelName   string  `json:"model_name"`
	Temperature float64 `json:"temperature"`
}

// Provider implements ProviderConfig.
func (LocalConfig) Provider() ProviderTag { return ProviderOllama }
func (LocalConfig) isProviderConfig()     {}

// ProviderOverrides are per-request parameter overrides.
type ProviderOverrides struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Apply returns cfg with the overrides applied. Local backends ignore MaxTokens.
func (o ProviderOverrides) Apply(cfg ProviderConfig) ProviderConfig {
	switch c := cfg.(type) {
	case CloudConfig:
		if o.Temperature != nil {
			c.Temperature = *o.Temperature
		}
		if o.MaxTokens != nil {
			c.MaxTokens = *o.MaxTokens
		}
		return c
	case LocalConfig:
		if o.Temperature != nil {
			c.Temperature = *o.Temperature
		}
		return c
	}
	return cfg
}
