package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tpcreator/tpagent/internal/domain"
)

// GrokBackend generates through an OpenAI-compatible chat completions API.
type GrokBackend struct {
	pingTimeout time.Duration
}

// NewGrokBackend creates the cloud backend. pingTimeout bounds connection
// tests; generation deadlines come from the caller's context.
func NewGrokBackend(pingTimeout time.Duration) *GrokBackend {
	return &GrokBackend{pingTimeout: pingTimeout}
}

func cloudConfig(cfg domain.ProviderConfig) (domain.CloudConfig, error) {
	c, ok := cfg.(domain.CloudConfig)
	if !ok {
		return domain.CloudConfig{}, domain.Errorf(domain.KindConfigInvalid, "grok backend got %T", cfg)
	}
	if c.BaseURL == "" {
		c.BaseURL = domain.DefaultGrokBaseURL
	}
	return c, nil
}

// Complete implements Backend.
func (b *GrokBackend) Complete(ctx context.Context, issue domain.IssueRecord, prompt string, cfg domain.ProviderConfig) (Completion, error) {
	c, err := cloudConfig(cfg)
	if err != nil {
		return Completion{}, err
	}
	if c.APIKey == "" {
		return Completion{}, domain.NewError(domain.KindProviderAuthError, "grok API key not provided")
	}

	client := NewClient(c.BaseURL, c.APIKey, 0)
	temperature := c.Temperature
	maxTokens := c.MaxTokens
	resp, err := client.CreateChatCompletion(ctx, &ChatCompletionRequest{
		Model:       c.Model,
		Messages:    []ChatMessage{{Role: "user", Content: prompt}},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return Completion{}, err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return Completion{}, domain.NewError(domain.KindProviderResponseError, "response carried no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Completion{}, domain.NewError(domain.KindProviderResponseError, "response content is empty")
	}

	out := Completion{Text: text, Model: resp.Model}
	if out.Model == "" {
		out.Model = c.Model
	}
	if resp.Usage != nil {
		out.TokenUsage = resp.Usage.TotalTokens
	}
	return out, nil
}

// Ping lists models with the configured key.
func (b *GrokBackend) Ping(ctx context.Context, cfg domain.ProviderConfig) domain.ConnectionResult {
	result := domain.ConnectionResult{Status: domain.ConnectionFailed, Provider: domain.ProviderGrok}
	c, err := cloudConfig(cfg)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Model = c.Model
	if c.APIKey == "" {
		result.Error = "API key not provided"
		result.Message = "Grok connection failed. Check API key."
		return result
	}

	models, err := NewClient(c.BaseURL, c.APIKey, b.pingTimeout).ListModels(ctx)
	if err != nil {
		result.Error = err.Error()
		switch domain.KindOf(err) {
		case domain.KindProviderAuthError:
			result.Message = "Grok connection failed. Check API key."
		case domain.KindTimeout:
			result.Message = "Grok timeout"
		default:
			result.Message = "Grok connection failed"
		}
		return result
	}

	result.Status = domain.ConnectionConnected
	for _, m := range models {
		result.AvailableModels = append(result.AvailableModels, m.ID)
	}
	result.Message = fmt.Sprintf("Grok connection successful (%d models available)", len(models))
	return result
}
