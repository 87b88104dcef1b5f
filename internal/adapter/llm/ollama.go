package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tpcreator/tpagent/internal/domain"
)

// OllamaBackend generates through a local Ollama server.
type OllamaBackend struct {
	pingTimeout time.Duration
}

// NewOllamaBackend creates the local backend.
func NewOllamaBackend(pingTimeout time.Duration) *OllamaBackend {
	return &OllamaBackend{pingTimeout: pingTimeout}
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func localConfig(cfg domain.ProviderConfig) (domain.LocalConfig, error) {
	c, ok := cfg.(domain.LocalConfig)
	if !ok {
		return domain.LocalConfig{}, domain.Errorf(domain.KindConfigInvalid, "ollama backend got %T", cfg)
	}
	c.EndpointURL = strings.TrimSuffix(c.EndpointURL, "/")
	return c, nil
}

// Complete implements Backend.
func (b *OllamaBackend) Complete(ctx context.Context, issue domain.IssueRecord, prompt string, cfg domain.ProviderConfig) (Completion, error) {
	c, err := localConfig(cfg)
	if err != nil {
		return Completion{}, err
	}

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   c.ModelName,
		Prompt:  prompt,
		Options: ollamaOptions{Temperature: c.Temperature},
	})
	if err != nil {
		return Completion{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.EndpointURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Completion{}, domain.WrapError(domain.KindConfigInvalid, "invalid ollama url", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &Client{httpClient: &http.Client{}}
	respBody, status, err := client.do(httpReq)
	if err != nil {
		return Completion{}, err
	}
	if status != http.StatusOK {
		return Completion{}, apiError(status, respBody)
	}

	var resp ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return Completion{}, domain.WrapError(domain.KindProviderResponseError, "failed to unmarshal response", err)
	}
	text := strings.TrimSpace(resp.Response)
	if text == "" {
		return Completion{}, domain.NewError(domain.KindProviderResponseError, "response content is empty")
	}

	out := Completion{Text: text, Model: resp.Model, TokenUsage: resp.PromptEvalCount + resp.EvalCount}
	if out.Model == "" {
		out.Model = c.ModelName
	}
	return out, nil
}

// Ping lists the models installed on the server.
func (b *OllamaBackend) Ping(ctx context.Context, cfg domain.ProviderConfig) domain.ConnectionResult {
	result := domain.ConnectionResult{Status: domain.ConnectionFailed, Provider: domain.ProviderOllama}
	c, err := localConfig(cfg)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Model = c.ModelName

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.EndpointURL+"/api/tags", nil)
	if err != nil {
		result.Error = err.Error()
		result.Message = "Invalid Ollama URL"
		return result
	}
	client := &Client{httpClient: &http.Client{Timeout: b.pingTimeout}}
	respBody, status, err := client.do(httpReq)
	if err != nil {
		result.Error = err.Error()
		result.Message = "Cannot connect to Ollama. Is it running?"
		return result
	}
	if status != http.StatusOK {
		result.Error = "Ollama not responding"
		result.Message = fmt.Sprintf("Ollama returned HTTP %d", status)
		return result
	}

	var tags ollamaTagsResponse
	if err := json.Unmarshal(respBody, &tags); err != nil {
		result.Error = err.Error()
		result.Message = "Malformed Ollama response"
		return result
	}
	for _, m := range tags.Models {
		result.AvailableModels = append(result.AvailableModels, m.Name)
	}
	result.Status = domain.ConnectionConnected
	result.Message = fmt.Sprintf("Ollama connected (%d models available)", len(result.AvailableModels))
	return result
}
