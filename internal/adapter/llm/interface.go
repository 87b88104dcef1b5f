// Package llm provides the generation backends (cloud chat completions and a
// local Ollama server) behind one interface.
package llm

import (
	"context"

	"github.com/tpcreator/tpagent/internal/domain"
)

// Completion is the all-or-nothing result of a generation call.
type Completion struct {
	Text       string
	Model      string
	TokenUsage int
}

// Backend is one generation backend. cfg is always the variant the backend
// was registered for.
type Backend interface {
	// Complete sends prompt and returns the generated text. Errors are
	// *domain.Error values of the provider kinds.
	Complete(ctx context.Context, issue domain.IssueRecord, prompt string, cfg domain.ProviderConfig) (Completion, error)

	// Ping checks that the backend is reachable with cfg.
	Ping(ctx context.Context, cfg domain.ProviderConfig) domain.ConnectionResult
}

// Request is a generation request for one issue.
type Request struct {
	Issue    domain.IssueRecord
	Config   domain.ProviderConfig
	Template string
}

// Generator produces test plan text for an issue.
type Generator interface {
	Generate(ctx context.Context, req Request) (Completion, error)
	TestConnection(ctx context.Context, cfg domain.ProviderConfig) domain.ConnectionResult
}

// Ensure Router implements Generator.
var _ Generator = (*Router)(nil)
