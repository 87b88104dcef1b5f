// Package policy validates provider parameters with an OPA policy before a
// generation session is created.
package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/tpcreator/tpagent/internal/domain"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content. The
// policy must define the set data.provider_policy.violations.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.provider_policy.violations"),
		rego.Module("provider_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewDefaultEngine creates an engine running DefaultPolicy.
func NewDefaultEngine(ctx context.Context) (*Engine, error) {
	return NewEngine(ctx, DefaultPolicy)
}

// Evaluate returns the sorted violations reported for input.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) ([]string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	raw, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}
	violations := make([]string, 0, len(raw))
	for _, v := range raw {
		violations = append(violations, fmt.Sprint(v))
	}
	sort.Strings(violations)
	return violations, nil
}

// CheckProvider validates cfg and returns a ConfigInvalid error listing every
// violation. The API key itself is never passed to the policy.
func (e *Engine) CheckProvider(ctx context.Context, cfg domain.ProviderConfig) error {
	if cfg == nil {
		return domain.NewError(domain.KindConfigInvalid, "provider config is required")
	}
	violations, err := e.Evaluate(ctx, Input(cfg))
	if err != nil {
		return domain.WrapError(domain.KindInternal, "policy evaluation failed", err)
	}
	if len(violations) > 0 {
		return domain.NewError(domain.KindConfigInvalid, strings.Join(violations, "; "))
	}
	return nil
}

// Input converts cfg into the policy input document.
func Input(cfg domain.ProviderConfig) map[string]interface{} {
	switch c := cfg.(type) {
	case domain.CloudConfig:
		return map[string]interface{}{
			"provider": string(c.Provider()),
			"config": map[string]interface{}{
				"api_key_set": c.APIKey != "",
				"model":       c.Model,
				"temperature": c.Temperature,
				"max_tokens":  c.MaxTokens,
				"base_url":    c.BaseURL,
			},
		}
	case domain.LocalConfig:
		return map[string]interface{}{
			"provider": string(c.Provider()),
			"config": map[string]interface{}{
				"endpoint_url": c.EndpointURL,
				"model_name":   c.ModelName,
				"temperature":  c.Temperature,
			},
		}
	}
	return map[string]interface{}{"provider": string(cfg.Provider())}
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package provider_policy

allowed_providers := {"grok", "ollama"}

violations contains msg if {
	not allowed_providers[input.provider]
	msg := sprintf("unknown provider %v", [input.provider])
}

violations contains "temperature must be between 0 and 2" if {
	input.config.temperature < 0
}

violations contains "temperature must be between 0 and 2" if {
	input.config.temperature > 2
}

violations contains "max_tokens must be between 100 and 8192" if {
	input.provider == "grok"
	input.config.max_tokens < 100
}

violations contains "max_tokens must be between 100 and 8192" if {
	input.provider == "grok"
	input.config.max_tokens > 8192
}

violations contains "grok api key is required" if {
	input.provider == "grok"
	not input.config.api_key_set
}

violations contains "grok model is required" if {
	input.provider == "grok"
	input.config.model == ""
}

violations contains "base url must be http or https" if {
	input.provider == "grok"
	input.config.base_url != ""
	not regex.match("^https?://", input.config.base_url)
}

violations contains "ollama endpoint url is required" if {
	input.provider == "ollama"
	input.config.endpoint_url == ""
}

violations contains "ollama endpoint url must be http or https" if {
	input.provider == "ollama"
	input.config.endpoint_url != ""
	not regex.match("^https?://", input.config.endpoint_url)
}

violations contains "ollama model name is required" if {
	input.provider == "ollama"
	input.config.model_name == ""
}
`
