package llm

import (
	"context"

	"github.com/tpcreator/tpagent/internal/domain"
	"github.com/tpcreator/tpagent/internal/prompt"
)

// Router dispatches generation to the backend registered for the
// config's provider tag.
type Router struct {
	backends map[domain.ProviderTag]Backend
}

// NewRouter creates a router with the given backends.
func NewRouter(backends map[domain.ProviderTag]Backend) *Router {
	r := &Router{backends: make(map[domain.ProviderTag]Backend, len(backends))}
	for tag, b := range backends {
		r.backends[tag] = b
	}
	return r
}

// Backend returns the backend for tag.
func (r *Router) Backend(tag domain.ProviderTag) (Backend, bool) {
	b, ok := r.backends[tag]
	return b, ok
}

// Generate builds the prompt for req.Issue and runs it on the selected
// backend.
func (r *Router) Generate(ctx context.Context, req Request) (Completion, error) {
	if req.Config == nil {
		return Completion{}, domain.NewError(domain.KindConfigInvalid, "provider config is required")
	}
	b, ok := r.backends[req.Config.Provider()]
	if !ok {
		return Completion{}, domain.Errorf(domain.KindConfigInvalid, "no backend for provider %q", req.Config.Provider())
	}
	text, err := prompt.Build(req.Issue, req.Template)
	if err != nil {
		return Completion{}, domain.WrapError(domain.KindInternal, "failed to build prompt", err)
	}
	return b.Complete(ctx, req.Issue, text, req.Config)
}

// TestConnection pings the backend selected by cfg.
func (r *Router) TestConnection(ctx context.Context, cfg domain.ProviderConfig) domain.ConnectionResult {
	if cfg == nil {
		return domain.ConnectionResult{Status: domain.ConnectionFailed, Error: "Unknown provider"}
	}
	b, ok := r.backends[cfg.Provider()]
	if !ok {
		return domain.ConnectionResult{Status: domain.ConnectionFailed, Provider: cfg.Provider(), Error: "Unknown provider"}
	}
	return b.Ping(ctx, cfg)
}
