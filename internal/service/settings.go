package service

import (
	"context"
	"strings"

	"github.com/tpcreator/tpagent/internal/domain"
	"github.com/tpcreator/tpagent/internal/plantemplate"
	"github.com/tpcreator/tpagent/internal/secrets"
)

// SaveJiraSettings stores the tracker settings. A non-empty API token goes
// to the keyring; an empty one keeps the stored token.
func (s *Service) SaveJiraSettings(ctx context.Context, settings domain.JiraSettings) (*domain.JiraSettings, error) {
	settings.Domain = strings.TrimSpace(settings.Domain)
	settings.Email = strings.TrimSpace(settings.Email)
	if settings.Domain == "" || settings.Email == "" {
		return nil, domain.NewError(domain.KindConfigInvalid, "domain and email are required")
	}
	if settings.APIToken != "" {
		if err := s.secrets.Set(secrets.JiraAPIToken, settings.APIToken); err != nil {
			return nil, domain.WrapError(domain.KindInternal, "failed to store Jira token", err)
		}
	}

	settings.ConnectionStatus = domain.ConnectionUntested
	settings.LastTestedAt = nil
	saved, err := s.store.SaveJiraSettings(ctx, settings)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "failed to save Jira settings", err)
	}
	return saved, nil
}

// GetJiraSettings returns the stored tracker settings without the token, or
// nil if none are stored.
func (s *Service) GetJiraSettings(ctx context.Context) (*domain.JiraSettings, error) {
	settings, err := s.store.GetJiraSettings(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "failed to read Jira settings", err)
	}
	return settings, nil
}

// TestJiraConnection checks the stored tracker settings and records the
// outcome.
func (s *Service) TestJiraConnection(ctx context.Context) (domain.ConnectionResult, error) {
	src, err := s.jiraSource(ctx, nil)
	if err != nil {
		return domain.ConnectionResult{}, err
	}
	result := src.TestConnection(ctx)
	if err := s.store.UpdateJiraConnection(ctx, result.Status, s.now()); err != nil {
		return result, domain.WrapError(domain.KindInternal, "failed to record Jira connection status", err)
	}
	return result, nil
}

// SaveLLMSettings stores the provider settings after checking the selected
// provider's config. A non-empty Grok API key goes to the keyring.
func (s *Service) SaveLLMSettings(ctx context.Context, settings domain.LLMSettings) (*domain.LLMSettings, error) {
	raw := string(settings.Provider)
	if strings.TrimSpace(raw) == "" {
		raw = string(domain.ProviderGrok)
	}
	tag, err := domain.ParseProviderTag(raw)
	if err != nil {
		return nil, err
	}
	settings.Provider = tag
	settings = settings.WithDefaults()

	if s.policyEngine != nil {
		check := settings
		if check.GrokAPIKey == "" && s.secrets.Has(secrets.GrokAPIKey) {
			check.GrokAPIKey = "stored"
		}
		cfg, err := check.ProviderConfig(tag)
		if err != nil {
			return nil, err
		}
		if err := s.policyEngine.CheckProvider(ctx, cfg); err != nil {
			return nil, err
		}
	}

	if settings.GrokAPIKey != "" {
		if err := s.secrets.Set(secrets.GrokAPIKey, settings.GrokAPIKey); err != nil {
			return nil, domain.WrapError(domain.KindInternal, "failed to store Grok API key", err)
		}
	}

	settings.ConnectionStatus = domain.ConnectionUntested
	settings.LastTestedAt = nil
	saved, err := s.store.SaveLLMSettings(ctx, settings)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "failed to save LLM settings", err)
	}
	return saved, nil
}

// GetLLMSettings returns the stored provider settings without the API key,
// or nil if none are stored.
func (s *Service) GetLLMSettings(ctx context.Context) (*domain.LLMSettings, error) {
	settings, err := s.store.GetLLMSettings(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "failed to read LLM settings", err)
	}
	return settings, nil
}

// TestLLMConnection pings provider (the stored default when empty) and
// records the outcome.
func (s *Service) TestLLMConnection(ctx context.Context, provider string) (domain.ConnectionResult, error) {
	cfg, err := s.providerConfig(ctx, provider, domain.ProviderOverrides{})
	if err != nil {
		return domain.ConnectionResult{}, err
	}

	testCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.config.LLMTestTimeout > 0 {
		testCtx, cancel = context.WithTimeout(ctx, s.config.LLMTestTimeout)
	}
	defer cancel()

	result := s.generator.TestConnection(testCtx, cfg)
	if err := s.store.UpdateLLMConnection(ctx, result.Status, s.now()); err != nil {
		return result, domain.WrapError(domain.KindInternal, "failed to record LLM connection status", err)
	}
	return result, nil
}

// SaveTemplate validates path and stores it as the active template. The
// path is stored even when validation fails so the status is visible.
func (s *Service) SaveTemplate(ctx context.Context, path string) (*domain.TemplateSettings, plantemplate.Validation, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, plantemplate.Validation{}, domain.NewError(domain.KindConfigInvalid, "file_path is required")
	}

	v := plantemplate.Validate(path)
	format, _ := plantemplate.FormatOf(path)
	now := s.now()
	saved, err := s.store.SaveTemplateSettings(ctx, domain.TemplateSettings{
		FilePath:         path,
		FileFormat:       format,
		ValidationStatus: v.Status,
		LastTestedAt:     &now,
	})
	if err != nil {
		return nil, v, domain.WrapError(domain.KindInternal, "failed to save template settings", err)
	}
	return saved, v, nil
}

// GetTemplateSettings returns the stored template settings, or nil.
func (s *Service) GetTemplateSettings(ctx context.Context) (*domain.TemplateSettings, error) {
	settings, err := s.store.GetTemplateSettings(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "failed to read template settings", err)
	}
	return settings, nil
}

// Health reports the state of the collaborators.
func (s *Service) Health(ctx context.Context) map[string]string {
	health := map[string]string{
		"status":   "healthy",
		"database": "connected",
		"jira":     "ready",
		"llm":      "ready",
	}
	if err := s.store.Ping(ctx); err != nil {
		health["status"] = "degraded"
		health["database"] = "unavailable"
	}
	return health
}
