package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tpcreator/tpagent/internal/adapter/llm"
	"github.com/tpcreator/tpagent/internal/domain"
	"github.com/tpcreator/tpagent/internal/plantemplate"
	"github.com/tpcreator/tpagent/internal/secrets"
)

const defaultTemplateName = "default"

// StartGeneration fetches issueKey and generates a test plan for it. The
// provider config is checked before the fetch, so a bad config never
// reaches the tracker.
func (s *Service) StartGeneration(ctx context.Context, issueKey, provider string, overrides domain.ProviderOverrides) (*domain.GenerationSession, error) {
	cfg, err := s.providerConfig(ctx, provider, overrides)
	if err != nil {
		return nil, err
	}
	issue, err := s.FetchIssue(ctx, issueKey)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, issue, cfg)
}

// Generate runs one generation session for an already fetched issue.
//
// The returned session is terminal. A failed session is returned together
// with its error and is kept for audit without an id. Config problems are
// reported before any session exists.
func (s *Service) Generate(ctx context.Context, issue domain.IssueRecord, provider string, overrides domain.ProviderOverrides) (*domain.GenerationSession, error) {
	key, err := domain.NormalizeIssueKey(issue.Key)
	if err != nil {
		return nil, err
	}
	issue.Key = key
	if err := issue.Validate(); err != nil {
		return nil, err
	}
	cfg, err := s.providerConfig(ctx, provider, overrides)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, issue, cfg)
}

// GenerateFromRequest serves the generate API: it uses the issue details in
// req when present and fetches req.JiraIssueID otherwise.
func (s *Service) GenerateFromRequest(ctx context.Context, req domain.GenerateRequest) (domain.GenerateResponse, error) {
	var (
		session *domain.GenerationSession
		err     error
	)
	switch {
	case req.JiraDetails != nil:
		session, err = s.Generate(ctx, *req.JiraDetails, req.Provider, req.Overrides())
	case strings.TrimSpace(req.JiraIssueID) != "":
		session, err = s.StartGeneration(ctx, req.JiraIssueID, req.Provider, req.Overrides())
	default:
		return domain.GenerateResponse{}, domain.NewError(domain.KindConfigInvalid, "jira_details or jira_issue_id is required")
	}
	if err != nil {
		return domain.GenerateResponse{}, err
	}
	return s.Response(*session), nil
}

type generationResult struct {
	completion llm.Completion
	err        error
}

func (s *Service) run(ctx context.Context, issue domain.IssueRecord, cfg domain.ProviderConfig) (*domain.GenerationSession, error) {
	templateText, templateName := s.templateText(ctx)

	session := domain.NewSession(issue, cfg.Provider(), s.now())
	session.TemplateUsed = templateName
	if err := session.BeginGenerating(); err != nil {
		return nil, domain.WrapError(domain.KindInternal, "failed to start session", err)
	}

	genCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.config.GenerationTimeout > 0 {
		genCtx, cancel = context.WithTimeout(ctx, s.config.GenerationTimeout)
	}
	defer cancel()

	// The provider call runs on its own goroutine so a backend that ignores
	// its context cannot hold the session in Generating past the deadline.
	done := make(chan generationResult, 1)
	go func() {
		c, err := s.generator.Generate(genCtx, llm.Request{Issue: issue, Config: cfg, Template: templateText})
		done <- generationResult{completion: c, err: err}
	}()

	var res generationResult
	select {
	case res = <-done:
	case <-genCtx.Done():
		res.err = domain.WrapError(domain.KindTimeout,
			fmt.Sprintf("generation timed out after %s", time.Since(session.StartedAt).Round(time.Millisecond)), genCtx.Err())
	}

	if res.err != nil && errors.Is(ctx.Err(), context.Canceled) {
		log.Printf("WARN: generation for %s abandoned by caller", issue.Key)
		return nil, domain.WrapError(domain.KindTimeout, "generation abandoned by caller", ctx.Err())
	}

	// Registration must outlive an expired request context.
	regCtx := context.WithoutCancel(ctx)

	if res.err == nil {
		session.Model = res.completion.Model
		session.TokenUsage = res.completion.TokenUsage
		if err := session.Complete(s.newID(), res.completion.Text, s.now()); err != nil {
			res.err = domain.WrapError(domain.KindProviderResponseError, "provider returned no content", err)
		}
	}

	if res.err != nil {
		if err := session.Fail(res.err, s.now()); err != nil {
			return nil, domain.WrapError(domain.KindInternal, "failed to record failure", err)
		}
		snapshot := session.Snapshot()
		if err := s.sessions.Put(regCtx, snapshot); err != nil {
			log.Printf("WARN: failed to record failed session for %s: %v", issue.Key, err)
		}
		log.Printf("ERROR: generation for %s via %s failed: %v", issue.Key, cfg.Provider(), res.err)
		return &snapshot, res.err
	}

	snapshot := session.Snapshot()
	if err := s.sessions.Put(regCtx, snapshot); err != nil {
		return nil, err
	}
	log.Printf("INFO: generated test plan %s for %s via %s in %.2fs", snapshot.ID, issue.Key, cfg.Provider(), snapshot.DurationSeconds)
	return &snapshot, nil
}

// providerConfig assembles the config for provider from stored settings,
// the keyring and overrides, and checks it against the config policy. An
// empty provider selects the stored default.
func (s *Service) providerConfig(ctx context.Context, provider string, overrides domain.ProviderOverrides) (domain.ProviderConfig, error) {
	stored, err := s.store.GetLLMSettings(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "failed to read LLM settings", err)
	}
	settings := domain.LLMSettings{}
	if stored != nil {
		settings = *stored
	}

	if strings.TrimSpace(provider) == "" {
		provider = string(settings.Provider)
		if provider == "" {
			provider = string(domain.ProviderGrok)
		}
	}
	tag, err := domain.ParseProviderTag(provider)
	if err != nil {
		return nil, err
	}

	if tag == domain.ProviderGrok {
		key, err := s.secrets.Get(secrets.GrokAPIKey)
		if err != nil {
			return nil, domain.WrapError(domain.KindInternal, "failed to read Grok API key", err)
		}
		if key == "" && s.config.Mode == llm.ModeMock {
			key = "mock-key"
		}
		settings.GrokAPIKey = key
	}

	cfg, err := settings.ProviderConfig(tag)
	if err != nil {
		return nil, err
	}
	cfg = overrides.Apply(cfg)

	if s.policyEngine != nil {
		if err := s.policyEngine.CheckProvider(ctx, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// templateText loads the configured template. Any problem falls back to the
// default outline.
func (s *Service) templateText(ctx context.Context) (text, name string) {
	settings, err := s.store.GetTemplateSettings(ctx)
	if err != nil {
		log.Printf("WARN: failed to read template settings: %v", err)
		return "", defaultTemplateName
	}
	if settings == nil || settings.FilePath == "" {
		return "", defaultTemplateName
	}
	text, err = plantemplate.LoadOptional(settings.FilePath)
	if err != nil {
		log.Printf("WARN: failed to load template %s: %v", settings.FilePath, err)
		return "", defaultTemplateName
	}
	if text == "" {
		return "", defaultTemplateName
	}
	return text, settings.FilePath
}

// Response converts a completed session into the generate API response.
func (s *Service) Response(session domain.GenerationSession) domain.GenerateResponse {
	resp := domain.GenerateResponse{
		ID:           session.ID,
		JiraIssueID:  session.Issue.Key,
		JiraSummary:  session.Issue.Summary,
		Content:      session.Content,
		Format:       "markdown",
		ProviderUsed: session.ProviderUsed,
		Metadata: domain.GenerationMetadata{
			GenerationTimeSeconds: session.DurationSeconds,
			TemplateUsed:          session.TemplateUsed,
			TokenUsage:            session.TokenUsage,
		},
		Exports: s.exporter.Links(session.ID),
	}
	if session.CompletedAt != nil {
		resp.Metadata.GeneratedAt = session.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
