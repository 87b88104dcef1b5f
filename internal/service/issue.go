package service

import (
	"context"

	"github.com/tpcreator/tpagent/internal/adapter/jira"
	"github.com/tpcreator/tpagent/internal/domain"
	"github.com/tpcreator/tpagent/internal/secrets"
)

// FetchIssue retrieves and normalizes one issue. A failed fetch creates no
// session and leaves history untouched.
func (s *Service) FetchIssue(ctx context.Context, key string) (domain.IssueRecord, error) {
	key, err := domain.NormalizeIssueKey(key)
	if err != nil {
		return domain.IssueRecord{}, err
	}
	src, err := s.jiraSource(ctx, nil)
	if err != nil {
		return domain.IssueRecord{}, err
	}
	return src.FetchIssue(ctx, key)
}

// jiraSource returns the issue source for the stored settings, or for
// override when it is given.
func (s *Service) jiraSource(ctx context.Context, override *domain.JiraSettings) (jira.Source, error) {
	if s.issueSource != nil {
		return s.issueSource, nil
	}

	settings := override
	if settings == nil {
		stored, err := s.store.GetJiraSettings(ctx)
		if err != nil {
			return nil, domain.WrapError(domain.KindInternal, "failed to read Jira settings", err)
		}
		if stored == nil {
			return nil, domain.NewError(domain.KindConfigInvalid, "Jira is not configured")
		}
		token, err := s.secrets.Get(secrets.JiraAPIToken)
		if err != nil {
			return nil, domain.WrapError(domain.KindInternal, "failed to read Jira token", err)
		}
		stored.APIToken = token
		settings = stored
	}
	if settings.Domain == "" || settings.Email == "" || settings.APIToken == "" {
		return nil, domain.NewError(domain.KindConfigInvalid, "Jira domain, email and API token are required")
	}
	return jira.NewClient(*settings, s.config.AcceptanceCriteriaField, s.config.JiraTimeout), nil
}
