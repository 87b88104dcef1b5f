// Package service runs the test plan workflow: issue retrieval, generation
// sessions, export and settings.
package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/tpcreator/tpagent/internal/adapter/jira"
	"github.com/tpcreator/tpagent/internal/adapter/llm"
	"github.com/tpcreator/tpagent/internal/config"
	"github.com/tpcreator/tpagent/internal/export"
	"github.com/tpcreator/tpagent/internal/registry"
	"github.com/tpcreator/tpagent/internal/render"
	"github.com/tpcreator/tpagent/internal/repository"
	"github.com/tpcreator/tpagent/internal/secrets"
	"github.com/tpcreator/tpagent/policy"
)

type Service struct {
	store        repository.Store
	secrets      *secrets.Store
	generator    llm.Generator
	sessions     *registry.Registry
	exporter     *export.Dispatcher
	config       *config.Config
	policyEngine *policy.Engine

	// issueSource overrides the Jira client built from stored settings.
	issueSource jira.Source
	now         func() time.Time
	newID       func() string
}

func New(store repository.Store, secretStore *secrets.Store, generator llm.Generator, sessions *registry.Registry, cfg *config.Config, policyEngine *policy.Engine) *Service {
	s := &Service{
		store:        store,
		secrets:      secretStore,
		generator:    generator,
		sessions:     sessions,
		exporter:     export.NewDispatcher(sessions, render.DefaultRegistry, cfg.PublicBaseURL),
		config:       cfg,
		policyEngine: policyEngine,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	if cfg.Mode == llm.ModeMock {
		s.issueSource = jira.NewMockSource(jira.DemoIssue())
	}
	return s
}

// SetIssueSource replaces the Jira client with src for every fetch.
func (s *Service) SetIssueSource(src jira.Source) {
	s.issueSource = src
}

// Sessions returns the session registry.
func (s *Service) Sessions() *registry.Registry {
	return s.sessions
}
