// Package repository persists generation history and settings.
package repository

import (
	"context"
	"time"

	"github.com/tpcreator/tpagent/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// History
	SaveSession(ctx context.Context, session domain.GenerationSession) error
	LoadSessions(ctx context.Context) ([]domain.GenerationSession, error)
	CountSessions(ctx context.Context, status domain.SessionStatus) (int, error)
	PruneFailed(ctx context.Context, keep int) (int64, error)

	// Settings
	SaveJiraSettings(ctx context.Context, settings domain.JiraSettings) (*domain.JiraSettings, error)
	GetJiraSettings(ctx context.Context) (*domain.JiraSettings, error)
	UpdateJiraConnection(ctx context.Context, status domain.ConnectionStatus, at time.Time) error
	SaveLLMSettings(ctx context.Context, settings domain.LLMSettings) (*domain.LLMSettings, error)
	GetLLMSettings(ctx context.Context) (*domain.LLMSettings, error)
	UpdateLLMConnection(ctx context.Context, status domain.ConnectionStatus, at time.Time) error
	SaveTemplateSettings(ctx context.Context, settings domain.TemplateSettings) (*domain.TemplateSettings, error)
	GetTemplateSettings(ctx context.Context) (*domain.TemplateSettings, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
