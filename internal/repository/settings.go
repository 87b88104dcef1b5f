package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tpcreator/tpagent/internal/domain"
)

// Saving settings replaces the previous row, so each table holds at most
// one row.

// SaveJiraSettings replaces the stored Jira settings.
func (s *SQLiteStore) SaveJiraSettings(ctx context.Context, settings domain.JiraSettings) (*domain.JiraSettings, error) {
	status := settings.ConnectionStatus
	if status == "" {
		status = domain.ConnectionUntested
	}
	id, err := s.replace(ctx, "jira_config",
		`INSERT INTO jira_config (domain, email, connection_status, last_tested_at) VALUES (?, ?, ?, ?)`,
		settings.Domain, settings.Email, status, nullTime(settings.LastTestedAt))
	if err != nil {
		return nil, err
	}
	settings.ID = id
	settings.ConnectionStatus = status
	settings.APIToken = ""
	return &settings, nil
}

// GetJiraSettings returns the stored Jira settings, or nil if none.
func (s *SQLiteStore) GetJiraSettings(ctx context.Context) (*domain.JiraSettings, error) {
	var settings domain.JiraSettings
	var testedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, domain, email, connection_status, last_tested_at FROM jira_config ORDER BY id DESC LIMIT 1`).
		Scan(&settings.ID, &settings.Domain, &settings.Email, &settings.ConnectionStatus, &testedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	settings.LastTestedAt = timePtr(testedAt)
	return &settings, nil
}

// UpdateJiraConnection records the outcome of a Jira connection test.
func (s *SQLiteStore) UpdateJiraConnection(ctx context.Context, status domain.ConnectionStatus, at time.Time) error {
	return s.updateTested(ctx, "jira_config", "connection_status", string(status), at)
}

// SaveLLMSettings replaces the stored provider settings.
func (s *SQLiteStore) SaveLLMSettings(ctx context.Context, settings domain.LLMSettings) (*domain.LLMSettings, error) {
	settings = settings.WithDefaults()
	id, err := s.replace(ctx, "llm_config",
		`INSERT INTO llm_config (provider, grok_model, grok_temperature, grok_max_tokens, grok_base_url,
			ollama_url, ollama_model, connection_status, last_tested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		settings.Provider, settings.GrokModel, *settings.GrokTemperature, *settings.GrokMaxTokens, settings.GrokBaseURL,
		settings.OllamaURL, settings.OllamaModel, settings.ConnectionStatus, nullTime(settings.LastTestedAt))
	if err != nil {
		return nil, err
	}
	settings.ID = id
	settings.GrokAPIKey = ""
	return &settings, nil
}

// GetLLMSettings returns the stored provider settings, or nil if none.
func (s *SQLiteStore) GetLLMSettings(ctx context.Context) (*domain.LLMSettings, error) {
	var settings domain.LLMSettings
	var model, baseURL, ollamaURL, ollamaModel sql.NullString
	var temperature sql.NullFloat64
	var maxTokens sql.NullInt64
	var testedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, provider, grok_model, grok_temperature, grok_max_tokens, grok_base_url,
			ollama_url, ollama_model, connection_status, last_tested_at
		FROM llm_config ORDER BY id DESC LIMIT 1`).
		Scan(&settings.ID, &settings.Provider, &model, &temperature, &maxTokens, &baseURL,
			&ollamaURL, &ollamaModel, &settings.ConnectionStatus, &testedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	settings.GrokModel = model.String
	if temperature.Valid {
		settings.GrokTemperature = &temperature.Float64
	}
	if maxTokens.Valid {
		n := int(maxTokens.Int64)
		settings.GrokMaxTokens = &n
	}
	settings.GrokBaseURL = baseURL.String
	settings.OllamaURL = ollamaURL.String
	settings.OllamaModel = ollamaModel.String
	settings.LastTestedAt = timePtr(testedAt)
	return &settings, nil
}

// UpdateLLMConnection records the outcome of a provider connection test.
func (s *SQLiteStore) UpdateLLMConnection(ctx context.Context, status domain.ConnectionStatus, at time.Time) error {
	return s.updateTested(ctx, "llm_config", "connection_status", string(status), at)
}

// SaveTemplateSettings replaces the stored template settings.
func (s *SQLiteStore) SaveTemplateSettings(ctx context.Context, settings domain.TemplateSettings) (*domain.TemplateSettings, error) {
	if settings.ValidationStatus == "" {
		settings.ValidationStatus = string(domain.ConnectionUntested)
	}
	id, err := s.replace(ctx, "template_config",
		`INSERT INTO template_config (file_path, file_format, validation_status, last_tested_at) VALUES (?, ?, ?, ?)`,
		settings.FilePath, nullString(settings.FileFormat), settings.ValidationStatus, nullTime(settings.LastTestedAt))
	if err != nil {
		return nil, err
	}
	settings.ID = id
	return &settings, nil
}

// GetTemplateSettings returns the stored template settings, or nil if none.
func (s *SQLiteStore) GetTemplateSettings(ctx context.Context) (*domain.TemplateSettings, error) {
	var settings domain.TemplateSettings
	var format sql.NullString
	var testedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, file_path, file_format, validation_status, last_tested_at FROM template_config ORDER BY id DESC LIMIT 1`).
		Scan(&settings.ID, &settings.FilePath, &format, &settings.ValidationStatus, &testedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	settings.FileFormat = format.String
	settings.LastTestedAt = timePtr(testedAt)
	return &settings, nil
}

// replace deletes every row of table and inserts a new one in a single
// transaction, returning the new row id.
func (s *SQLiteStore) replace(ctx context.Context, table, insert string, args ...interface{}) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, insert, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

func (s *SQLiteStore) updateTested(ctx context.Context, table, column, value string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s = ?, last_tested_at = ?", table, column),
		value, at.UTC())
	return err
}
