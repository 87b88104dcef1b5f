package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tpcreator/tpagent/internal/domain"
)

// SQLiteStore persists generation history and settings in SQLite. Secrets
// are never written here.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS generation_history (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE,
			jira_issue_id TEXT NOT NULL,
			jira_summary TEXT NOT NULL DEFAULT '',
			issue TEXT NOT NULL,
			generated_content TEXT,
			provider_used TEXT NOT NULL,
			status TEXT NOT NULL,
			error_kind TEXT,
			error_message TEXT,
			started_at DATETIME NOT NULL,
			completed_at DATETIME NOT NULL,
			generation_time_seconds REAL NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_status ON generation_history(status, seq)`,
		`CREATE TABLE IF NOT EXISTS jira_config (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			domain TEXT NOT NULL,
			email TEXT NOT NULL,
			connection_status TEXT NOT NULL DEFAULT 'untested',
			last_tested_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS llm_config (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			provider TEXT NOT NULL,
			grok_model TEXT,
			grok_temperature REAL,
			grok_max_tokens INTEGER,
			ollama_url TEXT,
			ollama_model TEXT,
			connection_status TEXT NOT NULL DEFAULT 'untested',
			last_tested_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS template_config (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_path TEXT NOT NULL,
			file_format TEXT,
			validation_status TEXT NOT NULL DEFAULT 'untested',
			last_tested_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Columns added after the first release.
	if err := s.ensureColumn("generation_history", "model", "ALTER TABLE generation_history ADD COLUMN model TEXT"); err != nil {
		return err
	}
	if err := s.ensureColumn("generation_history", "template_used", "ALTER TABLE generation_history ADD COLUMN template_used TEXT"); err != nil {
		return err
	}
	if err := s.ensureColumn("generation_history", "token_usage", "ALTER TABLE generation_history ADD COLUMN token_usage INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	if err := s.ensureColumn("llm_config", "grok_base_url", "ALTER TABLE llm_config ADD COLUMN grok_base_url TEXT"); err != nil {
		return err
	}

	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveSession appends a terminal session to the history.
func (s *SQLiteStore) SaveSession(ctx context.Context, session domain.GenerationSession) error {
	if err := session.CheckTerminal(); err != nil {
		return err
	}
	issue, err := json.Marshal(session.Issue)
	if err != nil {
		return fmt.Errorf("failed to marshal issue: %w", err)
	}
	var errKind, errMessage sql.NullString
	if session.Error != nil {
		errKind = nullString(string(session.Error.Kind))
		errMessage = nullString(session.Error.Message)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO generation_history
			(id, jira_issue_id, jira_summary, issue, generated_content, provider_used, model, status,
			 error_kind, error_message, started_at, completed_at, generation_time_seconds, template_used, token_usage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullString(session.ID), session.Issue.Key, session.Issue.Summary, string(issue),
		nullString(session.Content), session.ProviderUsed, nullString(session.Model), session.Status,
		errKind, errMessage, session.StartedAt.UTC(), session.CompletedAt.UTC(), session.DurationSeconds,
		nullString(session.TemplateUsed), session.TokenUsage)
	return err
}

// LoadSessions returns every stored session in insertion order.
func (s *SQLiteStore) LoadSessions(ctx context.Context) ([]domain.GenerationSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, issue, generated_content, provider_used, model, status, error_kind, error_message,
			started_at, completed_at, generation_time_seconds, template_used, token_usage
		FROM generation_history ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.GenerationSession
	for rows.Next() {
		var session domain.GenerationSession
		var id, content, model, errKind, errMessage, templateUsed sql.NullString
		var issue string
		var completedAt time.Time
		if err := rows.Scan(&id, &issue, &content, &session.ProviderUsed, &model, &session.Status,
			&errKind, &errMessage, &session.StartedAt, &completedAt, &session.DurationSeconds,
			&templateUsed, &session.TokenUsage); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(issue), &session.Issue); err != nil {
			return nil, fmt.Errorf("failed to unmarshal issue: %w", err)
		}
		session.ID = id.String
		session.Content = content.String
		session.Model = model.String
		session.TemplateUsed = templateUsed.String
		completedAt = completedAt.UTC()
		session.CompletedAt = &completedAt
		session.StartedAt = session.StartedAt.UTC()
		if errKind.Valid {
			session.Error = &domain.ErrorInfo{Kind: domain.ErrorKind(errKind.String), Message: errMessage.String}
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// CountSessions returns the number of stored sessions with status.
func (s *SQLiteStore) CountSessions(ctx context.Context, status domain.SessionStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM generation_history WHERE status = ?`, status).Scan(&n)
	return n, err
}

// PruneFailed deletes all but the newest keep failed sessions and returns
// how many rows were removed.
func (s *SQLiteStore) PruneFailed(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM generation_history
		WHERE status = ? AND seq NOT IN (
			SELECT seq FROM generation_history WHERE status = ? ORDER BY seq DESC LIMIT ?
		)`,
		domain.SessionStatusFailed, domain.SessionStatusFailed, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
