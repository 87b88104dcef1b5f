// Package export resolves (session id, format) pairs into rendered
// artifacts.
package export

import (
	"fmt"
	"strings"

	"github.com/tpcreator/tpagent/internal/domain"
	"github.com/tpcreator/tpagent/internal/render"
)

// SessionLookup finds sessions by id. It returns a SessionNotFound error for
// unknown ids.
type SessionLookup interface {
	Get(id string) (domain.GenerationSession, error)
}

// Renderer renders a document into a format.
type Renderer interface {
	Render(format domain.ExportFormat, doc render.Document) ([]byte, error)
}

// Artifact is the rendered output of a completed session.
type Artifact struct {
	SessionID   string
	Format      domain.ExportFormat
	Data        []byte
	ContentType string
	Filename    string
}

// Dispatcher renders stored session content on demand. It never caches
// rendered bytes and never mutates sessions.
type Dispatcher struct {
	sessions  SessionLookup
	renderers Renderer
	baseURL   string
}

// NewDispatcher creates a dispatcher. baseURL prefixes the export links it
// builds; it may be empty for relative links.
func NewDispatcher(sessions SessionLookup, renderers Renderer, baseURL string) *Dispatcher {
	return &Dispatcher{
		sessions:  sessions,
		renderers: renderers,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}
}

// Resolve renders the session identified by id in format.
func (d *Dispatcher) Resolve(id string, format domain.ExportFormat) (Artifact, error) {
	if strings.TrimSpace(id) == "" {
		return Artifact{}, domain.NewError(domain.KindSessionNotFound, "session id is required")
	}
	session, err := d.sessions.Get(id)
	if err != nil {
		return Artifact{}, err
	}
	if session.Status != domain.SessionStatusCompleted {
		return Artifact{}, domain.Errorf(domain.KindSessionNotReady, "session %s is %s", id, session.Status)
	}

	data, err := d.renderers.Render(format, DocumentFor(session))
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		SessionID:   session.ID,
		Format:      format,
		Data:        data,
		ContentType: format.ContentType(),
		Filename:    Filename(session.Issue.Key, format),
	}, nil
}

// Links returns the fetchable export references of a session.
func (d *Dispatcher) Links(id string) domain.ExportLinks {
	return domain.ExportLinks{
		PDFURL:      d.URL(id, domain.FormatPDF),
		WordURL:     d.URL(id, domain.FormatDOCX),
		MarkdownURL: d.URL(id, domain.FormatMarkdown),
	}
}

// URL returns the export reference for one format.
func (d *Dispatcher) URL(id string, format domain.ExportFormat) string {
	return fmt.Sprintf("%s/api/export/%s/%s", d.baseURL, id, format)
}

// DocumentFor builds the render input of a completed session. Everything in
// it comes from the immutable session, so repeated renders match.
func DocumentFor(s domain.GenerationSession) render.Document {
	doc := render.Document{
		Title: "Test Plan: " + s.Issue.Key,
		Body:  s.Content,
	}
	parts := []string{}
	if s.Issue.Summary != "" {
		parts = append(parts, s.Issue.Summary)
	}
	parts = append(parts, "Provider: "+string(s.ProviderUsed))
	if s.CompletedAt != nil {
		doc.Created = s.CompletedAt.UTC()
		parts = append(parts, "Generated: "+doc.Created.Format("2006-01-02 15:04 MST"))
	}
	doc.Subtitle = strings.Join(parts, " | ")
	return doc
}

// Filename returns the download name of an artifact.
func Filename(issueKey string, format domain.ExportFormat) string {
	key := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, issueKey)
	if key == "" {
		key = "untitled"
	}
	return fmt.Sprintf("test_plan_%s.%s", key, format)
}
