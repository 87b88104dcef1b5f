// Package render turns generated Markdown into exportable documents.
package render

import (
	"fmt"
	"sync"
	"time"

	"github.com/tpcreator/tpagent/internal/domain"
)

// Document is the input of every renderer. Renderers must be deterministic:
// the same Document always yields the same bytes.
type Document struct {
	Title    string
	Subtitle string
	Body     string
	// Created is stamped into formats that carry a creation date.
	Created time.Time
}

// RenderFunc renders a document into one format.
type RenderFunc func(doc Document) ([]byte, error)

// Registry stores renderers keyed by export format.
type Registry struct {
	mu        sync.RWMutex
	renderers map[domain.ExportFormat]RenderFunc
}

// DefaultRegistry holds the built-in renderers.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty renderer registry.
func NewRegistry() *Registry {
	return &Registry{
		renderers: make(map[domain.ExportFormat]RenderFunc),
	}
}

// Register adds a renderer for a format.
func (r *Registry) Register(format domain.ExportFormat, fn RenderFunc) error {
	if format == "" {
		return fmt.Errorf("format is required")
	}
	if fn == nil {
		return fmt.Errorf("renderer is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.renderers[format]; exists {
		return fmt.Errorf("renderer already registered for %s", format)
	}
	r.renderers[format] = fn
	return nil
}

// Render runs the renderer for format.
func (r *Registry) Render(format domain.ExportFormat, doc Document) ([]byte, error) {
	r.mu.RLock()
	fn := r.renderers[format]
	r.mu.RUnlock()
	if fn == nil {
		return nil, domain.Errorf(domain.KindConfigInvalid, "no renderer registered for %s", format)
	}
	out, err := fn(doc)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}
	return out, nil
}

// Formats lists the registered formats in the canonical order.
func (r *Registry) Formats() []domain.ExportFormat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.ExportFormat
	for _, f := range domain.ExportFormats {
		if _, ok := r.renderers[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// MustRegister adds a renderer to the default registry or panics.
func MustRegister(format domain.ExportFormat, fn RenderFunc) {
	if err := DefaultRegistry.Register(format, fn); err != nil {
		panic(err)
	}
}
