// Package registry keeps terminal generation sessions in memory, in the
// order they finished.
package registry

import (
	"context"
	"fmt"
	"iter"
	"log"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/tpcreator/tpagent/internal/domain"
)

// Store is the durable backing of the registry.
type Store interface {
	SaveSession(ctx context.Context, session domain.GenerationSession) error
	LoadSessions(ctx context.Context) ([]domain.GenerationSession, error)
}

// ListOptions controls Entries.
type ListOptions struct {
	NewestFirst   bool
	IncludeFailed bool
}

// Registry is an append-only log of terminal sessions. Completed sessions
// are indexed by id and never evicted. Failed sessions stay in the log for
// audit, capped at the newest failedLimit entries when failedLimit > 0.
type Registry struct {
	mu          sync.RWMutex
	log         []domain.GenerationSession
	byID        map[string]int
	failed      int
	failedLimit int
	store       Store

	subMu       sync.RWMutex
	subscribers map[string]func(domain.HistoryEntry)
}

// New creates a registry. store may be nil for a memory-only registry.
func New(store Store, failedLimit int) *Registry {
	return &Registry{
		byID:        make(map[string]int),
		failedLimit: failedLimit,
		store:       store,
		subscribers: make(map[string]func(domain.HistoryEntry)),
	}
}

// Load replays stored sessions into an empty registry.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	sessions, err := r.store.LoadSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range sessions {
		if err := r.insertLocked(s); err != nil {
			log.Printf("WARN: skipping stored session %q: %v", s.ID, err)
		}
	}
	return nil
}

// Put registers a terminal session. The session is written to the store
// before it becomes visible.
func (r *Registry) Put(ctx context.Context, session domain.GenerationSession) error {
	if err := session.CheckTerminal(); err != nil {
		return domain.WrapError(domain.KindInternal, "cannot register session", err)
	}

	r.mu.Lock()
	if session.ID != "" {
		if _, exists := r.byID[session.ID]; exists {
			r.mu.Unlock()
			return domain.Errorf(domain.KindInternal, "session %s already registered", session.ID)
		}
	}
	if r.store != nil {
		if err := r.store.SaveSession(ctx, session); err != nil {
			r.mu.Unlock()
			return domain.WrapError(domain.KindInternal, "failed to persist session", err)
		}
	}
	err := r.insertLocked(session)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.notify(session.Summary())
	return nil
}

func (r *Registry) insertLocked(session domain.GenerationSession) error {
	if session.ID != "" {
		if _, exists := r.byID[session.ID]; exists {
			return fmt.Errorf("duplicate session id %s", session.ID)
		}
	}
	r.log = append(r.log, session)
	if session.ID != "" {
		r.byID[session.ID] = len(r.log) - 1
	}
	if session.Status == domain.SessionStatusFailed {
		r.failed++
		if r.failedLimit > 0 && r.failed > r.failedLimit {
			r.compactLocked()
		}
	}
	return nil
}

// compactLocked drops the oldest failed sessions beyond the limit. It builds
// a new slice so iterators holding the old one stay valid.
func (r *Registry) compactLocked() {
	drop := r.failed - r.failedLimit
	next := make([]domain.GenerationSession, 0, len(r.log)-drop)
	byID := make(map[string]int, len(r.byID))
	for _, s := range r.log {
		if drop > 0 && s.Status == domain.SessionStatusFailed {
			drop--
			continue
		}
		next = append(next, s)
		if s.ID != "" {
			byID[s.ID] = len(next) - 1
		}
	}
	r.log = next
	r.byID = byID
	r.failed = r.failedLimit
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (domain.GenerationSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byID[id]
	if !ok {
		return domain.GenerationSession{}, domain.Errorf(domain.KindSessionNotFound, "session %s not found", id)
	}
	return r.log[idx], nil
}

// List yields completed sessions as history entries in insertion order. The
// sequence is lazy and can be ranged over more than once; each pass sees
// the registry as it was when the pass started.
func (r *Registry) List() iter.Seq[domain.HistoryEntry] {
	return r.Entries(ListOptions{})
}

// Entries is List with ordering and failed-session options.
func (r *Registry) Entries(opts ListOptions) iter.Seq[domain.HistoryEntry] {
	return func(yield func(domain.HistoryEntry) bool) {
		r.mu.RLock()
		snapshot := r.log
		r.mu.RUnlock()

		sessions := slices.Values(snapshot)
		if opts.NewestFirst {
			sessions = func(yield func(domain.GenerationSession) bool) {
				for i := len(snapshot) - 1; i >= 0; i-- {
					if !yield(snapshot[i]) {
						return
					}
				}
			}
		}
		for s := range sessions {
			if s.Status != domain.SessionStatusCompleted && !opts.IncludeFailed {
				continue
			}
			if !yield(s.Summary()) {
				return
			}
		}
	}
}

// Len returns the number of completed sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// FailedLen returns the number of failed sessions kept for audit.
func (r *Registry) FailedLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failed
}

// Subscribe registers fn to receive every entry put after the call. The
// returned function removes the subscription.
func (r *Registry) Subscribe(fn func(domain.HistoryEntry)) (cancel func()) {
	id := uuid.NewString()
	r.subMu.Lock()
	r.subscribers[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subscribers, id)
		r.subMu.Unlock()
	}
}

func (r *Registry) notify(entry domain.HistoryEntry) {
	r.subMu.RLock()
	fns := make([]func(domain.HistoryEntry), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		fns = append(fns, fn)
	}
	r.subMu.RUnlock()

	for _, fn := range fns {
		fn(entry)
	}
}
