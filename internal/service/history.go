package service

import (
	"context"
	"slices"

	"github.com/tpcreator/tpagent/internal/domain"
	"github.com/tpcreator/tpagent/internal/registry"
)

// LoadHistory restores stored sessions into the registry.
func (s *Service) LoadHistory(ctx context.Context) error {
	return s.sessions.Load(ctx)
}

// ListHistory returns completed sessions in insertion order.
func (s *Service) ListHistory() []domain.HistoryEntry {
	return s.History(registry.ListOptions{}).Entries
}

// History returns the history view selected by opts.
func (s *Service) History(opts registry.ListOptions) domain.HistoryResponse {
	entries := slices.Collect(s.sessions.Entries(opts))
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return domain.HistoryResponse{Entries: entries, Total: len(entries)}
}

// SubscribeHistory calls fn for every session registered after the call.
func (s *Service) SubscribeHistory(fn func(domain.HistoryEntry)) (cancel func()) {
	return s.sessions.Subscribe(fn)
}
