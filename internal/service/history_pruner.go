package service

import (
	"context"
	"log"
	"time"
)

// RunHistoryPruner trims stored failed sessions beyond FailedHistoryLimit
// until ctx is done. A limit of zero or less keeps everything.
func (s *Service) RunHistoryPruner(ctx context.Context) {
	if s.config.FailedHistoryLimit <= 0 {
		return
	}
	interval := s.config.HistoryPruneInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pruneFailedHistory(ctx)
		}
	}
}

func (s *Service) pruneFailedHistory(ctx context.Context) {
	pruneCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	removed, err := s.store.PruneFailed(pruneCtx, s.config.FailedHistoryLimit)
	if err != nil {
		log.Printf("WARN: failed history prune failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("INFO: pruned %d failed sessions from history", removed)
	}
}
