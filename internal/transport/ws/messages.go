package ws

import (
	"time"

	"github.com/tpcreator/tpagent/internal/domain"
)

// Message types sent to history stream clients.
const (
	TypeHistorySnapshot = "history_snapshot"
	TypeHistoryEntry    = "history_entry"
)

// Message is one frame of the history feed. A snapshot carries Entries, an
// entry message carries Entry.
type Message struct {
	Type    string                `json:"type"`
	Ts      int64                 `json:"ts"`
	Entry   *domain.HistoryEntry  `json:"entry,omitempty"`
	Entries []domain.HistoryEntry `json:"entries,omitempty"`
	Total   int                   `json:"total,omitempty"`
}

func snapshotMessage(resp domain.HistoryResponse, now time.Time) Message {
	return Message{
		Type:    TypeHistorySnapshot,
		Ts:      now.UnixMilli(),
		Entries: resp.Entries,
		Total:   resp.Total,
	}
}

func entryMessage(entry domain.HistoryEntry, now time.Time) Message {
	return Message{
		Type:  TypeHistoryEntry,
		Ts:    now.UnixMilli(),
		Entry: &entry,
	}
}
