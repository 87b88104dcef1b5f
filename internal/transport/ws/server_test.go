package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpcreator/tpagent/internal/config"
	"github.com/tpcreator/tpagent/internal/domain"
	"github.com/tpcreator/tpagent/internal/registry"
)

type fakeSource struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
	subs    []func(domain.HistoryEntry)
}

func (f *fakeSource) History(opts registry.ListOptions) domain.HistoryResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]domain.HistoryEntry(nil), f.entries...)
	return domain.HistoryResponse{Entries: out, Total: len(out)}
}

func (f *fakeSource) SubscribeHistory(fn func(domain.HistoryEntry)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
	idx := len(f.subs) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.subs[idx] = nil
	}
}

func (f *fakeSource) publish(entry domain.HistoryEntry) {
	f.mu.Lock()
	f.entries = append(f.entries, entry)
	subs := make([]func(domain.HistoryEntry), len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()
	for _, fn := range subs {
		if fn != nil {
			fn(entry)
		}
	}
}

func startStream(t *testing.T, source *fakeSource) (*Hub, *Server, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	srv := NewServer(&config.Config{WSPingInterval: time.Second}, hub, source)
	e := echo.New()
	e.GET("/api/history/stream", srv.HandleHistoryStream)
	httpServer := httptest.NewServer(e)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		httpServer.Close()
	})
	return hub, srv, "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/history/stream"
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHistoryStreamSnapshotThenEntries(t *testing.T) {
	source := &fakeSource{entries: []domain.HistoryEntry{
		{ID: "s-1", IssueKey: "PROJ-1", Status: domain.SessionStatusCompleted},
	}}
	_, _, url := startStream(t, source)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	snapshot := readMessage(t, conn)
	assert.Equal(t, TypeHistorySnapshot, snapshot.Type)
	require.Len(t, snapshot.Entries, 1)
	assert.Equal(t, "s-1", snapshot.Entries[0].ID)
	assert.Equal(t, 1, snapshot.Total)

	source.publish(domain.HistoryEntry{ID: "s-2", IssueKey: "PROJ-2", Status: domain.SessionStatusCompleted})
	source.publish(domain.HistoryEntry{IssueKey: "PROJ-3", Status: domain.SessionStatusFailed,
		Error: &domain.ErrorInfo{Kind: domain.KindProviderUnreachable, Message: "connection refused"}})

	first := readMessage(t, conn)
	assert.Equal(t, TypeHistoryEntry, first.Type)
	require.NotNil(t, first.Entry)
	assert.Equal(t, "s-2", first.Entry.ID)

	second := readMessage(t, conn)
	require.NotNil(t, second.Entry)
	assert.Empty(t, second.Entry.ID)
	assert.Equal(t, domain.KindProviderUnreachable, second.Entry.Error.Kind)
}

func TestHistoryStreamUnregistersOnClose(t *testing.T) {
	hub, _, url := startStream(t, &fakeSource{})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	readMessage(t, conn)
	assert.Equal(t, 1, hub.ConnectionCount())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHistoryStreamClosedOnShutdown(t *testing.T) {
	source := &fakeSource{}
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	srv := NewServer(&config.Config{}, hub, source)
	defer srv.Close()
	e := echo.New()
	e.GET("/api/history/stream", srv.HandleHistoryStream)
	httpServer := httptest.NewServer(e)
	defer httpServer.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(httpServer.URL, "http")+"/api/history/stream", nil)
	require.NoError(t, err)
	defer conn.Close()
	readMessage(t, conn)

	cancel()
	<-stopped

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) ||
		strings.Contains(err.Error(), "close"), "unexpected error: %v", err)
}

func TestBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBufferSize+10; i++ {
			hub.Broadcast([]byte("x"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked without a running hub")
	}
	assert.False(t, hub.Broadcast([]byte("x")))
}

func TestRegisterAfterStop(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)

	assert.False(t, hub.Register(&Connection{ID: "late", Send: make(chan []byte, 1)}))
	hub.Unregister(&Connection{ID: "late"})
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})

	req := httptest.NewRequest("GET", "/api/history/stream", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
