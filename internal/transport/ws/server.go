package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/tpcreator/tpagent/internal/config"
	"github.com/tpcreator/tpagent/internal/domain"
	"github.com/tpcreator/tpagent/internal/registry"
)

// HistorySource is the part of the service the feed reads from.
type HistorySource interface {
	History(opts registry.ListOptions) domain.HistoryResponse
	SubscribeHistory(fn func(domain.HistoryEntry)) (cancel func())
}

// Server handles history stream connections.
type Server struct {
	hub         *Hub
	source      HistorySource
	upgrader    websocket.Upgrader
	unsubscribe func()

	pingInterval   time.Duration
	writeTimeout   time.Duration
	readTimeout    time.Duration
	maxMessageSize int64
}

// NewServer creates a server and subscribes it to source: every session
// put into the registry is broadcast to connected clients.
func NewServer(cfg *config.Config, h *Hub, source HistorySource) *Server {
	s := &Server{
		hub:            h,
		source:         source,
		pingInterval:   orDefault(cfg.WSPingInterval, 30*time.Second),
		writeTimeout:   orDefault(cfg.WSWriteTimeout, 10*time.Second),
		readTimeout:    orDefault(cfg.WSReadTimeout, 60*time.Second),
		maxMessageSize: cfg.WSMaxMessageSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.CORSOrigins),
		},
	}
	if s.maxMessageSize <= 0 {
		s.maxMessageSize = 4096
	}
	s.unsubscribe = source.SubscribeHistory(func(entry domain.HistoryEntry) {
		if err := h.BroadcastJSON(entryMessage(entry, time.Now())); err != nil {
			log.Printf("ERROR: failed to encode history entry: %v", err)
		}
	})
	return s
}

// Close stops forwarding history entries.
func (s *Server) Close() {
	s.unsubscribe()
}

// HandleHistoryStream upgrades the request and streams history: first a
// snapshot of all entries, then one message per new entry. Entries put
// while the client connects may appear in both.
// GET /api/history/stream
func (s *Server) HandleHistoryStream(c echo.Context) error {
	snapshot, err := json.Marshal(snapshotMessage(
		s.source.History(registry.ListOptions{IncludeFailed: true}), time.Now()))
	if err != nil {
		return err
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("WARN: failed to upgrade history stream: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws, snapshot)
	if !s.hub.Register(conn) {
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		return ws.Close()
	}
	ws.SetReadLimit(s.maxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump drains the connection until it closes. Clients only listen, so
// anything they send is ignored.
func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: history stream error: %v", err)
			}
			return
		}
	}
}

// writePump writes queued messages and keeps the connection alive.
func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WARN: failed to write history message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// originChecker allows requests without an Origin header (non-browser
// clients) and browsers from one of origins. "*" allows all.
func originChecker(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range origins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		return false
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
