package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/viant/unchained/service/event"
)

// Message is the envelope for all websocket messages.
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload"`
}

type conn struct {
	ws        *websocket.Conn
	sessionID string
	cancel    context.CancelFunc
}

// Hub keeps websocket connections per session and pushes session events to
// them.
type Hub struct {
	mu     sync.RWMutex
	conns  map[*conn]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{conns: make(map[*conn]struct{}), logger: logger}
}

// Accept upgrades the request and subscribes the connection to sessionID.
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request, sessionID string) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{ws: ws, sessionID: sessionID, cancel: cancel}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket connected", zap.String("session", sessionID), zap.String("remote", r.RemoteAddr))

	// read loop detects disconnects
	go func() {
		defer func() {
			h.remove(c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// Publish forwards a session event to that session's connections.
func (h *Hub) Publish(ctx context.Context, e *event.Event[any]) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		h.logger.Warn("websocket marshal failed", zap.String("topic", e.Topic()), zap.Error(err))
		return
	}
	h.Broadcast(ctx, Message{Type: e.Topic(), SessionID: e.SessionID(), Payload: payload})
}

// Broadcast sends msg to every connection subscribed to msg.SessionID.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("websocket marshal failed", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		if c.sessionID != msg.SessionID {
			continue
		}
		if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			go h.remove(c)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[*conn]struct{})
	h.mu.Unlock()
	for c := range conns {
		c.cancel()
		_ = c.ws.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
	}
}
