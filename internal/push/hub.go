// Package push delivers notification events to connected websocket sessions.
package push

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *session) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub tracks the live sessions of each recipient on this instance. A
// recipient may hold several sessions, e.g. two open browser tabs.
type Hub struct {
	mu       sync.RWMutex
	sessions map[model.Recipient]map[*session]struct{}
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewHub(log *logger.Logger, allowedOrigins []string) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		sessions: make(map[model.Recipient]map[*session]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log.With("push"),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// ServeSession upgrades the request and keeps the session registered for to
// until the client disconnects.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request, to model.Recipient) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	s := &session{conn: conn}
	h.register(to, s)
	defer func() {
		h.unregister(to, s)
		conn.Close()
	}()

	done := make(chan struct{})
	defer close(done)
	go h.keepAlive(s, done)

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients only send pings; anything else is ignored.
	for {
		var msg struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket session closed", "recipient", to.String(), "error", err.Error())
			}
			return nil
		}
		if msg.Type == "ping" {
			if err := s.writeJSON(map[string]string{"type": "pong"}); err != nil {
				return nil
			}
		}
	}
}

func (h *Hub) keepAlive(s *session, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := s.ping(); err != nil {
				return
			}
		}
	}
}

func (h *Hub) register(to model.Recipient, s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.sessions[to]
	if !ok {
		set = make(map[*session]struct{})
		h.sessions[to] = set
	}
	set[s] = struct{}{}
}

func (h *Hub) unregister(to model.Recipient, s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.sessions[to]
	delete(set, s)
	if len(set) == 0 {
		delete(h.sessions, to)
	}
}

func (h *Hub) SessionCount(to model.Recipient) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[to])
}

// Send writes event to every session of its recipient. A recipient without
// sessions is not an error; the notification stays in the store.
func (h *Hub) Send(ctx context.Context, event model.PushEvent) error {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions[event.Recipient]))
	for s := range h.sessions[event.Recipient] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	var errs []error
	for _, s := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeJSON(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close drops every session.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.sessions {
		for s := range set {
			s.conn.Close()
		}
	}
	h.sessions = make(map[model.Recipient]map[*session]struct{})
}
