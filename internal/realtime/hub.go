package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	EventJoin         = "join"
	EventJoined       = "joined"
	EventNotification = "notification"
	EventError        = "error"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Frame is the envelope for every message in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Authenticator resolves a session token to the user it belongs to.
type Authenticator func(token string) (userID string, isAdmin bool, err error)

// Hub is the process wide registry of live connections grouped into one
// room per user.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
	logger   *slog.Logger
	auth     Authenticator
	upgrader websocket.Upgrader
}

type client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	rooms   map[string]struct{}
	userID  string
	isAdmin bool
	closed  bool
}

// NewHub builds a hub. When auth is nil any connection may join any room.
func NewHub(logger *slog.Logger, allowedOrigins []string, auth Authenticator) *Hub {
	h := &Hub{
		rooms:  make(map[string]map[*client]struct{}),
		logger: logger,
		auth:   auth,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// ServeWS upgrades the request and runs the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	c := &client{hub: h, send: make(chan []byte, sendBuffer), rooms: make(map[string]struct{})}

	if h.auth != nil {
		token := requestToken(r)
		if token == "" {
			http.Error(w, "missing session token", http.StatusUnauthorized)
			return
		}
		userID, isAdmin, err := h.auth(token)
		if err != nil {
			http.Error(w, "invalid session token", http.StatusUnauthorized)
			return
		}
		c.userID, c.isAdmin = userID, isAdmin
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	c.conn = conn
	h.logger.Info("socket connected", "remote", r.RemoteAddr, "user_id", c.userID)

	go c.writePump()
	c.readPump()
}

// Emit queues one frame for every connection in the user's room and returns
// how many connections accepted it. Slow connections drop the frame.
func (h *Hub) Emit(userID, event string, data any) int {
	msg, err := json.Marshal(outFrame{Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to encode frame", "event", event, "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.rooms[userID] {
		select {
		case c.send <- msg:
			delivered++
		default:
			h.logger.Warn("dropping frame for slow socket", "user_id", userID, "event", event)
		}
	}
	return delivered
}

// Connections returns the number of live connections joined to a user's room.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

var errForbiddenRoom = errors.New("cannot join another user's room")

func (h *Hub) join(c *client, userID string) error {
	if h.auth != nil && !c.isAdmin && userID != c.userID {
		return errForbiddenRoom
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	room, ok := h.rooms[userID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[userID] = room
	}
	room[c] = struct{}{}
	c.rooms[userID] = struct{}{}
	return nil
}

func (h *Hub) leaveAll(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for userID := range c.rooms {
		room := h.rooms[userID]
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, userID)
		}
	}
	close(c.send)
}

func (c *client) readPump() {
	defer func() {
		c.hub.leaveAll(c)
		_ = c.conn.Close()
		c.hub.logger.Info("socket disconnected", "remote", c.conn.RemoteAddr().String(), "user_id", c.userID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("socket read failed", "error", err)
			}
			return
		}
		c.handle(frame)
	}
}

func (c *client) handle(frame Frame) {
	switch frame.Event {
	case EventJoin:
		userID := parseJoin(frame.Data)
		if userID == "" {
			c.reply(EventError, map[string]string{"message": "join requires a user id"})
			return
		}
		if err := c.hub.join(c, userID); err != nil {
			c.reply(EventError, map[string]string{"message": err.Error()})
			return
		}
		c.hub.logger.Debug("socket joined room", "user_id", userID)
		c.reply(EventJoined, map[string]string{"user_id": userID})
	default:
		c.reply(EventError, map[string]string{"message": "unknown event " + frame.Event})
	}
}

func (c *client) reply(event string, data any) {
	msg, err := json.Marshal(outFrame{Event: event, Data: data})
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// parseJoin accepts either a bare user id string or {"user_id": "..."}.
func parseJoin(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return strings.TrimSpace(obj.UserID)
	}
	return ""
}

func requestToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if ck, err := r.Cookie("access_token"); err == nil {
		return ck.Value
	}
	return ""
}
