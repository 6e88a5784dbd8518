package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/colony-agent/internal/auth"
	"github.com/freeeve/colony-agent/internal/bot"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	maxMsgSize  = 1024
	sendBufSize = 64
)

// Server-originated message types that are not agent events.
const (
	MsgConnected    = "connected"
	MsgSubscribed   = "subscribed"
	MsgUnsubscribed = "unsubscribed"
	MsgError        = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Viewers are authenticated by token, not origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// welcome is the first message on every viewer connection.
type welcome struct {
	Viewer     string   `json:"viewer"`
	Topics     []string `json:"topics"`
	Subscribed []string `json:"subscribed"`
}

// WSHandler upgrades viewer connections and manages their topic subscriptions.
// On subscribe the viewer is sent the latest report for the topic, so a fresh
// page does not wait a whole turn for its first frame.
type WSHandler struct {
	hub    *Hub
	jwtMgr *auth.JWTManager
	source ReportSource
}

// NewWSHandler creates a WSHandler. source may be nil, which disables the
// replay of the latest report on subscribe.
func NewWSHandler(hub *Hub, jwtMgr *auth.JWTManager, source ReportSource) *WSHandler {
	return &WSHandler{hub: hub, jwtMgr: jwtMgr, source: source}
}

// ServeWS handles GET /api/v1/ws?token=...&topics=turn,status.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token parameter")
		return
	}
	claims, err := h.jwtMgr.ValidateToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	initial, bad := parseTopics(r.URL.Query().Get("topics"))
	if len(bad) > 0 {
		writeError(w, http.StatusBadRequest, "unknown topics: "+strings.Join(bad, ","))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("viewer", claims.ViewerID).Msg("WebSocket upgrade failed")
		return
	}

	c := &WSConn{conn: conn, viewerID: claims.ViewerID, send: make(chan []byte, sendBufSize)}
	h.hub.Register(c)
	h.push(c, WSEvent{Type: MsgConnected, Data: welcome{
		Viewer:     claims.ViewerID,
		Topics:     []string{TopicTurn, TopicStatus},
		Subscribed: initial,
	}})
	for _, topic := range initial {
		h.hub.Subscribe(c, topic)
		h.replayLatest(c, topic)
	}

	go h.writePump(c)
	go h.readPump(c)

	log.Info().Str("viewer", claims.ViewerID).Strs("topics", initial).Int("total", h.hub.ConnectionCount()).Msg("Viewer connected")
}

// parseTopics splits a comma-separated topic list, dropping duplicates.
func parseTopics(raw string) (topics, unknown []string) {
	topics = []string{}
	seen := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		if ValidTopic(t) {
			topics = append(topics, t)
		} else {
			unknown = append(unknown, t)
		}
	}
	return topics, unknown
}

// push queues an event for one viewer, dropping it if the viewer is behind.
func (h *WSHandler) push(c *WSConn, ev WSEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("Failed to marshal WebSocket message")
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("viewer", c.viewerID).Str("type", ev.Type).Msg("Dropping WebSocket message, buffer full")
	}
}

// replayLatest sends the current report on topic. Turn viewers only get a
// report once a turn has been played.
func (h *WSHandler) replayLatest(c *WSConn, topic string) {
	if h.source == nil {
		return
	}
	latest := h.source.Latest()
	if latest == nil {
		return
	}
	switch topic {
	case TopicTurn:
		if latest.Analysis != nil {
			h.push(c, WSEvent{Type: bot.EventTurn, Topic: TopicTurn, Data: latest})
		}
	case TopicStatus:
		h.push(c, WSEvent{Type: bot.EventStatus, Topic: TopicStatus, Data: latest})
	}
}

func (h *WSHandler) handleMessage(c *WSConn, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if !ValidTopic(msg.Topic) {
			h.push(c, WSEvent{Type: MsgError, Topic: msg.Topic, Data: map[string]string{"error": "unknown topic"}})
			return
		}
		h.hub.Subscribe(c, msg.Topic)
		h.push(c, WSEvent{Type: MsgSubscribed, Topic: msg.Topic})
		h.replayLatest(c, msg.Topic)
	case "unsubscribe":
		h.hub.Unsubscribe(c, msg.Topic)
		h.push(c, WSEvent{Type: MsgUnsubscribed, Topic: msg.Topic})
	default:
		h.push(c, WSEvent{Type: MsgError, Data: map[string]string{"error": "unknown action " + msg.Action}})
	}
}

func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("viewer", c.viewerID).Msg("Viewer disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				h.push(c, WSEvent{Type: MsgError, Data: map[string]string{"error": "malformed message"}})
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("viewer", c.viewerID).Msg("WebSocket unexpected close")
			}
			return
		}
		h.handleMessage(c, msg)
	}
}

// writePump sends one frame per message so every frame is a complete JSON
// document.
func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
