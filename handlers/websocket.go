package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	httpHandler "energy-server/handlers/http"
	"energy-server/usecases"
	"energy-server/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	maxMessageSize  = 4096
	defaultPongWait = 60 * time.Second
)

// WebSocket message envelopes
type incomingMessage struct {
	Type    string `json:"type"` // ping | mark_read
	AlertID string `json:"alert_id,omitempty"`
}

type outgoingMessage struct {
	Type    string `json:"type"`
	AlertID string `json:"alert_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WSHandler serves the live alert channel of authenticated users. Every open
// tab keeps its own connection; alerts go to all of them, replies only to the
// connection that asked.
type WSHandler struct {
	mgr        *ws.Manager
	alerts     *usecases.AlertUseCase
	upgrader   websocket.Upgrader
	log        zerolog.Logger
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewWSHandler(mgr *ws.Manager, alerts *usecases.AlertUseCase, allowedOrigin string, log zerolog.Logger) *WSHandler {
	return (&WSHandler{
		mgr:    mgr,
		alerts: alerts,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
		}},
		log: log,
	}).WithKeepalive(defaultPongWait)
}

// WithKeepalive sets how long a silent peer is kept. The server pings at nine
// tenths of that interval.
func (h *WSHandler) WithKeepalive(pongWait time.Duration) *WSHandler {
	h.pongWait = pongWait
	h.pingPeriod = pongWait * 9 / 10
	return h
}

// keepalive pings conn until done is closed or a ping fails.
func (h *WSHandler) keepalive(userID string, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := h.mgr.Send(userID, conn, websocket.PingMessage, nil); err != nil {
				h.log.Debug().Err(err).Str("user_id", userID).Msg("websocket ping failed")
				return
			}
		}
	}
}

// HandleUserWS upgrades to websocket and reads messages from the client
// GET /ws
func (h *WSHandler) HandleUserWS(c *gin.Context) {
	userID := httpHandler.CurrentUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.mgr.Register(userID, conn)
	h.log.Info().Str("user_id", userID).Msg("alert channel connected")

	done := make(chan struct{})
	defer func() {
		close(done)
		h.mgr.Unregister(userID, conn)
		h.log.Info().Str("user_id", userID).Msg("alert channel disconnected")
	}()
	go h.keepalive(userID, conn, done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("user_id", userID).Msg("websocket read ended")
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))

		var in incomingMessage
		if err := json.Unmarshal(message, &in); err != nil {
			h.reply(userID, conn, outgoingMessage{Type: "error", Error: "invalid json"})
			continue
		}

		switch in.Type {
		case "ping":
			h.reply(userID, conn, outgoingMessage{Type: "pong"})
		case "mark_read":
			if _, err := h.alerts.MarkAsRead(c.Request.Context(), userID, in.AlertID); err != nil {
				h.reply(userID, conn, outgoingMessage{Type: "error", AlertID: in.AlertID, Error: err.Error()})
				continue
			}
			h.reply(userID, conn, outgoingMessage{Type: "alert_read", AlertID: in.AlertID})
		default:
			h.reply(userID, conn, outgoingMessage{Type: "error", Error: "unknown message type"})
		}
	}
}

func (h *WSHandler) reply(userID string, conn *websocket.Conn, msg outgoingMessage) {
	b, _ := json.Marshal(msg)
	if err := h.mgr.Send(userID, conn, websocket.TextMessage, b); err != nil {
		h.log.Debug().Err(err).Str("user_id", userID).Msg("websocket reply dropped")
	}
}

// GetConnectedUsers GET /api/ws/connections
func (h *WSHandler) GetConnectedUsers(c *gin.Context) {
	ids := h.mgr.List()
	c.JSON(http.StatusOK, gin.H{"users": len(ids)})
}
