package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"familytree-backend/internal/changefeed"
	"familytree-backend/internal/logger"
	"familytree-backend/internal/security"
	"familytree-backend/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	// browsers on the family site connect cross-origin during development
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

const (
	wsTypeNotification  = "notification"
	wsTypePendingCounts = "pending_counts"
	wsTypePing          = "ping"
	wsTypePong          = "pong"
)

// WebSocketHandler pushes a user's new notifications and, for moderators,
// live pending counts over one connection.
type WebSocketHandler struct {
	tokens        security.TokenManager
	notifications service.NotificationService
	directory     service.DirectoryService
	pending       service.PendingCounter
	feed          changefeed.Feed
	debounce      time.Duration
}

func NewWebSocketHandler(
	tokens security.TokenManager,
	notifications service.NotificationService,
	directory service.DirectoryService,
	pending service.PendingCounter,
	feed changefeed.Feed,
	debounce time.Duration,
) *WebSocketHandler {
	return &WebSocketHandler{
		tokens:        tokens,
		notifications: notifications,
		directory:     directory,
		pending:       pending,
		feed:          feed,
		debounce:      debounce,
	}
}

type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	userID    string
}

// HandleWebSocket authenticates from the token query parameter, then upgrades.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeMessage(w, http.StatusUnauthorized, "token is required")
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if claims.Type != security.TokenTypeAccess {
		writeError(w, r, security.ErrWrongTokenType)
		return
	}

	moderator, err := h.directory.CanModerate(r.Context(), claims.UserID)
	if err != nil {
		logger.Warn("Role lookup failed, pending counts disabled for connection", "userID", claims.UserID, "error", err)
		moderator = false
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		userID: claims.UserID,
	}
	logger.Info("WebSocket connected", "userID", client.userID, "moderator", moderator)

	sub := h.notifications.Subscribe(claims.UserID)
	go client.writePump()
	go func() {
		for n := range sub.C {
			client.enqueue(WSMessage{Type: wsTypeNotification, Data: n})
		}
		// the hub dropped us or is shutting down
		client.close()
	}()

	var agg *service.PendingAggregator
	if moderator {
		agg = service.NewPendingAggregator(h.pending, h.feed, h.debounce, func(update service.PendingCounts) {
			client.enqueue(WSMessage{Type: wsTypePendingCounts, Data: pendingCountsResponse{Counts: update.Counts, Incomplete: update.Incomplete}})
		})
		if err := agg.Start(r.Context()); err != nil {
			logger.Warn("Initial pending counts incomplete", "userID", client.userID, "error", err)
		}
	}

	client.readPump()

	sub.Close()
	if agg != nil {
		agg.Close()
	}
	logger.Info("WebSocket disconnected", "userID", client.userID)
}

// enqueue never blocks; a client that cannot keep up is disconnected.
func (c *wsClient) enqueue(msg WSMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Error marshaling websocket message", "type", msg.Type, "error", err)
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- b:
	case <-c.done:
	default:
		logger.Warn("WebSocket client too slow, closing", "userID", c.userID)
		c.close()
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *wsClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket error", "userID", c.userID, "error", err)
			}
			return
		}
		if msg.Type == wsTypePing {
			c.enqueue(WSMessage{Type: wsTypePong})
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
