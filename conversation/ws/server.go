package ws

import (
	"context"
	"net/http"
	"time"

	"pratham-chat/backend/internal/notice"
	"pratham-chat/backend/internal/scope"
	"pratham-chat/backend/pkg/logger"
	"pratham-chat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler upgrades chat screen connections for one hub
type Handler struct {
	hub       *Hub
	noticeTTL time.Duration
	upgrader  websocket.Upgrader
}

// NewHandler creates the /ws/rooms/:roomId handler. checkOrigin may be nil
// to accept every origin.
func NewHandler(hub *Hub, noticeTTL time.Duration, checkOrigin func(r *http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Handler{
		hub:       hub,
		noticeTTL: noticeTTL,
		upgrader: websocket.Upgrader{
			CheckOrigin:      checkOrigin,
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

// ServeWs opens a chat screen on the room in the path
func (h *Handler) ServeWs(c *gin.Context) {
	roomID := c.Param("roomId")
	log := logger.FromGin(c)

	if _, err := h.hub.chat.Room(c.Request.Context(), roomID); err != nil {
		c.Error(err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.LogError(err, "Error upgrading connection")
		return
	}

	client := &Client{
		id:     uuid.New().String(),
		roomID: roomID,
		userID: middleware.UserID(c),
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		scope:  scope.New(context.Background()),
		log:    log,
	}
	client.board = notice.NewBoard(client.scope, h.noticeTTL, client.onNotice)

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		client.scope.Close(context.Background())
		conn.Close()
		return
	}
	log.Info("WebSocket connection established", "client_id", client.id)

	client.deliver(TypeAudioProgress, h.hub.audio.Progress())

	go client.writePump()
	go client.readPump()
}
