package api

import (
	"net/http"
	"strconv"

	"pratham-chat/backend/conversation/models"
	"pratham-chat/backend/conversation/service"
	"pratham-chat/backend/conversation/store"
	"pratham-chat/backend/pkg/errors"
	"pratham-chat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// CreateRoomRequest opens a room with a participant
type CreateRoomRequest struct {
	Participant models.Participant `json:"participant" binding:"required"`
	OpeningText string             `json:"opening_text"`
}

// SendMessageRequest sends a text message, optionally as a reply
type SendMessageRequest struct {
	Text    string `json:"text"`
	ReplyTo string `json:"reply_to,omitempty"`
}

type EditMessageRequest struct {
	Text string `json:"text"`
}

type ReactRequest struct {
	Reaction string `json:"reaction"`
}

// MessagePage is one window of a room's messages, newest first
type MessagePage struct {
	Messages  []models.Message `json:"messages"`
	Total     int              `json:"total"`
	Limit     int              `json:"limit"`
	NextLimit int              `json:"next_limit"`
}

type ChatHandler struct {
	service  *service.ChatService
	pageSize int
}

// NewChatHandler creates the chat handlers; pageSize is the default message
// window and defaults to store.PageSize
func NewChatHandler(service *service.ChatService, pageSize int) *ChatHandler {
	if pageSize <= 0 {
		pageSize = store.PageSize
	}
	return &ChatHandler{service: service, pageSize: pageSize}
}

func (h *ChatHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if !bind(c, &req) {
		return
	}

	ctx := middleware.WithRequestContext(c)
	room, err := h.service.CreateRoom(ctx, middleware.UserID(c), req.Participant, req.OpeningText)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *ChatHandler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Rooms(middleware.WithRequestContext(c)))
}

func (h *ChatHandler) GetRoom(c *gin.Context) {
	room, err := h.service.Room(middleware.WithRequestContext(c), c.Param("roomId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *ChatHandler) DeleteRoom(c *gin.Context) {
	if err := h.service.DeleteRoom(middleware.WithRequestContext(c), c.Param("roomId")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) ClearAll(c *gin.Context) {
	h.service.ClearAll(middleware.WithRequestContext(c))
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if !bind(c, &req) {
		return
	}

	ctx := middleware.WithRequestContext(c)
	msg, err := h.service.SendText(ctx, c.Param("roomId"), middleware.UserID(c), req.Text, req.ReplyTo)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ListMessages returns the newest ?limit= messages (one page by default)
func (h *ChatHandler) ListMessages(c *gin.Context) {
	limit := h.pageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.Error(errors.ValidationFailed("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	msgs, total, err := h.service.VisibleMessages(middleware.WithRequestContext(c), c.Param("roomId"), limit)
	if err != nil {
		c.Error(err)
		return
	}

	shown := len(msgs)
	c.Header("X-Total-Count", strconv.Itoa(total))
	c.JSON(http.StatusOK, MessagePage{
		Messages:  msgs,
		Total:     total,
		Limit:     limit,
		NextLimit: store.GrowLimit(shown, total, h.pageSize),
	})
}

func (h *ChatHandler) EditMessage(c *gin.Context) {
	var req EditMessageRequest
	if !bind(c, &req) {
		return
	}

	msg, err := h.service.Edit(middleware.WithRequestContext(c), c.Param("roomId"), c.Param("messageId"), req.Text)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *ChatHandler) React(c *gin.Context) {
	var req ReactRequest
	if !bind(c, &req) {
		return
	}

	msg, err := h.service.React(middleware.WithRequestContext(c), c.Param("roomId"), c.Param("messageId"), req.Reaction)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	if err := h.service.DeleteMessage(middleware.WithRequestContext(c), c.Param("roomId"), c.Param("messageId")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.Error(errors.ValidationFailed("Invalid request body").WithDetails(err.Error()))
		return false
	}
	return true
}
