package api

import (
	"net/http"

	"pratham-chat/backend/audio/service"
	"pratham-chat/backend/pkg/errors"
	"pratham-chat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// PlayRequest starts playback at an offset; an empty body plays from the start
type PlayRequest struct {
	OffsetMs int64 `json:"offset_ms"`
}

// SeekRequest moves playback to a position within the clip
type SeekRequest struct {
	PositionMs int64 `json:"position_ms"`
}

type AudioHandler struct {
	service *service.AudioService
}

func NewAudioHandler(service *service.AudioService) *AudioHandler {
	return &AudioHandler{service: service}
}

func (h *AudioHandler) StartRecording(c *gin.Context) {
	if err := h.service.StartRecording(middleware.WithRequestContext(c), c.Param("roomId")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, h.service.Progress())
}

// StopRecording finishes the capture and answers with the sent audio message
func (h *AudioHandler) StopRecording(c *gin.Context) {
	msg, err := h.service.StopRecording(middleware.WithRequestContext(c), c.Param("roomId"), middleware.UserID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *AudioHandler) Play(c *gin.Context) {
	var req PlayRequest
	if !bindOptional(c, &req) {
		return
	}

	if err := h.service.Play(middleware.WithRequestContext(c), c.Param("roomId"), c.Param("messageId"), req.OffsetMs); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.service.Progress())
}

func (h *AudioHandler) Seek(c *gin.Context) {
	var req SeekRequest
	if !bindOptional(c, &req) {
		return
	}

	if err := h.service.Seek(middleware.WithRequestContext(c), c.Param("roomId"), c.Param("messageId"), req.PositionMs); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.service.Progress())
}

func (h *AudioHandler) Stop(c *gin.Context) {
	if err := h.service.Stop(middleware.WithRequestContext(c)); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.service.Progress())
}

func (h *AudioHandler) Progress(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Progress())
}

// Recordings lists the clips recorded in a room
func (h *AudioHandler) Recordings(c *gin.Context) {
	recs, err := h.service.Recordings(middleware.WithRequestContext(c), c.Param("roomId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func bindOptional(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		c.Error(errors.ValidationFailed("Invalid request body").WithDetails(err.Error()))
		return false
	}
	return true
}
