package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the audio routes on an authenticated group
func RegisterRoutes(rg *gin.RouterGroup, handler *AudioHandler) {
	rooms := rg.Group("/rooms/:roomId/audio")
	{
		rooms.GET("", handler.Recordings)
		rooms.POST("/record", handler.StartRecording)
		rooms.POST("/record/stop", handler.StopRecording)
		rooms.POST("/:messageId/play", handler.Play)
		rooms.POST("/:messageId/seek", handler.Seek)
	}

	audio := rg.Group("/audio")
	{
		audio.POST("/stop", handler.Stop)
		audio.GET("/progress", handler.Progress)
	}
}
