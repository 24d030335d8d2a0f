package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the chat routes on an authenticated group
func RegisterRoutes(rg *gin.RouterGroup, handler *ChatHandler) {
	rooms := rg.Group("/rooms")
	{
		rooms.POST("", handler.CreateRoom)
		rooms.GET("", handler.ListRooms)
		rooms.DELETE("", handler.ClearAll)
		rooms.GET("/:roomId", handler.GetRoom)
		rooms.DELETE("/:roomId", handler.DeleteRoom)

		rooms.POST("/:roomId/messages", handler.SendMessage)
		rooms.GET("/:roomId/messages", handler.ListMessages)
		rooms.PATCH("/:roomId/messages/:messageId", handler.EditMessage)
		rooms.DELETE("/:roomId/messages/:messageId", handler.DeleteMessage)
		rooms.PUT("/:roomId/messages/:messageId/reaction", handler.React)
	}
}
