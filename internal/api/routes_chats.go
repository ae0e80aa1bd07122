package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/studyhall/internal/handlers"
)

func registerChatRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewMessageHandler(deps.Messages)
	if err != nil {
		return err
	}

	chats := api.Group("/chats")
	{
		chats.GET("/:chatId/messages", handler.List)
	}
	return nil
}
