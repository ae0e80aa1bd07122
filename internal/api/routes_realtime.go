package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/studyhall/internal/handlers"
)

func registerRealtimeRoutes(r *gin.Engine, deps Dependencies) error {
	handler, err := handlers.NewRealtimeHandler(deps.Gateway, deps.Identity)
	if err != nil {
		return err
	}
	r.GET("/ws", handler.Stream)
	return nil
}
