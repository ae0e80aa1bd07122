package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/studyhall/internal/handlers"
)

func registerStudyRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewStudyHandler(deps.Records)
	if err != nil {
		return err
	}

	study := api.Group("/study")
	{
		study.GET("/leaderboard", handler.Leaderboard)
		study.GET("/me", handler.Me)
	}
	return nil
}
