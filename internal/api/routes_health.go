package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/studyhall/internal/app"
	"github.com/charlesng35/studyhall/internal/handlers"
	"github.com/charlesng35/studyhall/internal/monitoring"
	"github.com/charlesng35/studyhall/internal/monitoring/checks"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, deps Dependencies) {
	checker := monitoring.NewChecker(0, checks.Database(deps.DB))
	for _, probe := range deps.Probes {
		checker.Register(probe)
	}

	health := handlers.Health(checker, deps.Gateway.Hub())
	r.GET("/health", health)
	r.GET("/health/live", handlers.Live)
	r.GET("/api/health", health)

	if cfg.Server.Metrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}
