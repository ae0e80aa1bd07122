package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/studyhall/internal/app"
	iauth "github.com/charlesng35/studyhall/internal/auth"
	"github.com/charlesng35/studyhall/internal/middleware"
	"github.com/charlesng35/studyhall/internal/monitoring"
	"github.com/charlesng35/studyhall/internal/realtime"
	"github.com/charlesng35/studyhall/internal/services"
)

// Dependencies are the services the HTTP surface is built on. Probes are readiness checks
// added next to the database ping.
type Dependencies struct {
	DB        *gorm.DB
	Identity  *iauth.IdentityResolver
	Messages  *services.MessageService
	Records   *services.StudyRecordService
	Gateway   *realtime.Gateway
	RateStore middleware.RateStore
	Probes    []monitoring.Check
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return errors.New("router: database handle must be provided")
	case d.Identity == nil:
		return errors.New("router: identity resolver must be provided")
	case d.Messages == nil:
		return errors.New("router: message service must be provided")
	case d.Records == nil:
		return errors.New("router: study record service must be provided")
	case d.Gateway == nil:
		return errors.New("router: realtime gateway must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(cfg *app.Config, deps Dependencies) (*gin.Engine, error) {
	if cfg == nil {
		return nil, errors.New("router: config must be provided")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))
	r.Use(middleware.RateLimit(deps.RateStore, cfg.RateLimit.Requests, cfg.RateLimit.Window))
	r.NoRoute(middleware.NotFoundHandler)

	registerHealthRoutes(r, cfg, deps)
	if err := registerRealtimeRoutes(r, deps); err != nil {
		return nil, err
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.Identity))

	if err := registerChatRoutes(api, deps); err != nil {
		return nil, err
	}
	if err := registerStudyRoutes(api, deps); err != nil {
		return nil, err
	}

	return r, nil
}
