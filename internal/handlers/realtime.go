package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/studyhall/internal/auth"
	"github.com/charlesng35/studyhall/internal/realtime"
	apperrors "github.com/charlesng35/studyhall/pkg/errors"
	"github.com/charlesng35/studyhall/pkg/logger"
	"github.com/charlesng35/studyhall/pkg/response"
)

// RealtimeHandler upgrades authenticated HTTP requests into gateway connections.
type RealtimeHandler struct {
	gateway  *realtime.Gateway
	identity *iauth.IdentityResolver
}

// NewRealtimeHandler constructs a realtime handler.
func NewRealtimeHandler(gateway *realtime.Gateway, identity *iauth.IdentityResolver) (*RealtimeHandler, error) {
	if gateway == nil {
		return nil, errors.New("realtime handler: gateway is required")
	}
	if identity == nil {
		return nil, errors.New("realtime handler: identity resolver is required")
	}
	return &RealtimeHandler{gateway: gateway, identity: identity}, nil
}

// Stream authenticates the caller before the upgrade, so rejected clients get a JSON 401
// and never join any room.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	identity, err := h.identity.Resolve(requestContext(c), iauth.CredentialFromRequest(c.Request))
	if err != nil {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			err = apperrors.ErrUnauthorized
		}
		response.Error(c, err)
		return
	}

	conn, err := h.gateway.Hub().Upgrade(c.Writer, c.Request, *identity)
	if err != nil {
		// The upgrader has already written the HTTP error.
		logger.WithModule("realtime").Debug("websocket upgrade failed", zap.String("user_id", identity.UserID), zap.Error(err))
		return
	}
	h.gateway.Serve(requestContext(c), conn)
}
