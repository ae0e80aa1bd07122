package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/studyhall/internal/models"
	apperrors "github.com/charlesng35/studyhall/pkg/errors"
	"github.com/charlesng35/studyhall/pkg/logger"
	"github.com/charlesng35/studyhall/pkg/metrics"
)

// Identity is the authenticated user behind a realtime connection.
type Identity struct {
	UserID string
	Name   string
	Avatar string
}

// UserLookup loads users by id.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// IdentityResolver turns a bearer credential into an Identity.
type IdentityResolver struct {
	tokens *JWTService
	users  UserLookup
}

// NewIdentityResolver constructs a resolver.
func NewIdentityResolver(tokens *JWTService, users UserLookup) (*IdentityResolver, error) {
	if tokens == nil {
		return nil, errors.New("identity resolver: jwt service is required")
	}
	if users == nil {
		return nil, errors.New("identity resolver: user lookup is required")
	}
	return &IdentityResolver{tokens: tokens, users: users}, nil
}

// Resolve validates the credential and loads the user it names. Missing or invalid
// credentials yield ErrInvalidToken; a valid token for an unknown user yields ErrUnknownUser.
func (r *IdentityResolver) Resolve(ctx context.Context, credential string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		metrics.AuthAttempts.WithLabelValues("missing").Inc()
		return nil, apperrors.ErrUnauthorized
	}

	claims, err := r.tokens.ValidateAccessToken(credential)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("invalid").Inc()
		return nil, apperrors.ErrInvalidToken.WithInternal(err)
	}

	user, err := r.users.FindByID(ctx, claims.ResolvedUserID())
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("unknown_user").Inc()
		if !isNotFound(err) {
			logger.WithModule("auth").Warn("user lookup failed", zap.String("user_id", claims.ResolvedUserID()), zap.Error(err))
		}
		return nil, apperrors.ErrUnknownUser.WithInternal(err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &Identity{
		UserID: user.ID,
		Name:   user.FullName,
		Avatar: user.ProfilePic,
	}, nil
}

func isNotFound(err error) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr) && appErr.StatusCode == http.StatusNotFound
}
