package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/studyhall/internal/api"
	"github.com/charlesng35/studyhall/internal/app"
	iauth "github.com/charlesng35/studyhall/internal/auth"
	sharedtestutil "github.com/charlesng35/studyhall/internal/database/testutil"
	"github.com/charlesng35/studyhall/internal/middleware"
	"github.com/charlesng35/studyhall/internal/models"
	"github.com/charlesng35/studyhall/internal/monitoring"
	"github.com/charlesng35/studyhall/internal/monitoring/checks"
	"github.com/charlesng35/studyhall/internal/realtime"
	"github.com/charlesng35/studyhall/internal/services"
	"github.com/charlesng35/studyhall/internal/study"
	"github.com/charlesng35/studyhall/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Hub      *realtime.Hub
	Messages *services.MessageService
	Records  *services.StudyRecordService
}

// NewEnv provisions a fresh handler test environment with the given users seeded.
func NewEnv(t *testing.T, users ...models.User) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithUsers(users...))

	cfg := &app.Config{
		Server:    app.ServerConfig{Metrics: true},
		Auth:      app.AuthConfig{JWT: app.JWTSettings{Secret: "test-suite-super-secret-key-32-bytes!!", Issuer: "test-suite", TTL: time.Hour}},
		RateLimit: app.RateLimitConfig{Requests: 1000, Window: time.Minute},
	}
	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	userSvc, err := services.NewUserService(db)
	require.NoError(t, err)
	resolver, err := iauth.NewIdentityResolver(jwtSvc, userSvc)
	require.NoError(t, err)
	messages, err := services.NewMessageService(db)
	require.NoError(t, err)
	records, err := services.NewStudyRecordService(db)
	require.NoError(t, err)

	hub := realtime.NewHub(cfg.HubConfig())
	engine, err := study.NewEngine(study.NewRegistry(), study.NewMemoryStore(), records, messages, hub, cfg.Study.EngineConfig())
	require.NoError(t, err)

	loop := realtime.NewLoop(0)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	gateway, err := realtime.NewGateway(hub, loop, engine, messages, realtime.GatewayConfig{})
	require.NoError(t, err)

	rateStore := middleware.NewMemoryRateStore(time.Minute)
	router, err := api.NewRouter(cfg, api.Dependencies{
		DB:        db,
		Identity:  resolver,
		Messages:  messages,
		Records:   records,
		Gateway:   gateway,
		RateStore: rateStore,
		Probes:    []monitoring.Check{checks.EventLoop(loop)},
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		hub.Close()
		rateStore.Close()
		cancel()
	})

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		JWT:      jwtSvc,
		Hub:      hub,
		Messages: messages,
		Records:  records,
	}
}

// Token issues an access token for the user id.
func (e *Env) Token(userID string) string {
	e.T.Helper()
	token, err := e.JWT.GenerateAccessToken(userID)
	require.NoError(e.T, err)
	return token
}

// Server starts an HTTP server for the router, for websocket tests. It returns the ws:// base URL.
func (e *Env) Server() string {
	e.T.Helper()
	srv := httptest.NewServer(e.Router)
	e.T.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes a GET-style request against the test router with an optional bearer token.
func (e *Env) Request(method, path, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	req, err := http.NewRequest(method, path, nil)
	require.NoError(e.T, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
