package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/studyhall/internal/app"
	iauth "github.com/charlesng35/studyhall/internal/auth"
	"github.com/charlesng35/studyhall/internal/realtime"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-config", "/etc/studyhall", "-issue-token", "user-1"}, &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, "/etc/studyhall", opts.configPath)
	require.Equal(t, ".env", opts.envFile)
	require.Equal(t, "user-1", opts.issueToken)

	_, err = parseFlags([]string{"-unknown"}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	require.NoError(t, loadEnvFile(""))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("STUDYHALL_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("STUDYHALL_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("STUDYHALL_TEST_DOTENV"))

	require.NoError(t, loadEnvFile(path))
	require.Equal(t, "loaded", os.Getenv("STUDYHALL_TEST_DOTENV"))
}

func TestLoadApplicationConfigRejectsMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestIssueTokenPrintsValidToken(t *testing.T) {
	cfg := &app.Config{Auth: app.AuthConfig{JWT: app.JWTSettings{Secret: "issue-token-test-secret", TTL: time.Hour}}}

	var out bytes.Buffer
	require.NoError(t, issueToken(cfg, "user-42", &out))

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)
	claims, err := jwtSvc.ValidateAccessToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, "user-42", claims.ResolvedUserID())
}

func TestBootstrapRuntimeServesHealth(t *testing.T) {
	cfg := &app.Config{
		Server:      app.ServerConfig{Port: 8000, Metrics: true},
		Database:    app.DatabaseConfig{Driver: "sqlite", DSN: "file:bootstrap_test?mode=memory&cache=shared&_foreign_keys=1"},
		Auth:        app.AuthConfig{JWT: app.JWTSettings{Secret: "bootstrap-test-secret", TTL: time.Hour}},
		Study:       app.StudyConfig{SessionStore: app.SessionStoreCache, SessionTTL: time.Hour},
		Maintenance: app.MaintenanceConfig{MessageRetentionDays: 30, RetentionSchedule: "0 3 * * *", CachePurgeSchedule: "*/15 * * * *", StatsSchedule: "* * * * *"},
		RateLimit:   app.RateLimitConfig{Requests: 100, Window: time.Minute},
	}

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"up"`)

	require.NoError(t, stack.Loop.Do(context.Background(), stack.Engine.RefreshGauges))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stack.Shutdown(ctx, zap.NewNop())

	require.ErrorIs(t, stack.Loop.Do(context.Background(), func() {}), realtime.ErrLoopStopped)
}

func TestInitialiseDatabaseRejectsUnknownDriver(t *testing.T) {
	_, err := initialiseDatabase(&app.Config{Database: app.DatabaseConfig{Driver: "oracle"}})
	require.Error(t, err)
}
