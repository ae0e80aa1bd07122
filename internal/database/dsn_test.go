package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "studyhall", Name: "studyhall"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=studyhall dbname=studyhall sslmode=disable", dsn)
}

func TestBuildPostgresDSNOverridesSSLMode(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "app",
		Password: "secret",
		Name:     "chat",
		Host:     "db.internal",
		Port:     6432,
		Options:  map[string]string{"sslmode": "require", "application_name": "studyhall"},
	})
	require.NoError(t, err)
	require.Equal(t, "host=db.internal port=6432 user=app dbname=chat password=secret application_name=studyhall sslmode=require", dsn)
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "studyhall", Name: "studyhall"})
	require.NoError(t, err)
	require.Equal(t, "studyhall@tcp(127.0.0.1:3306)/studyhall?charset=utf8mb4&loc=UTC&parseTime=True", dsn)
}

func TestBuildMySQLDSNWithPasswordAndOptions(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "user",
		Password: "secret",
		Name:     "db",
		Host:     "db.example.com",
		Port:     3307,
		Options:  map[string]string{"tls": "skip-verify"},
	})
	require.NoError(t, err)
	require.Equal(t, "user:secret@tcp(db.example.com:3307)/db?charset=utf8mb4&loc=UTC&parseTime=True&tls=skip-verify", dsn)
}

func TestBuildDSNRequiresUserAndName(t *testing.T) {
	_, err := buildMySQLDSN(Config{Host: "localhost"})
	require.Error(t, err)

	_, err = buildPostgresDSN(Config{User: "only-user"})
	require.Error(t, err)
}

func TestBuildDSNPrefersExplicitDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "postgres://x"})
	require.NoError(t, err)
	require.Equal(t, "postgres://x", dsn)
}

func TestBuildSQLiteDSNCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "studyhall.db")

	dsn, err := buildSQLiteDSN(Config{Path: path})
	require.NoError(t, err)
	require.Contains(t, dsn, "_journal_mode=WAL")

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestBuildSQLiteDSNMemory(t *testing.T) {
	dsn, err := buildSQLiteDSN(Config{})
	require.NoError(t, err)
	require.Contains(t, dsn, ":memory:")
	require.True(t, isMemorySQLite(Config{Path: ":memory:"}))
	require.False(t, isMemorySQLite(Config{Path: "data/app.db"}))
}
