package app

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/studyhall/pkg/logger"
)

func TestConfigureLogging(t *testing.T) {
	restore := logger.Replace(zap.NewNop())
	defer restore()

	require.NoError(t, ConfigureLogging(ServerConfig{LogLevel: "debug"}))
	require.NoError(t, ConfigureLogging(ServerConfig{LogFormat: "console"}))
}
