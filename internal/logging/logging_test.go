package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostkeeper/internal/mask"
)

func TestSetupRedactsCredentialAttrs(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "run.log")
	logger, closeLogs, err := Setup(Options{File: logFile, Level: "debug", TUI: true})
	require.NoError(t, err)

	logger.Info("cookie parsed", "name", "remember_web_abc", "value", "supersecretcookievalue")
	logger.Info("authenticated", "url", "https://hub.weirdhost.xyz/server/ab345678")
	require.NoError(t, closeLogs())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	out := string(data)

	// Secret values never reach the file in the clear.
	assert.NotContains(t, out, "supersecretcookievalue")
	assert.Contains(t, out, mask.Sensitive("supersecretcookievalue"))
	assert.NotContains(t, out, "ab345678")
	assert.Contains(t, out, mask.URL("https://hub.weirdhost.xyz/server/ab345678"))
	// Cookie names stay readable for debugging.
	assert.Contains(t, out, "remember_web_abc")
}

func TestSetupCreatesLogDir(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "logs", "run.log")
	logger, closeLogs, err := Setup(Options{File: logFile, Level: "info", TUI: true})
	require.NoError(t, err)

	logger.Info("run started")
	require.NoError(t, closeLogs())

	_, err = os.Stat(logFile)
	assert.NoError(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}
