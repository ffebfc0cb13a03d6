package logger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_FileOutputJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, err := New(Config{Level: "info", Format: "json", Output: path, Service: "leasekeeper-service"}, SentryConfig{})
	require.NoError(t, err)

	log.Debug("hidden")
	log.With(zap.String("key", "orders")).Info("lease acquired", zap.Bool("stolen", true))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1, "debug entries are filtered at info level")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "lease acquired", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "leasekeeper-service", entry["service"])
	assert.Equal(t, "orders", entry["key"])
	assert.Equal(t, true, entry["stolen"])
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	log, err := New(Config{Level: "verbose", Format: "console", Output: "stderr"}, SentryConfig{})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestFieldsToMap(t *testing.T) {
	m := fieldsToMap([]zapcore.Field{
		zap.String("key", "orders"),
		zap.Int64("attempts", 3),
		zap.Bool("stolen", false),
		zap.Float64("ratio", 0.5),
		zap.Error(errors.New("boom")),
	})

	assert.Equal(t, "orders", m["key"])
	assert.Equal(t, int64(3), m["attempts"])
	assert.Equal(t, false, m["stolen"])
	assert.Equal(t, 0.5, m["ratio"])
	assert.Equal(t, "boom", m["error"])
}

func TestZapLevelToSentry(t *testing.T) {
	assert.Equal(t, sentry.LevelWarning, zapLevelToSentry(zapcore.WarnLevel))
	assert.Equal(t, sentry.LevelError, zapLevelToSentry(zapcore.ErrorLevel))
	assert.Equal(t, sentry.LevelFatal, zapLevelToSentry(zapcore.PanicLevel))
}
