// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/shelfcheck/internal/config"
)

// lockedBuffer is a concurrency-safe WriteSyncer for capturing output.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Sync() error { return nil }

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewLogger(t *testing.T) {
	t.Run("console output is colorized and names the component", func(t *testing.T) {
		var out lockedBuffer
		logger, sink := NewLogger(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "shelfcheck",
			Colors:      config.ColorConfig{Info: "green"},
		}, &out)
		assert.Nil(t, sink)

		logger.Named("runner").Info("Scenario passed.")
		s := out.String()
		assert.Contains(t, s, "Scenario passed.")
		assert.Contains(t, s, "shelfcheck.runner.")
		assert.Contains(t, s, colorMap["green"]+"INFO"+colorReset)
	})

	t.Run("json output", func(t *testing.T) {
		var out lockedBuffer
		logger, _ := NewLogger(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "api"}, &out)
		logger.Warn("Contract mismatch.", zap.String("id", "CT-BE-006"))

		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(out.String()), &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "api", entry["logger"])
		assert.Equal(t, "CT-BE-006", entry["id"])
	})

	t.Run("level filters", func(t *testing.T) {
		var out lockedBuffer
		logger, _ := NewLogger(config.LoggerConfig{Level: "warn", Format: "json"}, &out)
		logger.Info("hidden")
		assert.Empty(t, out.String())
	})

	t.Run("bad level falls back to info", func(t *testing.T) {
		var out lockedBuffer
		logger, _ := NewLogger(config.LoggerConfig{Level: "loud", Format: "json"}, &out)
		assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("file sink", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "shelfcheck.log")
		logger, sink := NewLogger(config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1}, zapcore.AddSync(&lockedBuffer{}))
		require.NotNil(t, sink)
		logger.Error("Lands in the file.")
		require.NoError(t, sink.Close())

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"Lands in the file."`)
	})
}

func TestInitializeOnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var out lockedBuffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"}, &out)
	first := GetLogger()
	Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "second"}, &out)
	assert.Same(t, first, GetLogger())

	GetLogger().Info("hello")
	Sync()
	assert.Contains(t, out.String(), `"logger":"first"`)
	assert.NotContains(t, out.String(), "second")
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	assert.NotNil(t, GetLogger())
	Shutdown() // no-op before initialization
}
