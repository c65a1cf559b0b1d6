package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/becomeliminal/nim-consciousness/ahin"
	"github.com/becomeliminal/nim-consciousness/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ahin.DefaultConfig(), cfg.Model)
	assert.Equal(t, 3, cfg.Graph.TopK)
	assert.Equal(t, EmbedderMultimodal, cfg.Embedder.Kind)
	assert.Equal(t, BackendChromem, cfg.Memory.Backend)
	assert.True(t, cfg.Memory.Enabled)
}

func TestLoad_Overlay(t *testing.T) {
	path := writeConfig(t, `
model:
  input_dim: 64
  hidden_dim: 32
  num_heads: 4
graph:
  top_k: 5
embedder:
  kind: mock
  cache_items: 0
memory:
  backend: sqlite
  path: /tmp/consciousness.db
  min_similarity: 0.25
log:
  level: debug
  development: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Model.InputDim)
	assert.Equal(t, 32, cfg.Model.HiddenDim)
	assert.Equal(t, 4, cfg.Model.NumHeads)
	assert.Equal(t, 128, cfg.Model.OutputDim, "unset fields keep defaults")
	assert.Equal(t, 5, cfg.Graph.TopK)
	assert.Equal(t, EmbedderMock, cfg.Embedder.Kind)
	assert.Equal(t, 0, cfg.Embedder.CacheItems)
	assert.Equal(t, BackendSQLite, cfg.Memory.Backend)
	assert.Equal(t, 0.25, cfg.Memory.MinSimilarity)
	assert.True(t, cfg.Memory.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad embedder", "embedder:\n  kind: bert\n"},
		{"bad backend", "memory:\n  backend: redis\n"},
		{"sqlite without path", "memory:\n  backend: sqlite\n"},
		{"zero top k", "graph:\n  top_k: 0\n"},
		{"heads do not divide", "model:\n  hidden_dim: 30\n  num_heads: 4\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"similarity out of range", "memory:\n  min_similarity: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}

	_, err := Load(writeConfig(t, "model: [1, 2"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLog_NewLogger(t *testing.T) {
	logger, err := Log{Level: "warn"}.NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	logger, err = Log{Development: true}.NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = Log{Level: "loud"}.NewLogger()
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
