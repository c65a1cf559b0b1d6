// Package config loads the settings for a whole engine from one YAML file.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/becomeliminal/nim-consciousness/ahin"
	"github.com/becomeliminal/nim-consciousness/core"
	"github.com/becomeliminal/nim-consciousness/memory/embedder/onnx"
)

// Embedder kinds.
const (
	EmbedderMock       = "mock"
	EmbedderMultimodal = "multimodal"
	EmbedderONNX       = "onnx"
)

// Memory backends.
const (
	BackendChromem = "chromem"
	BackendSQLite  = "sqlite"
)

// Config is the root configuration.
type Config struct {
	Model    ahin.Config `yaml:"model"`
	Graph    Graph       `yaml:"graph"`
	Embedder Embedder    `yaml:"embedder"`
	Memory   Memory      `yaml:"memory"`
	Log      Log         `yaml:"log"`
}

// Graph configures graph generation.
type Graph struct {
	// TopK is the number of similarity edges per item node.
	TopK int `yaml:"top_k" validate:"gt=0"`
}

// Embedder selects the feature extractor.
type Embedder struct {
	Kind string `yaml:"kind" validate:"oneof=mock multimodal onnx"`

	// CacheItems > 0 wraps the extractor in a cache of that many vectors.
	CacheItems int `yaml:"cache_items" validate:"gte=0"`

	// ONNX is used for text when Kind is "onnx"; other modalities go through
	// the multimodal extractor.
	ONNX onnx.Config `yaml:"onnx"`
}

// Memory configures where consciousness vectors are recorded.
type Memory struct {
	Enabled bool   `yaml:"enabled"`
	Backend string `yaml:"backend" validate:"oneof=chromem sqlite"`

	// Path is the chromem directory or the SQLite file. Empty keeps chromem
	// in memory; SQLite needs a path (":memory:" works).
	Path     string `yaml:"path" validate:"required_if=Backend sqlite"`
	Compress bool   `yaml:"compress"`

	// ArchivePath is a SQLite file for serialized graphs. The sqlite backend
	// archives into its own database when this is empty.
	ArchivePath string `yaml:"archive_path"`

	MinSimilarity float64 `yaml:"min_similarity" validate:"gte=-1,lte=1"`
	MaxResults    int     `yaml:"max_results" validate:"gte=0"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns a working in-memory configuration.
func Default() Config {
	return Config{
		Model: ahin.DefaultConfig(),
		Graph: Graph{TopK: 3},
		Embedder: Embedder{
			Kind:       EmbedderMultimodal,
			CacheItems: 1024,
		},
		Memory: Memory{
			Enabled:    true,
			Backend:    BackendChromem,
			MaxResults: 10,
		},
		Log: Log{Level: "info"},
	}
}

var validate = validator.New()

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}
	if c.Log.Level != "" {
		if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
			return fmt.Errorf("%w: log level: %v", core.ErrInvalidConfig, err)
		}
	}
	return nil
}

// Load reads a YAML file over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// NewLogger builds the zap logger described by l.
func (l Log) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if l.Level != "" {
		level, err := zapcore.ParseLevel(l.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: log level: %v", core.ErrInvalidConfig, err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}
