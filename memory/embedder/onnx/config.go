// Package onnx extracts text features with a sentence-embedding model run
// through ONNX Runtime. The embedder itself needs libonnxruntime and is only
// built with -tags onnx.
package onnx

import (
	"fmt"

	"github.com/becomeliminal/nim-consciousness/core"
)

// Defaults for all-MiniLM-L6-v2.
const (
	DefaultModelDimensions = 384
	DefaultMaxLen          = 128
)

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string `yaml:"model_path"`

	// TokenizerPath is the path to the tokenizer.json file.
	TokenizerPath string `yaml:"tokenizer_path"`

	// SharedLibraryPath points at libonnxruntime. Empty uses the runtime's
	// platform default.
	SharedLibraryPath string `yaml:"shared_library_path"`

	// ModelDimensions is the model's hidden size (default: 384).
	ModelDimensions int `yaml:"model_dimensions"`

	// Dimensions is the size of the vectors handed to the network. Model
	// output is truncated or zero-padded to it.
	Dimensions int `yaml:"dimensions"`

	// MaxLen is the token window including [CLS] and [SEP] (default: 128).
	MaxLen int `yaml:"max_len"`
}

func (c Config) withDefaults() Config {
	if c.ModelDimensions == 0 {
		c.ModelDimensions = DefaultModelDimensions
	}
	if c.Dimensions == 0 {
		c.Dimensions = c.ModelDimensions
	}
	if c.MaxLen == 0 {
		c.MaxLen = DefaultMaxLen
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.ModelPath == "":
		return fmt.Errorf("%w: onnx model path is required", core.ErrInvalidConfig)
	case c.TokenizerPath == "":
		return fmt.Errorf("%w: onnx tokenizer path is required", core.ErrInvalidConfig)
	case c.MaxLen < 2:
		return fmt.Errorf("%w: onnx max_len must be at least 2, got %d", core.ErrInvalidConfig, c.MaxLen)
	case c.Dimensions < 0 || c.ModelDimensions < 0:
		return fmt.Errorf("%w: onnx dimensions must be positive", core.ErrInvalidConfig)
	}
	return nil
}

// itemText pulls the text payload the model can read.
func itemText(item core.Item) (string, error) {
	s, ok := item[core.KeyText].(string)
	if !ok {
		return "", fmt.Errorf("onnx embedder needs a text field: %w", core.ErrUnsupportedModality)
	}
	return s, nil
}
