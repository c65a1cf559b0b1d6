package ahin

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/becomeliminal/nim-consciousness/core"
)

// Activation names.
const (
	ActivationReLU = "relu"
	ActivationGELU = "gelu"
)

// Aggregation modes for turning several items into one consciousness vector.
const (
	// AggregateMean encodes every item on its own and averages the projected outputs.
	AggregateMean = "mean"
	// AggregateSequence encodes all items as one sequence with cross-item attention.
	AggregateSequence = "sequence"
)

// Config holds the network's construction-time settings.
// A Network never changes its Config after New.
type Config struct {
	// InputDim is the feature vector length produced by the extractor.
	InputDim int `yaml:"input_dim" validate:"gt=0"`

	// HiddenDim is the token width inside the network.
	// Must be divisible by NumHeads.
	HiddenDim int `yaml:"hidden_dim" validate:"gt=0"`

	// OutputDim is the consciousness vector length.
	OutputDim int `yaml:"output_dim" validate:"gt=0"`

	// HashSize is the number of hash buckets (and hash embedding rows).
	HashSize int `yaml:"hash_size" validate:"gt=0"`

	// NumLayers is the depth of the sequence encoder.
	NumLayers int `yaml:"num_layers" validate:"gte=0"`

	// NumHeads is the number of attention heads per encoder layer.
	NumHeads int `yaml:"num_heads" validate:"gt=0"`

	// MemorySlots is the number of key/value pairs in the attentive memory.
	MemorySlots int `yaml:"memory_slots" validate:"gt=0"`

	// FeedForwardDim is the encoder's feed-forward width. 0 means 4*HiddenDim.
	FeedForwardDim int `yaml:"feed_forward_dim" validate:"gte=0"`

	// Dropout is the training-time drop probability.
	Dropout float64 `yaml:"dropout" validate:"gte=0,lt=1"`

	// Activation is "relu" or "gelu". Anything else resolves to "relu".
	Activation string `yaml:"activation"`

	// Aggregation is "mean" or "sequence". Empty means "mean".
	Aggregation string `yaml:"aggregation" validate:"omitempty,oneof=mean sequence"`

	// Seed drives parameter initialization, including the fixed hash basis.
	Seed int64 `yaml:"seed"`
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		InputDim:    512,
		HiddenDim:   256,
		OutputDim:   128,
		HashSize:    1024,
		NumLayers:   3,
		NumHeads:    8,
		MemorySlots: 64,
		Dropout:     0.1,
		Activation:  ActivationReLU,
		Aggregation: AggregateMean,
		Seed:        42,
	}
}

var validate = validator.New()

// Validate checks field ranges and cross-field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}
	if c.HiddenDim%c.NumHeads != 0 {
		return fmt.Errorf("%w: hidden_dim %d is not divisible by num_heads %d",
			core.ErrInvalidConfig, c.HiddenDim, c.NumHeads)
	}
	return nil
}

// withDefaults resolves the optional fields.
func (c Config) withDefaults() Config {
	if c.FeedForwardDim == 0 {
		c.FeedForwardDim = 4 * c.HiddenDim
	}
	if c.Activation != ActivationGELU {
		c.Activation = ActivationReLU
	}
	if c.Aggregation == "" {
		c.Aggregation = AggregateMean
	}
	return c
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
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
