//go:build onnx

package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/becomeliminal/nim-consciousness/core"
)

var (
	inputNames  = []string{"input_ids", "attention_mask", "token_type_ids"}
	outputNames = []string{"last_hidden_state"}
)

// ONNXEmbedder generates feature vectors using ONNX Runtime.
type ONNXEmbedder struct {
	session   *ort.DynamicAdvancedSession
	tokenizer *Tokenizer
	cfg       Config
	logger    *zap.Logger

	// Run is not safe for concurrent use on one session.
	mu sync.Mutex
}

// Option configures an ONNXEmbedder.
type Option func(*ONNXEmbedder)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *ONNXEmbedder) {
		e.logger = logger.Named("onnx")
	}
}

// New creates a new ONNX embedder.
func New(cfg Config, opts ...Option) (*ONNXEmbedder, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	e := &ONNXEmbedder{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}

	if !ort.IsInitialized() {
		if cfg.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	tokenizer, err := LoadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	e.tokenizer = tokenizer

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	e.session = session

	e.logger.Info("model loaded",
		zap.String("model", cfg.ModelPath),
		zap.Int("model_dimensions", cfg.ModelDimensions),
		zap.Int("dimensions", cfg.Dimensions))
	return e, nil
}

// Embed runs the model over the item's text and returns a unit vector of
// Dimensions values. Items without text are rejected.
func (e *ONNXEmbedder) Embed(ctx context.Context, item core.Item) ([]float64, error) {
	text, err := itemText(item)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, mask := e.tokenizer.Encode(text, e.cfg.MaxLen)
	typeIDs := make([]int64, e.cfg.MaxLen)
	shape := ort.NewShape(1, int64(e.cfg.MaxLen))

	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, typeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	// nil outputs are allocated by Run.
	outputs := []ort.Value{nil}
	e.mu.Lock()
	err = e.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("ONNX inference failed: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}
	pooled, err := pool(tensor.GetData(), []int64(tensor.GetShape()), mask)
	if err != nil {
		return nil, err
	}
	if len(pooled) != e.cfg.ModelDimensions {
		return nil, core.DimensionError("onnx.Embed", e.cfg.ModelDimensions, len(pooled))
	}
	e.logger.Debug("embedded text", zap.Int("chars", len(text)))
	return fit(pooled, e.cfg.Dimensions), nil
}

// Dimensions returns the output vector size.
func (e *ONNXEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// Close releases ONNX resources.
func (e *ONNXEmbedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}
