//go:build onnx

package engine

import (
	"io"

	"go.uber.org/zap"

	"github.com/becomeliminal/nim-consciousness/memory"
	"github.com/becomeliminal/nim-consciousness/memory/embedder/onnx"
)

func newONNXEmbedder(cfg onnx.Config, logger *zap.Logger) (memory.Embedder, io.Closer, error) {
	e, err := onnx.New(cfg, onnx.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return e, e, nil
}
