//go:build !onnx

package engine

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/becomeliminal/nim-consciousness/core"
	"github.com/becomeliminal/nim-consciousness/memory"
	"github.com/becomeliminal/nim-consciousness/memory/embedder/onnx"
)

func newONNXEmbedder(onnx.Config, *zap.Logger) (memory.Embedder, io.Closer, error) {
	return nil, nil, fmt.Errorf("%w: onnx embedder needs a build with -tags onnx", core.ErrServiceNotConfigured)
}
