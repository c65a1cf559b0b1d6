package engine

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/becomeliminal/nim-consciousness/ahin"
	"github.com/becomeliminal/nim-consciousness/config"
	"github.com/becomeliminal/nim-consciousness/graph"
	"github.com/becomeliminal/nim-consciousness/memory"
	"github.com/becomeliminal/nim-consciousness/memory/embedder/cached"
	"github.com/becomeliminal/nim-consciousness/memory/embedder/mock"
	"github.com/becomeliminal/nim-consciousness/memory/embedder/multimodal"
	"github.com/becomeliminal/nim-consciousness/memory/store/chromem"
	"github.com/becomeliminal/nim-consciousness/memory/store/sqlite"
)

// New builds a complete engine from cfg: logger, network, extractor chain,
// memory store and archive. Options are applied after the configured ones.
func New(cfg config.Config, opts ...Option) (eng *Engine, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, err
	}

	var closers []io.Closer
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i].Close()
			}
		}
	}()

	net, err := ahin.New(cfg.Model)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(cfg, logger, &closers)
	if err != nil {
		return nil, err
	}
	builder, err := graph.NewBuilder(net, embedder,
		graph.WithTopK(cfg.Graph.TopK),
		graph.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	store, archive, err := newStores(cfg.Memory, logger, &closers)
	if err != nil {
		return nil, err
	}
	manager := memory.NewSimpleManager(store, &memory.Config{
		Enabled:       cfg.Memory.Enabled,
		MinSimilarity: cfg.Memory.MinSimilarity,
		MaxResults:    cfg.Memory.MaxResults,
	}, memory.WithLogger(logger))

	base := []Option{WithLogger(logger), WithMemory(manager)}
	if archive != nil {
		base = append(base, WithArchive(archive))
	}
	for _, c := range closers {
		base = append(base, withCloser(c))
	}

	logger.Info("engine ready",
		zap.String("embedder", cfg.Embedder.Kind),
		zap.String("backend", cfg.Memory.Backend),
		zap.Int("input_dim", cfg.Model.InputDim),
		zap.Int("output_dim", cfg.Model.OutputDim),
		zap.Bool("archive", archive != nil))
	return NewEngine(builder, append(base, opts...)...), nil
}

func newEmbedder(cfg config.Config, logger *zap.Logger, closers *[]io.Closer) (memory.Embedder, error) {
	dims := cfg.Model.InputDim

	var (
		e   memory.Embedder
		err error
	)
	switch cfg.Embedder.Kind {
	case config.EmbedderMock:
		e = mock.New(dims)
	case config.EmbedderMultimodal:
		e, err = multimodal.New(dims)
	case config.EmbedderONNX:
		onnxCfg := cfg.Embedder.ONNX
		if onnxCfg.Dimensions == 0 {
			onnxCfg.Dimensions = dims
		}
		text, closer, terr := newONNXEmbedder(onnxCfg, logger)
		if terr != nil {
			return nil, terr
		}
		*closers = append(*closers, closer)
		e, err = multimodal.New(dims, multimodal.WithTextEmbedder(text))
	default:
		return nil, fmt.Errorf("unknown embedder kind %q", cfg.Embedder.Kind)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Embedder.CacheItems > 0 {
		c, err := cached.New(e, cfg.Embedder.CacheItems, cached.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, c)
		e = c
	}
	return e, nil
}

func newStores(cfg config.Memory, logger *zap.Logger, closers *[]io.Closer) (memory.Store, memory.Archive, error) {
	var (
		store   memory.Store
		archive memory.Archive
	)
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := sqlite.New(cfg.Path, sqlite.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		*closers = append(*closers, s)
		store, archive = s, s
	default:
		opts := []chromem.Option{chromem.WithLogger(logger)}
		if cfg.Path != "" {
			opts = append(opts, chromem.WithPath(cfg.Path, cfg.Compress))
		}
		s, err := chromem.New(opts...)
		if err != nil {
			return nil, nil, err
		}
		*closers = append(*closers, s)
		store = s
	}

	if cfg.ArchivePath != "" {
		a, err := sqlite.New(cfg.ArchivePath, sqlite.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		*closers = append(*closers, a)
		archive = a
	}
	return store, archive, nil
}
