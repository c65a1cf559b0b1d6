// Package cached memoizes feature vectors of any memory.Embedder in a bounded
// ristretto cache keyed by the item fingerprint.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"github.com/becomeliminal/nim-consciousness/core"
	"github.com/becomeliminal/nim-consciousness/memory"
)

// DefaultMaxItems bounds the cache when New is given a non-positive size.
const DefaultMaxItems = 10000

// Embedder wraps another embedder with a cache.
type Embedder struct {
	inner  memory.Embedder
	cache  *ristretto.Cache
	logger *zap.Logger
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Embedder) {
		e.logger = logger.Named("cache")
	}
}

// New wraps inner with a cache holding at most maxItems vectors.
func New(inner memory.Embedder, maxItems int, opts ...Option) (*Embedder, error) {
	if inner == nil {
		return nil, fmt.Errorf("cached embedder: %w", core.ErrServiceNotConfigured)
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        int64(maxItems) * 10,
		MaxCost:            int64(maxItems),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	e := &Embedder{inner: inner, cache: cache, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Embed returns the cached vector for an equal item, or computes and caches it.
// Callers get their own copy.
func (e *Embedder) Embed(ctx context.Context, item core.Item) ([]float64, error) {
	key, err := item.Fingerprint()
	if err != nil {
		return nil, err
	}
	if v, ok := e.cache.Get(key); ok {
		return clone(v.([]float64)), nil
	}

	v, err := e.inner.Embed(ctx, item)
	if err != nil {
		return nil, err
	}
	if !e.cache.Set(key, clone(v), 1) {
		e.logger.Debug("cache set dropped", zap.Uint64("fingerprint", key))
	}
	return v, nil
}

// Dimensions returns the wrapped embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until pending cache writes are applied.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close stops the cache's background goroutines.
func (e *Embedder) Close() error {
	e.cache.Close()
	return nil
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
