package cached

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-consciousness/core"
	"github.com/becomeliminal/nim-consciousness/memory"
	"github.com/becomeliminal/nim-consciousness/memory/embedder/mock"
)

var _ memory.Embedder = (*Embedder)(nil)

type countingEmbedder struct {
	inner memory.Embedder
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, item core.Item) ([]float64, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Embed(ctx, item)
}

func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }

func TestEmbedder_Caches(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{inner: mock.New(8)}
	e, err := New(inner, 100)
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, 8, e.Dimensions())

	first, err := e.Embed(ctx, core.Item{"text": "a", "n": 1})
	require.NoError(t, err)
	e.Wait()

	second, err := e.Embed(ctx, core.Item{"n": 1, "text": "a"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())

	second[0] = 42
	third, err := e.Embed(ctx, core.Item{"text": "a", "n": 1})
	require.NoError(t, err)
	assert.Equal(t, first, third, "cached vector is not shared")

	_, err = e.Embed(ctx, core.Item{"text": "b"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestEmbedder_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	inner := &countingEmbedder{inner: mock.New(4), err: boom}
	e, err := New(inner, 0)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(ctx, core.Item{"text": "x"})
	assert.ErrorIs(t, err, boom)
	e.Wait()
	_, err = e.Embed(ctx, core.Item{"text": "x"})
	assert.ErrorIs(t, err, boom, "failures are not cached")
	assert.Equal(t, int32(2), inner.calls.Load())

	_, err = e.Embed(ctx, core.Item{"ch": make(chan int)})
	assert.Error(t, err)

	_, err = New(nil, 10)
	assert.ErrorIs(t, err, core.ErrServiceNotConfigured)
}
