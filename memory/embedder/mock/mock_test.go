package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/becomeliminal/nim-consciousness/core"
)

func TestMockEmbedder(t *testing.T) {
	ctx := context.Background()
	e := New(32)
	assert.Equal(t, 32, e.Dimensions())
	assert.Equal(t, DefaultDimensions, New(0).Dimensions())

	a, err := e.Embed(ctx, core.Item{"text": "morning run", "steps": 5000})
	require.NoError(t, err)
	require.Len(t, a, 32)
	assert.InDelta(t, 1, floats.Norm(a, 2), 1e-9)

	again, err := e.Embed(ctx, core.Item{"steps": 5000, "text": "morning run"})
	require.NoError(t, err)
	assert.Equal(t, a, again, "key order does not matter")

	other, err := e.Embed(ctx, core.Item{"text": "evening run"})
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestMockEmbedder_Unencodable(t *testing.T) {
	_, err := New(8).Embed(context.Background(), core.Item{"ch": make(chan int)})
	assert.Error(t, err)
}
