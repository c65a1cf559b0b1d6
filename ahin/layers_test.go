package ahin

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestSoftmax(t *testing.T) {
	scores := []float64{1, 2, 3}
	softmax(scores)
	assert.InDelta(t, 1.0, floats.Sum(scores), 1e-12)
	assert.Less(t, scores[0], scores[1])
	assert.Less(t, scores[1], scores[2])

	// Large values must not overflow.
	big := []float64{1000, 1000}
	softmax(big)
	assert.InDelta(t, 0.5, big[0], 1e-12)

	masked := []float64{math.Inf(-1), 0, math.Inf(-1)}
	softmax(masked)
	assert.Equal(t, []float64{0, 1, 0}, masked)
}

func TestLayerNorm(t *testing.T) {
	m := mat.NewDense(2, 4, []float64{
		1, 2, 3, 4,
		10, 10, 10, 10,
	})
	newLayerNorm(4).applyTo(m)

	row := m.RawRowView(0)
	assert.InDelta(t, 0, floats.Sum(row)/4, 1e-9)
	variance := 0.0
	for _, v := range row {
		variance += v * v
	}
	assert.InDelta(t, 1, variance/4, 1e-3)

	// Constant rows collapse to zero instead of dividing by zero.
	for _, v := range m.RawRowView(1) {
		assert.InDelta(t, 0, v, 1e-9)
	}
}

func TestActivations(t *testing.T) {
	assert.Equal(t, 0.0, relu(-2))
	assert.Equal(t, 3.0, relu(3))

	assert.InDelta(t, 0, gelu(0), 1e-12)
	assert.InDelta(t, 0.8413447, gelu(1), 1e-6)
	assert.InDelta(t, -0.1586553, gelu(-1), 1e-6)

	assert.InDelta(t, gelu(0.5), activationFor("gelu")(0.5), 0)
	assert.Equal(t, 0.0, activationFor("tanh")(-1), "unknown names fall back to relu")
}

func TestLinear(t *testing.T) {
	l := &linear{
		w: mat.NewDense(2, 3, []float64{
			1, 0, 0,
			0, 1, 1,
		}),
		b: []float64{0.5, -1},
	}
	in, out := l.dims()
	assert.Equal(t, 3, in)
	assert.Equal(t, 2, out)
	assert.Equal(t, []float64{1.5, 4}, l.apply([]float64{1, 2, 3}))

	lr := newLinear(rand.New(rand.NewSource(1)), 4, 2)
	bound := 1 / math.Sqrt(4)
	for _, v := range lr.w.RawMatrix().Data {
		assert.LessOrEqual(t, math.Abs(v), bound)
	}
}

func TestDropout(t *testing.T) {
	d := &dropout{p: 0.5, rng: rand.New(rand.NewSource(1))}
	m := mat.NewDense(4, 4, nil)
	m.Apply(func(_, _ int, _ float64) float64 { return 1 }, m)

	d.applyTo(m, false)
	assert.Equal(t, 16.0, mat.Sum(m), "identity at inference")

	d.applyTo(m, true)
	for _, v := range m.RawMatrix().Data {
		assert.Contains(t, []float64{0, 2}, v)
	}
}

func TestL2Normalize(t *testing.T) {
	v := []float64{3, 4}
	got := L2Normalize(v)
	assert.InDeltaSlice(t, []float64{0.6, 0.8}, got, 1e-12)
	assert.Equal(t, []float64{3, 4}, v, "input untouched")

	assert.Equal(t, []float64{0, 0, 0}, L2Normalize(make([]float64, 3)))
}
