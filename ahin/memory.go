package ahin

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// AttentiveMemory is a fixed bank of key/value slots read by attention.
//
// A query is generated from the mean of the input tokens, scored against
// every key with scaled dot products, and the softmax weights blend the
// values into a single memory token. Slots are parameters; reads never
// modify them.
type AttentiveMemory struct {
	keys   *mat.Dense // slots × hidden
	values *mat.Dense // slots × hidden
	query  *linear
	act    activation
	scale  float64
}

// MemoryRead is the result of one memory access.
type MemoryRead struct {
	Output  []float64 // weighted blend of the value slots
	Query   []float64
	Weights []float64 // one per slot, sums to 1
}

// NewAttentiveMemory draws keys and values from a standard normal and the
// query generator from the usual linear init.
func NewAttentiveMemory(rng *rand.Rand, slots, hiddenDim int, act activation) *AttentiveMemory {
	return &AttentiveMemory{
		keys:   normalMatrix(rng, slots, hiddenDim),
		values: normalMatrix(rng, slots, hiddenDim),
		query:  newLinear(rng, hiddenDim, hiddenDim),
		act:    act,
		scale:  1 / math.Sqrt(float64(hiddenDim)),
	}
}

// Slots returns the number of key/value pairs.
func (m *AttentiveMemory) Slots() int {
	r, _ := m.keys.Dims()
	return r
}

// Read pools tokens (n × hidden) by mean, derives the query and retrieves.
func (m *AttentiveMemory) Read(tokens *mat.Dense) MemoryRead {
	n, d := tokens.Dims()
	mean := make([]float64, d)
	for i := 0; i < n; i++ {
		floats.Add(mean, tokens.RawRowView(i))
	}
	floats.Scale(1/float64(n), mean)

	query := m.query.apply(mean)
	m.act.applyVec(query)
	return m.Retrieve(query)
}

// Retrieve attends over the slots with an already generated query.
func (m *AttentiveMemory) Retrieve(query []float64) MemoryRead {
	slots, d := m.keys.Dims()
	weights := make([]float64, slots)
	for i := 0; i < slots; i++ {
		weights[i] = floats.Dot(query, m.keys.RawRowView(i)) * m.scale
	}
	softmax(weights)

	out := make([]float64, d)
	for i, w := range weights {
		floats.AddScaled(out, w, m.values.RawRowView(i))
	}
	return MemoryRead{Output: out, Query: query, Weights: weights}
}
