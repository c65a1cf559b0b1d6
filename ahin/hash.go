package ahin

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/becomeliminal/nim-consciousness/core"
)

const (
	hashBits   = 32 // projected sign bits per input
	digitBits  = 8  // bits folded into one base-256 digit
	digitRange = 1 << digitBits
)

// HashProjector maps a feature vector to a bucket in [0, size).
//
// The input is projected onto a fixed random basis of hashBits directions,
// binarized by sign, folded into base-256 digits, and the digits are combined
// as combined = (combined*256 + digit) mod size. The basis is drawn once at
// construction, so equal inputs land in the same bucket for the projector's
// whole lifetime.
type HashProjector struct {
	basis *mat.Dense // inputDim × hashBits
	size  int
}

// NewHashProjector draws a standard normal basis from rng.
func NewHashProjector(rng *rand.Rand, inputDim, size int) *HashProjector {
	return &HashProjector{
		basis: normalMatrix(rng, inputDim, hashBits),
		size:  size,
	}
}

// Size returns the number of buckets.
func (h *HashProjector) Size() int {
	return h.size
}

// InputDim returns the expected feature length.
func (h *HashProjector) InputDim() int {
	r, _ := h.basis.Dims()
	return r
}

// Bucket hashes a single feature vector.
func (h *HashProjector) Bucket(x []float64) (int, error) {
	if len(x) != h.InputDim() {
		return 0, core.DimensionError("ahin.HashProjector.Bucket", h.InputDim(), len(x))
	}
	return h.Buckets(mat.NewDense(1, len(x), x))[0], nil
}

// fold turns projected values into a bucket index.
func (h *HashProjector) fold(proj []float64) int {
	combined := -1
	for start := 0; start < hashBits; start += digitBits {
		digit := 0
		for j := 0; j < digitBits; j++ {
			if proj[start+j] > 0 {
				digit |= 1 << j
			}
		}
		if combined < 0 {
			combined = digit
			continue
		}
		combined = (combined*digitRange + digit) % h.size
	}
	return combined
}

// Buckets hashes every row of x. Bucket goes through the same product so
// a vector hashes identically alone or in a batch.
func (h *HashProjector) Buckets(x *mat.Dense) []int {
	var proj mat.Dense
	proj.Mul(x, h.basis)
	n, _ := proj.Dims()
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = h.fold(proj.RawRowView(i))
	}
	return out
}

// HashEmbeddingTable holds one learned vector per hash bucket.
type HashEmbeddingTable struct {
	weights *mat.Dense // size × hiddenDim
}

// NewHashEmbeddingTable draws standard normal rows from rng.
func NewHashEmbeddingTable(rng *rand.Rand, size, hiddenDim int) *HashEmbeddingTable {
	return &HashEmbeddingTable{weights: normalMatrix(rng, size, hiddenDim)}
}

// Size returns the number of rows.
func (t *HashEmbeddingTable) Size() int {
	r, _ := t.weights.Dims()
	return r
}

// Lookup returns a copy of the row for bucket idx.
func (t *HashEmbeddingTable) Lookup(idx int) ([]float64, error) {
	if idx < 0 || idx >= t.Size() {
		return nil, &core.Error{Op: "ahin.HashEmbeddingTable.Lookup", Err: core.ErrIndexOutOfRange}
	}
	return mat.Row(nil, idx, t.weights), nil
}
