package mock

import (
	"context"
	"math"

	"github.com/becomeliminal/nim-consciousness/core"
)

// DefaultDimensions matches the network's default input size.
const DefaultDimensions = 512

// MockEmbedder is a simple mock embedder for testing.
// It generates deterministic feature vectors from the item fingerprint.
type MockEmbedder struct {
	dimensions int
}

// New creates a mock embedder producing vectors of the given size.
// Non-positive sizes fall back to DefaultDimensions.
func New(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed creates a deterministic unit vector from the item's content.
// Equal items always get equal vectors.
func (m *MockEmbedder) Embed(ctx context.Context, item core.Item) ([]float64, error) {
	seed, err := item.Fingerprint()
	if err != nil {
		return nil, err
	}

	embedding := make([]float64, m.dimensions)
	for i := range embedding {
		// Simple LCG (Linear Congruential Generator)
		seed = seed*6364136223846793005 + 1442695040888963407
		// Convert to [-1, 1] range
		embedding[i] = float64(int64(seed)) / float64(math.MaxInt64)
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (m *MockEmbedder) Dimensions() int {
	return m.dimensions
}

// normalize converts embedding to unit vector.
func normalize(vec []float64) []float64 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
