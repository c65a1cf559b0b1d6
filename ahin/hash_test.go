package ahin

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/becomeliminal/nim-consciousness/core"
)

// identityProjector makes the projection equal to the input so bits can be
// set by hand.
func identityProjector(size int) *HashProjector {
	basis := mat.NewDense(hashBits, hashBits, nil)
	for i := 0; i < hashBits; i++ {
		basis.Set(i, i, 1)
	}
	return &HashProjector{basis: basis, size: size}
}

// withDigits builds an input whose sign bits spell the given base-256 digits,
// least significant bit first within each digit.
func withDigits(digits ...int) []float64 {
	x := make([]float64, hashBits)
	for i := range x {
		x[i] = -1
	}
	for d, digit := range digits {
		for j := 0; j < digitBits; j++ {
			if digit&(1<<j) != 0 {
				x[d*digitBits+j] = 1
			}
		}
	}
	return x
}

func TestHashProjector_Bucket(t *testing.T) {
	tests := []struct {
		name   string
		digits []int
		size   int
		want   int
	}{
		{"known digits", []int{3, 5, 7, 9}, 1000, 129},
		{"all zero bits", []int{0, 0, 0, 0}, 1000, 0},
		{"first digit is most significant", []int{200, 0, 0, 0}, 1 << 32, 200 << 24},
		{"single bucket", []int{255, 255, 255, 255}, 1, 0},
		{"all ones", []int{255, 255, 255, 255}, 1024, 1023},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := identityProjector(tt.size)
			got, err := h.Bucket(withDigits(tt.digits...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHashProjector_ZeroIsNotPositive(t *testing.T) {
	h := identityProjector(1000)
	got, err := h.Bucket(make([]float64, hashBits))
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestHashProjector_Deterministic(t *testing.T) {
	h := NewHashProjector(rand.New(rand.NewSource(7)), 16, 97)
	rng := rand.New(rand.NewSource(1))

	rows := make([][]float64, 10)
	batch := mat.NewDense(len(rows), 16, nil)
	for i := range rows {
		rows[i] = make([]float64, 16)
		for j := range rows[i] {
			rows[i][j] = rng.NormFloat64()
		}
		batch.SetRow(i, rows[i])
	}

	batched := h.Buckets(batch)
	for i, row := range rows {
		single, err := h.Bucket(row)
		require.NoError(t, err)
		again, err := h.Bucket(row)
		require.NoError(t, err)

		assert.Equal(t, single, again)
		assert.Equal(t, batched[i], single, "row %d", i)
		assert.GreaterOrEqual(t, single, 0)
		assert.Less(t, single, 97)
	}
}

func TestHashProjector_DimensionMismatch(t *testing.T) {
	h := NewHashProjector(rand.New(rand.NewSource(7)), 16, 97)
	_, err := h.Bucket(make([]float64, 15))
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestHashEmbeddingTable_Lookup(t *testing.T) {
	table := NewHashEmbeddingTable(rand.New(rand.NewSource(3)), 8, 4)
	assert.Equal(t, 8, table.Size())

	row, err := table.Lookup(7)
	require.NoError(t, err)
	assert.Len(t, row, 4)

	// Lookup hands out copies.
	row[0] = 1e9
	again, err := table.Lookup(7)
	require.NoError(t, err)
	assert.NotEqual(t, 1e9, again[0])

	for _, idx := range []int{-1, 8, 100} {
		_, err := table.Lookup(idx)
		assert.ErrorIs(t, err, core.ErrIndexOutOfRange, "idx %d", idx)
	}
}
