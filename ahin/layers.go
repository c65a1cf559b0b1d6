package ahin

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const layerNormEps = 1e-5

// linear is y = x·Wᵀ + b applied row by row.
type linear struct {
	w *mat.Dense // out × in
	b []float64
}

// newLinear draws weights and bias uniformly in ±1/sqrt(in).
func newLinear(rng *rand.Rand, in, out int) *linear {
	bound := 1 / math.Sqrt(float64(in))
	w := make([]float64, out*in)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * bound
	}
	b := make([]float64, out)
	for i := range b {
		b[i] = (rng.Float64()*2 - 1) * bound
	}
	return &linear{w: mat.NewDense(out, in, w), b: b}
}

func (l *linear) dims() (in, out int) {
	out, in = l.w.Dims()
	return in, out
}

// forward maps an n×in matrix to a fresh n×out matrix.
func (l *linear) forward(x mat.Matrix) *mat.Dense {
	var y mat.Dense
	y.Mul(x, l.w.T())
	n, _ := y.Dims()
	for i := 0; i < n; i++ {
		floats.Add(y.RawRowView(i), l.b)
	}
	return &y
}

// apply maps a single vector.
func (l *linear) apply(v []float64) []float64 {
	y := l.forward(mat.NewDense(1, len(v), v))
	return y.RawRowView(0)
}

// activation is an element-wise nonlinearity.
type activation func(float64) float64

func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// gelu is the exact (erf) form.
func gelu(x float64) float64 {
	return 0.5 * x * (1 + math.Erf(x/math.Sqrt2))
}

// activationFor resolves a configured name. Unknown names get relu.
func activationFor(name string) activation {
	if name == ActivationGELU {
		return gelu
	}
	return relu
}

func (a activation) applyTo(m *mat.Dense) {
	m.Apply(func(_, _ int, v float64) float64 { return a(v) }, m)
}

func (a activation) applyVec(v []float64) {
	for i, x := range v {
		v[i] = a(x)
	}
}

// dropout zeroes entries with probability p during training and rescales
// the survivors by 1/(1-p). At inference it is the identity.
type dropout struct {
	p   float64
	rng *rand.Rand
}

func (d *dropout) applyTo(m *mat.Dense, training bool) {
	if !training || d.p <= 0 {
		return
	}
	keep := 1 - d.p
	m.Apply(func(_, _ int, v float64) float64 {
		if d.rng.Float64() < d.p {
			return 0
		}
		return v / keep
	}, m)
}

// layerNorm normalizes each row to zero mean and unit variance,
// then applies a learned gain and bias.
type layerNorm struct {
	gain []float64
	bias []float64
}

func newLayerNorm(dim int) *layerNorm {
	gain := make([]float64, dim)
	for i := range gain {
		gain[i] = 1
	}
	return &layerNorm{gain: gain, bias: make([]float64, dim)}
}

func (ln *layerNorm) applyTo(m *mat.Dense) {
	n, d := m.Dims()
	for i := 0; i < n; i++ {
		row := m.RawRowView(i)
		mean := floats.Sum(row) / float64(d)
		variance := 0.0
		for _, v := range row {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(d)
		inv := 1 / math.Sqrt(variance+layerNormEps)
		for j, v := range row {
			row[j] = (v-mean)*inv*ln.gain[j] + ln.bias[j]
		}
	}
}

// softmax normalizes scores in place. -Inf entries get weight 0;
// at least one entry must be finite.
func softmax(scores []float64) {
	maxVal := math.Inf(-1)
	for _, s := range scores {
		if s > maxVal {
			maxVal = s
		}
	}
	total := 0.0
	for i, s := range scores {
		e := math.Exp(s - maxVal)
		scores[i] = e
		total += e
	}
	for i := range scores {
		scores[i] /= total
	}
}

// normalMatrix fills an r×c matrix with standard normal draws.
func normalMatrix(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

// L2Normalize returns v scaled to unit length. The zero vector maps to
// a fresh zero vector rather than NaNs.
func L2Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	norm := floats.Norm(v, 2)
	if norm == 0 {
		return out
	}
	floats.ScaleTo(out, 1/norm, v)
	return out
}
