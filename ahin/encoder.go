package ahin

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// encoderLayer is a post-norm transformer encoder block:
//
//	x = LN1(x + Dropout(MHA(x)))
//	x = LN2(x + Dropout(W2·Dropout(act(W1·x))))
type encoderLayer struct {
	wq, wk, wv, wo *linear
	ff1, ff2       *linear
	norm1, norm2   *layerNorm
	heads          int
	act            activation
	drop           *dropout
}

func newEncoderLayer(rng *rand.Rand, hiddenDim, ffDim, heads int, act activation, drop *dropout) *encoderLayer {
	return &encoderLayer{
		wq:    newLinear(rng, hiddenDim, hiddenDim),
		wk:    newLinear(rng, hiddenDim, hiddenDim),
		wv:    newLinear(rng, hiddenDim, hiddenDim),
		wo:    newLinear(rng, hiddenDim, hiddenDim),
		ff1:   newLinear(rng, hiddenDim, ffDim),
		ff2:   newLinear(rng, ffDim, hiddenDim),
		norm1: newLayerNorm(hiddenDim),
		norm2: newLayerNorm(hiddenDim),
		heads: heads,
		act:   act,
		drop:  drop,
	}
}

// selfAttention runs multi-head scaled dot-product attention over the rows
// of x. Keys at positions where keep is false get zero weight.
func (l *encoderLayer) selfAttention(x *mat.Dense, keep []bool) *mat.Dense {
	q, k, v := l.wq.forward(x), l.wk.forward(x), l.wv.forward(x)
	n, d := x.Dims()
	headDim := d / l.heads
	scale := 1 / math.Sqrt(float64(headDim))

	ctx := mat.NewDense(n, d, nil)
	scores := make([]float64, n)
	for h := 0; h < l.heads; h++ {
		lo, hi := h*headDim, (h+1)*headDim
		for i := 0; i < n; i++ {
			qi := q.RawRowView(i)[lo:hi]
			for j := 0; j < n; j++ {
				if keep != nil && !keep[j] {
					scores[j] = math.Inf(-1)
					continue
				}
				scores[j] = floats.Dot(qi, k.RawRowView(j)[lo:hi]) * scale
			}
			softmax(scores)

			dst := ctx.RawRowView(i)[lo:hi]
			for j, w := range scores {
				if w == 0 {
					continue
				}
				floats.AddScaled(dst, w, v.RawRowView(j)[lo:hi])
			}
		}
	}
	return l.wo.forward(ctx)
}

func (l *encoderLayer) forward(x *mat.Dense, keep []bool, training bool) *mat.Dense {
	attn := l.selfAttention(x, keep)
	l.drop.applyTo(attn, training)
	attn.Add(attn, x)
	l.norm1.applyTo(attn)

	ff := l.ff1.forward(attn)
	l.act.applyTo(ff)
	l.drop.applyTo(ff, training)
	out := l.ff2.forward(ff)
	l.drop.applyTo(out, training)
	out.Add(out, attn)
	l.norm2.applyTo(out)
	return out
}

// SequenceEncoder is a stack of self-attention layers over
// [memory_token, item_1, ..., item_n].
type SequenceEncoder struct {
	layers []*encoderLayer
}

// NewSequenceEncoder builds numLayers identical-shape layers with
// independent parameters.
func NewSequenceEncoder(rng *rand.Rand, numLayers, hiddenDim, ffDim, heads int, act activation, drop *dropout) *SequenceEncoder {
	layers := make([]*encoderLayer, numLayers)
	for i := range layers {
		layers[i] = newEncoderLayer(rng, hiddenDim, ffDim, heads, act, drop)
	}
	return &SequenceEncoder{layers: layers}
}

// Depth returns the number of layers.
func (e *SequenceEncoder) Depth() int {
	return len(e.layers)
}

// Encode runs the stack. keep, when non-nil, has one entry per row of seq;
// row 0 is the memory token and is always attended regardless of keep[0].
// seq is not modified.
func (e *SequenceEncoder) Encode(seq *mat.Dense, keep []bool, training bool) *mat.Dense {
	if keep != nil {
		keep = append([]bool(nil), keep...)
		keep[0] = true
	}
	x := mat.DenseCopyOf(seq)
	for _, layer := range e.layers {
		x = layer.forward(x, keep, training)
	}
	return x
}

// Pool returns the encoded memory-token position.
func Pool(encoded *mat.Dense) []float64 {
	return mat.Row(nil, 0, encoded)
}
