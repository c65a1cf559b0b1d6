package ahin

import (
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/becomeliminal/nim-consciousness/core"
)

// FeatureProjector maps raw features to hidden tokens:
// act(x·Wᵀ + b), followed by dropout while training.
type FeatureProjector struct {
	lin  *linear
	act  activation
	drop *dropout
}

// Project maps each row of x (n × input) to a hidden token (n × hidden).
func (p *FeatureProjector) Project(x mat.Matrix, training bool) *mat.Dense {
	h := p.lin.forward(x)
	p.act.applyTo(h)
	p.drop.applyTo(h, training)
	return h
}

// OutputProjector maps the pooled representation to the output space.
type OutputProjector struct {
	lin *linear
}

// Project applies the linear map without normalizing.
func (p *OutputProjector) Project(pooled []float64) []float64 {
	return p.lin.apply(pooled)
}

// Forward projects and L2-normalizes.
func (p *OutputProjector) Forward(pooled []float64) []float64 {
	return L2Normalize(p.Project(pooled))
}

// Output is the result of encoding one sequence.
type Output struct {
	Vector        []float64 // unit-norm output
	Raw           []float64 // output before normalization
	Pooled        []float64 // encoded memory-token position
	HashIndices   []int     // one bucket per item
	MemoryQuery   []float64
	MemoryWeights []float64
}

// Network is the hashing-augmented attention encoder. Parameters are drawn
// once in New from Config.Seed; after that every method is a pure function
// of its inputs, and concurrent inference calls are safe.
type Network struct {
	cfg      Config
	hash     *HashProjector
	table    *HashEmbeddingTable
	features *FeatureProjector
	memory   *AttentiveMemory
	encoder  *SequenceEncoder
	output   *OutputProjector
	training bool
}

// New validates cfg and initializes all parameters.
func New(cfg Config) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	rng := rand.New(rand.NewSource(cfg.Seed))
	act := activationFor(cfg.Activation)
	drop := &dropout{p: cfg.Dropout, rng: rand.New(rand.NewSource(cfg.Seed + 1))}

	n := &Network{cfg: cfg}
	n.hash = NewHashProjector(rng, cfg.InputDim, cfg.HashSize)
	n.table = NewHashEmbeddingTable(rng, cfg.HashSize, cfg.HiddenDim)
	n.features = &FeatureProjector{lin: newLinear(rng, cfg.InputDim, cfg.HiddenDim), act: act, drop: drop}
	n.memory = NewAttentiveMemory(rng, cfg.MemorySlots, cfg.HiddenDim, act)
	n.encoder = NewSequenceEncoder(rng, cfg.NumLayers, cfg.HiddenDim, cfg.FeedForwardDim, cfg.NumHeads, act, drop)
	n.output = &OutputProjector{lin: newLinear(rng, cfg.HiddenDim, cfg.OutputDim)}
	return n, nil
}

// Config returns the resolved configuration.
func (n *Network) Config() Config {
	return n.cfg
}

// SetTraining toggles dropout. Training mode is not safe for concurrent use.
func (n *Network) SetTraining(training bool) {
	n.training = training
}

// Forward encodes one sequence of feature vectors. keep, when non-nil, marks
// the items that may be attended; padded items still contribute to the
// memory query.
func (n *Network) Forward(features [][]float64, keep []bool) (*Output, error) {
	const op = "ahin.Forward"
	if len(features) == 0 {
		return nil, core.WrapError(op, fmt.Errorf("%w: empty sequence", core.ErrDimensionMismatch))
	}
	if keep != nil && len(keep) != len(features) {
		return nil, core.DimensionError(op+" (mask)", len(features), len(keep))
	}

	x := mat.NewDense(len(features), n.cfg.InputDim, nil)
	for i, f := range features {
		if len(f) != n.cfg.InputDim {
			return nil, core.DimensionError(op, n.cfg.InputDim, len(f))
		}
		x.SetRow(i, f)
	}

	buckets := n.hash.Buckets(x)
	combined := n.features.Project(x, n.training)
	for i, b := range buckets {
		emb, err := n.table.Lookup(b)
		if err != nil {
			return nil, core.WrapError(op, err)
		}
		floats.Add(combined.RawRowView(i), emb)
	}

	read := n.memory.Read(combined)

	seq := mat.NewDense(len(features)+1, n.cfg.HiddenDim, nil)
	seq.SetRow(0, read.Output)
	for i := range features {
		seq.SetRow(i+1, combined.RawRowView(i))
	}

	var seqKeep []bool
	if keep != nil {
		seqKeep = append([]bool{true}, keep...)
	}
	pooled := Pool(n.encoder.Encode(seq, seqKeep, n.training))
	raw := n.output.Project(pooled)

	return &Output{
		Vector:        L2Normalize(raw),
		Raw:           raw,
		Pooled:        pooled,
		HashIndices:   buckets,
		MemoryQuery:   read.Query,
		MemoryWeights: read.Weights,
	}, nil
}

// ItemOutputs encodes every feature vector as its own one-item sequence.
// At inference the items run in parallel; results are identical to a
// sequential loop.
func (n *Network) ItemOutputs(features [][]float64) ([]*Output, error) {
	outs := make([]*Output, len(features))
	if n.training {
		for i, f := range features {
			out, err := n.Forward([][]float64{f}, nil)
			if err != nil {
				return nil, err
			}
			outs[i] = out
		}
		return outs, nil
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range features {
		g.Go(func() error {
			out, err := n.Forward([][]float64{f}, nil)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}

// Represent computes the consciousness vector for a set of items.
// No items yields the zero vector of length OutputDim.
func (n *Network) Represent(features [][]float64) ([]float64, error) {
	if len(features) == 0 {
		return make([]float64, n.cfg.OutputDim), nil
	}
	if n.cfg.Aggregation == AggregateSequence {
		out, err := n.Forward(features, nil)
		if err != nil {
			return nil, err
		}
		return out.Vector, nil
	}
	outs, err := n.ItemOutputs(features)
	if err != nil {
		return nil, err
	}
	return n.Aggregate(outs), nil
}

// Aggregate combines per-item outputs according to the configured mode.
// In mean mode the raw outputs are averaged, then normalized. Sequence mode
// cannot be recovered from per-item outputs, so callers wanting it use
// Represent or Forward.
func (n *Network) Aggregate(outs []*Output) []float64 {
	mean := make([]float64, n.cfg.OutputDim)
	if len(outs) == 0 {
		return mean
	}
	for _, out := range outs {
		floats.Add(mean, out.Raw)
	}
	floats.Scale(1/float64(len(outs)), mean)
	return L2Normalize(mean)
}
