package graph

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/becomeliminal/nim-consciousness/ahin"
	"github.com/becomeliminal/nim-consciousness/core"
	"github.com/becomeliminal/nim-consciousness/memory"
)

// DefaultTopK is the number of similarity candidates queried per new node.
const DefaultTopK = 3

// Builder turns batches of items into consciousness graphs.
//
// A Builder holds no graph state: every Generate call allocates and returns
// a fresh Graph, so one Builder may serve concurrent callers as long as its
// network is in inference mode.
type Builder struct {
	net      *ahin.Network
	embedder memory.Embedder
	topK     int
	newID    func() string
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithTopK sets how many nearest nodes each new item node is compared with.
// Non-positive values keep the default.
func WithTopK(k int) Option {
	return func(b *Builder) {
		if k > 0 {
			b.topK = k
		}
	}
}

// WithIDGenerator replaces the uuid node id generator.
func WithIDGenerator(fn func() string) Option {
	return func(b *Builder) {
		b.newID = fn
	}
}

// WithClock replaces time.Now for core node timestamps.
func WithClock(fn func() time.Time) Option {
	return func(b *Builder) {
		b.now = fn
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		b.logger = logger.Named("graph")
	}
}

// NewBuilder wires a network to the extractor that feeds it. The extractor
// must produce vectors of the network's input dimension.
func NewBuilder(net *ahin.Network, embedder memory.Embedder, opts ...Option) (*Builder, error) {
	if net == nil || embedder == nil {
		return nil, core.WrapError("graph.NewBuilder", core.ErrServiceNotConfigured)
	}
	if want := net.Config().InputDim; embedder.Dimensions() != want {
		return nil, core.DimensionError("graph.NewBuilder", want, embedder.Dimensions())
	}

	b := &Builder{
		net:      net,
		embedder: embedder,
		topK:     DefaultTopK,
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// TopK returns the configured similarity fan-out.
func (b *Builder) TopK() int {
	return b.topK
}

// features extracts one feature vector per item, in order.
func (b *Builder) features(ctx context.Context, op string, items []core.Item) ([][]float64, error) {
	want := b.net.Config().InputDim
	out := make([][]float64, len(items))
	for i, item := range items {
		f, err := b.embedder.Embed(ctx, item)
		if err != nil {
			return nil, core.WrapError(op, fmt.Errorf("embed item %d: %w", i, err))
		}
		if len(f) != want {
			return nil, core.DimensionError(fmt.Sprintf("%s: item %d", op, i), want, len(f))
		}
		out[i] = f
	}
	return out, nil
}

// Represent computes the consciousness vector for items without building a
// graph. No items yields the zero vector.
func (b *Builder) Represent(ctx context.Context, items []core.Item) ([]float64, error) {
	features, err := b.features(ctx, "graph.Represent", items)
	if err != nil {
		return nil, err
	}
	v, err := b.net.Represent(features)
	if err != nil {
		return nil, core.WrapError("graph.Represent", err)
	}
	return v, nil
}

// Generate builds a new graph for items.
//
// The core node comes first and carries the consciousness vector. Each item
// then gets, in input order, its own node, a core link of weight 1/(i+1) and
// similarity links to the nearest nodes created before it. Scores that are
// not strictly positive produce no link. The core node is a candidate too, so
// item i links to at most min(topK, i) earlier items and min(topK, i+1) nodes
// in all.
//
// Item nodes carry the item's Encoded form as attributes, so a graph compares
// equal to itself after Save and Load.
func (b *Builder) Generate(ctx context.Context, items []core.Item) (*Graph, error) {
	const op = "graph.Generate"

	features, err := b.features(ctx, op, items)
	if err != nil {
		return nil, err
	}
	outs, err := b.net.ItemOutputs(features)
	if err != nil {
		return nil, core.WrapError(op, err)
	}

	var vector []float64
	if b.net.Config().Aggregation == ahin.AggregateSequence && len(features) > 0 {
		vector, err = b.net.Represent(features)
		if err != nil {
			return nil, core.WrapError(op, err)
		}
	} else {
		vector = b.net.Aggregate(outs)
	}

	g := New()
	g.ConsciousnessVector = vector
	g.HashIndices = make([]int, len(outs))

	coreID := b.newID()
	err = g.AddNode(Node{
		ID:   coreID,
		Kind: KindConsciousness,
		Attributes: map[string]interface{}{
			AttrType:      coreNodeType,
			AttrTimestamp: b.now().UTC().Format(time.RFC3339Nano),
		},
		Embedding: append([]float64(nil), vector...),
	})
	if err != nil {
		return nil, core.WrapError(op, err)
	}

	for i, item := range items {
		g.HashIndices[i] = outs[i].HashIndices[0]

		attrs, err := item.Encoded()
		if err != nil {
			return nil, core.WrapError(op, fmt.Errorf("item %d: %w", i, err))
		}
		node := Node{
			ID:         b.newID(),
			Kind:       KindFor(core.Classify(item)),
			Attributes: attrs,
			Embedding:  outs[i].Vector,
		}
		if err := g.AddNode(node); err != nil {
			return nil, core.WrapError(op, err)
		}
		if err := g.AddEdge(Edge{
			SourceID: coreID,
			DestID:   node.ID,
			Kind:     EdgeConsciousnessConnection,
			Weight:   1 / float64(i+1),
		}); err != nil {
			return nil, core.WrapError(op, err)
		}

		linked := 0
		for _, m := range g.QuerySimilar(node.Embedding, b.topK) {
			if m.Node.ID == node.ID || m.Score <= 0 {
				continue
			}
			if err := g.AddEdge(Edge{
				SourceID:   node.ID,
				DestID:     m.Node.ID,
				Kind:       EdgeSemanticSimilarity,
				Weight:     math.Min(m.Score, 1),
				Attributes: map[string]interface{}{AttrSimilarityScore: m.Score},
			}); err != nil {
				return nil, core.WrapError(op, err)
			}
			linked++
		}

		b.logger.Debug("added item node",
			zap.Int("index", i),
			zap.String("kind", string(node.Kind)),
			zap.Int("hash_bucket", g.HashIndices[i]),
			zap.Int("similar", linked))
	}

	b.logger.Info("built consciousness graph",
		zap.Int("items", len(items)),
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)))
	return g, nil
}
