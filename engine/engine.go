package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/becomeliminal/nim-consciousness/core"
	"github.com/becomeliminal/nim-consciousness/graph"
	"github.com/becomeliminal/nim-consciousness/memory"
)

// DefaultSimilarUsers is the QuerySimilarUsers result size for topK <= 0.
const DefaultSimilarUsers = 5

// Engine runs user data through the graph builder and records the resulting
// consciousness vectors.
type Engine struct {
	builder *graph.Builder
	memory  memory.Manager // Optional: required by ProcessUserData and QuerySimilarUsers
	archive memory.Archive // Optional: keeps serialized graphs
	now     func() time.Time
	logger  *zap.Logger
	closers []io.Closer
}

// Option configures the engine.
type Option func(*Engine)

// WithMemory configures the engine with a memory manager.
func WithMemory(m memory.Manager) Option {
	return func(e *Engine) {
		e.memory = m
	}
}

// WithArchive sets where generated graphs are archived.
func WithArchive(a memory.Archive) Option {
	return func(e *Engine) {
		e.archive = a
	}
}

// WithClock replaces time.Now for result timestamps.
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) {
		e.now = fn
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.Named("engine")
	}
}

// withCloser registers a resource released by Close.
func withCloser(c io.Closer) Option {
	return func(e *Engine) {
		e.closers = append(e.closers, c)
	}
}

// NewEngine creates an engine around a graph builder.
func NewEngine(builder *graph.Builder, opts ...Option) *Engine {
	e := &Engine{
		builder: builder,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Builder returns the engine's graph builder.
func (e *Engine) Builder() *graph.Builder {
	return e.builder
}

// Result is the outcome of ProcessUserData.
type Result struct {
	UserID              string
	ConsciousnessVector []float64
	MemoryID            string // empty when nothing was recorded
	ArchiveID           string // empty without an archive
	Timestamp           time.Time
	Graph               *graph.Graph
}

// SimilarUser is one hit of QuerySimilarUsers.
type SimilarUser struct {
	UserID     string
	MemoryID   string
	Similarity float64
	ItemCount  int
	RecordedAt time.Time
}

// ExtractRepresentation returns the consciousness vector for items.
func (e *Engine) ExtractRepresentation(ctx context.Context, items []core.Item) ([]float64, error) {
	return e.builder.Represent(ctx, items)
}

// GenerateGraph builds the consciousness graph for items.
func (e *Engine) GenerateGraph(ctx context.Context, items []core.Item) (*graph.Graph, error) {
	return e.builder.Generate(ctx, items)
}

// ProcessUserData generates the user's graph, archives it when an archive is
// configured and records the consciousness vector.
func (e *Engine) ProcessUserData(ctx context.Context, userID string, items []core.Item) (*Result, error) {
	const op = "engine.ProcessUserData"
	if e.memory == nil {
		return nil, core.WrapError(op, core.ErrServiceNotConfigured)
	}

	g, err := e.builder.Generate(ctx, items)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	result := &Result{
		UserID:              userID,
		ConsciousnessVector: g.ConsciousnessVector,
		Timestamp:           now,
		Graph:               g,
	}

	if e.archive != nil {
		data, err := g.MarshalDocument()
		if err != nil {
			return nil, core.WrapError(op, err)
		}
		result.ArchiveID, err = e.archive.PutGraph(ctx, userID, data, map[string]string{
			"user_id":   userID,
			"data_type": "consciousness_graph",
			"timestamp": now.Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, core.WrapError(op, fmt.Errorf("archive graph: %w", err))
		}
	}

	modalities := make(map[string]int)
	for kind, n := range g.CountKinds() {
		if kind != graph.KindConsciousness {
			modalities[string(kind)] = n
		}
	}
	result.MemoryID, err = e.memory.Record(ctx, userID, &memory.Snapshot{
		Vector:     g.ConsciousnessVector,
		ItemCount:  len(items),
		Modalities: modalities,
		ArchiveID:  result.ArchiveID,
		Timestamp:  now,
	})
	if err != nil {
		return nil, core.WrapError(op, fmt.Errorf("record: %w", err))
	}

	e.logger.Info("processed user data",
		zap.String("user_id", userID),
		zap.Int("items", len(items)),
		zap.Int("edges", len(g.Edges)),
		zap.String("memory_id", result.MemoryID),
		zap.String("archive_id", result.ArchiveID))
	return result, nil
}

// QuerySimilarUsers returns the recorded consciousness states closest to
// vector, best first. topK <= 0 means DefaultSimilarUsers.
func (e *Engine) QuerySimilarUsers(ctx context.Context, vector []float64, topK int) ([]SimilarUser, error) {
	const op = "engine.QuerySimilarUsers"
	if e.memory == nil {
		return nil, core.WrapError(op, core.ErrServiceNotConfigured)
	}
	if topK <= 0 {
		topK = DefaultSimilarUsers
	}

	matches, err := e.memory.Similar(ctx, "", vector, topK)
	if err != nil {
		return nil, core.WrapError(op, err)
	}
	users := make([]SimilarUser, 0, len(matches))
	for _, m := range matches {
		u := SimilarUser{
			UserID:     m.Memory.OwnerID(),
			MemoryID:   m.Memory.ID(),
			Similarity: m.Similarity,
			RecordedAt: m.Memory.CreatedAt(),
		}
		if c, ok := m.Memory.(*memory.ConsciousnessMemory); ok {
			u.ItemCount = c.ItemCount
		}
		users = append(users, u)
	}
	return users, nil
}

// LoadGraph fetches an archived graph.
func (e *Engine) LoadGraph(ctx context.Context, userID, archiveID string) (*graph.Graph, error) {
	const op = "engine.LoadGraph"
	if e.archive == nil {
		return nil, core.WrapError(op, core.ErrServiceNotConfigured)
	}
	data, err := e.archive.GetGraph(ctx, userID, archiveID)
	if err != nil {
		return nil, core.WrapError(op, err)
	}
	return graph.UnmarshalDocument(data)
}

// Close releases the stores and extractors the engine was built with.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
