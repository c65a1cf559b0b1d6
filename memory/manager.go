package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/becomeliminal/nim-consciousness/core"
)

// SimpleManager is the stock Manager implementation.
//
// Features:
//   - Records non-zero consciousness vectors
//   - Vector similarity search with a minimum score
//   - Summary formatting
type SimpleManager struct {
	store  Store
	config *Config
	logger *zap.Logger
}

// Option configures a SimpleManager.
type Option func(*SimpleManager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(m *SimpleManager) {
		m.logger = logger.Named("memory")
	}
}

// NewSimpleManager creates a new SimpleManager.
func NewSimpleManager(store Store, config *Config, opts ...Option) *SimpleManager {
	if config == nil {
		config = DefaultConfig
	}
	m := &SimpleManager{
		store:  store,
		config: config,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record stores the snapshot's vector as a ConsciousnessMemory.
// Disabled managers and zero vectors are skipped without error.
func (m *SimpleManager) Record(ctx context.Context, userID string, snap *Snapshot) (string, error) {
	if !m.config.Enabled {
		return "", nil // Memory disabled
	}
	if m.store == nil {
		return "", core.WrapError("memory.Record", core.ErrServiceNotConfigured)
	}
	if snap == nil || floats.Norm(snap.Vector, 2) == 0 {
		m.logger.Warn("skipping empty consciousness vector", zap.String("user_id", userID))
		return "", nil
	}

	mem := NewConsciousnessMemory(userID, snap)
	mem.SetEmbedding(append([]float64(nil), snap.Vector...))
	if err := m.store.Store(ctx, mem); err != nil {
		return "", fmt.Errorf("store memory: %w", err)
	}

	m.logger.Info("recorded consciousness vector",
		zap.String("user_id", userID),
		zap.String("memory_id", mem.ID()),
		zap.Int("items", snap.ItemCount))
	return mem.ID(), nil
}

// Similar queries the store and drops matches below MinSimilarity.
func (m *SimpleManager) Similar(ctx context.Context, ownerID string, vector []float64, limit int) ([]Match, error) {
	if !m.config.Enabled {
		return nil, nil
	}
	if m.store == nil {
		return nil, core.WrapError("memory.Similar", core.ErrServiceNotConfigured)
	}
	if limit <= 0 {
		limit = m.config.MaxResults
	}
	if limit <= 0 {
		limit = DefaultConfig.MaxResults
	}

	matches, err := m.store.Query(ctx, ownerID, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}

	kept := matches[:0]
	for _, match := range matches {
		if match.Similarity < m.config.MinSimilarity {
			continue
		}
		kept = append(kept, match)
	}

	m.logger.Debug("similarity query",
		zap.String("owner_id", ownerID),
		zap.Int("raw", len(matches)),
		zap.Int("kept", len(kept)))
	return kept, nil
}

// Retrieve finds similar memories and returns them as a formatted block.
func (m *SimpleManager) Retrieve(ctx context.Context, userID string, vector []float64) (string, error) {
	matches, err := m.Similar(ctx, "", vector, 0)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	return m.formatMatches(matches, userID), nil
}

// formatMatches formats retrieved memories into a structured string.
func (m *SimpleManager) formatMatches(matches []Match, userID string) string {
	var parts []string
	parts = append(parts, "=== SIMILAR CONSCIOUSNESS STATES ===\n")

	maxLengthPerMemory := 2000 / len(matches)
	if maxLengthPerMemory < 100 {
		maxLengthPerMemory = 100
	}

	for i, match := range matches {
		formatted := match.Memory.Format(FormatContext{
			UserID:    userID,
			MaxLength: maxLengthPerMemory,
		})
		parts = append(parts, fmt.Sprintf("%d. (%.3f) %s\n", i+1, match.Similarity, formatted))
	}

	return strings.Join(parts, "\n")
}

// Config holds SimpleManager configuration.
type Config struct {
	// Enabled toggles the memory system on/off.
	Enabled bool

	// MinSimilarity is the minimum cosine similarity a match needs [-1.0, 1.0].
	MinSimilarity float64

	// MaxResults is the query limit when the caller does not give one.
	MaxResults int
}

// DefaultConfig returns sensible defaults.
var DefaultConfig = &Config{
	Enabled:       true,
	MinSimilarity: 0.0,
	MaxResults:    10,
}
