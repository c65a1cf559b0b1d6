package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/becomeliminal/nim-consciousness/core"
	"github.com/becomeliminal/nim-consciousness/memory"
)

// collectionName holds every owner's consciousness vectors; owners are told
// apart by metadata so cross-user similarity is a single query.
const collectionName = "consciousness"

// Metadata keys written next to each document.
const (
	metaType      = "type"
	metaOwnerID   = "owner_id"
	metaCreatedAt = "created_at"
)

// ChromemStore wraps chromem-go for vector storage.
// chromem-go is a pure Go, embedded vector database.
type ChromemStore struct {
	db     *chromem.DB
	col    *chromem.Collection
	logger *zap.Logger
}

// Option configures a ChromemStore.
type Option func(*options)

type options struct {
	path     string
	compress bool
	logger   *zap.Logger
}

// WithPath persists the database under dir. Existing data is loaded.
func WithPath(dir string, compress bool) Option {
	return func(o *options) {
		o.path = dir
		o.compress = compress
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a chromem-based store, in memory unless WithPath is given.
func New(opts ...Option) (*ChromemStore, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	var db *chromem.DB
	if o.path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(o.path, o.compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	// Embeddings are always supplied, so the collection never embeds text.
	col, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{db: db, col: col, logger: o.logger.Named("chromem")}, nil
}

// Store saves a memory with its embedding.
func (s *ChromemStore) Store(ctx context.Context, mem memory.Memory) error {
	embedding, err := toFloat32(mem.Embedding())
	if err != nil {
		return fmt.Errorf("store %s: %w", mem.ID(), err)
	}

	stored, err := serializeMemory(mem)
	if err != nil {
		return fmt.Errorf("serialize memory: %w", err)
	}

	doc := chromem.Document{
		ID:        mem.ID(),
		Content:   stored.ContentJSON,
		Embedding: embedding,
		Metadata:  stored.Metadata,
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	s.logger.Debug("stored memory",
		zap.String("memory_id", mem.ID()),
		zap.String("owner_id", mem.OwnerID()),
		zap.String("type", mem.Type()))
	return nil
}

// Query retrieves memories by vector similarity.
func (s *ChromemStore) Query(ctx context.Context, ownerID string, embedding []float64, limit int) ([]memory.Match, error) {
	query, err := toFloat32(embedding)
	if err != nil {
		// Nothing is similar to the zero vector.
		return nil, nil
	}

	// chromem-go requires nResults <= collection size.
	n := s.col.Count()
	if limit < n {
		n = limit
	}
	if n <= 0 {
		return nil, nil
	}

	var where map[string]string
	if ownerID != "" {
		where = map[string]string{metaOwnerID: ownerID}
	}

	results, err := s.col.QueryEmbedding(ctx, query, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]memory.Match, 0, len(results))
	for i, result := range results {
		mem, err := deserializeMemory(result.ID, result.Metadata, result.Content, result.Embedding)
		if err != nil {
			s.logger.Warn("skipping result", zap.Int("rank", i+1), zap.Error(err))
			continue
		}
		matches = append(matches, memory.Match{Memory: mem, Similarity: float64(result.Similarity)})
	}

	s.logger.Debug("query",
		zap.String("owner_id", ownerID),
		zap.Int("limit", limit),
		zap.Int("results", len(matches)))
	return matches, nil
}

// Get retrieves a specific memory by ID and owner.
func (s *ChromemStore) Get(ctx context.Context, ownerID string, memoryID string) (memory.Memory, error) {
	doc, err := s.col.GetByID(ctx, memoryID)
	if err != nil || doc.Metadata[metaOwnerID] != ownerID {
		return nil, fmt.Errorf("memory %s: %w", memoryID, core.ErrNotFound)
	}
	return deserializeMemory(doc.ID, doc.Metadata, doc.Content, doc.Embedding)
}

// Delete removes a memory. Deleting a missing memory is not an error.
func (s *ChromemStore) Delete(ctx context.Context, ownerID string, memoryID string) error {
	doc, err := s.col.GetByID(ctx, memoryID)
	if err != nil || doc.Metadata[metaOwnerID] != ownerID {
		return nil
	}
	if err := s.col.Delete(ctx, nil, nil, memoryID); err != nil {
		return fmt.Errorf("delete %s: %w", memoryID, err)
	}
	return nil
}

// Count returns the number of stored memories across all owners.
func (s *ChromemStore) Count() int {
	return s.col.Count()
}

// Close releases resources. Persistent databases write through on every
// change, so there is nothing to flush.
func (s *ChromemStore) Close() error {
	return nil
}

// StoredMemory represents a serialized memory for storage.
type StoredMemory struct {
	Type        string
	ContentJSON string
	Metadata    map[string]string
}

// serializeMemory converts a Memory interface to storage format.
func serializeMemory(mem memory.Memory) (*StoredMemory, error) {
	contentBytes, err := json.Marshal(mem.Content())
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	metadata := map[string]string{
		metaType:      mem.Type(),
		metaOwnerID:   mem.OwnerID(),
		metaCreatedAt: mem.CreatedAt().Format(time.RFC3339Nano),
	}

	// Add custom metadata
	for k, v := range mem.Metadata() {
		if _, reserved := metadata[k]; reserved {
			continue
		}
		switch val := v.(type) {
		case string:
			metadata[k] = val
		case int:
			metadata[k] = strconv.Itoa(val)
		default:
			if bytes, err := json.Marshal(v); err == nil {
				metadata[k] = string(bytes)
			}
		}
	}

	return &StoredMemory{
		Type:        mem.Type(),
		ContentJSON: string(contentBytes),
		Metadata:    metadata,
	}, nil
}

// deserializeMemory converts stored fields back to a Memory.
func deserializeMemory(id string, meta map[string]string, content string, embedding []float32) (memory.Memory, error) {
	switch memType := meta[metaType]; memType {
	case memory.TypeConsciousness:
		var c memory.ConsciousnessContent
		if err := json.Unmarshal([]byte(content), &c); err != nil {
			return nil, fmt.Errorf("unmarshal content: %w", err)
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, meta[metaCreatedAt])

		metadata := make(map[string]interface{})
		for k, v := range meta {
			if k != metaType && k != metaOwnerID && k != metaCreatedAt {
				metadata[k] = v
			}
		}

		return memory.NewConsciousnessMemoryFromStorage(
			id,
			meta[metaOwnerID],
			createdAt,
			toFloat64(embedding),
			c,
			metadata,
		), nil
	default:
		return nil, fmt.Errorf("unknown memory type: %s", memType)
	}
}

// toFloat32 converts an embedding for chromem. chromem normalizes on insert
// and would turn a zero vector into NaNs, so those are rejected.
func toFloat32(v []float64) ([]float32, error) {
	var norm float64
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
		norm += x * x
	}
	if norm == 0 || math.IsNaN(norm) {
		return nil, fmt.Errorf("embedding has no direction")
	}
	return out, nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
