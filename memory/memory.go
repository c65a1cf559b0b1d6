package memory

import (
	"context"
	"time"

	"github.com/becomeliminal/nim-consciousness/core"
)

// Memory is the core interface for everything a Store can hold.
// ConsciousnessMemory is the implementation this module records; callers may
// add their own types as long as a Store knows how to decode them.
//
// Each memory type controls its own:
//   - Content structure (fields, data)
//   - Formatting for summaries (Format method)
//   - Metadata schema
type Memory interface {
	// Identity & Ownership
	ID() string
	OwnerID() string // User ID (empty = global memory)
	Type() string    // Memory type identifier (e.g. "consciousness")

	// Content & Metadata
	Content() interface{}             // Memory-specific data structure, JSON-encodable
	Metadata() map[string]interface{} // Flexible metadata for custom fields

	// Temporal
	CreatedAt() time.Time

	// Operations
	Format(ctx FormatContext) string // Human-readable summary
	Embedding() []float64            // Vector for similarity search
	SetEmbedding([]float64)          // Set embedding vector
}

// FormatContext tells Memory.Format how much room it has.
type FormatContext struct {
	UserID    string // User the summary is rendered for
	MaxLength int    // Max characters for this memory's output
}

// Match is a memory returned by a similarity query.
type Match struct {
	Memory     Memory
	Similarity float64 // cosine similarity to the query
}

// Snapshot is one consciousness vector worth recording, together with what
// produced it.
type Snapshot struct {
	Vector     []float64
	ItemCount  int
	Modalities map[string]int // node kind -> count
	ArchiveID  string         // archived graph document, if any
	Timestamp  time.Time
}

// Manager orchestrates memory operations for the engine.
//
// The Engine decides WHEN to record and query. The Manager decides HOW:
//   - Which snapshots are worth storing
//   - How results are filtered and ranked
//   - How they are formatted
type Manager interface {
	// Record stores a snapshot for userID and returns the new memory id.
	// An empty id with a nil error means the snapshot was skipped.
	Record(ctx context.Context, userID string, snap *Snapshot) (string, error)

	// Similar returns stored memories close to vector, best first.
	// ownerID "" searches every owner.
	Similar(ctx context.Context, ownerID string, vector []float64, limit int) ([]Match, error)

	// Retrieve is Similar rendered as a summary block.
	Retrieve(ctx context.Context, userID string, vector []float64) (string, error)
}

// Store is the vector storage backend interface.
// Implementations: chromem (embedded vector DB), sqlite (durable, single file).
type Store interface {
	// Store saves a memory with its embedding.
	// Memory must have embedding set before calling Store.
	Store(ctx context.Context, mem Memory) error

	// Query retrieves memories by vector similarity, highest first.
	// ownerID "" matches every owner.
	Query(ctx context.Context, ownerID string, embedding []float64, limit int) ([]Match, error)

	// Get retrieves a specific memory by ID and owner.
	// Returns core.ErrNotFound when there is no such memory.
	Get(ctx context.Context, ownerID string, memoryID string) (Memory, error)

	// Delete removes a memory permanently.
	Delete(ctx context.Context, ownerID string, memoryID string) error

	// Close releases resources.
	Close() error
}

// Archive keeps serialized graph documents.
type Archive interface {
	// PutGraph stores data and returns its id.
	PutGraph(ctx context.Context, ownerID string, data []byte, metadata map[string]string) (string, error)

	// GetGraph returns a stored document. Returns core.ErrNotFound when
	// there is no such document for ownerID.
	GetGraph(ctx context.Context, ownerID string, id string) ([]byte, error)
}

// Embedder turns one item into a fixed-length feature vector.
// Implementations: mock (testing), multimodal (built-in extractors),
// cached (decorator), onnx (local text model).
//
// Every call must return exactly Dimensions() values; the graph builder
// rejects anything else with core.ErrDimensionMismatch.
type Embedder interface {
	// Embed converts a single item to a feature vector.
	Embed(ctx context.Context, item core.Item) ([]float64, error)

	// Dimensions returns the feature vector size.
	Dimensions() int
}
