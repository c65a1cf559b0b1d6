// Package sqlite is a durable memory.Store and memory.Archive in a single
// SQLite file, using the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	_ "modernc.org/sqlite"

	"github.com/becomeliminal/nim-consciousness/core"
	"github.com/becomeliminal/nim-consciousness/memory"
)

// SQLite stores memories and graph documents.
//
// Similarity queries are brute force over the owner's rows. That is fine for
// the thousands of vectors a single deployment keeps; larger sets belong in
// a real vector index.
type SQLite struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Option configures a SQLite store.
type Option func(*SQLite)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *SQLite) {
		s.logger = logger.Named("sqlite")
	}
}

// New opens (or creates) the database at path. ":memory:" gives a private
// in-memory database.
func New(path string, opts ...Option) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS memories (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			owner_id TEXT NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL,
			metadata TEXT,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS memories_owner ON memories(owner_id);
		CREATE TABLE IF NOT EXISTS graphs (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			data BLOB NOT NULL,
			metadata TEXT,
			created_at TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}
	return nil
}

// Store saves a memory, replacing any previous memory with the same id.
func (s *SQLite) Store(ctx context.Context, mem memory.Memory) error {
	if len(mem.Embedding()) == 0 {
		return fmt.Errorf("store %s: embedding not set", mem.ID())
	}
	content, err := json.Marshal(mem.Content())
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	var meta []byte
	if md := mem.Metadata(); len(md) > 0 {
		if meta, err = json.Marshal(md); err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO memories (id, owner_id, type, content, embedding, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		mem.ID(), mem.OwnerID(), mem.Type(), string(content),
		encodeFloat32Slice(mem.Embedding()), meta,
		mem.CreatedAt().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}

	s.logger.Debug("stored memory", zap.String("memory_id", mem.ID()), zap.String("owner_id", mem.OwnerID()))
	return nil
}

type row struct {
	id, ownerID, memType, content, createdAt string
	embedding                                []byte
	metadata                                 sql.NullString
}

const selectColumns = `SELECT id, owner_id, type, content, embedding, metadata, created_at FROM memories`

func scanRow(sc interface{ Scan(...any) error }) (row, error) {
	var r row
	err := sc.Scan(&r.id, &r.ownerID, &r.memType, &r.content, &r.embedding, &r.metadata, &r.createdAt)
	return r, err
}

// Query ranks the owner's memories (every memory for ownerID "") by cosine
// similarity. Equal scores keep insertion order.
func (s *SQLite) Query(ctx context.Context, ownerID string, embedding []float64, limit int) ([]memory.Match, error) {
	qnorm := floats.Norm(embedding, 2)
	if qnorm == 0 || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE (? = '' OR owner_id = ?) ORDER BY seq`, ownerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var matches []memory.Match
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		mem, err := r.decode()
		if err != nil {
			s.logger.Warn("skipping row", zap.String("memory_id", r.id), zap.Error(err))
			continue
		}
		v := mem.Embedding()
		if len(v) != len(embedding) {
			continue
		}
		score := 0.0
		if vnorm := floats.Norm(v, 2); vnorm > 0 {
			score = floats.Dot(embedding, v) / (qnorm * vnorm)
		}
		matches = append(matches, memory.Match{Memory: mem, Similarity: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Get retrieves a specific memory by ID and owner.
func (s *SQLite) Get(ctx context.Context, ownerID string, memoryID string) (memory.Memory, error) {
	r, err := scanRow(s.db.QueryRowContext(ctx,
		selectColumns+` WHERE id = ? AND owner_id = ?`, memoryID, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("memory %s: %w", memoryID, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r.decode()
}

// Delete removes a memory. Deleting a missing memory is not an error.
func (s *SQLite) Delete(ctx context.Context, ownerID string, memoryID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ? AND owner_id = ?`, memoryID, ownerID)
	return err
}

// PutGraph archives a serialized graph.
func (s *SQLite) PutGraph(ctx context.Context, ownerID string, data []byte, metadata map[string]string) (string, error) {
	var meta []byte
	if len(metadata) > 0 {
		var err error
		if meta, err = json.Marshal(metadata); err != nil {
			return "", fmt.Errorf("marshal metadata: %w", err)
		}
	}
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO graphs (id, owner_id, data, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, ownerID, data, meta, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert graph: %w", err)
	}
	s.logger.Debug("archived graph", zap.String("archive_id", id), zap.Int("bytes", len(data)))
	return id, nil
}

// GetGraph returns an archived graph document.
func (s *SQLite) GetGraph(ctx context.Context, ownerID string, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM graphs WHERE id = ? AND owner_id = ?`, id, ownerID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("graph %s: %w", id, core.ErrNotFound)
	}
	return data, err
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (r row) decode() (memory.Memory, error) {
	if r.memType != memory.TypeConsciousness {
		return nil, fmt.Errorf("unknown memory type: %s", r.memType)
	}
	var c memory.ConsciousnessContent
	if err := json.Unmarshal([]byte(r.content), &c); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}
	var metadata map[string]interface{}
	if r.metadata.Valid && r.metadata.String != "" {
		if err := json.Unmarshal([]byte(r.metadata.String), &metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, r.createdAt)
	return memory.NewConsciousnessMemoryFromStorage(
		r.id, r.ownerID, createdAt, decodeFloat32Slice(r.embedding), c, metadata,
	), nil
}

// encodeFloat32Slice packs an embedding as little-endian float32s.
func encodeFloat32Slice(f []float64) []byte {
	buf := make([]byte, len(f)*4)
	for i, v := range f {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return buf
}

// decodeFloat32Slice unpacks an embedding written by encodeFloat32Slice.
func decodeFloat32Slice(b []byte) []float64 {
	f := make([]float64, len(b)/4)
	for i := range f {
		f[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
	}
	return f
}
