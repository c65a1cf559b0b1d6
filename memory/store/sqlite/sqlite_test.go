package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-consciousness/core"
	"github.com/becomeliminal/nim-consciousness/memory"
)

var (
	_ memory.Store   = (*SQLite)(nil)
	_ memory.Archive = (*SQLite)(nil)
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newMemory(owner string, vec []float64) *memory.ConsciousnessMemory {
	mem := memory.NewConsciousnessMemory(owner, &memory.Snapshot{
		Vector:     vec,
		ItemCount:  2,
		Modalities: map[string]int{"text_data": 1, "image_data": 1},
		Timestamp:  time.Date(2026, 5, 6, 7, 8, 9, 10, time.UTC),
	})
	mem.SetEmbedding(vec)
	return mem
}

func TestSQLite_StoreQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := newMemory("alice", []float64{1, 0})
	b := newMemory("bob", []float64{1, 0}) // ties with a
	c := newMemory("bob", []float64{0, 1})
	for _, m := range []*memory.ConsciousnessMemory{a, b, c} {
		require.NoError(t, s.Store(ctx, m))
	}

	matches, err := s.Query(ctx, "", []float64{2, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, a.ID(), matches[0].Memory.ID(), "ties keep insertion order")
	assert.Equal(t, b.ID(), matches[1].Memory.ID())
	assert.InDelta(t, 1, matches[0].Similarity, 1e-9)
	assert.InDelta(t, 0, matches[2].Similarity, 1e-9)

	bobs, err := s.Query(ctx, "bob", []float64{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.Equal(t, c.ID(), bobs[0].Memory.ID())

	got := bobs[0].Memory.(*memory.ConsciousnessMemory)
	assert.Equal(t, 2, got.ItemCount)
	assert.Equal(t, map[string]int{"text_data": 1, "image_data": 1}, got.Modalities)
	assert.True(t, c.CreatedAt().Equal(got.CreatedAt()))

	none, err := s.Query(ctx, "", []float64{0, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_GetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := newMemory("alice", []float64{0.25, 0.5, 0.75})
	require.NoError(t, s.Store(ctx, mem))

	got, err := s.Get(ctx, "alice", mem.ID())
	require.NoError(t, err)
	assert.InDeltaSlice(t, mem.Embedding(), got.Embedding(), 1e-7)
	assert.Equal(t, float64(2), got.Metadata()["item_count"])

	_, err = s.Get(ctx, "bob", mem.ID())
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "alice", mem.ID()))
	_, err = s.Get(ctx, "alice", mem.ID())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLite_Archive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	doc := []byte(`{"nodes":[],"edges":[]}`)
	id, err := s.PutGraph(ctx, "alice", doc, map[string]string{"items": "0"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := s.GetGraph(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	_, err = s.GetGraph(ctx, "bob", id)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLite_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memory.db")

	s, err := New(path)
	require.NoError(t, err)
	mem := newMemory("alice", []float64{1, 1})
	require.NoError(t, s.Store(ctx, mem))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(ctx, "alice", mem.ID())
	assert.NoError(t, err)
}

func TestSQLite_InMemory(t *testing.T) {
	ctx := context.Background()
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Store(ctx, newMemory("alice", []float64{1})))
	matches, err := s.Query(ctx, "alice", []float64{1}, 5)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
