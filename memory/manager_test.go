package memory_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/becomeliminal/nim-consciousness/core"
	"github.com/becomeliminal/nim-consciousness/memory"
	"github.com/becomeliminal/nim-consciousness/memory/store/chromem"
)

func newManager(t *testing.T, config *memory.Config) (*memory.SimpleManager, *chromem.ChromemStore) {
	t.Helper()
	store, err := chromem.New()
	require.NoError(t, err)
	return memory.NewSimpleManager(store, config, memory.WithLogger(zap.NewNop())), store
}

func snapshot(vec ...float64) *memory.Snapshot {
	return &memory.Snapshot{
		Vector:     vec,
		ItemCount:  3,
		Modalities: map[string]int{"text_data": 2, "image_data": 1},
		Timestamp:  time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	}
}

func TestSimpleManager_RecordAndSimilar(t *testing.T) {
	ctx := context.Background()
	manager, store := newManager(t, nil)

	aliceID, err := manager.Record(ctx, "alice", snapshot(1, 0, 0))
	require.NoError(t, err)
	require.NotEmpty(t, aliceID)
	bobID, err := manager.Record(ctx, "bob", snapshot(0.8, 0.6, 0))
	require.NoError(t, err)
	_, err = manager.Record(ctx, "carol", snapshot(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, store.Count())

	matches, err := manager.Similar(ctx, "", []float64{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, aliceID, matches[0].Memory.ID())
	assert.Equal(t, bobID, matches[1].Memory.ID())
	assert.InDelta(t, 0.8, matches[1].Similarity, 1e-6)

	mine, err := manager.Similar(ctx, "bob", []float64{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "bob", mine[0].Memory.OwnerID())
}

func TestSimpleManager_MinSimilarity(t *testing.T) {
	ctx := context.Background()
	manager, _ := newManager(t, &memory.Config{Enabled: true, MinSimilarity: 0.5, MaxResults: 10})

	_, err := manager.Record(ctx, "alice", snapshot(1, 0))
	require.NoError(t, err)
	_, err = manager.Record(ctx, "bob", snapshot(0, 1))
	require.NoError(t, err)

	matches, err := manager.Similar(ctx, "", []float64{1, 0.1}, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "alice", matches[0].Memory.OwnerID())
}

func TestSimpleManager_SkipsZeroVector(t *testing.T) {
	ctx := context.Background()
	manager, store := newManager(t, nil)

	id, err := manager.Record(ctx, "alice", snapshot(0, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, 0, store.Count())

	id, err = manager.Record(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestSimpleManager_Disabled(t *testing.T) {
	ctx := context.Background()
	manager, store := newManager(t, &memory.Config{Enabled: false})

	id, err := manager.Record(ctx, "alice", snapshot(1, 0))
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Equal(t, 0, store.Count())

	matches, err := manager.Similar(ctx, "", []float64{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSimpleManager_NoStore(t *testing.T) {
	ctx := context.Background()
	manager := memory.NewSimpleManager(nil, nil)

	_, err := manager.Record(ctx, "alice", snapshot(1, 0))
	assert.ErrorIs(t, err, core.ErrServiceNotConfigured)

	_, err = manager.Similar(ctx, "", []float64{1, 0}, 5)
	assert.ErrorIs(t, err, core.ErrServiceNotConfigured)
}

func TestSimpleManager_Retrieve(t *testing.T) {
	ctx := context.Background()
	manager, _ := newManager(t, nil)

	out, err := manager.Retrieve(ctx, "alice", []float64{1, 0})
	require.NoError(t, err)
	assert.Empty(t, out, "nothing stored yet")

	_, err = manager.Record(ctx, "bob", snapshot(1, 0))
	require.NoError(t, err)

	out, err = manager.Retrieve(ctx, "alice", []float64{1, 0})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "=== SIMILAR CONSCIOUSNESS STATES ==="))
	assert.Contains(t, out, "1. (1.000) [bob] 3 items (image_data=1, text_data=2)")
}

func TestConsciousnessMemory_Format(t *testing.T) {
	snap := snapshot(1, 0)
	snap.ArchiveID = "g-1"
	mem := memory.NewConsciousnessMemory("alice", snap)

	assert.Equal(t, memory.TypeConsciousness, mem.Type())
	assert.Equal(t,
		"[alice] 3 items (image_data=1, text_data=2) at 2026-02-03T04:05:06Z graph=g-1",
		mem.Format(memory.FormatContext{}))

	short := mem.Format(memory.FormatContext{MaxLength: 20})
	assert.Len(t, short, 20)
	assert.True(t, strings.HasSuffix(short, "..."))

	// The snapshot map is copied.
	snap.Modalities["audio_data"] = 9
	assert.NotContains(t, mem.Modalities, "audio_data")
}
