package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TypeConsciousness is the Type of ConsciousnessMemory.
const TypeConsciousness = "consciousness"

// ConsciousnessContent is the stored payload of a ConsciousnessMemory.
// Stores serialize it as JSON next to the embedding.
type ConsciousnessContent struct {
	ItemCount  int            `json:"item_count"`
	Modalities map[string]int `json:"modalities,omitempty"`
	ArchiveID  string         `json:"archive_id,omitempty"`
}

// ConsciousnessMemory records one consciousness vector for a user.
// The vector is the embedding; the content says what produced it.
type ConsciousnessMemory struct {
	id        string
	ownerID   string
	createdAt time.Time
	embedding []float64
	metadata  map[string]interface{}

	ConsciousnessContent
}

// NewConsciousnessMemory creates a memory from a snapshot. The embedding is
// left unset; the Manager decides what to store as the vector.
func NewConsciousnessMemory(ownerID string, snap *Snapshot) *ConsciousnessMemory {
	createdAt := snap.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	modalities := make(map[string]int, len(snap.Modalities))
	for k, v := range snap.Modalities {
		modalities[k] = v
	}
	return &ConsciousnessMemory{
		id:        uuid.New().String(),
		ownerID:   ownerID,
		createdAt: createdAt.UTC(),
		metadata:  map[string]interface{}{"item_count": snap.ItemCount},
		ConsciousnessContent: ConsciousnessContent{
			ItemCount:  snap.ItemCount,
			Modalities: modalities,
			ArchiveID:  snap.ArchiveID,
		},
	}
}

// NewConsciousnessMemoryFromStorage rebuilds a memory from stored data.
// Used by Store implementations when deserializing.
func NewConsciousnessMemoryFromStorage(
	id string,
	ownerID string,
	createdAt time.Time,
	embedding []float64,
	content ConsciousnessContent,
	metadata map[string]interface{},
) *ConsciousnessMemory {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return &ConsciousnessMemory{
		id:                   id,
		ownerID:              ownerID,
		createdAt:            createdAt,
		embedding:            embedding,
		metadata:             metadata,
		ConsciousnessContent: content,
	}
}

// Memory interface implementation

func (c *ConsciousnessMemory) ID() string {
	return c.id
}

func (c *ConsciousnessMemory) OwnerID() string {
	return c.ownerID
}

func (c *ConsciousnessMemory) Type() string {
	return TypeConsciousness
}

func (c *ConsciousnessMemory) Content() interface{} {
	return c.ConsciousnessContent
}

func (c *ConsciousnessMemory) Metadata() map[string]interface{} {
	return c.metadata
}

func (c *ConsciousnessMemory) CreatedAt() time.Time {
	return c.createdAt
}

func (c *ConsciousnessMemory) Embedding() []float64 {
	return c.embedding
}

func (c *ConsciousnessMemory) SetEmbedding(emb []float64) {
	c.embedding = emb
}

// Format renders a one-line summary, e.g.
//
//	[user-1] 3 items (image_data=1, text_data=2) at 2026-01-02T15:04:05Z
func (c *ConsciousnessMemory) Format(ctx FormatContext) string {
	kinds := make([]string, 0, len(c.Modalities))
	for k := range c.Modalities {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s=%d", k, c.Modalities[k])
	}

	line := fmt.Sprintf("[%s] %d items", c.ownerID, c.ItemCount)
	if len(parts) > 0 {
		line += " (" + strings.Join(parts, ", ") + ")"
	}
	line += " at " + c.createdAt.Format(time.RFC3339)
	if c.ArchiveID != "" {
		line += " graph=" + c.ArchiveID
	}
	if ctx.MaxLength > 0 {
		line = truncate(line, ctx.MaxLength)
	}
	return line
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
