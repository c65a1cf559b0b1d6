// Package graph builds consciousness graphs: a core node holding the
// consciousness vector, one node per input item, decayed links from the core
// to every item and similarity links between items.
package graph

import (
	"fmt"

	"github.com/becomeliminal/nim-consciousness/core"
)

// NodeKind is the category of a graph node.
type NodeKind string

const (
	KindConsciousness  NodeKind = "consciousness"
	KindTextData       NodeKind = "text_data"
	KindImageData      NodeKind = "image_data"
	KindAudioData      NodeKind = "audio_data"
	KindMultimodalData NodeKind = "multimodal_data"
	KindGenericData    NodeKind = "generic_data"
)

// KindFor maps an item modality to its node kind.
func KindFor(m core.Modality) NodeKind {
	switch m {
	case core.ModalityText:
		return KindTextData
	case core.ModalityImage:
		return KindImageData
	case core.ModalityAudio:
		return KindAudioData
	case core.ModalityMultimodal:
		return KindMultimodalData
	default:
		return KindGenericData
	}
}

// EdgeKind is the category of a graph edge.
type EdgeKind string

const (
	EdgeConsciousnessConnection EdgeKind = "consciousness_connection"
	EdgeSemanticSimilarity      EdgeKind = "semantic_similarity"
)

// Attribute keys set by the builder.
const (
	AttrType            = "type"
	AttrTimestamp       = "timestamp"
	AttrSimilarityScore = "similarity_score"

	coreNodeType = "core_consciousness"
)

// Node is a vertex in a consciousness graph.
type Node struct {
	ID         string                 `json:"id"`
	Kind       NodeKind               `json:"kind"`
	Attributes map[string]interface{} `json:"attributes"`
	Embedding  []float64              `json:"embedding"`
}

// Edge is a directed, weighted link between two nodes of the same graph.
type Edge struct {
	SourceID   string                 `json:"source_id"`
	DestID     string                 `json:"dest_id"`
	Kind       EdgeKind               `json:"kind"`
	Weight     float64                `json:"weight"`
	Attributes map[string]interface{} `json:"attributes"`
}

// Graph is the result of one build. Node and edge order is insertion order.
//
// A Graph is not safe for concurrent mutation; concurrent reads are fine.
type Graph struct {
	ConsciousnessVector []float64
	Nodes               []Node
	Edges               []Edge

	// HashIndices holds each item's hash bucket, in item order. Not persisted.
	HashIndices []int

	index map[string]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{index: make(map[string]int)}
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.lookup(id)
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// Core returns the consciousness node, which is always inserted first.
func (g *Graph) Core() (Node, bool) {
	if len(g.Nodes) == 0 || g.Nodes[0].Kind != KindConsciousness {
		return Node{}, false
	}
	return g.Nodes[0], true
}

// EdgesFrom returns the edges leaving id, in insertion order.
func (g *Graph) EdgesFrom(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.SourceID == id {
			out = append(out, e)
		}
	}
	return out
}

// EdgesOfKind returns the edges of the given kind, in insertion order.
func (g *Graph) EdgesOfKind(kind EdgeKind) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// CountKinds returns how many nodes of each kind the graph holds.
func (g *Graph) CountKinds() map[NodeKind]int {
	out := make(map[NodeKind]int)
	for _, n := range g.Nodes {
		out[n.Kind]++
	}
	return out
}

func (g *Graph) lookup(id string) (int, bool) {
	if g.index == nil {
		g.reindex()
	}
	i, ok := g.index[id]
	return i, ok
}

func (g *Graph) reindex() {
	g.index = make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		g.index[n.ID] = i
	}
}

// AddNode appends n. Ids must be unique within the graph.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return fmt.Errorf("add node: empty id")
	}
	if _, exists := g.lookup(n.ID); exists {
		return fmt.Errorf("add node: duplicate id %q", n.ID)
	}
	g.index[n.ID] = len(g.Nodes)
	g.Nodes = append(g.Nodes, n)
	return nil
}

// AddEdge appends e. Both endpoints must already exist and the weight must
// lie in (0, 1].
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.lookup(e.SourceID); !ok {
		return fmt.Errorf("add edge: source %q: %w", e.SourceID, core.ErrNotFound)
	}
	if _, ok := g.lookup(e.DestID); !ok {
		return fmt.Errorf("add edge: dest %q: %w", e.DestID, core.ErrNotFound)
	}
	if !(e.Weight > 0 && e.Weight <= 1) {
		return fmt.Errorf("add edge %s -> %s: weight %v outside (0, 1]", e.SourceID, e.DestID, e.Weight)
	}
	g.Edges = append(g.Edges, e)
	return nil
}
