package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/becomeliminal/nim-consciousness/core"
)

// document is the persisted shape of a graph.
type document struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// MarshalDocument serializes the graph as {"nodes": [...], "edges": [...]}
// in insertion order.
func (g *Graph) MarshalDocument() ([]byte, error) {
	var buf bytes.Buffer
	if err := g.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the graph document to w.
func (g *Graph) Encode(w io.Writer) error {
	doc := document{Nodes: g.Nodes, Edges: g.Edges}
	if doc.Nodes == nil {
		doc.Nodes = []Node{}
	}
	if doc.Edges == nil {
		doc.Edges = []Edge{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	return nil
}

// Save writes the graph document to path, replacing any existing file.
func (g *Graph) Save(path string) error {
	data, err := g.MarshalDocument()
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	return nil
}

// Decode reads a graph document. Node ids must be unique and every edge
// must reference existing nodes. The consciousness vector is taken from the
// core node, when there is one.
func Decode(r io.Reader) (*Graph, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}

	g := New()
	g.Nodes = make([]Node, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if err := g.AddNode(n); err != nil {
			return nil, fmt.Errorf("decode graph: %w", err)
		}
	}
	for _, e := range doc.Edges {
		if _, ok := g.lookup(e.SourceID); !ok {
			return nil, core.WrapError("graph.Decode", fmt.Errorf("edge source %q: %w", e.SourceID, core.ErrNotFound))
		}
		if _, ok := g.lookup(e.DestID); !ok {
			return nil, core.WrapError("graph.Decode", fmt.Errorf("edge dest %q: %w", e.DestID, core.ErrNotFound))
		}
	}
	g.Edges = doc.Edges
	if g.Edges == nil {
		g.Edges = []Edge{}
	}

	if c, ok := g.Core(); ok {
		g.ConsciousnessVector = append([]float64(nil), c.Embedding...)
	}
	return g, nil
}

// UnmarshalDocument is Decode over a byte slice.
func UnmarshalDocument(data []byte) (*Graph, error) {
	return Decode(bytes.NewReader(data))
}

// Load reads a graph saved with Save.
func Load(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open graph: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
