package graph

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DefaultQueryTopK is used when QuerySimilar gets a non-positive topK.
const DefaultQueryTopK = 5

// Match is one similarity search result.
type Match struct {
	Node  Node
	Score float64
}

// QuerySimilar ranks every node by cosine similarity to embedding and
// returns the best topK, highest first. Equal scores keep insertion order.
// No node is excluded; callers drop self-matches themselves.
//
// Nodes whose embedding length differs from the query are skipped. A
// zero-norm node or query scores 0.
func (g *Graph) QuerySimilar(embedding []float64, topK int) []Match {
	if topK <= 0 {
		topK = DefaultQueryTopK
	}
	qnorm := floats.Norm(embedding, 2)

	matches := make([]Match, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if len(n.Embedding) != len(embedding) {
			continue
		}
		matches = append(matches, Match{Node: n, Score: cosine(embedding, qnorm, n.Embedding)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

func cosine(q []float64, qnorm float64, v []float64) float64 {
	vnorm := floats.Norm(v, 2)
	if qnorm == 0 || vnorm == 0 {
		return 0
	}
	return floats.Dot(q, v) / (qnorm * vnorm)
}
