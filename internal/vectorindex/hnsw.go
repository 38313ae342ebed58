package vectorindex

import (
	"fmt"
	"math"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/photo-curator/internal/database"
)

// HNSW is an approximate index backed by coder/hnsw. Search widens the
// candidate pool to the index size, so for the per-request sizes used here
// results match the flat index.
type HNSW struct {
	dim   int
	graph *hnsw.Graph[int]
	rows  [][]float64
}

// NewHNSW returns an empty graph index tuned with the shared HNSW parameters.
func NewHNSW() *HNSW {
	g := hnsw.NewGraph[int]()
	g.M = database.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(database.HNSWMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	g.EfSearch = database.HNSWEfSearch
	return &HNSW{graph: g}
}

func (h *HNSW) Add(vec []float32) error {
	if err := checkDim(&h.dim, len(vec)); err != nil {
		return err
	}
	normalized := database.NormalizeL2(vec)
	if err := checkFinite(normalized); err != nil {
		return err
	}
	node := make([]float32, len(normalized))
	for i, v := range normalized {
		node[i] = float32(v)
	}
	h.graph.Add(hnsw.MakeNode(len(h.rows), node))
	h.rows = append(h.rows, normalized)
	return nil
}

func (h *HNSW) Len() int {
	return len(h.rows)
}

func (h *HNSW) Search(query []float32, k int) ([]Match, error) {
	if len(h.rows) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != h.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), h.dim)
	}
	if k > len(h.rows) {
		k = len(h.rows)
	}
	h.graph.EfSearch = max(database.HNSWEfSearch, len(h.rows))

	// Scores are recomputed in float64 so both index kinds agree at threshold boundaries.
	q := database.NormalizeL2(query)
	nodes := h.graph.Search(query, k)
	matches := make([]Match, 0, len(nodes))
	for _, n := range nodes {
		score := database.Dot(q, h.rows[n.Key])
		if math.IsNaN(score) {
			continue
		}
		matches = append(matches, Match{Index: n.Key, Score: score})
	}
	sortMatches(matches)
	return matches, nil
}
