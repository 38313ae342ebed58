// Package vectorindex provides per-request nearest-neighbour indexes over
// L2-normalized vectors. Scores are inner products, i.e. cosine similarity.
package vectorindex

import (
	"fmt"
	"math"
	"sort"

	"github.com/kozaktomas/photo-curator/internal/database"
)

// Match is a search hit. Index is the insertion position of the vector.
type Match struct {
	Index int
	Score float64
}

// Index is built once per request and searched with k equal to its size.
type Index interface {
	// Add inserts a vector. All vectors must share the dimension of the first.
	Add(vec []float32) error
	// Search returns up to k matches ordered by descending score.
	Search(query []float32, k int) ([]Match, error)
	Len() int
}

// New returns the index implementation for kind ("flat" or "hnsw").
func New(kind string) (Index, error) {
	switch kind {
	case "", "flat":
		return NewFlat(), nil
	case "hnsw":
		return NewHNSW(), nil
	default:
		return nil, fmt.Errorf("unknown vector index %q", kind)
	}
}

// Flat is an exact inner-product index.
type Flat struct {
	dim  int
	rows [][]float64
}

// NewFlat returns an empty exact index.
func NewFlat() *Flat {
	return &Flat{}
}

func (f *Flat) Add(vec []float32) error {
	if err := checkDim(&f.dim, len(vec)); err != nil {
		return err
	}
	normalized := database.NormalizeL2(vec)
	if err := checkFinite(normalized); err != nil {
		return err
	}
	f.rows = append(f.rows, normalized)
	return nil
}

func (f *Flat) Len() int {
	return len(f.rows)
}

func (f *Flat) Search(query []float32, k int) ([]Match, error) {
	if len(f.rows) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), f.dim)
	}

	q := database.NormalizeL2(query)
	matches := make([]Match, 0, len(f.rows))
	for i, row := range f.rows {
		score := database.Dot(q, row)
		if math.IsNaN(score) {
			continue
		}
		matches = append(matches, Match{Index: i, Score: score})
	}
	sortMatches(matches)
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

func checkDim(dim *int, n int) error {
	if n == 0 {
		return fmt.Errorf("empty vector")
	}
	if *dim == 0 {
		*dim = n
		return nil
	}
	if n != *dim {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", n, *dim)
	}
	return nil
}

func checkFinite(vec []float64) error {
	for i, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite component at position %d", i)
		}
	}
	return nil
}

// sortMatches orders by descending score; ties keep insertion order.
// NaN scores must be filtered out before, they break the ordering.
func sortMatches(m []Match) {
	sort.SliceStable(m, func(i, j int) bool {
		return m[i].Score > m[j].Score
	})
}
