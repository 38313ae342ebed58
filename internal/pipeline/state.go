package pipeline

import (
	"slices"

	"github.com/kozaktomas/photo-curator/internal/compose"
	"github.com/kozaktomas/photo-curator/internal/query"
)

// State is threaded through the stages of one search request and discarded
// when the request ends.
type State struct {
	QueryStr  string
	ProjectID string

	PeopleNames []string
	Extraction  query.Extraction

	PeopleResult  *compose.ImageSet
	SceneResult   *compose.ImageSet
	SearchResults *compose.ImageSet

	Errors Errors
}

// Errors is an ordered, duplicate-free list of error messages. Values are
// never mutated in place.
type Errors []string

// With returns a new list with msgs appended, skipping ones already present.
func (e Errors) With(msgs ...string) Errors {
	out := slices.Clone(e)
	for _, m := range msgs {
		if m == "" || slices.Contains(out, m) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Failed reports whether any stage recorded an error.
func (s State) Failed() bool {
	return len(s.Errors) > 0
}
