// Package compose holds the image set type shared by the resolvers and the
// rule that combines people and scene results.
package compose

import (
	"github.com/kozaktomas/photo-curator/internal/errs"
)

// ImageSet is an ordered set of image ids with their storage URLs.
// IDs carries the order; URLs may hold entries for every id.
type ImageSet struct {
	IDs  []string          `json:"image_ids"`
	URLs map[string]string `json:"image_links"`
}

// NewImageSet builds a set from ids in order, dropping duplicates.
func NewImageSet(ids []string, urls map[string]string) *ImageSet {
	set := &ImageSet{IDs: make([]string, 0, len(ids)), URLs: make(map[string]string, len(ids))}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		set.IDs = append(set.IDs, id)
		if u, ok := urls[id]; ok {
			set.URLs[id] = u
		}
	}
	return set
}

// Len returns the number of ids; nil sets are empty.
func (s *ImageSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.IDs)
}

// Contains reports whether id is in the set.
func (s *ImageSet) Contains(id string) bool {
	if s == nil {
		return false
	}
	for _, v := range s.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// IntersectIDs keeps the ids of base that appear in every other list,
// preserving base order.
func IntersectIDs(base []string, others ...[]string) []string {
	out := make([]string, 0, len(base))
	sets := make([]map[string]struct{}, len(others))
	for i, o := range others {
		sets[i] = make(map[string]struct{}, len(o))
		for _, id := range o {
			sets[i][id] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(base))
outer:
	for _, id := range base {
		if _, dup := seen[id]; dup {
			continue
		}
		for _, s := range sets {
			if _, ok := s[id]; !ok {
				continue outer
			}
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Combine merges the people and scene results. A single present result is
// returned as is. With both present the result holds the images found by
// both, in scene order; the URL comes from the people result and falls back
// to the scene result. With neither present it fails with
// errs.ErrNoCriteriaResolved.
func Combine(people, scene *ImageSet) (*ImageSet, error) {
	switch {
	case people == nil && scene == nil:
		return nil, errs.ErrNoCriteriaResolved
	case scene == nil:
		return people, nil
	case people == nil:
		return scene, nil
	}

	ids := IntersectIDs(scene.IDs, people.IDs)
	out := &ImageSet{IDs: ids, URLs: make(map[string]string, len(ids))}
	for _, id := range ids {
		if u, ok := people.URLs[id]; ok {
			out.URLs[id] = u
		} else if u, ok := scene.URLs[id]; ok {
			out.URLs[id] = u
		}
	}
	return out, nil
}
