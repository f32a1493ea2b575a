package notam

import (
	"encoding/json"
	"sort"
	"strings"
)

// Set is an unordered collection of lower-case labels. It marshals to a
// sorted JSON array.
type Set map[string]struct{}

// NewSet builds a set from the given labels, normalizing them
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, item := range items {
		s.Add(item)
	}
	return s
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Add inserts a label. Blank labels are ignored.
func (s Set) Add(label string) {
	if label = normalizeLabel(label); label != "" {
		s[label] = struct{}{}
	}
}

// Has reports membership
func (s Set) Has(label string) bool {
	_, ok := s[normalizeLabel(label)]
	return ok
}

// HasAny reports whether any of the labels is a member
func (s Set) HasAny(labels ...string) bool {
	for _, l := range labels {
		if s.Has(l) {
			return true
		}
	}
	return false
}

func (s Set) Len() int { return len(s) }

// Clone returns an independent copy. A nil set clones to an empty one.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Union returns a new set holding the members of both
func (s Set) Union(other Set) Set {
	out := s.Clone()
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same members
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if _, ok := other[k]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the members in lexical order, never nil
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewSet(items...)
	return nil
}
