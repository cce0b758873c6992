package model

import "sort"

// ChangeSet is the set of top-level field identifiers that differ between
// two composition snapshots.
type ChangeSet map[string]struct{}

// NewChangeSet creates a ChangeSet from the given field identifiers.
func NewChangeSet(fields ...string) ChangeSet {
	cs := make(ChangeSet, len(fields))
	for _, f := range fields {
		cs[f] = struct{}{}
	}
	return cs
}

// Add records a changed field.
func (cs ChangeSet) Add(field string) {
	cs[field] = struct{}{}
}

// Has reports whether the field is in the set.
func (cs ChangeSet) Has(field string) bool {
	_, ok := cs[field]
	return ok
}

// Empty reports whether nothing changed.
func (cs ChangeSet) Empty() bool {
	return len(cs) == 0
}

// Only reports whether the set is non-empty and contains no fields other
// than the given ones.
func (cs ChangeSet) Only(fields ...string) bool {
	if len(cs) == 0 {
		return false
	}
	allowed := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		allowed[f] = struct{}{}
	}
	for f := range cs {
		if _, ok := allowed[f]; !ok {
			return false
		}
	}
	return true
}

// Intersects reports whether any of the given fields is in the set.
func (cs ChangeSet) Intersects(fields ...string) bool {
	for _, f := range fields {
		if cs.Has(f) {
			return true
		}
	}
	return false
}

// Sorted returns the field identifiers in lexical order, suitable for the
// compute request's changed_params list.
func (cs ChangeSet) Sorted() []string {
	out := make([]string, 0, len(cs))
	for f := range cs {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
