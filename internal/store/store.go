// Package store implements the immutable path-to-content snapshot that flows
// through the build pipeline. A Store maps slash-separated relative paths to
// raw byte content and is replaced wholesale on every update; it is never
// mutated in place. Structural sharing keeps copy-on-write updates cheap.
package store

import (
	"bytes"
	"maps"
	"slices"
)

// Store is an immutable snapshot of a directory's contents.
//
// The zero value is not usable; construct stores with Empty or FromMap. All
// mutating operations return a new Store and leave the receiver untouched.
type Store struct {
	files map[string][]byte
}

// Empty returns a store with no entries.
func Empty() *Store {
	return &Store{files: map[string][]byte{}}
}

// FromMap builds a store from a path-to-content map. The map is copied;
// content slices are shared, so callers must not mutate them afterwards.
func FromMap(files map[string][]byte) *Store {
	s := &Store{files: make(map[string][]byte, len(files))}
	maps.Copy(s.files, files)
	return s
}

// Get returns the content stored at path and whether the path exists.
func (s *Store) Get(path string) ([]byte, bool) {
	content, ok := s.files[path]
	return content, ok
}

// Has reports whether path is present.
func (s *Store) Has(path string) bool {
	_, ok := s.files[path]
	return ok
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.files)
}

// Paths returns all paths in sorted order.
func (s *Store) Paths() []string {
	paths := slices.Collect(maps.Keys(s.files))
	slices.Sort(paths)
	return paths
}

// TotalSize returns the cumulative byte size of all entries.
func (s *Store) TotalSize() int64 {
	var total int64
	for _, content := range s.files {
		total += int64(len(content))
	}
	return total
}

// With returns a new store with path set to content.
func (s *Store) With(path string, content []byte) *Store {
	next := make(map[string][]byte, len(s.files)+1)
	maps.Copy(next, s.files)
	next[path] = content
	return &Store{files: next}
}

// Without returns a new store with path removed. Removing an absent path
// returns the receiver unchanged.
func (s *Store) Without(path string) *Store {
	if !s.Has(path) {
		return s
	}
	next := make(map[string][]byte, len(s.files)-1)
	for p, c := range s.files {
		if p != path {
			next[p] = c
		}
	}
	return &Store{files: next}
}

// Equal reports deep equality: same key set and byte-identical content per
// key. Pointer-identical stores and buffers short-circuit the comparison,
// which is why the pipeline preserves unchanged buffers across waypoints.
func (s *Store) Equal(other *Store) bool {
	if s == other {
		return true
	}
	if other == nil || len(s.files) != len(other.files) {
		return false
	}
	for path, content := range s.files {
		otherContent, ok := other.files[path]
		if !ok || len(content) != len(otherContent) {
			return false
		}
		if len(content) == 0 {
			continue
		}
		if &content[0] == &otherContent[0] {
			continue
		}
		if !bytes.Equal(content, otherContent) {
			return false
		}
	}
	return true
}

// Map returns a copy of the underlying map. Content slices are shared.
func (s *Store) Map() map[string][]byte {
	out := make(map[string][]byte, len(s.files))
	maps.Copy(out, s.files)
	return out
}
