package waypoint

import (
	"bytes"
	"context"
	"maps"
	"slices"

	ferrors "github.com/tripjs/trip/internal/foundation/errors"
	"github.com/tripjs/trip/internal/store"
)

// ErrInvalidContent is the sentinel for waypoint output values that are not
// bytes, strings, or deferred computations. Matched with errors.Is.
var ErrInvalidContent = ferrors.PipelineError("invalid content type").Build()

// Tree is the mutable working shape a waypoint operates on. It is seeded
// from an immutable snapshot; values may be []byte, string, or Deferred.
// The tree tracks whether it was mutated so the pipeline can skip
// normalization for pass-through waypoints.
type Tree struct {
	entries map[string]any
	dirty   bool
}

// NewTree seeds a tree from a snapshot. Content buffers are shared, not
// copied; waypoints replace values, they do not write into them.
func NewTree(s *store.Store) *Tree {
	entries := make(map[string]any, s.Len())
	for path, content := range s.Map() {
		entries[path] = content
	}
	return &Tree{entries: entries}
}

// Set stores content at path. Accepted types are []byte, string, and
// Deferred; anything else is rejected during normalization, not here, so the
// error carries the owning waypoint's name.
func (t *Tree) Set(path string, content any) {
	t.entries[path] = content
	t.dirty = true
}

// Remove drops a path. Removing an absent path is a no-op.
func (t *Tree) Remove(path string) {
	if _, ok := t.entries[path]; ok {
		delete(t.entries, path)
		t.dirty = true
	}
}

// Get returns the raw value at path.
func (t *Tree) Get(path string) (any, bool) {
	v, ok := t.entries[path]
	return v, ok
}

// Bytes returns the value at path when it is already raw bytes.
func (t *Tree) Bytes(path string) ([]byte, bool) {
	if v, ok := t.entries[path].([]byte); ok {
		return v, true
	}
	return nil, false
}

// Has reports whether path is present.
func (t *Tree) Has(path string) bool {
	_, ok := t.entries[path]
	return ok
}

// Len returns the number of entries.
func (t *Tree) Len() int {
	return len(t.entries)
}

// Paths returns all paths in sorted order.
func (t *Tree) Paths() []string {
	paths := slices.Collect(maps.Keys(t.entries))
	slices.Sort(paths)
	return paths
}

// Dirty reports whether the tree was mutated since it was seeded.
func (t *Tree) Dirty() bool {
	return t.dirty
}

// Normalize converts the tree back into an immutable snapshot.
//
// Deferred values are awaited; strings become UTF-8 bytes; raw bytes pass
// through. Any other value type fails with ErrInvalidContent. When the
// normalized bytes equal the pre-waypoint content at the same path, the old
// buffer is kept so unchanged entries stay pointer-identical downstream.
func (t *Tree) Normalize(ctx context.Context, prev *store.Store) (*store.Store, error) {
	files := make(map[string][]byte, len(t.entries))

	for path, value := range t.entries {
		var content []byte

		switch v := value.(type) {
		case []byte:
			content = v
		case string:
			content = []byte(v)
		case Deferred:
			resolved, err := v(ctx)
			if err != nil {
				return nil, err
			}
			content = resolved
		default:
			return nil, ErrInvalidContent.WithContext("path", path)
		}

		if old, ok := prev.Get(path); ok && bytes.Equal(old, content) {
			content = old
		}
		files[path] = content
	}

	return store.FromMap(files), nil
}
