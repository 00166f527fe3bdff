// Package dirstate holds the snapshot state shared by the source and
// destination roles: a root path, the current content snapshot, a running
// byte total, and memoized priming. Source and destination embed this state
// and add their own behavior (watching vs. syncing) on top.
package dirstate

import (
	"context"
	"sync"

	ferrors "github.com/tripjs/trip/internal/foundation/errors"
	"github.com/tripjs/trip/internal/snapshot"
	"github.com/tripjs/trip/internal/store"
)

// Primable is the capability shared by source and destination: one-time
// population from disk plus read access to the latest snapshot.
type Primable interface {
	Prime(ctx context.Context) error
	Files() *store.Store
}

// State is the mutable snapshot state of one directory role.
//
// The snapshot reference is replaced atomically under the lock; readers
// always observe the last completed update, never a partial one. Only the
// owning role's update path may call the mutators.
type State struct {
	root     string
	filter   *snapshot.Filter
	maxBytes int64

	primeOnce sync.Once
	primeErr  error
	primed    bool

	mu    sync.RWMutex
	files *store.Store
	size  int64
}

// New creates an unprimed state for root. filter may be nil; maxBytes <= 0
// means unbounded.
func New(root string, filter *snapshot.Filter, maxBytes int64) *State {
	return &State{
		root:     root,
		filter:   filter,
		maxBytes: maxBytes,
		files:    store.Empty(),
	}
}

// Root returns the directory this state mirrors.
func (s *State) Root() string {
	return s.root
}

// Filter returns the glob filter applied during priming and watching.
func (s *State) Filter() *snapshot.Filter {
	return s.filter
}

// MaxBytes returns the configured byte budget, zero for unbounded.
func (s *State) MaxBytes() int64 {
	return s.maxBytes
}

// Prime loads the initial snapshot from disk. It runs at most once per
// instance; concurrent callers block on the same in-flight load and share
// its error. A missing root yields an empty snapshot and creates the
// directory.
func (s *State) Prime(ctx context.Context) error {
	s.primeOnce.Do(func() {
		if err := ctx.Err(); err != nil {
			s.primeErr = err
			return
		}
		files, size, err := snapshot.Load(s.root, s.filter, s.maxBytes)
		if err != nil {
			s.primeErr = err
			return
		}
		s.mu.Lock()
		s.files = files
		s.size = size
		s.primed = true
		s.mu.Unlock()
	})
	return s.primeErr
}

// Primed reports whether priming completed successfully.
func (s *State) Primed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primed
}

// RequirePrimed returns a classified error unless priming succeeded.
func (s *State) RequirePrimed() error {
	if !s.Primed() {
		return ferrors.InternalError("directory state used before priming").
			WithContext("root", s.root).Build()
	}
	return nil
}

// Files returns the current snapshot.
func (s *State) Files() *store.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files
}

// Size returns the running byte total of the current snapshot.
func (s *State) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Replace swaps in a new snapshot wholesale.
func (s *State) Replace(files *store.Store) {
	s.mu.Lock()
	s.files = files
	s.size = files.TotalSize()
	s.mu.Unlock()
}

// SetFile replaces one path's content, adjusting the byte total. It returns
// the new total so callers can enforce budgets.
func (s *State) SetFile(path string, content []byte) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.files.Get(path); ok {
		s.size -= int64(len(old))
	}
	s.size += int64(len(content))
	s.files = s.files.With(path, content)
	return s.size
}

// RemoveFile drops one path if present, adjusting the byte total. It
// reports whether the path was tracked.
func (s *State) RemoveFile(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.files.Get(path)
	if !ok {
		return false
	}
	s.size -= int64(len(old))
	s.files = s.files.Without(path)
	return true
}
