// Package source owns the source directory: the primed snapshot, the
// recursive filesystem watcher that keeps it authoritative, and the change
// notifications that drive rebuilds.
package source

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/unicode/norm"

	"github.com/tripjs/trip/internal/build"
	"github.com/tripjs/trip/internal/dirstate"
	"github.com/tripjs/trip/internal/events"
	"github.com/tripjs/trip/internal/logfields"
	"github.com/tripjs/trip/internal/snapshot"
)

// redundantWindow is how recently a path must have been touched for a
// byte-identical rewrite to be suppressed. Editors that save twice in quick
// succession stay quiet; an intentional re-save later still triggers.
const redundantWindow = 250 * time.Millisecond

// Source wraps the source directory role.
type Source struct {
	*dirstate.State

	bus *events.Bus
	now func() time.Time

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	started  bool
	watchErr error
	done     chan struct{}

	// lastTouched is only accessed from the event loop (and from tests that
	// drive handlers directly).
	lastTouched map[string]time.Time
}

// New creates an unprimed, unwatched source.
func New(root string, filter *snapshot.Filter, maxBytes int64, bus *events.Bus) *Source {
	return &Source{
		State:       dirstate.New(root, filter, maxBytes),
		bus:         bus,
		now:         time.Now,
		lastTouched: map[string]time.Time{},
	}
}

// Watch installs a recursive filesystem watch under the root and starts the
// event loop. It is idempotent: repeated calls return the first attempt's
// result. The source must be primed first so the watcher has an
// authoritative snapshot to diff incoming events against.
func (s *Source) Watch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return s.watchErr
	}
	s.started = true

	if err := s.RequirePrimed(); err != nil {
		s.watchErr = err
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.watchErr = err
		return err
	}

	if err := addRecursive(watcher, s.Root()); err != nil {
		watcher.Close()
		s.watchErr = err
		return err
	}

	s.watcher = watcher
	s.done = make(chan struct{})
	go s.loop(ctx, watcher)

	slog.Debug("Source watch installed", logfields.Source(s.Root()))
	return nil
}

// Stop closes the watch handle. Idempotent, safe if Watch was never called.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.watcher = nil
	close(s.done)
	return err
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// loop holds its own reference to the watcher; Stop nils the field
// concurrently, and closing the handle ends the loop through the closed
// channels.
func (s *Source) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(ctx, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.publishError(ctx, err)
		}
	}
}

func (s *Source) handleEvent(ctx context.Context, event fsnotify.Event) {
	rel, ok := s.relPath(event.Name)
	if !ok {
		return
	}

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		s.handleDelete(ctx, rel)
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			if os.IsNotExist(err) {
				// Lost a race with a fast rename or delete.
				s.handleDelete(ctx, rel)
			} else {
				s.publishError(ctx, err)
			}
			return
		}
		if info.IsDir() {
			s.handleNewDirectory(ctx, event.Name)
			return
		}
		s.handleWrite(ctx, rel, event.Name)
	}
}

// handleNewDirectory registers watches for a freshly created subtree and
// replays its files as writes; files moved in with the directory would
// otherwise never produce their own events.
func (s *Source) handleNewDirectory(ctx context.Context, dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if w := s.currentWatcher(); w != nil {
				return w.Add(path)
			}
			return filepath.SkipAll
		}
		if rel, ok := s.relPath(path); ok {
			s.handleWrite(ctx, rel, path)
		}
		return nil
	})
	if err != nil {
		s.publishError(ctx, err)
	}
}

func (s *Source) handleWrite(ctx context.Context, rel, abs string) {
	if !s.Filter().Match(rel) {
		return
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.handleDelete(ctx, rel)
			return
		}
		s.publishError(ctx, err)
		return
	}

	now := s.now()
	last := s.lastTouched[rel]
	s.lastTouched[rel] = now

	prev, existed := s.Files().Get(rel)
	if existed && bytes.Equal(prev, content) {
		if now.Sub(last) <= redundantWindow {
			// Redundant no-op rewrite in rapid succession.
			return
		}
		s.publishUpdate(ctx, build.KindModify, rel)
		return
	}

	newTotal := s.Size() + int64(len(content))
	if existed {
		newTotal -= int64(len(prev))
	}
	if s.MaxBytes() > 0 && newTotal > s.MaxBytes() {
		s.publishError(ctx, snapshot.ErrSizeLimit.WithContext("path", rel).WithContext("total", newTotal))
		return
	}

	s.SetFile(rel, content)
	kind := build.KindModify
	if !existed {
		kind = build.KindAdd
	}
	s.publishUpdate(ctx, kind, rel)
}

func (s *Source) handleDelete(ctx context.Context, rel string) {
	s.RemoveFile(rel)
	delete(s.lastTouched, rel)
	// Touch-only deletes still notify: the path may exist on disk only,
	// or a directory may have vanished wholesale.
	s.publishUpdate(ctx, build.KindDelete, rel)
}

func (s *Source) publishUpdate(ctx context.Context, kind build.Kind, rel string) {
	if err := s.bus.Publish(ctx, events.SourceUpdated{Kind: kind, Path: rel}); err != nil {
		slog.Warn("Dropping source update", logfields.Path(rel), logfields.Error(err))
	}
}

func (s *Source) publishError(ctx context.Context, err error) {
	slog.Warn("Source watch error", logfields.Source(s.Root()), logfields.Error(err))
	if pubErr := s.bus.Publish(ctx, events.WatchFailed{Err: err}); pubErr != nil {
		slog.Warn("Dropping watch error event", logfields.Error(pubErr))
	}
}

func (s *Source) currentWatcher() *fsnotify.Watcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watcher
}

func (s *Source) relPath(abs string) (string, bool) {
	rel, err := filepath.Rel(s.Root(), abs)
	if err != nil || rel == "." {
		return "", false
	}
	return norm.NFC.String(filepath.ToSlash(rel)), true
}
