// Package dest owns the destination directory: its primed snapshot and the
// diff-and-sync engine that mirrors pipeline output to disk with minimal
// writes, bounded-concurrency I/O, recoverable deletes, and empty-parent
// pruning.
package dest

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/tripjs/trip/internal/build"
	"github.com/tripjs/trip/internal/dirstate"
	ferrors "github.com/tripjs/trip/internal/foundation/errors"
	"github.com/tripjs/trip/internal/logfields"
	"github.com/tripjs/trip/internal/store"
)

// defaultWorkers bounds the fan-out of concurrent disk writes and deletes
// within one update.
const defaultWorkers = 8

// Destination wraps the destination directory role.
type Destination struct {
	*dirstate.State

	workers int
	trash   Trash

	// updateMu serializes Update calls; the automator already serializes
	// builds, this guards direct callers.
	updateMu sync.Mutex
}

// New creates a destination for root. Priming a missing root creates it and
// yields an empty snapshot.
func New(root string) *Destination {
	return &Destination{
		State:   dirstate.New(root, nil, 0),
		workers: defaultWorkers,
	}
}

// Update diffs next against the current snapshot and applies the difference
// to disk. The stored snapshot is swapped before any I/O so the in-memory
// view reflects intent even while writes are in flight.
//
// When safeDelete is set, removed files are moved to a recoverable trash
// directory instead of being unlinked. The returned changes list writes
// first, then deletions.
func (d *Destination) Update(ctx context.Context, next *store.Store, safeDelete bool) ([]build.Change, error) {
	if err := d.RequirePrimed(); err != nil {
		return nil, err
	}

	d.updateMu.Lock()
	defer d.updateMu.Unlock()

	prev := d.Files()
	if prev.Equal(next) {
		// Zero disk I/O; the reference still moves forward.
		d.Replace(next)
		return nil, nil
	}

	d.Replace(next)

	var writes, deletes []build.Change
	for _, path := range next.Paths() {
		content, _ := next.Get(path)
		if old, existed := prev.Get(path); existed {
			if !bytes.Equal(old, content) {
				writes = append(writes, build.Change{Kind: build.KindModify, Path: path, Content: content, Previous: old})
			}
		} else {
			writes = append(writes, build.Change{Kind: build.KindAdd, Path: path, Content: content})
		}
	}
	for _, path := range prev.Paths() {
		if !next.Has(path) {
			old, _ := prev.Get(path)
			deletes = append(deletes, build.Change{Kind: build.KindDelete, Path: path, Previous: old})
		}
	}

	if err := d.apply(ctx, writes, deletes, safeDelete); err != nil {
		return nil, err
	}

	if err := d.pruneEmptyParents(deletes); err != nil {
		return nil, err
	}

	slog.Debug("Destination synchronized",
		logfields.Dest(d.Root()),
		slog.Int("writes", len(writes)),
		slog.Int("deletes", len(deletes)))

	return append(writes, deletes...), nil
}

// apply performs all writes and deletes with bounded concurrency and does
// not return until every operation has settled.
func (d *Destination) apply(ctx context.Context, writes, deletes []build.Change, safeDelete bool) error {
	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	run := func(fn func() error) {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := fn(); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}

	for _, change := range writes {
		run(func() error { return d.writeFile(change.Path, change.Content) })
	}
	for _, change := range deletes {
		run(func() error { return d.removeFile(change.Path, safeDelete) })
	}

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (d *Destination) writeFile(relPath string, content []byte) error {
	path := filepath.Join(d.Root(), filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create parent directory").
			WithContext("path", relPath).Build()
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write destination file").
			WithContext("path", relPath).Build()
	}
	return nil
}

func (d *Destination) removeFile(relPath string, safeDelete bool) error {
	path := filepath.Join(d.Root(), filepath.FromSlash(relPath))

	var err error
	if safeDelete {
		err = d.trash.Discard(path, relPath)
	} else {
		err = os.Remove(path)
	}
	if err != nil && !os.IsNotExist(err) {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "remove destination file").
			WithContext("path", relPath).Build()
	}
	return nil
}

// pruneEmptyParents walks upward from each deleted path's directory toward
// (but excluding) the destination root, removing directories left empty.
// "Directory not empty" stops the walk quietly; any other removal error
// fails the update.
func (d *Destination) pruneEmptyParents(deletes []build.Change) error {
	root := filepath.Clean(d.Root())

	for _, change := range deletes {
		dir := filepath.Dir(filepath.Join(root, filepath.FromSlash(change.Path)))

	walk:
		for dir != root && len(dir) > len(root) {
			err := os.Remove(dir)
			switch {
			case err == nil:
			case os.IsNotExist(err):
				// Another deletion's walk already removed it.
			case isNotEmpty(err):
				break walk // A sibling still lives here.
			default:
				return ferrors.WrapError(err, ferrors.CategoryFileSystem, "prune empty directory").
					WithContext("dir", dir).Build()
			}
			dir = filepath.Dir(dir)
		}
	}
	return nil
}

func isNotEmpty(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST)
}

var _ dirstate.Primable = (*Destination)(nil)
