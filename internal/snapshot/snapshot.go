// Package snapshot loads a directory tree into an in-memory content store.
// Priming a directory that does not exist yet creates it and yields an empty
// snapshot; everything else is read recursively, subject to an optional glob
// filter and a cumulative byte budget.
package snapshot

import (
	"io/fs"
	"os"
	"path/filepath"

	ferrors "github.com/tripjs/trip/internal/foundation/errors"
	"github.com/tripjs/trip/internal/store"
)

// Sentinel errors, matched with errors.Is. Instances carry per-path context.
var (
	// ErrSizeLimit is returned as soon as the running byte total of loaded
	// files passes the configured budget.
	ErrSizeLimit = ferrors.FileSystemError("size limit exceeded").Build()

	// ErrUnsupportedEntry is returned for directory entries that are neither
	// regular files nor directories (devices, sockets, dangling symlinks).
	ErrUnsupportedEntry = ferrors.FileSystemError("unsupported entry type").Build()
)

// Load reads every file under root into a content store.
//
// Files not matching filter are skipped entirely: not read and not counted
// against maxBytes. maxBytes <= 0 means unbounded. The limit check is
// fail-fast: the walk aborts the moment the running total passes the budget.
// A missing root is not an error; it is created and an empty store returned.
func Load(root string, filter *Filter, maxBytes int64) (*store.Store, int64, error) {
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			return nil, 0, ferrors.WrapError(err, ferrors.CategoryFileSystem, "stat snapshot root").
				WithContext("path", root).Build()
		}
		// MkdirAll tolerates a concurrent create by another process.
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, 0, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create snapshot root").
				WithContext("path", root).Build()
		}
		return store.Empty(), 0, nil
	}

	files := map[string][]byte{}
	var total int64

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return ErrUnsupportedEntry.WithContext("path", path)
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !filter.Match(rel) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		total += int64(len(content))
		if maxBytes > 0 && total > maxBytes {
			return ErrSizeLimit.WithContext("path", rel).WithContext("total", total)
		}
		files[rel] = content
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return store.FromMap(files), total, nil
}
