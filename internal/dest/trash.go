package dest

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Trash is the reversible delete sink used for the very first sync, when the
// destination may still hold user data. Discarded files are moved into a
// uuid-named session directory under the system temp dir, preserving their
// relative layout.
type Trash struct {
	once sync.Once
	dir  string
	err  error
}

// Dir returns the session trash directory, creating it on first use.
func (t *Trash) Dir() (string, error) {
	t.once.Do(func() {
		dir := filepath.Join(os.TempDir(), "trip-trash-"+uuid.NewString())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.err = err
			return
		}
		t.dir = dir
	})
	return t.dir, t.err
}

// Discard moves the file at absPath into the trash under relPath. Rename is
// attempted first; cross-device moves fall back to copy-and-unlink.
func (t *Trash) Discard(absPath, relPath string) error {
	dir, err := t.Dir()
	if err != nil {
		return err
	}

	target := filepath.Join(dir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	if err := os.Rename(absPath, target); err == nil {
		return nil
	}

	src, err := os.Open(absPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(absPath)
}
