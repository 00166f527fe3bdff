package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadRecursive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")
	writeFile(t, root, "sub/dir/b.txt", "world!")

	s, total, err := Load(root, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(11), total)
	assert.Equal(t, []string{"a.txt", "sub/dir/b.txt"}, s.Paths())

	content, ok := s.Get("sub/dir/b.txt")
	require.True(t, ok)
	assert.Equal(t, []byte("world!"), content)
}

func TestLoadMissingRootCreatesIt(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does", "not", "exist")

	s, total, err := Load(root, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(0), total)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoadFilterSkipsUnmatchedEntirely(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.md", "kept")
	writeFile(t, root, "skip.bin", "0123456789")

	filter, err := NewFilter([]string{"**/*.md", "*.md"})
	require.NoError(t, err)

	// Budget smaller than skip.bin: the filtered file must not count.
	s, total, err := Load(root, filter, 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.md"}, s.Paths())
	assert.Equal(t, int64(4), total)
}

func TestLoadSizeLimitFailsFast(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "0123456789")
	writeFile(t, root, "b.txt", "0123456789")

	_, _, err := Load(root, nil, 15)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSizeLimit))
}

func TestLoadUnsupportedEntry(t *testing.T) {
	root := t.TempDir()
	// Dangling symlink is neither a regular file nor a directory.
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere"), filepath.Join(root, "broken")))

	_, _, err := Load(root, nil, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedEntry))
}

func TestFilterGlobs(t *testing.T) {
	filter, err := NewFilter([]string{"**/*.md", "assets/*.css"})
	require.NoError(t, err)

	assert.True(t, filter.Match("deep/nested/readme.md"))
	assert.True(t, filter.Match("assets/site.css"))
	assert.False(t, filter.Match("assets/sub/site.css"))
	assert.False(t, filter.Match("main.go"))

	// Nil filter matches everything.
	var nilFilter *Filter
	assert.True(t, nilFilter.Match("anything/at/all"))
}

func TestFilterTopLevelDoubleStar(t *testing.T) {
	filter, err := NewFilter([]string{"**/*.txt"})
	require.NoError(t, err)
	assert.True(t, filter.Match("top.txt"), "**/ should also match zero directories")
}
