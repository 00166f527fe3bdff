package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyStore(t *testing.T) {
	s := Empty()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(0), s.TotalSize())
	assert.Empty(t, s.Paths())
	assert.False(t, s.Has("a.txt"))
}

func TestWithAndWithoutAreCopyOnWrite(t *testing.T) {
	base := Empty()
	a := base.With("a.txt", []byte("hi"))
	b := a.With("b/c.txt", []byte("there"))

	assert.Equal(t, 0, base.Len())
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, []string{"a.txt", "b/c.txt"}, b.Paths())
	assert.Equal(t, int64(7), b.TotalSize())

	removed := b.Without("a.txt")
	assert.True(t, b.Has("a.txt"), "original must be untouched")
	assert.False(t, removed.Has("a.txt"))

	// Removing an absent path is a no-op returning the same store.
	assert.Same(t, removed, removed.Without("missing.txt"))
}

func TestEqualIsDeep(t *testing.T) {
	a := FromMap(map[string][]byte{"a.txt": []byte("hi"), "b.txt": []byte("yo")})
	b := FromMap(map[string][]byte{"a.txt": []byte("hi"), "b.txt": []byte("yo")})
	c := FromMap(map[string][]byte{"a.txt": []byte("hi"), "b.txt": []byte("no")})
	d := FromMap(map[string][]byte{"a.txt": []byte("hi")})

	require.True(t, a.Equal(b))
	require.True(t, b.Equal(a))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
	assert.False(t, a.Equal(nil))
	assert.True(t, a.Equal(a))
}

func TestEqualHandlesEmptyContent(t *testing.T) {
	a := FromMap(map[string][]byte{"empty.txt": {}})
	b := FromMap(map[string][]byte{"empty.txt": {}})
	assert.True(t, a.Equal(b))
}

func TestEqualSharedBuffers(t *testing.T) {
	content := []byte("shared")
	a := Empty().With("a.txt", content)
	b := Empty().With("a.txt", content)
	assert.True(t, a.Equal(b))
}

func TestFromMapCopiesKeySet(t *testing.T) {
	m := map[string][]byte{"a.txt": []byte("hi")}
	s := FromMap(m)
	m["b.txt"] = []byte("sneaky")
	assert.False(t, s.Has("b.txt"))
}
