package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRecent(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	started := time.Now().Truncate(time.Millisecond)
	for i := range 3 {
		err := store.Append(context.Background(), Record{
			BuildID:   uint64(i),
			Session:   "s1",
			Status:    StatusSuccess,
			StartedAt: started.Add(time.Duration(i) * time.Second),
			Duration:  42 * time.Millisecond,
			Changes:   i,
			Steps:     2,
		})
		require.NoError(t, err)
	}

	recent, err := store.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// Newest first; build ids stay monotonic within the session.
	assert.Equal(t, uint64(2), recent[0].BuildID)
	assert.Equal(t, uint64(1), recent[1].BuildID)
	assert.Equal(t, 42*time.Millisecond, recent[0].Duration)
}

func TestFailedRecordKeepsError(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(context.Background(), Record{
		BuildID: 7, Session: "s2", Status: StatusFailed,
		StartedAt: time.Now(), Error: "waypoint exploded",
	}))

	recent, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, StatusFailed, recent[0].Status)
	assert.Equal(t, "waypoint exploded", recent[0].Error)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), Record{
		BuildID: 0, Session: "s3", Status: StatusSuccess, StartedAt: time.Now(),
	}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	recent, err := reopened.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "s3", recent[0].Session)
}
