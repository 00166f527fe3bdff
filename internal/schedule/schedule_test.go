package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodicRebuildFires(t *testing.T) {
	var fired atomic.Int32
	s, err := New(func(reason string) {
		assert.Equal(t, "schedule", reason)
		fired.Add(1)
	})
	require.NoError(t, err)

	id, err := s.SchedulePeriodicRebuild(20 * time.Millisecond)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	s.Start()
	defer func() { require.NoError(t, s.Stop()) }()

	require.Eventually(t, func() bool { return fired.Load() >= 2 },
		2*time.Second, 10*time.Millisecond)
}
