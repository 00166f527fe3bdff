package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveBuildDuration(time.Second)
	r.ObserveWaypointDuration("markdown", time.Millisecond)
	r.IncBuildOutcome("success")
	r.AddFilesWritten(3)
	r.AddFilesDeleted(1)
	r.IncWatchEvent("modify")
}

func TestPrometheusRecorderCounts(t *testing.T) {
	r := NewPrometheusRecorder()

	r.IncBuildOutcome("success")
	r.IncBuildOutcome("success")
	r.IncBuildOutcome("failed")
	r.AddFilesWritten(5)
	r.IncWatchEvent("delete")
	r.ObserveBuildDuration(250 * time.Millisecond)

	families, err := r.registry.Gather()
	require.NoError(t, err)

	byName := map[string]float64{}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			key := fam.GetName()
			for _, label := range m.GetLabel() {
				key += "{" + label.GetName() + "=" + label.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				byName[key] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				byName[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	assert.Equal(t, float64(2), byName["trip_builds_total{outcome=success}"])
	assert.Equal(t, float64(1), byName["trip_builds_total{outcome=failed}"])
	assert.Equal(t, float64(5), byName["trip_files_written_total"])
	assert.Equal(t, float64(1), byName["trip_watch_events_total{kind=delete}"])
	assert.Equal(t, float64(1), byName["trip_build_duration_seconds"])
}

func TestHandlerServesRegistry(t *testing.T) {
	r := NewPrometheusRecorder()
	assert.NotNil(t, r.Handler())
	// Registering twice on the same registry would panic; a fresh recorder
	// must always come with a fresh registry.
	assert.NotPanics(t, func() { NewPrometheusRecorder() })
}
