// Package metrics provides observability hooks for build activity. The
// default NoopRecorder keeps instrumented code free of nil checks; the
// Prometheus implementation is swapped in when a metrics listen address is
// configured.
package metrics

import "time"

// Recorder defines observability hooks for build and watch metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	ObserveBuildDuration(d time.Duration)
	ObserveWaypointDuration(waypoint string, d time.Duration)
	IncBuildOutcome(outcome string) // outcome: success|failed
	AddFilesWritten(n int)
	AddFilesDeleted(n int)
	IncWatchEvent(kind string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(time.Duration)            {}
func (NoopRecorder) ObserveWaypointDuration(string, time.Duration) {}
func (NoopRecorder) IncBuildOutcome(string)                        {}
func (NoopRecorder) AddFilesWritten(int)                           {}
func (NoopRecorder) AddFilesDeleted(int)                           {}
func (NoopRecorder) IncWatchEvent(string)                          {}
