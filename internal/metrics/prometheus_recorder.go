package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder backed by a prometheus registry.
type PrometheusRecorder struct {
	registry *prom.Registry

	buildDuration    prom.Histogram
	waypointDuration *prom.HistogramVec
	buildOutcomes    *prom.CounterVec
	filesWritten     prom.Counter
	filesDeleted     prom.Counter
	watchEvents      *prom.CounterVec
}

// NewPrometheusRecorder registers trip's collectors on a fresh registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prom.NewRegistry()

	r := &PrometheusRecorder{
		registry: registry,
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Name:    "trip_build_duration_seconds",
			Help:    "Duration of complete builds.",
			Buckets: prom.DefBuckets,
		}),
		waypointDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "trip_waypoint_duration_seconds",
			Help:    "Duration of individual waypoint invocations.",
			Buckets: prom.DefBuckets,
		}, []string{"waypoint"}),
		buildOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Name: "trip_builds_total",
			Help: "Completed builds by outcome.",
		}, []string{"outcome"}),
		filesWritten: prom.NewCounter(prom.CounterOpts{
			Name: "trip_files_written_total",
			Help: "Files written to the destination.",
		}),
		filesDeleted: prom.NewCounter(prom.CounterOpts{
			Name: "trip_files_deleted_total",
			Help: "Files deleted from the destination.",
		}),
		watchEvents: prom.NewCounterVec(prom.CounterOpts{
			Name: "trip_watch_events_total",
			Help: "Source watch events by kind.",
		}, []string{"kind"}),
	}

	registry.MustRegister(
		r.buildDuration,
		r.waypointDuration,
		r.buildOutcomes,
		r.filesWritten,
		r.filesDeleted,
		r.watchEvents,
	)
	return r
}

// Handler exposes the registry for an HTTP metrics endpoint.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	r.buildDuration.Observe(d.Seconds())
}

func (r *PrometheusRecorder) ObserveWaypointDuration(waypoint string, d time.Duration) {
	r.waypointDuration.WithLabelValues(waypoint).Observe(d.Seconds())
}

func (r *PrometheusRecorder) IncBuildOutcome(outcome string) {
	r.buildOutcomes.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) AddFilesWritten(n int) {
	r.filesWritten.Add(float64(n))
}

func (r *PrometheusRecorder) AddFilesDeleted(n int) {
	r.filesDeleted.Add(float64(n))
}

func (r *PrometheusRecorder) IncWatchEvent(kind string) {
	r.watchEvents.WithLabelValues(kind).Inc()
}

var _ Recorder = (*PrometheusRecorder)(nil)
var _ Recorder = NoopRecorder{}
