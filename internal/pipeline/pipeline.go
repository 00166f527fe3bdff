// Package pipeline executes an ordered list of waypoints over a snapshot.
// Waypoint i+1 never starts before waypoint i's output is normalized; any
// failure aborts the run tagged with the offending waypoint's name.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/tripjs/trip/internal/build"
	ferrors "github.com/tripjs/trip/internal/foundation/errors"
	"github.com/tripjs/trip/internal/logfields"
	"github.com/tripjs/trip/internal/metrics"
	"github.com/tripjs/trip/internal/store"
	"github.com/tripjs/trip/internal/waypoint"
)

// ErrInvalidOutput is the sentinel for waypoints that return a nil tree.
var ErrInvalidOutput = ferrors.PipelineError("waypoint returned no output").Build()

// Run maps initial through waypoints in order and returns the per-waypoint
// steps plus the final snapshot.
func Run(ctx context.Context, initial *store.Store, env waypoint.Env, waypoints []waypoint.Waypoint, rec metrics.Recorder) ([]build.Step, *store.Store, error) {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	current := initial
	steps := make([]build.Step, 0, len(waypoints))

	for _, wp := range waypoints {
		started := time.Now()

		tree := waypoint.NewTree(current)
		result, err := wp.Fn(ctx, tree, env)
		if err != nil {
			return nil, nil, tagged(err, wp.Name)
		}
		if result == nil {
			return nil, nil, ErrInvalidOutput.WithContext("waypoint", wp.Name)
		}

		var output *store.Store
		if result == tree && !result.Dirty() {
			// Pass-through waypoint: output is the input, no copy.
			output = current
		} else {
			output, err = result.Normalize(ctx, current)
			if err != nil {
				return nil, nil, tagged(err, wp.Name)
			}
		}

		steps = append(steps, build.Step{Waypoint: wp.Name, Input: current, Output: output})
		rec.ObserveWaypointDuration(wp.Name, time.Since(started))
		slog.Debug("Waypoint finished",
			logfields.Waypoint(wp.Name),
			logfields.DurationMS(float64(time.Since(started).Microseconds())/1000),
			slog.Int("files", output.Len()))

		current = output
	}

	return steps, current, nil
}

func tagged(err error, name string) error {
	if classified, ok := ferrors.AsClassified(err); ok {
		return classified.WithContext("waypoint", name)
	}
	return ferrors.WrapError(err, ferrors.CategoryPipeline, "waypoint failed").
		WithContext("waypoint", name).Build()
}
