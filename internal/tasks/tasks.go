// Package tasks is a small named-task runner for project chores that do not
// fit the build pipeline (cleanup, deployment, content generation). Tasks
// run strictly in sequence; a failure aborts the remainder.
package tasks

import (
	"context"
	"log/slog"
	"sort"
	"time"

	ferrors "github.com/tripjs/trip/internal/foundation/errors"
	"github.com/tripjs/trip/internal/logfields"
)

// Func is one task body. Long-running tasks should honor ctx.
type Func func(ctx context.Context) error

// Runner holds a named task registry.
type Runner struct {
	tasks map[string]Func
	order []string
}

// NewRunner creates an empty runner.
func NewRunner() *Runner {
	return &Runner{tasks: map[string]Func{}}
}

// Register adds or replaces a task under name. Registration order is kept
// for listing; re-registering keeps the original position.
func (r *Runner) Register(name string, fn Func) {
	if _, exists := r.tasks[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tasks[name] = fn
}

// Names returns all registered task names in registration order.
func (r *Runner) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Has reports whether a task is registered under name.
func (r *Runner) Has(name string) bool {
	_, ok := r.tasks[name]
	return ok
}

// Run executes the named tasks strictly in the given sequence. Every name is
// checked before anything runs so a typo cannot leave a prefix of the list
// executed. A task failure aborts the remainder, wrapped with the task name.
func (r *Runner) Run(ctx context.Context, names ...string) error {
	var unknown []string
	for _, name := range names {
		if !r.Has(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return ferrors.NotFoundError("unknown task").
			WithContext("tasks", unknown).Build()
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}

		started := time.Now()
		slog.Info("Task starting", logfields.Task(name))

		if err := r.tasks[name](ctx); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryRuntime, "task failed").
				WithContext("task", name).Build()
		}

		slog.Info("Task finished",
			logfields.Task(name),
			logfields.DurationMS(float64(time.Since(started).Microseconds())/1000))
	}
	return nil
}
