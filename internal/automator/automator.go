// Package automator orchestrates the whole build lifecycle: prime, first
// build, then (in watch mode) a debounced rebuild loop fed by the source
// watcher and an optional periodic schedule. Builds are single-flight; a
// second build attempted while one runs yields ErrConcurrentBuild.
package automator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tripjs/trip/internal/build"
	"github.com/tripjs/trip/internal/dest"
	"github.com/tripjs/trip/internal/events"
	ferrors "github.com/tripjs/trip/internal/foundation/errors"
	"github.com/tripjs/trip/internal/history"
	"github.com/tripjs/trip/internal/logfields"
	"github.com/tripjs/trip/internal/pipeline"
	"github.com/tripjs/trip/internal/schedule"
	"github.com/tripjs/trip/internal/source"
	"github.com/tripjs/trip/internal/store"
	"github.com/tripjs/trip/internal/waypoint"
)

// ErrConcurrentBuild is returned when a build is requested while another is
// still in flight. The caller's trigger set stays pending and is retried.
var ErrConcurrentBuild = ferrors.BuildError("a build is already in flight").Build()

const (
	// quietWindow is how long the rebuild loop waits after the last source
	// event before starting a build, coalescing editor bursts.
	quietWindow = 10 * time.Millisecond

	// pollInterval is how often a deferred trigger set re-checks whether the
	// in-flight build has finished.
	pollInterval = 25 * time.Millisecond
)

// Automator drives builds for one source/destination pair.
type Automator struct {
	cfg     Config
	bus     *events.Bus
	src     *source.Source
	dst     *dest.Destination
	sched   *schedule.Scheduler
	session string

	mu       sync.Mutex
	building bool
	nextID   uint64
	builtOK  bool

	rebuildCh   chan string
	done        chan struct{}
	loopStarted atomic.Bool
	loopDone    chan struct{}
	stopOnce    sync.Once
}

// New validates cfg and assembles an automator around bus. The bus outlives
// the automator; callers may subscribe to build events before Start.
func New(cfg Config, bus *events.Bus) (*Automator, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	a := &Automator{
		cfg:       cfg,
		bus:       bus,
		src:       source.New(cfg.Source, cfg.Filter, cfg.ByteLimit, bus),
		dst:       dest.New(cfg.Dest),
		session:   uuid.NewString(),
		rebuildCh: make(chan string, 1),
		done:      make(chan struct{}),
		loopDone:  make(chan struct{}),
	}

	if cfg.Watch && cfg.Interval > 0 {
		a.sched, err = schedule.New(func(reason string) { a.RequestRebuild(reason) })
		if err != nil {
			return nil, err
		}
		if _, err := a.sched.SchedulePeriodicRebuild(cfg.Interval); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Session returns the UUID identifying this automator run in build history.
func (a *Automator) Session() string {
	return a.session
}

// Start primes the source, runs the first build, and in watch mode installs
// the filesystem watcher and rebuild loop before that build is awaited.
//
// Priming failures always return an error, in both modes; there is nothing
// to watch without an initial snapshot. A failed first build in watch mode
// is returned as Outcome.Err with a nil error so the watch loop stays alive
// and a later source change can still produce a good build.
func (a *Automator) Start(ctx context.Context) (*build.Outcome, error) {
	if err := a.src.Prime(ctx); err != nil {
		return nil, err
	}

	if a.cfg.Watch {
		if err := a.src.Watch(ctx); err != nil {
			return nil, err
		}
		a.loopStarted.Store(true)
		go a.loop(ctx)
		if a.sched != nil {
			a.sched.Start()
		}
	}

	outcome := a.runBuild(ctx, nil, true)

	if a.cfg.Watch {
		return outcome, nil
	}
	return outcome, outcome.Err
}

// RequestRebuild asks the watch loop for a full rebuild with an empty
// trigger set. It is a no-op outside watch mode. Requests collapse: one
// pending request is enough.
func (a *Automator) RequestRebuild(reason string) {
	select {
	case a.rebuildCh <- reason:
	default:
	}
}

// Stop shuts down the watcher, the rebuild loop and the schedule. An
// in-flight build is left to finish. Idempotent.
func (a *Automator) Stop() error {
	var err error
	a.stopOnce.Do(func() {
		if a.sched != nil {
			err = a.sched.Stop()
		}
		if stopErr := a.src.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
		close(a.done)
		// Wait only if the loop was actually launched; Start may have
		// failed before reaching it.
		if a.loopStarted.Load() {
			<-a.loopDone
		}
	})
	return err
}

// runBuild executes one single-flight build: pipeline over the current
// source snapshot, then destination sync. triggers is nil for the first
// build and the coalesced path set for rebuilds.
func (a *Automator) runBuild(ctx context.Context, triggers map[string]build.Kind, safeDelete bool) *build.Outcome {
	a.mu.Lock()
	if a.building {
		a.mu.Unlock()
		return &build.Outcome{Err: ErrConcurrentBuild}
	}
	a.building = true
	id := a.nextID
	a.mu.Unlock()

	started := time.Now()
	input := a.src.Files()

	a.publish(ctx, events.BuildStarting{Input: input, Triggers: triggers})
	slog.Info("Build starting",
		logfields.BuildID(id),
		logfields.Triggers(len(triggers)),
		slog.Int("files", input.Len()))

	result, err := a.execute(ctx, id, started, input, safeDelete)

	a.mu.Lock()
	a.building = false
	if err == nil {
		a.builtOK = true
	}
	if err == nil || a.builtOK {
		a.nextID++
	}
	a.mu.Unlock()

	a.record(ctx, id, started, result, err)

	if err != nil {
		a.publish(ctx, events.BuildFailed{Err: err})
		slog.Error("Build failed", logfields.BuildID(id), logfields.Error(err))
		return &build.Outcome{Err: err}
	}

	a.publish(ctx, events.BuildComplete{Result: result})
	slog.Info("Build complete",
		logfields.BuildID(id),
		logfields.DurationMS(float64(result.Duration.Microseconds())/1000),
		logfields.Changes(len(result.Changes)))
	return &build.Outcome{Result: result}
}

func (a *Automator) execute(ctx context.Context, id uint64, started time.Time, input *store.Store, safeDelete bool) (*build.Result, error) {
	// Warm the destination snapshot while the pipeline runs; Prime is
	// memoized so the sync below reuses this load.
	primeErr := make(chan error, 1)
	go func() { primeErr <- a.dst.Prime(ctx) }()

	env := waypoint.Env{Src: a.cfg.Source, Dest: a.cfg.Dest}
	steps, output, err := pipeline.Run(ctx, input, env, a.cfg.Waypoints, a.cfg.Recorder)
	if err != nil {
		<-primeErr
		return nil, err
	}

	if err := <-primeErr; err != nil {
		return nil, err
	}

	changes, err := a.dst.Update(ctx, output, safeDelete)
	if err != nil {
		return nil, err
	}

	return &build.Result{
		ID:         id,
		Duration:   time.Since(started),
		Steps:      steps,
		Changes:    changes,
		Input:      input,
		Output:     output,
		SourceSize: a.src.Size(),
		DestSize:   a.dst.Size(),
	}, nil
}

// record forwards the outcome to metrics and, when configured, history.
// History failures are logged, never propagated.
func (a *Automator) record(ctx context.Context, id uint64, started time.Time, result *build.Result, err error) {
	a.cfg.Recorder.ObserveBuildDuration(time.Since(started))

	rec := history.Record{
		BuildID:   id,
		Session:   a.session,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	if err != nil {
		a.cfg.Recorder.IncBuildOutcome(history.StatusFailed)
		rec.Status = history.StatusFailed
		rec.Error = err.Error()
	} else {
		a.cfg.Recorder.IncBuildOutcome(history.StatusSuccess)
		rec.Status = history.StatusSuccess
		rec.Changes = len(result.Changes)
		rec.Steps = len(result.Steps)

		var written, deleted int
		for _, change := range result.Changes {
			if change.Kind == build.KindDelete {
				deleted++
			} else {
				written++
			}
		}
		a.cfg.Recorder.AddFilesWritten(written)
		a.cfg.Recorder.AddFilesDeleted(deleted)
	}

	if a.cfg.History != nil {
		if appendErr := a.cfg.History.Append(ctx, rec); appendErr != nil {
			slog.Warn("Recording build history", logfields.Error(appendErr))
		}
	}
}

// loop is the watch-mode rebuild driver: coalesce source updates within the
// quiet window into one trigger map, and while a build is running keep
// exactly one pending set, polled until the build finishes.
func (a *Automator) loop(ctx context.Context) {
	defer close(a.loopDone)

	updates, unsubscribe := events.Subscribe[events.SourceUpdated](a.bus, 64)
	defer unsubscribe()

	quiet := newStoppedTimer()
	poll := newStoppedTimer()
	var quietC, pollC <-chan time.Time
	var pending map[string]build.Kind

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return

		case evt, ok := <-updates:
			if !ok {
				return
			}
			if pending == nil {
				pending = map[string]build.Kind{}
			}
			pending[evt.Path] = evt.Kind
			a.cfg.Recorder.IncWatchEvent(string(evt.Kind))
			resetTimer(quiet, quietWindow)
			quietC = quiet.C

		case reason := <-a.rebuildCh:
			// A synthetic trigger: rebuild everything, no specific paths.
			if pending == nil {
				pending = map[string]build.Kind{}
			}
			slog.Debug("Rebuild requested", slog.String("reason", reason))
			resetTimer(quiet, quietWindow)
			quietC = quiet.C

		case <-quietC:
			quietC = nil
			if !a.fire(ctx, pending) {
				resetTimer(poll, pollInterval)
				pollC = poll.C
				continue
			}
			pending = nil

		case <-pollC:
			pollC = nil
			if !a.fire(ctx, pending) {
				resetTimer(poll, pollInterval)
				pollC = poll.C
				continue
			}
			pending = nil
		}
	}
}

// fire attempts a rebuild with the given triggers. It reports false when the
// build slot was occupied, in which case the triggers must stay pending.
// Rebuild failures are already published by runBuild and are swallowed here.
func (a *Automator) fire(ctx context.Context, triggers map[string]build.Kind) bool {
	outcome := a.runBuild(ctx, triggers, false)
	return !errors.Is(outcome.Err, ErrConcurrentBuild)
}

func (a *Automator) publish(ctx context.Context, event any) {
	if err := a.bus.Publish(ctx, event); err != nil {
		slog.Warn("Dropping build event", logfields.Error(err))
	}
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	return t
}

func resetTimer(t *time.Timer, after time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(after)
}
