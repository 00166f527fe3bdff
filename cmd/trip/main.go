package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/tripjs/trip/internal/automator"
	"github.com/tripjs/trip/internal/config"
	"github.com/tripjs/trip/internal/events"
	ferrors "github.com/tripjs/trip/internal/foundation/errors"
	"github.com/tripjs/trip/internal/history"
	"github.com/tripjs/trip/internal/logfields"
	"github.com/tripjs/trip/internal/metrics"
	"github.com/tripjs/trip/internal/publish"
	"github.com/tripjs/trip/internal/tasks"
	"github.com/tripjs/trip/internal/waypoint"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"trip.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct{} `cmd:"" help:"Build the source directory into the destination once"`

	Watch struct{} `cmd:"" help:"Build, then watch the source directory and rebuild on change"`

	Tasks struct {
		Names []string `arg:"" optional:"" help:"Task names to run in order; empty lists available tasks"`
	} `cmd:"" help:"Run project maintenance tasks"`

	Init struct {
		Force bool `help:"Overwrite an existing configuration file"`
	} `cmd:"" help:"Write a starter trip.yaml"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	adapter := ferrors.NewCLIErrorAdapter(CLI.Verbose, slog.Default())

	var err error
	switch ctx.Command() {
	case "build":
		err = runBuild(false)
	case "watch":
		err = runBuild(true)
	case "tasks", "tasks <names>":
		err = runTasks(CLI.Tasks.Names)
	case "init":
		err = runInit(CLI.Config, CLI.Init.Force)
	default:
		err = fmt.Errorf("unknown command: %s", ctx.Command())
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, adapter.FormatError(err))
		os.Exit(adapter.ExitCodeFor(err))
	}
}

func runBuild(watch bool) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}

	acfg, cleanup, err := assemble(cfg, watch)
	if err != nil {
		return err
	}
	defer cleanup()

	bus := events.NewBus()
	defer bus.Close()

	a, err := automator.New(acfg, bus)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var publisher *publish.Publisher
	if cfg.NATSURL != "" {
		publisher, err = publish.New(cfg.NATSURL, bus)
		if err != nil {
			return err
		}
		defer publisher.Close()
		go publisher.Run(ctx)
	}

	outcome, err := a.Start(ctx)
	if err != nil {
		return err
	}

	if !watch {
		result := outcome.Result
		slog.Info("Build finished",
			logfields.BuildID(result.ID),
			logfields.Changes(len(result.Changes)),
			logfields.DurationMS(float64(result.Duration.Microseconds())/1000))
		return nil
	}

	if outcome.Failed() {
		// Keep watching; the next source change can still produce a good
		// build.
		slog.Error("Initial build failed, watching for changes", logfields.Error(outcome.Err))
	}

	slog.Info("Watching for changes", logfields.Source(acfg.Source))
	<-ctx.Done()
	return a.Stop()
}

// assemble turns the file config into an automator config, wiring metrics
// and history when configured. The returned cleanup closes what was opened.
func assemble(cfg *config.Config, watch bool) (automator.Config, func(), error) {
	cleanup := func() {}

	filter, err := cfg.SnapshotFilter()
	if err != nil {
		return automator.Config{}, cleanup, err
	}
	interval, err := cfg.RebuildInterval()
	if err != nil {
		return automator.Config{}, cleanup, err
	}

	waypoints, err := resolveWaypoints(cfg.Waypoints)
	if err != nil {
		return automator.Config{}, cleanup, err
	}

	acfg := automator.Config{
		Source:    cfg.Source,
		Dest:      cfg.Dest,
		Filter:    filter,
		ByteLimit: cfg.ByteLimit,
		Watch:     watch,
		Interval:  interval,
		Waypoints: waypoints,
	}

	if cfg.MetricsListen != "" {
		recorder := metrics.NewPrometheusRecorder()
		acfg.Recorder = recorder
		go serveMetrics(cfg.MetricsListen, recorder)
	}

	if cfg.HistoryDB != "" {
		store, err := history.NewSQLiteStore(cfg.HistoryDB)
		if err != nil {
			return automator.Config{}, cleanup, err
		}
		acfg.History = store
		cleanup = func() {
			if closeErr := store.Close(); closeErr != nil {
				slog.Warn("Closing build history", logfields.Error(closeErr))
			}
		}
	}

	return acfg, cleanup, nil
}

func resolveWaypoints(names []string) ([]waypoint.Waypoint, error) {
	specs := make([]waypoint.Spec, 0, len(names))
	for _, name := range names {
		specs = append(specs, waypoint.Ref(name))
	}

	resolutions := waypoint.Resolve(specs, waypoint.Stock)
	if missing := waypoint.Missing(resolutions); len(missing) > 0 {
		return nil, ferrors.ValidationError("unknown waypoints").
			WithContext("names", strings.Join(missing, ", ")).Build()
	}
	return waypoint.Waypoints(resolutions), nil
}

func serveMetrics(addr string, recorder *metrics.PrometheusRecorder) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())

	slog.Info("Metrics listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("Metrics listener stopped", logfields.Error(err))
	}
}

func runTasks(names []string) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}

	runner := tasks.NewRunner()
	registerBuiltinTasks(runner, cfg)

	if len(names) == 0 {
		fmt.Println("Available tasks:")
		for _, name := range runner.Names() {
			fmt.Printf("  %s\n", name)
		}
		return nil
	}

	return runner.Run(context.Background(), names...)
}

func registerBuiltinTasks(runner *tasks.Runner, cfg *config.Config) {
	runner.Register("clean", func(ctx context.Context) error {
		if err := os.RemoveAll(cfg.Dest); err != nil {
			return err
		}
		slog.Info("Removed destination", logfields.Dest(cfg.Dest))
		return nil
	})

	runner.Register("history", func(ctx context.Context) error {
		if cfg.HistoryDB == "" {
			return ferrors.ConfigError("history_db is not configured").Build()
		}
		store, err := history.NewSQLiteStore(cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.Recent(ctx, 20)
		if err != nil {
			return err
		}
		for _, rec := range records {
			fmt.Printf("%s  build %d  %-7s  %s  %d changes\n",
				rec.StartedAt.Format("2006-01-02 15:04:05"),
				rec.BuildID, rec.Status, rec.Duration.Round(time.Millisecond), rec.Changes)
		}
		return nil
	})
}

const starterConfig = `# trip project configuration
source: src
dest: dist

# Optional: only include matching paths in the build.
# filter:
#   - "**/*.md"
#   - "assets/**"

# Optional: cap the total bytes loaded from the source directory.
# byte_limit: 104857600

# Optional stock pipeline stages.
# waypoints:
#   - markdown

# Optional integrations.
# interval: 30s
# metrics_listen: ":9090"
# nats_url: nats://localhost:4222
# history_db: .trip/history.db
`

func runInit(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return ferrors.ValidationError("configuration file already exists").
				WithContext("path", path).Build()
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
		return err
	}
	slog.Info("Wrote configuration", logfields.Path(path))
	return nil
}
