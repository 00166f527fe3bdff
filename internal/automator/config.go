package automator

import (
	"path/filepath"
	"strings"
	"time"

	ferrors "github.com/tripjs/trip/internal/foundation/errors"
	"github.com/tripjs/trip/internal/history"
	"github.com/tripjs/trip/internal/metrics"
	"github.com/tripjs/trip/internal/snapshot"
	"github.com/tripjs/trip/internal/waypoint"
)

// Config describes one automator instance. Source and Dest are resolved
// against Cwd and must both stay inside it; the destination is owned by the
// automator and must not overlap the source in either direction.
type Config struct {
	Cwd       string
	Source    string
	Dest      string
	Filter    *snapshot.Filter
	ByteLimit int64

	Watch    bool
	Interval time.Duration

	Waypoints []waypoint.Waypoint

	// Optional wiring. Nil values mean no-op metrics and no persisted
	// history.
	Recorder metrics.Recorder
	History  history.Store
}

// normalize resolves paths and fills defaults, then validates. The returned
// config has absolute Cwd, Source and Dest.
func (c Config) normalize() (Config, error) {
	if c.Cwd == "" {
		c.Cwd = "."
	}
	cwd, err := filepath.Abs(c.Cwd)
	if err != nil {
		return c, ferrors.ConfigError("resolve working directory").
			WithContext("cwd", c.Cwd).Build()
	}
	c.Cwd = cwd

	if c.Source == "" {
		return c, ferrors.ConfigError("source directory is required").Build()
	}
	if c.Dest == "" {
		return c, ferrors.ConfigError("destination directory is required").Build()
	}

	c.Source = resolve(cwd, c.Source)
	c.Dest = resolve(cwd, c.Dest)

	if !within(cwd, c.Source) {
		return c, ferrors.ConfigError("source escapes the working directory").
			WithContext("source", c.Source).WithContext("cwd", cwd).Build()
	}
	if !within(cwd, c.Dest) {
		return c, ferrors.ConfigError("destination escapes the working directory").
			WithContext("dest", c.Dest).WithContext("cwd", cwd).Build()
	}
	if c.Source == c.Dest {
		return c, ferrors.ConfigError("source and destination are the same directory").
			WithContext("path", c.Source).Build()
	}
	if within(c.Source, c.Dest) || within(c.Dest, c.Source) {
		return c, ferrors.ConfigError("source and destination must not nest").
			WithContext("source", c.Source).WithContext("dest", c.Dest).Build()
	}

	if c.ByteLimit < 0 {
		return c, ferrors.ConfigError("byte limit must be positive when set").
			WithContext("byte_limit", c.ByteLimit).Build()
	}
	if c.Interval < 0 {
		return c, ferrors.ConfigError("rebuild interval must be positive when set").
			WithContext("interval", c.Interval.String()).Build()
	}

	if c.Recorder == nil {
		c.Recorder = metrics.NoopRecorder{}
	}
	return c, nil
}

func resolve(cwd, path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	return filepath.Clean(path)
}

// within reports whether path sits at or below root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
