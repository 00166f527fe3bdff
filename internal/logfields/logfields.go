package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyWaypoint   = "waypoint"
	KeyTask       = "task"
	KeyPath       = "path"
	KeyKind       = "kind"
	KeySource     = "source"
	KeyDest       = "dest"
	KeyDurationMS = "duration_ms"
	KeyChanges    = "changes"
	KeyTriggers   = "triggers"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id uint64) slog.Attr       { return slog.Uint64(KeyBuildID, id) }
func Waypoint(name string) slog.Attr    { return slog.String(KeyWaypoint, name) }
func Task(name string) slog.Attr        { return slog.String(KeyTask, name) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Kind(k string) slog.Attr           { return slog.String(KeyKind, k) }
func Source(dir string) slog.Attr       { return slog.String(KeySource, dir) }
func Dest(dir string) slog.Attr         { return slog.String(KeyDest, dir) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func Changes(n int) slog.Attr           { return slog.Int(KeyChanges, n) }
func Triggers(n int) slog.Attr          { return slog.Int(KeyTriggers, n) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
