// Package waypoint defines the user-facing transform contract of the build
// pipeline. A waypoint is a named function mapping a full directory snapshot
// to a new one; the pipeline runs waypoints strictly in order and normalizes
// whatever shape they return back into raw bytes.
package waypoint

import (
	"context"
)

// Env is the immutable context handed to every waypoint invocation.
type Env struct {
	Src  string
	Dest string
}

// Deferred is a pending content computation. Normalization awaits it and
// stores the resulting bytes.
type Deferred func(ctx context.Context) ([]byte, error)

// Func transforms a snapshot tree. Implementations may mutate and return the
// tree they were given, or build and return a fresh one. Returning nil is an
// error; the pipeline rejects it as invalid output.
type Func func(ctx context.Context, tree *Tree, env Env) (*Tree, error)

// Waypoint is one stage of the pipeline. Name is metadata for diagnostics
// only; it tags every error the stage produces.
type Waypoint struct {
	Name string
	Fn   Func
}
