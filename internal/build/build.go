// Package build defines the shared domain types that flow between the
// pipeline, the sync engine, and the automator: per-path change records,
// per-waypoint steps, and the result of one complete build.
package build

import (
	"time"

	"github.com/tripjs/trip/internal/store"
)

// Kind classifies a single path transition.
type Kind string

const (
	KindAdd    Kind = "add"
	KindModify Kind = "modify"
	KindDelete Kind = "delete"
)

// Change describes one path's transition during a sync. Previous is absent
// for adds, Content is absent for deletes. Changes are produced fresh per
// sync and handed to listeners; they are not stored long-term.
type Change struct {
	Kind     Kind
	Path     string
	Content  []byte
	Previous []byte
}

// Step records one waypoint invocation: the snapshot it received and the
// normalized snapshot it produced.
type Step struct {
	Waypoint string
	Input    *store.Store
	Output   *store.Store
}

// Result describes one completed build.
//
// ID is monotonically increasing per automator instance, starting at 0.
type Result struct {
	ID         uint64
	Duration   time.Duration
	Steps      []Step
	Changes    []Change
	Input      *store.Store
	Output     *store.Store
	SourceSize int64
	DestSize   int64
}

// Outcome is the tagged result of an automator start: exactly one of Result
// or Err is set. A failed initial build in watch mode surfaces here as a
// value so the watch loop can stay alive while callers still see the error.
type Outcome struct {
	Result *Result
	Err    error
}

// Failed reports whether the outcome carries an error.
func (o *Outcome) Failed() bool {
	return o != nil && o.Err != nil
}
