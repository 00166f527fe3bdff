// Package events carries the typed control-flow events exchanged between the
// source watcher, the automator, and external listeners (reporters, dev
// servers, publishers). The bus itself is in bus.go.
package events

import (
	"github.com/tripjs/trip/internal/build"
	"github.com/tripjs/trip/internal/store"
)

// SourceUpdated is published by the source watcher for every effective
// filesystem change under the source root.
type SourceUpdated struct {
	Kind build.Kind
	Path string
}

// WatchFailed is published when the watcher hits a per-file read error or a
// size-limit violation. The watch itself stays alive.
type WatchFailed struct {
	Err error
}

// BuildStarting announces a build about to run. Triggers is nil for the
// first build and holds the coalesced path-to-kind trigger set for
// watch-driven rebuilds.
type BuildStarting struct {
	Input    *store.Store
	Triggers map[string]build.Kind
}

// BuildComplete announces a successful build.
type BuildComplete struct {
	Result *build.Result
}

// BuildFailed announces a failed build. The automator remains usable.
type BuildFailed struct {
	Err error
}
