package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripjs/trip/internal/build"
	"github.com/tripjs/trip/internal/events"
)

func newPrimed(t *testing.T, maxBytes int64) (*Source, *events.Bus, <-chan events.SourceUpdated, <-chan events.WatchFailed) {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	src := New(t.TempDir(), nil, maxBytes, bus)
	require.NoError(t, src.Prime(context.Background()))

	updates, unsubU := events.Subscribe[events.SourceUpdated](bus, 16)
	t.Cleanup(unsubU)
	errs, unsubE := events.Subscribe[events.WatchFailed](bus, 16)
	t.Cleanup(unsubE)

	return src, bus, updates, errs
}

func drain[T any](ch <-chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}

func writeSource(t *testing.T, src *Source, rel, content string) string {
	t.Helper()
	abs := filepath.Join(src.Root(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return abs
}

func TestHandleWriteAddsAndEmits(t *testing.T) {
	src, _, updates, _ := newPrimed(t, 0)
	abs := writeSource(t, src, "a.txt", "hello")

	src.handleWrite(context.Background(), "a.txt", abs)

	got := drain(updates)
	require.Len(t, got, 1)
	assert.Equal(t, events.SourceUpdated{Kind: build.KindAdd, Path: "a.txt"}, got[0])

	content, ok := src.Files().Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), content)
	assert.Equal(t, int64(5), src.Size())
}

func TestHandleWriteModifyAdjustsTotal(t *testing.T) {
	src, _, updates, _ := newPrimed(t, 0)
	abs := writeSource(t, src, "a.txt", "hello")
	src.handleWrite(context.Background(), "a.txt", abs)
	drain(updates)

	writeSource(t, src, "a.txt", "hi")
	src.handleWrite(context.Background(), "a.txt", abs)

	got := drain(updates)
	require.Len(t, got, 1)
	assert.Equal(t, build.KindModify, got[0].Kind)
	assert.Equal(t, int64(2), src.Size())
}

func TestRedundantRewriteSuppression(t *testing.T) {
	src, _, updates, _ := newPrimed(t, 0)
	abs := writeSource(t, src, "a.txt", "same")

	current := time.Now()
	src.now = func() time.Time { return current }

	src.handleWrite(context.Background(), "a.txt", abs)
	require.Len(t, drain(updates), 1)

	// Identical rewrite 100ms later: suppressed.
	current = current.Add(100 * time.Millisecond)
	src.handleWrite(context.Background(), "a.txt", abs)
	assert.Empty(t, drain(updates))

	// Identical rewrite 300ms after the last touch: an intentional
	// re-save, surfaced as a modify.
	current = current.Add(300 * time.Millisecond)
	src.handleWrite(context.Background(), "a.txt", abs)
	got := drain(updates)
	require.Len(t, got, 1)
	assert.Equal(t, build.KindModify, got[0].Kind)
}

func TestHandleDeleteAlwaysEmits(t *testing.T) {
	src, _, updates, _ := newPrimed(t, 0)

	// Untracked path: still notifies.
	src.handleDelete(context.Background(), "ghost.txt")
	got := drain(updates)
	require.Len(t, got, 1)
	assert.Equal(t, build.KindDelete, got[0].Kind)

	abs := writeSource(t, src, "a.txt", "bye")
	src.handleWrite(context.Background(), "a.txt", abs)
	drain(updates)

	src.handleDelete(context.Background(), "a.txt")
	got = drain(updates)
	require.Len(t, got, 1)
	assert.False(t, src.Files().Has("a.txt"))
	assert.Equal(t, int64(0), src.Size())
}

func TestWriteLostRaceBecomesDelete(t *testing.T) {
	src, _, updates, _ := newPrimed(t, 0)
	abs := writeSource(t, src, "a.txt", "hi")
	src.handleWrite(context.Background(), "a.txt", abs)
	drain(updates)

	require.NoError(t, os.Remove(abs))
	src.handleWrite(context.Background(), "a.txt", abs)

	got := drain(updates)
	require.Len(t, got, 1)
	assert.Equal(t, build.KindDelete, got[0].Kind)
	assert.False(t, src.Files().Has("a.txt"))
}

func TestSizeLimitViolationEmitsError(t *testing.T) {
	src, _, updates, errs := newPrimed(t, 4)
	abs := writeSource(t, src, "big.txt", "way too large")

	src.handleWrite(context.Background(), "big.txt", abs)

	assert.Empty(t, drain(updates))
	got := drain(errs)
	require.Len(t, got, 1)
	assert.False(t, src.Files().Has("big.txt"), "store must stay untouched")
}

func TestWatchEndToEnd(t *testing.T) {
	src, _, updates, _ := newPrimed(t, 0)
	require.NoError(t, src.Watch(context.Background()))
	defer src.Stop()

	// Idempotent: a second call shares the first result.
	require.NoError(t, src.Watch(context.Background()))

	writeSource(t, src, "live.txt", "event driven")

	deadline := time.After(3 * time.Second)
	for {
		select {
		case evt := <-updates:
			if evt.Path == "live.txt" {
				content, ok := src.Files().Get("live.txt")
				require.True(t, ok)
				assert.Equal(t, []byte("event driven"), content)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for watch event")
		}
	}
}

func TestStopDuringEventBurst(t *testing.T) {
	src, _, _, _ := newPrimed(t, 0)
	require.NoError(t, src.Watch(context.Background()))

	// Keep the watcher busy while it is being shut down.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			name := "f" + string(rune('a'+i%26)) + ".txt"
			_ = os.WriteFile(filepath.Join(src.Root(), name), []byte("x"), 0o644)
		}
	}()

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, src.Stop())
	<-done
	require.NoError(t, src.Stop())
}

func TestStopWithoutWatchIsNoop(t *testing.T) {
	src, _, _, _ := newPrimed(t, 0)
	assert.NoError(t, src.Stop())
	assert.NoError(t, src.Stop())
}
