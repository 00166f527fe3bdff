package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripjs/trip/internal/build"
)

func TestPublishDeliversToTypedSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsubscribe := Subscribe[SourceUpdated](bus, 4)
	defer unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), SourceUpdated{Kind: build.KindAdd, Path: "a.txt"}))

	select {
	case evt := <-ch:
		assert.Equal(t, build.KindAdd, evt.Kind)
		assert.Equal(t, "a.txt", evt.Path)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishSkipsOtherEventTypes(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsubscribe := Subscribe[BuildFailed](bus, 1)
	defer unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), SourceUpdated{Kind: build.KindDelete, Path: "a.txt"}))

	select {
	case <-ch:
		t.Fatal("BuildFailed subscriber must not receive SourceUpdated")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishBlocksUntilContextCanceled(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// Zero buffer and no reader: publish must respect ctx.
	_, unsubscribe := Subscribe[SourceUpdated](bus, 0)
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := bus.Publish(ctx, SourceUpdated{Kind: build.KindAdd, Path: "a.txt"})
	require.Error(t, err)
}

func TestUnsubscribeClosesAndStopsDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsubscribe := Subscribe[SourceUpdated](bus, 1)
	unsubscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)

	// No subscribers left: publish completes without delivering anywhere.
	require.NoError(t, bus.Publish(context.Background(), SourceUpdated{Kind: build.KindAdd, Path: "a.txt"}))
}

func TestCloseClosesSubscriptionChannels(t *testing.T) {
	bus := NewBus()
	ch, _ := Subscribe[BuildComplete](bus, 1)

	bus.Close()

	_, open := <-ch
	assert.False(t, open)

	err := bus.Publish(context.Background(), BuildComplete{})
	require.Error(t, err)
}
