package events

import (
	"context"
	"reflect"
	"sync"

	ferrors "github.com/tripjs/trip/internal/foundation/errors"
)

// Bus is the typed in-process event bus connecting the source watcher, the
// automator and optional listeners (publishers, reporters).
//
// Publish blocks until every matching subscriber has accepted the event or
// ctx is canceled; a slow subscriber exerts backpressure instead of losing
// events. The bus is not durable; persistent build history lives in
// internal/history.
type Bus struct {
	mu      sync.Mutex
	subs    map[reflect.Type][]*subscription
	counter uint64
	closed  bool
}

type subscription struct {
	id      uint64
	deliver func(ctx context.Context, evt any) error
	close   func()
}

func NewBus() *Bus {
	return &Bus{subs: map[reflect.Type][]*subscription{}}
}

// Subscribe registers a buffered channel for events of the concrete type T.
// The returned func removes the subscription and closes the channel; it is
// safe to call more than once.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	ch := make(chan T, buffer)
	eventType := reflect.TypeFor[T]()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}

	b.counter++
	id := b.counter

	var once sync.Once
	closeCh := func() { once.Do(func() { close(ch) }) }

	b.subs[eventType] = append(b.subs[eventType], &subscription{
		id: id,
		deliver: func(ctx context.Context, evt any) error {
			select {
			case ch <- evt.(T):
				return nil
			case <-ctx.Done():
				return ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "event delivery canceled").
					WithContext("event_type", eventType.String()).Build()
			}
		},
		close: closeCh,
	})
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		list := b.subs[eventType]
		for i, sub := range list {
			if sub.id == id {
				b.subs[eventType] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if len(b.subs[eventType]) == 0 {
			delete(b.subs, eventType)
		}
		b.mu.Unlock()
		closeCh()
	}
	return ch, unsubscribe
}

// Publish delivers evt to every subscriber of its concrete type, in
// subscription order.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if evt == nil {
		return ferrors.ValidationError("event cannot be nil").Build()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ferrors.RuntimeError("event bus is closed").Build()
	}
	list := b.subs[reflect.TypeOf(evt)]
	targets := make([]*subscription, len(list))
	copy(targets, list)
	b.mu.Unlock()

	for _, sub := range targets {
		if err := sub.deliver(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every subscription channel. Further publishes fail and
// further subscriptions come back already closed.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true

	var all []*subscription
	for _, list := range b.subs {
		all = append(all, list...)
	}
	b.subs = map[reflect.Type][]*subscription{}
	b.mu.Unlock()

	for _, sub := range all {
		sub.close()
	}
}
