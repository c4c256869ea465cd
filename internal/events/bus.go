// Package events is the in-process notification bus between a session and its
// display layer.
package events

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
)

// Bus delivers typed notifications to subscribers.
//
// Subscriptions are typed through generics. Publish blocks until every
// matching subscriber accepted the notification or ctx is done. Close closes
// every subscription channel. Nothing is persisted.
type Bus struct {
	mu        sync.RWMutex
	subs      map[reflect.Type]map[uint64]*subscriber
	nextID    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

type subscriber struct {
	deliver func(ctx context.Context, n any) error
	close   func()
}

// ErrBusClosed is returned by Publish after Close.
var ErrBusClosed = ferrors.RuntimeError("notification bus is closed").Warning().Build()

func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type]map[uint64]*subscriber)}
}

// Subscribe registers a subscription for notifications of type T. An
// interface T receives every published type that implements it.
//
// The returned func unsubscribes and closes the channel. Subscribing to a
// closed bus yields an already closed channel.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	key := reflect.TypeFor[T]()
	ch := make(chan T, buffer)

	// Senders hold mu for reading while they send; closing wakes them
	// through done and then takes mu for writing, so ch is never closed
	// under a pending send.
	var (
		mu       sync.RWMutex
		isClosed bool
		done     = make(chan struct{})
		chOnce   sync.Once
	)
	closeCh := func() {
		chOnce.Do(func() {
			close(done)
			mu.Lock()
			isClosed = true
			close(ch)
			mu.Unlock()
		})
	}

	if b.closed.Load() {
		closeCh()
		return ch, func() {}
	}

	id := b.nextID.Add(1)
	sub := &subscriber{
		deliver: func(ctx context.Context, n any) error {
			v, ok := n.(T)
			if !ok {
				return ferrors.InternalError("notification type mismatch").
					WithContext("expected", key.String()).
					WithContext("actual", reflect.TypeOf(n).String()).
					Build()
			}
			mu.RLock()
			defer mu.RUnlock()
			if isClosed {
				return nil
			}
			select {
			case ch <- v:
				return nil
			case <-done:
				// Unsubscribed while waiting; nobody is left to receive.
				return nil
			case <-ctx.Done():
				return ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "notification delivery canceled").
					WithContext("type", key.String()).
					Build()
			}
		},
		close: closeCh,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		closeCh()
		return ch, func() {}
	}
	if b.subs[key] == nil {
		b.subs[key] = make(map[uint64]*subscriber)
	}
	b.subs[key][id] = sub

	var unsubOnce sync.Once
	return ch, func() {
		unsubOnce.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if m, ok := b.subs[key]; ok {
				delete(m, id)
				if len(m) == 0 {
					delete(b.subs, key)
				}
			}
			closeCh()
		})
	}
}

// SubscriberCount returns the number of live subscriptions for T.
func SubscriberCount[T any](b *Bus) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[reflect.TypeFor[T]()])
}

// Publish delivers n to every matching subscriber. A subscriber that does not
// accept n before ctx is done is skipped; the remaining subscribers still get
// it and the skips are reported as one joined error.
func (b *Bus) Publish(ctx context.Context, n any) error {
	if n == nil {
		return ferrors.ValidationError("notification cannot be nil").Build()
	}
	if ctx == nil {
		return ferrors.ValidationError("context cannot be nil").Build()
	}
	if b.closed.Load() {
		return ErrBusClosed
	}

	t := reflect.TypeOf(n)
	b.mu.RLock()
	var targets []*subscriber
	for key, m := range b.subs {
		if key != t && (key.Kind() != reflect.Interface || !t.Implements(key)) {
			continue
		}
		for _, s := range m {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	var errs []error
	for _, s := range targets {
		if err := s.deliver(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes the bus and all subscription channels. It is idempotent.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.closed.Store(true)

		b.mu.Lock()
		var all []*subscriber
		for _, m := range b.subs {
			for _, s := range m {
				all = append(all, s)
			}
		}
		b.subs = make(map[reflect.Type]map[uint64]*subscriber)
		b.mu.Unlock()

		for _, s := range all {
			s.close()
		}
	})
}
