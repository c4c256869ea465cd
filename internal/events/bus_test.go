package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/diffwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/diffwatch/internal/phase"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for notification")
	}
	var zero T
	return zero
}

func TestBus_TypedDelivery(t *testing.T) {
	b := NewBus()
	defer b.Close()

	views, unsubViews := Subscribe[ViewsChanged](b, 1)
	defer unsubViews()
	rejected, unsubRejected := Subscribe[EventRejected](b, 1)
	defer unsubRejected()

	require.NoError(t, b.Publish(t.Context(), ViewsChanged{Version: 3, Phase: phase.Writing}))

	got := receive(t, views)
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, phase.Writing, got.Phase)
	assert.Empty(t, rejected)
}

func TestBus_InterfaceSubscription(t *testing.T) {
	b := NewBus()
	defer b.Close()

	all, unsub := Subscribe[Notification](b, 2)
	defer unsub()

	require.NoError(t, b.Publish(t.Context(), LogAppended{EventID: 1}))
	require.NoError(t, b.Publish(t.Context(), EventRejected{Reason: "missing status"}))

	assert.Equal(t, "log_appended", receive(t, all).Kind())
	assert.Equal(t, "event_rejected", receive(t, all).Kind())
}

func TestBus_SlowSubscriberDoesNotStarveOthers(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsubSlow := Subscribe[LogAppended](b, 0)
	defer unsubSlow()
	fast, unsubFast := Subscribe[LogAppended](b, 1)
	defer unsubFast()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, LogAppended{EventID: 5})
	require.Error(t, err)
	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryRuntime, classified.Category())

	assert.Equal(t, int64(5), receive(t, fast).EventID)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsub := Subscribe[ViewsChanged](b, 1)
	assert.Equal(t, 1, SubscriberCount[ViewsChanged](b))
	unsub()
	unsub()
	assert.Equal(t, 0, SubscriberCount[ViewsChanged](b))

	_, ok := <-ch
	assert.False(t, ok)
	require.NoError(t, b.Publish(t.Context(), ViewsChanged{}))
}

func TestBus_Close(t *testing.T) {
	b := NewBus()
	ch, _ := Subscribe[ViewsChanged](b, 1)
	b.Close()
	b.Close()

	_, ok := <-ch
	require.False(t, ok)
	require.ErrorIs(t, b.Publish(t.Context(), ViewsChanged{}), ErrBusClosed)

	late, _ := Subscribe[ViewsChanged](b, 1)
	_, ok = <-late
	assert.False(t, ok)
}

func TestBus_RejectsNil(t *testing.T) {
	b := NewBus()
	defer b.Close()
	require.Error(t, b.Publish(t.Context(), nil))
}

func TestBus_UnsubscribeWhilePublishBlocked(t *testing.T) {
	b := NewBus()
	defer b.Close()

	_, unsub := Subscribe[LogAppended](b, 0)

	done := make(chan error, 1)
	go func() {
		done <- b.Publish(t.Context(), LogAppended{EventID: 9})
	}()

	time.Sleep(20 * time.Millisecond)
	require.NotPanics(t, unsub)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publish stayed blocked after unsubscribe")
	}
	assert.Equal(t, 0, SubscriberCount[LogAppended](b))
}

func TestBus_CloseWhilePublishBlocked(t *testing.T) {
	b := NewBus()

	_, _ = Subscribe[Notification](b, 0)

	done := make(chan error, 1)
	go func() {
		done <- b.Publish(t.Context(), ViewsChanged{Version: 1})
	}()

	time.Sleep(20 * time.Millisecond)
	require.NotPanics(t, b.Close)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publish stayed blocked after close")
	}
}

func TestBus_ConcurrentPublishAndUnsubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	for range 50 {
		_, unsub := Subscribe[LogAppended](b, 0)
		go unsub()
		ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
		require.NotPanics(t, func() { _ = b.Publish(ctx, LogAppended{EventID: 1}) })
		cancel()
	}
}
