package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/vidtags/internal/metrics"
)

func TestDispatcher_DeliversToSubscribers(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t), nil, Options{Workers: 2})
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })

	var mu sync.Mutex
	var got []Event
	d.Subscribe(TagsAdded, func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
		return nil
	})

	e := New(TagsAdded, "u1@example.com", []string{"v1"}, []string{"a"})
	d.Publish(e)
	d.Publish(New(TagsRemoved, "u1@example.com", nil, nil))
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	require.Equal(t, e.ID, got[0].ID)
	require.False(t, got[0].OccurredAt.IsZero())
}

func TestDispatcher_HandlerErrorsAndPanicsAreSwallowed(t *testing.T) {
	m := metrics.New()
	d := NewDispatcher(zap.NewNop(), m, Options{Workers: 1})
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })

	var calls atomic.Int32
	d.Subscribe(UserRemoved, func(context.Context, Event) error { panic("boom") })
	d.Subscribe(UserRemoved, func(context.Context, Event) error { return errors.New("nope") })
	d.Subscribe(UserRemoved, func(context.Context, Event) error { calls.Add(1); return nil })

	d.Publish(New(UserRemoved, "u1@example.com", nil, nil))
	d.Publish(New(UserRemoved, "u2@example.com", nil, nil))
	d.Wait()

	require.EqualValues(t, 2, calls.Load())
}

func TestDispatcher_WaitCoversChainedEvents(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), nil, Options{Workers: 2})
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })

	var deleted atomic.Bool
	d.Subscribe(VideoInvalidated, func(_ context.Context, e Event) error {
		d.Publish(New(VideosDeleted, "", e.VideoIDs, nil))
		return nil
	})
	d.Subscribe(VideosDeleted, func(context.Context, Event) error {
		time.Sleep(10 * time.Millisecond)
		deleted.Store(true)
		return nil
	})

	d.Publish(New(VideoInvalidated, "", []string{"v1"}, nil))
	d.Wait()
	require.True(t, deleted.Load())
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), nil, Options{Workers: 1, Buffer: 1})

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var handled atomic.Int32
	d.Subscribe(TagsAdded, func(context.Context, Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		handled.Add(1)
		return nil
	})

	d.Publish(New(TagsAdded, "u", nil, nil))
	<-started
	d.Publish(New(TagsAdded, "u", nil, nil)) // fills the buffer
	d.Publish(New(TagsAdded, "u", nil, nil)) // dropped
	close(release)
	d.Wait()

	require.EqualValues(t, 2, handled.Load())
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcher_PublishAfterShutdownIsDropped(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), nil, Options{})
	require.NoError(t, d.Shutdown(context.Background()))
	require.NoError(t, d.Shutdown(context.Background()))

	d.Publish(New(TagsAdded, "u", nil, nil))
	d.Wait()
}

func TestDispatcher_ShutdownDeadline(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), nil, Options{Workers: 1})
	d.Subscribe(TagsAdded, func(ctx context.Context, _ Event) error {
		<-ctx.Done()
		return ctx.Err()
	})
	d.Publish(New(TagsAdded, "u", nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)
	d.Wait()
}
