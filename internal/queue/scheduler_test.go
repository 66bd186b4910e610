package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSchedulerNeverExceedsMaxConcurrency(t *testing.T) {
	s := New(Config{MaxConcurrency: 2, RequestDelay: time.Millisecond})

	var current, maxSeen int32
	handles := make([]*Handle, 0, 8)
	for i := 0; i < 8; i++ {
		i := i
		handles = append(handles, s.Enqueue(context.Background(), Task{
			CityID: "city",
			Year:   2024,
			Produce: func(ctx context.Context) (any, error) {
				n := atomic.AddInt32(&current, 1)
				for {
					m := atomic.LoadInt32(&maxSeen)
					if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
						break
					}
				}
				assert.LessOrEqual(t, s.Stats().InFlight, 2)
				time.Sleep(15 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return i, nil
			},
		}))
	}

	for i, h := range handles {
		v, err := h.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}

	assert.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(2))
	stats := s.Stats()
	assert.LessOrEqual(t, stats.PeakInFlight, 2)
	assert.Equal(t, uint64(8), stats.Dispatched)
	assert.Zero(t, stats.Pending)
}

func TestSchedulerDispatchesInFIFOOrder(t *testing.T) {
	s := New(Config{MaxConcurrency: 1, RequestDelay: -1})

	var (
		mu    sync.Mutex
		order []int
	)
	var handles []*Handle
	for i := 0; i < 5; i++ {
		i := i
		handles = append(handles, s.Enqueue(context.Background(), Task{
			Produce: func(ctx context.Context) (any, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil, nil
			},
		}))
	}
	for _, h := range handles {
		_, err := h.Wait(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestSchedulerFailureDoesNotBlockOthers(t *testing.T) {
	s := New(Config{MaxConcurrency: 2, RequestDelay: -1})
	boom := errors.New("boom")

	failing := s.Enqueue(context.Background(), Task{CityID: "a", Produce: func(ctx context.Context) (any, error) {
		return nil, boom
	}})
	panicking := s.Enqueue(context.Background(), Task{CityID: "b", Produce: func(ctx context.Context) (any, error) {
		panic("unexpected")
	}})
	ok := s.Enqueue(context.Background(), Task{CityID: "c", Produce: func(ctx context.Context) (any, error) {
		return "done", nil
	}})

	_, err := failing.Wait(context.Background())
	assert.ErrorIs(t, err, boom)

	_, err = panicking.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	v, err := ok.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestSchedulerInsertsDelayBetweenDispatches(t *testing.T) {
	const delay = 30 * time.Millisecond
	s := New(Config{MaxConcurrency: 4, RequestDelay: delay})

	var (
		mu     sync.Mutex
		starts []time.Time
	)
	var handles []*Handle
	for i := 0; i < 3; i++ {
		handles = append(handles, s.Enqueue(context.Background(), Task{
			Produce: func(ctx context.Context) (any, error) {
				mu.Lock()
				starts = append(starts, time.Now())
				mu.Unlock()
				return nil, nil
			},
		}))
	}
	for _, h := range handles {
		_, err := h.Wait(context.Background())
		require.NoError(t, err)
	}

	require.Len(t, starts, 3)
	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, starts[i].Sub(starts[i-1]), delay-5*time.Millisecond)
	}
}

func TestSchedulerResetDropsPendingOnly(t *testing.T) {
	s := New(Config{MaxConcurrency: 1, RequestDelay: -1})

	started := make(chan struct{})
	release := make(chan struct{})
	first := s.Enqueue(context.Background(), Task{CityID: "first", Produce: func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "first", nil
	}})
	<-started

	second := s.Enqueue(context.Background(), Task{CityID: "second", Produce: func(ctx context.Context) (any, error) {
		return "second", nil
	}})
	third := s.Enqueue(context.Background(), Task{CityID: "third", Produce: func(ctx context.Context) (any, error) {
		return "third", nil
	}})

	assert.Equal(t, 2, s.Reset())

	_, err := second.Wait(context.Background())
	assert.ErrorIs(t, err, ErrReset)
	_, err = third.Wait(context.Background())
	assert.ErrorIs(t, err, ErrReset)

	close(release)
	v, err := first.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestHandleWaitHonoursCallerContext(t *testing.T) {
	s := New(Config{MaxConcurrency: 1, RequestDelay: -1})

	release := make(chan struct{})
	h := s.Enqueue(context.Background(), Task{Produce: func(ctx context.Context) (any, error) {
		<-release
		// The producer context is detached from the caller's.
		return nil, ctx.Err()
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	_, err = h.Wait(context.Background())
	assert.NoError(t, err)
}

func TestDoReturnsTypedResult(t *testing.T) {
	s := New(Config{RequestDelay: -1})

	got, err := Do(context.Background(), s, "Tokyo", 2024, func(ctx context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	_, err = Do(context.Background(), s, "Tokyo", 2024, func(ctx context.Context) ([]string, error) {
		return nil, errors.New("nope")
	})
	assert.EqualError(t, err, "nope")
	assert.Equal(t, DefaultMaxConcurrency, s.MaxConcurrency())
}
