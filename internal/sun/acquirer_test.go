package sun

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuzuleung/sun-visualization/internal/queue"
)

func newTestQueue() *queue.Scheduler {
	return queue.New(queue.Config{MaxConcurrency: 2, RequestDelay: -1})
}

func TestAcquireRemoteStoresInCache(t *testing.T) {
	series := sampleSeries(366)
	archive := &fakeArchive{fetch: func(City, int) ([]DailyRecord, error) { return series, nil }}
	cache := newMemCache()
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	a := NewAcquirer(archive, cache, nil, newTestQueue(), WithClock(func() time.Time { return fixed }))

	got, err := a.Acquire(context.Background(), tokyo, 2024)
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, got.State)
	assert.Equal(t, ProvenanceRemote, got.Dataset.Provenance)
	assert.Equal(t, fixed, got.Dataset.FetchedAt)
	assert.Len(t, got.Dataset.Daily, 366)
	assert.Equal(t, 1, cache.puts)

	again, err := a.Acquire(context.Background(), tokyo, 2024)
	require.NoError(t, err)
	assert.Equal(t, StateCacheHit, again.State)
	assert.Equal(t, ProvenanceRemote, again.Dataset.Provenance)
	assert.Equal(t, int32(1), archive.calls.Load(), "cache hit must not reach the archive")
}

func TestAcquireFallsBackOnRemoteFailure(t *testing.T) {
	stored := sampleSeries(243)
	fb := mapFallback{"Tokyo_2024": {City: City{Name: "Tokyo"}, Year: 2024, Daily: stored, LastUpdated: "2025-08-31T00:00:00Z"}}

	for _, remoteErr := range []error{
		fmt.Errorf("%w: rate limited", ErrTransient),
		fmt.Errorf("%w: daily.sunset missing", ErrMalformedResponse),
		errors.New("dial tcp: connection refused"),
	} {
		t.Run(remoteErr.Error(), func(t *testing.T) {
			archive := &fakeArchive{fetch: func(City, int) ([]DailyRecord, error) { return nil, remoteErr }}
			cache := newMemCache()
			a := NewAcquirer(archive, cache, fb, newTestQueue())

			got, err := a.Acquire(context.Background(), tokyo, 2024)
			require.NoError(t, err)
			assert.Equal(t, StateFellBack, got.State)
			assert.Equal(t, ProvenanceFallback, got.Dataset.Provenance)
			assert.Equal(t, tokyo, got.Dataset.City)
			if diff := cmp.Diff(stored, got.Dataset.Daily); diff != "" {
				t.Errorf("fallback series differs (-stored +got):\n%s", diff)
			}
			assert.Zero(t, cache.puts, "fallback data is not cached")
		})
	}
}

func TestAcquireDataUnavailable(t *testing.T) {
	archive := &fakeArchive{fetch: func(City, int) ([]DailyRecord, error) {
		return nil, fmt.Errorf("%w: 429", ErrTransient)
	}}
	a := NewAcquirer(archive, newMemCache(), mapFallback{}, newTestQueue())

	got, err := a.Acquire(context.Background(), london, 2024)
	require.Error(t, err)
	assert.Equal(t, StateFailed, got.State)
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, ErrFallbackMiss)

	var due *DataUnavailableError
	require.ErrorAs(t, err, &due)
	assert.Equal(t, "London", due.City)
	assert.Equal(t, 2024, due.Year)
	assert.Contains(t, err.Error(), "remote:")
	assert.Contains(t, err.Error(), "fallback:")
}

func TestAcquireEmptySeriesIsMalformed(t *testing.T) {
	archive := &fakeArchive{fetch: func(City, int) ([]DailyRecord, error) { return nil, nil }}
	a := NewAcquirer(archive, nil, nil, newTestQueue())

	_, err := a.Acquire(context.Background(), london, 2024)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestAcquireWithoutArchiveUsesFallback(t *testing.T) {
	fb := mapFallback{"Nuuk_2023": {Year: 2023, Daily: sampleSeries(3)}}
	a := NewAcquirer(nil, nil, fb, nil)

	got, err := a.Acquire(context.Background(), nuuk, 2023)
	require.NoError(t, err)
	assert.Equal(t, ProvenanceFallback, got.Dataset.Provenance)
}

type countingRecorder struct {
	states  map[State]int
	fetches int
}

func (r *countingRecorder) RecordAcquisition(s State, _ Provenance) { r.states[s]++ }
func (r *countingRecorder) ObserveRemoteFetch(time.Duration, error)  { r.fetches++ }

func TestAcquireRecordsMetrics(t *testing.T) {
	rec := &countingRecorder{states: map[State]int{}}
	archive := &fakeArchive{fetch: func(City, int) ([]DailyRecord, error) { return sampleSeries(2), nil }}
	a := NewAcquirer(archive, newMemCache(), nil, newTestQueue(), WithRecorder(rec))

	_, err := a.Acquire(context.Background(), tokyo, 2024)
	require.NoError(t, err)
	_, err = a.Acquire(context.Background(), tokyo, 2024)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.states[StateSucceeded])
	assert.Equal(t, 1, rec.states[StateCacheHit])
	assert.Equal(t, 1, rec.fetches)
}
