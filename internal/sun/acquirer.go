package sun

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/yuzuleung/sun-visualization/internal/queue"
)

// Acquisition is the result of a successful Acquire.
type Acquisition struct {
	Dataset Dataset
	State   State
}

// Acquirer resolves one (city, year) through the cache, a scheduled remote
// fetch and the fallback snapshot, in that order.
type Acquirer struct {
	archive  Archive
	cache    Cache
	fallback Fallback
	queue    *queue.Scheduler
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// AcquirerOption customises an Acquirer.
type AcquirerOption func(*Acquirer)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) AcquirerOption {
	return func(a *Acquirer) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) AcquirerOption {
	return func(a *Acquirer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) AcquirerOption {
	return func(a *Acquirer) {
		a.now = now
	}
}

// NewAcquirer creates an Acquirer. The scheduler and cache are shared by
// every acquisition made through it. fallback may be nil.
func NewAcquirer(archive Archive, cache Cache, fallback Fallback, q *queue.Scheduler, opts ...AcquirerOption) *Acquirer {
	a := &Acquirer{
		archive:  archive,
		cache:    cache,
		fallback: fallback,
		queue:    q,
		recorder: nopRecorder{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "acquirer")
	return a
}

// Acquire returns the dataset for city and year. The only error it returns
// is a *DataUnavailableError.
func (a *Acquirer) Acquire(ctx context.Context, city City, year int) (Acquisition, error) {
	return a.acquire(ctx, city, year, func() bool { return true }, func(State) {})
}

// acquire is Acquire with intermediate state transitions reported. A fetched
// dataset is only cached while current reports true.
func (a *Acquirer) acquire(ctx context.Context, city City, year int, current func() bool, report func(State)) (Acquisition, error) {
	if a.cache != nil {
		if ds, ok := a.cache.Get(ctx, city.Name, year); ok {
			a.recorder.RecordAcquisition(StateCacheHit, ds.Provenance)
			a.logger.Debug("cache hit", "city", city.Name, "year", year)
			return Acquisition{Dataset: ds, State: StateCacheHit}, nil
		}
	}

	report(StateFetching)
	ds, remoteErr := a.fetchRemote(ctx, city, year)
	if remoteErr == nil {
		if a.cache != nil && current() {
			if err := a.cache.Put(ctx, ds); err != nil {
				a.logger.Warn("failed to cache dataset", "city", city.Name, "year", year, "error", err)
			}
		}
		a.recorder.RecordAcquisition(StateSucceeded, ProvenanceRemote)
		return Acquisition{Dataset: ds, State: StateSucceeded}, nil
	}

	a.logger.Info("remote fetch failed; trying fallback", "city", city.Name, "year", year, "error", remoteErr)

	ds, fallbackErr := a.lookupFallback(city, year)
	if fallbackErr == nil {
		a.recorder.RecordAcquisition(StateFellBack, ProvenanceFallback)
		return Acquisition{Dataset: ds, State: StateFellBack}, nil
	}

	a.recorder.RecordAcquisition(StateFailed, "")
	return Acquisition{State: StateFailed}, &DataUnavailableError{
		City:     city.Name,
		Year:     year,
		Remote:   remoteErr,
		Fallback: fallbackErr,
	}
}

func (a *Acquirer) fetchRemote(ctx context.Context, city City, year int) (Dataset, error) {
	if a.archive == nil || a.queue == nil {
		return Dataset{}, fmt.Errorf("%w: no archive configured", ErrTransient)
	}

	start := a.now()
	daily, err := queue.Do(ctx, a.queue, city.Name, year, func(ctx context.Context) ([]DailyRecord, error) {
		return a.archive.FetchYear(ctx, city, year)
	})
	a.recorder.ObserveRemoteFetch(a.now().Sub(start), err)
	if err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", a.archive.Name(), err)
	}
	if len(daily) == 0 {
		return Dataset{}, fmt.Errorf("%s: %w: empty series", a.archive.Name(), ErrMalformedResponse)
	}

	fetchedAt := a.now().UTC()
	return Dataset{
		City:        city,
		Year:        year,
		Daily:       daily,
		Provenance:  ProvenanceRemote,
		FetchedAt:   fetchedAt,
		LastUpdated: fetchedAt.Format(time.RFC3339),
	}, nil
}

func (a *Acquirer) lookupFallback(city City, year int) (Dataset, error) {
	if a.fallback == nil {
		return Dataset{}, fmt.Errorf("%w: no fallback store configured", ErrFallbackMiss)
	}
	ds, err := a.fallback.Lookup(city.Name, year)
	if err != nil {
		return Dataset{}, err
	}
	// The snapshot's roster entry may be missing or stale; the caller's city wins.
	ds.City = city
	ds.Provenance = ProvenanceFallback
	return ds, nil
}
