package sun

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Loader fans acquisitions for a set of cities out through one Acquirer, so
// the scheduler's concurrency bound and the cache apply to the whole batch.
// It keeps every successfully loaded dataset for later lookups and export.
type Loader struct {
	acquirer *Acquirer
	logger   *slog.Logger

	mu     sync.RWMutex
	loaded map[string]Dataset
	states map[string]State
	// gen is bumped by Reset; runs started under an older gen are not recorded.
	gen uint64
}

// NewLoader creates a Loader on top of acquirer.
func NewLoader(acquirer *Acquirer) *Loader {
	return &Loader{
		acquirer: acquirer,
		logger:   acquirer.logger.With("component", "loader"),
		loaded:   make(map[string]Dataset),
		states:   make(map[string]State),
	}
}

// Load acquires datasets for every city for year. A city's failure is
// recorded in its Outcome and never aborts the batch.
func (l *Loader) Load(ctx context.Context, cities []City, year int) Summary {
	runID := uuid.NewString()
	started := time.Now()

	unique := make([]City, 0, len(cities))
	seen := make(map[string]bool, len(cities))
	for _, c := range cities {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		unique = append(unique, c)
	}

	l.mu.RLock()
	gen := l.gen
	l.mu.RUnlock()
	current := func() bool {
		l.mu.RLock()
		defer l.mu.RUnlock()
		return l.gen == gen
	}

	l.logger.Info("load started", "run_id", runID, "year", year, "cities", len(unique))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make([]Outcome, 0, len(unique))
	)

	for _, city := range unique {
		city := city
		key := DatasetKey(city.Name, year)
		l.setState(gen, key, StatePending)

		wg.Add(1)
		go func() {
			defer wg.Done()

			acq, err := l.acquirer.acquire(ctx, city, year, current, func(s State) {
				l.setState(gen, key, s)
			})
			out := Outcome{City: city.Name, Year: year, State: acq.State}
			if err != nil {
				out.State = StateFailed
				out.Err = err
				out.Error = err.Error()
				l.logger.Warn("city load failed", "run_id", runID, "city", city.Name, "year", year, "error", err)
			} else {
				out.Provenance = acq.Dataset.Provenance
				l.store(gen, key, acq.Dataset)
			}
			l.setState(gen, key, out.State)

			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
		}()
	}

	wg.Wait()

	summary := Summarize(runID, year, outcomes, started, time.Since(started))
	l.logger.Info("load completed",
		"run_id", runID,
		"year", year,
		"attempted", summary.Attempted,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"cache_hits", summary.CacheHits,
		"remote", summary.ByProvenance[ProvenanceRemote],
		"fallback", summary.ByProvenance[ProvenanceFallback],
		"duration", summary.Duration)
	return summary
}

func (l *Loader) setState(gen uint64, key string, s State) {
	l.mu.Lock()
	if l.gen == gen {
		l.states[key] = s
	}
	l.mu.Unlock()
}

func (l *Loader) store(gen uint64, key string, ds Dataset) {
	l.mu.Lock()
	if l.gen == gen {
		l.loaded[key] = ds
	}
	l.mu.Unlock()
}

// State returns the acquisition state of (city, year).
func (l *Loader) State(city string, year int) State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if s, ok := l.states[DatasetKey(city, year)]; ok {
		return s
	}
	return StateUnrequested
}

// Dataset returns a loaded dataset.
func (l *Loader) Dataset(city string, year int) (Dataset, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ds, ok := l.loaded[DatasetKey(city, year)]
	return ds, ok
}

// Datasets returns a copy of every loaded dataset keyed "<city>_<year>".
func (l *Loader) Datasets() map[string]Dataset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]Dataset, len(l.loaded))
	for k, v := range l.loaded {
		out[k] = v
	}
	return out
}

// Reset clears the loaded collection, the cache and the scheduler's pending
// queue. Archive calls already in flight run to completion, but loads that
// started before the reset no longer record their datasets, states or cache
// entries; their Summary is still returned to their caller.
func (l *Loader) Reset(ctx context.Context) error {
	l.mu.Lock()
	l.gen++
	l.loaded = make(map[string]Dataset)
	l.states = make(map[string]State)
	l.mu.Unlock()

	var errs []error
	if q := l.acquirer.queue; q != nil {
		q.Reset()
	}
	if c := l.acquirer.cache; c != nil {
		if err := c.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	l.logger.Info("state reset")
	return errors.Join(errs...)
}
