package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/yuzuleung/sun-visualization/internal/fallback"
	"github.com/yuzuleung/sun-visualization/internal/metrics"
	"github.com/yuzuleung/sun-visualization/internal/queue"
	"github.com/yuzuleung/sun-visualization/internal/store"
	"github.com/yuzuleung/sun-visualization/internal/sun"
	"github.com/yuzuleung/sun-visualization/internal/sun/providers"
	"github.com/yuzuleung/sun-visualization/internal/synth"
)

// runtime is the wired acquisition pipeline shared by the commands.
type runtime struct {
	registry  *prometheus.Registry
	collector *metrics.Collector
	queue     *queue.Scheduler
	cache     *store.DatasetCache
	durable   *store.SQLite
	loader    *sun.Loader
	roster    sun.Roster
}

// newRuntime builds the scheduler, cache tiers, fallback store and loader.
// offline swaps the remote archive for the local calculator.
func newRuntime(ctx context.Context, cc *cliContext, offline bool) (*runtime, error) {
	cfg := cc.cfg
	logger := cc.logger

	rt := &runtime{registry: prometheus.NewRegistry()}
	rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt.collector = metrics.NewCollector(rt.registry)

	if cfg.CachePath != "" {
		db, err := store.OpenSQLite(cfg.CachePath)
		if err != nil {
			return nil, err
		}
		rt.durable = db
	}
	rt.cache = store.NewDatasetCache(cfg.CacheTTL, rt.durable, logger)

	doc := fallback.DefaultDocument()
	if cfg.FallbackPath != "" {
		d, err := fallback.DecodeFile(cfg.FallbackPath)
		if err != nil {
			rt.Close()
			return nil, err
		}
		doc = d
	}
	// Cities the snapshot has no series for get a computed year, so the
	// fallback hop works without a downloaded document.
	seeded, err := synth.Seed(ctx, doc, cfg.Year(time.Now()), time.Now())
	if err != nil {
		rt.Close()
		return nil, err
	}
	fb := fallback.NewStore(doc)

	roster, cached := rt.cache.ResolveRoster(ctx, fb.Cities)
	rt.roster = roster
	logger.Info("roster ready", "cities", len(roster.Cities), "countries", len(roster.Countries),
		"from_cache", cached, "fallback_entries", fb.Len(), "computed_entries", seeded)

	var archive sun.Archive
	if offline {
		archive = synth.NewCalculator()
	} else {
		archive = providers.NewArchiveProvider(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.ArchiveURL,
			providers.WithLag(cfg.ArchiveLag),
			providers.WithBackoff(providers.BackoffConfig{
				MaxRetries:      cfg.MaxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			}),
		)
	}

	rt.queue = queue.New(queue.Config{
		MaxConcurrency: cfg.MaxConcurrentRequests,
		RequestDelay:   cfg.RequestDelay,
		Logger:         logger,
	})
	rt.collector.WatchScheduler(rt.queue)

	acq := sun.NewAcquirer(archive, rt.cache, fb, rt.queue,
		sun.WithRecorder(rt.collector),
		sun.WithLogger(logger))
	rt.loader = sun.NewLoader(acq)
	return rt, nil
}

// cities returns the roster filtered by country.
func (rt *runtime) cities(country string) ([]sun.City, error) {
	cities := sun.FilterCountry(rt.roster.Cities, country)
	if len(cities) == 0 {
		return nil, errors.New("no cities for country " + country)
	}
	return cities, nil
}

func (rt *runtime) Close() error {
	if rt.durable != nil {
		return rt.durable.Close()
	}
	return nil
}
