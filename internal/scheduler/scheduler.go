// Package scheduler keeps the dataset cache warm by reloading the roster on
// a fixed interval.
package scheduler

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/yuzuleung/sun-visualization/internal/sun"
)

// Loader runs one batch load.
type Loader interface {
	Load(ctx context.Context, cities []sun.City, year int) sun.Summary
}

// Purger drops expired cache entries.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Config wires a Scheduler.
type Config struct {
	Interval time.Duration
	// Cities returns the roster to refresh.
	Cities func() []sun.City
	// Year picks the year to refresh at the given time.
	Year    func(now time.Time) int
	Timeout time.Duration
	// OnLoad, when set, receives every finished batch.
	OnLoad func(sun.Summary)
	Logger *slog.Logger
}

// Scheduler periodically reloads the roster through the loader and purges
// expired cache entries.
type Scheduler struct {
	scheduler *gocron.Scheduler
	loader    Loader
	purger    Purger
	cfg       Config
	logger    *slog.Logger
}

// New creates a new Scheduler. purger may be nil.
func New(loader Loader, purger Purger, cfg Config) *Scheduler {
	if cfg.Year == nil {
		cfg.Year = func(now time.Time) int { return now.Year() }
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		loader:    loader,
		purger:    purger,
		cfg:       cfg,
		logger:    logger.With("component", "refresher"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if s.cfg.Interval <= 0 || s.cfg.Cities == nil {
		s.logger.Info("refresh disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.cfg.Interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("refresh scheduled", "interval", s.cfg.Interval)
	return nil
}

// RunOnce purges expired entries and reloads every city for the current
// refresh year.
func (s *Scheduler) RunOnce(ctx context.Context) sun.Summary {
	if s.purger != nil {
		removed, err := s.purger.Purge(ctx)
		if err != nil {
			s.logger.Warn("cache purge failed", "error", err)
		} else if removed > 0 {
			s.logger.Info("purged expired cache entries", "removed", removed)
		}
	}

	cities := s.cfg.Cities()
	year := s.cfg.Year(time.Now())
	s.logger.Info("running refresh", "year", year, "cities", len(cities))

	summary := s.loader.Load(ctx, cities, year)
	if s.cfg.OnLoad != nil {
		s.cfg.OnLoad(summary)
	}
	return summary
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
