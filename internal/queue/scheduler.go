// Package queue serializes outbound archive calls: tasks are dispatched in
// FIFO order, at most MaxConcurrency at a time, with a fixed pause between
// dispatches.
package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxConcurrency = 2
	DefaultRequestDelay   = 500 * time.Millisecond
)

// ErrReset is returned by handles of tasks dropped from the pending queue by Reset.
var ErrReset = errors.New("queue: task dropped by reset")

// Config controls a Scheduler. Zero values take the defaults; a negative
// RequestDelay disables the pause.
type Config struct {
	MaxConcurrency int
	RequestDelay   time.Duration
	Logger         *slog.Logger
}

// Task is a unit of outbound work. Produce runs exactly once.
type Task struct {
	CityID  string
	Year    int
	Produce func(ctx context.Context) (any, error)
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Pending      int    `json:"pending"`
	InFlight     int    `json:"inFlight"`
	PeakInFlight int    `json:"peakInFlight"`
	Dispatched   uint64 `json:"dispatched"`
}

// Scheduler is a bounded-concurrency FIFO task queue with a single drain loop.
type Scheduler struct {
	maxConcurrency int
	slots          *semaphore.Weighted
	limiter        *rate.Limiter
	logger         *slog.Logger

	mu         sync.Mutex
	pending    []*Handle
	inFlight   int
	peak       int
	dispatched uint64
	draining   bool

	// wake is poked on enqueue and on settle so an idle drain loop re-checks.
	wake chan struct{}
}

// New creates a Scheduler from cfg.
func New(cfg Config) *Scheduler {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.RequestDelay == 0 {
		cfg.RequestDelay = DefaultRequestDelay
	}
	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Scheduler{
		maxConcurrency: cfg.MaxConcurrency,
		slots:          semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		limiter:        rate.NewLimiter(limit, 1),
		logger:         logger.With("component", "queue"),
		wake:           make(chan struct{}, 1),
	}
}

// MaxConcurrency returns the in-flight bound.
func (s *Scheduler) MaxConcurrency() int {
	return s.maxConcurrency
}

// Enqueue appends t to the pending queue and starts the drain loop if none
// is running. The producer receives ctx without its cancellation: once
// dispatched a task always runs to completion.
func (s *Scheduler) Enqueue(ctx context.Context, t Task) *Handle {
	h := &Handle{
		task: t,
		ctx:  context.WithoutCancel(ctx),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.pending = append(s.pending, h)
	start := !s.draining
	s.draining = true
	pending := len(s.pending)
	s.mu.Unlock()

	s.logger.Debug("task enqueued", "city", t.CityID, "year", t.Year, "pending", pending)

	if start {
		go s.drain()
	} else {
		s.poke()
	}
	return h
}

// Reset drops every pending task. Tasks already dispatched keep running.
func (s *Scheduler) Reset() int {
	s.mu.Lock()
	dropped := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, h := range dropped {
		h.settle(nil, ErrReset)
	}
	s.poke()

	if len(dropped) > 0 {
		s.logger.Info("pending tasks dropped", "count", len(dropped))
	}
	return len(dropped)
}

// Stats returns the current queue counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Pending:      len(s.pending),
		InFlight:     s.inFlight,
		PeakInFlight: s.peak,
		Dispatched:   s.dispatched,
	}
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// drain dispatches pending tasks until both the queue and the in-flight set
// are empty.
func (s *Scheduler) drain() {
	bg := context.Background()
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			if s.inFlight == 0 {
				s.draining = false
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			<-s.wake
			continue
		}
		s.mu.Unlock()

		// Blocks until at least one in-flight task settles.
		if err := s.slots.Acquire(bg, 1); err != nil {
			continue
		}
		if err := s.limiter.Wait(bg); err != nil {
			s.logger.Warn("dispatch delay skipped", "error", err)
		}

		s.mu.Lock()
		if len(s.pending) == 0 {
			// Reset emptied the queue while we waited.
			s.mu.Unlock()
			s.slots.Release(1)
			continue
		}
		h := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.inFlight++
		if s.inFlight > s.peak {
			s.peak = s.inFlight
		}
		s.dispatched++
		inFlight := s.inFlight
		s.mu.Unlock()

		s.logger.Debug("task dispatched", "city", h.task.CityID, "year", h.task.Year, "in_flight", inFlight)
		go s.run(h)
	}
}

func (s *Scheduler) run(h *Handle) {
	v, err := s.produce(h)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	s.slots.Release(1)

	h.settle(v, err)
	s.poke()
}

func (s *Scheduler) produce(h *Handle) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: task %s/%d panicked: %v", h.task.CityID, h.task.Year, r)
			s.logger.Error("task panicked", "city", h.task.CityID, "year", h.task.Year, "panic", r)
		}
	}()
	if h.task.Produce == nil {
		return nil, fmt.Errorf("queue: task %s/%d has no producer", h.task.CityID, h.task.Year)
	}
	return h.task.Produce(h.ctx)
}

// Handle is the completion handle of an enqueued task.
type Handle struct {
	task Task
	ctx  context.Context
	done chan struct{}

	once   sync.Once
	result any
	err    error
}

func (h *Handle) settle(v any, err error) {
	h.once.Do(func() {
		h.result = v
		h.err = err
		close(h.done)
	})
}

// Done is closed once the task has settled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task settles or ctx is done. Abandoning the wait
// does not cancel the task.
func (h *Handle) Wait(ctx context.Context) (any, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do enqueues fn on s and waits for its typed result.
func Do[T any](ctx context.Context, s *Scheduler, cityID string, year int, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	h := s.Enqueue(ctx, Task{
		CityID: cityID,
		Year:   year,
		Produce: func(ctx context.Context) (any, error) {
			return fn(ctx)
		},
	})
	v, err := h.Wait(ctx)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("queue: unexpected result type %T", v)
	}
	return out, nil
}
