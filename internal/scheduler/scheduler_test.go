package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuzuleung/sun-visualization/internal/sun"
)

type fakeLoader struct {
	mu    sync.Mutex
	years []int
	calls chan struct{}
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{calls: make(chan struct{}, 16)}
}

func (f *fakeLoader) Load(ctx context.Context, cities []sun.City, year int) sun.Summary {
	f.mu.Lock()
	f.years = append(f.years, year)
	f.mu.Unlock()
	select {
	case f.calls <- struct{}{}:
	default:
	}
	return sun.Summary{Year: year, Attempted: len(cities), Succeeded: len(cities)}
}

type fakePurger struct {
	calls int
	err   error
}

func (f *fakePurger) Purge(context.Context) (int64, error) {
	f.calls++
	return 1, f.err
}

var roster = []sun.City{{Name: "Tokyo", Country: "JP", TZ: "Asia/Tokyo"}}

func TestRunOnce(t *testing.T) {
	loader := newFakeLoader()
	purger := &fakePurger{}
	var got sun.Summary

	s := New(loader, purger, Config{
		Cities: func() []sun.City { return roster },
		Year:   func(time.Time) int { return 2023 },
		OnLoad: func(s sun.Summary) { got = s },
	})

	summary := s.RunOnce(context.Background())

	assert.Equal(t, 1, purger.calls)
	assert.Equal(t, []int{2023}, loader.years)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, summary, got)
}

func TestRunOnceSurvivesPurgeFailure(t *testing.T) {
	loader := newFakeLoader()
	s := New(loader, &fakePurger{err: errors.New("disk full")}, Config{
		Cities: func() []sun.City { return roster },
	})

	summary := s.RunOnce(context.Background())
	assert.Equal(t, time.Now().Year(), summary.Year)
}

func TestStartRunsPeriodically(t *testing.T) {
	loader := newFakeLoader()
	s := New(loader, nil, Config{
		Interval: 20 * time.Millisecond,
		Cities:   func() []sun.City { return roster },
	})
	require.NoError(t, s.Start())
	defer s.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-loader.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("refresh %d did not run", i+1)
		}
	}
}

func TestStartDisabledWithoutInterval(t *testing.T) {
	loader := newFakeLoader()
	s := New(loader, nil, Config{Cities: func() []sun.City { return roster }})
	require.NoError(t, s.Start())
	defer s.Stop()

	select {
	case <-loader.calls:
		t.Fatal("refresh ran without an interval")
	case <-time.After(50 * time.Millisecond):
	}
}
