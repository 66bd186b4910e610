package sun

import (
	"context"
	"time"
)

// Archive abstracts the remote sunrise/sunset archive (Open-Meteo).
type Archive interface {
	Name() string
	FetchYear(ctx context.Context, city City, year int) ([]DailyRecord, error)
}

// Cache is the contract the dataset cache must satisfy. Get only returns
// entries that have not outlived the cache's TTL.
type Cache interface {
	Get(ctx context.Context, city string, year int) (Dataset, bool)
	Put(ctx context.Context, ds Dataset) error
	Clear(ctx context.Context) error
}

// Fallback is a read-only snapshot of datasets. Lookup tries the exact
// (city, year) first, then any year of the same city.
type Fallback interface {
	Lookup(city string, year int) (Dataset, error)
}

// Recorder receives acquisition measurements. Implemented by the metrics package.
type Recorder interface {
	RecordAcquisition(state State, provenance Provenance)
	ObserveRemoteFetch(d time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordAcquisition(State, Provenance)   {}
func (nopRecorder) ObserveRemoteFetch(time.Duration, error) {}
