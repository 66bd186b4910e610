package sun

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	tokyo  = City{Name: "Tokyo", Country: "JP", CountryName: "Japan", Lat: 35.6762, Lon: 139.6503, TZ: "Asia/Tokyo", OffsetHours: 9}
	london = City{Name: "London", Country: "GB", CountryName: "United Kingdom", Lat: 51.5074, Lon: -0.1278, TZ: "Europe/London"}
	nuuk   = City{Name: "Nuuk", Country: "GL", CountryName: "Greenland", Lat: 64.1814, Lon: -51.6941, TZ: "America/Nuuk", OffsetHours: -3}
)

func sampleSeries(n int) []DailyRecord {
	out := make([]DailyRecord, n)
	for i := range out {
		d := DateFromYearDay(2024, i+1)
		out[i] = DailyRecord{Date: d, Sunrise: d + "T06:30", Sunset: d + "T18:30"}
	}
	return out
}

type fakeArchive struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	fetch    func(city City, year int) ([]DailyRecord, error)
}

func (f *fakeArchive) Name() string { return "fake-archive" }

func (f *fakeArchive) FetchYear(ctx context.Context, city City, year int) ([]DailyRecord, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.fetch(city, year)
}

type memCache struct {
	mu   sync.Mutex
	data map[string]Dataset
	puts int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]Dataset)}
}

func (c *memCache) Get(ctx context.Context, city string, year int) (Dataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ds, ok := c.data[CacheKey(ProvenanceRemote, city, year)]
	return ds, ok
}

func (c *memCache) Put(ctx context.Context, ds Dataset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.data[CacheKey(ds.Provenance, ds.City.Name, ds.Year)] = ds
	return nil
}

func (c *memCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]Dataset)
	return nil
}

type mapFallback map[string]Dataset

func (m mapFallback) Lookup(city string, year int) (Dataset, error) {
	if ds, ok := m[DatasetKey(city, year)]; ok {
		return ds, nil
	}
	return Dataset{}, fmt.Errorf("%w for %s in %d", ErrFallbackMiss, city, year)
}
