package sun

import (
	"strconv"
	"time"
)

// Provenance records where a dataset came from.
type Provenance string

const (
	ProvenanceRemote   Provenance = "remote"
	ProvenanceFallback Provenance = "fallback"
)

// Phase is the result of classifying an instant for a city.
type Phase string

const (
	Day   Phase = "day"
	Night Phase = "night"
)

// City is a roster entry. Name doubles as the city's identifier.
type City struct {
	Name        string  `json:"city" validate:"required"`
	Country     string  `json:"country" validate:"required,len=2"`
	CountryName string  `json:"countryName,omitempty"`
	Lat         float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon         float64 `json:"lon" validate:"gte=-180,lte=180"`
	TZ          string  `json:"tz" validate:"required"`

	// OffsetHours is the fixed UTC offset used to convert the city's
	// local wall clock values. Resolved from TZ when zero and unset.
	OffsetHours float64 `json:"offsetHours,omitempty"`
}

// DailyRecord is one calendar day of sunrise/sunset data. Values are kept
// exactly as the archive returned them (local wall clock, "2006-01-02T15:04").
type DailyRecord struct {
	Date    string `json:"date"`
	Sunrise string `json:"sunrise"`
	Sunset  string `json:"sunset"`
}

// Dataset is a year of daily records for one city.
type Dataset struct {
	City        City          `json:"city"`
	Year        int           `json:"year"`
	Daily       []DailyRecord `json:"daily"`
	Provenance  Provenance    `json:"provenance"`
	FetchedAt   time.Time     `json:"fetchedAt"`
	LastUpdated string        `json:"lastUpdated,omitempty"`
}

// Key returns the "<city>_<year>" key used by the fallback document and the
// loaded collection.
func (d Dataset) Key() string {
	return DatasetKey(d.City.Name, d.Year)
}

// Day returns the record at the zero-based index idx, clamped into the
// series. ok is false only when the series is empty.
func (d Dataset) Day(idx int) (DailyRecord, bool) {
	if len(d.Daily) == 0 {
		return DailyRecord{}, false
	}
	if idx < 0 {
		idx = 0
	}
	if idx > len(d.Daily)-1 {
		idx = len(d.Daily) - 1
	}
	return d.Daily[idx], true
}

// DatasetKey builds the "<city>_<year>" key.
func DatasetKey(city string, year int) string {
	return city + "_" + strconv.Itoa(year)
}

// CacheKey builds the "<provenance>_<city>_<year>" key used by the cache.
func CacheKey(p Provenance, city string, year int) string {
	return string(p) + "_" + DatasetKey(city, year)
}

// State is the acquisition state of a single (city, year).
type State string

const (
	StateUnrequested State = "unrequested"
	StatePending     State = "pending"
	StateCacheHit    State = "cache_hit"
	StateFetching    State = "fetching"
	StateSucceeded   State = "succeeded"
	StateFellBack    State = "fell_back"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	switch s {
	case StateCacheHit, StateSucceeded, StateFellBack, StateFailed:
		return true
	}
	return false
}

// Country is a roster country derived from its cities.
type Country struct {
	Code string `json:"cca2"`
	Name string `json:"name"`
	Flag string `json:"flag"`
}
