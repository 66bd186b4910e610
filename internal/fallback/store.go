package fallback

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yuzuleung/sun-visualization/internal/sun"
)

// Store answers fallback lookups from a decoded document. It is read-only
// after construction and safe for concurrent use.
type Store struct {
	doc *Document
	// byCity indexes keys by city name, ordered by year.
	byCity map[string][]keyedYear
}

type keyedYear struct {
	key  string
	year int
}

// NewStore indexes doc for lookups.
func NewStore(doc *Document) *Store {
	s := &Store{doc: doc, byCity: make(map[string][]keyedYear)}
	for key, e := range doc.Data {
		name, year, ok := splitKey(key)
		if !ok {
			name, year = e.City, e.Year
		}
		s.byCity[name] = append(s.byCity[name], keyedYear{key: key, year: year})
	}
	for _, ys := range s.byCity {
		sort.Slice(ys, func(i, j int) bool { return ys[i].year < ys[j].year })
	}
	return s
}

// Open decodes the document at path into a Store.
func Open(path string) (*Store, error) {
	doc, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return NewStore(doc), nil
}

// Lookup returns the series for "<city>_<year>". When that key is absent,
// the entry for the same city with the nearest year is used, earlier year
// first on ties.
func (s *Store) Lookup(city string, year int) (sun.Dataset, error) {
	key := sun.DatasetKey(city, year)
	e, ok := s.doc.Data[key]
	if !ok {
		ys := s.byCity[city]
		if len(ys) == 0 {
			return sun.Dataset{}, fmt.Errorf("%w for %s in %d", sun.ErrFallbackMiss, city, year)
		}
		best := ys[0]
		for _, y := range ys[1:] {
			if abs(y.year-year) < abs(best.year-year) {
				best = y
			}
		}
		e = s.doc.Data[best.key]
	}

	daily := make([]sun.DailyRecord, len(e.Daily))
	copy(daily, e.Daily)
	return sun.Dataset{
		City:        sun.City{Name: city},
		Year:        e.Year,
		Daily:       daily,
		Provenance:  sun.ProvenanceFallback,
		LastUpdated: e.LastUpdated,
	}, nil
}

// Cities returns the document's roster.
func (s *Store) Cities() []sun.City {
	return s.doc.Cities()
}

// Len is the number of series in the document.
func (s *Store) Len() int {
	return len(s.doc.Data)
}

// ExportDate is the snapshot's export timestamp.
func (s *Store) ExportDate() string {
	return s.doc.Metadata.ExportDate
}

// splitKey splits "<city>_<year>" on the last underscore; city names may
// contain underscores.
func splitKey(key string) (string, int, bool) {
	i := strings.LastIndex(key, "_")
	if i <= 0 {
		return "", 0, false
	}
	year, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return "", 0, false
	}
	return key[:i], year, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
