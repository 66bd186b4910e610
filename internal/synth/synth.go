// Package synth computes sunrise/sunset series locally, for offline use and
// for building fallback documents without touching the archive.
package synth

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sj14/astral/pkg/astral"

	"github.com/yuzuleung/sun-visualization/internal/fallback"
	"github.com/yuzuleung/sun-visualization/internal/sun"
)

const clockLayout = "2006-01-02T15:04"

// Calculator computes daily records with astral. It satisfies sun.Archive.
type Calculator struct{}

// NewCalculator returns a Calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

func (c *Calculator) Name() string {
	return "astral"
}

// FetchYear computes every day of year for city.
func (c *Calculator) FetchYear(ctx context.Context, city sun.City, year int) ([]sun.DailyRecord, error) {
	loc := location(city)
	observer := astral.Observer{Latitude: city.Lat, Longitude: city.Lon}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]sun.DailyRecord, 0, 366)
	for d := start; d.Year() == year; d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, Day(observer, loc, d))
	}
	return out, nil
}

// Day computes the record for the calendar day of date in loc. Days on which
// the sun never crosses the horizon are encoded the way the archive reports
// them: midnight sun as 00:00 to the next day's 00:00, polar night as 00:00
// to 00:00 on the same day.
func Day(observer astral.Observer, loc *time.Location, date time.Time) sun.DailyRecord {
	day := date.Format("2006-01-02")
	rec := sun.DailyRecord{Date: day}

	rise, riseErr := localEvent(astral.Sunrise, observer, loc, date)
	set, setErr := localEvent(astral.Sunset, observer, loc, date)
	if riseErr != nil || setErr != nil {
		midnight := day + "T00:00"
		rec.Sunrise = midnight
		rec.Sunset = midnight
		if polarDay(observer.Latitude, date) {
			rec.Sunset = date.AddDate(0, 0, 1).Format("2006-01-02") + "T00:00"
		}
		return rec
	}
	rec.Sunrise = rise.Format(clockLayout)
	rec.Sunset = set.Format(clockLayout)
	return rec
}

type eventFunc func(astral.Observer, time.Time) (time.Time, error)

// localEvent finds the event that falls on date's calendar day in loc. astral
// works on UTC days, so for zones far from UTC the neighbouring UTC day can
// hold the local day's event.
func localEvent(fn eventFunc, observer astral.Observer, loc *time.Location, date time.Time) (time.Time, error) {
	want := date.Format("2006-01-02")
	var (
		first    time.Time
		firstErr error
	)
	for i, shift := range []int{0, -1, 1} {
		t, err := fn(observer, date.AddDate(0, 0, shift))
		if i == 0 {
			first, firstErr = t.In(loc), err
		}
		if err != nil {
			continue
		}
		if local := t.In(loc); local.Format("2006-01-02") == want {
			return local, nil
		}
	}
	if firstErr != nil {
		return time.Time{}, fmt.Errorf("no event on %s: %w", want, firstErr)
	}
	return first, nil
}

// polarDay reports whether the sun stays up at lat around date, using the
// solar declination.
func polarDay(lat float64, date time.Time) bool {
	n := float64(date.YearDay())
	decl := 23.44 * math.Sin(2*math.Pi/365*(284+n))
	return lat*decl > 0
}

func location(city sun.City) *time.Location {
	if loc, err := time.LoadLocation(city.TZ); err == nil {
		return loc
	}
	off := city.OffsetHours
	if off == 0 {
		off = sun.OffsetHours(city.TZ, time.Now().Year())
	}
	return time.FixedZone(city.TZ, int(off*3600))
}

// Document computes year for every city and returns it as a fallback
// document.
func Document(ctx context.Context, cities []sun.City, year int, now time.Time) (*fallback.Document, error) {
	calc := NewCalculator()
	datasets := make(map[string]sun.Dataset, len(cities))
	for _, c := range cities {
		daily, err := calc.FetchYear(ctx, c, year)
		if err != nil {
			return nil, fmt.Errorf("compute %s: %w", c.Name, err)
		}
		datasets[sun.DatasetKey(c.Name, year)] = sun.Dataset{City: c, Year: year, Daily: daily}
	}
	doc := fallback.Export(cities, datasets, now)
	doc.Metadata.Description = fmt.Sprintf("Computed sunrise/sunset for %d", year)
	return doc, nil
}

// Seed adds a computed year to doc for every roster city that has no series
// at all, so lookups by name always find something. It returns the number of
// entries added.
func Seed(ctx context.Context, doc *fallback.Document, year int, now time.Time) (int, error) {
	have := make(map[string]bool, len(doc.Data))
	for _, e := range doc.Data {
		have[e.City] = true
	}
	if doc.Data == nil {
		doc.Data = make(map[string]fallback.Entry)
	}

	calc := NewCalculator()
	stamp := now.UTC().Format(time.RFC3339)
	added := 0
	for _, c := range doc.Cities() {
		if have[c.Name] {
			continue
		}
		daily, err := calc.FetchYear(ctx, c, year)
		if err != nil {
			return added, fmt.Errorf("compute %s: %w", c.Name, err)
		}
		doc.Data[sun.DatasetKey(c.Name, year)] = fallback.Entry{
			City:        c.Name,
			Year:        year,
			Source:      fallback.SourceComputed,
			Daily:       daily,
			LastUpdated: stamp,
		}
		added++
	}
	doc.Metadata.TotalEntries = len(doc.Data)
	return added, nil
}
