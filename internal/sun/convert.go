package sun

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone lookups must not depend on the host's zoneinfo
)

const (
	minutesPerDay = 1440
	dateLayout    = "2006-01-02"
)

// LocalToUTCMinutes converts a local wall clock value ("HH:MM" or
// "YYYY-MM-DDTHH:MM[:SS]") into a UTC minute of day in [0,1439].
//
// Unparsable input yields 0. Callers that must tell a real midnight from a
// bad value should use LocalToUTCMinutesStrict.
func LocalToUTCMinutes(wallClock string, offsetHours float64) int {
	m, _ := LocalToUTCMinutesStrict(wallClock, offsetHours)
	return m
}

// LocalToUTCMinutesStrict is LocalToUTCMinutes with the parse failure
// reported. On error the returned minute is 0.
func LocalToUTCMinutesStrict(wallClock string, offsetHours float64) (int, error) {
	h, m, err := parseClock(wallClock)
	if err != nil {
		return 0, err
	}
	utc := h*60 + m - int(math.Round(offsetHours*60))
	return wrapMinutes(utc), nil
}

func parseClock(wallClock string) (hour, minute int, err error) {
	s := strings.TrimSpace(wallClock)
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[i+1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrTimeParse, wallClock)
	}
	hour, herr := strconv.Atoi(parts[0])
	minute, merr := strconv.Atoi(parts[1])
	if herr != nil || merr != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrTimeParse, wallClock)
	}
	return hour, minute, nil
}

func wrapMinutes(m int) int {
	m %= minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return m
}

// Ordinals returns the calendar-day ordinals (days since 1970-01-01) on
// which sunrise and sunset were recorded. A wall clock without a date
// portion falls back to the record's Date.
func (r DailyRecord) Ordinals() (sunriseDay, sunsetDay int) {
	base := dayOrdinal(r.Date, 0)
	return dayOrdinal(datePart(r.Sunrise), base), dayOrdinal(datePart(r.Sunset), base)
}

func datePart(wallClock string) string {
	if i := strings.IndexByte(wallClock, 'T'); i >= 0 {
		return wallClock[:i]
	}
	return ""
}

func dayOrdinal(date string, def int) int {
	if date == "" {
		return def
	}
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return def
	}
	return int(t.Unix() / 86400)
}

// DateFromYearDay returns the "YYYY-MM-DD" date of the 1-based day of year.
// Days past the end of the year roll into the next one.
func DateFromYearDay(year, day int) string {
	return time.Date(year, time.January, day, 0, 0, 0, 0, time.UTC).Format(dateLayout)
}

// FormatMinutes renders a minute of day as "HH:MM".
func FormatMinutes(m int) string {
	m = wrapMinutes(m)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseMinutes is the inverse of FormatMinutes.
func ParseMinutes(hhmm string) (int, error) {
	h, m, err := parseClock(hhmm)
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

// knownOffsets are the offsets the roster was built with. They are the
// zones' January offsets, so southern hemisphere zones carry summer time.
var knownOffsets = map[string]float64{
	"Asia/Shanghai":       8,
	"Asia/Tokyo":          9,
	"Asia/Seoul":          9,
	"Asia/Kolkata":        5.5,
	"Europe/London":       0,
	"Europe/Berlin":       1,
	"Europe/Paris":        1,
	"Europe/Rome":         1,
	"Europe/Madrid":       1,
	"Europe/Moscow":       3,
	"America/New_York":    -5,
	"America/Chicago":     -6,
	"America/Los_Angeles": -8,
	"America/Toronto":     -5,
	"America/Vancouver":   -8,
	"America/Montreal":    -5,
	"America/Sao_Paulo":   -3,
	"Australia/Sydney":    11,
	"Australia/Melbourne": 11,
	"Australia/Brisbane":  10,
	"Africa/Cape_Town":    2,
	"Africa/Johannesburg": 2,
	"America/Nuuk":        -3,
	"Antarctica/McMurdo":  13,
	"Antarctica/Rothera":  -3,
}

// OffsetHours resolves a timezone identifier into the fixed offset used for
// conversion: the known table first, then the tz database offset on
// January 1st of year, then 0.
func OffsetHours(tz string, year int) float64 {
	if off, ok := knownOffsets[tz]; ok {
		return off
	}
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		return 0
	}
	_, secs := time.Date(year, time.January, 1, 12, 0, 0, 0, loc).Zone()
	return float64(secs) / 3600
}
