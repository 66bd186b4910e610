package sun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalToUTCMinutes(t *testing.T) {
	tests := []struct {
		name   string
		wall   string
		offset float64
		want   int
	}{
		{"plain clock utc", "06:30", 0, 390},
		{"iso timestamp tokyo wraps backwards", "2024-01-01T06:51", 9, 1311},
		{"new york wraps forwards", "2024-06-21T20:31", -5, 91},
		{"half hour offset", "2024-01-01T05:00", 5.5, 1410},
		{"seconds ignored", "2024-01-01T12:00:59", 1, 660},
		{"midnight", "2024-06-21T00:00", 0, 0},
		{"last minute", "23:59", 0, 1439},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LocalToUTCMinutes(tt.wall, tt.offset))
		})
	}
}

func TestLocalToUTCMinutesUnparsable(t *testing.T) {
	for _, in := range []string{"", "garbage", "2024-01-01", "2024-01-01Txx:10", "25:00", "10:75"} {
		assert.Equal(t, 0, LocalToUTCMinutes(in, 9), "input %q", in)

		m, err := LocalToUTCMinutesStrict(in, 9)
		assert.ErrorIs(t, err, ErrTimeParse, "input %q", in)
		assert.Equal(t, 0, m)
	}
}

func TestLocalToUTCMinutesAlwaysInRange(t *testing.T) {
	for off := -12.0; off <= 14.0; off += 0.5 {
		for h := 0; h < 24; h++ {
			for m := 0; m < 60; m += 7 {
				got, err := LocalToUTCMinutesStrict(FormatMinutes(h*60+m), off)
				require.NoError(t, err)
				if got < 0 || got > 1439 {
					t.Fatalf("offset %v, %02d:%02d -> %d out of range", off, h, m, got)
				}
			}
		}
	}
}

func TestDailyRecordOrdinals(t *testing.T) {
	midnightSun := DailyRecord{Date: "2024-12-21", Sunrise: "2024-12-21T00:00", Sunset: "2024-12-22T00:00"}
	rise, set := midnightSun.Ordinals()
	assert.Equal(t, rise+1, set)

	monthEnd := DailyRecord{Date: "2024-06-30", Sunrise: "2024-06-30T00:00", Sunset: "2024-07-01T00:00"}
	rise, set = monthEnd.Ordinals()
	assert.Greater(t, set, rise)

	polarNight := DailyRecord{Date: "2024-12-21", Sunrise: "2024-12-21T00:00", Sunset: "2024-12-21T00:00"}
	rise, set = polarNight.Ordinals()
	assert.Equal(t, rise, set)

	clockOnly := DailyRecord{Date: "2024-03-01", Sunrise: "06:00", Sunset: "18:00"}
	rise, set = clockOnly.Ordinals()
	assert.Equal(t, rise, set)
	assert.NotZero(t, rise)
}

func TestDateFromYearDay(t *testing.T) {
	assert.Equal(t, "2024-01-01", DateFromYearDay(2024, 1))
	assert.Equal(t, "2024-02-29", DateFromYearDay(2024, 60))
	assert.Equal(t, "2023-03-01", DateFromYearDay(2023, 60))
	assert.Equal(t, "2024-12-31", DateFromYearDay(2024, 366))
}

func TestFormatAndParseMinutes(t *testing.T) {
	assert.Equal(t, "00:00", FormatMinutes(0))
	assert.Equal(t, "23:59", FormatMinutes(1439))
	assert.Equal(t, "00:00", FormatMinutes(1440))
	assert.Equal(t, "23:59", FormatMinutes(-1))

	m, err := ParseMinutes("18:30")
	require.NoError(t, err)
	assert.Equal(t, 1110, m)

	_, err = ParseMinutes("noon")
	assert.ErrorIs(t, err, ErrTimeParse)
}

func TestOffsetHours(t *testing.T) {
	assert.InDelta(t, 9, OffsetHours("Asia/Tokyo", 2024), 0)
	assert.InDelta(t, 5.5, OffsetHours("Asia/Kolkata", 2024), 0)
	assert.InDelta(t, 13, OffsetHours("Antarctica/McMurdo", 2024), 0)
	assert.InDelta(t, 4, OffsetHours("Asia/Dubai", 2024), 0)
	assert.InDelta(t, 0, OffsetHours("Not/AZone", 2024), 0)
	assert.InDelta(t, 0, OffsetHours("", 2024), 0)
}
