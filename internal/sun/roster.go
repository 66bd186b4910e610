package sun

import (
	"sort"
	"strings"
	"time"
)

// Roster is the resolved city list with the countries derived from it.
type Roster struct {
	Countries []Country `json:"countries"`
	Cities    []City    `json:"cities"`
}

// NewRoster derives the country list from cities and resolves each city's
// UTC offset from its timezone.
func NewRoster(cities []City) Roster {
	year := time.Now().Year()
	out := make([]City, len(cities))
	for i, c := range cities {
		if c.OffsetHours == 0 {
			c.OffsetHours = OffsetHours(c.TZ, year)
		}
		out[i] = c
	}
	return Roster{Countries: Countries(out), Cities: out}
}

// Countries lists the distinct countries of cities, ordered by code.
func Countries(cities []City) []Country {
	seen := make(map[string]Country)
	for _, c := range cities {
		if _, ok := seen[c.Country]; ok {
			continue
		}
		name := c.CountryName
		if name == "" {
			name = c.Country
		}
		seen[c.Country] = Country{Code: c.Country, Name: name, Flag: FlagEmoji(c.Country)}
	}
	out := make([]Country, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// FlagEmoji renders an ISO 3166 alpha-2 code as its regional indicator
// pair. Anything else gets a globe.
func FlagEmoji(code string) string {
	code = strings.ToUpper(code)
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return "🌍"
	}
	const base = 0x1F1E6
	return string([]rune{rune(base + int(code[0]-'A')), rune(base + int(code[1]-'A'))})
}
