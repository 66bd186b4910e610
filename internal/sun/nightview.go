package sun

// AllCountries selects every city in FilterCountry.
const AllCountries = "ALL"

// CityStatus is the classification of one city at one instant.
type CityStatus struct {
	City       string     `json:"city"`
	Country    string     `json:"country"`
	Lat        float64    `json:"lat"`
	Lon        float64    `json:"lon"`
	Phase      Phase      `json:"phase,omitempty"`
	SunriseUTC string     `json:"sunriseUtc,omitempty"`
	SunsetUTC  string     `json:"sunsetUtc,omitempty"`
	Provenance Provenance `json:"provenance,omitempty"`

	// Loaded is false when no dataset (or an empty one) was available.
	Loaded bool `json:"loaded"`
	// Valid is false when a wall clock value could not be parsed and was
	// coerced to midnight.
	Valid bool `json:"valid"`
}

// Evaluate classifies minute (UTC, 0..1439) of the 1-based day of year for
// city using ds. The day is clamped into the series.
func Evaluate(city City, ds Dataset, day, minute int) CityStatus {
	st := CityStatus{
		City:    city.Name,
		Country: city.Country,
		Lat:     city.Lat,
		Lon:     city.Lon,
	}
	rec, ok := ds.Day(day - 1)
	if !ok || rec.Sunrise == "" || rec.Sunset == "" {
		return st
	}

	offset := city.OffsetHours
	if offset == 0 {
		offset = OffsetHours(city.TZ, ds.Year)
	}
	phase, rise, set, valid := ClassifyRecord(rec, offset, wrapMinutes(minute))

	st.Loaded = true
	st.Valid = valid
	st.Phase = phase
	st.SunriseUTC = FormatMinutes(rise)
	st.SunsetUTC = FormatMinutes(set)
	st.Provenance = ds.Provenance
	return st
}

// NightView evaluates every city at the given instant. lookup returns the
// city's dataset for year, if loaded.
func NightView(cities []City, lookup func(city string, year int) (Dataset, bool), year, day, minute int) []CityStatus {
	out := make([]CityStatus, 0, len(cities))
	for _, c := range cities {
		ds, ok := lookup(c.Name, year)
		if !ok {
			out = append(out, CityStatus{City: c.Name, Country: c.Country, Lat: c.Lat, Lon: c.Lon})
			continue
		}
		out = append(out, Evaluate(c, ds, day, minute))
	}
	return out
}

// FilterCountry returns the cities of country, or all of them for AllCountries.
func FilterCountry(cities []City, country string) []City {
	if country == "" || country == AllCountries {
		return cities
	}
	var out []City
	for _, c := range cities {
		if c.Country == country {
			out = append(out, c)
		}
	}
	return out
}
