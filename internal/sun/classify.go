package sun

// Classify decides whether instantMin is day or night for a day whose
// sunrise and sunset fall on sunriseMin and sunsetMin (UTC minutes of day).
// sunriseDay and sunsetDay are the calendar-day ordinals the two values were
// recorded on; they only matter in the polar case.
func Classify(sunriseMin, sunsetMin, instantMin, sunriseDay, sunsetDay int) Phase {
	switch {
	case sunriseMin == 0 && sunsetMin == 0:
		// Both at midnight: a sunset recorded on the next day is midnight
		// sun, otherwise the sun never rises.
		if sunsetDay > sunriseDay {
			return Day
		}
		return Night
	case sunriseMin == sunsetMin:
		return Night
	case sunriseMin > sunsetMin:
		if instantMin >= sunriseMin || instantMin <= sunsetMin {
			return Night
		}
		return Day
	default:
		if instantMin >= sunriseMin && instantMin <= sunsetMin {
			return Day
		}
		return Night
	}
}

// ClassifyRecord converts a record with the city's offset and classifies
// instantMin. valid is false when either wall clock could not be parsed;
// the phase is still computed from the coerced values.
func ClassifyRecord(rec DailyRecord, offsetHours float64, instantMin int) (phase Phase, sunriseMin, sunsetMin int, valid bool) {
	sunriseMin, rerr := LocalToUTCMinutesStrict(rec.Sunrise, offsetHours)
	sunsetMin, serr := LocalToUTCMinutesStrict(rec.Sunset, offsetHours)
	riseDay, setDay := rec.Ordinals()
	phase = Classify(sunriseMin, sunsetMin, instantMin, riseDay, setDay)
	return phase, sunriseMin, sunsetMin, rerr == nil && serr == nil
}
