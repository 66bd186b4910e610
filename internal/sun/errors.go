package sun

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient covers rate limiting, server errors, timeouts and network
	// failures from the archive. Recovered by the fallback hop.
	ErrTransient = errors.New("transient acquisition error")

	// ErrMalformedResponse is returned when the archive answers without the
	// expected daily series. Treated like ErrTransient.
	ErrMalformedResponse = errors.New("malformed archive response")

	// ErrDataUnavailable is matched by *DataUnavailableError.
	ErrDataUnavailable = errors.New("sun data unavailable")

	// ErrTimeParse is reported by LocalToUTCMinutesStrict.
	ErrTimeParse = errors.New("unparsable wall clock value")

	// ErrFallbackMiss is returned by fallback stores that hold nothing for a city.
	ErrFallbackMiss = errors.New("no fallback data")
)

// DataUnavailableError is the terminal acquisition failure: no cache hit, no
// live fetch and no fallback match.
type DataUnavailableError struct {
	City     string
	Year     int
	Remote   error
	Fallback error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("all data sources failed for %s (%d): remote: %v; fallback: %v",
		e.City, e.Year, e.Remote, e.Fallback)
}

// Unwrap exposes both underlying reasons to errors.Is / errors.As.
func (e *DataUnavailableError) Unwrap() []error {
	var errs []error
	if e.Remote != nil {
		errs = append(errs, e.Remote)
	}
	if e.Fallback != nil {
		errs = append(errs, e.Fallback)
	}
	return errs
}

func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}
