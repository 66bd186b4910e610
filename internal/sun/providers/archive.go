// Package providers holds the remote sunrise/sunset archive clients.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/yuzuleung/sun-visualization/internal/sun"
)

const (
	// DefaultArchiveURL is the Open-Meteo historical archive endpoint.
	DefaultArchiveURL = "https://archive-api.open-meteo.com/v1/archive"

	// DefaultArchiveLag is how far the archive trails real time.
	DefaultArchiveLag = 5 * 24 * time.Hour
)

// ArchiveProvider implements sun.Archive against the Open-Meteo archive.
type ArchiveProvider struct {
	name    string
	baseURL string
	lag     time.Duration
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

// ArchiveOption customises an ArchiveProvider.
type ArchiveOption func(*ArchiveProvider)

// WithBackoff overrides the retry policy.
func WithBackoff(b BackoffConfig) ArchiveOption {
	return func(p *ArchiveProvider) { p.httpCfg.Backoff = b }
}

// WithLag sets how far behind real time the archive's last day is.
func WithLag(lag time.Duration) ArchiveOption {
	return func(p *ArchiveProvider) {
		if lag >= 0 {
			p.lag = lag
		}
	}
}

// WithNow replaces time.Now.
func WithNow(now func() time.Time) ArchiveOption {
	return func(p *ArchiveProvider) { p.now = now }
}

// NewArchiveProvider creates an archive client. An empty baseURL selects
// DefaultArchiveURL. By default only the fallback hop recovers a failed
// fetch; WithBackoff enables retries.
func NewArchiveProvider(client *http.Client, baseURL string, opts ...ArchiveOption) *ArchiveProvider {
	if baseURL == "" {
		baseURL = DefaultArchiveURL
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo-archive",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	p := &ArchiveProvider{
		name:    "openmeteo-archive",
		baseURL: baseURL,
		lag:     DefaultArchiveLag,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      0,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ArchiveProvider) Name() string {
	return p.name
}

// Window returns the requested date range for year: the whole calendar
// year, with the end pulled back to what the archive can already serve.
func (p *ArchiveProvider) Window(year int) (start, end time.Time, err error) {
	start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end = time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	latest := p.now().UTC().Add(-p.lag)
	latest = time.Date(latest.Year(), latest.Month(), latest.Day(), 0, 0, 0, 0, time.UTC)
	if end.After(latest) {
		end = latest
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("%w: archive has no data for %d yet", sun.ErrTransient, year)
	}
	return start, end, nil
}

type archivePayload struct {
	Daily *struct {
		Time    []string `json:"time"`
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

// FetchYear requests the sunrise/sunset series for city over year.
func (p *ArchiveProvider) FetchYear(ctx context.Context, city sun.City, year int) ([]sun.DailyRecord, error) {
	start, end, err := p.Window(year)
	if err != nil {
		return nil, err
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(city.Lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(city.Lon, 'f', -1, 64))
		values.Set("start_date", start.Format("2006-01-02"))
		values.Set("end_date", end.Format("2006-01-02"))
		values.Set("daily", "sunrise,sunset")
		values.Set("timezone", city.TZ)

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload archivePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", sun.ErrMalformedResponse, err)
	}
	d := payload.Daily
	if d == nil || d.Time == nil || d.Sunrise == nil || d.Sunset == nil {
		return nil, fmt.Errorf("%w: missing daily series", sun.ErrMalformedResponse)
	}
	if len(d.Sunrise) != len(d.Time) || len(d.Sunset) != len(d.Time) {
		return nil, fmt.Errorf("%w: series lengths differ (%d/%d/%d)",
			sun.ErrMalformedResponse, len(d.Time), len(d.Sunrise), len(d.Sunset))
	}

	out := make([]sun.DailyRecord, len(d.Time))
	for i := range d.Time {
		out[i] = sun.DailyRecord{Date: d.Time[i], Sunrise: d.Sunrise[i], Sunset: d.Sunset[i]}
	}
	return out, nil
}
