package sun

import (
	"sort"
	"time"
)

// Outcome is the per-city result of a load.
type Outcome struct {
	City       string     `json:"city"`
	Year       int        `json:"year"`
	State      State      `json:"state"`
	Provenance Provenance `json:"provenance,omitempty"`
	Error      string     `json:"error,omitempty"`

	Err error `json:"-"`
}

// Summary aggregates the outcomes of one load run.
type Summary struct {
	RunID        string             `json:"runId"`
	Year         int                `json:"year"`
	Attempted    int                `json:"attempted"`
	Succeeded    int                `json:"succeeded"`
	Failed       int                `json:"failed"`
	CacheHits    int                `json:"cacheHits"`
	ByProvenance map[Provenance]int `json:"byProvenance"`
	Outcomes     []Outcome          `json:"outcomes"`
	StartedAt    time.Time          `json:"startedAt"`
	Duration     time.Duration      `json:"duration"`
}

// Summarize combines per-city outcomes into a Summary. Outcomes are sorted
// by city name; completion order carries no meaning.
func Summarize(runID string, year int, outcomes []Outcome, started time.Time, took time.Duration) Summary {
	s := Summary{
		RunID:     runID,
		Year:      year,
		Attempted: len(outcomes),
		ByProvenance: map[Provenance]int{
			ProvenanceRemote:   0,
			ProvenanceFallback: 0,
		},
		Outcomes:  make([]Outcome, len(outcomes)),
		StartedAt: started,
		Duration:  took,
	}
	copy(s.Outcomes, outcomes)
	sort.Slice(s.Outcomes, func(i, j int) bool {
		return s.Outcomes[i].City < s.Outcomes[j].City
	})

	for _, o := range s.Outcomes {
		if o.State == StateFailed {
			s.Failed++
			continue
		}
		s.Succeeded++
		if o.State == StateCacheHit {
			s.CacheHits++
		}
		if o.Provenance != "" {
			s.ByProvenance[o.Provenance]++
		}
	}
	return s
}
