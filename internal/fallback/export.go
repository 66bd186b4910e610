package fallback

import (
	"time"

	"github.com/yuzuleung/sun-visualization/internal/sun"
)

const exportDescription = "Complete API data export for fallback mode"

// Export builds a fallback document from the loaded datasets, keyed as the
// loader keys them. Documents produced here load back through NewStore.
func Export(cities []sun.City, datasets map[string]sun.Dataset, now time.Time) *Document {
	stamp := now.UTC().Format(time.RFC3339)
	doc := &Document{
		Metadata: Metadata{
			ExportDate:   stamp,
			TotalEntries: len(datasets),
			Cities:       make([]CityMeta, 0, len(cities)),
			Description:  exportDescription,
		},
		Data: make(map[string]Entry, len(datasets)),
	}
	for _, c := range cities {
		doc.Metadata.Cities = append(doc.Metadata.Cities, MetaFor(c))
	}
	for key, ds := range datasets {
		updated := ds.LastUpdated
		if updated == "" {
			updated = stamp
		}
		doc.Data[key] = Entry{
			City:        ds.City.Name,
			Year:        ds.Year,
			Source:      sourceOf(ds.Provenance),
			Daily:       ds.Daily,
			LastUpdated: updated,
		}
	}
	return doc
}

// FileName is the conventional name of an export written at now.
func FileName(now time.Time) string {
	return "sun-data-fallback-" + now.UTC().Format("2006-01-02") + ".json"
}

func sourceOf(p sun.Provenance) string {
	switch p {
	case sun.ProvenanceRemote:
		return SourceArchive
	case sun.ProvenanceFallback:
		return SourceFallback
	}
	return SourceComputed
}
