// Package fallback reads and writes the bundled snapshot of sunrise/sunset
// series that is consulted when the live archive cannot answer.
package fallback

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/yuzuleung/sun-visualization/internal/sun"
)

// Source labels written into exported entries.
const (
	SourceArchive  = "open-meteo-archive"
	SourceFallback = "json-fallback"
	SourceComputed = "computed"
)

// ErrInvalidDocument is returned for documents missing metadata or data.
var ErrInvalidDocument = errors.New("invalid fallback document")

//go:embed roster.json
var defaultRoster []byte

// Document is the on-disk fallback format.
type Document struct {
	Metadata Metadata         `json:"metadata"`
	Data     map[string]Entry `json:"data"`
}

// Metadata describes the snapshot and carries the city roster.
type Metadata struct {
	ExportDate   string     `json:"exportDate"`
	TotalEntries int        `json:"totalEntries"`
	Cities       []CityMeta `json:"cities"`
	Description  string     `json:"description"`
}

// CityMeta is a roster entry as stored in the document.
type CityMeta struct {
	Country     string  `json:"country"`
	CountryName string  `json:"countryName"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	TZ          string  `json:"tz"`
}

// Entry is one city-year series keyed by "<city>_<year>".
type Entry struct {
	City        string            `json:"city"`
	Year        int               `json:"year"`
	Source      string            `json:"source"`
	Daily       []sun.DailyRecord `json:"daily"`
	LastUpdated string            `json:"lastUpdated"`
}

// Decode parses a document and checks its top-level shape.
func Decode(r io.Reader) (*Document, error) {
	var raw struct {
		Metadata *Metadata        `json:"metadata"`
		Data     map[string]Entry `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if raw.Metadata == nil || raw.Data == nil {
		return nil, fmt.Errorf("%w: missing data or metadata", ErrInvalidDocument)
	}
	return &Document{Metadata: *raw.Metadata, Data: raw.Data}, nil
}

// DecodeFile reads the document at path.
func DecodeFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fallback document: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// DefaultDocument returns the roster bundled with the binary. It holds
// cities but no series; synth.Seed fills those in at startup.
func DefaultDocument() *Document {
	doc, err := Decode(bytes.NewReader(defaultRoster))
	if err != nil {
		panic(fmt.Sprintf("bundled roster: %v", err))
	}
	return doc
}

// Cities converts the document's roster into sun cities with resolved offsets.
func (d *Document) Cities() []sun.City {
	out := make([]sun.City, 0, len(d.Metadata.Cities))
	for _, c := range d.Metadata.Cities {
		out = append(out, c.ToCity())
	}
	return sun.NewRoster(out).Cities
}

// ToCity converts a roster entry.
func (m CityMeta) ToCity() sun.City {
	return sun.City{
		Name:        m.City,
		Country:     m.Country,
		CountryName: m.CountryName,
		Lat:         m.Lat,
		Lon:         m.Lon,
		TZ:          m.TZ,
	}
}

// MetaFor converts a city into its roster entry.
func MetaFor(c sun.City) CityMeta {
	return CityMeta{
		Country:     c.Country,
		CountryName: c.CountryName,
		City:        c.Name,
		Lat:         c.Lat,
		Lon:         c.Lon,
		TZ:          c.TZ,
	}
}

// Write encodes doc as indented JSON.
func Write(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

// WriteFile writes doc to path.
func WriteFile(path string, doc *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, doc); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
