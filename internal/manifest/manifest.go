// Package manifest persists the pipeline's single source of truth: which
// (date, unit) pairs have been produced, with which fingerprint, and where.
//
// The manifest is a forward-compatible JSON document: absent fields default to
// empty, unknown fields are ignored, and documents written by an older schema
// are migrated on load.
package manifest

import "time"

// SchemaVersion is written by every save. Evolution is additive only so older
// readers keep working.
const SchemaVersion = "2.0"

// Record describes one successful production of a unit for a date. It is
// overwritten whole on every successful re-production, never partially merged.
type Record struct {
	FetchedAt     time.Time `json:"fetched_at"`
	QueryHash     string    `json:"query_hash"`
	RowCount      int64     `json:"row_count"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	OutputFile    string    `json:"output_file,omitempty"`
}

// Manifest is the persisted pipeline state.
//
// Invariants maintained by Store.Save:
//   - Dates is newest-first and mirrors the date partition directories
//     actually on disk.
//   - Latest equals the first element of Dates, or "" when empty.
type Manifest struct {
	SchemaVersion string                       `json:"schema_version"`
	Dates         []string                     `json:"dates"`
	Latest        string                       `json:"latest"`
	QueryHashes   map[string]string            `json:"query_hashes"`
	DateQueries   map[string]map[string]Record `json:"date_queries"`
	UpdatedAt     time.Time                    `json:"updated_at"`
}

// NewManifest returns an empty manifest at the current schema version.
func NewManifest() *Manifest {
	return &Manifest{
		SchemaVersion: SchemaVersion,
		Dates:         []string{},
		QueryHashes:   map[string]string{},
		DateQueries:   map[string]map[string]Record{},
	}
}

// Record merges one successful production into the manifest. Sibling units of
// the same date are left untouched; the unit's previous record, if any, is
// replaced whole.
func (m *Manifest) Record(date, unitID string, rec Record) {
	if m.DateQueries == nil {
		m.DateQueries = map[string]map[string]Record{}
	}
	if m.DateQueries[date] == nil {
		m.DateQueries[date] = map[string]Record{}
	}
	m.DateQueries[date][unitID] = rec
}

// Lookup returns the stored record for (date, unit), if any.
func (m *Manifest) Lookup(date, unitID string) (Record, bool) {
	rec, ok := m.DateQueries[date][unitID]
	return rec, ok
}

// normalize migrates older documents and fills absent fields so callers never
// see nil maps.
func (m *Manifest) normalize() {
	if m.SchemaVersion == "" {
		m.SchemaVersion = SchemaVersion
	}
	if m.Dates == nil {
		m.Dates = []string{}
	}
	if m.QueryHashes == nil {
		m.QueryHashes = map[string]string{}
	}
	if m.DateQueries == nil {
		m.DateQueries = map[string]map[string]Record{}
	}
}
