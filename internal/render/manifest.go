// Package render executes report notebooks against fetched data and tracks
// what has been rendered, re-rendering only when a notebook's source changes.
package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"peerpipe/internal/fingerprint"
	"peerpipe/internal/manifest"
)

// ManifestName is the render manifest file inside the rendered directory.
const ManifestName = "manifest.json"

// Entry records one rendered notebook for one date.
type Entry struct {
	RenderedAt   time.Time `json:"rendered_at"`
	NotebookHash string    `json:"notebook_hash"`
	HTMLPath     string    `json:"html_path"`
}

// Manifest is the persisted render state, independent of the pipeline data
// manifest. Same forward-compatible rules: absent fields default empty.
type Manifest struct {
	LatestDate string                      `json:"latest_date"`
	Dates      map[string]map[string]Entry `json:"dates"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

// LoadManifest reads the render manifest under dir, returning an empty one
// when the file is missing or unreadable.
func LoadManifest(dir string) *Manifest {
	m := &Manifest{Dates: map[string]map[string]Entry{}}
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return m
	}
	if err := json.Unmarshal(data, m); err != nil {
		return &Manifest{Dates: map[string]map[string]Entry{}}
	}
	if m.Dates == nil {
		m.Dates = map[string]map[string]Entry{}
	}
	return m
}

// SaveManifest writes the render manifest with an updated timestamp.
func SaveManifest(dir string, m *Manifest) error {
	m.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding render manifest: %w", err)
	}
	if err := manifest.WriteFileAtomic(filepath.Join(dir, ManifestName), data, 0o644); err != nil {
		return fmt.Errorf("writing render manifest: %w", err)
	}
	return nil
}

// Record merges one successful render into the manifest.
func (m *Manifest) Record(date, notebookID string, e Entry) {
	if m.Dates[date] == nil {
		m.Dates[date] = map[string]Entry{}
	}
	m.Dates[date][notebookID] = e
}

// ShouldRender reports whether a notebook needs re-rendering for a date:
// never rendered, source hash moved, or force requested.
func (m *Manifest) ShouldRender(notebookID, source, date string, force bool) bool {
	if force {
		return true
	}
	existing, ok := m.Dates[date][notebookID]
	if !ok {
		return true
	}
	return fingerprint.File(source) != existing.NotebookHash
}
