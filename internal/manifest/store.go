package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

// FileName is the manifest document inside the data directory.
const FileName = "manifest.json"

var datePartition = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Store reads and writes the manifest under a data directory laid out as one
// partition directory per date:
//
//	<dir>/
//	  manifest.json
//	  2024-03-09/<unit output files>
//	  2024-03-08/...
//
// Writes are atomic (temp file + rename + dir sync), so a concurrent reader
// never observes a partial document. Concurrent writers are not supported;
// single-writer discipline is an operational precondition.
type Store struct {
	Dir string

	Log *slog.Logger
}

// NewStore creates a store rooted at the given data directory.
func NewStore(dir string) *Store {
	return &Store{Dir: dir, Log: slog.Default()}
}

func (s *Store) path() string {
	return filepath.Join(s.Dir, FileName)
}

// DatePath returns the partition directory for a date.
func (s *Store) DatePath(date string) string {
	return filepath.Join(s.Dir, date)
}

// Load reads the manifest, returning a fresh empty one when the file is
// missing. A corrupt document also yields a fresh manifest: reads tolerate
// damage, and the next Save rebuilds state from what is actually on disk.
func (s *Store) Load() (*Manifest, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(), nil
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		s.Log.Warn("manifest unreadable, starting from empty state", "path", s.path(), "error", err)
		return NewManifest(), nil
	}
	m.normalize()
	return &m, nil
}

// Save persists the manifest. Before writing it rescans the date partition
// directories so that externally deleted partitions self-heal out of
// Dates/Latest instead of being trusted from the previous document.
func (s *Store) Save(m *Manifest) error {
	m.normalize()

	dates, err := s.scanDates()
	if err != nil {
		return err
	}
	m.Dates = dates
	m.Latest = ""
	if len(dates) > 0 {
		m.Latest = dates[0]
	}
	m.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := WriteFileAtomic(s.path(), data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Prune removes every date strictly older than cutoff: the partition
// directory and its manifest records go together, never one without the
// other. The caller is expected to Save afterwards. Returns the pruned dates.
func (s *Store) Prune(m *Manifest, cutoff string) ([]string, error) {
	dates, err := s.scanDates()
	if err != nil {
		return nil, err
	}

	var pruned []string
	for _, date := range dates {
		if date >= cutoff {
			continue
		}
		if err := os.RemoveAll(s.DatePath(date)); err != nil {
			return pruned, fmt.Errorf("pruning %s: %w", date, err)
		}
		delete(m.DateQueries, date)
		pruned = append(pruned, date)
		s.Log.Info("pruned date partition", "date", date)
	}
	return pruned, nil
}

// scanDates lists the date partition directories on disk, newest first.
func (s *Store) scanDates() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("scanning data dir: %w", err)
	}

	dates := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && datePartition.MatchString(e.Name()) {
			dates = append(dates, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

// WriteFileAtomic writes data so a reader sees either the old or the new
// content, never a mix: write to a temp file in the same directory, fsync,
// rename over the target, fsync the directory.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true

	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
