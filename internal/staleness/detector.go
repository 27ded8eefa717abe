// Package staleness diffs current work-unit fingerprints against the
// manifest, per (date, unit) pair.
package staleness

import (
	"sort"

	"peerpipe/internal/fingerprint"
	"peerpipe/internal/manifest"
)

// Reason classifies why a (date, unit) pair is stale.
type Reason string

const (
	// ReasonMissing means no record exists for the pair.
	ReasonMissing Reason = "data_missing"
	// ReasonChanged means a record exists but its fingerprint differs from
	// the unit's current one.
	ReasonChanged Reason = "query_changed"
)

// Entry is one stale (date, unit) pair with both fingerprints for
// diagnostics. Entries are ephemeral and never persisted.
type Entry struct {
	Date        string
	UnitID      string
	Reason      Reason
	CurrentHash string
	StoredHash  string
}

// Check computes the staleness report for the cross product of dates and the
// units in current. It is pure: the same (manifest, dates, fingerprints)
// triple always yields the same report, with dates in the given order and
// units sorted within each date.
//
// A current fingerprint equal to the hash engine's sentinel always produces
// an entry: a unit that cannot be fingerprinted is treated as stale.
func Check(m *manifest.Manifest, dateKeys []string, current map[string]string) []Entry {
	unitIDs := make([]string, 0, len(current))
	for id := range current {
		unitIDs = append(unitIDs, id)
	}
	sort.Strings(unitIDs)

	var entries []Entry
	for _, date := range dateKeys {
		for _, id := range unitIDs {
			cur := current[id]
			rec, ok := m.Lookup(date, id)
			switch {
			case !ok || rec.QueryHash == "":
				entries = append(entries, Entry{
					Date: date, UnitID: id,
					Reason:      ReasonMissing,
					CurrentHash: cur,
				})
			case rec.QueryHash != cur || cur == fingerprint.Sentinel:
				entries = append(entries, Entry{
					Date: date, UnitID: id,
					Reason:      ReasonChanged,
					CurrentHash: cur,
					StoredHash:  rec.QueryHash,
				})
			}
		}
	}
	return entries
}
