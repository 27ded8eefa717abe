package staleness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerpipe/internal/manifest"
)

func TestCheckMissingRecord(t *testing.T) {
	m := manifest.NewManifest()
	entries := Check(m, []string{"2024-03-09"}, map[string]string{"timeline": "abc"})

	require.Len(t, entries, 1)
	assert.Equal(t, "2024-03-09", entries[0].Date)
	assert.Equal(t, "timeline", entries[0].UnitID)
	assert.Equal(t, ReasonMissing, entries[0].Reason)
	assert.Equal(t, "abc", entries[0].CurrentHash)
	assert.Empty(t, entries[0].StoredHash)
}

func TestCheckChangedFingerprint(t *testing.T) {
	m := manifest.NewManifest()
	m.Record("2024-03-09", "timeline", manifest.Record{QueryHash: "abc"})

	entries := Check(m, []string{"2024-03-09"}, map[string]string{"timeline": "xyz"})

	require.Len(t, entries, 1)
	assert.Equal(t, ReasonChanged, entries[0].Reason)
	assert.Equal(t, "xyz", entries[0].CurrentHash)
	assert.Equal(t, "abc", entries[0].StoredHash)
}

func TestCheckUpToDateOmitted(t *testing.T) {
	m := manifest.NewManifest()
	m.Record("2024-03-09", "timeline", manifest.Record{QueryHash: "abc"})

	entries := Check(m, []string{"2024-03-09"}, map[string]string{"timeline": "abc"})
	assert.Empty(t, entries)
}

func TestCheckSentinelAlwaysStale(t *testing.T) {
	m := manifest.NewManifest()
	m.Record("2024-03-09", "timeline", manifest.Record{QueryHash: "error"})

	entries := Check(m, []string{"2024-03-09"}, map[string]string{"timeline": "error"})
	require.Len(t, entries, 1)
	assert.Equal(t, ReasonChanged, entries[0].Reason)
}

func TestCheckCrossProductDeterministicOrder(t *testing.T) {
	m := manifest.NewManifest()
	dates := []string{"2024-03-09", "2024-03-08"}
	current := map[string]string{"b-unit": "h1", "a-unit": "h2"}

	first := Check(m, dates, current)
	second := Check(m, dates, current)
	require.Equal(t, first, second, "same inputs must produce the same report")

	require.Len(t, first, 4)
	assert.Equal(t, "2024-03-09", first[0].Date)
	assert.Equal(t, "a-unit", first[0].UnitID)
	assert.Equal(t, "b-unit", first[1].UnitID)
	assert.Equal(t, "2024-03-08", first[2].Date)
}

func TestFormatReport(t *testing.T) {
	m := manifest.NewManifest()
	m.Record("2024-03-09", "timeline", manifest.Record{QueryHash: "old1"})

	entries := Check(m, []string{"2024-03-09", "2024-03-08"}, map[string]string{
		"timeline":    "new1",
		"propagation": "p1",
	})
	out := Format(entries, []string{"timeline", "propagation", "sizes"})

	assert.Contains(t, out, `Unit "timeline" has been MODIFIED`)
	assert.Contains(t, out, "stored: old1")
	assert.Contains(t, out, `Unit "propagation" - MISSING data`)
	assert.Contains(t, out, `Unit "sizes" - OK`)

	assert.Contains(t, Format(nil, nil), "up-to-date")
}
