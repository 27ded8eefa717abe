package render

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerpipe/internal/fingerprint"
)

func TestLoadManifestMissing(t *testing.T) {
	m := LoadManifest(t.TempDir())
	assert.Empty(t, m.LatestDate)
	assert.NotNil(t, m.Dates)
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()

	m := LoadManifest(dir)
	m.Record("2024-03-09", "overview", Entry{
		RenderedAt:   time.Now().UTC(),
		NotebookHash: "abc123def456",
		HTMLPath:     "latest/overview.html",
	})
	m.LatestDate = "2024-03-09"
	require.NoError(t, SaveManifest(dir, m))

	got := LoadManifest(dir)
	assert.Equal(t, "2024-03-09", got.LatestDate)
	entry, ok := got.Dates["2024-03-09"]["overview"]
	require.True(t, ok)
	assert.Equal(t, "abc123def456", entry.NotebookHash)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSaveManifestLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveManifest(dir, LoadManifest(dir)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ManifestName, entries[0].Name())
}

func TestShouldRender(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "overview.ipynb")
	require.NoError(t, os.WriteFile(source, []byte(`{"cells":[]}`), 0o644))

	m := LoadManifest(dir)

	assert.True(t, m.ShouldRender("overview", source, "2024-03-09", false), "never rendered")

	// Record the current source hash; now it is up to date.
	m.Record("2024-03-09", "overview", Entry{NotebookHash: fingerprint.File(source)})
	assert.False(t, m.ShouldRender("overview", source, "2024-03-09", false))

	assert.True(t, m.ShouldRender("overview", source, "2024-03-09", true), "force overrides")

	// Source edit invalidates.
	require.NoError(t, os.WriteFile(source, []byte(`{"cells":[1]}`), 0o644))
	assert.True(t, m.ShouldRender("overview", source, "2024-03-09", false))
}
