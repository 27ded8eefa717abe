package dist

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerpipe/internal/render"
)

func TestCollectDataCopiesOnlyRenderedDates(t *testing.T) {
	dataDir := t.TempDir()
	renderedDir := t.TempDir()
	destDir := filepath.Join(t.TempDir(), "dist", "data")

	for _, d := range []string{"2024-03-08", "2024-03-09"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dataDir, d), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, d, "timeline.csv"), []byte("x,y\n"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "manifest.json"), []byte("{}"), 0o644))

	// Only one date has a rendered report.
	rm := render.LoadManifest(renderedDir)
	rm.Record("2024-03-09", "overview", render.Entry{HTMLPath: "latest/overview.html"})
	require.NoError(t, render.SaveManifest(renderedDir, rm))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	stats, err := CollectData(dataDir, renderedDir, destDir, log)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Dates)
	assert.Equal(t, 2, stats.Files) // timeline.csv + manifest.json

	_, err = os.Stat(filepath.Join(destDir, "2024-03-09", "timeline.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(destDir, "2024-03-08"))
	assert.True(t, os.IsNotExist(err), "unrendered dates must not be published")
	_, err = os.Stat(filepath.Join(destDir, "manifest.json"))
	assert.NoError(t, err)
}

func TestCollectDataNothingRendered(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	stats, err := CollectData(t.TempDir(), t.TempDir(), filepath.Join(t.TempDir(), "out"), log)
	require.NoError(t, err)
	assert.Zero(t, stats.Files)
}
