package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerpipe/internal/dates"
)

const sampleYAML = `
settings:
  data_dir: notebooks/data
  network: mainnet

dates:
  mode: rolling
  rolling:
    window: 7
    start: "2024-01-15"

queries:
  block_timeline:
    source: internal/queries/timeline.go
    function: BlockTimeline
    output_file: block_timeline.csv
  propagation:
    source: internal/queries/propagation.go
    function: Propagation
    output_file: propagation.csv

notebooks:
  - id: peerdas-overview
    source: notebooks/overview.ipynb

publish:
  bucket: peerdas-site
  endpoint: https://example.r2.cloudflarestorage.com
  region: auto
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, dates.ModeRolling, cfg.Dates.Mode)
	assert.Equal(t, 7, cfg.Dates.Rolling.Window)
	assert.Equal(t, "2024-01-15", cfg.Dates.Rolling.Start)

	require.Contains(t, cfg.Queries, "block_timeline")
	assert.Equal(t, "BlockTimeline", cfg.Queries["block_timeline"].Function)
	assert.Equal(t, []string{"block_timeline", "propagation"}, cfg.QueryIDs())

	require.Len(t, cfg.Notebooks, 1)
	assert.Equal(t, "peerdas-overview", cfg.Notebooks[0].ID)

	assert.Equal(t, "peerdas-site", cfg.Publish.Bucket)
	// Defaults fill unset settings.
	assert.Equal(t, "site/dist", cfg.Settings.DistDir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"query without function", "queries:\n  q1:\n    source: a.go\n    output_file: q1.csv\n"},
		{"query without output file", "queries:\n  q1:\n    source: a.go\n    function: F\n"},
		{"notebook without id", "notebooks:\n  - source: nb.ipynb\n"},
		{"duplicate notebook id", "notebooks:\n  - id: a\n    source: x.ipynb\n  - id: a\n    source: y.ipynb\n"},
		{"malformed yaml", "queries: [unclosed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			var cfgErr *Error
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}
