package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerpipe/internal/manifest"
	"peerpipe/internal/pipeline"
)

// Every incremental save during a fetch run must produce a document whose
// top-level hash map agrees with the records it carries, so a crash between
// saves never leaves the two out of step.
func TestRecordFetchSuccessKeepsDocumentConsistent(t *testing.T) {
	store := manifest.NewStore(t.TempDir())
	man, err := store.Load()
	require.NoError(t, err)
	man.QueryHashes = map[string]string{"block_propagation": "aaaaaaaaaaaa"}

	hashes := map[string]string{"block_propagation": "bbbbbbbbbbbb"}
	it := pipeline.Item{Date: "2024-03-09", UnitID: "block_propagation"}
	res := pipeline.Result{OutputPath: "block_propagation.csv", RowCount: 3, SizeBytes: 42}
	require.NoError(t, recordFetchSuccess(store, man, hashes, it, res))

	saved, err := store.Load()
	require.NoError(t, err)
	rec, ok := saved.Lookup("2024-03-09", "block_propagation")
	require.True(t, ok)
	assert.Equal(t, "bbbbbbbbbbbb", rec.QueryHash)
	assert.Equal(t, rec.QueryHash, saved.QueryHashes["block_propagation"])
}
