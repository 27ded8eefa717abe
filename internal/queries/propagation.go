// Package queries holds the data fetch producers. Each producer executes one
// analytical query for one UTC day and writes a single CSV at the given
// output path; the pipeline fingerprints these functions to decide when
// already-fetched data is stale.
package queries

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
)

// BlockPropagation fetches per-slot block propagation timing: when each block
// and its data columns were first and last seen across the network.
func BlockPropagation(ctx context.Context, db *sql.DB, date, outputPath, network string) (int64, error) {
	const q = `
SELECT
    slot,
    min(propagation_slot_start_diff) AS first_seen_ms,
    max(propagation_slot_start_diff) AS last_seen_ms,
    uniq(meta_client_name)           AS observers
FROM beacon_api_eth_v1_events_block
WHERE meta_network_name = ?
  AND slot_start_date_time >= toDateTime(?)
  AND slot_start_date_time < toDateTime(?) + INTERVAL 1 DAY
GROUP BY slot
ORDER BY slot`

	return writeQueryCSV(ctx, db, outputPath,
		[]string{"slot", "first_seen_ms", "last_seen_ms", "observers"},
		q, network, date, date)
}

// ColumnArrival fetches per-slot data column sidecar arrival timing, the core
// PeerDAS sampling latency signal.
func ColumnArrival(ctx context.Context, db *sql.DB, date, outputPath, network string) (int64, error) {
	const q = `
SELECT
    slot,
    column_index,
    min(propagation_slot_start_diff) AS first_seen_ms
FROM beacon_api_eth_v1_events_data_column_sidecar
WHERE meta_network_name = ?
  AND slot_start_date_time >= toDateTime(?)
  AND slot_start_date_time < toDateTime(?) + INTERVAL 1 DAY
GROUP BY slot, column_index
ORDER BY slot, column_index`

	return writeQueryCSV(ctx, db, outputPath,
		[]string{"slot", "column_index", "first_seen_ms"},
		q, network, date, date)
}

// writeQueryCSV streams a query's rows into a CSV file and returns the row
// count. Zero rows still produces a file with the header line: no data for a
// day is a valid result, not a failure.
func writeQueryCSV(ctx context.Context, db *sql.DB, outputPath string, header []string, query string, args ...any) (int64, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	f, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", outputPath, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return 0, err
	}

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var count int64
	record := make([]string, len(cols))
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, fmt.Errorf("scanning row: %w", err)
		}
		for i, v := range values {
			record[i] = formatValue(v)
		}
		if err := w.Write(record); err != nil {
			return count, err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("iterating rows: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return count, err
	}
	return count, f.Sync()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
