package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"peerpipe/internal/dates"
	"peerpipe/internal/manifest"
	"peerpipe/internal/pipeline"
	"peerpipe/internal/staleness"
	"peerpipe/internal/warehouse"
)

func newFetchCommand() *cobra.Command {
	var (
		flagDate      string
		flagOutputDir string
		flagMaxDays   int
		flagNetwork   string
		flagSync      bool
		flagCheckOnly bool
		flagQuery     string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch query data and update the pipeline manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if flagOutputDir == "" {
				flagOutputDir = cfg.Settings.DataDir
			}
			if flagNetwork == "" {
				flagNetwork = cfg.Settings.Network
			}

			current := currentFingerprints(cfg)

			inScope, err := dates.Resolve(cfg.Dates, todayUTC(), flagDate)
			if err != nil {
				return err
			}

			store := manifest.NewStore(flagOutputDir)
			man, err := store.Load()
			if err != nil {
				return err
			}
			stale := staleness.Check(man, inScope, current)

			if flagCheckOnly {
				fmt.Fprint(cmd.OutOrStdout(), staleness.Format(stale, cfg.QueryIDs()))
				if len(stale) > 0 {
					return fmt.Errorf("%d stale date/unit combinations", len(stale))
				}
				return nil
			}

			items := selectFetchItems(cfg.QueryIDs(), stale, flagDate, flagSync, flagQuery, todayUTC())
			if len(items) == 0 {
				slog.Info("nothing to fetch")
				return nil
			}

			whCfg, err := warehouseFromEnv()
			if err != nil {
				return err
			}
			db, err := warehouse.Open(whCfg)
			if err != nil {
				return err
			}
			defer db.Close()

			registry := producerRegistry()
			orch := pipeline.NewOrchestrator(slog.Default())

			run := func(ctx context.Context, it pipeline.Item) (pipeline.Result, error) {
				unit, ok := cfg.Queries[it.UnitID]
				if !ok {
					return pipeline.Result{}, fmt.Errorf("unit %q not declared in config", it.UnitID)
				}
				producer, err := registry.Producer(it.UnitID)
				if err != nil {
					return pipeline.Result{}, err
				}

				dateDir := store.DatePath(it.Date)
				if err := os.MkdirAll(dateDir, 0o755); err != nil {
					return pipeline.Result{}, err
				}
				outputPath := filepath.Join(dateDir, unit.OutputFile)

				rowCount, err := producer(ctx, db, it.Date, outputPath, flagNetwork)
				if err != nil {
					return pipeline.Result{}, err
				}

				var size int64
				if st, err := os.Stat(outputPath); err == nil {
					size = st.Size()
				}
				return pipeline.Result{OutputPath: outputPath, RowCount: rowCount, SizeBytes: size}, nil
			}

			onSuccess := func(it pipeline.Item, res pipeline.Result) error {
				return recordFetchSuccess(store, man, current, it, res)
			}

			summary, err := orch.Run(cmd.Context(), items, run, onSuccess)
			if err != nil {
				return err
			}

			if flagMaxDays > 0 {
				cutoff := todayUTC().AddDate(0, 0, -flagMaxDays).Format(dates.Layout)
				if _, err := store.Prune(man, cutoff); err != nil {
					return err
				}
			}
			if err := store.Save(man); err != nil {
				return err
			}

			slog.Info("fetch complete",
				"succeeded", summary.Succeeded, "failed", summary.Failed)
			if summary.Failed > 0 {
				return fmt.Errorf("%d fetch items failed", summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagDate, "date", "", "fetch a specific date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flagOutputDir, "output-dir", "", "data output directory (default from config)")
	cmd.Flags().IntVar(&flagMaxDays, "max-days", 0, "prune dates older than this many days")
	cmd.Flags().StringVar(&flagNetwork, "network", "", "network name (default from config)")
	cmd.Flags().BoolVar(&flagSync, "sync", false, "fetch missing and re-fetch stale data")
	cmd.Flags().BoolVar(&flagCheckOnly, "check-only", false, "report staleness without fetching")
	cmd.Flags().StringVar(&flagQuery, "query", "", "fetch a single query unit only")
	return cmd
}

// recordFetchSuccess merges one producer result into the manifest and
// persists it. The top-level hash map is refreshed on every save so each
// incremental document stays consistent with the records it carries.
func recordFetchSuccess(store *manifest.Store, man *manifest.Manifest, hashes map[string]string, it pipeline.Item, res pipeline.Result) error {
	man.QueryHashes = hashes
	man.Record(it.Date, it.UnitID, manifest.Record{
		FetchedAt:     time.Now().UTC(),
		QueryHash:     hashes[it.UnitID],
		RowCount:      res.RowCount,
		FileSizeBytes: res.SizeBytes,
		OutputFile:    filepath.Base(res.OutputPath),
	})
	return store.Save(man)
}

// selectFetchItems decides the work set: stale pairs in sync mode, every
// unit for an explicit date, otherwise yesterday only (the daily mode).
func selectFetchItems(unitIDs []string, stale []staleness.Entry, overrideDate string, sync bool, onlyQuery string, today time.Time) []pipeline.Item {
	var items []pipeline.Item

	switch {
	case sync:
		for _, e := range stale {
			items = append(items, pipeline.Item{Date: e.Date, UnitID: e.UnitID})
		}
	case overrideDate != "":
		for _, id := range unitIDs {
			items = append(items, pipeline.Item{Date: overrideDate, UnitID: id})
		}
	default:
		yesterday := today.AddDate(0, 0, -1).Format(dates.Layout)
		for _, id := range unitIDs {
			items = append(items, pipeline.Item{Date: yesterday, UnitID: id})
		}
	}

	if onlyQuery == "" {
		return items
	}
	filtered := items[:0]
	for _, it := range items {
		if it.UnitID == onlyQuery {
			filtered = append(filtered, it)
		}
	}
	return filtered
}
