package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"peerpipe/internal/config"
	"peerpipe/internal/dates"
	"peerpipe/internal/fingerprint"
	"peerpipe/internal/manifest"
	"peerpipe/internal/pipeline"
	"peerpipe/internal/render"
	"peerpipe/internal/staleness"
)

func newRenderCommand() *cobra.Command {
	var (
		flagDate       string
		flagOutputDir  string
		flagNotebook   string
		flagForce      bool
		flagLatestOnly bool
		flagAllowStale bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render report notebooks for dates with data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if flagOutputDir == "" {
				flagOutputDir = cfg.Settings.RenderedDir
			}

			dataStore := manifest.NewStore(cfg.Settings.DataDir)
			dataMan, err := dataStore.Load()
			if err != nil {
				return err
			}
			available := dataMan.Dates
			if len(available) == 0 {
				slog.Info("no data available to render")
				return nil
			}
			latest := available[0]

			toRender, err := selectRenderDates(cfg, available, flagDate, flagLatestOnly)
			if err != nil {
				return err
			}

			// Never render from known-stale data unless explicitly allowed.
			stale := staleness.Check(dataMan, toRender, currentFingerprints(cfg))
			if err := pipeline.Gate(stale, flagAllowStale, slog.Default()); err != nil {
				return err
			}

			notebooks := cfg.Notebooks
			if flagNotebook != "" {
				notebooks = nil
				for _, nb := range cfg.Notebooks {
					if nb.ID == flagNotebook {
						notebooks = append(notebooks, nb)
					}
				}
				if len(notebooks) == 0 {
					return &config.Error{Msg: fmt.Sprintf("notebook %q not declared", flagNotebook)}
				}
			}

			renderMan := render.LoadManifest(flagOutputDir)
			renderer := render.Papermill{TemplateDir: "notebooks/templates"}

			sources := map[string]string{}
			outDirs := map[string]string{}
			var items []pipeline.Item
			skipped := 0
			for _, date := range toRender {
				outDir := filepath.Join(flagOutputDir, "archive", date)
				if date == latest {
					outDir = filepath.Join(flagOutputDir, "latest")
				}
				for _, nb := range notebooks {
					if !renderMan.ShouldRender(nb.ID, nb.Source, date, flagForce) {
						slog.Debug("skip unchanged notebook", "notebook", nb.ID, "date", date)
						skipped++
						continue
					}
					items = append(items, pipeline.Item{Date: date, UnitID: nb.ID})
					sources[nb.ID] = nb.Source
					outDirs[nb.ID+"/"+date] = outDir
				}
			}

			if len(items) == 0 {
				slog.Info("all notebooks up to date", "skipped", skipped)
				return nil
			}

			orch := pipeline.NewOrchestrator(slog.Default())
			run := func(ctx context.Context, it pipeline.Item) (pipeline.Result, error) {
				out, err := renderer.Render(ctx, sources[it.UnitID], it.Date, outDirs[it.UnitID+"/"+it.Date])
				if err != nil {
					return pipeline.Result{}, err
				}
				return pipeline.Result{OutputPath: out}, nil
			}
			onSuccess := func(it pipeline.Item, res pipeline.Result) error {
				htmlPath, err := filepath.Rel(flagOutputDir, res.OutputPath)
				if err != nil {
					htmlPath = res.OutputPath
				}
				renderMan.Record(it.Date, it.UnitID, render.Entry{
					RenderedAt:   time.Now().UTC(),
					NotebookHash: fingerprint.File(sources[it.UnitID]),
					HTMLPath:     filepath.ToSlash(htmlPath),
				})
				renderMan.LatestDate = latest
				return render.SaveManifest(flagOutputDir, renderMan)
			}

			summary, err := orch.Run(cmd.Context(), items, run, onSuccess)
			if err != nil {
				return err
			}
			summary.Skipped = skipped

			slog.Info("render complete", "rendered", summary.Succeeded,
				"skipped", summary.Skipped, "failed", summary.Failed)
			if summary.Failed > 0 {
				for _, f := range summary.Failures {
					slog.Error("failed render", "date", f.Item.Date, "notebook", f.Item.UnitID, "error", f.Err)
				}
				return fmt.Errorf("%d notebook renders failed", summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagDate, "date", "", "render a specific date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flagOutputDir, "output-dir", "", "rendered output directory (default from config)")
	cmd.Flags().StringVar(&flagNotebook, "notebook", "", "render a single notebook id only")
	cmd.Flags().BoolVar(&flagForce, "force", false, "re-render even if unchanged")
	cmd.Flags().BoolVar(&flagLatestOnly, "latest-only", false, "only render the latest date")
	cmd.Flags().BoolVar(&flagAllowStale, "allow-stale", false, "render even if upstream data is stale")
	return cmd
}

// selectRenderDates picks which available dates to render: an explicit date,
// the latest only, or every date in the configured window that has data.
func selectRenderDates(cfg *config.Config, available []string, override string, latestOnly bool) ([]string, error) {
	if override != "" {
		for _, d := range available {
			if d == override {
				return []string{override}, nil
			}
		}
		return nil, &config.Error{Msg: fmt.Sprintf("date %s has no data", override)}
	}
	if latestOnly {
		return available[:1], nil
	}

	configured, err := dates.Resolve(cfg.Dates, todayUTC(), "")
	if err != nil {
		return nil, err
	}
	inWindow := map[string]bool{}
	for _, d := range configured {
		inWindow[d] = true
	}

	var out []string
	for _, d := range available {
		if inWindow[d] {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, &config.Error{Msg: "no dates in the configured window have data"}
	}
	return out, nil
}
