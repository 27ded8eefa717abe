package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"peerpipe/internal/dates"
	"peerpipe/internal/manifest"
	"peerpipe/internal/staleness"
)

func newCheckCommand() *cobra.Command {
	var flagDate string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report stale date/unit combinations",
		Long:  "Exits non-zero when any in-scope data is missing or was produced\nby an older version of its query.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			inScope, err := dates.Resolve(cfg.Dates, todayUTC(), flagDate)
			if err != nil {
				return err
			}

			man, err := manifest.NewStore(cfg.Settings.DataDir).Load()
			if err != nil {
				return err
			}

			stale := staleness.Check(man, inScope, currentFingerprints(cfg))
			fmt.Fprint(cmd.OutOrStdout(), staleness.Format(stale, cfg.QueryIDs()))
			if len(stale) > 0 {
				return fmt.Errorf("%d stale date/unit combinations", len(stale))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagDate, "date", "", "check a specific date only")
	return cmd
}

func newDatesCommand() *cobra.Command {
	var flagDate string

	cmd := &cobra.Command{
		Use:   "dates",
		Short: "Print the resolved in-scope dates, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			resolved, err := dates.Resolve(cfg.Dates, todayUTC(), flagDate)
			if err != nil {
				return err
			}
			for _, d := range resolved {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagDate, "date", "", "override with a specific date")
	return cmd
}

func newHashesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hashes",
		Short: "Print the current fingerprint of every query unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			hashes := currentFingerprints(cfg)

			ids := make([]string, 0, len(hashes))
			for id := range hashes {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id, hashes[id])
			}
			return nil
		},
	}
}
