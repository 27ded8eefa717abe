package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"peerpipe/internal/config"
	"peerpipe/internal/dist"
	"peerpipe/internal/publish"
)

func newCollectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Copy data for rendered dates into the dist tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			stats, err := dist.CollectData(
				cfg.Settings.DataDir,
				cfg.Settings.RenderedDir,
				filepath.Join(cfg.Settings.DistDir, "data"),
				slog.Default())
			if err != nil {
				return err
			}
			slog.Info("collect complete", "dates", stats.Dates, "files", stats.Files, "bytes", stats.TotalBytes)
			return nil
		},
	}
	return cmd
}

func newPublishCommand() *cobra.Command {
	var (
		flagDist    string
		flagName    string
		flagWorkers int
		flagDryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload the dist tree to the content-addressed blob store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if flagDist == "" {
				flagDist = cfg.Settings.DistDir
			}
			if st, err := os.Stat(flagDist); err != nil || !st.IsDir() {
				return &config.Error{Msg: fmt.Sprintf("dist directory not found: %s", flagDist)}
			}

			s3cfg, err := blobStoreFromEnv(cfg)
			if err != nil {
				return err
			}
			store, err := publish.NewS3Store(cmd.Context(), s3cfg)
			if err != nil {
				return err
			}

			p := publish.NewPublisher(store, slog.Default())
			p.Workers = flagWorkers
			p.DryRun = flagDryRun

			stats, err := p.Publish(cmd.Context(), flagDist, flagName)
			if err != nil {
				return err
			}
			slog.Info("publish summary",
				"files", stats.TotalFiles,
				"new_blobs", stats.NewBlobs,
				"reused_blobs", stats.ReusedBlobs,
				"bytes_uploaded", stats.BytesUploaded,
				"manifest", stats.ManifestKey)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagDist, "dist", "", "directory to publish (default from config)")
	cmd.Flags().StringVar(&flagName, "name", "", "deployment manifest name (e.g. main, pr-14)")
	cmd.Flags().IntVar(&flagWorkers, "workers", publish.DefaultWorkers, "parallel upload workers")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "scan and report without uploading")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
