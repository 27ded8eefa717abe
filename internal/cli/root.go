// Package cli wires the pipeline components behind the peerpipe command.
// All ambient state lives here: the environment is read once, converted to
// plain config values, and handed to constructors.
package cli

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"peerpipe/internal/config"
	"peerpipe/internal/fingerprint"
	"peerpipe/internal/pipeline"
	"peerpipe/internal/publish"
	"peerpipe/internal/queries"
	"peerpipe/internal/warehouse"
)

var (
	flagConfig  string
	flagVerbose bool
)

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "peerpipe",
		Short:         "Incremental PeerDAS analytics pipeline",
		Long:          "peerpipe fetches analytical datasets, renders report notebooks against them,\nand publishes the results to a content-addressed store, re-doing only work\ninvalidated by source or data changes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultFile, "pipeline configuration file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newFetchCommand(),
		newRenderCommand(),
		newCollectCommand(),
		newPublishCommand(),
		newCheckCommand(),
		newDatesCommand(),
		newHashesCommand(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	return config.Load(flagConfig)
}

// producerRegistry binds unit ids to producers once, at startup. Adding a
// query means adding a function to internal/queries and one line here.
func producerRegistry() *pipeline.Registry {
	r := pipeline.NewRegistry()
	r.Register("block_propagation", queries.BlockPropagation)
	r.Register("column_arrival", queries.ColumnArrival)
	return r
}

// currentFingerprints computes the fingerprint for every declared query
// unit. Broken units surface as the sentinel, never as an error.
func currentFingerprints(cfg *config.Config) map[string]string {
	hashes := make(map[string]string, len(cfg.Queries))
	for id, q := range cfg.Queries {
		h := fingerprint.Function(q.Source, q.Function)
		if h == fingerprint.Sentinel {
			slog.Warn("could not fingerprint query", "unit", id, "source", q.Source, "function", q.Function)
		}
		hashes[id] = h
	}
	return hashes
}

// warehouseFromEnv reads warehouse credentials from the environment at the
// CLI boundary. Core packages only ever see the resulting value.
func warehouseFromEnv() (warehouse.Config, error) {
	cfg := warehouse.Config{
		Host:     os.Getenv("CLICKHOUSE_HOST"),
		Username: os.Getenv("CLICKHOUSE_USER"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Database: os.Getenv("CLICKHOUSE_DATABASE"),
	}
	if p := os.Getenv("CLICKHOUSE_PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return cfg, &config.Error{Msg: "CLICKHOUSE_PORT must be numeric"}
		}
		cfg.Port = port
	}
	if cfg.Host == "" {
		return cfg, &config.Error{Msg: "CLICKHOUSE_HOST is not set"}
	}
	return cfg, nil
}

// blobStoreFromEnv reads the publish target credentials.
func blobStoreFromEnv(cfg *config.Config) (publish.S3Config, error) {
	s3cfg := publish.S3Config{
		Bucket:    cfg.Publish.Bucket,
		Region:    cfg.Publish.Region,
		Endpoint:  cfg.Publish.Endpoint,
		AccessKey: os.Getenv("R2_ACCESS_KEY_ID"),
		SecretKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
	}
	if b := os.Getenv("R2_BUCKET_NAME"); b != "" {
		s3cfg.Bucket = b
	}
	if e := os.Getenv("R2_ENDPOINT"); e != "" {
		s3cfg.Endpoint = e
	}
	if s3cfg.Bucket == "" {
		return s3cfg, &config.Error{Msg: "publish bucket not configured (publish.bucket or R2_BUCKET_NAME)"}
	}
	return s3cfg, nil
}

func todayUTC() time.Time {
	return time.Now().UTC()
}
