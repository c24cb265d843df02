package lineage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/soundprediction/go-lineage/pkg/config"
	"github.com/soundprediction/go-lineage/pkg/logger"
	"github.com/soundprediction/go-lineage/pkg/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "lineage",
	Short: "Build temporal academic genealogy graphs",
	Long: `lineage turns extracted academic genealogy profile records into a directed
advisor -> student graph and slices it into cumulative yearly snapshots.

The pipeline runs in two stages that share delimited node and edge tables:
  build   records -> nodes.tsv, edges.tsv (deduplicated)
  slice   nodes.tsv, edges.tsv -> nodes_<year>.tsv, edges_<year>.tsv
"run" executes both stages and "serve" exposes the result over HTTP.

Configuration can be provided through a config file, LINEAGE_* environment
variables (a .env file is loaded if present), or command-line flags.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command. An interrupt cancels the running stage.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./lineage.yaml if present)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored log output")
	rootCmd.PersistentFlags().String("delimiter", `\t`, "Table delimiter")
	rootCmd.PersistentFlags().String("output", "output", "Directory of the node and edge tables")
}

func initConfig(cmd *cobra.Command, args []string) error {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("lineage")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// loadConfig resolves the configuration for a command and builds its logger.
// Warnings and errors are also captured by the returned recorder so they can
// be exported with the run.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, *telemetry.Recorder, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrideConfigWithFlags(cmd, cfg)

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, nil, err
	}
	handler := logger.NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	if !cfg.Log.Color {
		handler = handler.WithoutColor()
	}
	recorder := telemetry.NewRecorder(handler, slog.LevelWarn)
	log := slog.New(recorder)
	slog.SetDefault(log)

	return cfg, log, recorder, nil
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}

	// Logging
	str("log-level", &cfg.Log.Level)
	if flags.Changed("no-color") {
		noColor, _ := flags.GetBool("no-color")
		cfg.Log.Color = !noColor
	}

	// Tables
	str("delimiter", &cfg.Table.Delimiter)
	str("output", &cfg.Output.Dir)
	str("slices", &cfg.Output.SlicesDir)
	boolean("write-flagged", &cfg.Output.WriteFlagged)

	// Build
	str("input", &cfg.Input.Dir)
	num("parallelism", &cfg.Input.Parallelism)
	num("flag-threshold", &cfg.Dedupe.FlagThreshold)

	// Conflicts
	str("strategy", &cfg.Conflict.Strategy)
	num("max-attempts", &cfg.Conflict.MaxAttempts)
	str("memo", &cfg.Conflict.MemoPath)

	// Sinks
	if flags.Lookup("duckdb") != nil && flags.Changed("duckdb") {
		cfg.Export.DuckDB.Path, _ = flags.GetString("duckdb")
		cfg.Export.DuckDB.Enabled = cfg.Export.DuckDB.Path != ""
	}
	boolean("neo4j", &cfg.Export.Neo4j.Enabled)
	str("neo4j-uri", &cfg.Export.Neo4j.URI)
	str("neo4j-username", &cfg.Export.Neo4j.Username)
	str("neo4j-password", &cfg.Export.Neo4j.Password)
	str("neo4j-database", &cfg.Export.Neo4j.Database)

	// Server
	str("host", &cfg.Server.Host)
	num("port", &cfg.Server.Port)
	str("mode", &cfg.Server.Mode)
}
