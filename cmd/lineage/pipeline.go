package lineage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/soundprediction/go-lineage"
	"github.com/soundprediction/go-lineage/pkg/cache"
	"github.com/soundprediction/go-lineage/pkg/config"
	"github.com/soundprediction/go-lineage/pkg/export"
	"github.com/soundprediction/go-lineage/pkg/tabular"
	"github.com/soundprediction/go-lineage/pkg/telemetry"
	"github.com/soundprediction/go-lineage/pkg/temporal"
	"github.com/spf13/cobra"
)

// session bundles what the build and slice stages share within one command.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *lineage.Client
	recorder *telemetry.Recorder
	store    *cache.BadgerStore
	writer   *tabular.Writer
	reader   *tabular.Reader
}

// newSession wires the pipeline from configuration. interactive decides
// whether the interactive strategy may prompt on the terminal.
func newSession(cmd *cobra.Command, cfg *config.Config, log *slog.Logger, rec *telemetry.Recorder, interactive bool) (*session, error) {
	format, err := cfg.Table.Format()
	if err != nil {
		return nil, err
	}
	writer, err := tabular.NewWriter(format, log)
	if err != nil {
		return nil, err
	}
	reader, err := tabular.NewReader(format, log)
	if err != nil {
		return nil, err
	}

	strategy := temporal.Strategy(cfg.Conflict.Strategy)
	if strategy == temporal.StrategyInteractive && !interactive {
		log.Warn("Interactive conflict resolution is not available here, using default strategy",
			"strategy", temporal.DefaultStrategy)
		strategy = temporal.DefaultStrategy
	}
	resolver, err := temporal.NewResolver(strategy, cmd.InOrStdin(), cmd.ErrOrStderr(), cfg.Conflict.MaxAttempts)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: log, recorder: rec, writer: writer, reader: reader}
	pcfg := &lineage.Config{
		FlagThreshold: cfg.Dedupe.FlagThreshold,
		Resolver:      resolver,
		Logger:        log,
	}

	if cfg.Conflict.MemoPath != "" {
		store, err := cache.NewBadgerStore(cfg.Conflict.MemoPath)
		if err != nil {
			return nil, err
		}
		counters, err := store.Counters()
		if err != nil {
			store.Close()
			return nil, err
		}
		s.store = store
		pcfg.Memo = store
		pcfg.Counters = counters
		log.Debug("Opened conflict memo", "path", cfg.Conflict.MemoPath, "counters", counters)
	}

	s.client = lineage.NewClient(pcfg)
	return s, nil
}

// build runs the build stage and writes its tables.
func (s *session) build(ctx context.Context) (*lineage.BuildResult, error) {
	records, _, err := s.loader().LoadDir(ctx, s.cfg.Input.Dir)
	if err != nil {
		return nil, err
	}

	built := s.client.Build(records)

	if err := s.writer.WriteGraph(s.cfg.Output.Dir, built.Nodes, built.Edges); err != nil {
		return nil, err
	}
	if s.cfg.Output.WriteFlagged {
		if err := s.writer.WriteFlaggedFile(s.cfg.Output.Dir, built.Flagged); err != nil {
			return nil, err
		}
	}
	if s.store != nil {
		if err := s.store.SaveCounters(built.Counters); err != nil {
			return nil, fmt.Errorf("failed to save counters: %w", err)
		}
	}
	return built, nil
}

// slice reloads the build tables, slices them and writes the snapshot tables.
func (s *session) slice(ctx context.Context) (*lineage.SliceResult, *export.Dataset, error) {
	nodes, edges, err := s.reader.ReadGraph(s.cfg.Output.Dir)
	if err != nil {
		return nil, nil, err
	}

	sliced, err := s.client.Slice(ctx, nodes, edges)
	if err != nil {
		return nil, nil, err
	}

	if s.cfg.Output.SlicesDir != "" {
		if err := s.writer.WriteSnapshots(s.cfg.Output.SlicesDir, sliced.Snapshots); err != nil {
			return nil, nil, err
		}
	}

	ds := export.NewDataset(nodes, sliced.Edges, sliced.Snapshots, sliced.Flagged)
	return sliced, ds, nil
}

// export hands the dataset to the configured sinks.
func (s *session) export(ctx context.Context, ds *export.Dataset) error {
	var sinks []export.Sink
	defer func() {
		for _, sink := range sinks {
			if err := sink.Close(); err != nil {
				s.logger.Warn("Failed to close sink", "sink", sink.Name(), "error", err)
			}
		}
	}()

	var errs []error
	if s.cfg.Export.DuckDB.Enabled {
		w, err := export.NewDuckDBWriter(s.cfg.Export.DuckDB.Path)
		if err != nil {
			errs = append(errs, err)
		} else {
			sinks = append(sinks, w)
		}
	}
	if s.cfg.Export.Neo4j.Enabled {
		n := s.cfg.Export.Neo4j
		sink, err := export.NewNeo4jSink(ctx, export.Neo4jConfig{
			URI:              n.URI,
			Username:         n.Username,
			Password:         n.Password,
			Database:         n.Database,
			BatchSize:        n.BatchSize,
			FailureThreshold: n.FailureThreshold,
		}, s.logger)
		if err != nil {
			errs = append(errs, err)
		} else {
			sinks = append(sinks, sink)
		}
	}

	if len(sinks) > 0 {
		if s.recorder != nil {
			ds.Warnings = s.recorder.Entries()
		}
		errs = append(errs, export.ExportAll(ctx, ds, sinks, s.logger))
	}
	return errors.Join(errs...)
}

func (s *session) close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("Failed to close conflict memo", "error", err)
	}
}

func addConflictFlags(cmd *cobra.Command) {
	cmd.Flags().String("strategy", string(temporal.DefaultStrategy), "Conflict strategy (prefer-first, prefer-non-empty, prefer-longest, interactive)")
	cmd.Flags().Int("max-attempts", 3, "Invalid answers accepted by the interactive strategy before giving up")
	cmd.Flags().String("memo", "", "Directory of the persistent conflict memo (in memory when empty)")
}

func addExportFlags(cmd *cobra.Command) {
	cmd.Flags().String("slices", "output/slices", "Directory of the snapshot tables")
	cmd.Flags().String("duckdb", "", "Also export the run to this DuckDB file")
	cmd.Flags().Bool("neo4j", false, "Also export the run to Neo4j")
	cmd.Flags().String("neo4j-uri", "bolt://localhost:7687", "Neo4j URI")
	cmd.Flags().String("neo4j-username", "neo4j", "Neo4j username")
	cmd.Flags().String("neo4j-password", "password", "Neo4j password")
	cmd.Flags().String("neo4j-database", "neo4j", "Neo4j database")
}

func printSummary(w io.Writer, built *lineage.BuildResult, sliced *lineage.SliceResult) {
	if built != nil {
		fmt.Fprintf(w, "Nodes:            %d\n", len(built.Nodes))
		fmt.Fprintf(w, "Raw edges:        %d\n", built.RawEdges)
		fmt.Fprintf(w, "Canonical edges:  %d\n", len(built.Edges))
		fmt.Fprintf(w, "Dropped edges:    %d\n", built.Dedupe.TotalDropped())
		fmt.Fprintf(w, "Flagged groups:   %d\n", len(built.Flagged))
	}
	if sliced != nil {
		fmt.Fprintf(w, "Snapshots:        %d\n", sliced.Slice.Snapshots)
		fmt.Fprintf(w, "Conflicts asked:  %d\n", sliced.Slice.Consulted)
		fmt.Fprintf(w, "Memo hits:        %d\n", sliced.Slice.MemoHits)
	}
}
