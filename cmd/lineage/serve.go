package lineage

import (
	"context"
	"fmt"
	"time"

	"github.com/soundprediction/go-lineage/pkg/config"
	"github.com/soundprediction/go-lineage/pkg/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the graph and its snapshots over HTTP",
	Long: `Load nodes.tsv and edges.tsv from the output directory, slice them with a
non-interactive strategy, and serve the result read-only.

Endpoints:
  GET /health, /ready
  GET /graph/nodes?q=
  GET /graph/edges?source=&target=&year=
  GET /snapshots
  GET /snapshots/:year   graph as of the given year
  GET /flagged`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "Server host")
	serveCmd.Flags().Int("port", 8080, "Server port")
	serveCmd.Flags().String("mode", "debug", "Server mode (debug, release, test)")
	addConflictFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, rec, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Snapshot files are not rewritten by the server.
	cfg.Output.SlicesDir = ""

	if err := validateServerConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s, err := newSession(cmd, cfg, log, rec, false)
	if err != nil {
		return err
	}
	defer s.close()

	_, ds, err := s.slice(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}

	srv := server.New(cfg, log)
	srv.Load(ds)
	srv.Setup()

	// Start server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case <-cmd.Context().Done():
		log.Info("Shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		log.Info("Server stopped gracefully")
		return nil
	}
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Output.Dir == "" {
		return fmt.Errorf("output directory is required")
	}
	return nil
}
