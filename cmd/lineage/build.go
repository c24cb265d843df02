package lineage

import (
	"fmt"

	"github.com/soundprediction/go-lineage/pkg/records"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the deduplicated node and edge tables from profile records",
	Long: `Read profile records (JSON, JSON Lines or YAML) from the input directory,
assemble the advisor -> student graph, deduplicate its edges, and write
nodes.tsv and edges.tsv to the output directory.

Endpoint pairs reported with more than --flag-threshold distinct variants are
logged and written to flagged.tsv for review.`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
	buildCmd.Flags().String("memo", "", "Directory of the persistent store for synthetic code counters")
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().String("input", "records", "Directory of profile record files")
	cmd.Flags().Int("parallelism", records.DefaultParallelism, "Record files decoded at once")
	cmd.Flags().Int("flag-threshold", 2, "Variants per endpoint pair above which the pair is flagged")
	cmd.Flags().Bool("write-flagged", true, "Write flagged groups to flagged.tsv")
}

func (s *session) loader() *records.Loader {
	return records.NewLoader(s.logger, s.cfg.Input.Parallelism)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, log, rec, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The build stage never resolves conflicts, so the strategy is irrelevant.
	s, err := newSession(cmd, cfg, log, rec, true)
	if err != nil {
		return err
	}
	defer s.close()

	built, err := s.build(cmd.Context())
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	printSummary(cmd.OutOrStdout(), built, nil)
	return nil
}
