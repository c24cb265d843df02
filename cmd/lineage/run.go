package lineage

import (
	"fmt"

	"github.com/soundprediction/go-lineage"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run build and slice in one go",
	Long: `Run the build stage, then slice the tables it wrote. Equivalent to
"lineage build" followed by "lineage slice" with the same flags.`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addBuildFlags(runCmd)
	addConflictFlags(runCmd)
	addExportFlags(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, log, rec, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	s, err := newSession(cmd, cfg, log, rec, true)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	built, err := s.build(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	sliced, ds, err := s.slice(ctx)
	if err != nil {
		return fmt.Errorf("slice failed: %w", err)
	}

	ds.Summary = lineage.Summary(built, sliced)
	if err := s.export(ctx, ds); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	printSummary(cmd.OutOrStdout(), built, sliced)
	return nil
}
