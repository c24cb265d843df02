package lineage

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sliceCmd = &cobra.Command{
	Use:   "slice",
	Short: "Cut the edge table into cumulative yearly snapshots",
	Long: `Read nodes.tsv and edges.tsv from the output directory and write one
nodes_<year>.tsv / edges_<year>.tsv pair per distinct year. Snapshot k holds
every relationship from the k earliest years.

When two reports of the same relationship name different institutions the
configured strategy picks one. With --strategy interactive the choice is asked
on the terminal; use --memo to keep the answers between runs.`,
	RunE: runSlice,
}

func init() {
	rootCmd.AddCommand(sliceCmd)
	addConflictFlags(sliceCmd)
	addExportFlags(sliceCmd)
}

func runSlice(cmd *cobra.Command, args []string) error {
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
	sliced, ds, err := s.slice(ctx)
	if err != nil {
		return fmt.Errorf("slice failed: %w", err)
	}
	if err := s.export(ctx, ds); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	printSummary(cmd.OutOrStdout(), nil, sliced)
	return nil
}
