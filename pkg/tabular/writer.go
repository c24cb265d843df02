package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/soundprediction/go-lineage/pkg/dedupe"
	"github.com/soundprediction/go-lineage/pkg/types"
)

// Writer emits node and edge tables.
type Writer struct {
	format Format
	logger *slog.Logger
}

// NewWriter creates a Writer for the given dialect.
func NewWriter(format Format, logger *slog.Logger) (*Writer, error) {
	format, err := format.normalize()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{format: format, logger: logger}, nil
}

// WriteNodes writes a node table to w.
func (w *Writer) WriteNodes(out io.Writer, nodes []types.Node) error {
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, []string{n.Code, n.Label})
	}
	return w.write(out, w.format.Headers.node(), rows)
}

// WriteEdges writes an edge table to w.
func (w *Writer) WriteEdges(out io.Writer, edges []types.Edge) error {
	rows := make([][]string, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, []string{e.Source, e.Target, types.FormatYear(e.Year), e.Institution})
	}
	return w.write(out, w.format.Headers.edge(), rows)
}

// WriteFlagged writes every variant of the flagged groups, one per row,
// prefixed with the group key.
func (w *Writer) WriteFlagged(out io.Writer, groups []dedupe.FlaggedGroup) error {
	var rows [][]string
	for _, g := range groups {
		for _, e := range g.Variants {
			rows = append(rows, []string{g.Key.String(), e.Source, e.Target, types.FormatYear(e.Year), e.Institution})
		}
	}
	return w.write(out, append([]string{"Group"}, w.format.Headers.edge()...), rows)
}

// WriteGraph writes nodes.tsv and edges.tsv into dir.
func (w *Writer) WriteGraph(dir string, nodes []types.Node, edges []types.Edge) error {
	if err := w.writeFile(filepath.Join(dir, NodesFile), func(f io.Writer) error {
		return w.WriteNodes(f, nodes)
	}); err != nil {
		return err
	}
	if err := w.writeFile(filepath.Join(dir, EdgesFile), func(f io.Writer) error {
		return w.WriteEdges(f, edges)
	}); err != nil {
		return err
	}
	w.logger.Info("Wrote graph tables", "dir", dir, "nodes", len(nodes), "edges", len(edges))
	return nil
}

// WriteSnapshots writes one node and one edge table per snapshot into dir.
func (w *Writer) WriteSnapshots(dir string, snaps []types.Snapshot) error {
	for _, snap := range snaps {
		nodesPath, edgesPath := SnapshotFiles(dir, snap)
		if err := w.writeFile(nodesPath, func(f io.Writer) error {
			return w.WriteNodes(f, snap.Nodes)
		}); err != nil {
			return err
		}
		if err := w.writeFile(edgesPath, func(f io.Writer) error {
			return w.WriteEdges(f, snap.Edges)
		}); err != nil {
			return err
		}
	}
	w.logger.Info("Wrote snapshot tables", "dir", dir, "snapshots", len(snaps))
	return nil
}

// WriteFlaggedFile writes flagged.tsv into dir. Nothing is written when there
// are no flagged groups.
func (w *Writer) WriteFlaggedFile(dir string, groups []dedupe.FlaggedGroup) error {
	if len(groups) == 0 {
		return nil
	}
	return w.writeFile(filepath.Join(dir, FlaggedFile), func(f io.Writer) error {
		return w.WriteFlagged(f, groups)
	})
}

func (w *Writer) write(out io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(out)
	cw.Comma = w.format.Delimiter
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

func (w *Writer) writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
