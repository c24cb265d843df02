package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/soundprediction/go-lineage/pkg/types"
)

// Reader loads tables written by Writer, or by hand in the same dialect.
// Columns are located by header name, so their order does not matter.
type Reader struct {
	format Format
	logger *slog.Logger
}

// NewReader creates a Reader for the given dialect.
func NewReader(format Format, logger *slog.Logger) (*Reader, error) {
	format, err := format.normalize()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{format: format, logger: logger}, nil
}

// ReadNodes reads a node table. When a code appears twice the first label is
// kept and a warning is logged.
func (r *Reader) ReadNodes(in io.Reader) ([]types.Node, error) {
	h := r.format.Headers
	var nodes []types.Node
	seen := make(map[string]int)
	err := r.read(in, h.node(), func(row []string) {
		code, label := row[0], row[1]
		if code == "" {
			return
		}
		if i, ok := seen[code]; ok {
			r.logger.Warn("Duplicate node code in table", "code", code, "kept", nodes[i].Label, "ignored", label)
			return
		}
		seen[code] = len(nodes)
		nodes = append(nodes, types.Node{Code: code, Label: label})
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// ReadEdges reads an edge table. Values are returned unvalidated.
func (r *Reader) ReadEdges(in io.Reader) ([]types.RawEdge, error) {
	h := r.format.Headers
	var edges []types.RawEdge
	err := r.read(in, h.edge(), func(row []string) {
		edges = append(edges, types.RawEdge{
			Source:      row[0],
			Target:      row[1],
			Year:        row[2],
			Institution: row[3],
		})
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// ReadGraph reads nodes.tsv and edges.tsv from dir.
func (r *Reader) ReadGraph(dir string) ([]types.Node, []types.RawEdge, error) {
	var (
		nodes []types.Node
		edges []types.RawEdge
	)
	if err := readFile(filepath.Join(dir, NodesFile), func(f io.Reader) error {
		var err error
		nodes, err = r.ReadNodes(f)
		return err
	}); err != nil {
		return nil, nil, err
	}
	if err := readFile(filepath.Join(dir, EdgesFile), func(f io.Reader) error {
		var err error
		edges, err = r.ReadEdges(f)
		return err
	}); err != nil {
		return nil, nil, err
	}
	r.logger.Info("Read graph tables", "dir", dir, "nodes", len(nodes), "edges", len(edges))
	return nodes, edges, nil
}

// read maps each data row onto the wanted columns and passes it to fn. Short
// rows yield empty strings for the missing cells.
func (r *Reader) read(in io.Reader, want []string, fn func(row []string)) error {
	cr := csv.NewReader(in)
	cr.Comma = r.format.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}
	cols := make([]int, len(want))
	for i, name := range want {
		col, ok := index[name]
		if !ok {
			return fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
		cols[i] = col
	}

	row := make([]string, len(want))
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}
		for i, col := range cols {
			row[i] = ""
			if col < len(record) {
				row[i] = record[col]
			}
		}
		fn(row)
	}
}

func readFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}
