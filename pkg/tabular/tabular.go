// Package tabular reads and writes the delimited node and edge tables that
// connect the build and slice stages.
package tabular

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/soundprediction/go-lineage/pkg/types"
)

// ErrMissingColumn is returned when a table lacks a configured header.
var ErrMissingColumn = errors.New("missing column")

const (
	NodesFile   = "nodes.tsv"
	EdgesFile   = "edges.tsv"
	FlaggedFile = "flagged.tsv"
)

// Headers names the table columns.
type Headers struct {
	ID          string `mapstructure:"id" json:"id"`
	Label       string `mapstructure:"label" json:"label"`
	Source      string `mapstructure:"source" json:"source"`
	Target      string `mapstructure:"target" json:"target"`
	Year        string `mapstructure:"year" json:"year"`
	Institution string `mapstructure:"institution" json:"institution"`
}

// DefaultHeaders returns the standard column names.
func DefaultHeaders() Headers {
	return Headers{
		ID:          "Id",
		Label:       "Label",
		Source:      "Source",
		Target:      "Target",
		Year:        "Year",
		Institution: "Institution",
	}
}

func (h Headers) node() []string {
	return []string{h.ID, h.Label}
}

func (h Headers) edge() []string {
	return []string{h.Source, h.Target, h.Year, h.Institution}
}

// withDefaults fills empty names from DefaultHeaders.
func (h Headers) withDefaults() Headers {
	d := DefaultHeaders()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&h.ID, d.ID)
	fill(&h.Label, d.Label)
	fill(&h.Source, d.Source)
	fill(&h.Target, d.Target)
	fill(&h.Year, d.Year)
	fill(&h.Institution, d.Institution)
	return h
}

// Format describes the table dialect shared by writer and reader.
type Format struct {
	Delimiter rune
	Headers   Headers
}

// DefaultFormat is tab separated with the standard headers.
func DefaultFormat() Format {
	return Format{Delimiter: '\t', Headers: DefaultHeaders()}
}

func (f Format) normalize() (Format, error) {
	if f.Delimiter == 0 {
		f.Delimiter = '\t'
	}
	if f.Delimiter == '"' || f.Delimiter == '\r' || f.Delimiter == '\n' {
		return f, fmt.Errorf("invalid delimiter %q", f.Delimiter)
	}
	f.Headers = f.Headers.withDefaults()
	return f, nil
}

// SnapshotFiles returns the node and edge file names of a snapshot, named by
// the largest year it contains.
func SnapshotFiles(dir string, snap types.Snapshot) (nodes, edges string) {
	year := types.FormatYear(snap.Year)
	return filepath.Join(dir, "nodes_"+year+".tsv"), filepath.Join(dir, "edges_"+year+".tsv")
}
