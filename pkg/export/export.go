// Package export copies a finished pipeline run into external stores.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/soundprediction/go-lineage/pkg/dedupe"
	"github.com/soundprediction/go-lineage/pkg/telemetry"
	"github.com/soundprediction/go-lineage/pkg/types"
)

// Dataset is everything a run produced.
type Dataset struct {
	RunID     uuid.UUID
	CreatedAt time.Time
	Nodes     []types.Node
	Edges     []types.Edge
	Snapshots []types.Snapshot
	Flagged   []dedupe.FlaggedGroup
	// Summary is stored alongside the run as JSON.
	Summary map[string]any
	// Warnings are the log records captured while the run was produced.
	Warnings []telemetry.Entry
}

// NewDataset stamps the run outputs with a fresh run id.
func NewDataset(nodes []types.Node, edges []types.Edge, snaps []types.Snapshot, flagged []dedupe.FlaggedGroup) *Dataset {
	return &Dataset{
		RunID:     uuid.New(),
		CreatedAt: time.Now().UTC(),
		Nodes:     nodes,
		Edges:     edges,
		Snapshots: snaps,
		Flagged:   flagged,
		Summary:   map[string]any{},
	}
}

// ResolvedEdges returns the edges of the last snapshot, where every
// institution conflict has been settled. Without snapshots the canonical
// edges are returned.
func (d *Dataset) ResolvedEdges() []types.Edge {
	if len(d.Snapshots) == 0 {
		return d.Edges
	}
	return d.Snapshots[len(d.Snapshots)-1].Edges
}

// Sink receives a dataset.
type Sink interface {
	Name() string
	Export(ctx context.Context, ds *Dataset) error
	Close() error
}

// ExportAll hands the dataset to every sink. A failing sink does not stop
// the others; all failures are returned together.
func ExportAll(ctx context.Context, ds *Dataset, sinks []Sink, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	var errs []error
	for _, sink := range sinks {
		start := time.Now()
		if err := sink.Export(ctx, ds); err != nil {
			logger.Error("Export failed", "sink", sink.Name(), "run_id", ds.RunID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		logger.Info("Persisted run", "sink", sink.Name(), "run_id", ds.RunID, "duration", time.Since(start))
	}
	return errors.Join(errs...)
}
