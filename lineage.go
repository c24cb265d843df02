// Package lineage assembles academic genealogy records into a directed
// advisor -> student graph and slices it into cumulative yearly snapshots.
//
// The pipeline has two stages that can run together or apart:
//
//	Build: profile records -> raw graph -> canonical (deduplicated) edges
//	Slice: canonical edges -> snapshots with institution conflicts resolved
//
// The stages communicate through node and edge tables (see pkg/tabular), so a
// run can be stopped after Build, the tables inspected or corrected by hand,
// and Slice started later.
package lineage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/soundprediction/go-lineage/pkg/builder"
	"github.com/soundprediction/go-lineage/pkg/dedupe"
	"github.com/soundprediction/go-lineage/pkg/temporal"
	"github.com/soundprediction/go-lineage/pkg/types"
)

// Config holds the pipeline settings.
type Config struct {
	// Counters seeds the synthetic code counters, for example with the state
	// saved by a previous run.
	Counters builder.Counters
	// FlagThreshold is the number of distinct variants per endpoint pair
	// above which a group is flagged for review.
	FlagThreshold int
	// Resolver settles institution conflicts. Nil uses the non-blocking
	// default.
	Resolver temporal.Resolver
	// Memo stores conflict decisions. Nil keeps them in memory.
	Memo   temporal.ConflictMemo
	Logger *slog.Logger
}

// Client runs the pipeline. It is safe to call Build from several goroutines;
// synthetic codes stay unique across calls.
type Client struct {
	config *Config
	logger *slog.Logger

	mu       sync.Mutex
	counters builder.Counters
	memo     temporal.ConflictMemo
}

// NewClient creates a pipeline client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	memo := config.Memo
	if memo == nil {
		memo = temporal.NewMemoryMemo()
	}
	return &Client{
		config:   config,
		logger:   logger,
		counters: config.Counters,
		memo:     memo,
	}
}

// BuildResult is the output of the build stage.
type BuildResult struct {
	Nodes   []types.Node
	Edges   []types.Edge
	Flagged []dedupe.FlaggedGroup

	Counters       builder.Counters
	RawEdges       int
	DuplicateNodes int
	SkippedRecords int
	Dedupe         dedupe.Stats
}

// SliceResult is the output of the slice stage.
type SliceResult struct {
	Snapshots []types.Snapshot
	Edges     []types.Edge
	Flagged   []dedupe.FlaggedGroup
	Dedupe    dedupe.Stats
	Slice     temporal.Stats
}

// Counters returns the synthetic counter state after the last build.
func (c *Client) Counters() builder.Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}

// Build assembles records into nodes and canonical edges.
func (c *Client) Build(records []types.ProfileRecord) *BuildResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := builder.New(builder.WithCounters(c.counters), builder.WithLogger(c.logger))
	graph := b.Build(records)
	c.counters = graph.Counters

	res := dedupe.New(c.logger, c.config.FlagThreshold).Deduplicate(graph.Edges)

	return &BuildResult{
		Nodes:          graph.Nodes,
		Edges:          res.Edges,
		Flagged:        res.Flagged,
		Counters:       graph.Counters,
		RawEdges:       len(graph.Edges),
		DuplicateNodes: graph.DuplicateNodes,
		SkippedRecords: graph.SkippedRecords,
		Dedupe:         res.Stats,
	}
}

// Slice validates edges loaded from a table and cuts them into snapshots.
// Edges written by Build pass through deduplication unchanged; hand-edited
// tables are revalidated.
func (c *Client) Slice(ctx context.Context, nodes []types.Node, edges []types.RawEdge) (*SliceResult, error) {
	res := dedupe.New(c.logger, c.config.FlagThreshold).Deduplicate(edges)

	slicer := temporal.NewSlicer(c.config.Resolver, c.memo, c.logger)
	snaps, err := slicer.Slice(ctx, res.Edges, types.NewLabels(nodes))
	if err != nil {
		return nil, err
	}

	return &SliceResult{
		Snapshots: snaps,
		Edges:     res.Edges,
		Flagged:   res.Flagged,
		Dedupe:    res.Stats,
		Slice:     slicer.Stats(),
	}, nil
}

// Run executes both stages without the intermediate tables.
func (c *Client) Run(ctx context.Context, records []types.ProfileRecord) (*BuildResult, *SliceResult, error) {
	built := c.Build(records)
	sliced, err := c.Slice(ctx, built.Nodes, dedupe.AsRaw(built.Edges))
	if err != nil {
		return built, nil, err
	}
	return built, sliced, nil
}

// Summary flattens the stage statistics for storage next to a run.
func Summary(built *BuildResult, sliced *SliceResult) map[string]any {
	out := map[string]any{}
	if built != nil {
		out["raw_edges"] = built.RawEdges
		out["duplicate_nodes"] = built.DuplicateNodes
		out["skipped_records"] = built.SkippedRecords
		out["counters"] = built.Counters
		out["dedupe"] = built.Dedupe
	}
	if sliced != nil {
		out["slice"] = sliced.Slice
		if built == nil {
			out["dedupe"] = sliced.Dedupe
		}
	}
	return out
}
