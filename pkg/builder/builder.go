// Package builder expands profile records into a raw genealogy graph.
//
// The builder is purely structural: it emits one node per profile and one
// advisor -> student edge per reference, allocating placeholder codes for
// references that do not link to a profile. It performs no validation and no
// identity resolution across profiles; that is left to the dedupe package.
package builder

import (
	"log/slog"

	"github.com/soundprediction/go-lineage/pkg/types"
)

// RawGraph is the builder output.
type RawGraph struct {
	Nodes []types.Node
	Edges []types.RawEdge

	// Counters is the synthetic counter state after the build. Seed the next
	// build with it to keep codes unique across batches.
	Counters Counters

	// DuplicateNodes counts profiles whose code had already been seen.
	DuplicateNodes int
	// SkippedRecords counts records without a code.
	SkippedRecords int
}

// Builder converts profile records into a RawGraph.
type Builder struct {
	counter *SyntheticCounter
	logger  *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithCounters resumes synthetic code allocation from a previous state.
func WithCounters(start Counters) Option {
	return func(b *Builder) {
		b.counter = NewSyntheticCounter(start)
	}
}

// WithLogger sets the logger used for warnings and summaries.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a Builder.
func New(opts ...Option) *Builder {
	b := &Builder{
		counter: NewSyntheticCounter(Counters{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build expands records in order. Placeholder codes are allocated in encounter
// order, so the same input always produces the same codes.
func (b *Builder) Build(records []types.ProfileRecord) *RawGraph {
	g := &RawGraph{}

	seen := make(map[string]struct{}, len(records))
	// Nodes for referenced researchers, appended after all profiles so a
	// profile's own label always wins.
	var referenced []types.Node

	for _, rec := range records {
		if rec.Code == "" {
			b.logger.Warn("Skipping profile record without code", "name", rec.Name)
			g.SkippedRecords++
			continue
		}

		if _, dup := seen[rec.Code]; dup {
			b.logger.Warn("Duplicate node code, keeping first label",
				"code", rec.Code,
				"ignored_label", rec.Name)
			g.DuplicateNodes++
		} else {
			seen[rec.Code] = struct{}{}
			g.Nodes = append(g.Nodes, types.Node{Code: rec.Code, Label: rec.Name})
		}

		// Advisor edges carry the profile's own graduation data and only
		// exist when the page reports it.
		if grad, ok := rec.Graduation(); ok {
			for _, adv := range rec.Advisors {
				source := adv.Code
				if !adv.Resolved() {
					source = b.counter.Next(CategoryAdvisor)
				}
				referenced = append(referenced, types.Node{Code: source, Label: adv.Name})

				g.Edges = append(g.Edges, types.RawEdge{
					Source:      source,
					Target:      rec.Code,
					Year:        grad.Year,
					Institution: grad.Institution,
					Relation:    types.RelationAdvised,
				})
			}
		}

		for _, stu := range rec.Students {
			target := stu.Code
			if !stu.Resolved() {
				target = b.counter.Next(CategoryStudent)
			}
			referenced = append(referenced, types.Node{Code: target, Label: stu.Name})

			g.Edges = append(g.Edges, types.RawEdge{
				Source:      rec.Code,
				Target:      target,
				Year:        stu.Year,
				Institution: stu.Institution,
				Relation:    types.RelationSupervised,
			})
		}
	}

	for _, n := range referenced {
		if _, ok := seen[n.Code]; ok {
			continue
		}
		seen[n.Code] = struct{}{}
		g.Nodes = append(g.Nodes, n)
	}

	g.Counters = b.counter.State()

	b.logger.Info("Built raw graph",
		"profiles", len(records),
		"nodes", len(g.Nodes),
		"raw_edges", len(g.Edges),
		"duplicate_nodes", g.DuplicateNodes,
		"skipped_records", g.SkippedRecords)

	return g
}

// Counters returns the current synthetic counter state.
func (b *Builder) Counters() Counters {
	return b.counter.State()
}
