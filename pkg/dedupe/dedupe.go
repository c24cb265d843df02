// Package dedupe turns the builder's raw edges into the canonical edge set.
//
// The same advisor/student relationship is usually reported twice, once from
// each researcher's page, sometimes with different institution text. Reports
// are grouped by the unordered endpoint pair; exact duplicate tuples collapse,
// everything else passes through. Groups with suspiciously many variants are
// flagged for manual review rather than resolved here.
package dedupe

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/soundprediction/go-lineage/pkg/types"
)

// DefaultFlagThreshold is the number of distinct variants a group may hold
// before it is flagged: one report from each side of the relationship.
const DefaultFlagThreshold = 2

// DropReason explains why a raw edge was discarded.
type DropReason string

const (
	DropMissingSource DropReason = "missing_source"
	DropMissingTarget DropReason = "missing_target"
	DropMissingYear   DropReason = "missing_year"
	DropInvalidYear   DropReason = "invalid_year"
)

// Stats summarises a deduplication pass.
type Stats struct {
	Input     int                `json:"input"`
	Retained  int                `json:"retained"`
	Collapsed int                `json:"collapsed"`
	Groups    int                `json:"groups"`
	Dropped   map[DropReason]int `json:"dropped"`
}

// TotalDropped sums drops over all reasons.
func (s Stats) TotalDropped() int {
	total := 0
	for _, n := range s.Dropped {
		total += n
	}
	return total
}

// FlaggedGroup is an endpoint pair reported with more distinct variants than
// the flag threshold allows. This usually means a typo in an institution name.
type FlaggedGroup struct {
	Key      types.EdgeKey
	Variants []types.Edge
}

// Result is the output of Deduplicate.
type Result struct {
	// Edges is the canonical edge set in lexicographic tuple order.
	Edges   []types.Edge
	Flagged []FlaggedGroup
	Stats   Stats
}

// Deduplicator groups and collapses raw edges.
type Deduplicator struct {
	logger        *slog.Logger
	flagThreshold int
}

// New creates a Deduplicator. A threshold below 1 uses DefaultFlagThreshold.
func New(logger *slog.Logger, flagThreshold int) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	if flagThreshold < 1 {
		flagThreshold = DefaultFlagThreshold
	}
	return &Deduplicator{
		logger:        logger,
		flagThreshold: flagThreshold,
	}
}

// Deduplicate validates, groups and collapses raw edges. It never fails: edges
// without source, target or a four digit year are dropped and counted.
// Running it on its own output returns the same edges.
func (d *Deduplicator) Deduplicate(raw []types.RawEdge) *Result {
	stats := Stats{
		Input:   len(raw),
		Dropped: make(map[DropReason]int),
	}

	groups := make(map[types.EdgeKey]map[string]types.Edge)
	for _, re := range raw {
		edge, reason, ok := validate(re)
		if !ok {
			stats.Dropped[reason]++
			d.logger.Debug("Dropping raw edge",
				"reason", string(reason),
				"source", re.Source,
				"target", re.Target,
				"year", re.Year)
			continue
		}

		key := edge.Key()
		variants, exists := groups[key]
		if !exists {
			variants = make(map[string]types.Edge)
			groups[key] = variants
		}
		tuple := edge.String()
		if _, dup := variants[tuple]; dup {
			stats.Collapsed++
			continue
		}
		variants[tuple] = edge
	}

	result := &Result{}
	for key, variants := range groups {
		sorted := sortedVariants(variants)
		result.Edges = append(result.Edges, sorted...)

		if len(sorted) > d.flagThreshold {
			result.Flagged = append(result.Flagged, FlaggedGroup{Key: key, Variants: sorted})
		}
	}

	sort.Slice(result.Edges, func(i, j int) bool {
		return result.Edges[i].String() < result.Edges[j].String()
	})
	sort.Slice(result.Flagged, func(i, j int) bool {
		return result.Flagged[i].Key.String() < result.Flagged[j].Key.String()
	})

	for _, fg := range result.Flagged {
		lines := make([]string, len(fg.Variants))
		for i, v := range fg.Variants {
			lines[i] = strings.ReplaceAll(v.String(), "\t", "|")
		}
		d.logger.Warn("Edge group needs manual review",
			"key", fg.Key.String(),
			"variants", len(fg.Variants),
			"tuples", strings.Join(lines, "; "))
	}

	stats.Groups = len(groups)
	stats.Retained = len(result.Edges)
	result.Stats = stats

	d.logger.Info("Deduplicated edges",
		"input", stats.Input,
		"retained", stats.Retained,
		"collapsed", stats.Collapsed,
		"dropped", stats.TotalDropped(),
		"groups", stats.Groups,
		"flagged", len(result.Flagged))

	return result
}

func validate(re types.RawEdge) (types.Edge, DropReason, bool) {
	switch {
	case strings.TrimSpace(re.Source) == "":
		return types.Edge{}, DropMissingSource, false
	case strings.TrimSpace(re.Target) == "":
		return types.Edge{}, DropMissingTarget, false
	case strings.TrimSpace(re.Year) == "":
		return types.Edge{}, DropMissingYear, false
	}

	year, err := types.ParseYear(re.Year)
	if err != nil {
		return types.Edge{}, DropInvalidYear, false
	}

	return types.Edge{
		Source:      re.Source,
		Target:      re.Target,
		Year:        year,
		Institution: re.Institution,
	}, "", true
}

func sortedVariants(variants map[string]types.Edge) []types.Edge {
	tuples := make([]string, 0, len(variants))
	for t := range variants {
		tuples = append(tuples, t)
	}
	sort.Strings(tuples)

	out := make([]types.Edge, len(tuples))
	for i, t := range tuples {
		out[i] = variants[t]
	}
	return out
}

// AsRaw converts canonical edges back into raw edges, for re-running the
// pipeline on previously exported tables.
func AsRaw(edges []types.Edge) []types.RawEdge {
	raw := make([]types.RawEdge, len(edges))
	for i, e := range edges {
		raw[i] = e.Raw()
	}
	return raw
}
