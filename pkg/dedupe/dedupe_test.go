package dedupe

import (
	"io"
	"log/slog"
	"testing"

	"github.com/soundprediction/go-lineage/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeduplicator() *Deduplicator {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
}

func raw(source, target, year, institution string) types.RawEdge {
	return types.RawEdge{Source: source, Target: target, Year: year, Institution: institution}
}

func TestOppositeDirectionReportsShareAGroup(t *testing.T) {
	d := newTestDeduplicator()

	res := d.Deduplicate([]types.RawEdge{
		raw("A", "B", "2000", "X"),
		raw("B", "A", "2000", "X"),
	})

	assert.Equal(t, []types.Edge{
		{Source: "A", Target: "B", Year: 2000, Institution: "X"},
		{Source: "B", Target: "A", Year: 2000, Institution: "X"},
	}, res.Edges, "direction is preserved, not canonicalized")
	assert.Empty(t, res.Flagged)
	assert.Equal(t, 1, res.Stats.Groups)
}

func TestGroupingIgnoresScrapeOrder(t *testing.T) {
	d := newTestDeduplicator()

	forward := d.Deduplicate([]types.RawEdge{raw("A", "B", "2000", "X"), raw("B", "A", "2000", "X")})
	backward := d.Deduplicate([]types.RawEdge{raw("B", "A", "2000", "X"), raw("A", "B", "2000", "X")})

	assert.Equal(t, forward.Edges, backward.Edges)
	assert.Equal(t, forward.Stats.Groups, backward.Stats.Groups)
}

func TestExactDuplicatesCollapse(t *testing.T) {
	d := newTestDeduplicator()

	res := d.Deduplicate([]types.RawEdge{
		{Source: "A", Target: "B", Year: "2000", Institution: "X", Relation: types.RelationAdvised},
		{Source: "A", Target: "B", Year: "2000", Institution: "X", Relation: types.RelationSupervised},
	})

	require.Len(t, res.Edges, 1)
	assert.Equal(t, 1, res.Stats.Collapsed)
}

func TestDifferentInstitutionTextIsKept(t *testing.T) {
	d := newTestDeduplicator()

	res := d.Deduplicate([]types.RawEdge{
		raw("A", "B", "2000", "X"),
		raw("A", "B", "2000", ""),
	})

	assert.Equal(t, []types.Edge{
		{Source: "A", Target: "B", Year: 2000, Institution: ""},
		{Source: "A", Target: "B", Year: 2000, Institution: "X"},
	}, res.Edges)
}

func TestMandatoryFieldsAreEnforced(t *testing.T) {
	d := newTestDeduplicator()

	res := d.Deduplicate([]types.RawEdge{
		raw("", "B", "2000", "X"),
		raw("A", "", "2000", "X"),
		raw("A", "B", "", "X"),
		raw("A", "B", "n.d.", "X"),
		raw("A", "B", "20001", "X"),
		raw("A", "C", "2001", ""),
	})

	assert.Equal(t, []types.Edge{{Source: "A", Target: "C", Year: 2001}}, res.Edges)
	assert.Equal(t, map[DropReason]int{
		DropMissingSource: 1,
		DropMissingTarget: 1,
		DropMissingYear:   1,
		DropInvalidYear:   2,
	}, res.Stats.Dropped)
	assert.Equal(t, 5, res.Stats.TotalDropped())
	assert.Equal(t, 6, res.Stats.Input)
}

func TestGroupsAboveThresholdAreFlaggedButKept(t *testing.T) {
	d := newTestDeduplicator()

	res := d.Deduplicate([]types.RawEdge{
		raw("A", "B", "2000", "Univ. of X"),
		raw("B", "A", "2000", "University of X"),
		raw("A", "B", "2000", "Universty of X"),
		raw("C", "D", "2001", "Y"),
		raw("D", "C", "2001", "Z"),
	})

	require.Len(t, res.Flagged, 1)
	assert.Equal(t, types.NewEdgeKey("A", "B"), res.Flagged[0].Key)
	assert.Len(t, res.Flagged[0].Variants, 3)
	assert.Len(t, res.Edges, 5, "flagged variants still pass through")
}

func TestCustomFlagThreshold(t *testing.T) {
	d := New(slog.New(slog.NewTextHandler(io.Discard, nil)), 1)

	res := d.Deduplicate([]types.RawEdge{
		raw("C", "D", "2001", "Y"),
		raw("D", "C", "2001", "Z"),
	})

	assert.Len(t, res.Flagged, 1)
}

func TestOutputIsLexicographic(t *testing.T) {
	d := newTestDeduplicator()

	res := d.Deduplicate([]types.RawEdge{
		raw("b", "c", "1999", ""),
		raw("a", "z", "2005", ""),
		raw("a", "c", "2010", ""),
		raw("a", "c", "1980", ""),
	})

	got := make([]string, len(res.Edges))
	for i, e := range res.Edges {
		got[i] = e.String()
	}
	assert.Equal(t, []string{
		"a\tc\t1980\t",
		"a\tc\t2010\t",
		"a\tz\t2005\t",
		"b\tc\t1999\t",
	}, got)
}

func TestDeduplicateIsAFixedPoint(t *testing.T) {
	d := newTestDeduplicator()

	first := d.Deduplicate([]types.RawEdge{
		raw("A", "B", "2000", "X"),
		raw("B", "A", "2000", "X"),
		raw("A", "B", "2000", ""),
		raw("A", "B", "2000", "X"),
		raw("C", "D", "", "Y"),
		raw("E", "F", "1995", "Z"),
	})
	second := d.Deduplicate(AsRaw(first.Edges))

	assert.Equal(t, first.Edges, second.Edges)
	assert.Zero(t, second.Stats.TotalDropped())
	assert.Zero(t, second.Stats.Collapsed)
}

func TestEmptyYearNeverSurvives(t *testing.T) {
	d := newTestDeduplicator()

	res := d.Deduplicate([]types.RawEdge{raw("A", "B", "", "X"), raw("A", "B", "2000", "X")})

	require.Len(t, res.Edges, 1)
	assert.Equal(t, 2000, res.Edges[0].Year)
}
