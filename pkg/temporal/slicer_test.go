package temporal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/soundprediction/go-lineage/pkg/dedupe"
	"github.com/soundprediction/go-lineage/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingResolver struct {
	calls  int
	choose func(first, second string) string
}

func (r *countingResolver) Resolve(_ context.Context, _ types.EdgeIdentity, first, second string) (string, error) {
	r.calls++
	if r.choose != nil {
		return r.choose(first, second), nil
	}
	return second, nil
}

func edge(source, target string, year int, institution string) types.Edge {
	return types.Edge{Source: source, Target: target, Year: year, Institution: institution}
}

func TestSliceIsCumulativeByYear(t *testing.T) {
	s := NewSlicer(nil, nil, quietLogger())
	labels := types.Labels{"A": "Alice", "B": "Bob", "C": "Carol", "D": "Dan"}

	snaps, err := s.Slice(context.Background(), []types.Edge{
		edge("A", "B", 2005, "X"),
		edge("A", "C", 1999, "Y"),
		edge("C", "D", 2010, ""),
	}, labels)
	require.NoError(t, err)

	require.Len(t, snaps, 3)
	assert.Equal(t, []int{1999, 2005, 2010}, []int{snaps[0].Year, snaps[1].Year, snaps[2].Year})
	assert.Equal(t, []int{1, 2, 3}, []int{snaps[0].Index, snaps[1].Index, snaps[2].Index})

	assert.Equal(t, []types.Edge{edge("A", "C", 1999, "Y")}, snaps[0].Edges)
	assert.Equal(t, []types.Node{{Code: "A", Label: "Alice"}, {Code: "C", Label: "Carol"}}, snaps[0].Nodes)
	assert.Len(t, snaps[2].Edges, 3)
	assert.Len(t, snaps[2].Nodes, 4)
}

func TestSliceOrdersYearsNumerically(t *testing.T) {
	s := NewSlicer(nil, nil, quietLogger())

	snaps, err := s.Slice(context.Background(), []types.Edge{
		edge("A", "B", 2000, ""),
		edge("A", "C", 999, ""),
	}, nil)
	require.NoError(t, err)

	require.Len(t, snaps, 2)
	assert.Equal(t, 999, snaps[0].Year)
	assert.Equal(t, 2000, snaps[1].Year)
}

func TestSnapshotsAreMonotonic(t *testing.T) {
	s := NewSlicer(nil, nil, quietLogger())

	snaps, err := s.Slice(context.Background(), []types.Edge{
		edge("A", "B", 1990, "X"),
		edge("B", "C", 1995, "Y"),
		edge("A", "B", 1995, "Z"),
		edge("D", "E", 2001, ""),
		edge("C", "F", 2003, "W"),
		edge("C", "F", 2003, "V"),
	}, nil)
	require.NoError(t, err)

	for k := 1; k < len(snaps); k++ {
		prev, cur := snaps[k-1], snaps[k]
		for _, e := range prev.Edges {
			assert.Contains(t, cur.Edges, e, "snapshot %d lost edge %v", cur.Index, e)
		}
		for _, n := range prev.Nodes {
			assert.Contains(t, cur.Nodes, n, "snapshot %d lost node %v", cur.Index, n)
		}
	}
}

func TestSliceTakesNonEmptyInstitutionAutomatically(t *testing.T) {
	r := &countingResolver{}
	s := NewSlicer(r, nil, quietLogger())

	d := dedupe.New(quietLogger(), 0)
	canonical := d.Deduplicate([]types.RawEdge{
		{Source: "A", Target: "B", Year: "2000", Institution: "X"},
		{Source: "A", Target: "B", Year: "2000", Institution: ""},
	})

	snaps, err := s.Slice(context.Background(), canonical.Edges, nil)
	require.NoError(t, err)

	require.Len(t, snaps, 1)
	assert.Equal(t, []types.Edge{edge("A", "B", 2000, "X")}, snaps[0].Edges)
	assert.Zero(t, r.calls)
	assert.Equal(t, 1, s.Stats().AutoResolved)
}

func TestConflictIsResolvedOncePerEdge(t *testing.T) {
	r := &countingResolver{}
	s := NewSlicer(r, nil, quietLogger())

	snaps, err := s.Slice(context.Background(), []types.Edge{
		edge("A", "B", 2000, "MIT"),
		edge("A", "B", 2000, "Massachusetts Institute of Technology"),
		edge("C", "D", 2001, ""),
		edge("E", "F", 2002, ""),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, r.calls)
	for _, snap := range snaps {
		assert.Contains(t, snap.Edges, edge("A", "B", 2000, "Massachusetts Institute of Technology"))
		assert.NotContains(t, snap.Edges, edge("A", "B", 2000, "MIT"))
	}
}

func TestOppositeDirectionsAreSeparateIdentities(t *testing.T) {
	r := &countingResolver{}
	s := NewSlicer(r, nil, quietLogger())

	snaps, err := s.Slice(context.Background(), []types.Edge{
		edge("A", "B", 2000, "X"),
		edge("B", "A", 2000, "X"),
	}, nil)
	require.NoError(t, err)

	assert.Len(t, snaps[0].Edges, 2)
	assert.Zero(t, r.calls)
}

func TestMemoIsReusedAcrossRuns(t *testing.T) {
	r := &countingResolver{}
	memo := NewMemoryMemo()
	input := []types.Edge{edge("A", "B", 2000, "X"), edge("A", "B", 2000, "Y")}

	_, err := NewSlicer(r, memo, quietLogger()).Slice(context.Background(), input, nil)
	require.NoError(t, err)

	again := NewSlicer(r, memo, quietLogger())
	snaps, err := again.Slice(context.Background(), input, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, r.calls)
	assert.Equal(t, 1, again.Stats().MemoHits)
	assert.Equal(t, []types.Edge{edge("A", "B", 2000, "Y")}, snaps[0].Edges)
}

func TestStaleMemoEntryIsIgnored(t *testing.T) {
	r := &countingResolver{}
	memo := NewMemoryMemo()
	id := types.EdgeIdentity{Source: "A", Target: "B", Year: 2000}
	require.NoError(t, memo.Store(id, "Gone"))

	snaps, err := NewSlicer(r, memo, quietLogger()).Slice(context.Background(),
		[]types.Edge{edge("A", "B", 2000, "X"), edge("A", "B", 2000, "Y")}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, r.calls)
	assert.Equal(t, "Y", snaps[0].Edges[0].Institution)
	got, ok, err := memo.Lookup(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Y", got)
}

func TestResolverFailureAbortsRun(t *testing.T) {
	failing := ResolverFunc(func(context.Context, types.EdgeIdentity, string, string) (string, error) {
		return "", ErrNoDecision
	})
	s := NewSlicer(failing, nil, quietLogger())

	_, err := s.Slice(context.Background(), []types.Edge{edge("A", "B", 2000, "X"), edge("A", "B", 2000, "Y")}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoDecision))
}

func TestResolverMustPickACandidate(t *testing.T) {
	bogus := ResolverFunc(func(context.Context, types.EdgeIdentity, string, string) (string, error) {
		return "", nil
	})
	s := NewSlicer(bogus, nil, quietLogger())

	_, err := s.Slice(context.Background(), []types.Edge{edge("A", "B", 2000, "X"), edge("A", "B", 2000, "Y")}, nil)

	assert.ErrorIs(t, err, ErrNoDecision)
}

func TestEmptyYearEdgeNeverReachesASlice(t *testing.T) {
	d := dedupe.New(quietLogger(), 0)
	canonical := d.Deduplicate([]types.RawEdge{
		{Source: "A", Target: "B", Year: "", Institution: "X"},
		{Source: "C", Target: "D", Year: "2004", Institution: "Y"},
	})

	snaps, err := NewSlicer(nil, nil, quietLogger()).Slice(context.Background(), canonical.Edges, nil)
	require.NoError(t, err)

	for _, snap := range snaps {
		for _, e := range snap.Edges {
			assert.NotEqual(t, "A", e.Source)
		}
	}
	assert.Len(t, snaps, 1)
}

func TestSliceEmptyInput(t *testing.T) {
	snaps, err := NewSlicer(nil, nil, quietLogger()).Slice(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
