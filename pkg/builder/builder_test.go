package builder

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/soundprediction/go-lineage/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildAdvisorEdgeUsesProfileGraduation(t *testing.T) {
	b := New(WithLogger(quietLogger()))

	g := b.Build([]types.ProfileRecord{
		{
			Code:         "pst1",
			Name:         "Student One",
			Advisors:     []types.AdvisorRef{{Code: "pad1", Name: "Advisor One"}},
			GraduateInfo: []types.Graduation{{Institution: "Yale", Year: "1990"}},
		},
	})

	require.Len(t, g.Edges, 1)
	assert.Equal(t, types.RawEdge{
		Source:      "pad1",
		Target:      "pst1",
		Year:        "1990",
		Institution: "Yale",
		Relation:    types.RelationAdvised,
	}, g.Edges[0])
	assert.Equal(t, []types.Node{
		{Code: "pst1", Label: "Student One"},
		{Code: "pad1", Label: "Advisor One"},
	}, g.Nodes)
}

func TestBuildWithoutGraduationSkipsAdvisorEdges(t *testing.T) {
	b := New(WithLogger(quietLogger()))

	g := b.Build([]types.ProfileRecord{
		{Code: "pst1", Advisors: []types.AdvisorRef{{Code: "pad1"}, {}}},
	})

	assert.Empty(t, g.Edges)
	assert.Equal(t, Counters{Advisor: 1, Student: 1}, g.Counters, "no placeholder is allocated without an edge")
}

func TestBuildStudentEdgeUsesStudentData(t *testing.T) {
	b := New(WithLogger(quietLogger()))

	g := b.Build([]types.ProfileRecord{
		{
			Code:         "pad1",
			GraduateInfo: []types.Graduation{{Institution: "Harvard", Year: "1960"}},
			Students: []types.StudentRef{
				{Code: "pst1", Name: "S1", Year: "1975", Institution: "MIT"},
				{Code: "pst2", Name: "S2"},
			},
		},
	})

	require.Len(t, g.Edges, 2)
	assert.Equal(t, types.RawEdge{Source: "pad1", Target: "pst1", Year: "1975", Institution: "MIT", Relation: types.RelationSupervised}, g.Edges[0])
	// Empty year and institution are still emitted; filtering happens later.
	assert.Equal(t, types.RawEdge{Source: "pad1", Target: "pst2", Relation: types.RelationSupervised}, g.Edges[1])
}

func TestBuildSyntheticCodesInEncounterOrder(t *testing.T) {
	b := New(WithLogger(quietLogger()))

	g := b.Build([]types.ProfileRecord{
		{
			Code:         "p1",
			Advisors:     []types.AdvisorRef{{Name: "Unlinked A"}},
			GraduateInfo: []types.Graduation{{Year: "2000"}},
		},
		{
			Code:         "p2",
			Advisors:     []types.AdvisorRef{{Name: "Unlinked B"}},
			GraduateInfo: []types.Graduation{{Year: "2001"}},
			Students:     []types.StudentRef{{Name: "Unlinked S", Year: "2010"}},
		},
	})

	require.Len(t, g.Edges, 3)
	assert.Equal(t, "adv1", g.Edges[0].Source)
	assert.Equal(t, "adv2", g.Edges[1].Source)
	assert.Equal(t, "stu1", g.Edges[2].Target)
	assert.Equal(t, Counters{Advisor: 3, Student: 2}, g.Counters)

	labels := types.NewLabels(g.Nodes)
	assert.Equal(t, "Unlinked A", labels["adv1"])
	assert.Equal(t, "Unlinked B", labels["adv2"])
	assert.Equal(t, "Unlinked S", labels["stu1"])
}

func TestBuildResumesCounters(t *testing.T) {
	first := New(WithLogger(quietLogger()))
	g1 := first.Build([]types.ProfileRecord{
		{Code: "p1", Advisors: []types.AdvisorRef{{}}, GraduateInfo: []types.Graduation{{Year: "2000"}}},
	})

	second := New(WithLogger(quietLogger()), WithCounters(g1.Counters))
	g2 := second.Build([]types.ProfileRecord{
		{Code: "p2", Advisors: []types.AdvisorRef{{}}, GraduateInfo: []types.Graduation{{Year: "2000"}}},
	})

	assert.Equal(t, "adv1", g1.Edges[0].Source)
	assert.Equal(t, "adv2", g2.Edges[0].Source)
}

func TestBuildDuplicateCodeKeepsFirstLabel(t *testing.T) {
	b := New(WithLogger(quietLogger()))

	g := b.Build([]types.ProfileRecord{
		{Code: "p1", Name: "First Label"},
		{Code: "p1", Name: "Second Label"},
	})

	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "First Label", g.Nodes[0].Label)
	assert.Equal(t, 1, g.DuplicateNodes)
}

func TestBuildReferenceNeverOverridesProfileLabel(t *testing.T) {
	b := New(WithLogger(quietLogger()))

	g := b.Build([]types.ProfileRecord{
		{Code: "pad1", Students: []types.StudentRef{{Code: "pst1", Name: "Short Name", Year: "1999"}}},
		{Code: "pst1", Name: "Full Student Name"},
	})

	labels := types.NewLabels(g.Nodes)
	assert.Equal(t, "Full Student Name", labels["pst1"])
	assert.Len(t, g.Nodes, 2)
	assert.Zero(t, g.DuplicateNodes)
}

func TestBuildSkipsRecordsWithoutCode(t *testing.T) {
	b := New(WithLogger(quietLogger()))

	g := b.Build([]types.ProfileRecord{{Name: "Nobody"}, {Code: "p1"}})

	assert.Equal(t, 1, g.SkippedRecords)
	assert.Len(t, g.Nodes, 1)
}

func TestSyntheticCounterConcurrentAllocation(t *testing.T) {
	c := NewSyntheticCounter(Counters{})

	const workers = 16
	const perWorker = 50

	var (
		mu    sync.Mutex
		codes = make(map[string]struct{})
		wg    sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				code := c.Next(CategoryStudent)
				mu.Lock()
				codes[code] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, codes, workers*perWorker)
	assert.Equal(t, Counters{Advisor: 1, Student: workers*perWorker + 1}, c.State())
}

func TestSyntheticCounterCategoriesAreIndependent(t *testing.T) {
	c := NewSyntheticCounter(Counters{Advisor: 5})

	assert.Equal(t, "adv5", c.Next(CategoryAdvisor))
	assert.Equal(t, "stu1", c.Next(CategoryStudent))
	assert.Equal(t, "adv6", c.Next(CategoryAdvisor))
	assert.Panics(t, func() { c.Next(Category("xyz")) })
}
