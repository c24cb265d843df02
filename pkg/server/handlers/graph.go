package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/soundprediction/go-lineage/pkg/export"
	"github.com/soundprediction/go-lineage/pkg/server/dto"
	"github.com/soundprediction/go-lineage/pkg/types"
)

// GraphSource provides the dataset being served.
type GraphSource interface {
	Dataset() *export.Dataset
}

// snapshotCacheSize bounds the converted snapshots kept in memory.
const snapshotCacheSize = 64

type snapshotKey struct {
	ds    *export.Dataset
	index int
}

type snapshotPayload struct {
	nodes []dto.NodeResult
	edges []dto.EdgeResult
}

// GraphHandler serves the graph and its snapshots
type GraphHandler struct {
	source    GraphSource
	snapshots *lru.Cache[snapshotKey, snapshotPayload]
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(source GraphSource) *GraphHandler {
	// New only fails for a non-positive size.
	cache, _ := lru.New[snapshotKey, snapshotPayload](snapshotCacheSize)
	return &GraphHandler{source: source, snapshots: cache}
}

func (h *GraphHandler) dataset(c *gin.Context) (*export.Dataset, bool) {
	ds := h.source.Dataset()
	if ds == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   "not_loaded",
			Message: "graph has not been loaded yet",
		})
		return nil, false
	}
	return ds, true
}

// Nodes handles GET /graph/nodes. The optional q parameter filters by a
// case-insensitive substring of the code or label.
func (h *GraphHandler) Nodes(c *gin.Context) {
	ds, ok := h.dataset(c)
	if !ok {
		return
	}

	nodes := ds.Nodes
	if q := strings.ToLower(strings.TrimSpace(c.Query("q"))); q != "" {
		var matched []types.Node
		for _, n := range nodes {
			if strings.Contains(strings.ToLower(n.Code), q) || strings.Contains(strings.ToLower(n.Label), q) {
				matched = append(matched, n)
			}
		}
		nodes = matched
	}

	c.JSON(http.StatusOK, dto.ListResponse[dto.NodeResult]{
		Items: dto.NewNodeResults(nodes),
		Total: len(nodes),
	})
}

// Edges handles GET /graph/edges. The resolved edges are returned; source,
// target and year narrow the result.
func (h *GraphHandler) Edges(c *gin.Context) {
	ds, ok := h.dataset(c)
	if !ok {
		return
	}

	var year int
	if y := c.Query("year"); y != "" {
		parsed, err := types.ParseYear(y)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "invalid_year",
				Message: err.Error(),
			})
			return
		}
		year = parsed
	}
	source, target := c.Query("source"), c.Query("target")

	var edges []types.Edge
	for _, e := range ds.ResolvedEdges() {
		if source != "" && e.Source != source {
			continue
		}
		if target != "" && e.Target != target {
			continue
		}
		if year != 0 && e.Year != year {
			continue
		}
		edges = append(edges, e)
	}

	c.JSON(http.StatusOK, dto.ListResponse[dto.EdgeResult]{
		Items: dto.NewEdgeResults(edges),
		Total: len(edges),
	})
}

// Snapshots handles GET /snapshots
func (h *GraphHandler) Snapshots(c *gin.Context) {
	ds, ok := h.dataset(c)
	if !ok {
		return
	}

	out := make([]dto.SnapshotSummary, len(ds.Snapshots))
	for i, s := range ds.Snapshots {
		out[i] = dto.NewSnapshotSummary(s)
	}
	c.JSON(http.StatusOK, dto.ListResponse[dto.SnapshotSummary]{
		Items: out,
		Total: len(out),
	})
}

// Snapshot handles GET /snapshots/:year. It returns the graph as of the
// year, which is the latest snapshot not after it.
func (h *GraphHandler) Snapshot(c *gin.Context) {
	ds, ok := h.dataset(c)
	if !ok {
		return
	}

	year, err := types.ParseYear(c.Param("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_year",
			Message: err.Error(),
		})
		return
	}

	snaps := ds.Snapshots
	i := sort.Search(len(snaps), func(i int) bool { return snaps[i].Year > year }) - 1
	if i < 0 {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "not_found",
			Message: "no relationships recorded up to " + types.FormatYear(year),
		})
		return
	}

	snap := snaps[i]
	key := snapshotKey{ds: ds, index: snap.Index}
	payload, ok := h.snapshots.Get(key)
	if !ok {
		payload = snapshotPayload{
			nodes: dto.NewNodeResults(snap.Nodes),
			edges: dto.NewEdgeResults(snap.Edges),
		}
		h.snapshots.Add(key, payload)
	}

	c.JSON(http.StatusOK, dto.SnapshotResponse{
		SnapshotSummary: dto.NewSnapshotSummary(snap),
		RequestedYear:   year,
		NodeList:        payload.nodes,
		EdgeList:        payload.edges,
	})
}

// Flagged handles GET /flagged
func (h *GraphHandler) Flagged(c *gin.Context) {
	ds, ok := h.dataset(c)
	if !ok {
		return
	}

	out := make([]dto.FlaggedGroupResult, len(ds.Flagged))
	for i, g := range ds.Flagged {
		out[i] = dto.FlaggedGroupResult{Key: g.Key.String(), Variants: dto.NewEdgeResults(g.Variants)}
	}
	c.JSON(http.StatusOK, dto.ListResponse[dto.FlaggedGroupResult]{
		Items: out,
		Total: len(out),
	})
}
