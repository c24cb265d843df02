package dto

import "github.com/soundprediction/go-lineage/pkg/types"

// NodeResult is a researcher in the graph
type NodeResult struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// EdgeResult is an advisor -> student relationship
type EdgeResult struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Year        int    `json:"year"`
	Institution string `json:"institution"`
}

// SnapshotSummary describes a snapshot without its contents
type SnapshotSummary struct {
	Index int `json:"index"`
	Year  int `json:"year"`
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// SnapshotResponse is the full state of the graph as of a year
type SnapshotResponse struct {
	SnapshotSummary
	RequestedYear int          `json:"requested_year"`
	NodeList      []NodeResult `json:"node_list"`
	EdgeList      []EdgeResult `json:"edge_list"`
}

// FlaggedGroupResult is an endpoint pair with too many variants
type FlaggedGroupResult struct {
	Key      string       `json:"key"`
	Variants []EdgeResult `json:"variants"`
}

// NewNodeResults converts nodes for the API.
func NewNodeResults(nodes []types.Node) []NodeResult {
	out := make([]NodeResult, len(nodes))
	for i, n := range nodes {
		out[i] = NodeResult{ID: n.Code, Label: n.Label}
	}
	return out
}

// NewEdgeResults converts edges for the API.
func NewEdgeResults(edges []types.Edge) []EdgeResult {
	out := make([]EdgeResult, len(edges))
	for i, e := range edges {
		out[i] = EdgeResult{Source: e.Source, Target: e.Target, Year: e.Year, Institution: e.Institution}
	}
	return out
}

// NewSnapshotSummary summarizes a snapshot.
func NewSnapshotSummary(s types.Snapshot) SnapshotSummary {
	return SnapshotSummary{Index: s.Index, Year: s.Year, Nodes: len(s.Nodes), Edges: len(s.Edges)}
}
