package types

// Snapshot is a cumulative slice of the graph: every edge whose year is among
// the Index smallest distinct years, and the nodes those edges touch.
type Snapshot struct {
	Index int    `json:"index"`
	Year  int    `json:"year"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}
