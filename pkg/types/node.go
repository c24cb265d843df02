package types

// Node is a researcher in the genealogy graph.
type Node struct {
	Code  string `json:"id"`
	Label string `json:"label"`
}

// Labels maps node codes to display labels.
type Labels map[string]string

// NewLabels indexes nodes by code. The first label seen for a code wins.
func NewLabels(nodes []Node) Labels {
	labels := make(Labels, len(nodes))
	for _, n := range nodes {
		if _, ok := labels[n.Code]; ok {
			continue
		}
		labels[n.Code] = n.Label
	}
	return labels
}

// Node returns the node for code, with an empty label when code is unknown.
func (l Labels) Node(code string) Node {
	return Node{Code: code, Label: l[code]}
}
