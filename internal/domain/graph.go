package domain

// GraphElementKind tags entries of a full-graph read.
type GraphElementKind string

const (
	GraphElementNode GraphElementKind = "node"
	GraphElementEdge GraphElementKind = "edge"
)

// GraphElement is one entry of a full-graph read: either a live node or a
// live edge, tagged by kind. Nodes always precede edges in the sequence.
type GraphElement struct {
	Kind GraphElementKind `json:"kind"`
	Node *Node            `json:"node,omitempty"`
	Edge *Edge            `json:"edge,omitempty"`
}
