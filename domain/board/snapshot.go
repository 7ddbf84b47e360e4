package board

import (
	"fmt"

	pkgerrors "mindboard/pkg/errors"
)

// Snapshot is an immutable view of the board graph. The slices are shared
// between snapshots and must never be modified in place.
type Snapshot struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// NodeByID returns the node with the given id.
func (s Snapshot) NodeByID(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// NodeIndex maps node ids to their position in Nodes.
func (s Snapshot) NodeIndex() map[string]int {
	idx := make(map[string]int, len(s.Nodes))
	for i, n := range s.Nodes {
		idx[n.ID] = i
	}
	return idx
}

// HasNode reports whether a node with the id exists.
func (s Snapshot) HasNode(id string) bool {
	_, ok := s.NodeByID(id)
	return ok
}

// HasEdge reports whether an edge with the id exists.
func (s Snapshot) HasEdge(id string) bool {
	for _, e := range s.Edges {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Parents returns the sources of edges pointing at id, in edge order.
func (s Snapshot) Parents(id string) []string {
	var out []string
	for _, e := range s.Edges {
		if e.Target == id {
			out = append(out, e.Source)
		}
	}
	return out
}

// Children returns the targets of edges leaving id, in edge order.
func (s Snapshot) Children(id string) []string {
	var out []string
	for _, e := range s.Edges {
		if e.Source == id {
			out = append(out, e.Target)
		}
	}
	return out
}

// Equal compares two snapshots structurally, order included.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.Nodes) != len(o.Nodes) || len(s.Edges) != len(o.Edges) {
		return false
	}
	for i := range s.Nodes {
		if !s.Nodes[i].Equal(o.Nodes[i]) {
			return false
		}
	}
	for i := range s.Edges {
		if !s.Edges[i].Equal(o.Edges[i]) {
			return false
		}
	}
	return true
}

// Validate checks node id uniqueness and that every edge references
// existing nodes.
func (s Snapshot) Validate() error {
	ids := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.ID == "" {
			return pkgerrors.NewValidationError("node id is required")
		}
		if _, dup := ids[n.ID]; dup {
			return pkgerrors.NewValidationError(fmt.Sprintf("duplicate node id %q", n.ID)).
				WithCode(pkgerrors.CodeDuplicateNode).
				WithDetail("nodeId", n.ID)
		}
		ids[n.ID] = struct{}{}
	}

	edgeIDs := make(map[string]struct{}, len(s.Edges))
	for _, e := range s.Edges {
		if e.ID == "" {
			return pkgerrors.NewValidationError("edge id is required")
		}
		if _, dup := edgeIDs[e.ID]; dup {
			return pkgerrors.NewValidationError(fmt.Sprintf("duplicate edge id %q", e.ID)).
				WithDetail("edgeId", e.ID)
		}
		edgeIDs[e.ID] = struct{}{}

		_, okSource := ids[e.Source]
		_, okTarget := ids[e.Target]
		if !okSource || !okTarget {
			return pkgerrors.NewValidationError(fmt.Sprintf("edge %q references a missing node", e.ID)).
				WithCode(pkgerrors.CodeDanglingEdge).
				WithDetail("edgeId", e.ID).
				WithDetail("source", e.Source).
				WithDetail("target", e.Target)
		}
	}
	return nil
}

// DefaultSnapshot is the content of a freshly initialised board: one seed
// node at the origin.
func DefaultSnapshot(seedLabel string) Snapshot {
	return Snapshot{
		Nodes: []Node{NewTextNode("1", Position{}, seedLabel, "")},
		Edges: []Edge{},
	}
}
