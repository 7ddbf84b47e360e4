// Package canvas keeps the directly manipulated render surface consistent
// with the authoritative board document.
package canvas

import (
	"time"

	"mindboard/domain/board"
)

// SurfaceNode is a node as the canvas renders it. Dragging, Selected and
// the measured size are render state and never reach the document.
type SurfaceNode struct {
	board.Node
	Dragging bool    `json:"dragging,omitempty"`
	Selected bool    `json:"selected,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
}

// Surface is the render-side copy of the board.
type Surface struct {
	Nodes []SurfaceNode `json:"nodes"`
	Edges []board.Edge  `json:"edges"`
}

// Snapshot strips render state.
func (s Surface) Snapshot() board.Snapshot {
	nodes := make([]board.Node, len(s.Nodes))
	for i, n := range s.Nodes {
		nodes[i] = n.Node
	}
	edges := make([]board.Edge, len(s.Edges))
	copy(edges, s.Edges)
	return board.Snapshot{Nodes: nodes, Edges: edges}
}

// SurfaceFrom builds a surface with no render state.
func SurfaceFrom(snap board.Snapshot) Surface {
	nodes := make([]SurfaceNode, len(snap.Nodes))
	for i, n := range snap.Nodes {
		nodes[i] = SurfaceNode{Node: n}
	}
	edges := make([]board.Edge, len(snap.Edges))
	copy(edges, snap.Edges)
	return Surface{Nodes: nodes, Edges: edges}
}

// Input is everything Reconcile needs.
type Input struct {
	Document board.Snapshot
	Surface  Surface
	// LocalMoves and DocumentMoves stamp the last position change of each
	// node on either side.
	LocalMoves    map[string]time.Time
	DocumentMoves map[string]time.Time
}

// Reconcile computes the surface that reflects the document. The document
// wins on every semantic field except position, which comes from whichever
// side moved the node most recently. Render state is carried over by id.
// It returns false when the surface already matches.
func Reconcile(in Input) (Surface, bool) {
	current := make(map[string]SurfaceNode, len(in.Surface.Nodes))
	for _, n := range in.Surface.Nodes {
		current[n.ID] = n
	}

	next := Surface{
		Nodes: make([]SurfaceNode, len(in.Document.Nodes)),
		Edges: make([]board.Edge, len(in.Document.Edges)),
	}
	for i, dn := range in.Document.Nodes {
		sn, ok := current[dn.ID]
		if !ok {
			next.Nodes[i] = SurfaceNode{Node: dn}
			continue
		}
		merged := dn
		if localIsNewer(dn.ID, in.LocalMoves, in.DocumentMoves) {
			merged.Position = sn.Position
		}
		sn.Node = merged
		next.Nodes[i] = sn
	}
	copy(next.Edges, in.Document.Edges)

	if sameSemantics(in.Surface, next) {
		return in.Surface, false
	}
	return next, true
}

func localIsNewer(id string, local, doc map[string]time.Time) bool {
	l, ok := local[id]
	if !ok {
		return false
	}
	d, ok := doc[id]
	return !ok || l.After(d)
}

// sameSemantics compares two surfaces by id, ignoring render state and
// ordering.
func sameSemantics(a, b Surface) bool {
	if len(a.Nodes) != len(b.Nodes) || len(a.Edges) != len(b.Edges) {
		return false
	}
	nodes := make(map[string]board.Node, len(a.Nodes))
	for _, n := range a.Nodes {
		nodes[n.ID] = n.Node
	}
	for _, n := range b.Nodes {
		other, ok := nodes[n.ID]
		if !ok || !other.Equal(n.Node) {
			return false
		}
	}
	edges := make(map[string]board.Edge, len(a.Edges))
	for _, e := range a.Edges {
		edges[e.ID] = e
	}
	for _, e := range b.Edges {
		other, ok := edges[e.ID]
		if !ok || !other.Equal(e) {
			return false
		}
	}
	return true
}

// mergeLocal applies the edits the surface made since base onto current.
// Edits to elements the document also changed since base lose, except for
// positions, which follow the move stamps.
func mergeLocal(base, local, current board.Snapshot, localMoves, docMoves map[string]time.Time) board.Snapshot {
	baseNodes := nodeMap(base.Nodes)
	localNodes := nodeMap(local.Nodes)
	curNodes := nodeMap(current.Nodes)

	removed := map[string]bool{}
	for id, bn := range baseNodes {
		if _, ok := localNodes[id]; !ok {
			if cn, ok := curNodes[id]; !ok || cn.Equal(bn) {
				removed[id] = true
			}
		}
	}

	nodes := make([]board.Node, 0, len(current.Nodes)+len(local.Nodes))
	for _, cn := range current.Nodes {
		if removed[cn.ID] {
			continue
		}
		ln, inLocal := localNodes[cn.ID]
		bn, inBase := baseNodes[cn.ID]
		switch {
		case !inLocal || !inBase || ln.Equal(bn):
			nodes = append(nodes, cn)
		case cn.Equal(bn):
			nodes = append(nodes, ln)
		default:
			if localIsNewer(cn.ID, localMoves, docMoves) {
				cn.Position = ln.Position
			}
			nodes = append(nodes, cn)
		}
	}
	for _, ln := range local.Nodes {
		_, inBase := baseNodes[ln.ID]
		_, inCur := curNodes[ln.ID]
		if !inBase && !inCur {
			nodes = append(nodes, ln)
		}
	}

	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.ID] = true
	}

	baseEdges := edgeMap(base.Edges)
	localEdges := edgeMap(local.Edges)
	curEdges := edgeMap(current.Edges)

	edges := make([]board.Edge, 0, len(current.Edges)+len(local.Edges))
	keep := func(e board.Edge) {
		if present[e.Source] && present[e.Target] {
			edges = append(edges, e)
		}
	}
	for _, ce := range current.Edges {
		le, inLocal := localEdges[ce.ID]
		be, inBase := baseEdges[ce.ID]
		switch {
		case inBase && !inLocal && ce.Equal(be):
			// removed locally
		case inBase && inLocal && !le.Equal(be) && ce.Equal(be):
			keep(le)
		default:
			keep(ce)
		}
	}
	for _, le := range local.Edges {
		_, inBase := baseEdges[le.ID]
		_, inCur := curEdges[le.ID]
		if !inBase && !inCur {
			keep(le)
		}
	}

	return board.Snapshot{Nodes: nodes, Edges: edges}
}

func nodeMap(nodes []board.Node) map[string]board.Node {
	m := make(map[string]board.Node, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n
	}
	return m
}

func edgeMap(edges []board.Edge) map[string]board.Edge {
	m := make(map[string]board.Edge, len(edges))
	for _, e := range edges {
		m[e.ID] = e
	}
	return m
}
