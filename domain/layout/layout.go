// Package layout computes hierarchical auto-layout for board graphs.
package layout

import (
	"fmt"
	"sort"
	"strings"

	"mindboard/domain/board"
	pkgerrors "mindboard/pkg/errors"
)

// Direction is the flow of ranks.
type Direction string

const (
	TopBottom Direction = "TB"
	LeftRight Direction = "LR"
	Auto      Direction = "auto"
)

// ParseDirection accepts TB, LR or auto in any case. Empty means auto.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "AUTO":
		return Auto, nil
	case "TB":
		return TopBottom, nil
	case "LR":
		return LeftRight, nil
	default:
		return "", pkgerrors.NewValidationError(fmt.Sprintf("unknown layout direction %q", s))
	}
}

// Options controls a layout run.
type Options struct {
	Direction      Direction
	RankSeparation float64
	NodeSeparation float64
	Sizes          SizeModel
	// Iterations bounds the ordering sweeps.
	Iterations int
}

// DefaultOptions returns an auto-direction layout with default spacing.
func DefaultOptions() Options {
	return Options{
		Direction:      Auto,
		RankSeparation: 100,
		NodeSeparation: 50,
		Sizes:          DefaultSizeModel(),
		Iterations:     8,
	}
}

// Result is the outcome of a layout run.
type Result struct {
	Direction Direction
	Positions map[string]board.Position
}

// Apply returns nodes with the computed positions, in the original order.
func (r Result) Apply(nodes []board.Node) []board.Node {
	out := make([]board.Node, len(nodes))
	for i, n := range nodes {
		if p, ok := r.Positions[n.ID]; ok {
			n.Position = p
		}
		out[i] = n
	}
	return out
}

// ResolveDirection picks LR when edges mostly attach to left/right handles,
// otherwise TB.
func ResolveDirection(edges []board.Edge) Direction {
	horizontal, vertical := 0, 0
	for _, e := range edges {
		for _, h := range []string{e.SourceHandle, e.TargetHandle} {
			side := board.HandleSide(h)
			switch {
			case side.Horizontal():
				horizontal++
			case side.Vertical():
				vertical++
			}
		}
	}
	if horizontal > vertical {
		return LeftRight
	}
	return TopBottom
}

// Compute lays out snap. Only positions are produced; edges are untouched.
func Compute(snap board.Snapshot, opts Options) Result {
	dir := opts.Direction
	if dir == "" || dir == Auto {
		dir = ResolveDirection(snap.Edges)
	}
	if opts.Iterations <= 0 {
		opts.Iterations = 1
	}

	g := newGraph(snap)
	g.breakCycles()
	ranks := g.rank()
	layers := g.initialLayers(ranks)
	layers = g.order(layers, ranks, opts.Iterations)

	sizes := make([]Size, len(g.ids))
	for i, n := range snap.Nodes {
		sizes[i] = opts.Sizes.Estimate(n)
	}

	return Result{
		Direction: dir,
		Positions: g.place(layers, sizes, dir, opts.RankSeparation, opts.NodeSeparation),
	}
}

type graph struct {
	ids  []string
	succ [][]int
	pred [][]int
}

func newGraph(snap board.Snapshot) *graph {
	idx := snap.NodeIndex()
	g := &graph{
		ids:  make([]string, len(snap.Nodes)),
		succ: make([][]int, len(snap.Nodes)),
		pred: make([][]int, len(snap.Nodes)),
	}
	for i, n := range snap.Nodes {
		g.ids[i] = n.ID
	}
	seen := make(map[[2]int]bool)
	for _, e := range snap.Edges {
		u, okU := idx[e.Source]
		v, okV := idx[e.Target]
		if !okU || !okV || u == v || seen[[2]int{u, v}] {
			continue
		}
		seen[[2]int{u, v}] = true
		g.succ[u] = append(g.succ[u], v)
		g.pred[v] = append(g.pred[v], u)
	}
	return g
}

// breakCycles reverses DFS back edges so the graph becomes acyclic.
func (g *graph) breakCycles() {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make([]int, len(g.ids))
	var reversed [][2]int

	var visit func(u int)
	visit = func(u int) {
		state[u] = onStack
		for _, v := range g.succ[u] {
			switch state[v] {
			case onStack:
				reversed = append(reversed, [2]int{u, v})
			case unvisited:
				visit(v)
			}
		}
		state[u] = done
	}

	// Start from roots first so the natural hierarchy is kept.
	for u := range g.ids {
		if len(g.pred[u]) == 0 && state[u] == unvisited {
			visit(u)
		}
	}
	for u := range g.ids {
		if state[u] == unvisited {
			visit(u)
		}
	}

	for _, e := range reversed {
		g.succ[e[0]] = remove(g.succ[e[0]], e[1])
		g.pred[e[1]] = remove(g.pred[e[1]], e[0])
		if !contains(g.succ[e[1]], e[0]) {
			g.succ[e[1]] = append(g.succ[e[1]], e[0])
			g.pred[e[0]] = append(g.pred[e[0]], e[1])
		}
	}
}

// rank assigns longest-path ranks from the roots.
func (g *graph) rank() []int {
	n := len(g.ids)
	ranks := make([]int, n)
	indeg := make([]int, n)
	for u := range g.ids {
		indeg[u] = len(g.pred[u])
	}
	queue := make([]int, 0, n)
	for u := range g.ids {
		if indeg[u] == 0 {
			queue = append(queue, u)
		}
	}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range g.succ[u] {
			if ranks[u]+1 > ranks[v] {
				ranks[v] = ranks[u] + 1
			}
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	return ranks
}

// initialLayers groups nodes by rank in depth-first discovery order so
// siblings start out adjacent.
func (g *graph) initialLayers(ranks []int) [][]int {
	maxRank := 0
	for _, r := range ranks {
		if r > maxRank {
			maxRank = r
		}
	}
	if len(g.ids) == 0 {
		return nil
	}
	layers := make([][]int, maxRank+1)

	seen := make([]bool, len(g.ids))
	var visit func(u int)
	visit = func(u int) {
		if seen[u] {
			return
		}
		seen[u] = true
		layers[ranks[u]] = append(layers[ranks[u]], u)
		for _, v := range g.succ[u] {
			visit(v)
		}
	}
	for u := range g.ids {
		if len(g.pred[u]) == 0 {
			visit(u)
		}
	}
	for u := range g.ids {
		visit(u)
	}
	return layers
}

// order runs barycenter sweeps and keeps the ordering with the fewest
// crossings.
func (g *graph) order(layers [][]int, ranks []int, iterations int) [][]int {
	best := cloneLayers(layers)
	bestCrossings := g.crossings(layers, ranks)
	if bestCrossings == 0 {
		return best
	}

	for i := 0; i < iterations; i++ {
		for r := 1; r < len(layers); r++ {
			g.sortByBarycenter(layers, r, r-1, g.pred, ranks)
		}
		for r := len(layers) - 2; r >= 0; r-- {
			g.sortByBarycenter(layers, r, r+1, g.succ, ranks)
		}
		if c := g.crossings(layers, ranks); c < bestCrossings {
			bestCrossings = c
			best = cloneLayers(layers)
			if c == 0 {
				break
			}
		}
	}
	return best
}

func (g *graph) sortByBarycenter(layers [][]int, r, ref int, adj [][]int, ranks []int) {
	pos := make(map[int]int, len(layers[ref]))
	for i, u := range layers[ref] {
		pos[u] = i
	}
	type keyed struct {
		node int
		key  float64
	}
	items := make([]keyed, len(layers[r]))
	for i, u := range layers[r] {
		sum, count := 0.0, 0
		for _, v := range adj[u] {
			if ranks[v] == ref {
				sum += float64(pos[v])
				count++
			}
		}
		key := float64(i)
		if count > 0 {
			key = sum / float64(count)
		}
		items[i] = keyed{node: u, key: key}
	}
	sort.SliceStable(items, func(a, b int) bool { return items[a].key < items[b].key })
	for i, it := range items {
		layers[r][i] = it.node
	}
}

func (g *graph) crossings(layers [][]int, ranks []int) int {
	pos := make([]int, len(g.ids))
	for _, layer := range layers {
		for i, u := range layer {
			pos[u] = i
		}
	}
	total := 0
	for r := 0; r+1 < len(layers); r++ {
		var segs [][2]int
		for _, u := range layers[r] {
			for _, v := range g.succ[u] {
				if ranks[v] == r+1 {
					segs = append(segs, [2]int{pos[u], pos[v]})
				}
			}
		}
		for i := 0; i < len(segs); i++ {
			for j := i + 1; j < len(segs); j++ {
				if (segs[i][0]-segs[j][0])*(segs[i][1]-segs[j][1]) < 0 {
					total++
				}
			}
		}
	}
	return total
}

// place assigns top-left positions. Ranks advance along the main axis by
// the largest node extent in the rank plus RankSeparation; each rank is
// centred on the cross axis.
func (g *graph) place(layers [][]int, sizes []Size, dir Direction, rankSep, nodeSep float64) map[string]board.Position {
	out := make(map[string]board.Position, len(g.ids))
	main := func(s Size) float64 {
		if dir == LeftRight {
			return s.Width
		}
		return s.Height
	}
	cross := func(s Size) float64 {
		if dir == LeftRight {
			return s.Height
		}
		return s.Width
	}

	offset := 0.0
	for _, layer := range layers {
		if len(layer) == 0 {
			continue
		}
		depth, span := 0.0, 0.0
		for i, u := range layer {
			depth = maxf(depth, main(sizes[u]))
			span += cross(sizes[u])
			if i > 0 {
				span += nodeSep
			}
		}

		c := -span / 2
		for _, u := range layer {
			m := offset + (depth-main(sizes[u]))/2
			if dir == LeftRight {
				out[g.ids[u]] = board.Position{X: m, Y: c}
			} else {
				out[g.ids[u]] = board.Position{X: c, Y: m}
			}
			c += cross(sizes[u]) + nodeSep
		}
		offset += depth + rankSep
	}
	return out
}

func cloneLayers(layers [][]int) [][]int {
	out := make([][]int, len(layers))
	for i, l := range layers {
		out[i] = append([]int(nil), l...)
	}
	return out
}

func remove(s []int, v int) []int {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
