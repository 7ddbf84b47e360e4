package board

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"mindboard/domain/history"
	"mindboard/pkg/clock"
	pkgerrors "mindboard/pkg/errors"
)

// Operation names a document mutation.
type Operation string

const (
	OpLoad              Operation = "load"
	OpSetBoard          Operation = "set_board"
	OpUpdateNodes       Operation = "update_nodes"
	OpUpdateEdges       Operation = "update_edges"
	OpAddNode           Operation = "add_node"
	OpUpdateNodeContent Operation = "update_node_content"
	OpRemoveNode        Operation = "remove_node"
	OpUpdateBoardName   Operation = "update_board_name"
	OpMoveNodes         Operation = "move_nodes"
	OpInsert            Operation = "insert"
	OpUndo              Operation = "undo"
	OpRedo              Operation = "redo"
	OpMarkSaved         Operation = "mark_saved"
)

// Change describes a committed mutation. Observers receive it after the
// document lock has been released.
type Change struct {
	Op       Operation
	Version  uint64
	Snapshot Snapshot
	Name     string
	Dirty    bool
	// Moved lists nodes whose position changed in this commit.
	Moved []string
}

// State is a consistent read of the whole document.
type State struct {
	ID          string
	Name        string
	Snapshot    Snapshot
	Version     uint64
	Dirty       bool
	LastSavedAt time.Time
	CanUndo     bool
	CanRedo     bool
}

// Revision is a consistent read of the graph, its version and the
// position stamps.
type Revision struct {
	Snapshot Snapshot
	Version  uint64
	Moves    map[string]time.Time
}

// entry is what history stores: the graph plus the board name.
type entry struct {
	snap Snapshot
	name string
}

// Document is the authoritative board graph. Every mutation goes through a
// named operation that validates the result, records the previous state in
// history and notifies observers.
type Document struct {
	mu sync.RWMutex

	id          string
	name        string
	current     Snapshot
	saved       Snapshot
	savedName   string
	everSaved   bool
	lastSavedAt time.Time
	dirty       bool
	version     uint64
	movedAt     map[string]time.Time

	history   *history.Manager[entry]
	clock     clock.Clock
	observers map[int]func(Change)
	nextObs   int
}

// NewDocument creates an empty, unsaved document.
func NewDocument(id, name string, historyLimit int, clk clock.Clock) *Document {
	if clk == nil {
		clk = clock.Real()
	}
	return &Document{
		id:        id,
		name:      name,
		current:   Snapshot{Nodes: []Node{}, Edges: []Edge{}},
		movedAt:   make(map[string]time.Time),
		history:   history.New[entry](historyLimit),
		clock:     clk,
		observers: make(map[int]func(Change)),
	}
}

// Subscribe registers an observer and returns a function that removes it.
func (d *Document) Subscribe(fn func(Change)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.observers, id)
	}
}

// ID returns the board id.
func (d *Document) ID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.id
}

// Name returns the board name.
func (d *Document) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// Snapshot returns the current graph.
func (d *Document) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// Version increases with every committed change.
func (d *Document) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// IsDirty reports whether the graph or name differ from the last
// successfully persisted state.
func (d *Document) IsDirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dirty
}

// State returns a consistent view of all document fields.
func (d *Document) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return State{
		ID:          d.id,
		Name:        d.name,
		Snapshot:    d.current,
		Version:     d.version,
		Dirty:       d.dirty,
		LastSavedAt: d.lastSavedAt,
		CanUndo:     d.history.CanUndo(),
		CanRedo:     d.history.CanRedo(),
	}
}

// PositionStamps returns when each node was last moved by a document
// commit.
func (d *Document) PositionStamps() map[string]time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]time.Time, len(d.movedAt))
	for k, v := range d.movedAt {
		out[k] = v
	}
	return out
}

// Revision returns the graph, version and position stamps read together.
func (d *Document) Revision() Revision {
	d.mu.RLock()
	defer d.mu.RUnlock()
	moves := make(map[string]time.Time, len(d.movedAt))
	for k, v := range d.movedAt {
		moves[k] = v
	}
	return Revision{Snapshot: d.current, Version: d.version, Moves: moves}
}

// Load replaces the whole document and resets history. When persisted is
// true the loaded content becomes the saved baseline.
func (d *Document) Load(rec Record, persisted bool) error {
	snap := Snapshot{Nodes: nonNilNodes(rec.Nodes), Edges: nonNilEdges(rec.Edges)}
	if err := snap.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	d.id = rec.ID
	d.name = rec.Name
	d.current = snap
	d.history.Reset()
	d.movedAt = make(map[string]time.Time)
	if persisted {
		d.saved = snap
		d.savedName = rec.Name
		d.everSaved = true
		d.lastSavedAt = rec.UpdatedAt
	} else {
		d.saved = Snapshot{}
		d.savedName = ""
		d.everSaved = false
		d.lastSavedAt = time.Time{}
	}
	d.recomputeDirty()
	d.version++
	change, observers := d.changeLocked(OpLoad, nil)
	d.mu.Unlock()

	notify(observers, change)
	return nil
}

// SetBoard replaces nodes and edges in one step.
func (d *Document) SetBoard(nodes []Node, edges []Edge) error {
	return d.mutate(OpSetBoard, func(cur Snapshot, _ string) (Snapshot, string, error) {
		return Snapshot{Nodes: nonNilNodes(nodes), Edges: nonNilEdges(edges)}, "", nil
	})
}

// SetBoardIf replaces nodes and edges only if the document is still at
// version. Otherwise it returns a STALE_VERSION conflict and changes nothing.
func (d *Document) SetBoardIf(version uint64, nodes []Node, edges []Edge) error {
	return d.commit(OpSetBoard, &version, func(cur Snapshot, _ string) (Snapshot, string, error) {
		return Snapshot{Nodes: nonNilNodes(nodes), Edges: nonNilEdges(edges)}, "", nil
	})
}

// UpdateNodes replaces the node list. Edges that would dangle reject the
// whole update.
func (d *Document) UpdateNodes(nodes []Node) error {
	return d.mutate(OpUpdateNodes, func(cur Snapshot, _ string) (Snapshot, string, error) {
		return Snapshot{Nodes: nonNilNodes(nodes), Edges: cur.Edges}, "", nil
	})
}

// UpdateEdges replaces the edge list.
func (d *Document) UpdateEdges(edges []Edge) error {
	return d.mutate(OpUpdateEdges, func(cur Snapshot, _ string) (Snapshot, string, error) {
		return Snapshot{Nodes: cur.Nodes, Edges: nonNilEdges(edges)}, "", nil
	})
}

// AddNode appends a node.
func (d *Document) AddNode(n Node) error {
	return d.mutate(OpAddNode, func(cur Snapshot, _ string) (Snapshot, string, error) {
		if n.Type == "" {
			n.Type = NodeTypeText
		}
		return Snapshot{Nodes: appendNodes(cur.Nodes, n), Edges: cur.Edges}, "", nil
	})
}

// UpdateNodeContent replaces the payload of one node.
func (d *Document) UpdateNodeContent(id string, data NodeData) error {
	return d.mutate(OpUpdateNodeContent, func(cur Snapshot, _ string) (Snapshot, string, error) {
		idx, ok := cur.NodeIndex()[id]
		if !ok {
			return Snapshot{}, "", pkgerrors.NewNotFoundError(fmt.Sprintf("node %q", id))
		}
		nodes := append([]Node(nil), cur.Nodes...)
		nodes[idx].Data = data
		return Snapshot{Nodes: nodes, Edges: cur.Edges}, "", nil
	})
}

// RemoveNode deletes a node and every edge touching it.
func (d *Document) RemoveNode(id string) error {
	return d.mutate(OpRemoveNode, func(cur Snapshot, _ string) (Snapshot, string, error) {
		if !cur.HasNode(id) {
			return Snapshot{}, "", pkgerrors.NewNotFoundError(fmt.Sprintf("node %q", id))
		}
		nodes := make([]Node, 0, len(cur.Nodes)-1)
		for _, n := range cur.Nodes {
			if n.ID != id {
				nodes = append(nodes, n)
			}
		}
		edges := make([]Edge, 0, len(cur.Edges))
		for _, e := range cur.Edges {
			if e.Source != id && e.Target != id {
				edges = append(edges, e)
			}
		}
		return Snapshot{Nodes: nodes, Edges: edges}, "", nil
	})
}

// UpdateBoardName renames the board.
func (d *Document) UpdateBoardName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return pkgerrors.NewValidationError("board name must not be empty")
	}
	return d.mutate(OpUpdateBoardName, func(cur Snapshot, _ string) (Snapshot, string, error) {
		return cur, name, nil
	})
}

// MoveNodes commits new positions. Unknown ids are ignored since the node
// may have been removed while a gesture was in flight.
func (d *Document) MoveNodes(positions map[string]Position) error {
	return d.mutate(OpMoveNodes, func(cur Snapshot, _ string) (Snapshot, string, error) {
		var nodes []Node
		for i, n := range cur.Nodes {
			p, ok := positions[n.ID]
			if !ok || p == n.Position {
				continue
			}
			if nodes == nil {
				nodes = append([]Node(nil), cur.Nodes...)
			}
			nodes[i].Position = p
		}
		if nodes == nil {
			return cur, "", nil
		}
		return Snapshot{Nodes: nodes, Edges: cur.Edges}, "", nil
	})
}

// Insert appends nodes and edges as a single history step.
func (d *Document) Insert(nodes []Node, edges []Edge) error {
	return d.mutate(OpInsert, func(cur Snapshot, _ string) (Snapshot, string, error) {
		return Snapshot{
			Nodes: appendNodes(cur.Nodes, nodes...),
			Edges: appendEdges(cur.Edges, edges...),
		}, "", nil
	})
}

// Undo restores the state before the last mutation. It reports false when
// there is nothing to undo.
func (d *Document) Undo() bool {
	return d.travel(OpUndo, d.history.Undo)
}

// Redo re-applies the last undone mutation.
func (d *Document) Redo() bool {
	return d.travel(OpRedo, d.history.Redo)
}

// MarkSaved records snap and name as the persisted baseline. The snapshot
// passed is the one that was written, which may be older than the current
// graph if edits happened during the save.
func (d *Document) MarkSaved(snap Snapshot, name string, at time.Time) {
	d.mu.Lock()
	d.saved = snap
	d.savedName = name
	d.everSaved = true
	d.lastSavedAt = at
	wasDirty := d.dirty
	d.recomputeDirty()
	if wasDirty == d.dirty {
		d.mu.Unlock()
		return
	}
	change, observers := d.changeLocked(OpMarkSaved, nil)
	d.mu.Unlock()

	notify(observers, change)
}

func (d *Document) travel(op Operation, step func(entry) (entry, bool)) bool {
	d.mu.Lock()
	target, ok := step(entry{snap: d.current, name: d.name})
	if !ok {
		d.mu.Unlock()
		return false
	}
	moved := movedNodes(d.current, target.snap)
	d.current = target.snap
	d.name = target.name
	d.stampMoves(moved)
	d.recomputeDirty()
	d.version++
	change, observers := d.changeLocked(op, moved)
	d.mu.Unlock()

	notify(observers, change)
	return true
}

// mutate runs fn against the current state. A result identical to the
// current state is not recorded.
func (d *Document) mutate(op Operation, fn func(cur Snapshot, name string) (Snapshot, string, error)) error {
	return d.commit(op, nil, fn)
}

// commit is mutate with an optional expected version checked under the
// write lock.
func (d *Document) commit(op Operation, expect *uint64, fn func(cur Snapshot, name string) (Snapshot, string, error)) error {
	d.mu.Lock()
	if expect != nil && *expect != d.version {
		actual := d.version
		d.mu.Unlock()
		return pkgerrors.ErrStaleVersion(*expect, actual)
	}
	next, name, err := fn(d.current, d.name)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if name == "" {
		name = d.name
	}
	if err := next.Validate(); err != nil {
		d.mu.Unlock()
		return err
	}
	if next.Equal(d.current) && name == d.name {
		d.mu.Unlock()
		return nil
	}

	d.history.Record(entry{snap: d.current, name: d.name})
	moved := movedNodes(d.current, next)
	d.current = next
	d.name = name
	d.stampMoves(moved)
	d.recomputeDirty()
	d.version++
	change, observers := d.changeLocked(op, moved)
	d.mu.Unlock()

	notify(observers, change)
	return nil
}

func (d *Document) stampMoves(moved []string) {
	if len(moved) == 0 {
		return
	}
	now := d.clock.Now()
	for _, id := range moved {
		d.movedAt[id] = now
	}
}

func (d *Document) recomputeDirty() {
	if !d.everSaved {
		d.dirty = true
		return
	}
	d.dirty = d.name != d.savedName || !d.current.Equal(d.saved)
}

func (d *Document) changeLocked(op Operation, moved []string) (Change, []func(Change)) {
	observers := make([]func(Change), 0, len(d.observers))
	for i := 0; i < d.nextObs; i++ {
		if fn, ok := d.observers[i]; ok {
			observers = append(observers, fn)
		}
	}
	return Change{
		Op:       op,
		Version:  d.version,
		Snapshot: d.current,
		Name:     d.name,
		Dirty:    d.dirty,
		Moved:    moved,
	}, observers
}

func notify(observers []func(Change), c Change) {
	for _, fn := range observers {
		fn(c)
	}
}

// movedNodes lists nodes present in both snapshots whose position differs,
// plus nodes that are new in next.
func movedNodes(prev, next Snapshot) []string {
	idx := prev.NodeIndex()
	var out []string
	for _, n := range next.Nodes {
		i, ok := idx[n.ID]
		if !ok || prev.Nodes[i].Position != n.Position {
			out = append(out, n.ID)
		}
	}
	return out
}

func appendNodes(base []Node, add ...Node) []Node {
	out := make([]Node, 0, len(base)+len(add))
	out = append(out, base...)
	return append(out, add...)
}

func appendEdges(base []Edge, add ...Edge) []Edge {
	out := make([]Edge, 0, len(base)+len(add))
	out = append(out, base...)
	return append(out, add...)
}

func nonNilNodes(n []Node) []Node {
	out := make([]Node, len(n))
	copy(out, n)
	return out
}

func nonNilEdges(e []Edge) []Edge {
	out := make([]Edge, len(e))
	copy(out, e)
	return out
}
