package canvas

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"mindboard/domain/board"
	"mindboard/pkg/clock"
	pkgerrors "mindboard/pkg/errors"
	"mindboard/pkg/observability"
)

// NodeChangeType enumerates surface node changes.
type NodeChangeType string

const (
	NodeChangePosition   NodeChangeType = "position"
	NodeChangeDimensions NodeChangeType = "dimensions"
	NodeChangeSelect     NodeChangeType = "select"
	NodeChangeRemove     NodeChangeType = "remove"
	NodeChangeAdd        NodeChangeType = "add"
	NodeChangeReplace    NodeChangeType = "replace"
)

// NodeChange is one incremental edit coming from the canvas.
type NodeChange struct {
	Type     NodeChangeType  `json:"type"`
	ID       string          `json:"id"`
	Position *board.Position `json:"position,omitempty"`
	Dragging *bool           `json:"dragging,omitempty"`
	Selected *bool           `json:"selected,omitempty"`
	Width    float64         `json:"width,omitempty"`
	Height   float64         `json:"height,omitempty"`
	Item     *board.Node     `json:"item,omitempty"`
}

// EdgeChangeType enumerates surface edge changes.
type EdgeChangeType string

const (
	EdgeChangeAdd     EdgeChangeType = "add"
	EdgeChangeRemove  EdgeChangeType = "remove"
	EdgeChangeReplace EdgeChangeType = "replace"
	EdgeChangeSelect  EdgeChangeType = "select"
)

// EdgeChange is one incremental edge edit coming from the canvas.
type EdgeChange struct {
	Type EdgeChangeType `json:"type"`
	ID   string         `json:"id"`
	Item *board.Edge    `json:"item,omitempty"`
}

// Connection is a user-drawn link between two handles.
type Connection struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Options tunes the coordinator's timing.
type Options struct {
	Debounce time.Duration
	Cooldown time.Duration
}

// Coordinator owns the render surface of one document. Surface edits apply
// immediately; they reach the document through a debounced push, except a
// drag release which commits at once. Document changes flow back through
// Reconcile unless a drag, a post-drag cooldown or a pending push defers
// them.
//
// The coordinator never holds its own lock while calling into the document.
type Coordinator struct {
	doc     *board.Document
	ids     *board.IDGenerator
	clock   clock.Clock
	logger  *zap.Logger
	metrics *observability.Collector
	opts    Options

	mu            sync.Mutex
	surface       Surface
	base          board.Snapshot
	localMoves    map[string]time.Time
	dragging      map[string]bool
	cooldownUntil time.Time
	cooldownTimer clock.Timer
	pushTimer     clock.Timer
	listeners     []func(Surface)
	closed        bool
	pushes        int

	// pushMu orders pushes; inflight lets Flush wait for one started by
	// the debounce timer.
	pushMu   sync.Mutex
	inflight sync.WaitGroup

	// beforeCommit runs between reading the document and the conditional
	// write of a push. Tests use it to interleave document commits.
	beforeCommit func()

	unsubscribe func()
}

// maxPushAttempts bounds how often a push re-merges after losing the race
// against another document commit.
const maxPushAttempts = 3

// NewCoordinator attaches a coordinator to doc and seeds the surface from
// the current document.
func NewCoordinator(doc *board.Document, ids *board.IDGenerator, clk clock.Clock, opts Options, logger *zap.Logger, metrics *observability.Collector) *Coordinator {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ids == nil {
		ids = board.NewIDGenerator(clk)
	}
	snap := doc.Snapshot()
	c := &Coordinator{
		doc:        doc,
		ids:        ids,
		clock:      clk,
		logger:     logger,
		metrics:    metrics,
		opts:       opts,
		surface:    SurfaceFrom(snap),
		base:       snap,
		localMoves: make(map[string]time.Time),
		dragging:   make(map[string]bool),
	}
	c.unsubscribe = doc.Subscribe(func(board.Change) { c.onDocumentChange() })
	return c
}

// Close detaches from the document and stops pending timers. Pending
// surface edits that were not flushed are dropped.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	stop(c.pushTimer)
	stop(c.cooldownTimer)
	c.pushTimer, c.cooldownTimer = nil, nil
	c.mu.Unlock()
	c.unsubscribe()
}

// OnSurface registers a callback invoked after every surface update.
func (c *Coordinator) OnSurface(fn func(Surface)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Surface returns the current render surface.
func (c *Coordinator) Surface() Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface
}

// Dragging reports whether any node is being dragged.
func (c *Coordinator) Dragging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dragging) > 0
}

// ApplyNodeChanges applies canvas node edits to the surface.
func (c *Coordinator) ApplyNodeChanges(changes []NodeChange) Surface {
	c.mu.Lock()
	if c.closed {
		defer c.mu.Unlock()
		return c.surface
	}
	now := c.clock.Now()
	nodes := append([]SurfaceNode(nil), c.surface.Nodes...)
	edges := c.surface.Edges
	released := map[string]board.Position{}
	semantic := false

	for _, ch := range changes {
		idx := indexOf(nodes, ch.ID)
		switch ch.Type {
		case NodeChangePosition:
			if idx < 0 {
				continue
			}
			if ch.Position != nil && *ch.Position != nodes[idx].Position {
				nodes[idx].Position = *ch.Position
				c.localMoves[ch.ID] = now
			}
			if ch.Dragging != nil {
				nodes[idx].Dragging = *ch.Dragging
				if *ch.Dragging {
					c.dragging[ch.ID] = true
					continue
				}
				if c.dragging[ch.ID] {
					delete(c.dragging, ch.ID)
					released[ch.ID] = nodes[idx].Position
					continue
				}
			}
			if !c.dragging[ch.ID] && ch.Position != nil {
				semantic = true
			}
		case NodeChangeDimensions:
			if idx >= 0 {
				nodes[idx].Width, nodes[idx].Height = ch.Width, ch.Height
			}
		case NodeChangeSelect:
			if idx >= 0 && ch.Selected != nil {
				nodes[idx].Selected = *ch.Selected
			}
		case NodeChangeRemove:
			if idx < 0 {
				continue
			}
			nodes = append(nodes[:idx:idx], nodes[idx+1:]...)
			edges = withoutNode(edges, ch.ID)
			delete(c.dragging, ch.ID)
			delete(c.localMoves, ch.ID)
			semantic = true
		case NodeChangeAdd:
			if ch.Item == nil || idx >= 0 {
				continue
			}
			nodes = append(nodes, SurfaceNode{Node: *ch.Item})
			c.localMoves[ch.Item.ID] = now
			semantic = true
		case NodeChangeReplace:
			if ch.Item == nil || idx < 0 {
				continue
			}
			if nodes[idx].Position != ch.Item.Position {
				c.localMoves[ch.ID] = now
			}
			nodes[idx].Node = *ch.Item
			semantic = true
		}
	}

	c.surface = Surface{Nodes: nodes, Edges: edges}
	if semantic {
		c.schedulePushLocked()
	}
	if len(released) > 0 {
		c.startCooldownLocked(now)
	}
	surface, listeners := c.surface, c.listeners
	c.mu.Unlock()

	notifySurface(listeners, surface)

	if len(released) > 0 {
		if err := c.doc.MoveNodes(released); err != nil {
			c.logger.Warn("Drag commit rejected, restoring from document",
				zap.Error(err),
				zap.Int("nodes", len(released)),
			)
			c.forceReconcile()
		}
	}
	return c.Surface()
}

// ApplyEdgeChanges applies canvas edge edits to the surface.
func (c *Coordinator) ApplyEdgeChanges(changes []EdgeChange) Surface {
	c.mu.Lock()
	if c.closed {
		defer c.mu.Unlock()
		return c.surface
	}
	edges := append([]board.Edge(nil), c.surface.Edges...)
	semantic := false
	for _, ch := range changes {
		idx := edgeIndex(edges, ch.ID)
		switch ch.Type {
		case EdgeChangeAdd:
			if ch.Item != nil && edgeIndex(edges, ch.Item.ID) < 0 {
				edges = append(edges, *ch.Item)
				semantic = true
			}
		case EdgeChangeRemove:
			if idx >= 0 {
				edges = append(edges[:idx:idx], edges[idx+1:]...)
				semantic = true
			}
		case EdgeChangeReplace:
			if ch.Item != nil && idx >= 0 {
				edges[idx] = *ch.Item
				semantic = true
			}
		case EdgeChangeSelect:
			// selection is render-only state
		}
	}
	c.surface = Surface{Nodes: c.surface.Nodes, Edges: edges}
	if semantic {
		c.schedulePushLocked()
	}
	surface, listeners := c.surface, c.listeners
	c.mu.Unlock()

	notifySurface(listeners, surface)
	return surface
}

// Connect adds a user-drawn edge to the surface.
func (c *Coordinator) Connect(conn Connection) (board.Edge, Surface) {
	surface := c.Surface()
	e := board.Edge{
		ID: c.ids.Next("edge", func(id string) bool {
			return edgeIndex(surface.Edges, id) >= 0
		}),
		Source:       conn.Source,
		Target:       conn.Target,
		SourceHandle: conn.SourceHandle,
		TargetHandle: conn.TargetHandle,
	}
	return e, c.ApplyEdgeChanges([]EdgeChange{{Type: EdgeChangeAdd, ID: e.ID, Item: &e}})
}

// Flush pushes pending surface edits to the document immediately and waits
// for any push already in progress.
func (c *Coordinator) Flush() {
	c.mu.Lock()
	pending := c.pushTimer != nil
	stop(c.pushTimer)
	c.pushTimer = nil
	if pending {
		c.beginPushLocked()
	}
	c.mu.Unlock()

	if pending {
		c.push()
	}
	c.inflight.Wait()
}

func (c *Coordinator) schedulePushLocked() {
	stop(c.pushTimer)
	c.pushTimer = c.clock.AfterFunc(c.opts.Debounce, c.onPushTimer)
}

func (c *Coordinator) onPushTimer() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if len(c.dragging) > 0 {
		// Re-armed until the gesture ends.
		c.pushTimer = c.clock.AfterFunc(c.opts.Debounce, c.onPushTimer)
		c.mu.Unlock()
		return
	}
	c.pushTimer = nil
	c.beginPushLocked()
	c.mu.Unlock()

	c.push()
}

func (c *Coordinator) beginPushLocked() {
	c.pushes++
	c.inflight.Add(1)
}

// push merges local edits made since the last synchronised base into the
// current document and commits them. A commit that lost against a
// concurrent document change is re-merged and retried.
func (c *Coordinator) push() {
	defer c.inflight.Done()
	c.pushMu.Lock()
	err := c.commitLocal()
	c.mu.Lock()
	c.pushes--
	c.mu.Unlock()
	c.pushMu.Unlock()

	if err != nil {
		c.logger.Warn("Sync conflict, restoring surface from document", zap.Error(err))
		c.metrics.RecordReconciliation("conflict")
	}
	// SetBoardIf is a no-op when nothing changed, so no notification arrives.
	c.forceReconcile()
}

func (c *Coordinator) commitLocal() error {
	var err error
	for attempt := 0; attempt < maxPushAttempts; attempt++ {
		rev := c.doc.Revision()

		c.mu.Lock()
		merged := mergeLocal(c.base, c.surface.Snapshot(), rev.Snapshot, c.localMoves, rev.Moves)
		hook := c.beforeCommit
		c.mu.Unlock()

		if hook != nil {
			hook()
		}
		err = c.doc.SetBoardIf(rev.Version, merged.Nodes, merged.Edges)
		if !pkgerrors.HasCode(err, pkgerrors.CodeStaleVersion) {
			return err
		}
		c.metrics.RecordReconciliation("retry")
		c.logger.Debug("Document changed during push, merging again",
			zap.Int("attempt", attempt+1),
			zap.Uint64("version", rev.Version),
		)
	}
	return err
}

func (c *Coordinator) startCooldownLocked(now time.Time) {
	c.cooldownUntil = now.Add(c.opts.Cooldown)
	stop(c.cooldownTimer)
	c.cooldownTimer = c.clock.AfterFunc(c.opts.Cooldown, func() {
		c.mu.Lock()
		c.cooldownTimer = nil
		c.mu.Unlock()
		c.onDocumentChange()
	})
}

func (c *Coordinator) onDocumentChange() {
	c.reconcile(false)
}

func (c *Coordinator) forceReconcile() {
	c.reconcile(true)
}

func (c *Coordinator) reconcile(force bool) {
	rev := c.doc.Revision()
	snap := rev.Snapshot

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if !force && c.deferredLocked() {
		c.mu.Unlock()
		c.metrics.RecordReconciliation("deferred")
		return
	}
	next, changed := Reconcile(Input{
		Document:      snap,
		Surface:       c.surface,
		LocalMoves:    c.localMoves,
		DocumentMoves: rev.Moves,
	})
	c.base = snap
	if changed {
		c.surface = next
	}
	pruneMoves(c.localMoves, c.surface)
	if !changed {
		c.mu.Unlock()
		c.metrics.RecordReconciliation("unchanged")
		return
	}
	surface, listeners := c.surface, c.listeners
	c.mu.Unlock()

	c.metrics.RecordReconciliation("applied")
	notifySurface(listeners, surface)
}

func (c *Coordinator) deferredLocked() bool {
	return len(c.dragging) > 0 ||
		c.clock.Now().Before(c.cooldownUntil) ||
		c.pushTimer != nil ||
		c.pushes > 0
}

// pruneMoves forgets local move stamps of nodes no longer on the surface.
func pruneMoves(moves map[string]time.Time, s Surface) {
	for id := range moves {
		if indexOf(s.Nodes, id) < 0 {
			delete(moves, id)
		}
	}
}

func notifySurface(listeners []func(Surface), s Surface) {
	for _, fn := range listeners {
		fn(s)
	}
}

func stop(t clock.Timer) {
	if t != nil {
		t.Stop()
	}
}

func indexOf(nodes []SurfaceNode, id string) int {
	for i, n := range nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func edgeIndex(edges []board.Edge, id string) int {
	for i, e := range edges {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func withoutNode(edges []board.Edge, id string) []board.Edge {
	out := make([]board.Edge, 0, len(edges))
	for _, e := range edges {
		if e.Source != id && e.Target != id {
			out = append(out, e)
		}
	}
	return out
}
