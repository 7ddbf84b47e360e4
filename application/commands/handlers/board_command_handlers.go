package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mindboard/application/canvas"
	"mindboard/application/commands"
	"mindboard/application/commands/bus"
	"mindboard/application/queries"
	"mindboard/application/session"
	"mindboard/domain/board"
	"mindboard/domain/config"
	"mindboard/domain/layout"
	"mindboard/domain/placement"
	pkgerrors "mindboard/pkg/errors"
	"mindboard/pkg/observability"
)

// Options tunes the layout and placement performed by board commands.
type Options struct {
	Layout    layout.Options
	Placement placement.Options
}

// DefaultOptions returns the standard layout and placement settings.
func DefaultOptions() Options {
	return Options{
		Layout:    layout.DefaultOptions(),
		Placement: placement.DefaultOptions(),
	}
}

// OptionsFromConfig maps engine tunables onto handler options.
func OptionsFromConfig(cfg *config.DomainConfig) Options {
	opts := DefaultOptions()
	opts.Layout.RankSeparation = cfg.RankSeparation
	opts.Layout.NodeSeparation = cfg.NodeSeparation
	opts.Placement.MarginX = cfg.PlacementMarginX
	opts.Placement.MarginY = cfg.PlacementMarginY
	opts.Placement.Step = cfg.PlacementStep
	opts.Placement.MaxStep = cfg.PlacementMaxStep
	return opts
}

// NodeResult is returned by AddNode.
type NodeResult struct {
	Node     board.Node         `json:"node"`
	Strategy placement.Strategy `json:"strategy,omitempty"`
	Board    queries.BoardView  `json:"board"`
}

// EdgeResult is returned by ConnectNodes.
type EdgeResult struct {
	Edge  board.Edge        `json:"edge"`
	Board queries.BoardView `json:"board"`
}

// HistoryResult is returned by Undo and Redo.
type HistoryResult struct {
	Applied bool              `json:"applied"`
	Board   queries.BoardView `json:"board"`
}

// LayoutResult is returned by ApplyLayout.
type LayoutResult struct {
	Direction layout.Direction  `json:"direction"`
	Board     queries.BoardView `json:"board"`
}

// BoardCommandHandlers applies board commands to the session's document.
type BoardCommandHandlers struct {
	registry *session.Registry
	ids      *board.IDGenerator
	solver   *placement.Solver
	opts     Options
	logger   *zap.Logger
	metrics  *observability.Collector
}

// NewBoardCommandHandlers creates the board command handlers
func NewBoardCommandHandlers(
	registry *session.Registry,
	ids *board.IDGenerator,
	opts Options,
	logger *zap.Logger,
	metrics *observability.Collector,
) *BoardCommandHandlers {
	if ids == nil {
		ids = board.NewIDGenerator(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Layout.Sizes == (layout.SizeModel{}) {
		opts.Layout.Sizes = layout.DefaultSizeModel()
	}
	if opts.Placement == (placement.Options{}) {
		opts.Placement = placement.DefaultOptions()
	}
	return &BoardCommandHandlers{
		registry: registry,
		ids:      ids,
		solver:   placement.NewSolver(opts.Placement),
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// Register binds every board command to the bus
func (h *BoardCommandHandlers) Register(b *bus.CommandBus) error {
	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.OpenBoardCommand{}, bus.Typed(h.OpenBoard)},
		{commands.SaveBoardCommand{}, bus.Typed(h.SaveBoard)},
		{commands.CloseBoardCommand{}, bus.Typed(h.CloseBoard)},
		{commands.RenameBoardCommand{}, bus.Typed(h.RenameBoard)},
		{commands.AddNodeCommand{}, bus.Typed(h.AddNode)},
		{commands.UpdateNodeContentCommand{}, bus.Typed(h.UpdateNodeContent)},
		{commands.RemoveNodeCommand{}, bus.Typed(h.RemoveNode)},
		{commands.ConnectNodesCommand{}, bus.Typed(h.ConnectNodes)},
		{commands.ApplyCanvasChangesCommand{}, bus.Typed(h.ApplyCanvasChanges)},
		{commands.UndoCommand{}, bus.Typed(h.Undo)},
		{commands.RedoCommand{}, bus.Typed(h.Redo)},
		{commands.ApplyLayoutCommand{}, bus.Typed(h.ApplyLayout)},
		{commands.ImportBoardCommand{}, bus.Typed(h.ImportBoard)},
	}
	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}

// OpenBoard activates a board, creating the session on first use
func (h *BoardCommandHandlers) OpenBoard(ctx context.Context, cmd commands.OpenBoardCommand) (interface{}, error) {
	doc, err := h.registry.Get(cmd.SessionID).Switch(ctx, cmd.BoardID, cmd.Force)
	if err != nil {
		return nil, err
	}
	return queries.ViewOf(doc), nil
}

// SaveBoard persists the active board
func (h *BoardCommandHandlers) SaveBoard(ctx context.Context, cmd commands.SaveBoardCommand) (interface{}, error) {
	s, doc, err := h.active(cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx); err != nil {
		return nil, err
	}
	return queries.ViewOf(doc), nil
}

// CloseBoard ends the session and forgets it
func (h *BoardCommandHandlers) CloseBoard(ctx context.Context, cmd commands.CloseBoardCommand) (interface{}, error) {
	if _, ok := h.registry.Lookup(cmd.SessionID); !ok {
		return nil, pkgerrors.NewNotFoundError("session").WithDetail("sessionId", cmd.SessionID)
	}
	return nil, h.registry.Remove(ctx, cmd.SessionID)
}

// RenameBoard changes the board name
func (h *BoardCommandHandlers) RenameBoard(ctx context.Context, cmd commands.RenameBoardCommand) (interface{}, error) {
	_, doc, err := h.active(cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if err := doc.UpdateBoardName(cmd.Name); err != nil {
		return nil, err
	}
	return queries.ViewOf(doc), nil
}

// AddNode appends a text node. Without coordinates the node is placed to
// the right of the rightmost node, clear of every other node.
func (h *BoardCommandHandlers) AddNode(ctx context.Context, cmd commands.AddNodeCommand) (interface{}, error) {
	_, doc, err := h.active(cmd.SessionID)
	if err != nil {
		return nil, err
	}
	snap := doc.Snapshot()

	node := board.NewTextNode(h.ids.Next("node", snap.HasNode), board.Position{}, cmd.Label, cmd.Text)
	var strategy placement.Strategy
	if cmd.X != nil && cmd.Y != nil {
		node.Position = board.Position{X: *cmd.X, Y: *cmd.Y}
	} else {
		size := h.opts.Layout.Sizes.Estimate(node)
		sizes := h.opts.Layout.Sizes
		anchor := sizes.RightOf(snap.Nodes, 2*h.opts.Placement.MarginX)
		p := h.solver.Place(anchor, size.Width, size.Height, sizes.Footprints(snap.Nodes))
		node.Position, strategy = p.Position, p.Strategy
		h.metrics.RecordPlacement(string(strategy))
	}

	if err := doc.AddNode(node); err != nil {
		return nil, err
	}
	h.logger.Debug("Node added",
		zap.String("boardId", doc.ID()),
		zap.String("nodeId", node.ID),
		zap.String("strategy", string(strategy)),
	)
	return NodeResult{Node: node, Strategy: strategy, Board: queries.ViewOf(doc)}, nil
}

// UpdateNodeContent replaces a node's label and content
func (h *BoardCommandHandlers) UpdateNodeContent(ctx context.Context, cmd commands.UpdateNodeContentCommand) (interface{}, error) {
	_, doc, err := h.active(cmd.SessionID)
	if err != nil {
		return nil, err
	}
	data := board.NodeData{
		Label:   cmd.Label,
		Content: board.Content{Text: cmd.Text, Images: cmd.Images},
	}
	if err := doc.UpdateNodeContent(cmd.NodeID, data); err != nil {
		return nil, err
	}
	return queries.ViewOf(doc), nil
}

// RemoveNode deletes a node and its edges
func (h *BoardCommandHandlers) RemoveNode(ctx context.Context, cmd commands.RemoveNodeCommand) (interface{}, error) {
	_, doc, err := h.active(cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if err := doc.RemoveNode(cmd.NodeID); err != nil {
		return nil, err
	}
	return queries.ViewOf(doc), nil
}

// ConnectNodes draws an edge on the canvas and commits it
func (h *BoardCommandHandlers) ConnectNodes(ctx context.Context, cmd commands.ConnectNodesCommand) (interface{}, error) {
	s, doc, err := h.active(cmd.SessionID)
	if err != nil {
		return nil, err
	}
	coord := s.Coordinator()
	coord.Flush()
	surface := coord.Surface().Snapshot()
	current := doc.Snapshot()
	for _, id := range []string{cmd.Source, cmd.Target} {
		if !surface.HasNode(id) {
			return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("node %q", id))
		}
		// The surface can still show a node the document already removed.
		if !current.HasNode(id) {
			return nil, danglingEdge(id)
		}
	}

	edge, _ := coord.Connect(canvas.Connection{
		Source:       cmd.Source,
		Target:       cmd.Target,
		SourceHandle: cmd.SourceHandle,
		TargetHandle: cmd.TargetHandle,
	})
	coord.Flush()
	if !doc.Snapshot().HasEdge(edge.ID) {
		return nil, danglingEdge(cmd.Target).WithDetail("edgeId", edge.ID)
	}
	return EdgeResult{Edge: edge, Board: queries.ViewOf(doc)}, nil
}

func danglingEdge(nodeID string) *pkgerrors.AppError {
	return pkgerrors.NewValidationError("edge endpoint is not on the board").
		WithCode(pkgerrors.CodeDanglingEdge).
		WithDetail("nodeId", nodeID)
}

// ApplyCanvasChanges feeds incremental edits to the canvas coordinator
func (h *BoardCommandHandlers) ApplyCanvasChanges(ctx context.Context, cmd commands.ApplyCanvasChangesCommand) (interface{}, error) {
	s, _, err := h.active(cmd.SessionID)
	if err != nil {
		return nil, err
	}
	coord := s.Coordinator()
	if len(cmd.NodeChanges) > 0 {
		coord.ApplyNodeChanges(cmd.NodeChanges)
	}
	if len(cmd.EdgeChanges) > 0 {
		coord.ApplyEdgeChanges(cmd.EdgeChanges)
	}
	if cmd.Flush {
		coord.Flush()
	}
	return queries.SurfaceResult{Surface: coord.Surface(), Dragging: coord.Dragging()}, nil
}

// Undo reverts the last mutation, committing pending canvas edits first
func (h *BoardCommandHandlers) Undo(ctx context.Context, cmd commands.UndoCommand) (interface{}, error) {
	s, doc, err := h.active(cmd.SessionID)
	if err != nil {
		return nil, err
	}
	s.Coordinator().Flush()
	applied := doc.Undo()
	return HistoryResult{Applied: applied, Board: queries.ViewOf(doc)}, nil
}

// Redo re-applies the last undone mutation
func (h *BoardCommandHandlers) Redo(ctx context.Context, cmd commands.RedoCommand) (interface{}, error) {
	s, doc, err := h.active(cmd.SessionID)
	if err != nil {
		return nil, err
	}
	s.Coordinator().Flush()
	applied := doc.Redo()
	return HistoryResult{Applied: applied, Board: queries.ViewOf(doc)}, nil
}

// ApplyLayout re-positions every node in a single history step
func (h *BoardCommandHandlers) ApplyLayout(ctx context.Context, cmd commands.ApplyLayoutCommand) (interface{}, error) {
	s, doc, err := h.active(cmd.SessionID)
	if err != nil {
		return nil, err
	}
	dir, err := layout.ParseDirection(cmd.Direction)
	if err != nil {
		return nil, err
	}
	s.Coordinator().Flush()

	opts := h.opts.Layout
	opts.Direction = dir
	res := layout.Compute(doc.Snapshot(), opts)
	if err := doc.MoveNodes(res.Positions); err != nil {
		return nil, err
	}
	h.logger.Info("Layout applied",
		zap.String("boardId", doc.ID()),
		zap.String("direction", string(res.Direction)),
		zap.Int("nodes", len(res.Positions)),
	)
	return LayoutResult{Direction: res.Direction, Board: queries.ViewOf(doc)}, nil
}

// ImportBoard replaces the active board with an exported envelope
func (h *BoardCommandHandlers) ImportBoard(ctx context.Context, cmd commands.ImportBoardCommand) (interface{}, error) {
	doc, err := h.registry.Get(cmd.SessionID).Import(ctx, cmd.Envelope, cmd.Force)
	if err != nil {
		return nil, err
	}
	return queries.ViewOf(doc), nil
}

func (h *BoardCommandHandlers) active(sessionID string) (*session.Session, *board.Document, error) {
	s, ok := h.registry.Lookup(sessionID)
	if !ok {
		return nil, nil, pkgerrors.NewNotFoundError("session").WithDetail("sessionId", sessionID)
	}
	doc := s.Document()
	if doc == nil {
		return nil, nil, pkgerrors.NewNotFoundError("active board")
	}
	return s, doc, nil
}
