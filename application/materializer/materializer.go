// Package materializer turns a validated suggestion tree into board nodes
// and edges placed to the right of a focal node.
package materializer

import (
	"go.uber.org/zap"

	"mindboard/domain/board"
	"mindboard/domain/config"
	"mindboard/domain/layout"
	"mindboard/domain/placement"
	"mindboard/domain/suggestion"
	pkgerrors "mindboard/pkg/errors"
	"mindboard/pkg/observability"
	"mindboard/pkg/richtext"
)

const (
	sourceHandle = "right-source"
	targetHandle = "left-target"

	nodePrefix = "node"
	edgePrefix = "edge"
)

// Options tunes the generated layout.
type Options struct {
	// ColumnSpacing is the horizontal distance between generations.
	ColumnSpacing float64
	// RowSpacing is the vertical space reserved per leaf concept.
	RowSpacing   float64
	WordsPerLine int
	Sizes        layout.SizeModel
	Placement    placement.Options
}

// DefaultOptions returns the standard spacing.
func DefaultOptions() Options {
	return Options{
		ColumnSpacing: 350,
		RowSpacing:    120,
		WordsPerLine:  3,
		Sizes:         layout.DefaultSizeModel(),
		Placement:     placement.DefaultOptions(),
	}
}

// OptionsFromConfig maps engine tunables onto materializer options.
func OptionsFromConfig(cfg *config.DomainConfig) Options {
	opts := DefaultOptions()
	opts.ColumnSpacing = cfg.ColumnSpacing
	opts.RowSpacing = cfg.RowSpacing
	opts.Placement.MarginX = cfg.PlacementMarginX
	opts.Placement.MarginY = cfg.PlacementMarginY
	opts.Placement.Step = cfg.PlacementStep
	opts.Placement.MaxStep = cfg.PlacementMaxStep
	return opts
}

// Plan is the batch a materialization produces.
type Plan struct {
	Nodes      []board.Node
	Edges      []board.Edge
	Strategies map[string]placement.Strategy
}

// Materializer builds suggestion batches.
type Materializer struct {
	opts    Options
	solver  *placement.Solver
	ids     *board.IDGenerator
	logger  *zap.Logger
	metrics *observability.Collector
}

// New creates a materializer. A nil ids generator gets a real-clock one.
func New(opts Options, ids *board.IDGenerator, logger *zap.Logger, metrics *observability.Collector) *Materializer {
	def := DefaultOptions()
	if opts.ColumnSpacing <= 0 {
		opts.ColumnSpacing = def.ColumnSpacing
	}
	if opts.RowSpacing <= 0 {
		opts.RowSpacing = def.RowSpacing
	}
	if opts.WordsPerLine <= 0 {
		opts.WordsPerLine = def.WordsPerLine
	}
	if opts.Sizes == (layout.SizeModel{}) {
		opts.Sizes = def.Sizes
	}
	if opts.Placement == (placement.Options{}) {
		opts.Placement = def.Placement
	}
	if ids == nil {
		ids = board.NewIDGenerator(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{
		opts:    opts,
		solver:  placement.NewSolver(opts.Placement),
		ids:     ids,
		logger:  logger,
		metrics: metrics,
	}
}

// Plan computes the nodes and edges for tree around focalID without
// touching any document.
func (m *Materializer) Plan(snap board.Snapshot, focalID string, tree suggestion.Tree) (Plan, error) {
	focal, ok := snap.NodeByID(focalID)
	if !ok {
		return Plan{}, pkgerrors.NewNotFoundError("focal node").WithDetail("nodeId", focalID)
	}
	if len(tree.Categories) == 0 {
		return Plan{}, pkgerrors.NewValidationError("suggestion tree has no categories").
			WithCode(pkgerrors.CodeMalformedTree)
	}

	b := &batch{
		m:          m,
		snap:       snap,
		origin:     focal.Position,
		occupied:   make([]placement.Rect, 0, len(snap.Nodes)+tree.Count()),
		nodeIDs:    make(map[string]bool),
		edgeIDs:    make(map[string]bool),
		strategies: make(map[string]placement.Strategy),
	}
	b.occupied = append(b.occupied, m.opts.Sizes.Footprints(snap.Nodes)...)

	totalRows := 0
	for _, c := range tree.Categories {
		totalRows += c.Leaves()
	}
	focalCenter := focal.Position.Y + m.opts.Sizes.Estimate(focal).Height/2
	firstRow := focalCenter - float64(totalRows-1)*m.opts.RowSpacing/2

	row := 0
	for _, c := range tree.Categories {
		rows := c.Leaves()
		catID := b.add(focalID, 1, b.rowCenter(firstRow, row, rows), c.Name, "")
		r := row
		for _, con := range c.Concepts {
			b.concept(catID, 2, firstRow, r, con)
			r += con.Leaves()
		}
		row += rows
	}

	return Plan{Nodes: b.nodes, Edges: b.edges, Strategies: b.strategies}, nil
}

// Apply plans tree against doc and commits the batch as one mutation.
func (m *Materializer) Apply(doc *board.Document, focalID string, tree suggestion.Tree) (Plan, error) {
	plan, err := m.Plan(doc.Snapshot(), focalID, tree)
	if err != nil {
		return Plan{}, err
	}
	if err := doc.Insert(plan.Nodes, plan.Edges); err != nil {
		return Plan{}, err
	}

	for _, s := range plan.Strategies {
		m.metrics.RecordPlacement(string(s))
	}
	m.metrics.RecordGenerated(len(plan.Nodes))
	m.logger.Info("Suggestions materialized",
		zap.String("boardId", doc.ID()),
		zap.String("focalId", focalID),
		zap.Int("nodes", len(plan.Nodes)),
		zap.Int("edges", len(plan.Edges)),
	)
	return plan, nil
}

type batch struct {
	m          *Materializer
	snap       board.Snapshot
	origin     board.Position
	occupied   []placement.Rect
	nodeIDs    map[string]bool
	edgeIDs    map[string]bool
	nodes      []board.Node
	edges      []board.Edge
	strategies map[string]placement.Strategy
}

func (b *batch) rowCenter(firstRow float64, row, rows int) float64 {
	return firstRow + (float64(row)+float64(rows-1)/2)*b.m.opts.RowSpacing
}

func (b *batch) concept(parentID string, depth int, firstRow float64, row int, c suggestion.Concept) {
	rows := c.Leaves()
	html := richtext.Paragraph(c.Reason, b.m.opts.WordsPerLine)
	id := b.add(parentID, depth, b.rowCenter(firstRow, row, rows), c.Title, html)
	for _, sub := range c.SubBranches {
		b.concept(id, depth+1, firstRow, row, sub)
		row += sub.Leaves()
	}
}

// add places one node centred on centerY in the given column and links it
// from parentID.
func (b *batch) add(parentID string, depth int, centerY float64, label, html string) string {
	n := board.NewTextNode("", board.Position{}, label, html)
	size := b.m.opts.Sizes.Estimate(n)
	anchor := board.Position{
		X: b.origin.X + float64(depth)*b.m.opts.ColumnSpacing,
		Y: centerY - size.Height/2,
	}
	p := b.m.solver.Place(anchor, size.Width, size.Height, b.occupied)

	n.ID = b.m.ids.Next(nodePrefix, func(id string) bool {
		return b.nodeIDs[id] || b.snap.HasNode(id)
	})
	n.Position = p.Position
	b.nodeIDs[n.ID] = true
	b.nodes = append(b.nodes, n)
	b.occupied = append(b.occupied, placement.RectAt(p.Position, size.Width, size.Height))
	b.strategies[n.ID] = p.Strategy

	e := board.Edge{
		ID: b.m.ids.Next(edgePrefix, func(id string) bool {
			return b.edgeIDs[id] || b.snap.HasEdge(id)
		}),
		Source:       parentID,
		Target:       n.ID,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
	}
	b.edgeIDs[e.ID] = true
	b.edges = append(b.edges, e)
	return n.ID
}
