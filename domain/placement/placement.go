// Package placement finds collision-free positions for new nodes.
package placement

import "mindboard/domain/board"

// Strategy records which search phase produced a placement.
type Strategy string

const (
	StrategyAnchor     Strategy = "anchor"
	StrategyVertical   Strategy = "vertical"
	StrategyHorizontal Strategy = "horizontal"
	StrategyGrid       Strategy = "grid"
	StrategyFallback   Strategy = "fallback"
)

// Rect is an axis-aligned box with its top-left corner at X, Y.
type Rect struct {
	X, Y, W, H float64
}

// RectAt builds the rect of a node of size w×h placed at p.
func RectAt(p board.Position, w, h float64) Rect {
	return Rect{X: p.X, Y: p.Y, W: w, H: h}
}

// Inflate grows r by mx on the left and right and my on the top and bottom.
func (r Rect) Inflate(mx, my float64) Rect {
	return Rect{X: r.X - mx, Y: r.Y - my, W: r.W + 2*mx, H: r.H + 2*my}
}

// Intersects reports strict overlap; touching edges do not count.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// Options tunes the search.
type Options struct {
	MarginX   float64
	MarginY   float64
	Step      float64
	MaxStep   float64
	FallbackX float64
	FallbackY float64
}

// DefaultOptions returns the standard margins and search bounds.
func DefaultOptions() Options {
	return Options{
		MarginX:   50,
		MarginY:   30,
		Step:      50,
		MaxStep:   500,
		FallbackX: 600,
		FallbackY: 300,
	}
}

// Placement is the outcome of a search.
type Placement struct {
	Position board.Position
	Strategy Strategy
}

// Solver is a pure, deterministic placement search.
type Solver struct {
	opts Options
}

// NewSolver creates a solver. Non-positive steps fall back to defaults.
func NewSolver(opts Options) *Solver {
	def := DefaultOptions()
	if opts.Step <= 0 {
		opts.Step = def.Step
	}
	if opts.MaxStep < opts.Step {
		opts.MaxStep = def.MaxStep
	}
	if opts.FallbackX == 0 && opts.FallbackY == 0 {
		opts.FallbackX, opts.FallbackY = def.FallbackX, def.FallbackY
	}
	return &Solver{opts: opts}
}

// Collides reports whether a w×h box at p overlaps any occupied rect once
// both sides are inflated by the margins.
func (s *Solver) Collides(p board.Position, w, h float64, occupied []Rect) bool {
	candidate := RectAt(p, w, h).Inflate(s.opts.MarginX, s.opts.MarginY)
	for _, o := range occupied {
		if candidate.Intersects(o.Inflate(s.opts.MarginX, s.opts.MarginY)) {
			return true
		}
	}
	return false
}

// Place returns the first free position for a w×h box near anchor. The
// search order is: the anchor itself, vertical offsets (below before
// above), offsets to the right, a grid of right-and-vertical offsets, and
// finally a fixed fallback offset that is returned without checking.
// occupied is never modified.
func (s *Solver) Place(anchor board.Position, w, h float64, occupied []Rect) Placement {
	free := func(p board.Position) bool { return !s.Collides(p, w, h, occupied) }

	if free(anchor) {
		return Placement{Position: anchor, Strategy: StrategyAnchor}
	}

	for d := s.opts.Step; d <= s.opts.MaxStep; d += s.opts.Step {
		for _, dy := range []float64{d, -d} {
			p := board.Position{X: anchor.X, Y: anchor.Y + dy}
			if free(p) {
				return Placement{Position: p, Strategy: StrategyVertical}
			}
		}
	}

	for d := s.opts.Step; d <= s.opts.MaxStep; d += s.opts.Step {
		p := board.Position{X: anchor.X + d, Y: anchor.Y}
		if free(p) {
			return Placement{Position: p, Strategy: StrategyHorizontal}
		}
	}

	for dx := s.opts.Step; dx <= s.opts.MaxStep; dx += s.opts.Step {
		for dy := s.opts.Step; dy <= s.opts.MaxStep; dy += s.opts.Step {
			for _, sy := range []float64{dy, -dy} {
				p := board.Position{X: anchor.X + dx, Y: anchor.Y + sy}
				if free(p) {
					return Placement{Position: p, Strategy: StrategyGrid}
				}
			}
		}
	}

	return Placement{
		Position: board.Position{X: anchor.X + s.opts.FallbackX, Y: anchor.Y + s.opts.FallbackY},
		Strategy: StrategyFallback,
	}
}
