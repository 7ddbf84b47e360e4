package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindboard/domain/board"
)

func TestSolver_Place(t *testing.T) {
	column := Rect{X: 0, Y: -2000, W: 100, H: 4000}
	row := Rect{X: 0, Y: -10, W: 2000, H: 40}

	tests := []struct {
		name         string
		occupied     []Rect
		w, h         float64
		wantPos      board.Position
		wantStrategy Strategy
	}{
		{
			name:         "empty board keeps anchor",
			occupied:     nil,
			w:            150,
			h:            44,
			wantPos:      board.Position{},
			wantStrategy: StrategyAnchor,
		},
		{
			name:         "below before above at equal distance",
			occupied:     []Rect{{X: 0, Y: 0, W: 100, H: 20}},
			w:            100,
			h:            20,
			wantPos:      board.Position{X: 0, Y: 100},
			wantStrategy: StrategyVertical,
		},
		{
			name:         "first vertical offset clearing both margins",
			occupied:     []Rect{{X: 0, Y: 0, W: 150, H: 44}},
			w:            150,
			h:            44,
			wantPos:      board.Position{X: 0, Y: 150},
			wantStrategy: StrategyVertical,
		},
		{
			name:         "horizontal when column is blocked",
			occupied:     []Rect{column},
			w:            100,
			h:            20,
			wantPos:      board.Position{X: 200, Y: 0},
			wantStrategy: StrategyHorizontal,
		},
		{
			name:         "grid when column and row are blocked",
			occupied:     []Rect{column, row},
			w:            100,
			h:            20,
			wantPos:      board.Position{X: 200, Y: 100},
			wantStrategy: StrategyGrid,
		},
		{
			name:         "fallback when everything is blocked",
			occupied:     []Rect{{X: -10000, Y: -10000, W: 20000, H: 20000}},
			w:            100,
			h:            20,
			wantPos:      board.Position{X: 600, Y: 300},
			wantStrategy: StrategyFallback,
		},
	}

	s := NewSolver(DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Place(board.Position{}, tt.w, tt.h, tt.occupied)
			assert.Equal(t, tt.wantPos, got.Position)
			assert.Equal(t, tt.wantStrategy, got.Strategy)
		})
	}
}

func TestSolver_TotalUnderHeavyCollision(t *testing.T) {
	s := NewSolver(DefaultOptions())
	anchor := board.Position{X: 40, Y: 40}

	var occupied []Rect
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			occupied = append(occupied, Rect{X: float64(i) * 160, Y: float64(j)*90 - 300, W: 150, H: 60})
		}
	}
	require.GreaterOrEqual(t, len(occupied), 50)
	before := append([]Rect(nil), occupied...)

	got := s.Place(anchor, 150, 60, occupied)
	again := s.Place(anchor, 150, 60, occupied)

	assert.Equal(t, got, again, "placement is deterministic")
	assert.Equal(t, before, occupied, "inputs are not mutated")
	if got.Strategy != StrategyFallback {
		assert.False(t, s.Collides(got.Position, 150, 60, occupied))
	}
}

func TestSolver_BatchPlacementsDoNotOverlap(t *testing.T) {
	s := NewSolver(DefaultOptions())
	occupied := []Rect{{X: 0, Y: 0, W: 150, H: 44}}

	for i := 0; i < 12; i++ {
		p := s.Place(board.Position{X: 350, Y: 0}, 150, 44, occupied)
		if p.Strategy != StrategyFallback {
			assert.False(t, s.Collides(p.Position, 150, 44, occupied), "placement %d collides", i)
		}
		occupied = append(occupied, RectAt(p.Position, 150, 44))
	}
}

func TestRect_Intersects(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 10, H: 10}
	assert.True(t, a.Intersects(Rect{X: 5, Y: 5, W: 10, H: 10}))
	assert.False(t, a.Intersects(Rect{X: 10, Y: 0, W: 10, H: 10}), "touching is not overlapping")
	assert.True(t, a.Inflate(1, 1).Intersects(Rect{X: 10, Y: 0, W: 10, H: 10}))
}

func TestNewSolver_FillsDefaults(t *testing.T) {
	s := NewSolver(Options{MarginX: 10, MarginY: 10})
	got := s.Place(board.Position{}, 10, 10, []Rect{{X: -10000, Y: -10000, W: 20000, H: 20000}})
	assert.Equal(t, board.Position{X: 600, Y: 300}, got.Position)
}
