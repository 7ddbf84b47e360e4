package layout

import (
	"math"
	"strings"
	"unicode/utf8"

	"mindboard/domain/board"
	"mindboard/domain/placement"
	"mindboard/pkg/richtext"
)

// SizeModel estimates a node's rendered size before it is painted.
type SizeModel struct {
	WordsPerLine int
	CharWidth    float64
	LineHeight   float64
	Padding      float64
	BaseHeight   float64
	MinWidth     float64
	MaxWidth     float64
}

// DefaultSizeModel matches the canvas' default text node styling.
func DefaultSizeModel() SizeModel {
	return SizeModel{
		WordsPerLine: 3,
		CharWidth:    8,
		LineHeight:   20,
		Padding:      32,
		BaseHeight:   24,
		MinWidth:     150,
		MaxWidth:     320,
	}
}

// Size is a width/height pair.
type Size struct {
	Width  float64
	Height float64
}

// Estimate returns the size of n: label and plain-text content are wrapped
// every WordsPerLine words, width follows the longest line and height the
// line count.
func (m SizeModel) Estimate(n board.Node) Size {
	var lines []string
	lines = append(lines, richtext.WrapWords(n.Data.Label, m.WordsPerLine)...)
	for _, para := range strings.Split(richtext.PlainText(n.Data.Content.Text), "\n") {
		lines = append(lines, richtext.WrapWords(para, m.WordsPerLine)...)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}

	longest := 0
	for _, l := range lines {
		if c := utf8.RuneCountInString(l); c > longest {
			longest = c
		}
	}

	width := math.Max(m.MinWidth, float64(longest)*m.CharWidth+m.Padding)
	if m.MaxWidth > 0 {
		width = math.Min(width, m.MaxWidth)
	}
	height := m.BaseHeight + float64(len(lines))*m.LineHeight
	return Size{Width: width, Height: height}
}

// Footprints returns the estimated bounding box of every node.
func (m SizeModel) Footprints(nodes []board.Node) []placement.Rect {
	rects := make([]placement.Rect, 0, len(nodes))
	for _, n := range nodes {
		size := m.Estimate(n)
		rects = append(rects, placement.RectAt(n.Position, size.Width, size.Height))
	}
	return rects
}

// RightOf returns the spot gap units to the right of the rightmost node,
// level with it. An empty board anchors at the origin.
func (m SizeModel) RightOf(nodes []board.Node, gap float64) board.Position {
	if len(nodes) == 0 {
		return board.Position{}
	}
	right := nodes[0]
	rightEdge := right.Position.X + m.Estimate(right).Width
	for _, n := range nodes[1:] {
		if edge := n.Position.X + m.Estimate(n).Width; edge > rightEdge {
			right, rightEdge = n, edge
		}
	}
	return board.Position{X: rightEdge + gap, Y: right.Position.Y}
}
