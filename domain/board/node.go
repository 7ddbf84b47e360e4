package board

import "strings"

// NodeTypeText is the only node kind the canvas renders.
const NodeTypeText = "text"

// Position is a node's top-left corner in canvas coordinates.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Content is the rich body of a node. Text holds HTML markup.
type Content struct {
	Text   string   `json:"text" yaml:"text"`
	Images []string `json:"images,omitempty" yaml:"images,omitempty"`
}

// NodeData is the user-visible payload of a node.
type NodeData struct {
	Label   string  `json:"label" yaml:"label"`
	Content Content `json:"content" yaml:"content"`
}

// Node is a vertex of the board graph. Node values are immutable once they
// belong to a Snapshot; operations build replacement values instead.
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Type     string   `json:"type" yaml:"type"`
	Position Position `json:"position" yaml:"position"`
	Data     NodeData `json:"data" yaml:"data"`
}

// NewTextNode builds a text node.
func NewTextNode(id string, pos Position, label, html string) Node {
	return Node{
		ID:       id,
		Type:     NodeTypeText,
		Position: pos,
		Data: NodeData{
			Label:   label,
			Content: Content{Text: html},
		},
	}
}

// Equal compares the semantic fields of two nodes.
func (n Node) Equal(o Node) bool {
	return n.ID == o.ID &&
		n.Type == o.Type &&
		n.Position == o.Position &&
		n.Data.Equal(o.Data)
}

// Equal compares node payloads; nil and empty image lists are equivalent.
func (d NodeData) Equal(o NodeData) bool {
	if d.Label != o.Label || d.Content.Text != o.Content.Text {
		return false
	}
	if len(d.Content.Images) != len(o.Content.Images) {
		return false
	}
	for i := range d.Content.Images {
		if d.Content.Images[i] != o.Content.Images[i] {
			return false
		}
	}
	return true
}

// EdgeStyle carries optional rendering hints for an edge.
type EdgeStyle struct {
	Type        string  `json:"type,omitempty" yaml:"type,omitempty"`
	Stroke      string  `json:"stroke,omitempty" yaml:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty" yaml:"strokeWidth,omitempty"`
	Animated    bool    `json:"animated,omitempty" yaml:"animated,omitempty"`
}

// Edge is a directed parent→child connection between two nodes.
type Edge struct {
	ID           string     `json:"id" yaml:"id"`
	Source       string     `json:"source" yaml:"source"`
	Target       string     `json:"target" yaml:"target"`
	SourceHandle string     `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string     `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
	Style        *EdgeStyle `json:"style,omitempty" yaml:"style,omitempty"`
}

// Equal compares every field of two edges.
func (e Edge) Equal(o Edge) bool {
	if e.ID != o.ID || e.Source != o.Source || e.Target != o.Target ||
		e.SourceHandle != o.SourceHandle || e.TargetHandle != o.TargetHandle {
		return false
	}
	switch {
	case e.Style == nil && o.Style == nil:
		return true
	case e.Style == nil || o.Style == nil:
		return false
	default:
		return *e.Style == *o.Style
	}
}

// Side is a cardinal attachment point of an edge handle.
type Side string

const (
	SideTop    Side = "top"
	SideRight  Side = "right"
	SideBottom Side = "bottom"
	SideLeft   Side = "left"
	SideNone   Side = ""
)

// HandleSide extracts the cardinal side from a handle id such as
// "right-source" or "left".
func HandleSide(handle string) Side {
	h := strings.ToLower(handle)
	switch {
	case strings.HasPrefix(h, string(SideTop)):
		return SideTop
	case strings.HasPrefix(h, string(SideRight)):
		return SideRight
	case strings.HasPrefix(h, string(SideBottom)):
		return SideBottom
	case strings.HasPrefix(h, string(SideLeft)):
		return SideLeft
	default:
		return SideNone
	}
}

// Horizontal reports whether the side lies on the left/right axis.
func (s Side) Horizontal() bool { return s == SideLeft || s == SideRight }

// Vertical reports whether the side lies on the top/bottom axis.
func (s Side) Vertical() bool { return s == SideTop || s == SideBottom }
