package commands

import (
	"encoding/json"

	"mindboard/application/canvas"
	"mindboard/domain/board"
	"mindboard/pkg/utils"
)

// Every command addresses the board of one session. Commands exposing
// DispatchKey are serialised per session by the bus; GenerateSuggestionsCommand
// takes the session itself so the provider round trip runs unlocked.

// OpenBoardCommand activates a board. An empty BoardID creates a new one.
type OpenBoardCommand struct {
	SessionID string `json:"-" validate:"required"`
	BoardID   string `json:"boardId"`
	Force     bool   `json:"force"`
}

func (c OpenBoardCommand) Validate() error     { return utils.ValidateStruct(c) }
func (c OpenBoardCommand) DispatchKey() string { return c.SessionID }

// SaveBoardCommand persists the active board.
type SaveBoardCommand struct {
	SessionID string `json:"-" validate:"required"`
}

func (c SaveBoardCommand) Validate() error     { return utils.ValidateStruct(c) }
func (c SaveBoardCommand) DispatchKey() string { return c.SessionID }

// CloseBoardCommand ends the session's board without saving.
type CloseBoardCommand struct {
	SessionID string `json:"-" validate:"required"`
}

func (c CloseBoardCommand) Validate() error     { return utils.ValidateStruct(c) }
func (c CloseBoardCommand) DispatchKey() string { return c.SessionID }

// RenameBoardCommand changes the board name.
type RenameBoardCommand struct {
	SessionID string `json:"-" validate:"required"`
	Name      string `json:"name" validate:"required,max=200"`
}

func (c RenameBoardCommand) Validate() error     { return utils.ValidateStruct(c) }
func (c RenameBoardCommand) DispatchKey() string { return c.SessionID }

// AddNodeCommand adds a text node. Without coordinates the node is placed
// next to the existing nodes.
type AddNodeCommand struct {
	SessionID string   `json:"-" validate:"required"`
	Label     string   `json:"label" validate:"max=500"`
	Text      string   `json:"text" validate:"max=50000"`
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
}

func (c AddNodeCommand) Validate() error     { return utils.ValidateStruct(c) }
func (c AddNodeCommand) DispatchKey() string { return c.SessionID }

// UpdateNodeContentCommand replaces a node's label and content.
type UpdateNodeContentCommand struct {
	SessionID string   `json:"-" validate:"required"`
	NodeID    string   `json:"-" validate:"required"`
	Label     string   `json:"label" validate:"max=500"`
	Text      string   `json:"text" validate:"max=50000"`
	Images    []string `json:"images" validate:"max=20,dive,url"`
}

func (c UpdateNodeContentCommand) Validate() error     { return utils.ValidateStruct(c) }
func (c UpdateNodeContentCommand) DispatchKey() string { return c.SessionID }

// RemoveNodeCommand removes a node and its edges.
type RemoveNodeCommand struct {
	SessionID string `json:"-" validate:"required"`
	NodeID    string `json:"-" validate:"required"`
}

func (c RemoveNodeCommand) Validate() error     { return utils.ValidateStruct(c) }
func (c RemoveNodeCommand) DispatchKey() string { return c.SessionID }

// ConnectNodesCommand draws an edge through the canvas coordinator.
type ConnectNodesCommand struct {
	SessionID    string `json:"-" validate:"required"`
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
}

func (c ConnectNodesCommand) Validate() error     { return utils.ValidateStruct(c) }
func (c ConnectNodesCommand) DispatchKey() string { return c.SessionID }

// ApplyCanvasChangesCommand feeds incremental canvas edits to the
// coordinator.
type ApplyCanvasChangesCommand struct {
	SessionID   string              `json:"-" validate:"required"`
	NodeChanges []canvas.NodeChange `json:"nodeChanges"`
	EdgeChanges []canvas.EdgeChange `json:"edgeChanges"`
	// Flush pushes the edits to the document immediately.
	Flush bool `json:"flush"`
}

func (c ApplyCanvasChangesCommand) Validate() error     { return utils.ValidateStruct(c) }
func (c ApplyCanvasChangesCommand) DispatchKey() string { return c.SessionID }

// UndoCommand reverts the last mutation.
type UndoCommand struct {
	SessionID string `json:"-" validate:"required"`
}

func (c UndoCommand) Validate() error     { return utils.ValidateStruct(c) }
func (c UndoCommand) DispatchKey() string { return c.SessionID }

// RedoCommand re-applies the last undone mutation.
type RedoCommand struct {
	SessionID string `json:"-" validate:"required"`
}

func (c RedoCommand) Validate() error     { return utils.ValidateStruct(c) }
func (c RedoCommand) DispatchKey() string { return c.SessionID }

// ApplyLayoutCommand re-positions every node with the hierarchical layout.
type ApplyLayoutCommand struct {
	SessionID string `json:"-" validate:"required"`
	Direction string `json:"direction" validate:"omitempty,oneof=TB LR auto tb lr AUTO"`
}

func (c ApplyLayoutCommand) Validate() error     { return utils.ValidateStruct(c) }
func (c ApplyLayoutCommand) DispatchKey() string { return c.SessionID }

// ApplySuggestionsCommand validates a raw suggestion payload and
// materialises it around the focal node.
type ApplySuggestionsCommand struct {
	SessionID string          `json:"-" validate:"required"`
	FocalID   string          `json:"focalId" validate:"required"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
}

func (c ApplySuggestionsCommand) Validate() error     { return utils.ValidateStruct(c) }
func (c ApplySuggestionsCommand) DispatchKey() string { return c.SessionID }

// GenerateSuggestionsCommand asks the AI collaborator for suggestions around
// the focal node. The validated tree is returned; it is materialised only
// when Apply is set.
type GenerateSuggestionsCommand struct {
	SessionID string `json:"-" validate:"required"`
	FocalID   string `json:"focalId" validate:"required"`
	Model     string `json:"model"`
	Message   string `json:"message" validate:"max=4000"`
	Provider  string `json:"provider"`
	APIKey    string `json:"apiKey"`
	Apply     bool   `json:"apply"`
}

func (c GenerateSuggestionsCommand) Validate() error { return utils.ValidateStruct(c) }

// ImportBoardCommand replaces the active board with an exported envelope.
type ImportBoardCommand struct {
	SessionID string         `json:"-" validate:"required"`
	Envelope  board.Envelope `json:"envelope"`
	Force     bool           `json:"force"`
}

func (c ImportBoardCommand) Validate() error     { return utils.ValidateStruct(c) }
func (c ImportBoardCommand) DispatchKey() string { return c.SessionID }
