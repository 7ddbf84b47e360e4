package queries

import (
	"time"

	"mindboard/application/canvas"
	"mindboard/domain/board"
	"mindboard/domain/serializer"
	"mindboard/pkg/utils"
)

// GetBoardQuery reads the active board of a session.
type GetBoardQuery struct {
	SessionID string `json:"-" validate:"required"`
}

func (q GetBoardQuery) Validate() error { return utils.ValidateStruct(q) }

// BoardView is the read model of an active board.
type BoardView struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Nodes       []board.Node `json:"nodes"`
	Edges       []board.Edge `json:"edges"`
	Version     uint64       `json:"version"`
	Dirty       bool         `json:"dirty"`
	CanUndo     bool         `json:"canUndo"`
	CanRedo     bool         `json:"canRedo"`
	LastSavedAt string       `json:"lastSavedAt,omitempty"`
}

// ViewOf builds the read model from a consistent document state.
func ViewOf(doc *board.Document) BoardView {
	st := doc.State()
	view := BoardView{
		ID:      st.ID,
		Name:    st.Name,
		Nodes:   st.Snapshot.Nodes,
		Edges:   st.Snapshot.Edges,
		Version: st.Version,
		Dirty:   st.Dirty,
		CanUndo: st.CanUndo,
		CanRedo: st.CanRedo,
	}
	if !st.LastSavedAt.IsZero() {
		view.LastSavedAt = utils.FormatTimestamp(st.LastSavedAt)
	}
	if view.Nodes == nil {
		view.Nodes = []board.Node{}
	}
	if view.Edges == nil {
		view.Edges = []board.Edge{}
	}
	return view
}

// GetSurfaceQuery reads the canvas surface of a session, including render
// state such as selection and measured sizes.
type GetSurfaceQuery struct {
	SessionID string `json:"-" validate:"required"`
}

func (q GetSurfaceQuery) Validate() error { return utils.ValidateStruct(q) }

// SurfaceResult is the canvas surface together with the drag state.
type SurfaceResult struct {
	Surface  canvas.Surface `json:"surface"`
	Dragging bool           `json:"dragging"`
}

// ExportBoardQuery captures the active board as an export envelope.
type ExportBoardQuery struct {
	SessionID string `json:"-" validate:"required"`
}

func (q ExportBoardQuery) Validate() error { return utils.ValidateStruct(q) }

// GetFocusContextQuery serialises the board around a focal node.
type GetFocusContextQuery struct {
	SessionID string `json:"-" validate:"required"`
	FocalID   string `json:"focalId"`
}

func (q GetFocusContextQuery) Validate() error { return utils.ValidateStruct(q) }

// FocusContextResult carries the structured context and its prompt text.
type FocusContextResult struct {
	serializer.Context
	Prompt string `json:"prompt"`
}

// ListBoardsQuery pages through stored boards, most recently updated first.
type ListBoardsQuery struct {
	Page     int `json:"page" validate:"omitempty,min=1"`
	PageSize int `json:"pageSize" validate:"omitempty,min=1,max=100"`
}

func (q ListBoardsQuery) Validate() error { return utils.ValidateStruct(q) }

// Bounds returns the slice bounds of the requested page within total items.
func (q ListBoardsQuery) Bounds(total int) (int, int) {
	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return start, end
}

// ListBoardsResult is one page of board summaries.
type ListBoardsResult struct {
	Boards     []board.Summary `json:"boards"`
	TotalCount int             `json:"totalCount"`
	HasMore    bool            `json:"hasMore"`
	ListedAt   time.Time       `json:"listedAt"`
}
