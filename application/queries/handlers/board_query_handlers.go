package handlers

import (
	"context"

	"go.uber.org/zap"

	"mindboard/application/ports"
	"mindboard/application/queries"
	"mindboard/application/queries/bus"
	"mindboard/application/session"
	"mindboard/domain/board"
	"mindboard/domain/serializer"
	"mindboard/pkg/clock"
	pkgerrors "mindboard/pkg/errors"
)

// BoardQueryHandlers answers read-only questions about sessions and stored
// boards. Queries never create sessions.
type BoardQueryHandlers struct {
	registry *session.Registry
	store    ports.BoardStore
	clock    clock.Clock
	logger   *zap.Logger
}

// NewBoardQueryHandlers creates the board query handlers
func NewBoardQueryHandlers(
	registry *session.Registry,
	store ports.BoardStore,
	clk clock.Clock,
	logger *zap.Logger,
) *BoardQueryHandlers {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardQueryHandlers{
		registry: registry,
		store:    store,
		clock:    clk,
		logger:   logger,
	}
}

// Register binds every board query to the bus
func (h *BoardQueryHandlers) Register(b *bus.QueryBus) error {
	registrations := []struct {
		query   bus.Query
		handler bus.QueryHandler
	}{
		{queries.GetBoardQuery{}, bus.Typed(h.GetBoard)},
		{queries.GetSurfaceQuery{}, bus.Typed(h.GetSurface)},
		{queries.ExportBoardQuery{}, bus.Typed(h.ExportBoard)},
		{queries.GetFocusContextQuery{}, bus.Typed(h.GetFocusContext)},
		{queries.ListBoardsQuery{}, bus.Typed(h.ListBoards)},
	}
	for _, r := range registrations {
		if err := b.Register(r.query, r.handler); err != nil {
			return err
		}
	}
	return nil
}

// GetBoard returns the read model of the session's active board
func (h *BoardQueryHandlers) GetBoard(ctx context.Context, q queries.GetBoardQuery) (interface{}, error) {
	doc, err := h.document(q.SessionID)
	if err != nil {
		return nil, err
	}
	return queries.ViewOf(doc), nil
}

// GetSurface returns the canvas surface of the session
func (h *BoardQueryHandlers) GetSurface(ctx context.Context, q queries.GetSurfaceQuery) (interface{}, error) {
	s, err := h.session(q.SessionID)
	if err != nil {
		return nil, err
	}
	coord := s.Coordinator()
	if coord == nil {
		return nil, pkgerrors.NewNotFoundError("active board")
	}
	return queries.SurfaceResult{Surface: coord.Surface(), Dragging: coord.Dragging()}, nil
}

// ExportBoard returns the active board as an export envelope
func (h *BoardQueryHandlers) ExportBoard(ctx context.Context, q queries.ExportBoardQuery) (interface{}, error) {
	s, err := h.session(q.SessionID)
	if err != nil {
		return nil, err
	}
	return s.Export()
}

// GetFocusContext serialises the active board around the focal node
func (h *BoardQueryHandlers) GetFocusContext(ctx context.Context, q queries.GetFocusContextQuery) (interface{}, error) {
	doc, err := h.document(q.SessionID)
	if err != nil {
		return nil, err
	}
	c, err := serializer.Serialize(doc.Snapshot(), q.FocalID)
	if err != nil {
		return nil, err
	}
	return queries.FocusContextResult{Context: c, Prompt: c.Render()}, nil
}

// ListBoards returns one page of stored boards
func (h *BoardQueryHandlers) ListBoards(ctx context.Context, q queries.ListBoardsQuery) (interface{}, error) {
	summaries, err := h.store.List(ctx)
	if err != nil {
		if pkgerrors.IsAppError(err) {
			return nil, err
		}
		return nil, pkgerrors.NewPersistenceError("list boards", err)
	}

	start, end := q.Bounds(len(summaries))
	page := make([]board.Summary, end-start)
	copy(page, summaries[start:end])

	h.logger.Debug("Boards listed",
		zap.Int("total", len(summaries)),
		zap.Int("returned", len(page)),
	)
	return queries.ListBoardsResult{
		Boards:     page,
		TotalCount: len(summaries),
		HasMore:    end < len(summaries),
		ListedAt:   h.clock.Now(),
	}, nil
}

func (h *BoardQueryHandlers) session(id string) (*session.Session, error) {
	s, ok := h.registry.Lookup(id)
	if !ok {
		return nil, pkgerrors.NewNotFoundError("session").WithDetail("sessionId", id)
	}
	return s, nil
}

func (h *BoardQueryHandlers) document(sessionID string) (*board.Document, error) {
	s, err := h.session(sessionID)
	if err != nil {
		return nil, err
	}
	doc := s.Document()
	if doc == nil {
		return nil, pkgerrors.NewNotFoundError("active board")
	}
	return doc, nil
}
