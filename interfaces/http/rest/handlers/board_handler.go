package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"mindboard/application/commands"
	"mindboard/application/commands/bus"
	"mindboard/application/queries"
	querybus "mindboard/application/queries/bus"
	pkgerrors "mindboard/pkg/errors"
)

// BoardHandler handles the lifecycle and history of a session's active board
type BoardHandler struct {
	dispatcher
}

// NewBoardHandler creates a new board handler
func NewBoardHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{dispatcher{commandBus: commandBus, queryBus: queryBus, errors: errs, logger: logger}}
}

// OpenBoard handles POST /session/board. An empty boardId starts a new board.
func (h *BoardHandler) OpenBoard(w http.ResponseWriter, r *http.Request) {
	var cmd commands.OpenBoardCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.SessionID = h.sessionID(r)
	h.send(w, r, http.StatusOK, cmd)
}

// GetBoard handles GET /session/board
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.GetBoardQuery{SessionID: h.sessionID(r)})
}

// CloseBoard handles DELETE /session/board. Unsaved changes are discarded.
func (h *BoardHandler) CloseBoard(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.CloseBoardCommand{SessionID: h.sessionID(r)})
}

// SaveBoard handles POST /session/board/save
func (h *BoardHandler) SaveBoard(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.SaveBoardCommand{SessionID: h.sessionID(r)})
}

// RenameBoard handles PUT /session/board/name
func (h *BoardHandler) RenameBoard(w http.ResponseWriter, r *http.Request) {
	var cmd commands.RenameBoardCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.SessionID = h.sessionID(r)
	h.send(w, r, http.StatusOK, cmd)
}

// Undo handles POST /session/board/undo
func (h *BoardHandler) Undo(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.UndoCommand{SessionID: h.sessionID(r)})
}

// Redo handles POST /session/board/redo
func (h *BoardHandler) Redo(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.RedoCommand{SessionID: h.sessionID(r)})
}

// ApplyLayout handles POST /session/board/layout
func (h *BoardHandler) ApplyLayout(w http.ResponseWriter, r *http.Request) {
	var cmd commands.ApplyLayoutCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.SessionID = h.sessionID(r)
	h.send(w, r, http.StatusOK, cmd)
}
