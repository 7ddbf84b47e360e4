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

// SuggestionHandler handles the AI collaboration endpoints
type SuggestionHandler struct {
	dispatcher
}

// NewSuggestionHandler creates a new suggestion handler
func NewSuggestionHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *SuggestionHandler {
	return &SuggestionHandler{dispatcher{commandBus: commandBus, queryBus: queryBus, errors: errs, logger: logger}}
}

// GetContext handles GET /session/board/context?focalId=
func (h *SuggestionHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.GetFocusContextQuery{
		SessionID: h.sessionID(r),
		FocalID:   r.URL.Query().Get("focalId"),
	})
}

// Generate handles POST /session/board/suggestions
func (h *SuggestionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var cmd commands.GenerateSuggestionsCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.SessionID = h.sessionID(r)
	h.send(w, r, http.StatusOK, cmd)
}

// Apply handles POST /session/board/suggestions/apply
func (h *SuggestionHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var cmd commands.ApplySuggestionsCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.SessionID = h.sessionID(r)
	h.send(w, r, http.StatusOK, cmd)
}
