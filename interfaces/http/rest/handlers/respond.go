package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"mindboard/application/commands/bus"
	querybus "mindboard/application/queries/bus"
	"mindboard/pkg/common"
	pkgerrors "mindboard/pkg/errors"
)

// dispatcher is embedded by the session-scoped handlers: it decodes bodies,
// sends commands and queries and writes the envelope or the error.
type dispatcher struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// sessionID returns the id stored by the session middleware
func (d *dispatcher) sessionID(r *http.Request) string {
	id, _ := common.GetSessionID(r.Context())
	return id
}

// decode parses a JSON body, writing the error response on failure
func (d *dispatcher) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := common.ParseJSONBody(r, v, common.DefaultMaxBodyBytes); err != nil {
		d.errors.Handle(w, r, err)
		return false
	}
	return true
}

// send dispatches cmd and responds with its result
func (d *dispatcher) send(w http.ResponseWriter, r *http.Request, status int, cmd bus.Command) {
	result, err := d.commandBus.Send(r.Context(), cmd)
	if err != nil {
		d.errors.Handle(w, r, err)
		return
	}
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	d.respond(w, r, status, result)
}

// ask dispatches q and responds with its result
func (d *dispatcher) ask(w http.ResponseWriter, r *http.Request, q querybus.Query) {
	result, err := d.queryBus.Ask(r.Context(), q)
	if err != nil {
		d.errors.Handle(w, r, err)
		return
	}
	d.respond(w, r, http.StatusOK, result)
}

func (d *dispatcher) respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	common.RespondWithMeta(w, status, data, &common.MetaInfo{RequestID: common.ExtractRequestID(r)})
}
