package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mindboard/application/commands"
	"mindboard/application/commands/bus"
	"mindboard/application/queries"
	querybus "mindboard/application/queries/bus"
	pkgerrors "mindboard/pkg/errors"
)

// NodeHandler handles node, edge and canvas edits on the active board
type NodeHandler struct {
	dispatcher
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{dispatcher{commandBus: commandBus, queryBus: queryBus, errors: errs, logger: logger}}
}

// AddNode handles POST /session/board/nodes
func (h *NodeHandler) AddNode(w http.ResponseWriter, r *http.Request) {
	var cmd commands.AddNodeCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.SessionID = h.sessionID(r)
	h.send(w, r, http.StatusCreated, cmd)
}

// UpdateNode handles PUT /session/board/nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpdateNodeContentCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.SessionID = h.sessionID(r)
	cmd.NodeID = chi.URLParam(r, "nodeID")
	h.send(w, r, http.StatusOK, cmd)
}

// DeleteNode handles DELETE /session/board/nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.RemoveNodeCommand{
		SessionID: h.sessionID(r),
		NodeID:    chi.URLParam(r, "nodeID"),
	})
}

// ConnectNodes handles POST /session/board/edges
func (h *NodeHandler) ConnectNodes(w http.ResponseWriter, r *http.Request) {
	var cmd commands.ConnectNodesCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.SessionID = h.sessionID(r)
	h.send(w, r, http.StatusCreated, cmd)
}

// GetSurface handles GET /session/board/surface
func (h *NodeHandler) GetSurface(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.GetSurfaceQuery{SessionID: h.sessionID(r)})
}

// ApplyChanges handles POST /session/board/changes. The response is the
// canvas surface after the changes.
func (h *NodeHandler) ApplyChanges(w http.ResponseWriter, r *http.Request) {
	var cmd commands.ApplyCanvasChangesCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.SessionID = h.sessionID(r)
	h.send(w, r, http.StatusOK, cmd)
}
