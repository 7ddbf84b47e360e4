package handlers

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"mindboard/application/commands"
	"mindboard/application/commands/bus"
	"mindboard/application/queries"
	querybus "mindboard/application/queries/bus"
	"mindboard/domain/board"
	"mindboard/infrastructure/codec"
	pkgerrors "mindboard/pkg/errors"
)

// maxImportBytes bounds uploaded export files
const maxImportBytes = 16 << 20

// TransferHandler handles board import and export files
type TransferHandler struct {
	dispatcher
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *TransferHandler {
	return &TransferHandler{dispatcher{commandBus: commandBus, queryBus: queryBus, errors: errs, logger: logger}}
}

// Export handles GET /session/board/export?format=json|yaml|markdown
func (h *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	exporter, err := codec.ExporterFor(r.URL.Query().Get("format"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ExportBoardQuery{SessionID: h.sessionID(r)})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	env := result.(board.Envelope)

	var buf bytes.Buffer
	if err := exporter.Export(env, &buf); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewInternalError("export failed").WithCause(err))
		return
	}

	w.Header().Set("Content-Type", codec.ContentType(exporter.Format()))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": fmt.Sprintf("%s.%s", env.ID, extension(exporter.Format())),
	}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("Writing export failed", zap.String("boardId", env.ID), zap.Error(err))
	}
}

// Import handles POST /session/board/import?format=json|yaml&force=true.
// Without a format query the request content type decides.
func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatFromContentType(r.Header.Get("Content-Type"))
	}
	importer, err := codec.ImporterFor(format)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		if force, err = strconv.ParseBool(raw); err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("force must be a boolean").WithDetail("force", raw))
			return
		}
	}

	env, err := importer.Parse(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.send(w, r, http.StatusOK, commands.ImportBoardCommand{
		SessionID: h.sessionID(r),
		Envelope:  env,
		Force:     force,
	})
}

func extension(format string) string {
	switch format {
	case "markdown":
		return "md"
	default:
		return format
	}
}

func formatFromContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "json"
	}
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return "yaml"
	default:
		return "json"
	}
}

