package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mindboard/application/ports"
	"mindboard/application/queries"
	querybus "mindboard/application/queries/bus"
	"mindboard/domain/board"
	"mindboard/pkg/clock"
	"mindboard/pkg/common"
	pkgerrors "mindboard/pkg/errors"
)

// StoreHandler exposes the remote board store: listing, and whole-record
// reads and writes that bypass any session
type StoreHandler struct {
	store    ports.BoardStore
	queryBus *querybus.QueryBus
	clock    clock.Clock
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewStoreHandler creates a new store handler
func NewStoreHandler(store ports.BoardStore, queryBus *querybus.QueryBus, clk clock.Clock, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *StoreHandler {
	return &StoreHandler{
		store:    store,
		queryBus: queryBus,
		clock:    clk,
		errors:   errs,
		logger:   logger,
	}
}

// ListBoards handles GET /boards?page=&page_size=
func (h *StoreHandler) ListBoards(w http.ResponseWriter, r *http.Request) {
	params := common.ExtractPaginationParams(r)

	result, err := h.queryBus.Ask(r.Context(), queries.ListBoardsQuery{
		Page:     params.Page,
		PageSize: params.PageSize,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	page := result.(queries.ListBoardsResult)

	common.RespondWithMeta(w, http.StatusOK, page, &common.MetaInfo{
		RequestID:  common.ExtractRequestID(r),
		Pagination: common.BuildPaginationMeta(params.Page, params.PageSize, page.TotalCount),
	})
}

// GetBoard handles GET /boards/{boardID}
func (h *StoreHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(r.Context(), chi.URLParam(r, "boardID"))
	if err != nil {
		h.errors.Handle(w, r, storeError("get board", err))
		return
	}
	common.RespondJSON(w, http.StatusOK, rec)
}

// PutBoard handles PUT /boards/{boardID}. The path id wins over any id in
// the body and the update time is stamped here.
func (h *StoreHandler) PutBoard(w http.ResponseWriter, r *http.Request) {
	var rec board.Record
	if err := common.ParseJSONBody(r, &rec, common.DefaultMaxBodyBytes); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	rec.ID = chi.URLParam(r, "boardID")
	rec.UpdatedAt = h.clock.Now().UTC()
	if rec.Nodes == nil {
		rec.Nodes = []board.Node{}
	}
	if rec.Edges == nil {
		rec.Edges = []board.Edge{}
	}
	if err := rec.Snapshot().Validate(); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if err := h.store.Put(r.Context(), rec); err != nil {
		h.errors.Handle(w, r, storeError("put board", err))
		return
	}
	h.logger.Info("Board stored",
		zap.String("boardId", rec.ID),
		zap.Int("nodes", len(rec.Nodes)),
		zap.Int("edges", len(rec.Edges)),
	)
	common.RespondJSON(w, http.StatusOK, rec.Summarize())
}

func storeError(op string, err error) error {
	if pkgerrors.IsAppError(err) {
		return err
	}
	return pkgerrors.NewPersistenceError(op, err)
}
