// Package handler exposes the board engine over HTTP for the display
// frontend: a full board snapshot plus the staff mutations (actions,
// mark-paid, drag reorder, rank reset).
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"foodtruck-kds/internal/board"
	"foodtruck-kds/internal/commands"
	"foodtruck-kds/internal/domain"
	"foodtruck-kds/internal/fsm"
	"foodtruck-kds/internal/reorder"
)

// BoardService is the slice of the engine the HTTP surface needs.
type BoardService interface {
	Snapshot(ctx context.Context) board.View
	Dispatch(ctx context.Context, orderID string, action domain.Action) error
	MarkPaid(ctx context.Context, orderID, method string) error
	Reorder(ctx context.Context, group domain.Bucket, sourceID, targetID string, edge reorder.Edge) []string
	ResetRank(ctx context.Context, group domain.Bucket)
}

type BoardHandler struct {
	service BoardService
}

func NewBoardHandler(svc BoardService) *BoardHandler {
	return &BoardHandler{service: svc}
}

// Register wires all board routes onto the mux.
func (h *BoardHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /board", h.GetBoard)
	mux.HandleFunc("POST /orders/{order_id}/actions", h.PostAction)
	mux.HandleFunc("POST /orders/{order_id}/mark-paid", h.PostMarkPaid)
	mux.HandleFunc("POST /board/reorder", h.PostReorder)
	mux.HandleFunc("POST /board/reset-rank", h.PostResetRank)
}

func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Snapshot(r.Context()))
}

type actionRequest struct {
	Action string `json:"action"`
}

func (h *BoardHandler) PostAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("order_id")
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	action, ok := domain.ParseAction(req.Action)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "bad_request", "unknown action: "+req.Action)
		return
	}
	if err := h.service.Dispatch(r.Context(), id, action); err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "action": action})
}

type markPaidRequest struct {
	Method string `json:"method"`
}

func (h *BoardHandler) PostMarkPaid(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("order_id")
	var req markPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if err := h.service.MarkPaid(r.Context(), id, req.Method); err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "paid": true})
}

type reorderRequest struct {
	Group    string `json:"group"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Edge     string `json:"edge"`
}

func (h *BoardHandler) PostReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	group, ok := domain.ParseBucket(req.Group)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "bad_request", "unknown group: "+req.Group)
		return
	}
	edge := reorder.Edge(req.Edge)
	if edge != reorder.EdgeTop && edge != reorder.EdgeBottom {
		writeProblem(w, http.StatusBadRequest, "bad_request", "edge must be top or bottom")
		return
	}
	order := h.service.Reorder(r.Context(), group, req.SourceID, req.TargetID, edge)
	writeJSON(w, http.StatusOK, map[string]any{"group": group, "order": order})
}

type resetRankRequest struct {
	Group string `json:"group"`
}

func (h *BoardHandler) PostResetRank(w http.ResponseWriter, r *http.Request) {
	var req resetRankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	group, ok := domain.ParseBucket(req.Group)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "bad_request", "unknown group: "+req.Group)
		return
	}
	h.service.ResetRank(r.Context(), group)
	writeJSON(w, http.StatusOK, map[string]any{"group": group, "reset": true})
}

// writeDispatchError maps engine and command failures onto problem
// responses the frontend can switch on.
func writeDispatchError(w http.ResponseWriter, err error) {
	var conflict *commands.ConflictError
	var refused *commands.RefusedError
	switch {
	case errors.Is(err, board.ErrUnknownOrder):
		writeProblem(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &conflict):
		writeProblem(w, http.StatusConflict, "conflict", conflict.Error())
	case errors.As(err, &refused):
		writeProblem(w, http.StatusUnprocessableEntity, "transition_refused", refused.Error())
	case errors.Is(err, fsm.ErrIllegalTransition), errors.Is(err, fsm.ErrPaymentRequired), errors.Is(err, board.ErrNotUnpaid):
		writeProblem(w, http.StatusUnprocessableEntity, "transition_refused", err.Error())
	default:
		writeProblem(w, http.StatusBadGateway, "upstream_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, code int, typ, detail string) {
	writeJSON(w, code, map[string]any{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}
