package transactions

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

// Recorder is the service surface the handler depends on.
type Recorder interface {
	Record(ctx context.Context, req Request) (Result, error)
	Get(ctx context.Context, id string) (Transaction, error)
	List(ctx context.Context, filter Filter) (Page, error)
}

// Handler wires HTTP endpoints for the transaction recorder.
type Handler struct {
	logger  *slog.Logger
	service Recorder
}

// NewHandler constructs transactions handler.
func NewHandler(logger *slog.Logger, service Recorder) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers transaction routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.record)
	r.Get("/{id}", h.get)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")

	result, err := h.service.Record(r.Context(), req)
	if err != nil {
		h.fail(w, "record transaction", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	txn, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "transaction": txn})
}

type listResponse struct {
	Success bool `json:"success"`
	Page
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{Type: Type(q.Get("type")), UserID: q.Get("userId")}
	var err error
	if filter.Page, err = httpx.QueryInt(q, "page"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.Limit, err = httpx.QueryInt(q, "limit"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.From, err = httpx.QueryDate(q, "startDate"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = httpx.QueryDate(q, "endDate"); err != nil {
		httpx.RespondError(w, err)
		return
	}

	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Page: page})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusOf(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
