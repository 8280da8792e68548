package activity

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

// Lister is the read side the handler depends on.
type Lister interface {
	List(ctx context.Context, filter Filter) (Page, error)
	Export(ctx context.Context, filter Filter) ([]Entry, error)
}

// Handler wires HTTP endpoints for the activity log.
type Handler struct {
	logger  *slog.Logger
	service Lister
}

// NewHandler constructs activity handler.
func NewHandler(logger *slog.Logger, service Lister) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers activity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/export", h.export)
}

type listResponse struct {
	Success bool `json:"success"`
	Page
}

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	filter := Filter{
		UserID:        q.Get("userId"),
		Action:        q.Get("action"),
		TargetUserID:  q.Get("targetUserId"),
		ProductID:     q.Get("productId"),
		TransactionID: q.Get("transactionId"),
	}
	var err error
	if filter.Page, err = httpx.QueryInt(q, "page"); err != nil {
		return Filter{}, err
	}
	if filter.Limit, err = httpx.QueryInt(q, "limit"); err != nil {
		return Filter{}, err
	}
	if filter.From, err = httpx.QueryDate(q, "startDate"); err != nil {
		return Filter{}, err
	}
	if filter.To, err = httpx.QueryDate(q, "endDate"); err != nil {
		return Filter{}, err
	}
	return filter, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		if httpx.StatusOf(err) >= http.StatusInternalServerError {
			h.logger.Error("list activity logs", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Page: page})
}

var exportHeader = []string{"Timestamp", "Action", "User Email", "Details", "Transaction ID", "Product ID", "Changes"}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.Export(r.Context(), filter)
	if err != nil {
		if httpx.StatusOf(err) >= http.StatusInternalServerError {
			h.logger.Error("export activity logs", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=activity-logs-%s.csv", time.Now().UTC().Format("2006-01-02")))
	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for _, e := range entries {
		changes := "{}"
		if e.Changes != nil {
			if raw, err := json.Marshal(e.Changes); err == nil {
				changes = string(raw)
			}
		}
		_ = cw.Write([]string{
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.Action,
			e.UserEmail,
			e.Details,
			e.TransactionID,
			e.ProductID,
			changes,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Warn("write activity export", slog.Any("error", err))
	}
}
