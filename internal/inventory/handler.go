package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

// Handler wires HTTP endpoints for inventory reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/summary", h.summary)
	r.Get("/low-stock", h.lowStock)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.logger.Error("inventory summary", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "inventory: report unavailable")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "summary": summary})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStock(r.Context())
	if err != nil {
		h.logger.Error("inventory low stock", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "inventory: report unavailable")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "items": items, "count": len(items)})
}
