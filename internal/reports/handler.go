package reports

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

// Handler wires HTTP endpoints for reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales", h.sales)
}

type salesResponse struct {
	Success bool `json:"success"`
	SalesReport
}

func (h *Handler) sales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := SalesQuery{Period: Period(q.Get("period")), UserID: q.Get("userId")}
	var err error
	if query.StartDate, err = httpx.QueryDate(q, "startDate"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if query.EndDate, err = httpx.QueryDate(q, "endDate"); err != nil {
		httpx.RespondError(w, err)
		return
	}

	report, err := h.service.Sales(r.Context(), query)
	if err != nil {
		if httpx.StatusOf(err) >= http.StatusInternalServerError {
			h.logger.Error("sales report", slog.Any("error", err))
			httpx.Error(w, http.StatusInternalServerError, "reports: report unavailable")
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, salesResponse{Success: true, SalesReport: report})
}
