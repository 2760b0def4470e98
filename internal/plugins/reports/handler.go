package reports

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler serves the reporting API.
type Handler struct {
	service Service
}

// NewHandler creates a new reports handler.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Summary returns aggregated metrics (GET /api/reports/summary?from=&to=).
func (h *Handler) Summary(c echo.Context) error {
	summary, err := h.service.Summary(c.Request().Context(), c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"summary": summary})
}
