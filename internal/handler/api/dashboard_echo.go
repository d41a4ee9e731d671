package api

import (
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/usecase"
	xhttp "CoinPulse/pkg/http"
	xlogger "CoinPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DashboardEchoHandler serves aggregated audit statistics. Its requests are never recorded.
type DashboardEchoHandler struct {
	logger *xlogger.Logger
	agg    *usecase.DashboardAggregator
}

func NewDashboardEchoHandler(logger *xlogger.Logger, agg *usecase.DashboardAggregator) *DashboardEchoHandler {
	return &DashboardEchoHandler{logger: logger, agg: agg}
}

func (h *DashboardEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/dashboard", h.Dashboard)
}

func (h *DashboardEchoHandler) Dashboard(c echo.Context) error {
	req := &models.DashboardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap, err := h.agg.Snapshot(c.Request().Context(), time.Duration(req.WindowHours)*time.Hour)
	if err != nil {
		h.logger.Error("dashboard snapshot error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, snap)
}
