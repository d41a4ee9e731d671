package api

import (
	"net/http"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/usecase"
	xhttp "CoinPulse/pkg/http"
	xlogger "CoinPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	HeaderDeviceModel = "X-Device-Model"
	HeaderDeviceSDK   = "X-Device-SDK"
)

// QuoteEchoHandler serves the health probe and single quote lookups.
type QuoteEchoHandler struct {
	logger *xlogger.Logger
	svc    *usecase.QuoteService
}

func NewQuoteEchoHandler(logger *xlogger.Logger, svc *usecase.QuoteService) *QuoteEchoHandler {
	return &QuoteEchoHandler{logger: logger, svc: svc}
}

func (h *QuoteEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)
	g.GET("/quote", h.Quote)
}

func (h *QuoteEchoHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *QuoteEchoHandler) Quote(c echo.Context) error {
	req := models.QuoteRequest{}
	if err := c.Bind(&req); err != nil {
		return xhttp.FlatErrorResponse(c, xhttp.BadRequestError("malformed query"))
	}
	req.Metadata = requestMetadata(c, "http")

	resp, err := h.svc.GetQuote(c.Request().Context(), req)
	if err != nil {
		appErr := toAppError(err)
		if appErr.Status >= http.StatusInternalServerError {
			h.logger.Warn("quote request failed",
				xlogger.String("coin", req.Coin),
				xlogger.String("vs", req.Vs),
				xlogger.String("code", appErr.Code),
			)
		}
		return xhttp.FlatErrorResponse(c, appErr)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.JSON(http.StatusOK, resp)
}

// requestMetadata collects the opaque requester tags stored with each outcome.
func requestMetadata(c echo.Context, channel string) map[string]string {
	md := map[string]string{
		"channel":   channel,
		"client_ip": c.RealIP(),
	}
	if v := c.Request().Header.Get(HeaderDeviceModel); v != "" {
		md["device_model"] = v
	}
	if v := c.Request().Header.Get(HeaderDeviceSDK); v != "" {
		md["device_sdk"] = v
	}
	if v := c.Request().UserAgent(); v != "" {
		md["user_agent"] = v
	}
	return md
}
