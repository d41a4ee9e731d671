package api

import (
	"context"
	"net/http"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/usecase"
	xhttp "CoinPulse/pkg/http"
	xlogger "CoinPulse/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	minStreamInterval = time.Second
	streamWriteWait   = 5 * time.Second
)

// StreamFrame is one message pushed on the quote stream.
type StreamFrame struct {
	Type  string                `json:"type"` // "quote" | "error"
	Quote *models.QuoteResponse `json:"quote,omitempty"`
	Error *xhttp.ErrorBody      `json:"error,omitempty"`
}

// QuoteStreamHandler pushes a quote for one pair at a fixed interval over a
// WebSocket. Every push is served through QuoteService and recorded.
type QuoteStreamHandler struct {
	logger   *xlogger.Logger
	svc      *usecase.QuoteService
	upgrader websocket.Upgrader
}

func NewQuoteStreamHandler(logger *xlogger.Logger, svc *usecase.QuoteService) *QuoteStreamHandler {
	return &QuoteStreamHandler{
		logger: logger,
		svc:    svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *QuoteStreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/quote/stream", h.Stream)
}

func (h *QuoteStreamHandler) Stream(c echo.Context) error {
	req := &models.QuoteStreamRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	// refuse to upgrade for a pair that could never be served
	if !models.NewQuoteKey(req.Coin, req.Vs).Valid() {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_REQUIRED",
			Field:   "coin",
			Message: "coin and vs are required",
		}})
	}

	interval := h.svc.TTL()
	if req.IntervalMs > 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
	}
	if interval < minStreamInterval {
		interval = minStreamInterval
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("quote stream: upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	metadata := requestMetadata(c, "ws")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// drain client frames so close and ping control messages are processed
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := h.push(ctx, conn, req, metadata); err != nil {
			h.logger.Debug("quote stream: closed", xlogger.Error(err))
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (h *QuoteStreamHandler) push(ctx context.Context, conn *websocket.Conn, req *models.QuoteStreamRequest, metadata map[string]string) error {
	resp, err := h.svc.GetQuote(ctx, models.QuoteRequest{Coin: req.Coin, Vs: req.Vs, Metadata: metadata})
	if ctx.Err() != nil {
		return ctx.Err()
	}

	frame := StreamFrame{Type: "quote", Quote: &resp}
	if err != nil {
		appErr := toAppError(err)
		frame = StreamFrame{Type: "error", Error: &xhttp.ErrorBody{Error: appErr.Message, Code: appErr.Code}}
	}

	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}
