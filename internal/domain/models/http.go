package models

import "time"

// QuoteRequest is the caller input for a quote lookup. Metadata carries opaque
// requester tags (device model, SDK, client IP, channel).
type QuoteRequest struct {
	Coin     string            `query:"coin" json:"coin"`
	Vs       string            `query:"vs" json:"vs"`
	Metadata map[string]string `query:"-" json:"-"`
}

// QuoteResponse is the quote payload returned to callers.
type QuoteResponse struct {
	Coin         string     `json:"coin"`
	Vs           string     `json:"vs"`
	Price        float64    `json:"price"`
	Change24hPct float64    `json:"change24h_pct"`
	Volatility   Volatility `json:"volatility"`
	AsOf         time.Time  `json:"asOf"`
}

// NewQuoteResponse renders a quote for the caller.
func NewQuoteResponse(q Quote) QuoteResponse {
	return QuoteResponse{
		Coin:         q.Asset,
		Vs:           q.Currency,
		Price:        q.Price,
		Change24hPct: q.Change24hPct,
		Volatility:   q.Volatility,
		AsOf:         q.ObservedAt,
	}
}

// DashboardRequest selects the snapshot window. Zero or missing means the
// configured dashboard window.
type DashboardRequest struct {
	WindowHours int `query:"window_hours" validate:"gte=0,lte=720"`
}

type QuoteStreamRequest struct {
	Coin       string `query:"coin" validate:"required"`
	Vs         string `query:"vs" validate:"required"`
	IntervalMs int    `query:"interval_ms" validate:"omitempty,gte=1000,lte=3600000"`
}

// ErrorResponse is the structured error body for quote endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
