package models

import (
	"math"
	"strings"
	"time"
)

// Volatility is a qualitative label for a 24h percentage change.
type Volatility string

const (
	VolatilityCalm     Volatility = "calm"
	VolatilityModerate Volatility = "moderate"
	VolatilityVolatile Volatility = "volatile"
)

const (
	calmThreshold     = 2.0
	moderateThreshold = 5.0
)

// Classify maps a percentage change to a volatility label using its magnitude.
// Upper bounds are exclusive: 2.0 is moderate, 5.0 is volatile.
func Classify(changePct float64) Volatility {
	abs := math.Abs(changePct)
	switch {
	case abs < calmThreshold:
		return VolatilityCalm
	case abs < moderateThreshold:
		return VolatilityModerate
	default:
		return VolatilityVolatile
	}
}

// QuoteKey identifies a cache slot: an asset priced in a currency.
type QuoteKey struct {
	Asset    string
	Currency string
}

// NewQuoteKey builds a key from raw caller input, trimming and lower-casing both parts.
func NewQuoteKey(asset, currency string) QuoteKey {
	return QuoteKey{
		Asset:    strings.ToLower(strings.TrimSpace(asset)),
		Currency: strings.ToLower(strings.TrimSpace(currency)),
	}
}

// Valid reports whether both parts are non-empty.
func (k QuoteKey) Valid() bool { return k.Asset != "" && k.Currency != "" }

func (k QuoteKey) String() string { return k.Asset + "|" + k.Currency }

// Quote is a normalized spot price observation. Treat as immutable.
type Quote struct {
	Asset        string     `json:"asset"`
	Currency     string     `json:"currency"`
	Price        float64    `json:"price"`
	Change24hPct float64    `json:"change24h_pct"`
	Volatility   Volatility `json:"volatility"`
	ObservedAt   time.Time  `json:"observed_at"`
}

// NewQuote builds a quote whose volatility is derived from change24hPct.
func NewQuote(key QuoteKey, price, change24hPct float64, observedAt time.Time) Quote {
	return Quote{
		Asset:        key.Asset,
		Currency:     key.Currency,
		Price:        price,
		Change24hPct: change24hPct,
		Volatility:   Classify(change24hPct),
		ObservedAt:   observedAt,
	}
}

func (q Quote) Key() QuoteKey { return QuoteKey{Asset: q.Asset, Currency: q.Currency} }

// QuoteLookup describes how a cache lookup was served. UpstreamLatency and
// UpstreamStatus are only meaningful when Hit is false.
type QuoteLookup struct {
	Quote           Quote
	Hit             bool
	UpstreamLatency time.Duration
	UpstreamStatus  int
}
