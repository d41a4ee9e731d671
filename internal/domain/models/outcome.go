package models

import "time"

const (
	// StatusOK and StatusUpstreamFailure are the caller-visible outcomes recorded per request.
	StatusOK              = 200
	StatusUpstreamFailure = 502

	// UpstreamNotAttempted is recorded when no HTTP status was obtained from upstream.
	UpstreamNotAttempted = -1
)

// OutcomeRecord is the audit entry written once per served quote request.
// Records are append-only and never modified after creation.
type OutcomeRecord struct {
	ID                string            `json:"id"`
	Timestamp         time.Time         `json:"ts"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	Asset             string            `json:"asset"`
	Currency          string            `json:"currency"`
	CacheHit          bool              `json:"cache_hit"`
	UpstreamLatencyMs int64             `json:"upstream_latency_ms"`
	UpstreamStatus    int               `json:"upstream_status"`
	Status            int               `json:"status"`
	Quote             *Quote            `json:"quote,omitempty"`
	Error             string            `json:"error,omitempty"`
	ServerLatencyMs   int64             `json:"server_latency_ms"`
	Provider          string            `json:"provider"`
	Endpoint          string            `json:"endpoint"`
	AppVersion        string            `json:"app_version"`
}

// Failed reports whether the record counts against the error rate.
func (r OutcomeRecord) Failed() bool { return r.Status != StatusOK }

func (r OutcomeRecord) Key() QuoteKey { return QuoteKey{Asset: r.Asset, Currency: r.Currency} }
