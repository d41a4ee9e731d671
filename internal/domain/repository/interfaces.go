package repository

import (
	"context"
	"time"

	"CoinPulse/internal/domain/models"
)

// PriceSource fetches a fresh quote from the upstream provider.
// Implementations return *models.UpstreamError on failure.
type PriceSource interface {
	FetchQuote(ctx context.Context, key models.QuoteKey) (models.Quote, error)
}

// QuoteCache is the read-through cache in front of a PriceSource.
type QuoteCache interface {
	GetQuote(ctx context.Context, key models.QuoteKey, ttl time.Duration) (q models.Quote, hit bool, err error)
	// Lookup is GetQuote with upstream timing and status attached.
	Lookup(ctx context.Context, key models.QuoteKey, ttl time.Duration) (models.QuoteLookup, error)
}

// OutcomeRecorder accepts one record per served quote request. The returned channel
// receives the append result once; callers are free to ignore it.
type OutcomeRecorder interface {
	Record(rec models.OutcomeRecord) <-chan error
}

// AuditSink appends outcome records. It never updates or deletes.
type AuditSink interface {
	Append(ctx context.Context, rec models.OutcomeRecord) error
	Close() error
}

// AuditQuery answers the read-only questions the dashboard asks of the audit log.
type AuditQuery interface {
	TopAssets(ctx context.Context, since time.Time, limit int) ([]models.AssetCount, error)
	AvgLatencyByAsset(ctx context.Context, since time.Time) ([]models.AssetLatency, error)
	CountOutcomes(ctx context.Context, since time.Time) (total, failed int64, err error)
	Recent(ctx context.Context, since time.Time, limit int) ([]models.OutcomeRecord, error)
}

// AuditStore is a sink that can also be queried.
type AuditStore interface {
	AuditSink
	AuditQuery
	Health(ctx context.Context) error
}

type Metrics interface {
	RecordQuoteRequest(result string)
	RecordCacheLookup(hit bool)
	RecordUpstreamLatency(outcome string, seconds float64)
	RecordLastPrice(asset, currency string, price float64)
	RecordAuditAppend(result string)
	RecordAuditDropped()
	RecordError(kind string)
}
