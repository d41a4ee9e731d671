package cache

import (
	"context"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
)

// ReadThrough serves fresh entries from its store and fetches from the price
// source otherwise. Only successful fetches are written back. Concurrent misses
// for one key each call the source; the last write wins.
type ReadThrough struct {
	store   EntryStore
	source  repository.PriceSource
	now     func() time.Time
	log     *logger.Logger
	metrics repository.Metrics
}

type ReadThroughOption func(*ReadThrough)

// WithClock overrides the time source used for freshness checks.
func WithClock(now func() time.Time) ReadThroughOption {
	return func(c *ReadThrough) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(l *logger.Logger) ReadThroughOption {
	return func(c *ReadThrough) {
		if l != nil {
			c.log = l
		}
	}
}

func WithMetrics(m repository.Metrics) ReadThroughOption {
	return func(c *ReadThrough) {
		if m != nil {
			c.metrics = m
		}
	}
}

func NewReadThrough(store EntryStore, source repository.PriceSource, opts ...ReadThroughOption) *ReadThrough {
	c := &ReadThrough{
		store:   store,
		source:  source,
		now:     time.Now,
		log:     logger.Nop(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ReadThrough) GetQuote(ctx context.Context, key models.QuoteKey, ttl time.Duration) (models.Quote, bool, error) {
	res, err := c.Lookup(ctx, key, ttl)
	if err != nil {
		return models.Quote{}, false, err
	}
	return res.Quote, res.Hit, nil
}

func (c *ReadThrough) Lookup(ctx context.Context, key models.QuoteKey, ttl time.Duration) (models.QuoteLookup, error) {
	e, ok, err := c.store.Load(ctx, key)
	if err != nil {
		c.log.Warn("quote cache: load failed, treating as miss",
			logger.String("key", key.String()),
			logger.Error(err),
		)
	} else if ok && e.Fresh(c.now()) {
		c.metrics.RecordCacheLookup(true)
		return models.QuoteLookup{Quote: e.Quote, Hit: true}, nil
	}
	c.metrics.RecordCacheLookup(false)

	start := time.Now()
	q, err := c.source.FetchQuote(ctx, key)
	latency := time.Since(start)
	if err != nil {
		status := models.UpstreamNotAttempted
		outcome := "error"
		if ue, ok := models.AsUpstreamError(err); ok {
			status = ue.Status
			outcome = string(ue.Kind)
		}
		c.metrics.RecordUpstreamLatency(outcome, latency.Seconds())
		return models.QuoteLookup{UpstreamLatency: latency, UpstreamStatus: status}, err
	}
	c.metrics.RecordUpstreamLatency("ok", latency.Seconds())
	c.metrics.RecordLastPrice(q.Asset, q.Currency, q.Price)

	entry := Entry{Quote: q, ExpiresAt: c.now().Add(ttl)}
	if err := c.store.Store(context.WithoutCancel(ctx), key, entry); err != nil {
		c.log.Warn("quote cache: store failed",
			logger.String("key", key.String()),
			logger.Error(err),
		)
	}

	return models.QuoteLookup{
		Quote:           q,
		UpstreamLatency: latency,
		UpstreamStatus:  200,
	}, nil
}
