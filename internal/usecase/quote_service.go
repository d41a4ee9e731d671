package usecase

import (
	"context"
	"maps"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/internal/service/coingecko"
	"CoinPulse/pkg/logger"

	"github.com/google/uuid"
)

const DefaultQuoteTTL = 15 * time.Second

// QuoteService serves caller quote requests through the read-through cache and
// records exactly one outcome per served request. Validation failures are not served.
type QuoteService struct {
	cache      domrepo.QuoteCache
	recorder   domrepo.OutcomeRecorder
	metrics    domrepo.Metrics
	log        *logger.Logger
	ttl        time.Duration
	appVersion string
	now        func() time.Time
	newID      func() string
}

type QuoteServiceOption func(*QuoteService)

func WithTTL(ttl time.Duration) QuoteServiceOption {
	return func(s *QuoteService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithAppVersion(v string) QuoteServiceOption {
	return func(s *QuoteService) { s.appVersion = v }
}

func WithServiceClock(now func() time.Time) QuoteServiceOption {
	return func(s *QuoteService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewQuoteService(cache domrepo.QuoteCache, recorder domrepo.OutcomeRecorder, metrics domrepo.Metrics, log *logger.Logger, opts ...QuoteServiceOption) *QuoteService {
	s := &QuoteService{
		cache:    cache,
		recorder: recorder,
		metrics:  metrics,
		log:      log,
		ttl:      DefaultQuoteTTL,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the cache lifetime applied to fetched quotes.
func (s *QuoteService) TTL() time.Duration { return s.ttl }

// GetQuote validates the request, looks the pair up and records the outcome.
// Errors are *models.ValidationError (nothing recorded) or *models.UpstreamError.
func (s *QuoteService) GetQuote(ctx context.Context, req models.QuoteRequest) (models.QuoteResponse, error) {
	start := s.now()

	key := models.NewQuoteKey(req.Coin, req.Vs)
	if !key.Valid() {
		s.metrics.RecordQuoteRequest("invalid")
		return models.QuoteResponse{}, &models.ValidationError{Field: "coin", Message: "coin and vs are required"}
	}

	res, err := s.cache.Lookup(ctx, key, s.ttl)

	rec := models.OutcomeRecord{
		ID:             s.newID(),
		Metadata:       maps.Clone(req.Metadata),
		Asset:          key.Asset,
		Currency:       key.Currency,
		CacheHit:       res.Hit,
		UpstreamStatus: models.UpstreamNotAttempted,
		Provider:       coingecko.Provider,
		Endpoint:       coingecko.PriceEndpoint,
		AppVersion:     s.appVersion,
	}
	if !res.Hit {
		rec.UpstreamLatencyMs = res.UpstreamLatency.Milliseconds()
		rec.UpstreamStatus = res.UpstreamStatus
	}

	if err != nil {
		rec.Status = models.StatusUpstreamFailure
		rec.Error = err.Error()
		s.finish(&rec, start)
		s.recorder.Record(rec)

		kind := "error"
		if ue, ok := models.AsUpstreamError(err); ok {
			kind = string(ue.Kind)
		}
		s.metrics.RecordQuoteRequest("upstream_error")
		s.metrics.RecordError("upstream_" + kind)
		s.log.Warn("quote: upstream failure",
			logger.String("asset", key.Asset),
			logger.String("currency", key.Currency),
			logger.Int("upstream_status", rec.UpstreamStatus),
			logger.Error(err),
		)
		return models.QuoteResponse{}, err
	}

	q := res.Quote
	rec.Status = models.StatusOK
	rec.Quote = &q
	s.finish(&rec, start)
	s.recorder.Record(rec)

	if res.Hit {
		s.metrics.RecordQuoteRequest("hit")
	} else {
		s.metrics.RecordQuoteRequest("miss")
	}
	return models.NewQuoteResponse(q), nil
}

// finish stamps the record when it is handed to the logger, so ts orders the
// recent feed by completion.
func (s *QuoteService) finish(rec *models.OutcomeRecord, start time.Time) {
	done := s.now()
	rec.Timestamp = done.UTC()
	rec.ServerLatencyMs = done.Sub(start).Milliseconds()
}
