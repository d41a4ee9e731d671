package cache

import (
	"context"
	"errors"
	"time"

	"CoinPulse/internal/domain/models"
	pkgcache "CoinPulse/pkg/cache"
)

// RedisStore keeps entries in a shared cache.Service so replicas see the same
// quotes. The key TTL is set to the entry's remaining lifetime.
type RedisStore struct {
	svc pkgcache.Service
	now func() time.Time
}

func NewRedisStore(svc pkgcache.Service) *RedisStore {
	return &RedisStore{svc: svc, now: time.Now}
}

func quoteKey(key models.QuoteKey) string {
	return pkgcache.GenerateKey("quote", key.Asset, key.Currency)
}

func (s *RedisStore) Load(ctx context.Context, key models.QuoteKey) (Entry, bool, error) {
	var e Entry
	if err := s.svc.Get(ctx, quoteKey(key), &e); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

func (s *RedisStore) Store(ctx context.Context, key models.QuoteKey, e Entry) error {
	ttl := e.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.svc.Set(ctx, quoteKey(key), e, ttl)
}
