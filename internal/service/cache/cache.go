package cache

import (
	"context"
	"time"

	"CoinPulse/internal/domain/models"
)

// Entry is a cached quote with its absolute expiry. An entry is fresh while now < ExpiresAt.
type Entry struct {
	Quote     models.Quote `json:"quote"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Fresh reports whether the entry may still be served at now.
func (e Entry) Fresh(now time.Time) bool { return now.Before(e.ExpiresAt) }

// EntryStore holds at most one entry per key. Store replaces any existing entry.
type EntryStore interface {
	Load(ctx context.Context, key models.QuoteKey) (Entry, bool, error)
	Store(ctx context.Context, key models.QuoteKey, e Entry) error
}
