package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"CoinPulse/internal/domain/models"
)

type fakeSource struct {
	calls  atomic.Int32
	price  float64
	change float64
	err    error
	delay  time.Duration
}

func (f *fakeSource) FetchQuote(ctx context.Context, key models.QuoteKey) (models.Quote, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return models.Quote{}, f.err
	}
	return models.NewQuote(key, f.price+float64(n-1), f.change, time.Now()), nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *clock { return &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)} }

func TestReadThroughHitWithinTTL(t *testing.T) {
	src := &fakeSource{price: 67000.5, change: 1.3}
	clk := newClock()
	c := NewReadThrough(NewShardedStore(4), src, WithClock(clk.Now))
	key := models.NewQuoteKey("bitcoin", "usd")

	q1, hit, err := c.GetQuote(context.Background(), key, 15*time.Second)
	if err != nil || hit {
		t.Fatalf("first lookup: hit=%v err=%v", hit, err)
	}

	clk.Advance(14 * time.Second)
	q2, hit, err := c.GetQuote(context.Background(), key, 15*time.Second)
	if err != nil || !hit {
		t.Fatalf("second lookup: hit=%v err=%v", hit, err)
	}
	if q1 != q2 {
		t.Fatalf("cached quote differs: %+v vs %+v", q1, q2)
	}
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("upstream calls = %d, want 1", got)
	}
}

func TestReadThroughExpiresAtTTL(t *testing.T) {
	src := &fakeSource{price: 100}
	clk := newClock()
	c := NewReadThrough(NewShardedStore(4), src, WithClock(clk.Now))
	key := models.NewQuoteKey("ethereum", "eur")

	if _, _, err := c.GetQuote(context.Background(), key, 10*time.Second); err != nil {
		t.Fatalf("first lookup: %v", err)
	}

	// now == ExpiresAt is already stale
	clk.Advance(10 * time.Second)
	q, hit, err := c.GetQuote(context.Background(), key, 10*time.Second)
	if err != nil || hit {
		t.Fatalf("expected miss at expiry, hit=%v err=%v", hit, err)
	}
	if q.Price != 101 {
		t.Fatalf("expected refreshed quote, got price %v", q.Price)
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("upstream calls = %d, want 2", got)
	}
}

func TestReadThroughFailureNotCached(t *testing.T) {
	src := &fakeSource{err: &models.UpstreamError{Kind: models.UpstreamBadStatus, Status: 500}}
	store := NewShardedStore(4)
	c := NewReadThrough(store, src)
	key := models.NewQuoteKey("bitcoin", "usd")

	res, err := c.Lookup(context.Background(), key, time.Minute)
	ue, ok := models.AsUpstreamError(err)
	if !ok || ue.Kind != models.UpstreamBadStatus || ue.Status != 500 {
		t.Fatalf("expected BadStatus(500), got %v", err)
	}
	if res.Hit || res.UpstreamStatus != 500 {
		t.Fatalf("unexpected lookup result %+v", res)
	}
	if store.Len() != 0 {
		t.Fatalf("failure must not be cached")
	}

	if _, _, err := c.GetQuote(context.Background(), key, time.Minute); err == nil {
		t.Fatalf("expected second failure")
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("upstream calls = %d, want 2", got)
	}
}

// blockingSource waits for the caller's context, as a slow upstream would.
type blockingSource struct{ calls atomic.Int32 }

func (b *blockingSource) FetchQuote(ctx context.Context, _ models.QuoteKey) (models.Quote, error) {
	b.calls.Add(1)
	<-ctx.Done()
	return models.Quote{}, &models.UpstreamError{Kind: models.UpstreamCancelled, Status: models.UpstreamNotAttempted, Err: ctx.Err()}
}

func seedExpired(t *testing.T, store *ShardedStore, clk *clock, key models.QuoteKey) Entry {
	t.Helper()
	stale := Entry{
		Quote:     models.NewQuote(key, 42000, 0.4, clk.Now().Add(-time.Minute)),
		ExpiresAt: clk.Now().Add(-time.Second),
	}
	if err := store.Store(context.Background(), key, stale); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return stale
}

func TestReadThroughCancelledFetchNotWritten(t *testing.T) {
	clk := newClock()
	store := NewShardedStore(4)
	key := models.NewQuoteKey("bitcoin", "usd")
	stale := seedExpired(t, store, clk, key)
	src := &blockingSource{}
	c := NewReadThrough(store, src, WithClock(clk.Now))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	res, err := c.Lookup(ctx, key, time.Minute)

	ue, ok := models.AsUpstreamError(err)
	if !ok || ue.Kind != models.UpstreamCancelled {
		t.Fatalf("expected Cancelled, got %v", err)
	}
	if res.Hit || res.UpstreamStatus != models.UpstreamNotAttempted {
		t.Fatalf("expired entry must not be served: %+v", res)
	}
	e, ok, _ := store.Load(context.Background(), key)
	if !ok || e != stale {
		t.Fatalf("cancelled fetch overwrote the entry: %+v", e)
	}
	if src.calls.Load() != 1 {
		t.Fatalf("upstream calls = %d, want 1", src.calls.Load())
	}
}

func TestReadThroughFailureKeepsStaleEntryUnserved(t *testing.T) {
	clk := newClock()
	store := NewShardedStore(4)
	key := models.NewQuoteKey("ethereum", "usd")
	stale := seedExpired(t, store, clk, key)
	src := &fakeSource{err: &models.UpstreamError{Kind: models.UpstreamUnreachable, Status: models.UpstreamNotAttempted, Err: errors.New("dial tcp: connection refused")}}
	c := NewReadThrough(store, src, WithClock(clk.Now))

	for i := 0; i < 2; i++ {
		if _, hit, err := c.GetQuote(context.Background(), key, time.Minute); err == nil || hit {
			t.Fatalf("lookup #%d: hit=%v err=%v, want unserved failure", i, hit, err)
		}
	}
	e, ok, _ := store.Load(context.Background(), key)
	if !ok || e != stale || store.Len() != 1 {
		t.Fatalf("stale entry must remain untouched: %+v", e)
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("upstream calls = %d, want 2", got)
	}
}

type brokenStore struct{ stores atomic.Int32 }

func (b *brokenStore) Load(context.Context, models.QuoteKey) (Entry, bool, error) {
	return Entry{}, false, errors.New("connection refused")
}

func (b *brokenStore) Store(context.Context, models.QuoteKey, Entry) error {
	b.stores.Add(1)
	return errors.New("connection refused")
}

func TestReadThroughStoreErrorsAreMisses(t *testing.T) {
	src := &fakeSource{price: 5}
	store := &brokenStore{}
	c := NewReadThrough(store, src)

	res, err := c.Lookup(context.Background(), models.NewQuoteKey("solana", "usd"), time.Minute)
	if err != nil {
		t.Fatalf("store errors must not fail the lookup: %v", err)
	}
	if res.Hit || res.Quote.Price != 5 || res.UpstreamStatus != 200 {
		t.Fatalf("unexpected result %+v", res)
	}
	if store.stores.Load() != 1 {
		t.Fatalf("expected one store attempt")
	}
}

func TestReadThroughConcurrentMisses(t *testing.T) {
	src := &fakeSource{price: 1, delay: 20 * time.Millisecond}
	store := NewShardedStore(4)
	c := NewReadThrough(store, src)
	key := models.NewQuoteKey("bitcoin", "usd")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, hit, err := c.GetQuote(context.Background(), key, time.Minute); err != nil || hit {
				t.Errorf("concurrent lookup: hit=%v err=%v", hit, err)
			}
		}()
	}
	wg.Wait()

	if got := src.calls.Load(); got != 2 {
		t.Fatalf("upstream calls = %d, want 2", got)
	}
	e, ok, _ := store.Load(context.Background(), key)
	if !ok || (e.Quote.Price != 1 && e.Quote.Price != 2) {
		t.Fatalf("expected exactly one of the fetched quotes cached, got %+v", e)
	}
	if store.Len() != 1 {
		t.Fatalf("store len = %d, want 1", store.Len())
	}
}
