package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
)

// MemoryAuditStore is an in-process AuditStore for development and tests.
// Records are kept in append order and never modified. Appending a record whose
// ID is already stored is a no-op, so redelivered records are counted once.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	records []models.OutcomeRecord
	ids     map[string]struct{}
}

var _ domrepo.AuditStore = (*MemoryAuditStore)(nil)

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{ids: make(map[string]struct{})}
}

func (s *MemoryAuditStore) Append(ctx context.Context, rec models.OutcomeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID != "" {
		if s.ids == nil {
			s.ids = make(map[string]struct{})
		}
		if _, dup := s.ids[rec.ID]; dup {
			return nil
		}
		s.ids[rec.ID] = struct{}{}
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryAuditStore) window(since time.Time) []models.OutcomeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.OutcomeRecord, 0, len(s.records))
	for _, r := range s.records {
		if !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out
}

func (s *MemoryAuditStore) TopAssets(_ context.Context, since time.Time, limit int) ([]models.AssetCount, error) {
	counts := map[string]int64{}
	for _, r := range s.window(since) {
		counts[r.Asset]++
	}
	out := make([]models.AssetCount, 0, len(counts))
	for asset, c := range counts {
		out = append(out, models.AssetCount{Asset: asset, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Asset < out[j].Asset
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryAuditStore) AvgLatencyByAsset(_ context.Context, since time.Time) ([]models.AssetLatency, error) {
	type acc struct {
		sum int64
		n   int64
	}
	by := map[string]*acc{}
	for _, r := range s.window(since) {
		if r.CacheHit {
			continue
		}
		a, ok := by[r.Asset]
		if !ok {
			a = &acc{}
			by[r.Asset] = a
		}
		a.sum += r.UpstreamLatencyMs
		a.n++
	}
	out := make([]models.AssetLatency, 0, len(by))
	for asset, a := range by {
		out = append(out, models.AssetLatency{Asset: asset, AvgLatencyMs: float64(a.sum) / float64(a.n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

func (s *MemoryAuditStore) CountOutcomes(_ context.Context, since time.Time) (int64, int64, error) {
	var total, failed int64
	for _, r := range s.window(since) {
		total++
		if r.Failed() {
			failed++
		}
	}
	return total, failed, nil
}

func (s *MemoryAuditStore) Recent(_ context.Context, since time.Time, limit int) ([]models.OutcomeRecord, error) {
	out := s.window(since)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *MemoryAuditStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryAuditStore) Health(context.Context) error { return nil }

func (s *MemoryAuditStore) Close() error { return nil }
