package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/repository"
)

func TestErrorRate(t *testing.T) {
	if got := ErrorRate(0, 0); got != 0 {
		t.Fatalf("empty window rate = %v, want 0", got)
	}
	if got := ErrorRate(3, 1); math.Abs(got-33.333333) > 1e-4 {
		t.Fatalf("rate = %v", got)
	}
}

func seedStore(t *testing.T, now time.Time) *repository.MemoryAuditStore {
	t.Helper()
	s := repository.NewMemoryAuditStore()
	add := func(asset string, age time.Duration, hit bool, latency int64, status int) {
		err := s.Append(context.Background(), models.OutcomeRecord{
			ID:                fmt.Sprintf("%s-%d", asset, age),
			Timestamp:         now.Add(-age),
			Asset:             asset,
			Currency:          "usd",
			CacheHit:          hit,
			UpstreamLatencyMs: latency,
			Status:            status,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	add("bitcoin", time.Minute, false, 120, 200)
	add("bitcoin", 2*time.Minute, true, 0, 200)
	add("ethereum", 3*time.Minute, false, 80, 502)
	add("ethereum", 4*time.Minute, false, 40, 200)
	add("solana", 5*time.Minute, true, 0, 200)
	add("cardano", 30*time.Hour, false, 10, 502)
	return s
}

func TestSnapshot(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	a := NewDashboardAggregator(seedStore(t, now))
	a.now = func() time.Time { return now }

	snap, err := a.Snapshot(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.WindowStart.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("window start = %v", snap.WindowStart)
	}
	if len(snap.TopAssets) != 3 || snap.TopAssets[0].Asset != "bitcoin" || snap.TopAssets[1].Asset != "ethereum" {
		t.Fatalf("top assets = %+v", snap.TopAssets)
	}
	if len(snap.AvgLatencyByAsset) != 2 || snap.AvgLatencyByAsset[0].Asset != "bitcoin" ||
		snap.AvgLatencyByAsset[1].AvgLatencyMs != 60 {
		t.Fatalf("latency = %+v", snap.AvgLatencyByAsset)
	}
	if snap.Total != 5 || snap.Failed != 1 || snap.ErrorRatePct != 20 || snap.ErrorRateDisplay != "20.00%" {
		t.Fatalf("error rate = %d/%d %v %s", snap.Failed, snap.Total, snap.ErrorRatePct, snap.ErrorRateDisplay)
	}
	if len(snap.Recent) != 5 || snap.Recent[0].Asset != "bitcoin" || snap.Recent[4].Asset != "solana" {
		t.Fatalf("recent = %+v", snap.Recent)
	}
}

func TestSnapshotEmptyWindow(t *testing.T) {
	a := NewDashboardAggregator(repository.NewMemoryAuditStore())
	snap, err := a.Snapshot(context.Background(), 0)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.ErrorRatePct != 0 || snap.ErrorRateDisplay != "0.00%" || len(snap.TopAssets) != 0 {
		t.Fatalf("unexpected empty snapshot %+v", snap)
	}
}

func TestSnapshotTopAssetsLimitAndTies(t *testing.T) {
	s := repository.NewMemoryAuditStore()
	now := time.Now().UTC()
	for i := 0; i < 12; i++ {
		asset := fmt.Sprintf("coin-%02d", 11-i)
		_ = s.Append(context.Background(), models.OutcomeRecord{ID: asset, Asset: asset, Timestamp: now, Status: 200})
	}
	snap, err := NewDashboardAggregator(s).Snapshot(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.TopAssets) != models.TopAssetsLimit {
		t.Fatalf("top len = %d", len(snap.TopAssets))
	}
	for i, ac := range snap.TopAssets {
		if want := fmt.Sprintf("coin-%02d", i); ac.Asset != want {
			t.Fatalf("top[%d] = %s, want %s", i, ac.Asset, want)
		}
	}
}

type unsortedQuery struct {
	repository.MemoryAuditStore
	failRecent bool
}

func (q *unsortedQuery) TopAssets(context.Context, time.Time, int) ([]models.AssetCount, error) {
	return []models.AssetCount{{Asset: "z", Count: 1}, {Asset: "b", Count: 3}, {Asset: "a", Count: 3}}, nil
}

func (q *unsortedQuery) Recent(ctx context.Context, since time.Time, limit int) ([]models.OutcomeRecord, error) {
	if q.failRecent {
		return nil, errors.New("connection reset")
	}
	return q.MemoryAuditStore.Recent(ctx, since, limit)
}

func TestSnapshotReordersStoreResults(t *testing.T) {
	snap, err := NewDashboardAggregator(&unsortedQuery{}).Snapshot(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	got := []string{snap.TopAssets[0].Asset, snap.TopAssets[1].Asset, snap.TopAssets[2].Asset}
	if got[0] != "a" || got[1] != "b" || got[2] != "z" {
		t.Fatalf("order = %v", got)
	}
}

func TestSnapshotSinkFailure(t *testing.T) {
	_, err := NewDashboardAggregator(&unsortedQuery{failRecent: true}).Snapshot(context.Background(), time.Hour)
	var se *models.SinkError
	if !errors.As(err, &se) || se.Op != "recent" {
		t.Fatalf("expected SinkError(recent), got %v", err)
	}
}

func TestSnapshotUsesConfiguredDefaultWindow(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	a := NewDashboardAggregator(seedStore(t, now), WithDashboardWindow(48*time.Hour))
	a.now = func() time.Time { return now }

	snap, err := a.Snapshot(context.Background(), 0)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.WindowStart.Equal(now.Add(-48*time.Hour)) || snap.Total != 6 {
		t.Fatalf("window start = %v total = %d, want 48h window with the 30h-old record", snap.WindowStart, snap.Total)
	}

	snap, _ = a.Snapshot(context.Background(), 24*time.Hour)
	if snap.Total != 5 {
		t.Fatalf("explicit window must override the default, total = %d", snap.Total)
	}

	if NewDashboardAggregator(seedStore(t, now), WithDashboardWindow(0)).DefaultWindow() != DefaultDashboardWindow {
		t.Fatalf("non-positive window must keep the default")
	}
}
