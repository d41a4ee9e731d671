package usecase

import (
	"context"
	"sort"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const DefaultDashboardWindow = 24 * time.Hour

// DashboardAggregator derives snapshots from the audit log on every call. It holds
// no counters of its own and never records outcomes.
type DashboardAggregator struct {
	query         domrepo.AuditQuery
	defaultWindow time.Duration
	now           func() time.Time
}

// DashboardOption configures DashboardAggregator.
type DashboardOption func(*DashboardAggregator)

// WithDashboardWindow sets the window used when a caller passes none.
func WithDashboardWindow(d time.Duration) DashboardOption {
	return func(a *DashboardAggregator) {
		if d > 0 {
			a.defaultWindow = d
		}
	}
}

func NewDashboardAggregator(query domrepo.AuditQuery, opts ...DashboardOption) *DashboardAggregator {
	a := &DashboardAggregator{query: query, defaultWindow: DefaultDashboardWindow, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DefaultWindow returns the window applied when Snapshot is given none.
func (a *DashboardAggregator) DefaultWindow() time.Duration { return a.defaultWindow }

// Snapshot summarises records with ts >= now-window. A window <= 0 uses the
// configured default. Any failed read fails the snapshot.
func (a *DashboardAggregator) Snapshot(ctx context.Context, window time.Duration) (models.DashboardSnapshot, error) {
	if window <= 0 {
		window = a.defaultWindow
	}
	since := a.now().Add(-window).UTC()

	var (
		top     []models.AssetCount
		latency []models.AssetLatency
		total   int64
		failed  int64
		recent  []models.OutcomeRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if top, err = a.query.TopAssets(gctx, since, models.TopAssetsLimit); err != nil {
			return &models.SinkError{Op: "top_assets", Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if latency, err = a.query.AvgLatencyByAsset(gctx, since); err != nil {
			return &models.SinkError{Op: "avg_latency", Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if total, failed, err = a.query.CountOutcomes(gctx, since); err != nil {
			return &models.SinkError{Op: "count", Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if recent, err = a.query.Recent(gctx, since, models.RecentFeedLimit); err != nil {
			return &models.SinkError{Op: "recent", Err: err}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.DashboardSnapshot{}, err
	}

	rate := ErrorRate(total, failed)
	return models.DashboardSnapshot{
		WindowStart:       since,
		TopAssets:         orderTopAssets(top),
		AvgLatencyByAsset: orderLatency(latency),
		Total:             total,
		Failed:            failed,
		ErrorRatePct:      rate,
		ErrorRateDisplay:  decimal.NewFromFloat(rate).StringFixed(2) + "%",
		Recent:            orderRecent(recent),
	}, nil
}

// ErrorRate returns 100*failed/total, or 0 for an empty window.
func ErrorRate(total, failed int64) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(failed) / float64(total)
}

func orderTopAssets(in []models.AssetCount) []models.AssetCount {
	out := append([]models.AssetCount{}, in...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Asset < out[j].Asset
	})
	if len(out) > models.TopAssetsLimit {
		out = out[:models.TopAssetsLimit]
	}
	return out
}

func orderLatency(in []models.AssetLatency) []models.AssetLatency {
	out := append([]models.AssetLatency{}, in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

func orderRecent(in []models.OutcomeRecord) []models.OutcomeRecord {
	out := append([]models.OutcomeRecord{}, in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > models.RecentFeedLimit {
		out = out[:models.RecentFeedLimit]
	}
	return out
}
