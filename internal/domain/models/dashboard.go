package models

import "time"

const (
	TopAssetsLimit  = 10
	RecentFeedLimit = 50
)

type AssetCount struct {
	Asset string `json:"asset"`
	Count int64  `json:"count"`
}

type AssetLatency struct {
	Asset        string  `json:"asset"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// DashboardSnapshot is computed on demand from a window of outcome records and never stored.
type DashboardSnapshot struct {
	WindowStart       time.Time       `json:"window_start"`
	TopAssets         []AssetCount    `json:"top_assets"`
	AvgLatencyByAsset []AssetLatency  `json:"avg_latency_by_asset"`
	Total             int64           `json:"total"`
	Failed            int64           `json:"failed"`
	ErrorRatePct      float64         `json:"error_rate_pct"`
	ErrorRateDisplay  string          `json:"error_rate_display"`
	Recent            []OutcomeRecord `json:"recent"`
}
