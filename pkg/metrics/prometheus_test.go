package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountsCacheLookups(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordCacheLookup(true)
	r.RecordCacheLookup(true)
	r.RecordCacheLookup(false)

	if got := testutil.ToFloat64(r.cacheLookups.WithLabelValues("hit")); got != 2 {
		t.Fatalf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.cacheLookups.WithLabelValues("miss")); got != 1 {
		t.Fatalf("misses = %v, want 1", got)
	}
}

func TestRecorderLastPriceAndDrops(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordLastPrice("bitcoin", "usd", 50000)
	r.RecordLastPrice("bitcoin", "usd", 50100)
	r.RecordAuditDropped()

	if got := testutil.ToFloat64(r.lastPrice.WithLabelValues("bitcoin", "usd")); got != 50100 {
		t.Fatalf("last price = %v", got)
	}
	if got := testutil.ToFloat64(r.auditDropped); got != 1 {
		t.Fatalf("dropped = %v", got)
	}
}
