package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/repository"
	"CoinPulse/internal/service/cache"
	"CoinPulse/internal/usecase"
	xhttp "CoinPulse/pkg/http"
	"CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type stubSource struct {
	err error
}

func (s stubSource) FetchQuote(_ context.Context, key models.QuoteKey) (models.Quote, error) {
	if s.err != nil {
		return models.Quote{}, s.err
	}
	return models.NewQuote(key, 50000, 1.5, time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)), nil
}

type syncRecorder struct {
	mu   sync.Mutex
	recs []models.OutcomeRecord
}

func (r *syncRecorder) Record(rec models.OutcomeRecord) <-chan error {
	r.mu.Lock()
	r.recs = append(r.recs, rec)
	r.mu.Unlock()
	ch := make(chan error, 1)
	ch <- nil
	return ch
}

func (r *syncRecorder) get(i int) models.OutcomeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recs[i]
}

func (r *syncRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

func newEcho(src stubSource, rec *syncRecorder, store *repository.MemoryAuditStore) *echo.Echo {
	l := logger.Nop()
	svc := usecase.NewQuoteService(cache.NewReadThrough(cache.NewShardedStore(4), src), rec, metrics.Nop{}, l)
	e := echo.New()
	for _, h := range []xhttp.Handler{
		NewQuoteEchoHandler(l, svc),
		NewDashboardEchoHandler(l, usecase.NewDashboardAggregator(store)),
		NewQuoteStreamHandler(l, svc),
	} {
		h.RegisterRoutes(e)
	}
	return e
}

func serve(e *echo.Echo, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	return rr
}

func TestQuoteEndpoint(t *testing.T) {
	rec := &syncRecorder{}
	e := newEcho(stubSource{}, rec, repository.NewMemoryAuditStore())

	rr := serve(e, "/api/quote?coin=bitcoin&vs=usd", map[string]string{HeaderDeviceModel: "Pixel 8", HeaderDeviceSDK: "34"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	want := `{"coin":"bitcoin","vs":"usd","price":50000,"change24h_pct":1.5,"volatility":"calm","asOf":"2026-02-03T04:05:06Z"}`
	if got := strings.TrimSpace(rr.Body.String()); got != want {
		t.Fatalf("body = %s", got)
	}
	if rec.len() != 1 {
		t.Fatalf("records = %d, want 1", rec.len())
	}
	md := rec.get(0).Metadata
	if md["device_model"] != "Pixel 8" || md["device_sdk"] != "34" || md["channel"] != "http" {
		t.Fatalf("metadata = %+v", md)
	}
}

func TestQuoteEndpointValidation(t *testing.T) {
	rec := &syncRecorder{}
	e := newEcho(stubSource{}, rec, repository.NewMemoryAuditStore())

	rr := serve(e, "/api/quote?coin=bitcoin", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	want := `{"error":"coin and vs are required","code":"ERR_VALIDATION"}`
	if got := strings.TrimSpace(rr.Body.String()); got != want {
		t.Fatalf("body = %s", got)
	}
	if rec.len() != 0 {
		t.Fatalf("validation failures must not be recorded")
	}
}

func TestQuoteEndpointUpstreamFailure(t *testing.T) {
	rec := &syncRecorder{}
	src := stubSource{err: &models.UpstreamError{Kind: models.UpstreamBadStatus, Status: 500}}
	e := newEcho(src, rec, repository.NewMemoryAuditStore())

	rr := serve(e, "/api/quote?coin=bitcoin&vs=usd", nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	var body xhttp.ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "ERR_UPSTREAM_BAD_STATUS" || body.Error != "upstream status 500" {
		t.Fatalf("body = %+v", body)
	}
	if rec.len() != 1 || rec.get(0).Status != 502 || rec.get(0).UpstreamStatus != 500 {
		t.Fatalf("unexpected failure record")
	}
}

func TestHealthNotRecorded(t *testing.T) {
	rec := &syncRecorder{}
	e := newEcho(stubSource{}, rec, repository.NewMemoryAuditStore())

	rr := serve(e, "/api/health", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("health = %d %s", rr.Code, rr.Body.String())
	}
	if rec.len() != 0 {
		t.Fatalf("health must not be recorded")
	}
}

func TestDashboardEndpoint(t *testing.T) {
	store := repository.NewMemoryAuditStore()
	now := time.Now().UTC()
	_ = store.Append(context.Background(), models.OutcomeRecord{ID: "1", Asset: "bitcoin", Timestamp: now, Status: 200})
	_ = store.Append(context.Background(), models.OutcomeRecord{ID: "2", Asset: "bitcoin", Timestamp: now, Status: 502})
	rec := &syncRecorder{}
	e := newEcho(stubSource{}, rec, store)

	rr := serve(e, "/api/dashboard", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var env struct {
		Status int                      `json:"status"`
		Data   models.DashboardSnapshot `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Status != 200 || env.Data.Total != 2 || env.Data.ErrorRateDisplay != "50.00%" {
		t.Fatalf("snapshot = %+v", env)
	}
	if rec.len() != 0 || store.Len() != 2 {
		t.Fatalf("dashboard reads must not be recorded")
	}

	if rr := serve(e, "/api/dashboard?window_hours=0", nil); rr.Code != http.StatusOK {
		t.Fatalf("zero window falls back to default, got %d", rr.Code)
	}
	if rr := serve(e, "/api/dashboard?window_hours=721", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("window above range: status = %d", rr.Code)
	}
}

func TestDashboardDefaultsToConfiguredWindow(t *testing.T) {
	store := repository.NewMemoryAuditStore()
	now := time.Now().UTC()
	_ = store.Append(context.Background(), models.OutcomeRecord{ID: "1", Asset: "bitcoin", Timestamp: now.Add(-time.Hour), Status: 200})
	_ = store.Append(context.Background(), models.OutcomeRecord{ID: "2", Asset: "bitcoin", Timestamp: now.Add(-3 * time.Hour), Status: 200})

	e := echo.New()
	agg := usecase.NewDashboardAggregator(store, usecase.WithDashboardWindow(2*time.Hour))
	NewDashboardEchoHandler(logger.Nop(), agg).RegisterRoutes(e)

	for _, target := range []string{"/api/dashboard", "/api/dashboard?window_hours=0"} {
		rr := serve(e, target, nil)
		var env struct {
			Data models.DashboardSnapshot `json:"data"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s: decode: %v", target, err)
		}
		if rr.Code != http.StatusOK || env.Data.Total != 1 {
			t.Fatalf("%s: status=%d total=%d, want the 2h window", target, rr.Code, env.Data.Total)
		}
	}

	rr := serve(e, "/api/dashboard?window_hours=4", nil)
	if !strings.Contains(rr.Body.String(), `"total":2`) {
		t.Fatalf("explicit window_hours must override: %s", rr.Body.String())
	}
	if rr := serve(e, "/api/dashboard?window_hours=-1", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("negative window: status = %d", rr.Code)
	}
}

type brokenQuery struct{ repository.MemoryAuditStore }

func (*brokenQuery) CountOutcomes(context.Context, time.Time) (int64, int64, error) {
	return 0, 0, errors.New("clickhouse down")
}

func TestDashboardSinkFailure(t *testing.T) {
	e := echo.New()
	NewDashboardEchoHandler(logger.Nop(), usecase.NewDashboardAggregator(&brokenQuery{})).RegisterRoutes(e)

	rr := serve(e, "/api/dashboard?window_hours=1", nil)
	if rr.Code != http.StatusBadGateway || !strings.Contains(rr.Body.String(), "ERR_AUDIT_SINK") {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestQuoteStream(t *testing.T) {
	rec := &syncRecorder{}
	srv := httptest.NewServer(newEcho(stubSource{}, rec, repository.NewMemoryAuditStore()))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/quote/stream?coin=bitcoin&vs=usd"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame StreamFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Type != "quote" || frame.Quote == nil || frame.Quote.Price != 50000 {
		t.Fatalf("frame = %+v", frame)
	}
	if rec.len() != 1 || rec.get(0).Metadata["channel"] != "ws" {
		t.Fatalf("stream push must be recorded once with channel=ws")
	}
}

func TestQuoteStreamRequiresPair(t *testing.T) {
	e := newEcho(stubSource{}, &syncRecorder{}, repository.NewMemoryAuditStore())
	if rr := serve(e, "/api/quote/stream?coin=bitcoin", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestQuoteStreamRejectsBlankPairBeforeUpgrade(t *testing.T) {
	rec := &syncRecorder{}
	e := newEcho(stubSource{}, rec, repository.NewMemoryAuditStore())
	header := map[string]string{
		"Connection":            "Upgrade",
		"Upgrade":               "websocket",
		"Sec-WebSocket-Version": "13",
		"Sec-WebSocket-Key":     "dGhlIHNhbXBsZSBub25jZQ==",
	}
	for _, target := range []string{
		"/api/quote/stream?coin=%20&vs=usd",
		"/api/quote/stream?coin=bitcoin&vs=%20%20",
	} {
		rr := serve(e, target, header)
		if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "coin and vs are required") {
			t.Fatalf("%s: status=%d body=%s", target, rr.Code, rr.Body.String())
		}
	}
	if rec.len() != 0 {
		t.Fatalf("rejected streams must not be recorded")
	}
}
