package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestClientDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") != "bitcoin" || r.Header.Get("X-Test") != "1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(strings.Repeat("a", 64)))
	}))
	defer srv.Close()

	c := NewClient(WithTimeout(time.Second), WithMaxBodyBytes(16))
	resp, err := c.Do(context.Background(), &RequestOptions{
		URL:         srv.URL,
		Headers:     map[string]string{"X-Test": "1"},
		QueryParams: url.Values{"ids": {"bitcoin"}},
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.StatusCode != http.StatusOK || len(resp.Body) != 16 {
		t.Fatalf("status=%d len=%d", resp.StatusCode, len(resp.Body))
	}
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(WithTimeout(30 * time.Millisecond))
	if c.Timeout() != 30*time.Millisecond {
		t.Fatalf("timeout = %v", c.Timeout())
	}
	if _, err := c.Do(context.Background(), &RequestOptions{URL: srv.URL}); err == nil {
		t.Fatalf("expected timeout error")
	}
}
