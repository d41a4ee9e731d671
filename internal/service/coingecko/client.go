package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"CoinPulse/internal/domain/models"
	pkghttp "CoinPulse/pkg/http"
)

const (
	Provider      = "coingecko"
	PriceEndpoint = "/simple/price"
	apiKeyHeader  = "x-cg-demo-api-key"
)

// Client fetches spot prices from the CoinGecko simple price API. It holds no
// cache or audit state; every call is a single upstream request.
type Client struct {
	baseURL string
	apiKey  string
	http    *pkghttp.Client
	now     func() time.Time
}

type Option func(*Client)

// WithAPIKey sends the demo API key header on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *pkghttp.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchQuote requests one asset/currency pair. Failures are always *models.UpstreamError.
func (c *Client) FetchQuote(ctx context.Context, key models.QuoteKey) (models.Quote, error) {
	req := &pkghttp.RequestOptions{
		Method: http.MethodGet,
		URL:    c.baseURL + PriceEndpoint,
		QueryParams: url.Values{
			"ids":                 {key.Asset},
			"vs_currencies":       {key.Currency},
			"include_24hr_change": {"true"},
		},
	}
	if c.apiKey != "" {
		req.Headers = map[string]string{apiKeyHeader: c.apiKey}
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return models.Quote{}, &models.UpstreamError{Kind: models.UpstreamCancelled, Status: models.UpstreamNotAttempted, Err: err}
		}
		return models.Quote{}, &models.UpstreamError{Kind: models.UpstreamUnreachable, Status: models.UpstreamNotAttempted, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Quote{}, &models.UpstreamError{Kind: models.UpstreamBadStatus, Status: resp.StatusCode}
	}

	price, change, err := parsePrice(resp.Body, key)
	if err != nil {
		return models.Quote{}, &models.UpstreamError{Kind: models.UpstreamInvalidData, Status: resp.StatusCode, Err: err}
	}
	return models.NewQuote(key, price, change, c.now()), nil
}

var errMissingPrice = errors.New("price missing from response")

// parsePrice reads body[asset][currency] and body[asset][currency+"_24h_change"].
// A missing, null or non-numeric change is reported as 0.
func parsePrice(body []byte, key models.QuoteKey) (float64, float64, error) {
	var payload map[string]map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, 0, err
	}
	raw, ok := payload[key.Asset][key.Currency]
	if !ok {
		return 0, 0, errMissingPrice
	}
	var price *float64
	if err := json.Unmarshal(raw, &price); err != nil {
		return 0, 0, err
	}
	if price == nil {
		return 0, 0, errMissingPrice
	}
	var change float64
	if raw, ok := payload[key.Asset][key.Currency+"_24h_change"]; ok {
		var ch *float64
		if json.Unmarshal(raw, &ch) == nil && ch != nil {
			change = *ch
		}
	}
	return *price, change, nil
}
