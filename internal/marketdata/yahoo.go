// Package marketdata fetches live quotes and price history from the Yahoo
// Finance chart API.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	defaultTimeout = 15 * time.Second

	// Yahoo rejects requests without a browser-looking user agent.
	userAgent = "Mozilla/5.0 (compatible; portfolio-chat/1.0)"
)

// Quote is a point-in-time price for one ticker.
type Quote struct {
	Ticker   string
	Price    decimal.Decimal
	Currency string
	AsOf     time.Time
}

// QuoteResult is one entry of a batch lookup: either a quote or the error
// that prevented it. A batch never fails wholesale on one bad ticker.
type QuoteResult struct {
	Quote Quote
	Err   error
}

// Point is one observation of a price history series.
type Point struct {
	Date  time.Time
	Close float64
}

// Client talks to the Yahoo chart endpoint. All calls take a context and
// are bounded by the configured timeout.
type Client struct {
	http    *http.Client
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different host. Tests use this with
// httptest servers.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient creates a market data client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: defaultTimeout},
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// chartResponse mirrors the subset of the v8 chart payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Quote fetches the latest regular-market price for one ticker.
func (c *Client) Quote(ctx context.Context, ticker string) (Quote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return Quote{}, fmt.Errorf("%w: empty ticker", ErrPriceUnavailable)
	}

	resp, err := c.chart(ctx, ticker, "1d", "1d")
	if err != nil {
		return Quote{}, fmt.Errorf("%s: %w: %v", ticker, ErrPriceUnavailable, err)
	}

	meta := resp.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return Quote{}, fmt.Errorf("%s: %w: no market price in response", ticker, ErrPriceUnavailable)
	}

	return Quote{
		Ticker:   ticker,
		Price:    decimal.NewFromFloat(meta.RegularMarketPrice),
		Currency: meta.Currency,
		AsOf:     time.Unix(meta.RegularMarketTime, 0).UTC(),
	}, nil
}

// Quotes fetches quotes for every ticker, isolating failures per ticker.
// The result always has one entry per requested ticker.
func (c *Client) Quotes(ctx context.Context, tickers []string) map[string]QuoteResult {
	results := make(map[string]QuoteResult, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if _, done := results[t]; done {
			continue
		}
		q, err := c.Quote(ctx, t)
		results[t] = QuoteResult{Quote: q, Err: err}
	}
	return results
}

// History fetches daily closing prices for a ticker over a Yahoo range
// string such as "1mo", "6mo", "1y" or "max". Adjusted closes are preferred
// when present; days without a close are skipped.
func (c *Client) History(ctx context.Context, ticker, period string) ([]Point, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if period == "" {
		period = "1y"
	}

	resp, err := c.chart(ctx, ticker, period, "1d")
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", ticker, ErrPriceUnavailable, err)
	}

	result := resp.Chart.Result[0]
	closes := selectCloses(resp)
	if len(closes) == 0 {
		return nil, fmt.Errorf("%s: %w: no price series in response", ticker, ErrPriceUnavailable)
	}

	points := make([]Point, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, Point{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *closes[i],
		})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%s: %w: empty price series", ticker, ErrPriceUnavailable)
	}
	return points, nil
}

func selectCloses(resp *chartResponse) []*float64 {
	ind := resp.Chart.Result[0].Indicators
	if len(ind.AdjClose) > 0 && len(ind.AdjClose[0].AdjClose) > 0 {
		return ind.AdjClose[0].AdjClose
	}
	if len(ind.Quote) > 0 {
		return ind.Quote[0].Close
	}
	return nil
}

// chart performs the GET with retries. Rate limits and server errors retry
// with exponential backoff; unknown tickers fail immediately.
func (c *Client) chart(ctx context.Context, ticker, rng, interval string) (*chartResponse, error) {
	addr := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		c.baseURL, url.PathEscape(ticker), url.QueryEscape(rng), url.QueryEscape(interval))

	var parsed *chartResponse
	operation := func() error {
		resp, err := c.jwget(ctx, addr)
		if err != nil {
			return err
		}
		if resp.Chart.Error != nil {
			return backoff.Permanent(fmt.Errorf("%s: %s",
				resp.Chart.Error.Code, resp.Chart.Error.Description))
		}
		if len(resp.Chart.Result) == 0 {
			return backoff.Permanent(fmt.Errorf("no chart result"))
		}
		parsed = resp
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return parsed, nil
}

// jwget performs an HTTP GET and unmarshals the JSON response body.
func (c *Client) jwget(ctx context.Context, addr string) (*chartResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("GET %s: %s", addr, resp.Status)
	default:
		return nil, backoff.Permanent(fmt.Errorf("GET %s: %s", addr, resp.Status))
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode chart response: %w", err))
	}
	return &parsed, nil
}
