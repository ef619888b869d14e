package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chartBody(symbol, currency string, price float64, ts int64) string {
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"currency":%q,"symbol":%q,"regularMarketPrice":%v,"regularMarketTime":%d},"timestamp":[],"indicators":{"quote":[{"close":[]}]}}],"error":null}}`,
		currency, symbol, price, ts)
}

func notFoundBody(symbol string) string {
	return fmt.Sprintf(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted: %s"}}}`, symbol)
}

func TestQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v8/finance/chart/AAPL")
		fmt.Fprint(w, chartBody("AAPL", "USD", 189.84, 1756166400))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	q, err := client.Quote(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", q.Ticker)
	assert.Equal(t, "189.84", q.Price.String())
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, time.Unix(1756166400, 0).UTC(), q.AsOf)
}

func TestQuote_UnknownTickerIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, notFoundBody("NOPE"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Quote(context.Background(), "NOPE")

	require.ErrorIs(t, err, ErrPriceUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestQuote_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, chartBody("VTI", "USD", 301.12, 1756166400))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	q, err := client.Quote(context.Background(), "VTI")

	require.NoError(t, err)
	assert.Equal(t, "301.12", q.Price.String())
	assert.Equal(t, int32(2), calls.Load())
}

func TestQuotes_IsolatesPerTickerFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "BAD") {
			fmt.Fprint(w, notFoundBody("BAD"))
			return
		}
		fmt.Fprint(w, chartBody("MSFT", "USD", 420.50, 1756166400))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	results := client.Quotes(context.Background(), []string{"MSFT", "BAD"})

	require.Len(t, results, 2)
	assert.NoError(t, results["MSFT"].Err)
	assert.Equal(t, "420.5", results["MSFT"].Quote.Price.String())
	assert.ErrorIs(t, results["BAD"].Err, ErrPriceUnavailable)
}

func TestHistory_SkipsMissingCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "6mo", r.URL.Query().Get("range"))
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{"currency":"USD","symbol":"VTI","regularMarketPrice":301.0,"regularMarketTime":1756166400},"timestamp":[1755561600,1755648000,1755734400],"indicators":{"quote":[{"close":[300.0,null,302.5]}],"adjclose":[{"adjclose":[299.5,null,302.0]}]}}],"error":null}}`)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	points, err := client.History(context.Background(), "VTI", "6mo")
	require.NoError(t, err)

	require.Len(t, points, 2)
	assert.Equal(t, 299.5, points[0].Close)
	assert.Equal(t, 302.0, points[1].Close)
	assert.True(t, points[0].Date.Before(points[1].Date))
}
