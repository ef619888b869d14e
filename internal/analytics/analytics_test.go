package analytics

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/portfolio-chat/internal/holdings"
	"github.com/bull/portfolio-chat/internal/marketdata"
)

func position(ticker, qty, cost string) holdings.Holding {
	return holdings.Holding{
		Ticker:    ticker,
		Quantity:  decimal.RequireFromString(qty),
		CostBasis: decimal.RequireFromString(cost),
	}
}

func pricedQuote(ticker, price string) marketdata.QuoteResult {
	return marketdata.QuoteResult{Quote: marketdata.Quote{
		Ticker:   ticker,
		Price:    decimal.RequireFromString(price),
		Currency: "USD",
		AsOf:     time.Now(),
	}}
}

func TestComputeSnapshot_PartialPricing(t *testing.T) {
	positions := []holdings.Holding{
		position("AAPL", "10", "150"),
		position("VTI", "5", "200"),
		position("BAD", "3", "50"),
	}
	quotes := map[string]marketdata.QuoteResult{
		"AAPL": pricedQuote("AAPL", "200"),
		"VTI":  pricedQuote("VTI", "300"),
		"BAD":  {Err: fmt.Errorf("BAD: %w: delisted", marketdata.ErrPriceUnavailable)},
	}

	snap := ComputeSnapshot(positions, quotes)

	require.Len(t, snap.Positions, 2)
	require.Len(t, snap.Unpriced, 1)
	assert.Equal(t, "BAD", snap.Unpriced[0].Ticker)
	assert.Contains(t, snap.Unpriced[0].Reason, "price unavailable")

	assert.True(t, snap.TotalValue.Equal(decimal.NewFromInt(3500)),
		"total %s", snap.TotalValue)
	assert.Equal(t, "$3,500.00", snap.Display)

	assert.True(t, snap.Positions[0].Unrealized.Equal(decimal.NewFromInt(500)))
	assert.True(t, snap.Positions[1].Unrealized.Equal(decimal.NewFromInt(500)))

	// Allocation is computed over priced holdings only and sums to 100.
	sum := decimal.Zero
	for _, p := range snap.Positions {
		sum = sum.Add(p.Allocation)
	}
	diff := sum.Sub(decimal.NewFromInt(100)).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.01")),
		"allocations sum to %s", sum)
}

func TestComputeSnapshot_AllUnpriced(t *testing.T) {
	snap := ComputeSnapshot(
		[]holdings.Holding{position("XYZ", "1", "10")},
		map[string]marketdata.QuoteResult{},
	)
	assert.Empty(t, snap.Positions)
	require.Len(t, snap.Unpriced, 1)
	assert.True(t, snap.TotalValue.IsZero())
}

func TestCompute_PriceSeries(t *testing.T) {
	m := Compute([]float64{100, 110, 99}, nil, true, 1)

	assert.InDelta(t, -0.01, m.CumulativeReturn, 1e-9)
	assert.InDelta(t, -0.1, m.MaxDrawdown, 1e-9)
	// Returns are +10% and -10%: mean 0, population sigma 0.1.
	assert.InDelta(t, 0.1, m.AnnualizedVolatility, 1e-9)
}

func TestCompute_EmptySeries(t *testing.T) {
	m := Compute(nil, nil, true, 0)
	assert.True(t, math.IsNaN(m.CumulativeReturn))
	assert.True(t, math.IsNaN(m.MaxDrawdown))
}

func TestMaxDrawdown_FromReturns(t *testing.T) {
	// Equity curve: 1.1, 0.99, 1.089 -> trough 0.99 against peak 1.1.
	dd := MaxDrawdown([]float64{0.1, -0.1, 0.1}, false)
	assert.InDelta(t, -0.1, dd, 1e-9)
}

func TestYearlyPerformance(t *testing.T) {
	dates := []time.Time{
		time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	perf := YearlyPerformance(dates, []float64{0.1, 0.1, -0.05})

	require.Len(t, perf, 2)
	assert.InDelta(t, 0.21, perf[2023], 1e-9)
	assert.InDelta(t, -0.05, perf[2024], 1e-9)
}

func TestInferPeriodsPerYear(t *testing.T) {
	day := 24 * time.Hour
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	daily := []time.Time{start, start.Add(day), start.Add(2 * day), start.Add(3 * day)}
	assert.Equal(t, 252, inferPeriodsPerYear(daily, len(daily)-1))

	monthly := []time.Time{start, start.AddDate(0, 1, 0), start.AddDate(0, 2, 0)}
	assert.Equal(t, 12, inferPeriodsPerYear(monthly, len(monthly)-1))

	yearly := []time.Time{start, start.AddDate(1, 0, 0), start.AddDate(2, 0, 0)}
	assert.Equal(t, 1, inferPeriodsPerYear(yearly, len(yearly)-1))

	// No dates: fall back to series length.
	assert.Equal(t, 1, inferPeriodsPerYear(nil, 10))
	assert.Equal(t, 12, inferPeriodsPerYear(nil, 40))
	assert.Equal(t, 252, inferPeriodsPerYear(nil, 300))
}
