package analytics

import (
	"math"
	"sort"
	"time"
)

// Metrics summarizes the performance of a value series.
type Metrics struct {
	CumulativeReturn     float64 `json:"cumulative_return"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	MaxDrawdown          float64 `json:"max_drawdown"`
}

// Compute derives return metrics from a series of prices or period returns.
// periodsPerYear 0 means infer: from the median spacing of dates when
// given, otherwise from the series length. Volatility uses the population
// standard deviation. An empty or too-short series yields NaN metrics.
func Compute(series []float64, dates []time.Time, isPrices bool, periodsPerYear int) Metrics {
	returns := toReturns(series, isPrices)

	if periodsPerYear <= 0 {
		periodsPerYear = inferPeriodsPerYear(dates, len(returns))
	}

	if len(returns) == 0 {
		nan := math.NaN()
		return Metrics{nan, nan, nan, nan}
	}

	cumulative := 1.0
	for _, r := range returns {
		cumulative *= 1.0 + r
	}
	cumulative -= 1.0

	geometricMean := math.Pow(1.0+cumulative, 1.0/float64(len(returns))) - 1.0
	annualized := math.Pow(1.0+geometricMean, float64(periodsPerYear)) - 1.0
	volatility := populationStdDev(returns) * math.Sqrt(float64(periodsPerYear))

	var mdd float64
	if isPrices {
		mdd = MaxDrawdown(series, true)
	} else {
		mdd = MaxDrawdown(returns, false)
	}

	return Metrics{
		CumulativeReturn:     cumulative,
		AnnualizedReturn:     annualized,
		AnnualizedVolatility: volatility,
		MaxDrawdown:          mdd,
	}
}

// MaxDrawdown returns the deepest peak-to-trough decline as a negative
// decimal. Return series are compounded into an equity curve first.
func MaxDrawdown(series []float64, isPrices bool) float64 {
	if len(series) == 0 {
		return math.NaN()
	}

	prices := series
	if !isPrices {
		prices = make([]float64, len(series))
		acc := 1.0
		for i, r := range series {
			acc *= 1.0 + r
			prices[i] = acc
		}
	}

	worst := 0.0
	peak := prices[0]
	for _, p := range prices {
		if p > peak {
			peak = p
		}
		if peak != 0 {
			if dd := (p - peak) / peak; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// YearlyPerformance compounds period returns into calendar-year totals.
// Entries without a matching date are dropped.
func YearlyPerformance(dates []time.Time, returns []float64) map[int]float64 {
	n := min(len(dates), len(returns))
	out := make(map[int]float64)
	for i := 0; i < n; i++ {
		year := dates[i].Year()
		acc, ok := out[year]
		if !ok {
			acc = 1.0
		}
		out[year] = acc * (1.0 + returns[i])
	}
	for year, acc := range out {
		out[year] = acc - 1.0
	}
	return out
}

// toReturns converts a price series to period returns, or passes a return
// series through. Mirrors pandas pct_change: the first price observation
// produces no return.
func toReturns(series []float64, isPrices bool) []float64 {
	if !isPrices {
		out := make([]float64, 0, len(series))
		for _, r := range series {
			if !math.IsNaN(r) {
				out = append(out, r)
			}
		}
		return out
	}

	var out []float64
	for i := 1; i < len(series); i++ {
		if series[i-1] == 0 || math.IsNaN(series[i]) || math.IsNaN(series[i-1]) {
			continue
		}
		out = append(out, series[i]/series[i-1]-1.0)
	}
	return out
}

// inferPeriodsPerYear maps the median spacing between observations to a
// sampling frequency: yearly, monthly or daily (252 trading days). Without
// usable dates it falls back to a length heuristic.
func inferPeriodsPerYear(dates []time.Time, n int) int {
	if len(dates) > 1 {
		sorted := make([]time.Time, len(dates))
		copy(sorted, dates)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

		deltas := make([]float64, 0, len(sorted)-1)
		for i := 1; i < len(sorted); i++ {
			deltas = append(deltas, sorted[i].Sub(sorted[i-1]).Hours()/24.0)
		}
		sort.Float64s(deltas)
		median := deltas[len(deltas)/2]
		if len(deltas)%2 == 0 {
			median = (deltas[len(deltas)/2-1] + deltas[len(deltas)/2]) / 2.0
		}

		switch {
		case median >= 350 && median <= 370:
			return 1
		case median >= 27 && median <= 31:
			return 12
		case median >= 0.5 && median <= 1.5:
			return 252
		}
	}

	switch {
	case n <= 12:
		return 1
	case n <= 60:
		return 12
	default:
		return 252
	}
}

func populationStdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance)
}
