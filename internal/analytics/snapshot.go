// Package analytics computes portfolio valuations and performance metrics.
package analytics

import (
	"math"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/bull/portfolio-chat/internal/holdings"
	"github.com/bull/portfolio-chat/internal/marketdata"
)

// Position is one priced holding inside a snapshot.
type Position struct {
	Ticker     string          `json:"ticker"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	Value      decimal.Decimal `json:"value"`
	Allocation decimal.Decimal `json:"allocation_pct"`
	Unrealized decimal.Decimal `json:"unrealized_gain_loss"`
	Display    string          `json:"display"`
}

// Unpriced is a holding that could not be valued, with the reason.
type Unpriced struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// Snapshot is a point-in-time portfolio valuation. Allocation percentages
// are computed over priced holdings only and sum to 100 within rounding.
type Snapshot struct {
	TotalValue decimal.Decimal `json:"total_value"`
	Currency   string          `json:"currency"`
	Display    string          `json:"display"`
	Positions  []Position      `json:"positions"`
	Unpriced   []Unpriced      `json:"unpriced"`
	AsOf       time.Time       `json:"as_of"`
}

var hundred = decimal.NewFromInt(100)

// ComputeSnapshot values the confirmed holdings against the quote results.
// Holdings whose quote failed move to Unpriced instead of failing the
// snapshot. Display strings are formatted per currency; a mixed-currency
// portfolio keeps the numeric total but drops the formatted one.
func ComputeSnapshot(positions []holdings.Holding, quotes map[string]marketdata.QuoteResult) *Snapshot {
	snap := &Snapshot{AsOf: time.Now().UTC()}

	total := decimal.Zero
	singleCurrency := true
	for _, h := range positions {
		result, ok := quotes[h.Ticker]
		if !ok {
			snap.Unpriced = append(snap.Unpriced, Unpriced{Ticker: h.Ticker, Reason: "no quote requested"})
			continue
		}
		if result.Err != nil {
			snap.Unpriced = append(snap.Unpriced, Unpriced{Ticker: h.Ticker, Reason: result.Err.Error()})
			continue
		}

		q := result.Quote
		value := h.Quantity.Mul(q.Price)
		pos := Position{
			Ticker:     h.Ticker,
			Quantity:   h.Quantity,
			Price:      q.Price,
			Currency:   q.Currency,
			Value:      value,
			Unrealized: q.Price.Sub(h.CostBasis).Mul(h.Quantity),
			Display:    formatMoney(value, q.Currency),
		}
		snap.Positions = append(snap.Positions, pos)
		total = total.Add(value)

		if snap.Currency == "" {
			snap.Currency = q.Currency
		} else if snap.Currency != q.Currency {
			singleCurrency = false
		}
	}

	snap.TotalValue = total
	if singleCurrency && snap.Currency != "" {
		snap.Display = formatMoney(total, snap.Currency)
	}

	if total.IsPositive() {
		for i := range snap.Positions {
			snap.Positions[i].Allocation = snap.Positions[i].Value.Div(total).Mul(hundred).Round(4)
		}
	}

	return snap
}

// formatMoney renders a decimal amount in the currency's display format.
// Unknown currency codes fall back to the plain decimal string.
func formatMoney(amount decimal.Decimal, code string) string {
	currency := money.GetCurrency(code)
	if currency == nil {
		return amount.StringFixed(2)
	}
	factor := decimal.NewFromFloat(math.Pow10(currency.Fraction))
	units := amount.Mul(factor).Round(0).IntPart()
	return money.New(units, code).Display()
}
