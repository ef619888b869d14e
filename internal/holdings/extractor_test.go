package holdings

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_RecognizedLayouts(t *testing.T) {
	text := `Account Statement

SYMBOL QTY PRICE
AAPL 100 150.25
VTI 12.5 @ 220.10
MSFT 30 shares at $310.00
TOTAL 47,025.00 USD
`

	candidates, ambiguous := NewExtractor().Extract(text, "doc-1")

	require.Len(t, candidates, 3)
	assert.Empty(t, ambiguous)

	assert.Equal(t, "AAPL", candidates[0].Ticker)
	assert.True(t, candidates[0].Quantity.Equal(decimal.NewFromInt(100)))
	assert.True(t, candidates[0].CostBasis.Equal(decimal.RequireFromString("150.25")))

	assert.Equal(t, "VTI", candidates[1].Ticker)
	assert.True(t, candidates[1].Quantity.Equal(decimal.RequireFromString("12.5")))

	assert.Equal(t, "MSFT", candidates[2].Ticker)
	assert.True(t, candidates[2].CostBasis.Equal(decimal.RequireFromString("310")))
	assert.Equal(t, "doc-1", candidates[2].DocumentID)
}

func TestExtract_ThousandsSeparators(t *testing.T) {
	candidates, ambiguous := NewExtractor().Extract("BRK.B 1,250 301.50", "doc-1")
	require.Len(t, candidates, 1)
	assert.Empty(t, ambiguous)
	assert.Equal(t, "BRK.B", candidates[0].Ticker)
	assert.True(t, candidates[0].Quantity.Equal(decimal.NewFromInt(1250)))
}

func TestExtract_AmbiguousLinesSurfaced(t *testing.T) {
	text := `GOOG 10 20 30 40
NVDA 0 500.00
`
	candidates, ambiguous := NewExtractor().Extract(text, "doc-1")

	assert.Empty(t, candidates)
	require.Len(t, ambiguous, 2)
	assert.Equal(t, "unrecognized layout", ambiguous[0].Reason)
	assert.Equal(t, "invalid quantity", ambiguous[1].Reason)
	assert.ErrorIs(t, ambiguous[0].Err(), ErrUnparseableHolding)
}

func TestExtract_ProseIsIgnored(t *testing.T) {
	text := `Your portfolio grew this quarter.
Dividends were reinvested automatically.
Call 1-800-555-0100 with questions.`

	candidates, ambiguous := NewExtractor().Extract(text, "doc-1")
	assert.Empty(t, candidates)
	assert.Empty(t, ambiguous)
}
