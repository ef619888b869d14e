// Package holdings parses portfolio positions out of statement text.
package holdings

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnparseableHolding classifies lines that look like positions but could
// not be parsed. They are surfaced for user confirmation, never guessed.
var ErrUnparseableHolding = errors.New("unparseable holding line")

// Holding is a single portfolio position. Quantity and cost basis use
// decimal arithmetic; statements routinely carry fractional shares.
type Holding struct {
	Ticker     string
	Quantity   decimal.Decimal
	CostBasis  decimal.Decimal // per-share
	DocumentID string
}

// AmbiguousLine is a statement line that resembles a position but did not
// parse cleanly. The caller presents these to the user instead of silently
// dropping or guessing them.
type AmbiguousLine struct {
	Line   string
	Reason string
}

func (a AmbiguousLine) Err() error {
	return fmt.Errorf("%w: %s (%s)", ErrUnparseableHolding, a.Line, a.Reason)
}

// Statement layouts seen in brokerage exports: "AAPL 100 150.25",
// "VTI 12.5 @ 220.10", "MSFT 30 shares at $310.00". Compiled once.
var (
	holdingLinePattern = regexp.MustCompile(
		`^([A-Z][A-Z0-9.\-]{0,9})\s+([\d,]+(?:\.\d+)?)\s*(?:sh(?:ares)?\.?\s*)?(?:@|at\s)?\s*\$?([\d,]+(?:\.\d+)?)\s*$`)
	tickerLeadPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}\b`)
	numberPattern     = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)
)

// notTickers are all-caps words that start statement lines but never name a
// position.
var notTickers = map[string]bool{
	"TOTAL": true, "CASH": true, "USD": true, "EUR": true,
	"PAGE": true, "ACCOUNT": true, "SYMBOL": true, "QTY": true,
}

// Extractor parses candidate holdings from ingested text.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// Extract scans text for ticker/quantity/cost-basis triples. It returns the
// clean candidates plus the ambiguous lines needing user confirmation. The
// canonical holdings set is not touched here; candidates become holdings
// only via Session.ConfirmHoldings.
func (e *Extractor) Extract(text, documentID string) ([]Holding, []AmbiguousLine) {
	var candidates []Holding
	var ambiguous []AmbiguousLine

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		lead := tickerLeadPattern.FindString(line)
		if lead == "" || notTickers[lead] {
			continue
		}

		m := holdingLinePattern.FindStringSubmatch(line)
		if m == nil {
			// A ticker followed by numbers that don't fit a known layout is
			// worth asking about; a ticker alone is just prose.
			if len(numberPattern.FindAllString(line, 2)) >= 2 {
				ambiguous = append(ambiguous, AmbiguousLine{Line: line, Reason: "unrecognized layout"})
			}
			continue
		}

		quantity, err := parseDecimal(m[2])
		if err != nil || !quantity.IsPositive() {
			ambiguous = append(ambiguous, AmbiguousLine{Line: line, Reason: "invalid quantity"})
			continue
		}
		costBasis, err := parseDecimal(m[3])
		if err != nil || costBasis.IsNegative() {
			ambiguous = append(ambiguous, AmbiguousLine{Line: line, Reason: "invalid cost basis"})
			continue
		}

		candidates = append(candidates, Holding{
			Ticker:     m[1],
			Quantity:   quantity,
			CostBasis:  costBasis,
			DocumentID: documentID,
		})
	}

	return candidates, ambiguous
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}
