package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"github.com/bull/portfolio-chat/internal/analytics"
	"github.com/bull/portfolio-chat/internal/marketdata"
)

// toolDefs lists the functions offered to the model on every tool-enabled
// completion.
func toolDefs() []openai.ChatCompletionToolUnionParam {
	return []openai.ChatCompletionToolUnionParam{
		openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        "calculate_portfolio_metrics",
			Description: openai.String("Calculate cumulative and annualized return, volatility and max drawdown from a price or return series. Set 'returns_are_percent' if the return values are in percent form."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"series":              map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
					"dates":               map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"is_prices":           map[string]any{"type": "boolean", "default": true},
					"periods_per_year":    map[string]any{"type": "integer"},
					"returns_are_percent": map[string]any{"type": "boolean", "default": false},
				},
				"required": []string{"series"},
			},
		}),
		openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        "calculate_yearly_performance",
			Description: openai.String("Aggregate period decimal returns into calendar-year total returns."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"dates":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"returns": map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
				},
				"required": []string{"dates", "returns"},
			},
		}),
		openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        "calculate_max_drawdown",
			Description: openai.String("Return the maximum peak-to-trough drawdown (negative decimal, e.g. -0.25) from a series of price or return values."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"series":    map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
					"is_prices": map[string]any{"type": "boolean", "default": true},
				},
				"required": []string{"series"},
			},
		}),
		openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        "get_stock_quote",
			Description: openai.String("Return the latest price for a single equity ticker."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"ticker": map[string]any{"type": "string", "description": "Ticker symbol, e.g. 'AAPL'."},
				},
				"required": []string{"ticker"},
			},
		}),
		openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        "get_stock_history",
			Description: openai.String("Fetch historical daily prices for a ticker as a list of (date, price) pairs."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"ticker": map[string]any{"type": "string"},
					"period": map[string]any{
						"type":    "string",
						"enum":    []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"},
						"default": "1y",
					},
				},
				"required": []string{"ticker"},
			},
		}),
		openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        "get_fx_rate",
			Description: openai.String("Return the current exchange rate between two currencies."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"from_currency": map[string]any{"type": "string", "description": "ISO currency code, e.g. 'EUR'."},
					"to_currency":   map[string]any{"type": "string", "description": "ISO currency code, e.g. 'USD'."},
				},
				"required": []string{"from_currency", "to_currency"},
			},
		}),
		openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        "create_pie_chart",
			Description: openai.String("Create a pie chart from categorical labels and numeric values. Returns structured data for the caller to render."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"labels": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"values": map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
				},
				"required": []string{"labels", "values"},
			},
		}),
	}
}

// Toolset executes model-requested function calls. Failures are reported
// back to the model as an error payload instead of aborting the answer.
type Toolset struct {
	market *marketdata.Client
}

func NewToolset(market *marketdata.Client) *Toolset {
	return &Toolset{market: market}
}

// Dispatch runs one tool call and returns its JSON result.
func (t *Toolset) Dispatch(ctx context.Context, call ToolCall) string {
	result, err := t.run(ctx, call)
	if err != nil {
		return toolError(err)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return toolError(err)
	}
	return string(payload)
}

func (t *Toolset) run(ctx context.Context, call ToolCall) (any, error) {
	switch call.Name {
	case "calculate_portfolio_metrics":
		var args struct {
			Series            []float64 `json:"series"`
			Dates             []string  `json:"dates"`
			IsPrices          *bool     `json:"is_prices"`
			PeriodsPerYear    int       `json:"periods_per_year"`
			ReturnsArePercent bool      `json:"returns_are_percent"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, err
		}
		series := args.Series
		isPrices := args.IsPrices == nil || *args.IsPrices
		if args.ReturnsArePercent && !isPrices {
			series = scale(series, 0.01)
		}
		return analytics.Compute(series, parseDates(args.Dates), isPrices, args.PeriodsPerYear), nil

	case "calculate_yearly_performance":
		var args struct {
			Dates   []string  `json:"dates"`
			Returns []float64 `json:"returns"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, err
		}
		return analytics.YearlyPerformance(parseDates(args.Dates), args.Returns), nil

	case "calculate_max_drawdown":
		var args struct {
			Series   []float64 `json:"series"`
			IsPrices *bool     `json:"is_prices"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, err
		}
		isPrices := args.IsPrices == nil || *args.IsPrices
		return map[string]float64{"max_drawdown": analytics.MaxDrawdown(args.Series, isPrices)}, nil

	case "get_stock_quote":
		var args struct {
			Ticker string `json:"ticker"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, err
		}
		q, err := t.market.Quote(ctx, args.Ticker)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"symbol":   q.Ticker,
			"price":    q.Price,
			"currency": q.Currency,
			"as_of":    q.AsOf.Format(time.RFC3339),
		}, nil

	case "get_stock_history":
		var args struct {
			Ticker string `json:"ticker"`
			Period string `json:"period"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, err
		}
		points, err := t.market.History(ctx, args.Ticker, args.Period)
		if err != nil {
			return nil, err
		}
		pairs := make([][2]any, 0, len(points))
		for _, p := range points {
			pairs = append(pairs, [2]any{p.Date.Format("2006-01-02"), p.Close})
		}
		return pairs, nil

	case "get_fx_rate":
		var args struct {
			From string `json:"from_currency"`
			To   string `json:"to_currency"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, err
		}
		from, to := strings.ToUpper(args.From), strings.ToUpper(args.To)
		// Yahoo quotes currency pairs as compound tickers, e.g. EURUSD=X.
		q, err := t.market.Quote(ctx, from+to+"=X")
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"from":  from,
			"to":    to,
			"rate":  q.Price,
			"as_of": q.AsOf.Format(time.RFC3339),
		}, nil

	case "create_pie_chart":
		var args struct {
			Labels []string  `json:"labels"`
			Values []float64 `json:"values"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, err
		}
		if len(args.Labels) != len(args.Values) {
			return nil, fmt.Errorf("labels and values length mismatch: %d vs %d", len(args.Labels), len(args.Values))
		}
		return map[string]any{
			"type":   "pie_chart",
			"labels": args.Labels,
			"values": args.Values,
		}, nil

	default:
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}
}

func toolError(err error) string {
	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(payload)
}

func parseDates(raw []string) []time.Time {
	var out []time.Time
	for _, s := range raw {
		for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01", "2006"} {
			if t, err := time.Parse(layout, s); err == nil {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func scale(xs []float64, factor float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x * factor
	}
	return out
}
