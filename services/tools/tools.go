// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools wraps each external data capability (price, history,
// balance sheet, news, recommendations, forecast) with a uniform
// invocation contract and per-call error containment.
//
// Every adapter failure is converted into a tagged error Result so one
// failing tool never aborts the agent loop or the client stream.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/AleutianTicker/pkg/validation"
	"github.com/AleutianAI/AleutianTicker/services/marketdata"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/datatypes"
)

// =============================================================================
// Tool Names
// =============================================================================

// Tool names are part of the wire contract: the stream multiplexer
// classifies tool completions by these names, and deployed frontends depend
// on them.
const (
	ToolStockPrice      = "get_stock_price"
	ToolHistoricalPrice = "get_historical_stock_price"
	ToolBalanceSheet    = "get_balance_sheet"
	ToolStockNews       = "get_stock_news"
	ToolRecommendations = "get_analyst_recommendations"
	ToolForecast        = "generate_stock_forecast"
)

// =============================================================================
// Invocation Result
// =============================================================================

// ResultKind discriminates the tagged union of tool outcomes.
type ResultKind string

const (
	ResultPrice           ResultKind = "price"
	ResultHistory         ResultKind = "history"
	ResultBalanceSheet    ResultKind = "balance_sheet"
	ResultNews            ResultKind = "news"
	ResultRecommendations ResultKind = "recommendations"
	ResultForecast        ResultKind = "forecast"
	ResultError           ResultKind = "error"
)

// Result is the outcome of one tool invocation.
//
// # Description
//
// A Result is either a provider-shaped payload tagged with its kind, a
// "no data" sentinel (Payload holds the sentinel string, Kind keeps the
// tool's kind), or a contained error (Kind == ResultError). Sentinels are
// well-typed outcomes, not failures.
//
// # Fields
//
//   - Kind: Union tag.
//   - Ticker: Symbol context of the invocation.
//   - Payload: Provider-shaped data or sentinel string. Nil for errors.
//   - Err: Human-readable failure description. Set only when Kind == ResultError.
type Result struct {
	Kind    ResultKind
	Ticker  string
	Payload any
	Err     string
}

// IsError reports whether the result is a contained failure.
func (r Result) IsError() bool { return r.Kind == ResultError }

// HasData reports whether the result carries a structured payload worth
// streaming to the client. Errors and "no data" sentinels do not.
func (r Result) HasData() bool {
	if r.IsError() || r.Payload == nil {
		return false
	}
	_, sentinel := r.Payload.(string)
	return !sentinel
}

// ModelText renders the result as text for the model's tool message.
//
// # Description
//
// The agent feeds tool output back to the model as a message. Structured
// payloads are JSON-encoded; sentinels and errors pass through as plain
// text so the model can relay them conversationally.
func (r Result) ModelText() string {
	if r.IsError() {
		return fmt.Sprintf("Tool failed: %s", r.Err)
	}
	if s, ok := r.Payload.(string); ok {
		return s
	}
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Sprintf("Tool produced an unserializable result: %v", err)
	}
	return string(data)
}

// =============================================================================
// Adapter Interface
// =============================================================================

// Adapter is the uniform invocation contract for one external capability.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use across requests.
type Adapter interface {
	// Name returns the wire-contract tool name.
	Name() string

	// Definition returns the function schema advertised to the model.
	Definition() openai.Tool

	// Invoke runs the capability with the model-supplied JSON arguments.
	// Failures are contained in the returned Result, never propagated.
	Invoke(ctx context.Context, args json.RawMessage) Result
}

// =============================================================================
// Registry
// =============================================================================

// Registry holds the adapters available to the agent, in a stable order.
type Registry struct {
	order    []string
	adapters map[string]Adapter
}

// NewRegistry creates a registry with the six standard adapters wired to
// the given provider.
//
// # Inputs
//
//   - provider: Financial data source. Must not be nil.
//
// # Outputs
//
//   - *Registry: Registry with price, history, balance sheet, news,
//     recommendations, and forecast adapters registered.
func NewRegistry(provider marketdata.Provider) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	estimator := NewForecastEstimator(provider)
	for _, a := range []Adapter{
		&priceAdapter{provider: provider, now: time.Now},
		&historyAdapter{provider: provider},
		&balanceSheetAdapter{provider: provider},
		&newsAdapter{provider: provider},
		&recommendationsAdapter{provider: provider},
		&forecastAdapter{estimator: estimator},
	} {
		r.register(a)
	}
	return r
}

func (r *Registry) register(a Adapter) {
	r.order = append(r.order, a.Name())
	r.adapters[a.Name()] = a
}

// Definitions returns the function schemas for every registered adapter,
// in registration order.
func (r *Registry) Definitions() []openai.Tool {
	defs := make([]openai.Tool, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.adapters[name].Definition())
	}
	return defs
}

// Invoke dispatches to the named adapter with panic containment.
//
// # Description
//
// Unknown tool names and adapter panics both become tagged error results.
// This is the single containment boundary between the agent loop and
// adapter code: nothing an adapter does can abort the conversation.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (result Result) {
	adapter, ok := r.adapters[name]
	if !ok {
		return Result{Kind: ResultError, Err: fmt.Sprintf("unknown tool %q", name)}
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool adapter panicked", "tool", name, "panic", rec)
			result = Result{Kind: ResultError, Err: fmt.Sprintf("tool %s failed unexpectedly", name)}
		}
	}()

	slog.Debug("invoking tool", "tool", name)
	return adapter.Invoke(ctx, args)
}

// =============================================================================
// Shared Argument Shapes
// =============================================================================

// tickerArgs is the argument shape shared by single-ticker tools.
type tickerArgs struct {
	Ticker string `json:"ticker"`
}

func decodeTicker(args json.RawMessage) (string, error) {
	var a tickerArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	if a.Ticker == "" {
		return "", fmt.Errorf("missing required argument: ticker")
	}
	// Model-supplied tickers end up in upstream request URLs.
	return validation.SanitizeTicker(a.Ticker)
}

// tickerSchema is the JSON schema for single-ticker tools.
func tickerSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ticker": map[string]any{
				"type":        "string",
				"description": "The ticker symbol, e.g. AAPL.",
			},
		},
		"required": []string{"ticker"},
	}
}

func functionTool(name, description string, schema map[string]any) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  schema,
		},
	}
}

// =============================================================================
// Price Adapter
// =============================================================================

// priceWindowDays is the trailing window scanned for the latest close.
const priceWindowDays = 5

type priceAdapter struct {
	provider marketdata.Provider
	now      func() time.Time
}

func (a *priceAdapter) Name() string { return ToolStockPrice }

func (a *priceAdapter) Definition() openai.Tool {
	return functionTool(ToolStockPrice,
		"A function that returns the current stock price based on a ticker symbol.",
		tickerSchema())
}

func (a *priceAdapter) Invoke(ctx context.Context, args json.RawMessage) Result {
	ticker, err := decodeTicker(args)
	if err != nil {
		return Result{Kind: ResultError, Err: err.Error()}
	}

	end := a.now()
	start := end.AddDate(0, 0, -priceWindowDays)
	bars, err := a.provider.History(ctx, ticker, start, end)
	if err != nil {
		return Result{Kind: ResultError, Ticker: ticker, Err: err.Error()}
	}
	if len(bars) == 0 {
		// Explicit "no data" sentinel, not an error.
		return Result{
			Kind:    ResultPrice,
			Ticker:  ticker,
			Payload: fmt.Sprintf("No price data found for %s.", ticker),
		}
	}
	return Result{Kind: ResultPrice, Ticker: ticker, Payload: bars[len(bars)-1].Close}
}

// =============================================================================
// Historical Price Adapter
// =============================================================================

type historyArgs struct {
	Ticker    string `json:"ticker"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type historyAdapter struct {
	provider marketdata.Provider
}

func (a *historyAdapter) Name() string { return ToolHistoricalPrice }

func (a *historyAdapter) Definition() openai.Tool {
	return functionTool(ToolHistoricalPrice,
		"A function that returns the current stock price over time based on a ticker symbol and a start and end date.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"ticker": map[string]any{
					"type":        "string",
					"description": "The ticker symbol, e.g. AAPL.",
				},
				"start_date": map[string]any{
					"type":        "string",
					"description": "Start date in YYYY-MM-DD format.",
				},
				"end_date": map[string]any{
					"type":        "string",
					"description": "End date in YYYY-MM-DD format.",
				},
			},
			"required": []string{"ticker", "start_date", "end_date"},
		})
}

func (a *historyAdapter) Invoke(ctx context.Context, args json.RawMessage) Result {
	var h historyArgs
	if err := json.Unmarshal(args, &h); err != nil {
		return Result{Kind: ResultError, Err: fmt.Sprintf("decode arguments: %v", err)}
	}
	ticker, err := validation.SanitizeTicker(h.Ticker)
	if err != nil {
		return Result{Kind: ResultError, Ticker: h.Ticker, Err: err.Error()}
	}
	h.Ticker = ticker
	start, err := time.Parse("2006-01-02", h.StartDate)
	if err != nil {
		return Result{Kind: ResultError, Ticker: h.Ticker, Err: fmt.Sprintf("invalid start_date: %v", err)}
	}
	end, err := time.Parse("2006-01-02", h.EndDate)
	if err != nil {
		return Result{Kind: ResultError, Ticker: h.Ticker, Err: fmt.Sprintf("invalid end_date: %v", err)}
	}

	bars, err := a.provider.History(ctx, h.Ticker, start, end)
	if err != nil {
		return Result{Kind: ResultError, Ticker: h.Ticker, Err: err.Error()}
	}
	return Result{Kind: ResultHistory, Ticker: h.Ticker, Payload: datatypes.NewChartData(bars)}
}

// =============================================================================
// Balance Sheet Adapter
// =============================================================================

type balanceSheetAdapter struct {
	provider marketdata.Provider
}

func (a *balanceSheetAdapter) Name() string { return ToolBalanceSheet }

func (a *balanceSheetAdapter) Definition() openai.Tool {
	return functionTool(ToolBalanceSheet,
		"A function that returns the balance sheet based on a ticker symbol.",
		tickerSchema())
}

func (a *balanceSheetAdapter) Invoke(ctx context.Context, args json.RawMessage) Result {
	ticker, err := decodeTicker(args)
	if err != nil {
		return Result{Kind: ResultError, Err: err.Error()}
	}

	sheet, err := a.provider.BalanceSheet(ctx, ticker)
	if err != nil {
		return Result{Kind: ResultError, Ticker: ticker, Err: err.Error()}
	}
	if sheet == nil {
		return Result{Kind: ResultBalanceSheet, Ticker: ticker, Payload: "No balance sheet data found."}
	}
	return Result{Kind: ResultBalanceSheet, Ticker: ticker, Payload: sheet}
}

// =============================================================================
// News Adapter
// =============================================================================

// newsLimit caps the passthrough news list.
const newsLimit = 10

type newsAdapter struct {
	provider marketdata.Provider
}

func (a *newsAdapter) Name() string { return ToolStockNews }

func (a *newsAdapter) Definition() openai.Tool {
	return functionTool(ToolStockNews,
		"A function that returns news based on a ticker symbol.",
		tickerSchema())
}

func (a *newsAdapter) Invoke(ctx context.Context, args json.RawMessage) Result {
	ticker, err := decodeTicker(args)
	if err != nil {
		return Result{Kind: ResultError, Err: err.Error()}
	}

	items, err := a.provider.News(ctx, ticker, newsLimit)
	if err != nil {
		return Result{Kind: ResultError, Ticker: ticker, Err: err.Error()}
	}
	return Result{Kind: ResultNews, Ticker: ticker, Payload: items}
}

// =============================================================================
// Analyst Recommendations Adapter
// =============================================================================

type recommendationsAdapter struct {
	provider marketdata.Provider
}

func (a *recommendationsAdapter) Name() string { return ToolRecommendations }

func (a *recommendationsAdapter) Definition() openai.Tool {
	return functionTool(ToolRecommendations,
		"A function that returns analyst recommendations based on a ticker symbol.",
		tickerSchema())
}

func (a *recommendationsAdapter) Invoke(ctx context.Context, args json.RawMessage) Result {
	ticker, err := decodeTicker(args)
	if err != nil {
		return Result{Kind: ResultError, Err: err.Error()}
	}

	recs, err := a.provider.Recommendations(ctx, ticker)
	if err != nil {
		return Result{Kind: ResultError, Ticker: ticker, Err: err.Error()}
	}
	if len(recs) == 0 {
		return Result{Kind: ResultRecommendations, Ticker: ticker, Payload: "No recommendations found."}
	}
	return Result{Kind: ResultRecommendations, Ticker: ticker, Payload: recs}
}

// =============================================================================
// Forecast Adapter
// =============================================================================

const defaultForecastMonths = 12

type forecastArgs struct {
	Ticker string `json:"ticker"`
	Months int    `json:"months"`
}

type forecastAdapter struct {
	estimator *ForecastEstimator
}

func (a *forecastAdapter) Name() string { return ToolForecast }

func (a *forecastAdapter) Definition() openai.Tool {
	return functionTool(ToolForecast,
		"A function that generates a price forecast for a ticker symbol for the next n months.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"ticker": map[string]any{
					"type":        "string",
					"description": "The ticker symbol, e.g. AAPL.",
				},
				"months": map[string]any{
					"type":        "integer",
					"description": "Number of months to forecast. Defaults to 12.",
				},
			},
			"required": []string{"ticker"},
		})
}

func (a *forecastAdapter) Invoke(ctx context.Context, args json.RawMessage) Result {
	var f forecastArgs
	if err := json.Unmarshal(args, &f); err != nil {
		return Result{Kind: ResultError, Err: fmt.Sprintf("decode arguments: %v", err)}
	}
	ticker, err := validation.SanitizeTicker(f.Ticker)
	if err != nil {
		return Result{Kind: ResultError, Ticker: f.Ticker, Err: err.Error()}
	}
	f.Ticker = ticker
	if f.Months == 0 {
		f.Months = defaultForecastMonths
	}

	points, err := a.estimator.Forecast(ctx, f.Ticker, f.Months)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return Result{Kind: ResultForecast, Ticker: f.Ticker, Payload: "Not enough data to forecast."}
		}
		return Result{Kind: ResultError, Ticker: f.Ticker, Err: err.Error()}
	}
	return Result{Kind: ResultForecast, Ticker: f.Ticker, Payload: points}
}
