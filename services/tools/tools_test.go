// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianTicker/services/orchestrator/datatypes"
)

// =============================================================================
// Registry Tests
// =============================================================================

// TestRegistry_AdvertisesAllSixTools tests the definition set and its
// stable order.
func TestRegistry_AdvertisesAllSixTools(t *testing.T) {
	registry := NewRegistry(&fakeProvider{})
	defs := registry.Definitions()

	want := []string{
		ToolStockPrice, ToolHistoricalPrice, ToolBalanceSheet,
		ToolStockNews, ToolRecommendations, ToolForecast,
	}
	if len(defs) != len(want) {
		t.Fatalf("got %d definitions, want %d", len(defs), len(want))
	}
	for i, name := range want {
		if defs[i].Function.Name != name {
			t.Errorf("definition %d = %q, want %q", i, defs[i].Function.Name, name)
		}
	}
}

// TestRegistry_UnknownToolIsContained tests that a bad tool name becomes
// an error result, not a failure.
func TestRegistry_UnknownToolIsContained(t *testing.T) {
	registry := NewRegistry(&fakeProvider{})

	result := registry.Invoke(context.Background(), "get_magic_numbers", json.RawMessage(`{}`))
	if !result.IsError() {
		t.Fatal("unknown tool should produce an error result")
	}
	if !strings.Contains(result.Err, "get_magic_numbers") {
		t.Errorf("error %q should name the unknown tool", result.Err)
	}
}

// TestRegistry_PanicIsContained tests the recover boundary.
func TestRegistry_PanicIsContained(t *testing.T) {
	registry := NewRegistry(&fakeProvider{panicOn: true})

	result := registry.Invoke(context.Background(), ToolStockPrice,
		json.RawMessage(`{"ticker":"AAPL"}`))
	if !result.IsError() {
		t.Fatal("a panicking adapter should produce an error result")
	}
}

// =============================================================================
// Adapter Tests
// =============================================================================

// TestPriceAdapter_ReturnsLatestClose tests the happy path.
func TestPriceAdapter_ReturnsLatestClose(t *testing.T) {
	start := time.Date(2025, 5, 26, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{bars: dailyBars(start, 5, func(d int) float64 {
		return 100 + float64(d)
	})}
	registry := NewRegistry(provider)

	result := registry.Invoke(context.Background(), ToolStockPrice,
		json.RawMessage(`{"ticker":"AAPL"}`))
	if result.IsError() {
		t.Fatalf("unexpected error: %s", result.Err)
	}
	if got := result.Payload.(float64); got != 104 {
		t.Errorf("price = %v, want 104 (latest close)", got)
	}
}

// TestPriceAdapter_NoDataSentinel tests the empty-history message.
func TestPriceAdapter_NoDataSentinel(t *testing.T) {
	registry := NewRegistry(&fakeProvider{})

	result := registry.Invoke(context.Background(), ToolStockPrice,
		json.RawMessage(`{"ticker":"ZZZZ"}`))
	if result.IsError() {
		t.Fatalf("sentinel should not be an error: %s", result.Err)
	}
	if result.Payload != "No price data found for ZZZZ." {
		t.Errorf("payload = %v, want the no-data sentinel", result.Payload)
	}
	if result.HasData() {
		t.Error("sentinel results must not be flagged as structured data")
	}
}

// TestAdapters_ProviderErrorIsContained tests that upstream failures
// become error results for every provider-backed tool.
func TestAdapters_ProviderErrorIsContained(t *testing.T) {
	registry := NewRegistry(&fakeProvider{err: fmt.Errorf("connection refused")})

	calls := map[string]string{
		ToolStockPrice:      `{"ticker":"AAPL"}`,
		ToolHistoricalPrice: `{"ticker":"AAPL","start_date":"2025-01-01","end_date":"2025-02-01"}`,
		ToolBalanceSheet:    `{"ticker":"AAPL"}`,
		ToolStockNews:       `{"ticker":"AAPL"}`,
		ToolRecommendations: `{"ticker":"AAPL"}`,
		ToolForecast:        `{"ticker":"AAPL"}`,
	}
	for name, args := range calls {
		result := registry.Invoke(context.Background(), name, json.RawMessage(args))
		if !result.IsError() {
			t.Errorf("%s: provider failure should be a contained error", name)
		}
	}
}

// TestAdapters_RejectMalformedTickers tests the sanitation boundary.
func TestAdapters_RejectMalformedTickers(t *testing.T) {
	registry := NewRegistry(&fakeProvider{})

	result := registry.Invoke(context.Background(), ToolStockPrice,
		json.RawMessage(`{"ticker":"../etc/passwd"}`))
	if !result.IsError() {
		t.Error("malformed ticker should be rejected before reaching the provider")
	}
}

// TestAdapters_NormalizeLowercaseTickers tests that casual casing works.
func TestAdapters_NormalizeLowercaseTickers(t *testing.T) {
	start := time.Date(2025, 5, 26, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{bars: dailyBars(start, 3, func(d int) float64 { return 10 })}
	registry := NewRegistry(provider)

	result := registry.Invoke(context.Background(), ToolStockPrice,
		json.RawMessage(`{"ticker":"aapl"}`))
	if result.IsError() {
		t.Fatalf("lowercase ticker should be normalized, got error: %s", result.Err)
	}
	if result.Ticker != "AAPL" {
		t.Errorf("result ticker = %q, want AAPL", result.Ticker)
	}
}

// TestHistoryAdapter_BadDatesRejected tests date validation.
func TestHistoryAdapter_BadDatesRejected(t *testing.T) {
	registry := NewRegistry(&fakeProvider{})

	result := registry.Invoke(context.Background(), ToolHistoricalPrice,
		json.RawMessage(`{"ticker":"AAPL","start_date":"01/02/2025","end_date":"2025-02-01"}`))
	if !result.IsError() {
		t.Error("non-ISO start date should be rejected")
	}
}

// TestHistoryAdapter_ProducesChartData tests the payload shape.
func TestHistoryAdapter_ProducesChartData(t *testing.T) {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{bars: dailyBars(start, 2, func(d int) float64 {
		return 50 + float64(d)
	})}
	registry := NewRegistry(provider)

	result := registry.Invoke(context.Background(), ToolHistoricalPrice,
		json.RawMessage(`{"ticker":"AAPL","start_date":"2025-01-01","end_date":"2025-01-10"}`))
	if result.IsError() {
		t.Fatalf("unexpected error: %s", result.Err)
	}
	chart, ok := result.Payload.(datatypes.ChartData)
	if !ok {
		t.Fatalf("payload is %T, want ChartData", result.Payload)
	}
	if len(chart["Close"]) != 2 {
		t.Errorf("Close series has %d entries, want 2", len(chart["Close"]))
	}
	if !result.HasData() {
		t.Error("chart payload should be flagged as structured data")
	}
}

// TestBalanceSheetAdapter_NilSheetSentinel tests the missing-sheet path.
func TestBalanceSheetAdapter_NilSheetSentinel(t *testing.T) {
	registry := NewRegistry(&fakeProvider{})

	result := registry.Invoke(context.Background(), ToolBalanceSheet,
		json.RawMessage(`{"ticker":"AAPL"}`))
	if result.IsError() {
		t.Fatalf("sentinel should not be an error: %s", result.Err)
	}
	if result.Payload != "No balance sheet data found." {
		t.Errorf("payload = %v, want the no-data sentinel", result.Payload)
	}
}

// TestRecommendationsAdapter_EmptySentinel tests the no-coverage path.
func TestRecommendationsAdapter_EmptySentinel(t *testing.T) {
	registry := NewRegistry(&fakeProvider{})

	result := registry.Invoke(context.Background(), ToolRecommendations,
		json.RawMessage(`{"ticker":"AAPL"}`))
	if result.IsError() {
		t.Fatalf("sentinel should not be an error: %s", result.Err)
	}
	if result.HasData() {
		t.Error("empty recommendations should not be structured data")
	}
}

// TestForecastAdapter_DefaultsToTwelveMonths tests the months default.
func TestForecastAdapter_DefaultsToTwelveMonths(t *testing.T) {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{bars: dailyBars(start, 300, func(d int) float64 {
		return 100 + 0.05*float64(d)
	})}
	registry := NewRegistry(provider)

	result := registry.Invoke(context.Background(), ToolForecast,
		json.RawMessage(`{"ticker":"AAPL"}`))
	if result.IsError() {
		t.Fatalf("unexpected error: %s", result.Err)
	}
	points, ok := result.Payload.([]datatypes.ForecastPoint)
	if !ok {
		t.Fatalf("payload is %T, want []ForecastPoint", result.Payload)
	}
	if len(points) != 12 {
		t.Errorf("got %d points, want the default 12", len(points))
	}
}

// TestForecastAdapter_NoDataSentinel tests sentinel translation.
func TestForecastAdapter_NoDataSentinel(t *testing.T) {
	registry := NewRegistry(&fakeProvider{})

	result := registry.Invoke(context.Background(), ToolForecast,
		json.RawMessage(`{"ticker":"AAPL","months":6}`))
	if result.IsError() {
		t.Fatalf("no-data should be a sentinel, not an error: %s", result.Err)
	}
	if result.Payload != "Not enough data to forecast." {
		t.Errorf("payload = %v, want the no-data sentinel", result.Payload)
	}
}

// =============================================================================
// Result Rendering Tests
// =============================================================================

// TestResult_ModelText tests the three rendering paths.
func TestResult_ModelText(t *testing.T) {
	errResult := Result{Kind: ResultError, Err: "boom"}
	if got := errResult.ModelText(); got != "Tool failed: boom" {
		t.Errorf("error rendering = %q", got)
	}

	sentinel := Result{Kind: ResultPrice, Payload: "No price data found for X."}
	if got := sentinel.ModelText(); got != "No price data found for X." {
		t.Errorf("sentinel rendering = %q", got)
	}

	structured := Result{Kind: ResultForecast, Payload: []datatypes.ForecastPoint{
		{Date: "2025-07-01", Price: 123.45},
	}}
	var decoded []datatypes.ForecastPoint
	if err := json.Unmarshal([]byte(structured.ModelText()), &decoded); err != nil {
		t.Fatalf("structured rendering is not JSON: %v", err)
	}
	if decoded[0].Price != 123.45 {
		t.Errorf("decoded price = %v, want 123.45", decoded[0].Price)
	}
}
