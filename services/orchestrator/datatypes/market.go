// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "strconv"

// =============================================================================
// Market Data Payload Types
// =============================================================================

// Bar is one OHLCV observation for a ticker.
//
// Timestamp is milliseconds since the Unix epoch, the unit the chart
// protocol and the frontend expect.
type Bar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// ChartData is the chart payload shape: column name -> (epoch-ms key -> value).
//
// # Description
//
// This mirrors a column-oriented frame dump, which is what chart consumers
// were built against: each OHLCV column maps millisecond timestamps (as
// decimal strings, since JSON object keys are strings) to values.
//
// # Examples
//
//	{"Close": {"1700006400000": 150.25}, "Open": {...}, ...}
type ChartData map[string]map[string]float64

// NewChartData converts a bar series into the column-oriented chart payload.
//
// # Inputs
//
//   - bars: OHLCV series, assumed ordered by timestamp ascending.
//
// # Outputs
//
//   - ChartData: Column-oriented payload. Empty (non-nil) for empty input.
func NewChartData(bars []Bar) ChartData {
	data := ChartData{
		"Open":   make(map[string]float64, len(bars)),
		"High":   make(map[string]float64, len(bars)),
		"Low":    make(map[string]float64, len(bars)),
		"Close":  make(map[string]float64, len(bars)),
		"Volume": make(map[string]float64, len(bars)),
	}
	for _, b := range bars {
		key := strconv.FormatInt(b.Timestamp, 10)
		data["Open"][key] = b.Open
		data["High"][key] = b.High
		data["Low"][key] = b.Low
		data["Close"][key] = b.Close
		data["Volume"][key] = float64(b.Volume)
	}
	return data
}

// BalanceSheet is the most recent structured financial statement for a
// ticker, in split orientation: Columns are reporting periods, Index are
// line-item names, and Data is row-major values aligned with Index/Columns.
//
// The split orientation is preserved from the upstream provider shape so
// existing frontends can render it without translation.
type BalanceSheet struct {
	Columns []string    `json:"columns"`
	Index   []string    `json:"index"`
	Data    [][]float64 `json:"data"`
}

// NewsItem is a single news entry for a ticker, passthrough from the
// provider with only field renaming.
type NewsItem struct {
	Title       string `json:"title"`
	Publisher   string `json:"publisher"`
	Link        string `json:"link"`
	PublishedAt int64  `json:"providerPublishTime"`
}

// Recommendation is one analyst rating record: the distribution of ratings
// over a trailing period (e.g. "0m" is the current month).
type Recommendation struct {
	Period     string `json:"period"`
	StrongBuy  int    `json:"strongBuy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strongSell"`
}

// ForecastPoint is one projected (date, price) pair. Date is formatted
// YYYY-MM-DD; Price is rounded to 2 decimal places.
type ForecastPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}
