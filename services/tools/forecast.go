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
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/AleutianAI/AleutianTicker/services/marketdata"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/datatypes"
)

// =============================================================================
// Forecast Estimator
// =============================================================================

// ErrNoData signals that the provider had no price history to fit.
// It is a sentinel, not a failure: tool adapters translate it into a
// human-readable "not enough data" message for the model.
var ErrNoData = errors.New("not enough data to forecast")

const (
	// historyYears is how far back the estimator fetches daily closes.
	historyYears = 2

	// futureStepDays is the spacing between projected points.
	futureStepDays = 30

	// secondsPerDay converts Unix seconds to ordinal day counts.
	secondsPerDay = 86400
)

// ForecastEstimator fits a low-order polynomial trend to historical closing
// prices and projects it forward.
//
// # Description
//
// The estimator fetches ~2 years of daily closes, fits a degree-2
// polynomial of close against ordinal day (ordinary least squares via the
// normal equations), and evaluates the fitted curve at future dates spaced
// 30 days apart. Output prices are rounded to 2 decimal places.
//
// # Thread Safety
//
// Safe for concurrent use; the only state is the injected Provider.
type ForecastEstimator struct {
	provider marketdata.Provider
	now      func() time.Time
}

// NewForecastEstimator creates an estimator backed by the given provider.
func NewForecastEstimator(provider marketdata.Provider) *ForecastEstimator {
	return &ForecastEstimator{provider: provider, now: time.Now}
}

// Forecast projects the closing price of ticker for the next months months.
//
// # Description
//
// Fetches daily history, fits the trend, and generates exactly months
// points with dates strictly ascending at 30-day spacing, starting 30 days
// after the last observed date.
//
// # Inputs
//
//   - ctx: Context for cancellation of the history fetch.
//   - ticker: Ticker symbol.
//   - months: Number of points to project. Must be >= 1.
//
// # Outputs
//
//   - []datatypes.ForecastPoint: Exactly months points on success.
//   - error: ErrNoData when the provider has no rows; otherwise fetch errors.
//
// # Limitations
//
//   - The fit is a trend extrapolation, not a market prediction.
//   - Determinism holds for identical input series; no guarantee is made
//     that different implementations round identically at the last ulp.
func (f *ForecastEstimator) Forecast(ctx context.Context, ticker string, months int) ([]datatypes.ForecastPoint, error) {
	if months < 1 {
		return nil, fmt.Errorf("months must be >= 1, got %d", months)
	}

	end := f.now()
	start := end.AddDate(-historyYears, 0, 0)
	bars, err := f.provider.History(ctx, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	// Ordinal day counts, shifted to start at zero. The shift keeps the
	// normal-equation sums well conditioned without changing the curve.
	base := bars[0].Timestamp / 1000 / secondsPerDay
	xs := make([]float64, len(bars))
	ys := make([]float64, len(bars))
	for i, b := range bars {
		xs[i] = float64(b.Timestamp/1000/secondsPerDay - base)
		ys[i] = b.Close
	}

	coef, err := polyfit2(xs, ys)
	if err != nil {
		return nil, fmt.Errorf("fit trend for %s: %w", ticker, err)
	}

	lastSec := bars[len(bars)-1].Timestamp / 1000
	lastDate := time.Unix(lastSec, 0).UTC()

	points := make([]datatypes.ForecastPoint, 0, months)
	for i := 1; i <= months; i++ {
		future := lastDate.AddDate(0, 0, futureStepDays*i)
		x := float64(future.Unix()/secondsPerDay - base)
		price := coef[0] + coef[1]*x + coef[2]*x*x
		points = append(points, datatypes.ForecastPoint{
			Date:  future.Format("2006-01-02"),
			Price: round2(price),
		})
	}
	return points, nil
}

// polyfit2 fits y = c0 + c1*x + c2*x^2 by ordinary least squares.
//
// # Description
//
// Builds the 3x3 normal equations from the moment sums and solves them
// with Gaussian elimination and partial pivoting. Degenerate inputs
// (fewer than 3 distinct x values) produce a singular system.
//
// # Outputs
//
//   - [3]float64: Coefficients c0, c1, c2.
//   - error: Non-nil if the system is singular.
func polyfit2(xs, ys []float64) ([3]float64, error) {
	var s [5]float64 // s[k] = sum of x^k
	var t [3]float64 // t[k] = sum of y * x^k
	for i, x := range xs {
		xp := 1.0
		for k := 0; k < 5; k++ {
			s[k] += xp
			if k < 3 {
				t[k] += ys[i] * xp
			}
			xp *= x
		}
	}

	m := [3][4]float64{
		{s[0], s[1], s[2], t[0]},
		{s[1], s[2], s[3], t[1]},
		{s[2], s[3], s[4], t[2]},
	}

	// Gaussian elimination with partial pivoting.
	for col := 0; col < 3; col++ {
		pivot := col
		for row := col + 1; row < 3; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		m[col], m[pivot] = m[pivot], m[col]
		if m[col][col] == 0 {
			return [3]float64{}, errors.New("singular system: not enough distinct observations")
		}
		for row := col + 1; row < 3; row++ {
			factor := m[row][col] / m[col][col]
			for k := col; k < 4; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}

	var coef [3]float64
	for row := 2; row >= 0; row-- {
		sum := m[row][3]
		for k := row + 1; k < 3; k++ {
			sum -= m[row][k] * coef[k]
		}
		coef[row] = sum / m[row][row]
	}
	return coef, nil
}

// round2 rounds to 2 decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
