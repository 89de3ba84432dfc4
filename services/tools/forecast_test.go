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
	"testing"
	"time"

	"github.com/AleutianAI/AleutianTicker/services/marketdata"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/datatypes"
)

// fakeProvider serves canned data for adapter and estimator tests.
type fakeProvider struct {
	bars    []datatypes.Bar
	sheet   *datatypes.BalanceSheet
	news    []datatypes.NewsItem
	recs    []datatypes.Recommendation
	err     error
	panicOn bool
}

func (p *fakeProvider) History(_ context.Context, _ string, _, _ time.Time) ([]datatypes.Bar, error) {
	if p.panicOn {
		panic("provider exploded")
	}
	return p.bars, p.err
}

func (p *fakeProvider) BalanceSheet(_ context.Context, _ string) (*datatypes.BalanceSheet, error) {
	return p.sheet, p.err
}

func (p *fakeProvider) News(_ context.Context, _ string, limit int) ([]datatypes.NewsItem, error) {
	if p.err != nil {
		return nil, p.err
	}
	if len(p.news) > limit {
		return p.news[:limit], nil
	}
	return p.news, nil
}

func (p *fakeProvider) Recommendations(_ context.Context, _ string) ([]datatypes.Recommendation, error) {
	return p.recs, p.err
}

var _ marketdata.Provider = (*fakeProvider)(nil)

// dailyBars builds n daily bars starting at start (midnight UTC) with
// closes produced by f(dayIndex).
func dailyBars(start time.Time, n int, f func(day int) float64) []datatypes.Bar {
	bars := make([]datatypes.Bar, n)
	for i := 0; i < n; i++ {
		ts := start.AddDate(0, 0, i)
		bars[i] = datatypes.Bar{
			Timestamp: ts.Unix() * 1000,
			Close:     f(i),
		}
	}
	return bars
}

func newTestEstimator(p marketdata.Provider, now time.Time) *ForecastEstimator {
	est := NewForecastEstimator(p)
	est.now = func() time.Time { return now }
	return est
}

// =============================================================================
// Forecast Tests
// =============================================================================

// TestForecast_PointCountAndSpacing tests that the projection has
// exactly the requested points, ascending at 30-day spacing.
func TestForecast_PointCountAndSpacing(t *testing.T) {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{bars: dailyBars(start, 400, func(d int) float64 {
		return 100 + 0.1*float64(d)
	})}
	est := newTestEstimator(provider, start.AddDate(0, 0, 400))

	points, err := est.Forecast(context.Background(), "AAPL", 12)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	if len(points) != 12 {
		t.Fatalf("got %d points, want 12", len(points))
	}

	lastBarDate := start.AddDate(0, 0, 399)
	prev := lastBarDate
	for i, pt := range points {
		date, err := time.Parse("2006-01-02", pt.Date)
		if err != nil {
			t.Fatalf("point %d has unparseable date %q", i, pt.Date)
		}
		if got := date.Sub(prev); got != 30*24*time.Hour {
			t.Errorf("point %d is %v after the previous, want 720h", i, got)
		}
		prev = date
	}
}

// TestForecast_RecoversExactQuadratic tests that a pure quadratic series
// is projected exactly (modulo 2-decimal rounding).
func TestForecast_RecoversExactQuadratic(t *testing.T) {
	const (
		c0 = 50.0
		c1 = 0.25
		c2 = 0.001
	)
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{bars: dailyBars(start, 300, func(d int) float64 {
		x := float64(d)
		return c0 + c1*x + c2*x*x
	})}
	est := newTestEstimator(provider, start.AddDate(0, 0, 300))

	points, err := est.Forecast(context.Background(), "AAPL", 3)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	for i, pt := range points {
		x := float64(299 + 30*(i+1))
		want := math.Round((c0+c1*x+c2*x*x)*100) / 100
		if math.Abs(pt.Price-want) > 0.011 {
			t.Errorf("point %d: price = %v, want %v", i, pt.Price, want)
		}
	}
}

// TestForecast_PricesAreRounded tests 2-decimal rounding of output.
func TestForecast_PricesAreRounded(t *testing.T) {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{bars: dailyBars(start, 200, func(d int) float64 {
		return 123.456789 + 0.000321*float64(d)
	})}
	est := newTestEstimator(provider, start.AddDate(0, 0, 200))

	points, err := est.Forecast(context.Background(), "AAPL", 6)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	for i, pt := range points {
		if got := math.Round(pt.Price*100) / 100; got != pt.Price {
			t.Errorf("point %d price %v is not rounded to 2 decimals", i, pt.Price)
		}
	}
}

// TestForecast_NoDataSentinel tests the empty-history outcome.
func TestForecast_NoDataSentinel(t *testing.T) {
	est := newTestEstimator(&fakeProvider{}, time.Now())

	_, err := est.Forecast(context.Background(), "NODATA", 12)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("got error %v, want ErrNoData", err)
	}
}

// TestForecast_ProviderErrorPropagates tests that fetch failures are
// not masked as the no-data sentinel.
func TestForecast_ProviderErrorPropagates(t *testing.T) {
	est := newTestEstimator(&fakeProvider{err: fmt.Errorf("upstream 500")}, time.Now())

	_, err := est.Forecast(context.Background(), "AAPL", 12)
	if err == nil || errors.Is(err, ErrNoData) {
		t.Errorf("got error %v, want wrapped provider error", err)
	}
}

// TestForecast_RejectsNonPositiveMonths tests input validation.
func TestForecast_RejectsNonPositiveMonths(t *testing.T) {
	est := newTestEstimator(&fakeProvider{}, time.Now())

	if _, err := est.Forecast(context.Background(), "AAPL", 0); err == nil {
		t.Error("months = 0 should be rejected")
	}
	if _, err := est.Forecast(context.Background(), "AAPL", -3); err == nil {
		t.Error("negative months should be rejected")
	}
}

// TestPolyfit2_SingularInput tests that too few distinct observations
// produce an error instead of garbage coefficients.
func TestPolyfit2_SingularInput(t *testing.T) {
	_, err := polyfit2([]float64{1, 1, 1}, []float64{2, 2, 2})
	if err == nil {
		t.Error("constant x values should yield a singular system")
	}
}

// TestPolyfit2_ExactFit tests coefficient recovery on clean input.
func TestPolyfit2_ExactFit(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4, 5}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 7 - 2*x + 0.5*x*x
	}

	coef, err := polyfit2(xs, ys)
	if err != nil {
		t.Fatalf("polyfit2 failed: %v", err)
	}
	want := [3]float64{7, -2, 0.5}
	for i := range want {
		if math.Abs(coef[i]-want[i]) > 1e-9 {
			t.Errorf("coef[%d] = %v, want %v", i, coef[i], want[i])
		}
	}
}
