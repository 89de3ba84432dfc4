// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package marketdata provides access to the external financial data
// provider (ticker price history, financial statements, news, analyst
// recommendations).
//
// The package exposes a Provider interface so tool adapters and tests can
// swap the live Yahoo Finance client for fakes. All methods take a context
// and perform network I/O.
package marketdata

import (
	"context"
	"time"

	"github.com/AleutianAI/AleutianTicker/services/orchestrator/datatypes"
)

// =============================================================================
// Provider Interface
// =============================================================================

// Provider defines the contract for a financial data source.
//
// # Description
//
// Each method fetches one capability for a ticker symbol. Implementations
// must return typed results; "the provider had nothing" is expressed as an
// empty slice or nil pointer with a nil error, never as an error. Errors
// are reserved for transport and decode failures.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use: several in-flight chat
// requests may invoke tools at once.
type Provider interface {
	// History returns daily OHLCV bars for the ticker between start and end
	// (inclusive start, exclusive end), ordered by timestamp ascending.
	// An empty slice with nil error means the provider had no rows.
	History(ctx context.Context, ticker string, start, end time.Time) ([]datatypes.Bar, error)

	// BalanceSheet returns the most recent balance sheet for the ticker,
	// or nil with nil error if the provider has none.
	BalanceSheet(ctx context.Context, ticker string) (*datatypes.BalanceSheet, error)

	// News returns up to limit recent news items for the ticker.
	News(ctx context.Context, ticker string, limit int) ([]datatypes.NewsItem, error)

	// Recommendations returns analyst rating records for the ticker.
	// An empty slice with nil error means no recommendations exist.
	Recommendations(ctx context.Context, ticker string) ([]datatypes.Recommendation, error)
}
