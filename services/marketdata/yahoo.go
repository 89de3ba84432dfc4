// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/AleutianAI/AleutianTicker/services/orchestrator/datatypes"
)

// =============================================================================
// Yahoo Finance Provider
// =============================================================================

// defaultBaseURL is the Yahoo Finance query host. Overridable for tests.
const defaultBaseURL = "https://query1.finance.yahoo.com"

// userAgent is sent on every request. Yahoo rejects requests without a
// browser-looking User-Agent.
const userAgent = "Mozilla/5.0"

// YahooProvider implements Provider using the Yahoo Finance public API.
//
// # Description
//
// Uses the v8 chart endpoint for price history, the v10 quoteSummary
// endpoint for balance sheets and recommendation trends, and the v1 search
// endpoint for news. Rows with null quotes are skipped; timestamps are
// normalized to milliseconds since epoch.
//
// # Thread Safety
//
// Safe for concurrent use; state is the shared http.Client only.
type YahooProvider struct {
	client  *http.Client
	baseURL string
}

// NewYahooProvider creates a Yahoo Finance backed Provider.
//
// # Inputs
//
//   - client: HTTP client to use. If nil, a client with a 30s timeout is used.
func NewYahooProvider(client *http.Client) *YahooProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &YahooProvider{client: client, baseURL: defaultBaseURL}
}

// NewYahooProviderWithBaseURL creates a provider pointed at a custom host.
// Used by tests to target an httptest server.
func NewYahooProviderWithBaseURL(client *http.Client, baseURL string) *YahooProvider {
	p := NewYahooProvider(client)
	p.baseURL = baseURL
	return p
}

// =============================================================================
// Wire Shapes
// =============================================================================

// yahooChart is the response structure from the Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// yahooQuoteSummary is the response structure from the quoteSummary API,
// narrowed to the modules this provider requests.
type yahooQuoteSummary struct {
	QuoteSummary struct {
		Result []struct {
			RecommendationTrend *struct {
				Trend []struct {
					Period     string `json:"period"`
					StrongBuy  int    `json:"strongBuy"`
					Buy        int    `json:"buy"`
					Hold       int    `json:"hold"`
					Sell       int    `json:"sell"`
					StrongSell int    `json:"strongSell"`
				} `json:"trend"`
			} `json:"recommendationTrend"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// yahooSearch is the response structure from the search API (news source).
type yahooSearch struct {
	News []struct {
		Title               string `json:"title"`
		Publisher           string `json:"publisher"`
		Link                string `json:"link"`
		ProviderPublishTime int64  `json:"providerPublishTime"`
	} `json:"news"`
}

// =============================================================================
// Provider Implementation
// =============================================================================

// History implements Provider.
func (p *YahooProvider) History(ctx context.Context, ticker string, start, end time.Time) ([]datatypes.Bar, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d",
		p.baseURL, url.PathEscape(ticker), start.Unix(), end.Unix())

	var chart yahooChart
	if err := p.getJSON(ctx, u, &chart); err != nil {
		return nil, fmt.Errorf("yahoo chart fetch for %s: %w", ticker, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error for %s: %s", ticker, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return []datatypes.Bar{}, nil
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return []datatypes.Bar{}, nil
	}
	quote := result.Indicators.Quote[0]

	bars := make([]datatypes.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue // market holiday / null row
		}
		bar := datatypes.Bar{
			Timestamp: ts * 1000,
			Close:     *quote.Close[i],
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			bar.Open = *quote.Open[i]
		}
		if i < len(quote.High) && quote.High[i] != nil {
			bar.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			bar.Low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		if math.IsNaN(bar.Close) {
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// BalanceSheet implements Provider.
func (p *YahooProvider) BalanceSheet(ctx context.Context, ticker string) (*datatypes.BalanceSheet, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=balanceSheetHistory",
		p.baseURL, url.PathEscape(ticker))

	// The statement line items vary by company, so the statements are
	// decoded generically before being shaped into split orientation.
	var raw struct {
		QuoteSummary struct {
			Result []struct {
				BalanceSheetHistory struct {
					Statements []map[string]json.RawMessage `json:"balanceSheetStatements"`
				} `json:"balanceSheetHistory"`
			} `json:"result"`
			Error *struct {
				Description string `json:"description"`
			} `json:"error"`
		} `json:"quoteSummary"`
	}
	if err := p.getJSON(ctx, u, &raw); err != nil {
		return nil, fmt.Errorf("yahoo balance sheet fetch for %s: %w", ticker, err)
	}
	if raw.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("yahoo balance sheet error for %s: %s", ticker, raw.QuoteSummary.Error.Description)
	}
	if len(raw.QuoteSummary.Result) == 0 || len(raw.QuoteSummary.Result[0].BalanceSheetHistory.Statements) == 0 {
		return nil, nil
	}

	stmt := raw.QuoteSummary.Result[0].BalanceSheetHistory.Statements[0]
	return shapeBalanceSheet(stmt), nil
}

// shapeBalanceSheet converts one raw statement into split orientation.
// Non-numeric items (endDate, maxAge) become the column label or are dropped.
func shapeBalanceSheet(stmt map[string]json.RawMessage) *datatypes.BalanceSheet {
	type rawValue struct {
		Raw float64 `json:"raw"`
		Fmt string  `json:"fmt"`
	}

	column := ""
	if endRaw, ok := stmt["endDate"]; ok {
		var end rawValue
		if err := json.Unmarshal(endRaw, &end); err == nil {
			column = end.Fmt
		}
	}

	// Map iteration order varies between calls; line items are sorted so
	// the same ticker always yields the same payload.
	names := make([]string, 0, len(stmt))
	for name := range stmt {
		if name == "endDate" || name == "maxAge" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	sheet := &datatypes.BalanceSheet{
		Columns: []string{column},
		Index:   make([]string, 0, len(names)),
		Data:    make([][]float64, 0, len(names)),
	}
	for _, name := range names {
		var v rawValue
		if err := json.Unmarshal(stmt[name], &v); err != nil {
			continue
		}
		sheet.Index = append(sheet.Index, name)
		sheet.Data = append(sheet.Data, []float64{v.Raw})
	}
	return sheet
}

// News implements Provider.
func (p *YahooProvider) News(ctx context.Context, ticker string, limit int) ([]datatypes.NewsItem, error) {
	u := fmt.Sprintf("%s/v1/finance/search?q=%s&newsCount=%d",
		p.baseURL, url.QueryEscape(ticker), limit)

	var search yahooSearch
	if err := p.getJSON(ctx, u, &search); err != nil {
		return nil, fmt.Errorf("yahoo news fetch for %s: %w", ticker, err)
	}

	items := make([]datatypes.NewsItem, 0, len(search.News))
	for _, n := range search.News {
		items = append(items, datatypes.NewsItem{
			Title:       n.Title,
			Publisher:   n.Publisher,
			Link:        n.Link,
			PublishedAt: n.ProviderPublishTime * 1000,
		})
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

// Recommendations implements Provider.
func (p *YahooProvider) Recommendations(ctx context.Context, ticker string) ([]datatypes.Recommendation, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=recommendationTrend",
		p.baseURL, url.PathEscape(ticker))

	var summary yahooQuoteSummary
	if err := p.getJSON(ctx, u, &summary); err != nil {
		return nil, fmt.Errorf("yahoo recommendations fetch for %s: %w", ticker, err)
	}
	if summary.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("yahoo recommendations error for %s: %s",
			ticker, summary.QuoteSummary.Error.Description)
	}
	if len(summary.QuoteSummary.Result) == 0 || summary.QuoteSummary.Result[0].RecommendationTrend == nil {
		return []datatypes.Recommendation{}, nil
	}

	trend := summary.QuoteSummary.Result[0].RecommendationTrend.Trend
	recs := make([]datatypes.Recommendation, 0, len(trend))
	for _, t := range trend {
		recs = append(recs, datatypes.Recommendation{
			Period:     t.Period,
			StrongBuy:  t.StrongBuy,
			Buy:        t.Buy,
			Hold:       t.Hold,
			Sell:       t.Sell,
			StrongSell: t.StrongSell,
		})
	}
	return recs, nil
}

// getJSON performs a GET request and decodes the JSON body into out.
func (p *YahooProvider) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ Provider = (*YahooProvider)(nil)
