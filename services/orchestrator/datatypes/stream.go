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

// =============================================================================
// Stream Protocol Types
// =============================================================================

// StreamEventType tags one line of the streamed chat response.
type StreamEventType string

// Protocol event types. Each streamed line is a JSON object whose "type"
// field carries one of these values. "text" lines carry a content fragment;
// all other types carry a structured data payload.
const (
	StreamEventText          StreamEventType = "text"
	StreamEventChart         StreamEventType = "chart"
	StreamEventForecast      StreamEventType = "forecast"
	StreamEventAnalystRating StreamEventType = "analyst_rating"
	StreamEventNews          StreamEventType = "news"
	StreamEventBalanceSheet  StreamEventType = "balance_sheet"
)

// StreamEvent is a single line of the streamed response.
//
// # Description
//
// StreamEvent is the wire shape of the newline-delimited JSON protocol:
//
//	{"type": "text", "content": "Apple is"}
//	{"type": "chart", "data": {...}}
//
// Content is set only for text events; Data only for structured events.
// Events are emitted exactly once per source agent event, in arrival order.
//
// # Fields
//
//   - Type: Required. Event discriminator.
//   - Content: Text fragment for text events.
//   - Data: Structured payload for chart/forecast/analyst_rating/news/balance_sheet.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Data    any             `json:"data,omitempty"`
}
