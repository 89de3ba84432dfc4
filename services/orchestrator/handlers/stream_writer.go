// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/AleutianAI/AleutianTicker/services/orchestrator/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// StreamWriter defines the contract for writing newline-delimited JSON
// stream events to HTTP responses.
//
// # Description
//
// StreamWriter abstracts event serialization and writing, enabling
// testability and separation from HTTP response mechanics. Each event is
// one JSON object on its own line, flushed immediately so the browser
// renders content as it arrives.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use by multiple
// goroutines. Streaming handlers may emit text and tool results from
// different sources concurrently.
//
// # Limitations
//
//   - Must be used with an http.Flusher-compatible ResponseWriter
//   - Response headers must be set before the first write
//
// # Assumptions
//
//   - Caller has set streaming headers via SetStreamHeaders()
type StreamWriter interface {
	// WriteText writes a text event carrying a model text fragment.
	WriteText(content string) error

	// WriteData writes a structured event of the given type with a
	// data payload.
	//
	// # Description
	//
	// Serializes {type, data} to one JSON line and flushes. When the
	// payload cannot be serialized, a text event noting the failure is
	// written instead and no error is returned; a bad payload must not
	// kill an otherwise healthy stream.
	WriteData(eventType datatypes.StreamEventType, data any) error
}

// =============================================================================
// Struct Definition
// =============================================================================

// streamWriter implements StreamWriter for HTTP NDJSON responses.
//
// # Description
//
// streamWriter wraps an http.ResponseWriter to emit one JSON object per
// line:
//
//	{"type":"text","content":"..."}
//	{"type":"chart","data":{...}}
//
// # Fields
//
//   - writer: Underlying http.ResponseWriter
//   - flusher: http.Flusher interface for immediate send
//   - mu: Mutex for thread-safe writes
//
// # Thread Safety
//
// Thread-safe via mutex. Lines from concurrent writers never interleave.
//
// # Limitations
//
//   - Cannot be reused across requests
type streamWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// =============================================================================
// Constructor
// =============================================================================

// NewStreamWriter creates a StreamWriter for the given ResponseWriter.
//
// # Inputs
//
//   - w: HTTP ResponseWriter. Must implement http.Flusher.
//
// # Outputs
//
//   - StreamWriter: Ready to write events.
//   - error: Non-nil if the ResponseWriter doesn't support flushing.
func NewStreamWriter(w http.ResponseWriter) (StreamWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &streamWriter{
		writer:  w,
		flusher: flusher,
	}, nil
}

// =============================================================================
// Methods
// =============================================================================

// WriteText writes a text event with the given content.
func (w *streamWriter) WriteText(content string) error {
	return w.writeEvent(datatypes.StreamEvent{
		Type:    datatypes.StreamEventText,
		Content: content,
	})
}

// WriteData writes a structured event, downgrading to a text notice when
// the payload is not serializable.
func (w *streamWriter) WriteData(eventType datatypes.StreamEventType, data any) error {
	err := w.writeEvent(datatypes.StreamEvent{
		Type: eventType,
		Data: data,
	})
	if err == nil {
		return nil
	}
	var marshalErr *marshalError
	if !errors.As(err, &marshalErr) {
		return err
	}
	// Payload could not be serialized. Tell the client in plain text
	// and keep the stream going.
	return w.WriteText(fmt.Sprintf("Error displaying %s.", eventType))
}

// writeEvent serializes and writes one event line, flushing immediately.
func (w *streamWriter) writeEvent(event datatypes.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return &marshalError{err: err}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, "%s\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// marshalError distinguishes serialization failures (recoverable, the
// stream continues) from transport failures (the client is gone).
type marshalError struct {
	err error
}

func (e *marshalError) Error() string { return fmt.Sprintf("marshal event: %v", e.err) }
func (e *marshalError) Unwrap() error { return e.err }

// =============================================================================
// Helper Functions
// =============================================================================

// SetStreamHeaders configures HTTP response headers for NDJSON
// streaming.
//
// # Description
//
// Sets the headers required for an unbuffered long-lived response:
//   - Content-Type: text/event-stream
//   - Cache-Control: no-cache, no-transform
//   - Connection: keep-alive
//   - X-Accel-Buffering: no (disables nginx buffering)
//
// Must be called before writing any response body.
func SetStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ StreamWriter = (*streamWriter)(nil)
