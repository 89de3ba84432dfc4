// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the orchestrator's HTTP endpoints: the
// streaming chat endpoint and health checks.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianTicker/services/agent"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianTicker/services/tools"
)

// =============================================================================
// Chat Handler
// =============================================================================

// AgentRunner is the slice of the agent the handler needs. Narrowed to
// an interface so tests can drive the handler with a scripted agent.
type AgentRunner interface {
	Run(ctx context.Context, threadID, prompt string, callback agent.Callback) error
}

// ChatHandler serves the streaming chat endpoint.
//
// # Description
//
// Validates the request, registers thread activity, then drives the
// agent while multiplexing its events onto one NDJSON response stream.
// Text fragments become text events; each structured tool completion
// becomes a typed data event the frontend renders as a widget (chart,
// forecast, analyst rating, news list, balance sheet).
//
// # Thread Safety
//
// Safe for concurrent requests. Per-request state lives on the stack.
type ChatHandler struct {
	agent AgentRunner
	store *conversation.Store
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(runner AgentRunner, store *conversation.Store) *ChatHandler {
	return &ChatHandler{agent: runner, store: store}
}

// toolEventTypes maps tool names to the stream event type their
// successful payloads are emitted as. Tools absent from this map (the
// spot price lookup) feed the model only; their data reaches the client
// through the model's prose.
var toolEventTypes = map[string]datatypes.StreamEventType{
	tools.ToolHistoricalPrice: datatypes.StreamEventChart,
	tools.ToolForecast:        datatypes.StreamEventForecast,
	tools.ToolRecommendations: datatypes.StreamEventAnalystRating,
	tools.ToolStockNews:       datatypes.StreamEventNews,
	tools.ToolBalanceSheet:    datatypes.StreamEventBalanceSheet,
}

// HandleChatStream handles POST /api/chat.
//
// # Description
//
// Streams the conversational turn as newline-delimited JSON events.
// The response stays open for the life of the agent run; every event is
// flushed as soon as it is produced. A mid-stream failure terminates
// the stream after a best-effort text notice; the HTTP status is
// already committed at that point.
//
// # Inputs
//
//   - c: Gin context. Request body must be a valid ChatRequest.
//
// # Outputs
//
// Writes 200 with an NDJSON event stream, or 400 with an error detail
// body when validation fails.
//
// # Limitations
//
//   - One in-flight request per thread is assumed, not enforced.
func (h *ChatHandler) HandleChatStream(c *gin.Context) {
	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Detail: "Invalid request body: " + err.Error(),
		})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Detail: "Validation failed: " + err.Error(),
		})
		return
	}

	log := slog.With("thread_id", req.ThreadID)
	h.store.Touch(c.Request.Context(), req.ThreadID, time.Now())

	SetStreamHeaders(c.Writer)
	writer, err := NewStreamWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Detail: "Streaming is not supported by this connection.",
		})
		return
	}
	c.Status(http.StatusOK)

	metrics := observability.DefaultMetrics
	if metrics != nil {
		metrics.StreamStarted()
	}
	started := time.Now()
	success := true

	callback := func(event agent.Event) error {
		switch event.Type {
		case agent.EventToken:
			return writer.WriteText(event.Content)
		case agent.EventToolResult:
			if metrics != nil {
				metrics.RecordToolInvocation(event.ToolName, !event.Result.IsError())
			}
			if !event.Result.HasData() {
				// Errors and empty-data sentinels reach the client
				// through the model's own text, never as widgets.
				return nil
			}
			eventType, ok := toolEventTypes[event.ToolName]
			if !ok {
				log.Debug("tool result has no stream mapping", "tool", event.ToolName)
				return nil
			}
			return writer.WriteData(eventType, event.Result.Payload)
		default:
			return nil
		}
	}

	if err := h.agent.Run(c.Request.Context(), req.ThreadID, req.Prompt.Content, callback); err != nil {
		success = false
		if errors.Is(err, context.Canceled) || c.Request.Context().Err() != nil {
			log.Info("client disconnected mid-stream")
			if metrics != nil {
				metrics.RecordClientDisconnect()
			}
		} else {
			log.Error("agent run failed", "error", err)
			// Status is committed; a text notice is all we can offer.
			_ = writer.WriteText("The assistant hit an internal error and had to stop.")
		}
	}

	if metrics != nil {
		metrics.StreamEnded(time.Since(started).Seconds(), success)
		metrics.RecordRequest(success)
	}
	log.Debug("chat stream finished", "duration", time.Since(started).String(), "success", success)
}
