// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the orchestrator service.
//
// This file contains request types for the streaming chat endpoint.
// For the line-delimited stream protocol types, see stream.go. For
// market data payload types, see market.go.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants for Security Compliance
// =============================================================================

const (
	// MaxPromptContentBytes is the maximum size of a single prompt content.
	// Bounded to prevent memory exhaustion from oversized request bodies.
	MaxPromptContentBytes = 32 * 1024 // 32KB

	// MaxThreadIDLength is the maximum length of a client-supplied thread ID.
	// Thread IDs are used as store and checkpoint keys; unbounded keys would
	// let a client inflate per-entry memory.
	MaxThreadIDLength = 128
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()

	// Register custom validator for prompt content size
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes validates that a string field does not exceed MaxPromptContentBytes.
//
// # Description
//
// Checks byte length (not rune count) to prevent memory exhaustion attacks
// with large multi-byte payloads.
//
// # Inputs
//
//   - fl: Validator field level containing the string to validate
//
// # Outputs
//
//   - bool: true if content <= 32KB, false otherwise
func validateMaxBytes(fl validator.FieldLevel) bool {
	content := fl.Field().String()
	return len(content) <= MaxPromptContentBytes
}

// =============================================================================
// Chat Request Types
// =============================================================================

// PromptObject is the user turn embedded in a chat request.
//
// # Description
//
// PromptObject carries a single message from the client. The ID is a
// client-assigned message identifier and the Role is expected to be
// "user" for inbound prompts.
//
// # Fields
//
//   - Content: Required. The message text, limited to 32KB.
//   - ID: Required. Client-assigned message identifier.
//   - Role: Required. One of "user", "assistant", "system".
type PromptObject struct {
	Content string `json:"content" validate:"required,maxbytes"`
	ID      string `json:"id" validate:"required"`
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
}

// ChatRequest represents the POST /api/chat request body.
//
// # Description
//
// ChatRequest identifies one conversation (ThreadID) and carries the new
// user turn. The ThreadID is an opaque client-supplied key; the orchestrator
// uses it to locate stored conversation state and the agent checkpoint.
// ResponseID is echoed back for client-side correlation and may be empty,
// in which case the orchestrator assigns one.
//
// # Fields
//
//   - Prompt: Required. The new user turn.
//   - ThreadID: Required. Conversation identifier, max 128 characters.
//   - ResponseID: Optional. Client-assigned response correlation ID.
//
// # Validation
//
// Uses go-playground/validator:
//   - Prompt: required, fields validated recursively
//   - ThreadID: required, max 128 characters
//
// # Examples
//
//	req := ChatRequest{
//	    Prompt:   PromptObject{Content: "AAPL price", ID: "1", Role: "user"},
//	    ThreadID: "t1",
//	}
//	if err := req.Validate(); err != nil {
//	    // reject with 400
//	}
type ChatRequest struct {
	Prompt     PromptObject `json:"prompt" validate:"required"`
	ThreadID   string       `json:"threadId" validate:"required,max=128"`
	ResponseID string       `json:"responseId"`
}

// Validate checks the request against its validation tags.
//
// # Outputs
//
//   - error: Non-nil if any field fails validation. The error is a
//     validator.ValidationErrors and is safe to log but should be
//     summarized before returning to the client.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// =============================================================================
// Conversation Message Types
// =============================================================================

// Message is one entry in a conversation's ordered history.
//
// # Description
//
// Messages accumulate per thread and are replayed to the agent on every
// request so the model sees prior turns. Tool result messages carry the
// ToolCallID linking them to the tool invocation that produced them.
//
// # Fields
//
//   - Role: "system", "user", "assistant", or "tool".
//   - Content: The message text, or serialized tool output for tool messages.
//   - ToolCallID: Set on tool messages only.
type Message struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ErrorResponse is the JSON body returned for non-stream errors,
// including rate-limit rejections (HTTP 429).
type ErrorResponse struct {
	Detail string `json:"detail"`
}
