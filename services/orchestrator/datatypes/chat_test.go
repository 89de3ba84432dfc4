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

import (
	"strings"
	"testing"
)

func validRequest() ChatRequest {
	return ChatRequest{
		Prompt: PromptObject{
			Content: "What is the price of AAPL?",
			ID:      "msg-1",
			Role:    "user",
		},
		ThreadID: "thread-1",
	}
}

// TestChatRequest_ValidPasses tests the baseline valid request.
func TestChatRequest_ValidPasses(t *testing.T) {
	req := validRequest()
	if err := req.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

// TestChatRequest_RequiredFields tests each required field in isolation.
func TestChatRequest_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ChatRequest)
	}{
		{"missing content", func(r *ChatRequest) { r.Prompt.Content = "" }},
		{"missing prompt id", func(r *ChatRequest) { r.Prompt.ID = "" }},
		{"missing role", func(r *ChatRequest) { r.Prompt.Role = "" }},
		{"missing thread id", func(r *ChatRequest) { r.ThreadID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			if err := req.Validate(); err == nil {
				t.Error("expected validation failure")
			}
		})
	}
}

// TestChatRequest_RoleMustBeKnown tests the role whitelist.
func TestChatRequest_RoleMustBeKnown(t *testing.T) {
	req := validRequest()
	req.Prompt.Role = "wizard"
	if err := req.Validate(); err == nil {
		t.Error("unknown role should be rejected")
	}
}

// TestChatRequest_ContentByteLimit tests the 32KB content boundary,
// counting bytes rather than runes.
func TestChatRequest_ContentByteLimit(t *testing.T) {
	req := validRequest()
	req.Prompt.Content = strings.Repeat("a", MaxPromptContentBytes)
	if err := req.Validate(); err != nil {
		t.Errorf("content at exactly the limit rejected: %v", err)
	}

	req.Prompt.Content = strings.Repeat("a", MaxPromptContentBytes+1)
	if err := req.Validate(); err == nil {
		t.Error("content one byte over the limit should be rejected")
	}

	// Multi-byte runes: 11000 three-byte runes is 33000 bytes.
	req.Prompt.Content = strings.Repeat("한", 11000)
	if err := req.Validate(); err == nil {
		t.Error("multi-byte content over the byte limit should be rejected")
	}
}

// TestChatRequest_ThreadIDLength tests the thread ID bound.
func TestChatRequest_ThreadIDLength(t *testing.T) {
	req := validRequest()
	req.ThreadID = strings.Repeat("t", MaxThreadIDLength)
	if err := req.Validate(); err != nil {
		t.Errorf("thread ID at the limit rejected: %v", err)
	}

	req.ThreadID = strings.Repeat("t", MaxThreadIDLength+1)
	if err := req.Validate(); err == nil {
		t.Error("overlong thread ID should be rejected")
	}
}

// TestChatRequest_ResponseIDOptional tests that the correlation ID may
// be absent.
func TestChatRequest_ResponseIDOptional(t *testing.T) {
	req := validRequest()
	req.ResponseID = ""
	if err := req.Validate(); err != nil {
		t.Errorf("empty responseId should be allowed: %v", err)
	}
}
