// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent drives the language model's tool-calling loop for one
// chat turn and maintains per-thread conversation memory through a
// checkpointer.
//
// The agent is the boundary between the orchestrator and the model
// engine: handlers hand it a thread ID and a user prompt, and it emits a
// flat event sequence (tokens and tool results) through a callback.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/AleutianTicker/services/llm"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianTicker/services/tools"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// defaultMaxIterations bounds the model-call/tool-call loop for one
	// turn. A run that still wants tools after this many rounds is cut
	// off with whatever content has streamed so far.
	defaultMaxIterations = 8

	// DefaultSystemPrompt is the fixed system directive prepended to every
	// conversation. Overridable via configuration.
	DefaultSystemPrompt = "You are a stock analysis assistant. You have the ability to get " +
		"real-time stock prices, historical stock prices (given a date range), news and " +
		"balance sheet data for a given ticker symbol. You can converse in Korean. If the " +
		"user asks about a stock in Korean, please infer the correct ticker symbol " +
		"(e.g., \"엔비디아\" -> \"NVDA\")."
)

// =============================================================================
// Agent
// =============================================================================

// Agent runs the tool-calling loop against an LLM backend.
//
// # Description
//
// For each Run, the agent loads the thread's stored history, sends
// system + history + new user turn to the model together with the tool
// definitions, streams tokens out through the callback, invokes requested
// tools (each invocation contained by the registry), feeds results back,
// and repeats until the model produces a plain completion or the
// iteration bound is hit. The updated history is then checkpointed.
//
// # Thread Safety
//
// Safe for concurrent Runs on distinct threads. Concurrent Runs on the
// same thread ID are serialized by the caller (the orchestrator assumes
// at most one in-flight request per conversation).
type Agent struct {
	llm           llm.LLMClient
	registry      *tools.Registry
	checkpoints   conversation.Checkpointer
	systemPrompt  string
	params        llm.GenerationParams
	maxIterations int
}

// Option customizes Agent construction.
type Option func(*Agent)

// WithSystemPrompt overrides the default system directive.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		if prompt != "" {
			a.systemPrompt = prompt
		}
	}
}

// WithGenerationParams sets the model sampling parameters.
func WithGenerationParams(params llm.GenerationParams) Option {
	return func(a *Agent) { a.params = params }
}

// WithMaxIterations overrides the tool-loop bound.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// New creates an Agent.
//
// # Inputs
//
//   - client: LLM backend. Must not be nil.
//   - registry: Tool adapters available to the model. Must not be nil.
//   - checkpoints: Per-thread conversation memory. Must not be nil.
//   - opts: Optional overrides.
func New(client llm.LLMClient, registry *tools.Registry,
	checkpoints conversation.Checkpointer, opts ...Option) *Agent {

	a := &Agent{
		llm:           client,
		registry:      registry,
		checkpoints:   checkpoints,
		systemPrompt:  DefaultSystemPrompt,
		maxIterations: defaultMaxIterations,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes one chat turn for the given thread.
//
// # Description
//
// Emits token and tool-result events through callback in arrival order.
// Tool failures are contained and fed back to the model; only failures in
// the model-call machinery itself (or a callback error, meaning the client
// went away) end the run early. On success the thread's history gains the
// user turn and the final assistant turn.
//
// # Inputs
//
//   - ctx: Cancelled when the client disconnects; stops the loop promptly.
//   - threadID: Conversation identifier; keys the checkpoint.
//   - prompt: The new user message content.
//   - callback: Receives every event. Must not be nil.
//
// # Outputs
//
//   - error: Non-nil on model failure, context cancellation, or callback
//     abort. Tool failures never surface here.
func (a *Agent) Run(ctx context.Context, threadID, prompt string, callback Callback) error {
	runID := uuid.NewString()
	log := slog.With("run_id", runID, "thread_id", threadID)

	history, err := a.loadHistory(ctx, threadID)
	if err != nil {
		// Unreadable checkpoint data degrades to a fresh conversation
		// rather than failing the request.
		log.Warn("failed to load conversation history, starting fresh", "error", err)
		history = nil
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: a.systemPrompt,
	})
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	tokenCallback := func(event llm.StreamEvent) error {
		if event.Type != llm.StreamEventToken || event.Content == "" {
			return nil
		}
		return callback(Event{Type: EventToken, Content: event.Content})
	}

	var finalContent string
	for iteration := 0; iteration < a.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		completion, err := a.llm.ChatStream(ctx, messages, a.registry.Definitions(), a.params, tokenCallback)
		if err != nil {
			return fmt.Errorf("model call failed: %w", err)
		}

		if len(completion.ToolCalls) == 0 {
			finalContent = completion.Content
			break
		}

		// The assistant turn requesting the calls must precede the tool
		// results in the transcript, or the next model call is rejected.
		messages = append(messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})

		for _, call := range completion.ToolCalls {
			result := a.registry.Invoke(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
			if result.IsError() {
				log.Warn("tool invocation failed",
					"tool", call.Function.Name, "error", result.Err)
			}
			if err := callback(Event{
				Type:     EventToolResult,
				ToolName: call.Function.Name,
				Result:   result,
			}); err != nil {
				return fmt.Errorf("event callback aborted: %w", err)
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result.ModelText(),
				ToolCallID: call.ID,
			})
		}
	}

	history = append(history, datatypes.Message{Role: openai.ChatMessageRoleUser, Content: prompt})
	if finalContent != "" {
		// An exhausted iteration bound leaves no final answer; an empty
		// assistant turn would pollute the next run's context.
		history = append(history, datatypes.Message{Role: openai.ChatMessageRoleAssistant, Content: finalContent})
	}
	if err := a.saveHistory(ctx, threadID, history); err != nil {
		// Memory loss for the next turn, but this turn already streamed.
		log.Warn("failed to checkpoint conversation history", "error", err)
	}

	log.Debug("agent run complete", "history_len", len(history))
	return nil
}

// =============================================================================
// Checkpoint Plumbing
// =============================================================================

// loadHistory reads and decodes the thread's stored message history.
func (a *Agent) loadHistory(ctx context.Context, threadID string) ([]datatypes.Message, error) {
	blob, ok, err := a.checkpoints.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var history []datatypes.Message
	if err := json.Unmarshal(blob, &history); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return history, nil
}

// saveHistory encodes and stores the thread's message history.
func (a *Agent) saveHistory(ctx context.Context, threadID string, history []datatypes.Message) error {
	blob, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := a.checkpoints.Save(ctx, threadID, blob); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
