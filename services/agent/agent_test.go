// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTicker/services/llm"
	"github.com/AleutianAI/AleutianTicker/services/marketdata"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/conversation"
	"github.com/AleutianAI/AleutianTicker/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianTicker/services/tools"
)

// scriptedLLM replays a fixed sequence of turns. Each turn streams its
// tokens, then returns its completion.
type scriptedLLM struct {
	turns []scriptedTurn
	calls int
	// seen records the message snapshot of each call for assertions.
	seen [][]openai.ChatCompletionMessage
}

type scriptedTurn struct {
	tokens     []string
	completion llm.Completion
	err        error
}

func (s *scriptedLLM) ChatStream(_ context.Context, messages []openai.ChatCompletionMessage,
	_ []openai.Tool, _ llm.GenerationParams, callback llm.StreamCallback) (*llm.Completion, error) {

	snapshot := make([]openai.ChatCompletionMessage, len(messages))
	copy(snapshot, messages)
	s.seen = append(s.seen, snapshot)

	if s.calls >= len(s.turns) {
		// Loop guard: keep requesting tools forever.
		return &llm.Completion{ToolCalls: []openai.ToolCall{newPriceCall("loop")}}, nil
	}
	turn := s.turns[s.calls]
	s.calls++

	if turn.err != nil {
		return nil, turn.err
	}
	for _, token := range turn.tokens {
		if err := callback(llm.StreamEvent{Type: llm.StreamEventToken, Content: token}); err != nil {
			return nil, err
		}
	}
	completion := turn.completion
	return &completion, nil
}

var _ llm.LLMClient = (*scriptedLLM)(nil)

func newPriceCall(id string) openai.ToolCall {
	return openai.ToolCall{
		ID:   id,
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      tools.ToolStockPrice,
			Arguments: `{"ticker":"AAPL"}`,
		},
	}
}

// barsProvider serves five days of closes so the price tool succeeds.
type barsProvider struct{}

func (barsProvider) History(_ context.Context, _ string, _, _ time.Time) ([]datatypes.Bar, error) {
	start := time.Date(2025, 5, 26, 0, 0, 0, 0, time.UTC)
	bars := make([]datatypes.Bar, 5)
	for i := range bars {
		bars[i] = datatypes.Bar{Timestamp: start.AddDate(0, 0, i).Unix() * 1000, Close: 200 + float64(i)}
	}
	return bars, nil
}

func (barsProvider) BalanceSheet(_ context.Context, _ string) (*datatypes.BalanceSheet, error) {
	return nil, nil
}

func (barsProvider) News(_ context.Context, _ string, _ int) ([]datatypes.NewsItem, error) {
	return nil, nil
}

func (barsProvider) Recommendations(_ context.Context, _ string) ([]datatypes.Recommendation, error) {
	return nil, nil
}

var _ marketdata.Provider = barsProvider{}

func collectEvents() (Callback, *[]Event) {
	events := &[]Event{}
	return func(e Event) error {
		*events = append(*events, e)
		return nil
	}, events
}

// =============================================================================
// Run Tests
// =============================================================================

func TestAgent_PlainCompletion(t *testing.T) {
	model := &scriptedLLM{turns: []scriptedTurn{
		{
			tokens:     []string{"Hello", " there"},
			completion: llm.Completion{Content: "Hello there"},
		},
	}}
	a := New(model, tools.NewRegistry(barsProvider{}), newAgentTestCheckpointer(t))
	callback, events := collectEvents()

	err := a.Run(context.Background(), "t1", "hi", callback)
	require.NoError(t, err)

	require.Len(t, *events, 2)
	assert.Equal(t, EventToken, (*events)[0].Type)
	assert.Equal(t, "Hello", (*events)[0].Content)
	assert.Equal(t, " there", (*events)[1].Content)
}

func TestAgent_ToolLoopFeedsResultsBack(t *testing.T) {
	model := &scriptedLLM{turns: []scriptedTurn{
		{completion: llm.Completion{ToolCalls: []openai.ToolCall{newPriceCall("call-1")}}},
		{
			tokens:     []string{"AAPL closed at 204."},
			completion: llm.Completion{Content: "AAPL closed at 204."},
		},
	}}

	a := New(model, tools.NewRegistry(barsProvider{}), newAgentTestCheckpointer(t))
	callback, events := collectEvents()

	err := a.Run(context.Background(), "t1", "price of AAPL?", callback)
	require.NoError(t, err)

	// One tool-result event, then the text.
	require.NotEmpty(t, *events)
	assert.Equal(t, EventToolResult, (*events)[0].Type)
	assert.Equal(t, tools.ToolStockPrice, (*events)[0].ToolName)
	assert.False(t, (*events)[0].Result.IsError())

	// The second model call must carry the assistant tool-call turn and
	// the tool message with the matching call ID.
	require.Len(t, model.seen, 2)
	second := model.seen[1]
	var sawToolMsg bool
	for _, m := range second {
		if m.Role == openai.ChatMessageRoleTool && m.ToolCallID == "call-1" {
			sawToolMsg = true
			assert.Equal(t, "204", m.Content)
		}
	}
	assert.True(t, sawToolMsg, "tool result should be appended with its call ID")
}

func TestAgent_IterationBoundStopsRunawayLoops(t *testing.T) {
	// No scripted turns: every call requests another tool.
	model := &scriptedLLM{}
	checkpoints := newAgentTestCheckpointer(t)

	a := New(model, tools.NewRegistry(barsProvider{}), checkpoints,
		WithMaxIterations(3))
	callback, _ := collectEvents()

	err := a.Run(context.Background(), "t1", "loop forever", callback)
	require.NoError(t, err)
	assert.Len(t, model.seen, 3, "model should be called exactly maxIterations times")

	// The cut-off run produced no final answer, so the checkpointed
	// history carries only the user turn.
	blob, ok, err := checkpoints.Load(context.Background(), "t1")
	require.NoError(t, err)
	require.True(t, ok)
	var history []datatypes.Message
	require.NoError(t, json.Unmarshal(blob, &history))
	require.Len(t, history, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, history[0].Role)
	assert.Equal(t, "loop forever", history[0].Content)
}

func TestAgent_ModelFailureSurfaces(t *testing.T) {
	model := &scriptedLLM{turns: []scriptedTurn{
		{err: fmt.Errorf("backend unavailable")},
	}}

	a := New(model, tools.NewRegistry(barsProvider{}), newAgentTestCheckpointer(t))
	callback, _ := collectEvents()

	err := a.Run(context.Background(), "t1", "hi", callback)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unavailable")
}

func TestAgent_CallbackAbortStopsRun(t *testing.T) {
	model := &scriptedLLM{turns: []scriptedTurn{
		{completion: llm.Completion{ToolCalls: []openai.ToolCall{newPriceCall("call-1")}}},
	}}

	a := New(model, tools.NewRegistry(barsProvider{}), newAgentTestCheckpointer(t))
	err := a.Run(context.Background(), "t1", "hi", func(Event) error {
		return fmt.Errorf("client gone")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client gone")
}

func TestAgent_HistoryPersistsAcrossTurns(t *testing.T) {
	checkpoints := newAgentTestCheckpointer(t)
	registry := tools.NewRegistry(barsProvider{})

	first := &scriptedLLM{turns: []scriptedTurn{
		{completion: llm.Completion{Content: "First answer"}},
	}}
	a := New(first, registry, checkpoints)
	callback, _ := collectEvents()
	require.NoError(t, a.Run(context.Background(), "t1", "first question", callback))

	second := &scriptedLLM{turns: []scriptedTurn{
		{completion: llm.Completion{Content: "Second answer"}},
	}}
	b := New(second, registry, checkpoints)
	require.NoError(t, b.Run(context.Background(), "t1", "second question", callback))

	// The second run's prompt must include the first turn's history:
	// system + user + assistant + user.
	require.Len(t, second.seen, 1)
	msgs := second.seen[0]
	require.Len(t, msgs, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, "first question", msgs[1].Content)
	assert.Equal(t, "First answer", msgs[2].Content)
	assert.Equal(t, "second question", msgs[3].Content)
}

func TestAgent_SystemPromptOverride(t *testing.T) {
	model := &scriptedLLM{turns: []scriptedTurn{
		{completion: llm.Completion{Content: "ok"}},
	}}

	a := New(model, tools.NewRegistry(barsProvider{}), newAgentTestCheckpointer(t),
		WithSystemPrompt("You are a terse analyst."))
	callback, _ := collectEvents()
	require.NoError(t, a.Run(context.Background(), "t1", "hi", callback))

	require.NotEmpty(t, model.seen)
	assert.Equal(t, "You are a terse analyst.", model.seen[0][0].Content)
}

// =============================================================================
// Test Checkpointer
// =============================================================================

type mapCheckpointer struct {
	blobs map[string][]byte
}

func newAgentTestCheckpointer(t *testing.T) *mapCheckpointer {
	t.Helper()
	return &mapCheckpointer{blobs: make(map[string][]byte)}
}

func (m *mapCheckpointer) Save(_ context.Context, threadID string, blob []byte) error {
	m.blobs[threadID] = blob
	return nil
}

func (m *mapCheckpointer) Load(_ context.Context, threadID string) ([]byte, bool, error) {
	blob, ok := m.blobs[threadID]
	return blob, ok, nil
}

func (m *mapCheckpointer) Delete(_ context.Context, threadID string) error {
	delete(m.blobs, threadID)
	return nil
}

func (m *mapCheckpointer) Close() error { return nil }

var _ conversation.Checkpointer = (*mapCheckpointer)(nil)
