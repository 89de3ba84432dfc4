package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// StreamEventType tags events surfaced during streaming generation.
type StreamEventType string

const (
	StreamEventToken StreamEventType = "token"
	StreamEventError StreamEventType = "error"
)

// StreamEvent is a single event surfaced by ChatStream while the model
// is generating. Token events carry incremental text content.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Err     string          `json:"error,omitempty"`
}

// StreamCallback is called for each event during streaming generation.
// Returning an error aborts the stream (e.g. on client disconnect).
type StreamCallback func(event StreamEvent) error

// Completion is the final outcome of one streamed model call. When the
// model decided to call tools, ToolCalls is non-empty and Content may be
// empty; the caller is expected to invoke the tools and call ChatStream
// again with the tool results appended.
type Completion struct {
	Content      string
	ToolCalls    []openai.ToolCall
	FinishReason openai.FinishReason
}

// LLMClient defines the standard interface for a tool-capable LLM backend.
type LLMClient interface {
	// ChatStream sends the conversation and tool definitions to the model,
	// streaming token events through callback, and returns the completed
	// assistant turn including any requested tool calls.
	ChatStream(ctx context.Context, messages []openai.ChatCompletionMessage,
		tools []openai.Tool, params GenerationParams, callback StreamCallback) (*Completion, error)
}
