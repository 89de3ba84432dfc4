package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL") // e.g., "gpt-4o"
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API Key from Podman Secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o")
	}
	slog.Info("Initializing OpenAI client", "model", model)
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// NewOpenAIClientWithConfig builds a client against a custom endpoint.
// Used for OpenAI-compatible local backends and for tests.
func NewOpenAIClientWithConfig(config openai.ClientConfig, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// ChatStream implements the LLMClient interface.
//
// Streams the completion, forwarding content deltas to the callback and
// accumulating tool-call deltas into complete ToolCall records. The
// returned Completion carries the full assistant turn.
func (o *OpenAIClient) ChatStream(ctx context.Context, messages []openai.ChatCompletionMessage,
	tools []openai.Tool, params GenerationParams, callback StreamCallback) (*Completion, error) {

	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
		Tools:    tools,
		Stream:   true,
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		slog.Error("OpenAI stream creation failed", "error", err)
		return nil, fmt.Errorf("OpenAI stream creation failed: %w", err)
	}
	defer stream.Close()

	completion := &Completion{}
	var content strings.Builder
	// Tool call fragments arrive keyed by index; arguments accumulate
	// across deltas until the stream finishes.
	toolCalls := make(map[int]*openai.ToolCall)
	maxIndex := -1

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			slog.Error("OpenAI stream receive failed", "error", err)
			return nil, fmt.Errorf("OpenAI stream receive failed: %w", err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]
		if choice.FinishReason != "" {
			completion.FinishReason = choice.FinishReason
		}

		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			if err := callback(StreamEvent{Type: StreamEventToken, Content: choice.Delta.Content}); err != nil {
				return nil, fmt.Errorf("stream callback aborted: %w", err)
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			if idx > maxIndex {
				maxIndex = idx
			}
			acc, ok := toolCalls[idx]
			if !ok {
				acc = &openai.ToolCall{Type: openai.ToolTypeFunction}
				toolCalls[idx] = acc
			}
			if tc.ID != "" {
				acc.ID = tc.ID
			}
			if tc.Function.Name != "" {
				acc.Function.Name = tc.Function.Name
			}
			acc.Function.Arguments += tc.Function.Arguments
		}
	}

	completion.Content = content.String()
	for i := 0; i <= maxIndex; i++ {
		if tc, ok := toolCalls[i]; ok {
			completion.ToolCalls = append(completion.ToolCalls, *tc)
		}
	}

	slog.Debug("OpenAI stream complete",
		"finish_reason", completion.FinishReason,
		"tool_calls", len(completion.ToolCalls))
	return completion, nil
}

var _ LLMClient = (*OpenAIClient)(nil)
