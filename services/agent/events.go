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

import "github.com/AleutianAI/AleutianTicker/services/tools"

// =============================================================================
// Agent Event Types
// =============================================================================

// EventType discriminates events produced while the agent runs.
type EventType string

const (
	// EventToken is an incremental text fragment from the model.
	EventToken EventType = "token"

	// EventToolResult is the completed result of one tool invocation.
	EventToolResult EventType = "tool_result"
)

// Event is one entry in the agent's event sequence.
//
// # Description
//
// The agent emits events in arrival order: token events as the model
// generates, and one tool-result event per tool invocation as each
// completes. Consumers (the stream multiplexer) classify and serialize
// them for the client.
//
// # Fields
//
//   - Type: Event discriminator.
//   - Content: Text fragment. Set for token events only.
//   - ToolName: Wire-contract tool name. Set for tool-result events only.
//   - Result: Tool outcome, including contained errors and sentinels.
type Event struct {
	Type     EventType
	Content  string
	ToolName string
	Result   tools.Result
}

// Callback receives each agent event as it is produced. Returning an
// error stops the run promptly (used for client disconnects).
type Callback func(Event) error
