package agent

import (
	"encoding/json"

	"github.com/nextlevelbuilder/voxtask/pkg/protocol"
)

// Event is one semantic progress event emitted during a loop invocation.
// The session orchestrator wraps these into agent_event frames.
type Event struct {
	Type string `json:"type"`

	// tool_use_start, tool_use, tool_result.
	Tool   string          `json:"tool,omitempty"`
	Input  map[string]any  `json:"input,omitempty"`
	// Result is the normalized tool envelope, already serialized. It may
	// carry a ui_command the client acts on.
	Result json.RawMessage `json:"result,omitempty"`

	// text: an incremental delta, not cumulative.
	Content string `json:"content,omitempty"`

	// error.
	Message string `json:"message,omitempty"`
}

func thinkingEvent(content string) Event {
	return Event{Type: protocol.AgentEventThinking, Content: content}
}

func textEvent(delta string) Event {
	return Event{Type: protocol.AgentEventText, Content: delta}
}

func toolUseStartEvent(tool string) Event {
	return Event{Type: protocol.AgentEventToolUseStart, Tool: tool}
}

func toolUseEvent(tool string, input map[string]any) Event {
	return Event{Type: protocol.AgentEventToolUse, Tool: tool, Input: input}
}

func toolResultEvent(tool string, result json.RawMessage) Event {
	return Event{Type: protocol.AgentEventToolResult, Tool: tool, Result: result}
}

func doneEvent() Event {
	return Event{Type: protocol.AgentEventDone}
}

func errorEvent(message string) Event {
	return Event{Type: protocol.AgentEventError, Message: message}
}
