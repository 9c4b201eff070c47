// Package providers contains the streaming LLM provider adapters. Each
// adapter speaks its vendor's wire protocol over net/http and emits a
// normalized event stream, so the agent loop never sees vendor payloads.
package providers

import "context"

// Provider is the interface all LLM providers implement.
type Provider interface {
	// ChatStream sends messages and streams normalized events via the
	// callback. Returns the final assembled response after the stream ends.
	ChatStream(ctx context.Context, req ChatRequest, onEvent func(StreamEvent)) (*ChatResponse, error)

	// DefaultModel returns the provider's default model name.
	DefaultModel() string

	// Name returns the provider identifier (e.g. "anthropic", "groq").
	Name() string
}

// ChatRequest contains the input for a ChatStream call.
type ChatRequest struct {
	System    string           `json:"system,omitempty"`
	Messages  []Message        `json:"messages"`
	Tools     []ToolDefinition `json:"tools,omitempty"`
	Model     string           `json:"model,omitempty"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

// ChatResponse is the assembled result of one streamed LLM call.
type ChatResponse struct {
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	StopReason string     `json:"stop_reason"` // end_turn, tool_use, max_tokens, error
	Usage      *Usage     `json:"usage,omitempty"`
}

// Normalized stop reasons. Vendor-specific reasons are mapped onto these.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
	StopError     = "error"
)

// StreamEventKind discriminates StreamEvent payloads.
type StreamEventKind string

const (
	EventTextDelta        StreamEventKind = "text_delta"
	EventToolCallStart    StreamEventKind = "tool_call_start"
	EventToolCallArgDelta StreamEventKind = "tool_call_args_delta"
	EventToolCallComplete StreamEventKind = "tool_call_complete"
	EventUsage            StreamEventKind = "usage"
	EventStop             StreamEventKind = "stop"
	EventError            StreamEventKind = "error"
)

// StreamEvent is one normalized event in a streamed response. Only the
// fields relevant to Kind are set.
type StreamEvent struct {
	Kind StreamEventKind

	// Text carries the fragment for text_delta and args_delta events, and
	// the message for error events.
	Text string

	// ToolCall is set on tool_call_start (ID and Name only) and
	// tool_call_complete (fully parsed arguments).
	ToolCall *ToolCall

	// Usage is set on usage events. Deltas are cumulative per call.
	Usage *Usage

	// StopReason is set on stop events.
	StopReason string
}

// Message represents a conversation message.
type Message struct {
	Role       string     `json:"role"` // "user", "assistant", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // for role="tool" responses
}

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDefinition describes a tool available to the LLM.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage tracks token consumption for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	CacheWriteTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadTokens  int `json:"cache_read_input_tokens,omitempty"`
}

// Add accumulates another call's usage into u.
func (u *Usage) Add(other *Usage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.CacheWriteTokens += other.CacheWriteTokens
	u.CacheReadTokens += other.CacheReadTokens
}
