package store

import (
	"context"
	"time"
)

// Message roles. Tool-result messages carry role "user" by convention so the
// provider protocol accepts them as input.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolCallRecord is one tool invocation recorded on an assistant message.
type ToolCallRecord struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResultRecord is one tool outcome recorded on a synthetic user message.
// Content is the serialized normalized envelope the tool returned.
type ToolResultRecord struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
}

// ConversationMessage is one append-only history record. Ordering is
// chronological by ID and CreatedAt.
type ConversationMessage struct {
	ID          int64              `json:"id"`
	Role        string             `json:"role"`
	Content     string             `json:"content"`
	ToolCalls   []ToolCallRecord   `json:"tool_calls,omitempty"`
	ToolResults []ToolResultRecord `json:"tool_results,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// HistoryStore is the append-only conversation log. History is
// process-global by contract; a future per-session filter is a single
// call-site change behind this interface.
type HistoryStore interface {
	Append(ctx context.Context, msg ConversationMessage) (*ConversationMessage, error)
	// Tail returns the last n messages in chronological order.
	Tail(ctx context.Context, n int) ([]ConversationMessage, error)
	// Search returns recent messages whose content matches any term, or
	// whose tool-call list contains any of the named tools. Matched tool
	// calls keep their original inputs; the following tool-result message
	// is included so callers can recover recorded results.
	Search(ctx context.Context, terms []string, toolNames []string, limit int) ([]ConversationMessage, error)
	// Clear wipes the entire log. Recovery escape-hatch for corrupted turns.
	Clear(ctx context.Context) error
}
