package protocol

import "encoding/json"

// Frame is the JSON envelope for every text frame the server sends to the
// browser. Exactly one of Data / Error is set depending on Type.
type Frame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Query string          `json:"query,omitempty"` // agent_start: the transcript being processed
	Error string          `json:"error,omitempty"` // agent_error only
}

// NewFluxFrame wraps a raw STT event for passthrough to the client.
func NewFluxFrame(raw json.RawMessage) Frame {
	return Frame{Type: FrameFluxEvent, Data: raw}
}

// NewAgentStartFrame signals the beginning of an agent turn.
func NewAgentStartFrame(query string) Frame {
	return Frame{Type: FrameAgentStart, Query: query}
}

// NewAgentEventFrame wraps an agent loop event.
func NewAgentEventFrame(data json.RawMessage) Frame {
	return Frame{Type: FrameAgentEvent, Data: data}
}

// NewAgentErrorFrame reports a retry-exhausted agent failure. The session
// stays open; the client may speak again.
func NewAgentErrorFrame(msg string) Frame {
	return Frame{Type: FrameAgentError, Error: msg}
}
