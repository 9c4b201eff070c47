package protocol

// ProtocolVersion is bumped when frame shapes change incompatibly.
const ProtocolVersion = 1

// Top-level frame types sent from server to client over the /agent websocket.
const (
	FrameFluxEvent  = "flux_event"  // STT passthrough
	FrameAgentStart = "agent_start" // agent loop began for the just-ended turn
	FrameAgentEvent = "agent_event" // agent loop progress
	FrameAgentError = "agent_error" // agent loop failed after retries
)

// Agent event subtypes (in the agent_event data.type field).
const (
	AgentEventThinking     = "thinking"
	AgentEventToolUseStart = "tool_use_start"
	AgentEventToolUse      = "tool_use"
	AgentEventToolResult   = "tool_result"
	AgentEventText         = "text"
	AgentEventDone         = "done"
	AgentEventError        = "error"
)

// Deepgram FLUX TurnInfo event values.
const (
	TurnStartOfTurn    = "StartOfTurn"
	TurnUpdate         = "Update"
	TurnEagerEndOfTurn = "EagerEndOfTurn"
	TurnResumed        = "TurnResumed"
	TurnEndOfTurn      = "EndOfTurn"
)
