// Package tools implements the schema-validated tool registry the agent
// loop dispatches into. Every handler returns the same normalized envelope;
// failures are data, never panics, so the model can observe and adjust.
package tools

import (
	"encoding/json"
	"fmt"
)

// Result is the normalized envelope every tool handler returns. Payload keys
// are flattened to the top level on marshal, alongside success and message.
type Result struct {
	Success   bool
	Message   string
	Payload   map[string]any
	UICommand *UICommand
}

func OK(message string) *Result {
	return &Result{Success: true, Message: message}
}

func OKPayload(message string, payload map[string]any) *Result {
	return &Result{Success: true, Message: message, Payload: payload}
}

func Errorf(format string, args ...any) *Result {
	return &Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// WithUI attaches a UI command directive for the client.
func (r *Result) WithUI(cmd *UICommand) *Result {
	r.UICommand = cmd
	return r
}

// MarshalJSON flattens the payload into the envelope. Reserved keys
// (success, message, ui_command) always win over payload entries.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Payload)+3)
	for k, v := range r.Payload {
		out[k] = v
	}
	out["success"] = r.Success
	out["message"] = r.Message
	if r.UICommand != nil {
		out["ui_command"] = r.UICommand
	}
	return json.Marshal(out)
}
