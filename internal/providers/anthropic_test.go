package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func sseWrite(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func anthropicFixture(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, true, body["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		sseWrite(w, "message_start", `{"message":{"usage":{"input_tokens":100,"cache_read_input_tokens":20}}}`)
		sseWrite(w, "content_block_start", `{"index":0,"content_block":{"type":"text"}}`)
		sseWrite(w, "content_block_delta", `{"index":0,"delta":{"type":"text_delta","text":"Done"}}`)
		sseWrite(w, "content_block_stop", `{"index":0}`)
		sseWrite(w, "content_block_start", `{"index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"create_task"}}`)
		sseWrite(w, "content_block_delta", `{"index":1,"delta":{"type":"input_json_delta","partial_json":"{\"title\":"}}`)
		sseWrite(w, "content_block_delta", `{"index":1,"delta":{"type":"input_json_delta","partial_json":"\"Call the dentist\"}"}}`)
		sseWrite(w, "content_block_stop", `{"index":1}`)
		sseWrite(w, "message_delta", `{"delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":50}}`)
		sseWrite(w, "message_stop", `{}`)
	}))
}

func TestAnthropicChatStream(t *testing.T) {
	srv := anthropicFixture(t)
	defer srv.Close()

	p := NewAnthropicProvider("test-key", WithAnthropicBaseURL(srv.URL))

	var events []StreamEvent
	resp, err := p.ChatStream(context.Background(), ChatRequest{
		System:   "You are a task assistant.",
		Messages: []Message{{Role: "user", Content: "add a dentist task"}},
	}, func(ev StreamEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.Equal(t, "Done", resp.Content)
	require.Equal(t, StopToolUse, resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, "toolu_1", resp.ToolCalls[0].ID)
	require.Equal(t, "create_task", resp.ToolCalls[0].Name)
	require.Equal(t, map[string]any{"title": "Call the dentist"}, resp.ToolCalls[0].Arguments)

	require.Equal(t, 100, resp.Usage.PromptTokens)
	require.Equal(t, 20, resp.Usage.CacheReadTokens)
	require.Equal(t, 50, resp.Usage.CompletionTokens)
	require.Equal(t, 150, resp.Usage.TotalTokens)

	kinds := make([]StreamEventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	require.Equal(t, []StreamEventKind{
		EventTextDelta,
		EventToolCallStart,
		EventToolCallArgDelta,
		EventToolCallArgDelta,
		EventToolCallComplete,
		EventUsage,
		EventStop,
	}, kinds)

	// The start event carries the tool identity before any arguments exist.
	require.Equal(t, "create_task", events[1].ToolCall.Name)
	require.Empty(t, events[1].ToolCall.Arguments)
	require.Equal(t, StopToolUse, events[len(events)-1].StopReason)
}

func TestAnthropicRetriesOnServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		sseWrite(w, "message_start", `{"message":{"usage":{"input_tokens":10}}}`)
		sseWrite(w, "content_block_delta", `{"index":0,"delta":{"type":"text_delta","text":"hi"}}`)
		sseWrite(w, "message_delta", `{"delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":2}}`)
		sseWrite(w, "message_stop", `{}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", WithAnthropicBaseURL(srv.URL))
	p.retryConfig = fastRetry(2)

	resp, err := p.ChatStream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, "hi", resp.Content)
	require.Equal(t, StopEndTurn, resp.StopReason)
}

func TestAnthropicClientErrorNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":{"type":"invalid_request_error"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", WithAnthropicBaseURL(srv.URL))
	p.retryConfig = fastRetry(3)

	_, err := p.ChatStream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	}, nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadRequest, httpErr.Status)
	require.Equal(t, 1, calls)
}

func TestAnthropicRequestBody(t *testing.T) {
	p := NewAnthropicProvider("test-key")
	body := p.buildRequestBody("claude-sonnet-4-20250514", ChatRequest{
		System: "prompt",
		Messages: []Message{
			{Role: "user", Content: "do it"},
			{Role: "assistant", Content: "on it", ToolCalls: []ToolCall{
				{ID: "toolu_1", Name: "create_task", Arguments: map[string]any{"title": "x"}},
			}},
			{Role: "tool", ToolCallID: "toolu_1", Content: `{"success":true}`},
		},
		Tools: []ToolDefinition{{Name: "create_task", Parameters: map[string]any{"type": "object"}}},
	})

	require.Equal(t, 1024, body["max_tokens"])

	system := body["system"].([]map[string]any)
	require.Equal(t, "prompt", system[0]["text"])
	require.NotNil(t, system[0]["cache_control"])

	msgs := body["messages"].([]map[string]any)
	require.Len(t, msgs, 3)

	assistant := msgs[1]["content"].([]map[string]any)
	require.Equal(t, "text", assistant[0]["type"])
	require.Equal(t, "tool_use", assistant[1]["type"])

	toolResult := msgs[2]
	require.Equal(t, "user", toolResult["role"])
	blocks := toolResult["content"].([]map[string]any)
	require.Equal(t, "tool_result", blocks[0]["type"])
	require.Equal(t, "toolu_1", blocks[0]["tool_use_id"])
}
