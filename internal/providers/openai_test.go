package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func groqFixture(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"delta":{"content":"Adding"}}]}`,
			`{"choices":[{"delta":{"content":" that."}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"create_task","arguments":""}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"title\":"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Buy milk\"}"}}]}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
			`{"choices":[],"usage":{"prompt_tokens":80,"completion_tokens":30,"total_tokens":110,"prompt_tokens_details":{"cached_tokens":16}}}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestOpenAIChatStream(t *testing.T) {
	srv := groqFixture(t)
	defer srv.Close()

	p := NewOpenAIProvider("groq", "gsk-test", srv.URL, "llama-3.3-70b-versatile")

	var events []StreamEvent
	resp, err := p.ChatStream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "buy milk"}},
	}, func(ev StreamEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.Equal(t, "Adding that.", resp.Content)
	require.Equal(t, StopToolUse, resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, "call_1", resp.ToolCalls[0].ID)
	require.Equal(t, "create_task", resp.ToolCalls[0].Name)
	require.Equal(t, map[string]any{"title": "Buy milk"}, resp.ToolCalls[0].Arguments)

	require.Equal(t, 80, resp.Usage.PromptTokens)
	require.Equal(t, 30, resp.Usage.CompletionTokens)
	require.Equal(t, 110, resp.Usage.TotalTokens)
	require.Equal(t, 16, resp.Usage.CacheReadTokens)

	kinds := make([]StreamEventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	require.Equal(t, []StreamEventKind{
		EventTextDelta,
		EventTextDelta,
		EventToolCallStart,
		EventToolCallArgDelta,
		EventToolCallArgDelta,
		EventToolCallComplete,
		EventUsage,
		EventStop,
	}, kinds)
}

func TestOpenAIToolCallsImplyToolUseStop(t *testing.T) {
	// Some models omit finish_reason when streaming tool calls; any
	// accumulated call still maps to the tool_use stop reason.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"get_task_stats","arguments":"{}"}}]}}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenAIProvider("groq", "gsk-test", srv.URL, "llama-3.3-70b-versatile")
	resp, err := p.ChatStream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "stats"}},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, StopToolUse, resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
}

func TestOpenAIRequestBody(t *testing.T) {
	p := NewOpenAIProvider("groq", "gsk-test", "", "llama-3.3-70b-versatile")
	body := p.buildRequestBody("llama-3.3-70b-versatile", ChatRequest{
		System: "prompt",
		Messages: []Message{
			{Role: "user", Content: "do it"},
			{Role: "assistant", ToolCalls: []ToolCall{
				{ID: "call_1", Name: "create_task", Arguments: map[string]any{"title": "x"}},
			}},
			{Role: "tool", ToolCallID: "call_1", Content: `{"success":true}`},
		},
		Tools: []ToolDefinition{{Name: "create_task", Parameters: map[string]any{"type": "object"}}},
	})

	msgs := body["messages"].([]map[string]any)
	require.Len(t, msgs, 4)
	require.Equal(t, "system", msgs[0]["role"])

	// Assistant tool_calls message omits empty content.
	_, hasContent := msgs[2]["content"]
	require.False(t, hasContent)
	calls := msgs[2]["tool_calls"].([]map[string]any)
	fn := calls[0]["function"].(map[string]any)
	require.Equal(t, "create_task", fn["name"])
	require.JSONEq(t, `{"title":"x"}`, fn["arguments"].(string))

	require.Equal(t, "call_1", msgs[3]["tool_call_id"])

	opts := body["stream_options"].(map[string]any)
	require.Equal(t, true, opts["include_usage"])
	require.Equal(t, "auto", body["tool_choice"])
}
