package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider()
	tp.RegisterSpanProcessor(recorder)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return recorder
}

// TestRunEmitsSpansForTurnLLMAndTool verifies one turn span parents an LLM
// span per iteration and a span per tool dispatch.
func TestRunEmitsSpansForTurnLLMAndTool(t *testing.T) {
	recorder := recordSpans(t)

	loop, _, _ := newTestLoop(t,
		toolResponse("toolu_1", "create_task", map[string]any{"title": "Water the plants"}),
		textResponse("Created."),
	)
	err := loop.Run(context.Background(), "remind me to water the plants", func(Event) {})
	require.NoError(t, err)

	counts := map[string]int{}
	var turnSpanID, llmParent, toolParent trace.SpanID
	for _, s := range recorder.Ended() {
		counts[s.Name()]++
		switch s.Name() {
		case spanAgentTurn:
			turnSpanID = s.SpanContext().SpanID()
		case spanLLMStream:
			llmParent = s.Parent().SpanID()
		case spanToolExecute:
			toolParent = s.Parent().SpanID()
		}
	}
	require.Equal(t, 1, counts[spanAgentTurn])
	require.Equal(t, 2, counts[spanLLMStream])
	require.Equal(t, 1, counts[spanToolExecute])
	require.Equal(t, turnSpanID, llmParent)
	require.Equal(t, turnSpanID, toolParent)
}

// TestRunFailureMarksTurnSpanError verifies the turn span carries the error
// status after the retry budget is spent.
func TestRunFailureMarksTurnSpanError(t *testing.T) {
	recorder := recordSpans(t)

	loop, _, _ := newTestLoop(t, scriptStep{err: errors.New("provider down")})
	err := loop.Run(context.Background(), "hello", func(Event) {})
	require.Error(t, err)

	var found bool
	for _, s := range recorder.Ended() {
		if s.Name() == spanAgentTurn {
			found = true
			require.Equal(t, codes.Error, s.Status().Code)
		}
	}
	require.True(t, found)
}
