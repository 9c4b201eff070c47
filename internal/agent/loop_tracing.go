package agent

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/voxtask/internal/providers"
	"github.com/nextlevelbuilder/voxtask/internal/tools"
)

const (
	traceScope = "voxtask.agent"

	spanAgentTurn   = "voxtask.agent.turn"
	spanLLMStream   = "voxtask.llm.stream"
	spanToolExecute = "voxtask.tool.execute"

	attrProvider     = "voxtask.llm.provider"
	attrModel        = "voxtask.llm.model"
	attrIteration    = "voxtask.iteration"
	attrInputTokens  = "voxtask.llm.input_tokens"
	attrOutputTokens = "voxtask.llm.output_tokens"
	attrStopReason   = "voxtask.llm.stop_reason"
	attrQueryChars   = "voxtask.query_chars"
	attrToolName     = "voxtask.tool_name"
	attrToolSuccess  = "voxtask.tool_success"
)

// startTurnSpan opens the root span for one loop invocation. LLM and tool
// spans nest under it through the returned context.
func startTurnSpan(ctx context.Context, query string) (context.Context, trace.Span) {
	return otel.Tracer(traceScope).Start(ctx, spanAgentTurn,
		trace.WithAttributes(attribute.Int(attrQueryChars, len(query))))
}

// startLLMSpan opens a span for one streaming provider call.
func startLLMSpan(ctx context.Context, provider, model string, iteration int) (context.Context, trace.Span) {
	return otel.Tracer(traceScope).Start(ctx, spanLLMStream,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(attrProvider, provider),
			attribute.String(attrModel, model),
			attribute.Int(attrIteration, iteration),
		))
}

// endLLMSpan records usage and stop reason from a finished stream and ends
// the span.
func endLLMSpan(span trace.Span, resp *providers.ChatResponse, err error) {
	if err == nil && resp != nil {
		if resp.Usage != nil {
			span.SetAttributes(
				attribute.Int(attrInputTokens, resp.Usage.PromptTokens),
				attribute.Int(attrOutputTokens, resp.Usage.CompletionTokens),
			)
		}
		span.SetAttributes(attribute.String(attrStopReason, resp.StopReason))
	}
	markSpanResult(span, err)
	span.End()
}

// startToolSpan opens a span for one tool dispatch.
func startToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return otel.Tracer(traceScope).Start(ctx, spanToolExecute,
		trace.WithAttributes(attribute.String(attrToolName, toolName)))
}

// endToolSpan records the envelope outcome. A failed envelope is data the
// model reacts to, not a span error; only transport-level problems mark
// spans as errored.
func endToolSpan(span trace.Span, result *tools.Result) {
	if result != nil {
		span.SetAttributes(attribute.Bool(attrToolSuccess, result.Success))
	}
	span.End()
}

func markSpanResult(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
