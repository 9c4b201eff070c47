// Package agent implements the bounded tool-calling loop that turns one
// transcribed user query into tool executions and a spoken reply.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nextlevelbuilder/voxtask/internal/providers"
	"github.com/nextlevelbuilder/voxtask/internal/store"
	"github.com/nextlevelbuilder/voxtask/internal/tools"
)

// Config tunes one Loop instance.
type Config struct {
	MaxIterations int           // tool-calling rounds per invocation
	HistoryLimit  int           // conversation messages loaded per invocation
	MaxTokens     int           // per-stream output cap
	Timeout       time.Duration // wall clock per attempt
}

func (c *Config) applyDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 3
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 3
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Loop drives the multi-iteration agent orchestration. One Loop serves the
// whole process; invocations are serialized per session by the orchestrator.
type Loop struct {
	provider providers.Provider
	registry *tools.Registry
	stores   *store.Stores
	cfg      Config
	pricing  []providers.PricingOverride

	now func() time.Time
}

func NewLoop(provider providers.Provider, registry *tools.Registry, stores *store.Stores, cfg Config, pricing []providers.PricingOverride) *Loop {
	cfg.applyDefaults()
	return &Loop{
		provider: provider,
		registry: registry,
		stores:   stores,
		cfg:      cfg,
		pricing:  pricing,
		now:      time.Now,
	}
}

// Run executes one invocation for a transcribed user query. Events stream
// through emit in order; emit is called from a single goroutine. A cancelled
// ctx stops the loop at the next stream or store boundary and skips
// persistence for the in-progress turn.
//
// Failure policy: one silent retry with a fresh time budget, reusing the
// same message list. A second failure emits an error event and clears the
// history, because a half-written turn would poison the next prompt.
func (l *Loop) Run(ctx context.Context, query string, emit func(Event)) error {
	ctx, span := startTurnSpan(ctx, query)
	err := l.run(ctx, query, emit)
	markSpanResult(span, err)
	span.End()
	return err
}

func (l *Loop) run(ctx context.Context, query string, emit func(Event)) error {
	emit(thinkingEvent("Thinking..."))

	prefix, err := l.loadHistory(ctx)
	if err != nil {
		emit(errorEvent("history unavailable"))
		return fmt.Errorf("load history: %w", err)
	}

	if _, err := l.stores.History.Append(ctx, store.ConversationMessage{
		Role:    store.RoleUser,
		Content: query,
	}); err != nil {
		emit(errorEvent("history unavailable"))
		return fmt.Errorf("append user message: %w", err)
	}

	system := systemPrompt(l.now())
	messages := append(prefix, providers.Message{Role: "user", Content: query})

	err = l.runTurn(ctx, system, messages, query, emit)
	if err == nil || ctx.Err() != nil {
		return ctx.Err()
	}

	slog.Warn("agent turn failed, retrying", "error", err)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(500 * time.Millisecond):
	}

	err = l.runTurn(ctx, system, messages, query, emit)
	if err == nil || ctx.Err() != nil {
		return ctx.Err()
	}

	slog.Error("agent turn failed after retry, clearing history", "error", err)
	if clearErr := l.stores.History.Clear(context.WithoutCancel(ctx)); clearErr != nil {
		slog.Error("clear history", "error", clearErr)
	}
	emit(errorEvent(err.Error()))
	return err
}

// runTurn is one attempt: iterate stream+dispatch up to the cap, then
// persist the turn, record cost, and emit done.
func (l *Loop) runTurn(ctx context.Context, system string, base []providers.Message, query string, emit func(Event)) error {
	runCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	messages := append([]providers.Message(nil), base...)
	defs := l.registry.Definitions()

	var (
		text        strings.Builder
		turnCalls   []store.ToolCallRecord
		turnResults []store.ToolResultRecord
		totalUsage  providers.Usage
		totalCost   providers.CostBreakdown
	)
	model := l.provider.DefaultModel()
	iterations := 0

	for iterations < l.cfg.MaxIterations {
		iterations++

		var (
			iterCalls   []providers.ToolCall
			iterResults []providers.Message
		)
		onEvent := func(ev providers.StreamEvent) {
			if runCtx.Err() != nil {
				return // cancelled: drain the stream, suppress emission
			}
			switch ev.Kind {
			case providers.EventTextDelta:
				text.WriteString(ev.Text)
				emit(textEvent(ev.Text))

			case providers.EventToolCallComplete:
				call := *ev.ToolCall
				emit(toolUseStartEvent(call.Name))
				toolCtx, toolSpan := startToolSpan(runCtx, call.Name)
				result := l.registry.Execute(toolCtx, call.Name, call.Arguments)
				endToolSpan(toolSpan, result)
				raw, err := json.Marshal(result)
				if err != nil {
					raw, _ = json.Marshal(tools.Errorf("serialize result: %v", err))
				}
				emit(toolUseEvent(call.Name, call.Arguments))
				emit(toolResultEvent(call.Name, raw))

				iterCalls = append(iterCalls, call)
				iterResults = append(iterResults, providers.Message{
					Role:       "tool",
					ToolCallID: call.ID,
					Content:    string(raw),
				})
				turnCalls = append(turnCalls, store.ToolCallRecord{
					ID: call.ID, Name: call.Name, Input: call.Arguments,
				})
				turnResults = append(turnResults, store.ToolResultRecord{
					ToolUseID: call.ID, Content: string(raw),
				})
			}
		}

		llmCtx, llmSpan := startLLMSpan(runCtx, l.provider.Name(), model, iterations)
		resp, err := l.provider.ChatStream(llmCtx, providers.ChatRequest{
			System:    system,
			Messages:  messages,
			Tools:     defs,
			MaxTokens: l.cfg.MaxTokens,
		}, onEvent)
		endLLMSpan(llmSpan, resp, err)
		if err != nil {
			return err
		}

		totalUsage.Add(resp.Usage)
		cost := providers.CostForUsage(model, resp.Usage, l.pricing)
		totalCost.Input += cost.Input
		totalCost.Output += cost.Output
		totalCost.Total += cost.Total

		if resp.StopReason == providers.StopToolUse && len(iterCalls) > 0 {
			messages = append(messages, providers.Message{
				Role:      "assistant",
				Content:   resp.Content,
				ToolCalls: iterCalls,
			})
			messages = append(messages, iterResults...)
			continue
		}
		break
	}

	if err := runCtx.Err(); err != nil {
		return err
	}

	// Persist the turn: one assistant message, plus one synthetic user
	// message carrying tool results when any tool ran.
	if _, err := l.stores.History.Append(ctx, store.ConversationMessage{
		Role:      store.RoleAssistant,
		Content:   text.String(),
		ToolCalls: turnCalls,
	}); err != nil {
		return fmt.Errorf("persist assistant message: %w", err)
	}
	if len(turnResults) > 0 {
		if _, err := l.stores.History.Append(ctx, store.ConversationMessage{
			Role:        store.RoleUser,
			ToolResults: turnResults,
		}); err != nil {
			return fmt.Errorf("persist tool results: %w", err)
		}
	}

	if err := l.stores.Costs.Record(ctx, store.CostRecord{
		QueryPreview: query,
		Model:        model,
		InputTokens:  totalUsage.PromptTokens,
		OutputTokens: totalUsage.CompletionTokens,
		TotalTokens:  totalUsage.TotalTokens,
		CacheWrite:   totalUsage.CacheWriteTokens,
		CacheRead:    totalUsage.CacheReadTokens,
		InputCost:    totalCost.Input,
		OutputCost:   totalCost.Output,
		TotalCost:    totalCost.Total,
		Iterations:   iterations,
		ToolCalls:    len(turnCalls),
	}); err != nil {
		slog.Warn("record cost", "error", err)
	}

	slog.Info("agent turn complete",
		"iterations", iterations,
		"tool_calls", len(turnCalls),
		"tokens", totalUsage.TotalTokens,
		"cost_usd", totalCost.Total,
	)
	emit(doneEvent())
	return nil
}

// loadHistory returns the provider-shaped history prefix. A structurally
// inconsistent log (a tool call with no matching result) is wiped entirely
// and the turn proceeds with an empty prefix.
func (l *Loop) loadHistory(ctx context.Context) ([]providers.Message, error) {
	msgs, err := l.stores.History.Tail(ctx, l.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}

	// A tool-result message at the window start lost its assistant partner
	// to the tail cut; drop it rather than treating the log as corrupt.
	for len(msgs) > 0 && len(msgs[0].ToolResults) > 0 {
		msgs = msgs[1:]
	}

	if !historyConsistent(msgs) {
		slog.Warn("conversation history corrupted, clearing")
		if err := l.stores.History.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear corrupted history: %w", err)
		}
		return nil, nil
	}
	return toProviderMessages(msgs), nil
}

// historyConsistent checks the pairing invariant: every assistant message
// with tool calls is immediately followed by a message whose tool results
// cover those call ids, and tool results never appear unpaired.
func historyConsistent(msgs []store.ConversationMessage) bool {
	for i, m := range msgs {
		if len(m.ToolResults) > 0 {
			if i == 0 || len(msgs[i-1].ToolCalls) == 0 {
				return false
			}
			continue
		}
		if m.Role == store.RoleAssistant && len(m.ToolCalls) > 0 {
			if i+1 >= len(msgs) || len(msgs[i+1].ToolResults) == 0 {
				return false
			}
			results := make(map[string]bool, len(msgs[i+1].ToolResults))
			for _, r := range msgs[i+1].ToolResults {
				results[r.ToolUseID] = true
			}
			for _, c := range m.ToolCalls {
				if !results[c.ID] {
					return false
				}
			}
		}
	}
	return true
}

func toProviderMessages(msgs []store.ConversationMessage) []providers.Message {
	var out []providers.Message
	for _, m := range msgs {
		if len(m.ToolResults) > 0 {
			for _, r := range m.ToolResults {
				out = append(out, providers.Message{
					Role:       "tool",
					ToolCallID: r.ToolUseID,
					Content:    r.Content,
				})
			}
			continue
		}

		pm := providers.Message{Role: m.Role, Content: m.Content}
		for _, c := range m.ToolCalls {
			pm.ToolCalls = append(pm.ToolCalls, providers.ToolCall{
				ID: c.ID, Name: c.Name, Arguments: c.Input,
			})
		}
		out = append(out, pm)
	}
	return out
}
