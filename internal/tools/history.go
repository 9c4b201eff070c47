package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/voxtask/internal/store"
)

// RegisterHistoryTools adds load_full_history, which resurrects context from
// earlier turns. Finding a delete_task call here recovers its pre-delete
// snapshot for restore.
func RegisterHistoryTools(reg *Registry, history store.HistoryStore) error {
	return reg.Register(Tool{
		Name: "load_full_history",
		Description: "Search past conversation turns by keyword or tool name. " +
			"Use to recover details from earlier turns, e.g. a deleted task's fields.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"search_terms": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"tools": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Tool names to match, e.g. [\"delete_task\"]",
				},
				"limit": map[string]any{"type": "integer", "minimum": 1},
			},
			"additionalProperties": false,
		},
		Handler: func(ctx context.Context, args map[string]any) *Result {
			terms := argStringSlice(args, "search_terms")
			toolNames := argStringSlice(args, "tools")
			if len(terms) == 0 && len(toolNames) == 0 {
				return Errorf("search_terms or tools is required")
			}
			limit := 20
			if n, ok := argInt(args, "limit"); ok {
				limit = int(n)
			}

			msgs, err := history.Search(ctx, terms, toolNames, limit)
			if err != nil {
				return Errorf("search history: %v", err)
			}
			return OKPayload(fmt.Sprintf("Found %d matching history messages", len(msgs)),
				map[string]any{"messages": msgs, "count": len(msgs)})
		},
	})
}
