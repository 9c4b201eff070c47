package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/voxtask/internal/store"
	"github.com/nextlevelbuilder/voxtask/internal/store/sqlite"
)

func TestLoadFullHistoryTool(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	history := sqlite.NewHistoryStore(db)
	ctx := context.Background()

	_, err = history.Append(ctx, store.ConversationMessage{
		Role: store.RoleAssistant, Content: "Deleting it now.",
		ToolCalls: []store.ToolCallRecord{
			{ID: "toolu_1", Name: "delete_task", Input: map[string]any{"task_id": float64(4)}},
		},
	})
	require.NoError(t, err)
	_, err = history.Append(ctx, store.ConversationMessage{
		Role: store.RoleUser, Content: "what's the weather",
	})
	require.NoError(t, err)

	reg := NewRegistry()
	require.NoError(t, RegisterHistoryTools(reg, history))

	res := reg.Execute(ctx, "load_full_history", map[string]any{
		"tools": []any{"delete_task"},
	})
	require.True(t, res.Success)
	require.Equal(t, 1, res.Payload["count"])

	// At least one of search_terms or tools must be given.
	res = reg.Execute(ctx, "load_full_history", map[string]any{})
	require.False(t, res.Success)
	require.Contains(t, res.Message, "search_terms or tools")
}
