package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/voxtask/internal/store"
)

// TestCostTotals verifies accumulation and the 1000-char query preview cap.
func TestCostTotals(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	costs := NewCostStore(db)
	ctx := context.Background()

	require.NoError(t, costs.Record(ctx, store.CostRecord{
		QueryPreview: strings.Repeat("a", 2000),
		Model:        "claude-sonnet-4-20250514",
		TotalTokens:  1200,
		TotalCost:    0.0123,
		Iterations:   2,
	}))
	require.NoError(t, costs.Record(ctx, store.CostRecord{
		QueryPreview: "short",
		Model:        "claude-sonnet-4-20250514",
		TotalTokens:  800,
		TotalCost:    0.0077,
	}))

	totals, err := costs.Totals(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, totals.Requests)
	require.Equal(t, 2000, totals.TotalTokens)
	require.InDelta(t, 0.02, totals.TotalCost, 1e-9)

	var preview string
	require.NoError(t, db.QueryRow(`SELECT query_preview FROM api_costs ORDER BY id LIMIT 1`).Scan(&preview))
	require.Len(t, preview, 1000)
}
