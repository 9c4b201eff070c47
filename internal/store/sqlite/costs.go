package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/voxtask/internal/store"
)

// CostStore implements store.CostStore on sqlite.
type CostStore struct {
	db *sql.DB
}

func NewCostStore(db *sql.DB) *CostStore {
	return &CostStore{db: db}
}

const queryPreviewLimit = 1000

func (s *CostStore) Record(ctx context.Context, rec store.CostRecord) error {
	if len(rec.QueryPreview) > queryPreviewLimit {
		rec.QueryPreview = rec.QueryPreview[:queryPreviewLimit]
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_costs (query_preview, model, input_tokens, output_tokens,
			total_tokens, cache_write_tokens, cache_read_tokens,
			input_cost, output_cost, total_cost, iterations, tool_calls_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.QueryPreview, rec.Model, rec.InputTokens, rec.OutputTokens,
		rec.TotalTokens, rec.CacheWrite, rec.CacheRead,
		rec.InputCost, rec.OutputCost, rec.TotalCost,
		rec.Iterations, rec.ToolCalls, encodeTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("record cost: %w", err)
	}
	return nil
}

func (s *CostStore) Totals(ctx context.Context) (*store.CostTotals, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(total_cost), 0)
		FROM api_costs`)
	var t store.CostTotals
	if err := row.Scan(&t.Requests, &t.TotalTokens, &t.TotalCost); err != nil {
		if err == sql.ErrNoRows {
			return &t, nil
		}
		return nil, fmt.Errorf("cost totals: %w", err)
	}
	return &t, nil
}
