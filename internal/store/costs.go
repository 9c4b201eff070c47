package store

import (
	"context"
	"time"
)

// CostRecord tracks token usage and spend for one agent invocation,
// totalled across all iterations.
type CostRecord struct {
	ID           int64     `json:"id"`
	QueryPreview string    `json:"query_preview"` // first 1000 chars of the user query
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	CacheWrite   int       `json:"cache_write_tokens"`
	CacheRead    int       `json:"cache_read_tokens"`
	InputCost    float64   `json:"input_cost"`
	OutputCost   float64   `json:"output_cost"`
	TotalCost    float64   `json:"total_cost"`
	Iterations   int       `json:"iterations"`
	ToolCalls    int       `json:"tool_calls_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// CostTotals aggregates the cost log.
type CostTotals struct {
	Requests    int     `json:"requests"`
	TotalTokens int     `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`
}

// CostStore persists per-invocation API cost records.
type CostStore interface {
	Record(ctx context.Context, rec CostRecord) error
	Totals(ctx context.Context) (*CostTotals, error)
}
