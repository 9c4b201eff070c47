package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/voxtask/internal/store"
)

// HistoryStore implements store.HistoryStore on sqlite. Tool calls and
// results are stored as JSON columns.
type HistoryStore struct {
	db *sql.DB
	mu sync.Mutex
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Append(ctx context.Context, msg store.ConversationMessage) (*store.ConversationMessage, error) {
	var calls, results any
	if len(msg.ToolCalls) > 0 {
		b, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return nil, fmt.Errorf("encode tool calls: %w", err)
		}
		calls = string(b)
	}
	if len(msg.ToolResults) > 0 {
		b, err := json.Marshal(msg.ToolResults)
		if err != nil {
			return nil, fmt.Errorf("encode tool results: %w", err)
		}
		results = string(b)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (role, content, tool_calls, tool_results, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.Role, msg.Content, calls, results, encodeTime(msg.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	msg.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	return &msg, nil
}

func (s *HistoryStore) Tail(ctx context.Context, n int) ([]store.ConversationMessage, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, tool_calls, tool_results, created_at
		FROM conversation_messages ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history tail: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	// Scanned newest-first; callers want chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Search walks recent history newest-first and keeps messages whose content
// matches any term or whose tool calls include any named tool. A matched
// assistant message drags its following tool-result message along so callers
// can recover recorded payloads.
func (s *HistoryStore) Search(ctx context.Context, terms []string, toolNames []string, limit int) ([]store.ConversationMessage, error) {
	if limit <= 0 {
		limit = 20
	}

	// Candidate window: recent messages only. The log is append-only and
	// queries target recent turns.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, tool_calls, tool_results, created_at
		FROM conversation_messages ORDER BY id DESC LIMIT ?`, limit*10)
	if err != nil {
		return nil, fmt.Errorf("history search: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	var lowTerms []string
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lowTerms = append(lowTerms, t)
		}
	}
	wantTool := make(map[string]bool, len(toolNames))
	for _, n := range toolNames {
		wantTool[n] = true
	}

	matches := func(m *store.ConversationMessage) bool {
		content := strings.ToLower(m.Content)
		for _, t := range lowTerms {
			if strings.Contains(content, t) {
				return true
			}
		}
		for _, tc := range m.ToolCalls {
			if wantTool[tc.Name] {
				return true
			}
		}
		return false
	}

	var out []store.ConversationMessage
	for i := 0; i < len(msgs) && len(out) < limit; i++ {
		if !matches(&msgs[i]) {
			continue
		}
		out = append(out, msgs[i])
		if len(msgs[i].ToolCalls) > 0 && i+1 < len(msgs) && len(msgs[i+1].ToolResults) > 0 {
			out = append(out, msgs[i+1])
			i++
		}
	}
	return out, nil
}

func (s *HistoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_messages`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func scanMessages(rows *sql.Rows) ([]store.ConversationMessage, error) {
	var msgs []store.ConversationMessage
	for rows.Next() {
		var (
			m              store.ConversationMessage
			calls, results sql.NullString
			created        string
		)
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &calls, &results, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if calls.Valid && calls.String != "" {
			if err := json.Unmarshal([]byte(calls.String), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls for message %d: %w", m.ID, err)
			}
		}
		if results.Valid && results.String != "" {
			if err := json.Unmarshal([]byte(results.String), &m.ToolResults); err != nil {
				return nil, fmt.Errorf("decode tool results for message %d: %w", m.ID, err)
			}
		}
		m.CreatedAt = decodeTime(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
