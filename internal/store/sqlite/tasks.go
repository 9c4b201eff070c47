package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/voxtask/internal/store"
)

// TaskStore implements store.TaskStore on sqlite.
type TaskStore struct {
	db *sql.DB

	// Serializes mutations so concurrent sessions never interleave
	// read-modify-write cycles.
	mu sync.Mutex
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskColumns = `id, title, description, notes, priority, status,
	scheduled_date, deadline, completed_at, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*store.Task, error) {
	var (
		t                       store.Task
		desc, notes             sql.NullString
		scheduled, created, upd string
		deadline, completed     sql.NullString
	)
	err := row.Scan(&t.ID, &t.Title, &desc, &notes, &t.Priority, &t.Status,
		&scheduled, &deadline, &completed, &created, &upd)
	if err != nil {
		return nil, err
	}
	t.Description = desc.String
	t.Notes = notes.String
	t.ScheduledDate = decodeTime(scheduled)
	t.Deadline = decodeTimePtr(deadline)
	t.CompletedAt = decodeTimePtr(completed)
	t.CreatedAt = decodeTime(created)
	t.UpdatedAt = decodeTime(upd)
	return &t, nil
}

func (s *TaskStore) Create(ctx context.Context, draft store.TaskDraft) (*store.Task, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	t := store.Task{
		Title:       strings.TrimSpace(draft.Title),
		Description: draft.Description,
		Notes:       draft.Notes,
		Priority:    draft.Priority,
		Status:      draft.Status,
		Deadline:    draft.Deadline,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Priority == "" {
		t.Priority = store.PriorityMedium
	}
	if t.Status == "" {
		t.Status = store.StatusTodo
	}
	if draft.ScheduledDate != nil {
		t.ScheduledDate = *draft.ScheduledDate
	} else {
		// Unscheduled tasks land at noon today, not at creation time.
		t.ScheduledDate = time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.Local)
	}
	if t.Status == store.StatusCompleted {
		if draft.CompletedAt != nil {
			t.CompletedAt = draft.CompletedAt
		} else {
			t.CompletedAt = &now
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (title, description, notes, priority, status,
			scheduled_date, deadline, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, t.Notes, string(t.Priority), string(t.Status),
		encodeTime(t.ScheduledDate), encodeTimePtr(t.Deadline),
		encodeTimePtr(t.CompletedAt), encodeTime(t.CreatedAt), encodeTime(t.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("task id: %w", err)
	}
	return &t, nil
}

func (s *TaskStore) Update(ctx context.Context, id int64, patch store.TaskPatch) (*store.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Notes != nil {
		t.Notes = *patch.Notes
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.ScheduledDate != nil {
		t.ScheduledDate = *patch.ScheduledDate
	}
	if patch.Deadline != nil {
		t.Deadline = patch.Deadline
	}
	if patch.DeadlineShiftDays != nil && t.Deadline != nil {
		shifted := t.Deadline.AddDate(0, 0, *patch.DeadlineShiftDays)
		t.Deadline = &shifted
	}
	if patch.Status != nil && *patch.Status != t.Status {
		switch {
		case *patch.Status == store.StatusCompleted:
			now := time.Now()
			t.CompletedAt = &now
		case t.Status == store.StatusCompleted:
			// Reopening clears the completion stamp.
			t.CompletedAt = nil
		}
		t.Status = *patch.Status
	}
	t.UpdatedAt = time.Now()

	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, notes = ?, priority = ?,
			status = ?, scheduled_date = ?, deadline = ?, completed_at = ?,
			updated_at = ?
		WHERE id = ?`,
		t.Title, t.Description, t.Notes, string(t.Priority), string(t.Status),
		encodeTime(t.ScheduledDate), encodeTimePtr(t.Deadline),
		encodeTimePtr(t.CompletedAt), encodeTime(t.UpdatedAt), id)
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	return t, nil
}

func (s *TaskStore) Delete(ctx context.Context, id int64) (*store.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete task %d: %w", id, err)
	}
	return t, nil
}

func (s *TaskStore) CreateMany(ctx context.Context, drafts []store.TaskDraft) ([]store.BulkItem, error) {
	items := make([]store.BulkItem, 0, len(drafts))
	for _, d := range drafts {
		t, err := s.Create(ctx, d)
		if err != nil {
			items = append(items, store.BulkItem{Title: d.Title, Err: err.Error()})
			continue
		}
		items = append(items, store.BulkItem{ID: t.ID, Title: t.Title})
	}
	return items, nil
}

func (s *TaskStore) UpdateMany(ctx context.Context, ids []int64, patch store.TaskPatch) ([]store.BulkItem, error) {
	items := make([]store.BulkItem, 0, len(ids))
	for _, id := range ids {
		t, err := s.Update(ctx, id, patch)
		if err != nil {
			items = append(items, store.BulkItem{ID: id, Err: err.Error()})
			continue
		}
		items = append(items, store.BulkItem{ID: t.ID, Title: t.Title})
	}
	return items, nil
}

func (s *TaskStore) DeleteMany(ctx context.Context, ids []int64) ([]store.BulkItem, error) {
	items := make([]store.BulkItem, 0, len(ids))
	for _, id := range ids {
		t, err := s.Delete(ctx, id)
		if err != nil {
			items = append(items, store.BulkItem{ID: id, Err: err.Error()})
			continue
		}
		items = append(items, store.BulkItem{ID: t.ID, Title: t.Title})
	}
	return items, nil
}

func (s *TaskStore) Get(ctx context.Context, id int64) (*store.Task, error) {
	return s.get(ctx, id)
}

func (s *TaskStore) get(ctx context.Context, id int64) (*store.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

func (s *TaskStore) List(ctx context.Context, f store.TaskFilter) ([]*store.Task, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, string(f.Priority))
	}
	if f.ScheduledAfter != nil {
		where = append(where, "scheduled_date >= ?")
		args = append(args, encodeTime(*f.ScheduledAfter))
	}
	if f.ScheduledUntil != nil {
		where = append(where, "scheduled_date < ?")
		args = append(args, encodeTime(*f.ScheduledUntil))
	}
	if f.Text != "" {
		where = append(where, `(lower(title) LIKE ? OR lower(description) LIKE ? OR lower(notes) LIKE ?)`)
		pat := "%" + strings.ToLower(f.Text) + "%"
		args = append(args, pat, pat, pat)
	}

	q := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*store.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Search matches any term (OR) case-insensitively and ranks results by the
// number of distinct terms hit, breaking ties by recency. Ranking happens in
// Go; sqlite only narrows the candidate set.
func (s *TaskStore) Search(ctx context.Context, terms []string, limit int) ([]*store.Task, error) {
	var clean []string
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	var (
		ors  []string
		args []any
	)
	for _, t := range clean {
		ors = append(ors, `(lower(title) LIKE ? OR lower(description) LIKE ? OR lower(notes) LIKE ?)`)
		pat := "%" + t + "%"
		args = append(args, pat, pat, pat)
	}
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(ors, " OR ")

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	defer rows.Close()

	type ranked struct {
		task *store.Task
		hits int
	}
	var found []ranked
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		text := strings.ToLower(t.Title + " " + t.Description + " " + t.Notes)
		hits := 0
		for _, term := range clean {
			if strings.Contains(text, term) {
				hits++
			}
		}
		found = append(found, ranked{task: t, hits: hits})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].hits != found[j].hits {
			return found[i].hits > found[j].hits
		}
		return found[i].task.CreatedAt.After(found[j].task.CreatedAt)
	})
	if len(found) > limit {
		found = found[:limit]
	}
	out := make([]*store.Task, len(found))
	for i, r := range found {
		out[i] = r.task
	}
	return out, nil
}

func (s *TaskStore) Stats(ctx context.Context) (*store.TaskStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	var st store.TaskStats
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		st.Total += n
		switch store.TaskStatus(status) {
		case store.StatusTodo:
			st.Todo = n
		case store.StatusInProgress:
			st.InProgress = n
		case store.StatusCompleted:
			st.Completed = n
		case store.StatusCancelled:
			st.Cancelled = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := encodeTime(time.Now())
	week := encodeTime(time.Now().AddDate(0, 0, 7))
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE deadline IS NOT NULL AND deadline >= ? AND deadline < ?
		  AND status NOT IN ('completed', 'cancelled')`, now, week)
	if err := row.Scan(&st.UpcomingDeadlines); err != nil {
		return nil, fmt.Errorf("upcoming deadlines: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE deadline IS NOT NULL AND deadline < ? AND status != 'completed'`, now)
	if err := row.Scan(&st.Missed); err != nil {
		return nil, fmt.Errorf("missed deadlines: %w", err)
	}
	return &st, nil
}
