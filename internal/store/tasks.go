package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a task id does not exist.
var ErrNotFound = errors.New("not found")

// TaskPriority is the ordered priority set.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Valid reports whether p is one of the allowed priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TaskStatus is the task lifecycle state.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is one of the allowed statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Task is a single todo item.
type Task struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	Priority    TaskPriority `json:"priority"`
	Status      TaskStatus   `json:"status"`

	// ScheduledDate is when the task is planned to be done. Always set on a
	// persisted task.
	ScheduledDate time.Time `json:"scheduled_date"`
	// Deadline is when the task must be completed by. Optional.
	Deadline    *time.Time `json:"deadline,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Missed reports whether the deadline has passed without completion.
// Derived, never stored.
func (t *Task) Missed(now time.Time) bool {
	return t.Deadline != nil && t.Deadline.Before(now) && t.Status != StatusCompleted
}

// TaskDraft holds the fields for creating a task.
type TaskDraft struct {
	Title         string       `json:"title"`
	Description   string       `json:"description,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	Priority      TaskPriority `json:"priority,omitempty"`
	ScheduledDate *time.Time   `json:"scheduled_date,omitempty"`
	Deadline      *time.Time   `json:"deadline,omitempty"`
	Status        TaskStatus   `json:"status,omitempty"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
}

// Validate checks draft fields that have closed domains.
func (d *TaskDraft) Validate() error {
	if d.Title == "" {
		return fmt.Errorf("title is required")
	}
	if d.Priority != "" && !d.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", d.Priority)
	}
	if d.Status != "" && !d.Status.Valid() {
		return fmt.Errorf("invalid status %q", d.Status)
	}
	return nil
}

// TaskPatch holds partial updates. Nil fields are left untouched.
type TaskPatch struct {
	Title         *string       `json:"title,omitempty"`
	Description   *string       `json:"description,omitempty"`
	Notes         *string       `json:"notes,omitempty"`
	Priority      *TaskPriority `json:"priority,omitempty"`
	Status        *TaskStatus   `json:"status,omitempty"`
	ScheduledDate *time.Time    `json:"scheduled_date,omitempty"`
	Deadline      *time.Time    `json:"deadline,omitempty"`

	// DeadlineShiftDays moves an existing deadline by N days instead of
	// setting an absolute one. Ignored when the task has no deadline.
	DeadlineShiftDays *int `json:"deadline_shift_days,omitempty"`
}

// Validate checks patch fields that have closed domains.
func (p *TaskPatch) Validate() error {
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", *p.Priority)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("invalid status %q", *p.Status)
	}
	return nil
}

// TaskFilter selects tasks for List.
type TaskFilter struct {
	Status         TaskStatus
	Priority       TaskPriority
	ScheduledAfter *time.Time
	ScheduledUntil *time.Time
	// Text is a case-insensitive substring matched against title,
	// description and notes.
	Text  string
	Limit int
}

// TaskStats aggregates counts by status plus the upcoming-deadline window.
type TaskStats struct {
	Total             int `json:"total"`
	Todo              int `json:"todo"`
	InProgress        int `json:"in_progress"`
	Completed         int `json:"completed"`
	Cancelled         int `json:"cancelled"`
	UpcomingDeadlines int `json:"upcoming_deadlines"`
	Missed            int `json:"missed"`
}

// BulkItem reports the per-item outcome of a bulk operation.
type BulkItem struct {
	ID    int64  `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Err   string `json:"error,omitempty"`
}

// TaskStore is the typed CRUD gateway over the task entity.
// Mutations are serialized through a single-writer discipline; reads may
// proceed concurrently. All mutations return the post-mutation entity,
// except Delete which returns the pre-delete snapshot.
type TaskStore interface {
	Create(ctx context.Context, draft TaskDraft) (*Task, error)
	Update(ctx context.Context, id int64, patch TaskPatch) (*Task, error)
	Delete(ctx context.Context, id int64) (*Task, error)

	// Bulk variants record per-item success but never form a cross-item
	// transaction; partial success is normal.
	CreateMany(ctx context.Context, drafts []TaskDraft) ([]BulkItem, error)
	UpdateMany(ctx context.Context, ids []int64, patch TaskPatch) ([]BulkItem, error)
	DeleteMany(ctx context.Context, ids []int64) ([]BulkItem, error)
	Get(ctx context.Context, id int64) (*Task, error)
	List(ctx context.Context, f TaskFilter) ([]*Task, error)
	// Search matches any of the given terms (OR) case-insensitively across
	// title, description and notes, ranked by match count then recency.
	Search(ctx context.Context, terms []string, limit int) ([]*Task, error)
	Stats(ctx context.Context) (*TaskStats, error)
}
