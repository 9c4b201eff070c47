package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/voxtask/internal/store"
)

// TaskTools registers the task CRUD tool set against a task store.
type TaskTools struct {
	tasks store.TaskStore

	now func() time.Time
}

func NewTaskTools(tasks store.TaskStore) *TaskTools {
	return &TaskTools{tasks: tasks, now: time.Now}
}

var (
	priorityEnum = []any{"low", "medium", "high", "urgent"}
	statusEnum   = []any{"todo", "in_progress", "completed", "cancelled"}
)

func taskFieldProps() map[string]any {
	return map[string]any{
		"title":       map[string]any{"type": "string", "description": "Short task title"},
		"description": map[string]any{"type": "string", "description": "Longer free-text details"},
		"notes":       map[string]any{"type": "string", "description": "Extra notes"},
		"priority":    map[string]any{"type": "string", "enum": priorityEnum},
		"status":      map[string]any{"type": "string", "enum": statusEnum},
		"scheduled_date": map[string]any{
			"type":        "string",
			"description": "ISO timestamp or date when the task is planned. Date-only defaults to noon.",
		},
		"deadline": map[string]any{
			"type":        "string",
			"description": "ISO timestamp or date the task must be done by. Date-only defaults to noon.",
		},
	}
}

// Register adds all task tools to the registry.
func (t *TaskTools) Register(reg *Registry) error {
	updateProps := taskFieldProps()
	updateProps["task_id"] = map[string]any{"type": "integer", "description": "Task id to update"}
	updateProps["postpone_days"] = map[string]any{
		"type":        "integer",
		"description": "Shift the existing deadline by this many days instead of setting an absolute one",
	}

	bulkUpdateProps := taskFieldProps()
	bulkUpdateProps["task_ids"] = map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "integer"},
	}

	tools := []Tool{
		{
			Name:        "create_task",
			Description: "Create a single task. Only title is required.",
			Schema: map[string]any{
				"type":                 "object",
				"properties":           taskFieldProps(),
				"required":             []any{"title"},
				"additionalProperties": false,
			},
			Handler: t.createTask,
		},
		{
			Name:        "create_multiple_tasks",
			Description: "Create several tasks in one call.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"tasks": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":       "object",
							"properties": taskFieldProps(),
							"required":   []any{"title"},
						},
						"minItems": 1,
					},
				},
				"required":             []any{"tasks"},
				"additionalProperties": false,
			},
			Handler: t.createMultipleTasks,
		},
		{
			Name:        "update_task",
			Description: "Update fields on an existing task by id.",
			Schema: map[string]any{
				"type":                 "object",
				"properties":           updateProps,
				"required":             []any{"task_id"},
				"additionalProperties": false,
			},
			Handler: t.updateTask,
		},
		{
			Name:        "update_multiple_tasks",
			Description: "Apply the same field changes to several tasks by id.",
			Schema: map[string]any{
				"type":                 "object",
				"properties":           bulkUpdateProps,
				"required":             []any{"task_ids"},
				"additionalProperties": false,
			},
			Handler: t.updateMultipleTasks,
		},
		{
			Name:        "delete_task",
			Description: "Delete a task by id. Returns the deleted task so it can be restored later.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{"type": "integer"},
				},
				"required":             []any{"task_id"},
				"additionalProperties": false,
			},
			Handler: t.deleteTask,
		},
		{
			Name:        "delete_multiple_tasks",
			Description: "Delete several tasks by id. Returns the deleted tasks.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_ids": map[string]any{
						"type":     "array",
						"items":    map[string]any{"type": "integer"},
						"minItems": 1,
					},
				},
				"required":             []any{"task_ids"},
				"additionalProperties": false,
			},
			Handler: t.deleteMultipleTasks,
		},
		{
			Name:        "list_tasks",
			Description: "List tasks with optional status, priority and date-range filters.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status":    map[string]any{"type": "string", "enum": statusEnum},
					"priority":  map[string]any{"type": "string", "enum": priorityEnum},
					"date_from": map[string]any{"type": "string"},
					"date_to":   map[string]any{"type": "string"},
					"limit":     map[string]any{"type": "integer", "minimum": 1},
				},
				"additionalProperties": false,
			},
			Handler: t.listTasks,
		},
		{
			Name:        "search_tasks",
			Description: "Search tasks by keywords across title, description and notes. Switches the UI to a list of matches.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":    map[string]any{"type": "string", "minLength": 1},
					"priority": map[string]any{"type": "string", "enum": priorityEnum},
					"status":   map[string]any{"type": "string", "enum": statusEnum},
					"limit":    map[string]any{"type": "integer", "minimum": 1},
				},
				"required":             []any{"query"},
				"additionalProperties": false,
			},
			Handler: t.searchTasks,
		},
		{
			Name:        "get_task_stats",
			Description: "Aggregate task counts by status plus upcoming and missed deadlines.",
			Schema: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{},
				"additionalProperties": false,
			},
			Handler: t.taskStats,
		},
	}

	for _, tool := range tools {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func (t *TaskTools) draftFromArgs(args map[string]any) (store.TaskDraft, error) {
	draft := store.TaskDraft{
		Title:       strings.TrimSpace(argString(args, "title")),
		Description: argString(args, "description"),
		Notes:       argString(args, "notes"),
		Priority:    store.TaskPriority(argString(args, "priority")),
		Status:      store.TaskStatus(argString(args, "status")),
	}
	if s := argString(args, "scheduled_date"); s != "" {
		when, err := parseWhen(s)
		if err != nil {
			return draft, fmt.Errorf("scheduled_date: %w", err)
		}
		draft.ScheduledDate = &when
	}
	if s := argString(args, "deadline"); s != "" {
		when, err := parseDeadline(s, t.now())
		if err != nil {
			return draft, fmt.Errorf("deadline: %w", err)
		}
		draft.Deadline = &when
	}
	return draft, nil
}

func (t *TaskTools) patchFromArgs(args map[string]any) (store.TaskPatch, error) {
	var patch store.TaskPatch
	if v, ok := args["title"]; ok {
		s, _ := v.(string)
		patch.Title = &s
	}
	if v, ok := args["description"]; ok {
		s, _ := v.(string)
		patch.Description = &s
	}
	if v, ok := args["notes"]; ok {
		s, _ := v.(string)
		patch.Notes = &s
	}
	if s := argString(args, "priority"); s != "" {
		p := store.TaskPriority(s)
		patch.Priority = &p
	}
	if s := argString(args, "status"); s != "" {
		st := store.TaskStatus(s)
		patch.Status = &st
	}
	if s := argString(args, "scheduled_date"); s != "" {
		when, err := parseWhen(s)
		if err != nil {
			return patch, fmt.Errorf("scheduled_date: %w", err)
		}
		patch.ScheduledDate = &when
	}
	if s := argString(args, "deadline"); s != "" {
		when, err := parseDeadline(s, t.now())
		if err != nil {
			return patch, fmt.Errorf("deadline: %w", err)
		}
		patch.Deadline = &when
	}
	if days, ok := argInt(args, "postpone_days"); ok {
		d := int(days)
		patch.DeadlineShiftDays = &d
	}
	return patch, nil
}

func (t *TaskTools) createTask(ctx context.Context, args map[string]any) *Result {
	draft, err := t.draftFromArgs(args)
	if err != nil {
		return Errorf("%v", err)
	}
	task, err := t.tasks.Create(ctx, draft)
	if err != nil {
		return Errorf("create task: %v", err)
	}
	return OKPayload(fmt.Sprintf("Created task %q", task.Title), map[string]any{"task": task})
}

func (t *TaskTools) createMultipleTasks(ctx context.Context, args map[string]any) *Result {
	raw, _ := args["tasks"].([]any)
	drafts := make([]store.TaskDraft, 0, len(raw))
	for i, e := range raw {
		m, ok := e.(map[string]any)
		if !ok {
			return Errorf("tasks[%d]: expected object", i)
		}
		draft, err := t.draftFromArgs(m)
		if err != nil {
			return Errorf("tasks[%d]: %v", i, err)
		}
		drafts = append(drafts, draft)
	}

	items, err := t.tasks.CreateMany(ctx, drafts)
	if err != nil {
		return Errorf("create tasks: %v", err)
	}
	created := 0
	for _, it := range items {
		if it.Err == "" {
			created++
		}
	}
	return OKPayload(fmt.Sprintf("Created %d of %d tasks", created, len(items)),
		map[string]any{"results": items})
}

func (t *TaskTools) updateTask(ctx context.Context, args map[string]any) *Result {
	id, ok := argInt(args, "task_id")
	if !ok {
		return Errorf("task_id is required")
	}
	patch, err := t.patchFromArgs(args)
	if err != nil {
		return Errorf("%v", err)
	}

	before, err := t.tasks.Get(ctx, id)
	if err != nil {
		return Errorf("update task: %v", err)
	}
	task, err := t.tasks.Update(ctx, id, patch)
	if err != nil {
		return Errorf("update task: %v", err)
	}

	res := OKPayload(fmt.Sprintf("Updated task %q", task.Title), map[string]any{"task": task})
	if cmd := deadlineShiftNavigation(before.Deadline, task.Deadline); cmd != nil {
		res.WithUI(cmd)
	}
	return res
}

// deadlineShiftNavigation picks a calendar view when a deadline moved far
// enough that the task left the screen the user is looking at. Shifts under
// three days stay put; larger ones jump to the view that still shows the new
// date.
func deadlineShiftNavigation(before, after *time.Time) *UICommand {
	if before == nil || after == nil {
		return nil
	}
	days := int(after.Sub(*before).Hours() / 24)
	if days < 0 {
		days = -days
	}
	if days < 3 {
		return nil
	}
	mode := ViewDaily
	switch {
	case days >= 25:
		mode = ViewMonthly
	case days >= 6:
		mode = ViewWeekly
	}
	return &UICommand{
		Type:       UIChangeView,
		ViewMode:   mode,
		TargetDate: after.Format("2006-01-02"),
	}
}

func (t *TaskTools) updateMultipleTasks(ctx context.Context, args map[string]any) *Result {
	ids := argInt64Slice(args, "task_ids")
	if len(ids) == 0 {
		return Errorf("task_ids is required")
	}
	patch, err := t.patchFromArgs(args)
	if err != nil {
		return Errorf("%v", err)
	}
	items, err := t.tasks.UpdateMany(ctx, ids, patch)
	if err != nil {
		return Errorf("update tasks: %v", err)
	}
	updated := 0
	for _, it := range items {
		if it.Err == "" {
			updated++
		}
	}
	return OKPayload(fmt.Sprintf("Updated %d of %d tasks", updated, len(items)),
		map[string]any{"results": items})
}

func (t *TaskTools) deleteTask(ctx context.Context, args map[string]any) *Result {
	id, ok := argInt(args, "task_id")
	if !ok {
		return Errorf("task_id is required")
	}
	task, err := t.tasks.Delete(ctx, id)
	if err != nil {
		return Errorf("delete task: %v", err)
	}
	// The snapshot rides in the envelope so a later turn can restore it.
	return OKPayload(fmt.Sprintf("Deleted task %q", task.Title), map[string]any{"deleted_task": task})
}

func (t *TaskTools) deleteMultipleTasks(ctx context.Context, args map[string]any) *Result {
	ids := argInt64Slice(args, "task_ids")
	if len(ids) == 0 {
		return Errorf("task_ids is required")
	}
	var deleted []*store.Task
	items := make([]store.BulkItem, 0, len(ids))
	for _, id := range ids {
		task, err := t.tasks.Delete(ctx, id)
		if err != nil {
			items = append(items, store.BulkItem{ID: id, Err: err.Error()})
			continue
		}
		deleted = append(deleted, task)
		items = append(items, store.BulkItem{ID: task.ID, Title: task.Title})
	}
	return OKPayload(fmt.Sprintf("Deleted %d of %d tasks", len(deleted), len(ids)),
		map[string]any{"results": items, "deleted_tasks": deleted})
}

func (t *TaskTools) listTasks(ctx context.Context, args map[string]any) *Result {
	filter := store.TaskFilter{
		Status:   store.TaskStatus(argString(args, "status")),
		Priority: store.TaskPriority(argString(args, "priority")),
	}
	if s := argString(args, "date_from"); s != "" {
		when, err := parseWhen(s)
		if err != nil {
			return Errorf("date_from: %v", err)
		}
		filter.ScheduledAfter = &when
	}
	if s := argString(args, "date_to"); s != "" {
		when, err := parseWhen(s)
		if err != nil {
			return Errorf("date_to: %v", err)
		}
		filter.ScheduledUntil = &when
	}
	if n, ok := argInt(args, "limit"); ok {
		filter.Limit = int(n)
	}

	list, err := t.tasks.List(ctx, filter)
	if err != nil {
		return Errorf("list tasks: %v", err)
	}
	return OKPayload(fmt.Sprintf("Found %d tasks", len(list)),
		map[string]any{"tasks": list, "count": len(list)})
}

func (t *TaskTools) searchTasks(ctx context.Context, args map[string]any) *Result {
	query := strings.TrimSpace(argString(args, "query"))
	if query == "" {
		return Errorf("query is required")
	}
	limit := 10
	if n, ok := argInt(args, "limit"); ok {
		limit = int(n)
	}

	matches, err := t.tasks.Search(ctx, strings.Fields(query), limit)
	if err != nil {
		return Errorf("search tasks: %v", err)
	}
	if p := store.TaskPriority(argString(args, "priority")); p != "" {
		matches = filterTasks(matches, func(m *store.Task) bool { return m.Priority == p })
	}
	if st := store.TaskStatus(argString(args, "status")); st != "" {
		matches = filterTasks(matches, func(m *store.Task) bool { return m.Status == st })
	}

	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	res := OKPayload(fmt.Sprintf("Found %d tasks matching %q", len(matches), query),
		map[string]any{"tasks": matches, "count": len(matches)})
	// Search always drives the UI to the result list, even when empty.
	return res.WithUI(&UICommand{
		Type:          UIChangeView,
		ViewMode:      ViewList,
		SearchResults: ids,
		SearchQuery:   query,
	})
}

func filterTasks(in []*store.Task, keep func(*store.Task) bool) []*store.Task {
	out := in[:0]
	for _, task := range in {
		if keep(task) {
			out = append(out, task)
		}
	}
	return out
}

func (t *TaskTools) taskStats(ctx context.Context, _ map[string]any) *Result {
	stats, err := t.tasks.Stats(ctx)
	if err != nil {
		return Errorf("task stats: %v", err)
	}
	return OKPayload(fmt.Sprintf("%d tasks total, %d open", stats.Total, stats.Todo+stats.InProgress),
		map[string]any{"stats": stats})
}
