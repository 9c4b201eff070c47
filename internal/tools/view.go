package tools

import (
	"context"
	"fmt"
)

// RegisterViewTools adds the pure UI-command tools. Neither touches the
// task store.
func RegisterViewTools(reg *Registry) error {
	tools := []Tool{
		{
			Name:        "change_ui_view",
			Description: "Switch the client calendar or list view. Use whenever the user asks to see tasks for a period.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"view_mode": map[string]any{
						"type": "string",
						"enum": []any{ViewDaily, ViewWeekly, ViewMonthly, ViewList},
					},
					"target_date":     map[string]any{"type": "string", "description": "ISO date to navigate to"},
					"sort_by":         map[string]any{"type": "string"},
					"sort_order":      map[string]any{"type": "string", "enum": []any{"asc", "desc"}},
					"filter_status":   map[string]any{"type": "string", "enum": statusEnum},
					"filter_priority": map[string]any{"type": "string", "enum": priorityEnum},
				},
				"required":             []any{"view_mode"},
				"additionalProperties": false,
			},
			Handler: changeUIView,
		},
		{
			Name:        "show_choices",
			Description: "Show the user a list of options to choose from by voice, e.g. when several tasks match.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{"type": "string"},
					"choices": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"id":          map[string]any{"type": "string"},
								"label":       map[string]any{"type": "string"},
								"description": map[string]any{"type": "string"},
								"value":       map[string]any{"type": "string"},
							},
							"required": []any{"id", "label"},
						},
						"minItems": 1,
					},
				},
				"required":             []any{"title", "choices"},
				"additionalProperties": false,
			},
			Handler: showChoices,
		},
	}

	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func changeUIView(_ context.Context, args map[string]any) *Result {
	cmd := &UICommand{
		Type:           UIChangeView,
		ViewMode:       argString(args, "view_mode"),
		TargetDate:     argString(args, "target_date"),
		SortBy:         argString(args, "sort_by"),
		SortOrder:      argString(args, "sort_order"),
		FilterStatus:   argString(args, "filter_status"),
		FilterPriority: argString(args, "filter_priority"),
	}
	if err := cmd.Validate(); err != nil {
		return Errorf("%v", err)
	}
	return OK(fmt.Sprintf("Switched to %s view", cmd.ViewMode)).WithUI(cmd)
}

func showChoices(_ context.Context, args map[string]any) *Result {
	cmd := &UICommand{
		Type:  UIShowChoices,
		Title: argString(args, "title"),
	}
	raw, _ := args["choices"].([]any)
	for _, e := range raw {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		cmd.Choices = append(cmd.Choices, Choice{
			ID:          argString(m, "id"),
			Label:       argString(m, "label"),
			Description: argString(m, "description"),
			Value:       argString(m, "value"),
		})
	}
	if err := cmd.Validate(); err != nil {
		return Errorf("%v", err)
	}
	return OK(fmt.Sprintf("Showing %d choices", len(cmd.Choices))).WithUI(cmd)
}
