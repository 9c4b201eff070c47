package tools

import "fmt"

// UI command types form a closed union. Unknown types are rejected at the
// dispatcher, not at the client.
const (
	UIChangeView  = "change_view"
	UIShowChoices = "show_choices"
)

// View modes for change_view.
const (
	ViewDaily   = "daily"
	ViewWeekly  = "weekly"
	ViewMonthly = "monthly"
	ViewList    = "list"
)

// UICommand is a structured directive forwarded verbatim to the client.
type UICommand struct {
	Type string `json:"type"`

	// change_view fields.
	ViewMode       string  `json:"view_mode,omitempty"`
	TargetDate     string  `json:"target_date,omitempty"` // ISO date
	SortBy         string  `json:"sort_by,omitempty"`
	SortOrder      string  `json:"sort_order,omitempty"`
	FilterStatus   string  `json:"filter_status,omitempty"`
	FilterPriority string  `json:"filter_priority,omitempty"`
	SearchResults  []int64 `json:"search_results,omitempty"`
	SearchQuery    string  `json:"search_query,omitempty"`

	// show_choices fields.
	Title   string   `json:"title,omitempty"`
	Choices []Choice `json:"choices,omitempty"`
}

// Choice is one entry in a show_choices modal.
type Choice struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value,omitempty"`
}

// ValidViewMode reports whether m is in the closed view-mode set.
func ValidViewMode(m string) bool {
	switch m {
	case ViewDaily, ViewWeekly, ViewMonthly, ViewList:
		return true
	}
	return false
}

// Validate rejects commands outside the closed union.
func (c *UICommand) Validate() error {
	switch c.Type {
	case UIChangeView:
		if !ValidViewMode(c.ViewMode) {
			return fmt.Errorf("invalid view_mode %q", c.ViewMode)
		}
		return nil
	case UIShowChoices:
		if len(c.Choices) == 0 {
			return fmt.Errorf("show_choices requires at least one choice")
		}
		return nil
	default:
		return fmt.Errorf("unknown ui_command type %q", c.Type)
	}
}
