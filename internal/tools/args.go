package tools

import (
	"fmt"
	"time"
)

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func argInt(args map[string]any, key string) (int64, bool) {
	switch v := args[key].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func argInt64Slice(args map[string]any, key string) []int64 {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(raw))
	for _, e := range raw {
		if f, ok := e.(float64); ok {
			out = append(out, int64(f))
		}
	}
	return out
}

func argStringSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseWhen parses a model-supplied timestamp. Full timestamps pass through;
// date-only values default to noon local time so voice phrases like "by
// Friday" land mid-day instead of midnight.
func parseWhen(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.Local), nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// parseDeadline parses like parseWhen with one voice-driven exception: a
// date-only deadline landing on tomorrow keeps the current wall-clock time,
// so "by tomorrow" means a full day from now rather than tomorrow noon. A
// timestamp at exactly midnight counts as date-only.
func parseDeadline(s string, now time.Time) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
				return deadlineTimeOfDay(t, now), nil
			}
			return t, nil
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return deadlineTimeOfDay(t, now), nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func deadlineTimeOfDay(day, now time.Time) time.Time {
	tomorrow := now.AddDate(0, 0, 1)
	if day.Year() == tomorrow.Year() && day.YearDay() == tomorrow.YearDay() {
		return time.Date(day.Year(), day.Month(), day.Day(),
			now.Hour(), now.Minute(), now.Second(), 0, day.Location())
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, day.Location())
}
