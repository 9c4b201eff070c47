package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseWhenDateOnlyDefaultsToNoon(t *testing.T) {
	when, err := parseWhen("2026-03-15")
	require.NoError(t, err)
	require.Equal(t, 12, when.Hour())
	require.Equal(t, 0, when.Minute())
	require.Equal(t, time.March, when.Month())
	require.Equal(t, 15, when.Day())
}

func TestParseWhenFullTimestamp(t *testing.T) {
	when, err := parseWhen("2026-03-15T09:30:00")
	require.NoError(t, err)
	require.Equal(t, 9, when.Hour())
	require.Equal(t, 30, when.Minute())

	when, err = parseWhen("2026-03-15T09:30:00Z")
	require.NoError(t, err)
	require.Equal(t, time.UTC, when.Location())
}

func TestParseWhenRejectsGarbage(t *testing.T) {
	_, err := parseWhen("next friday")
	require.Error(t, err)
}

func TestParseDeadlineTomorrowKeepsWallClock(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 45, 30, 0, time.Local)

	when, err := parseDeadline("2026-03-11", now)
	require.NoError(t, err)
	require.Equal(t, 11, when.Day())
	require.Equal(t, 14, when.Hour())
	require.Equal(t, 45, when.Minute())

	// A midnight timestamp counts as date-only.
	when, err = parseDeadline("2026-03-11T00:00:00", now)
	require.NoError(t, err)
	require.Equal(t, 14, when.Hour())
}

func TestParseDeadlineOtherDatesDefaultToNoon(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 45, 30, 0, time.Local)

	when, err := parseDeadline("2026-03-20", now)
	require.NoError(t, err)
	require.Equal(t, 12, when.Hour())
	require.Equal(t, 0, when.Minute())

	// Today is not tomorrow; noon applies.
	when, err = parseDeadline("2026-03-10", now)
	require.NoError(t, err)
	require.Equal(t, 12, when.Hour())
}

func TestParseDeadlineExplicitTimePassesThrough(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 45, 30, 0, time.Local)

	when, err := parseDeadline("2026-03-11T09:30:00", now)
	require.NoError(t, err)
	require.Equal(t, 9, when.Hour())
	require.Equal(t, 30, when.Minute())

	_, err = parseDeadline("whenever", now)
	require.Error(t, err)
}
