package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSystemPromptDates(t *testing.T) {
	now := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)
	prompt := systemPrompt(now)

	require.Contains(t, prompt, "Monday, August 24, 2026 at 09:30 UTC")
	require.Contains(t, prompt, "tomorrow = 2026-08-25")
	require.Contains(t, prompt, "next week = 2026-08-31")
}

func TestSystemPromptNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	// Local 02:00 on the 25th is still the 24th in UTC.
	prompt := systemPrompt(time.Date(2026, 8, 25, 2, 0, 0, 0, loc))
	require.Contains(t, prompt, "August 24, 2026")
	require.True(t, strings.Contains(prompt, "tomorrow = 2026-08-25"))
}
