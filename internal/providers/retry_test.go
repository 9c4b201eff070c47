package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

// TestRetryDoRetriesServerErrors verifies 5xx responses are retried until
// the attempt budget runs out.
func TestRetryDoRetriesServerErrors(t *testing.T) {
	calls := 0
	v, err := RetryDo(context.Background(), fastRetry(3), func() (string, error) {
		calls++
		if calls < 3 {
			return "", &HTTPError{Status: 503, Body: "overloaded"}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, 3, calls)
}

// TestRetryDoStopsOnClientError verifies 4xx responses (other than 429)
// fail immediately.
func TestRetryDoStopsOnClientError(t *testing.T) {
	calls := 0
	_, err := RetryDo(context.Background(), fastRetry(3), func() (string, error) {
		calls++
		return "", &HTTPError{Status: 400, Body: "bad request"}
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryDoRetriesRateLimit(t *testing.T) {
	calls := 0
	_, err := RetryDo(context.Background(), fastRetry(2), func() (string, error) {
		calls++
		return "", &HTTPError{Status: 429, Body: "rate limited"}
	})
	require.Error(t, err)
	require.Equal(t, 2, calls)
}

func TestRetryDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := RetryDo(ctx, fastRetry(3), func() (string, error) {
		calls++
		return "", &HTTPError{Status: 500, Body: "boom"}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestParseRetryAfter(t *testing.T) {
	require.Equal(t, 3*time.Second, ParseRetryAfter("3"))
	require.Equal(t, time.Duration(0), ParseRetryAfter(""))
	require.Equal(t, time.Duration(0), ParseRetryAfter("soon"))
	require.Equal(t, time.Duration(0), ParseRetryAfter("-1"))
}
