package lib

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coastalrc/planetfetch/internal/models"
)

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(models.ErrorTypeTransient, 0, 3))
	assert.True(t, ShouldRetry(models.ErrorTypeTransient, 2, 3))
	assert.False(t, ShouldRetry(models.ErrorTypeTransient, 3, 3))
	assert.False(t, ShouldRetry(models.ErrorTypeNonTransient, 0, 3))
}

func TestClassifyHTTPError(t *testing.T) {
	assert.Equal(t, models.ErrorTypeTransient, ClassifyHTTPError(500))
	assert.Equal(t, models.ErrorTypeTransient, ClassifyHTTPError(503))
	assert.Equal(t, models.ErrorTypeTransient, ClassifyHTTPError(429))
	assert.Equal(t, models.ErrorTypeTransient, ClassifyHTTPError(408))
	assert.Equal(t, models.ErrorTypeNonTransient, ClassifyHTTPError(400))
	assert.Equal(t, models.ErrorTypeNonTransient, ClassifyHTTPError(401))
	assert.Equal(t, models.ErrorTypeNonTransient, ClassifyHTTPError(404))
}

// TestExecuteWithRetry validates the fixed-delay retry loop
func TestExecuteWithRetry(t *testing.T) {
	retryAll := func(error) bool { return true }

	t.Run("success on first attempt", func(t *testing.T) {
		calls := 0
		err := ExecuteWithRetry(func() error {
			calls++
			return nil
		}, RetryConfig{MaxAttempts: 3, Delay: 0}, retryAll)

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("success after transient failures", func(t *testing.T) {
		calls := 0
		err := ExecuteWithRetry(func() error {
			calls++
			if calls < 3 {
				return fmt.Errorf("boom %d", calls)
			}
			return nil
		}, RetryConfig{MaxAttempts: 3, Delay: 0}, retryAll)

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhaustion returns last error", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := ExecuteWithRetry(func() error {
			calls++
			return boom
		}, RetryConfig{MaxAttempts: 3, Delay: 0}, retryAll)

		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "after 3 attempts")
	})

	t.Run("non-retryable error stops immediately", func(t *testing.T) {
		calls := 0
		fatal := errors.New("credentials rejected")
		err := ExecuteWithRetry(func() error {
			calls++
			return fatal
		}, RetryConfig{MaxAttempts: 3, Delay: 0}, func(error) bool { return false })

		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.ErrorIs(t, err, fatal)
	})

	t.Run("fixed delay between attempts", func(t *testing.T) {
		start := time.Now()
		_ = ExecuteWithRetry(func() error {
			return errors.New("boom")
		}, RetryConfig{MaxAttempts: 3, Delay: 10 * time.Millisecond}, retryAll)

		// Two waits between three attempts, none after the last
		elapsed := time.Since(start)
		assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
		assert.Less(t, elapsed, 100*time.Millisecond)
	})
}

func TestNewRetryConfigFromModel(t *testing.T) {
	config := NewRetryConfigFromModel(models.RetryConfig{MaxAttempts: 3, DelaySeconds: 30})
	assert.Equal(t, 3, config.MaxAttempts)
	assert.Equal(t, 30*time.Second, config.Delay)
}

func TestIsNetworkError(t *testing.T) {
	assert.True(t, IsNetworkError(errors.New("dial tcp: connection refused")))
	assert.True(t, IsNetworkError(errors.New("context deadline exceeded")))
	assert.True(t, IsNetworkError(errors.New("unexpected EOF")))
	assert.False(t, IsNetworkError(errors.New("order submission rejected")))
	assert.False(t, IsNetworkError(nil))
}
