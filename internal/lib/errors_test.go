package lib

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIsFatal validates that only credential rejection aborts a whole run
func TestIsFatal(t *testing.T) {
	authErr := &AuthenticationError{API: "data", StatusCode: 401, Body: "unauthorized"}

	assert.True(t, IsFatal(authErr))
	assert.True(t, IsFatal(fmt.Errorf("preflight: %w", authErr)))

	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(ErrNoEligibleScenes))
	assert.False(t, IsFatal(&SubmissionError{StatusCode: 400, Body: "bad request"}))
	assert.False(t, IsFatal(&OrderFailedError{OrderURL: "https://example.com/orders/1"}))
	assert.False(t, IsFatal(&PendingTimeoutError{OrderURL: "https://example.com/orders/1", LastState: "running", Polls: 200}))
}

func TestDownloadErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &DownloadError{Name: "scene.tif", Location: "https://example.com/scene.tif", Err: cause}

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "scene.tif")
}

func TestSentinelErrors(t *testing.T) {
	wrapped := fmt.Errorf("site waikiki: %w", ErrNoEligibleScenes)
	assert.ErrorIs(t, wrapped, ErrNoEligibleScenes)
	assert.NotErrorIs(t, wrapped, ErrNothingToOrder)
}
