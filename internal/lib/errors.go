package lib

import (
	"errors"
	"fmt"
)

// ErrNoEligibleScenes signals that a search matched zero orderable scenes.
// Callers treat this as "skip the site", never as a failure.
var ErrNoEligibleScenes = errors.New("no eligible scenes for this query")

// ErrNothingToOrder signals that an order request contained no item IDs
// after empty groups and inaccessible items were pruned away.
var ErrNothingToOrder = errors.New("order request contains no items")

// AuthenticationError means the provider rejected our API key. It is fatal
// for the whole run: nothing can proceed without valid credentials.
type AuthenticationError struct {
	API        string // "data" or "orders"
	StatusCode int
	Body       string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for %s API: HTTP %d: %s", e.API, e.StatusCode, e.Body)
}

// SubmissionError means an order was rejected for a reason other than the
// prunable "no access to assets" case. The raw response body is kept for
// diagnosis; the per-site retry loop consumes one retry on it.
type SubmissionError struct {
	StatusCode int
	Body       string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("order submission rejected: HTTP %d: %s", e.StatusCode, e.Body)
}

// OrderFailedError means the provider reported the terminal "failed" state
// for an order.
type OrderFailedError struct {
	OrderURL string
	Body     string
}

func (e *OrderFailedError) Error() string {
	return fmt.Sprintf("order %s reached failed state: %s", e.OrderURL, e.Body)
}

// PendingTimeoutError means the polling iteration budget was exhausted while
// the order was still in a non-terminal state. It is distinct from failure:
// the caller may resume polling the same order URL.
type PendingTimeoutError struct {
	OrderURL  string
	LastState string
	Polls     int
}

func (e *PendingTimeoutError) Error() string {
	return fmt.Sprintf("order %s still %q after %d polls", e.OrderURL, e.LastState, e.Polls)
}

// DownloadError wraps a single file transfer failure. The downloader logs
// these and continues with the remaining files of the same order.
type DownloadError struct {
	Name     string
	Location string
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download of %s failed: %v", e.Name, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether an error must abort the whole multi-site run
// instead of merely failing one site.
func IsFatal(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}
