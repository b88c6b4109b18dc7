package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coastalrc/planetfetch/internal/lib"
	"github.com/coastalrc/planetfetch/internal/models"
	"github.com/coastalrc/planetfetch/internal/ui"
)

// Poller repeatedly queries an order's status URL until the order reaches
// a terminal state. The interval is fixed: rate-limit responses (HTTP 429)
// do not grow it, they just cost one iteration of the budget. Exponential
// backoff is intentionally absent here.
type Poller struct {
	config     models.PollConfig
	creds      *Credentials
	httpClient *HTTPClient
	logger     *lib.Logger
}

// NewPoller creates an order status poller
func NewPoller(config models.PollConfig, creds *Credentials, httpClient *HTTPClient, logger *lib.Logger) *Poller {
	return &Poller{
		config:     config,
		creds:      creds,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Wait blocks until the order reaches a terminal state and returns it.
// "success" and "partial" are both returned for the caller to proceed to
// download; "failed" becomes an OrderFailedError. Rate limiting (429)
// costs one iteration and continues; a credential rejection is a fatal
// AuthenticationError and any other non-OK status surfaces immediately.
// When the iteration budget (MaxPolls > 0) runs out first, the distinct
// PendingTimeoutError lets the caller resume polling the same URL rather
// than treating the order as lost.
func (p *Poller) Wait(orderURL string, showProgress bool) (models.OrderState, error) {
	interval := time.Duration(p.config.IntervalSeconds) * time.Second
	lastState := ""
	polls := 0

	var spinner *ui.Spinner
	if showProgress {
		spinner = ui.NewSpinner(fmt.Sprintf("Waiting for order %s", orderURL))
		spinner.Start()
		defer func() {
			if spinner != nil {
				spinner.Stop(true)
			}
		}()
	}

	for {
		if p.config.MaxPolls > 0 && polls >= p.config.MaxPolls {
			p.logger.Warn("Polling budget exhausted",
				"url", orderURL,
				"polls", polls,
				"last_state", lastState)
			return "", &lib.PendingTimeoutError{OrderURL: orderURL, LastState: lastState, Polls: polls}
		}
		polls++

		req, err := http.NewRequest("GET", orderURL, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create poll request: %w", err)
		}
		p.creds.Apply(req)

		resp, err := p.httpClient.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("order poll failed: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			p.logger.Debug("Rate limited while polling, continuing", "url", orderURL, "poll", polls)
			time.Sleep(interval)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", &lib.AuthenticationError{API: "orders", StatusCode: resp.StatusCode, Body: string(body)}
		}
		if resp.StatusCode != http.StatusOK {
			// A dead or rejected order URL will not come back; burning the
			// poll budget on it only hides the failure
			return "", fmt.Errorf("order poll rejected: HTTP %d: %s", resp.StatusCode, string(body))
		}

		var status orderStatus
		if err := json.Unmarshal(body, &status); err != nil {
			// Malformed 200 body is a protocol mismatch, not a transient
			// condition: surface it immediately
			return "", fmt.Errorf("failed to parse order status: %w", err)
		}

		lastState = string(status.State)
		p.logger.Debug("Order state", "url", orderURL, "state", lastState, "poll", polls)

		switch {
		case status.State == models.OrderStateFailed:
			if spinner != nil {
				spinner.Stop(false)
				spinner = nil
			}
			return status.State, &lib.OrderFailedError{OrderURL: orderURL, Body: string(body)}
		case status.State.Downloadable():
			p.logger.Info("Order reached terminal state", "url", orderURL, "state", lastState, "polls", polls)
			return status.State, nil
		}

		time.Sleep(interval)
	}
}
