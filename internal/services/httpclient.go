package services

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coastalrc/planetfetch/internal/lib"
	"github.com/coastalrc/planetfetch/internal/models"
)

// HTTPClient wraps the standard http.Client with retry logic and configuration
type HTTPClient struct {
	client      *http.Client
	retryConfig lib.RetryConfig
	logger      *lib.Logger
}

// NewHTTPClient creates an HTTP client with timeout and retry configuration
func NewHTTPClient(timeout time.Duration, retryConfig models.RetryConfig, logger *lib.Logger) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		retryConfig: lib.NewRetryConfigFromModel(retryConfig),
		logger:      logger,
	}
}

// DefaultHTTPClient creates an HTTP client with sensible defaults
func DefaultHTTPClient() *HTTPClient {
	return NewHTTPClient(
		60*time.Second,
		models.RetryConfig{
			MaxAttempts:  3,
			DelaySeconds: 5,
		},
		lib.DefaultLogger,
	)
}

// Get performs an HTTP GET request with retry logic
func (c *HTTPClient) Get(url string, creds *Credentials) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	creds.Apply(req)

	return c.Do(req)
}

// PostJSON performs an HTTP POST request with a JSON body and retry logic
func (c *HTTPClient) PostJSON(url string, jsonBody []byte, creds *Credentials) (*http.Response, error) {
	req, err := http.NewRequest("POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	creds.Apply(req)

	return c.Do(req)
}

// Do executes an HTTP request, retrying transient failures with a fixed
// delay. Non-transient HTTP statuses are returned to the caller so it can
// read the error body; only 5xx/timeout statuses and network errors retry.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt < c.retryConfig.MaxAttempts; attempt++ {
		// Clone request body if needed (body can only be read once)
		var bodyBytes []byte
		if req.Body != nil {
			bodyBytes, _ = io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		startTime := time.Now()
		resp, lastErr = c.client.Do(req)
		duration := time.Since(startTime)

		lib.LogServiceCall(c.logger, req.URL.Host, req.URL.Path, req.Method)

		if lastErr == nil {
			lib.LogServiceResponse(c.logger, req.URL.Host, resp.StatusCode, duration)

			if resp.StatusCode >= 400 {
				errorType := lib.ClassifyHTTPError(resp.StatusCode)

				// Non-transient: hand the response to the caller for the
				// error body (the prune workflow depends on reading it)
				if errorType == models.ErrorTypeNonTransient {
					return resp, nil
				}

				if lib.ShouldRetry(errorType, attempt, c.retryConfig.MaxAttempts) {
					statusErr := fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
					lib.LogRetry(c.logger, req.URL.String(), attempt, c.retryConfig.MaxAttempts, statusErr)
					lastErr = statusErr

					_ = resp.Body.Close()

					if attempt < c.retryConfig.MaxAttempts-1 {
						time.Sleep(c.retryConfig.Delay)
					}
					if bodyBytes != nil {
						req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
					}
					continue
				}
			}

			return resp, nil
		}

		// Network error occurred
		if lib.IsNetworkError(lastErr) {
			if lib.ShouldRetry(models.ErrorTypeTransient, attempt, c.retryConfig.MaxAttempts) {
				lib.LogRetry(c.logger, req.URL.String(), attempt, c.retryConfig.MaxAttempts, lastErr)

				if attempt < c.retryConfig.MaxAttempts-1 {
					time.Sleep(c.retryConfig.Delay)
				}
				if bodyBytes != nil {
					req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
				}
				continue
			}
		}

		return nil, lastErr
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retryConfig.MaxAttempts, lastErr)
}

// Download fetches url (following redirects) and writes the full response
// body to writer. Returns the number of bytes written.
func (c *HTTPClient) Download(url string, creds *Credentials, writer io.Writer) (int64, error) {
	resp, err := c.Get(url, creds)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	bytesWritten, err := io.Copy(writer, resp.Body)
	if err != nil {
		return bytesWritten, fmt.Errorf("failed to download: %w", err)
	}

	return bytesWritten, nil
}
