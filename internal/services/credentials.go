package services

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/coastalrc/planetfetch/internal/lib"
)

// Credentials holds the provider API key. The provider uses HTTP Basic
// authentication with the key as username and an empty password.
type Credentials struct {
	APIKey string
}

// Apply sets the basic auth header on a request. A nil receiver is a no-op
// so unauthenticated fetches (pre-signed result locations) share the same
// call sites.
func (c *Credentials) Apply(req *http.Request) {
	if c == nil || c.APIKey == "" {
		return
	}
	req.SetBasicAuth(c.APIKey, "")
}

// LoadAPIKey reads the API key from a plain-text file, trimming any
// surrounding whitespace.
func LoadAPIKey(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read API key file %s: %w", path, err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return nil, fmt.Errorf("API key file %s is empty", path)
	}

	return &Credentials{APIKey: key}, nil
}

// VerifyAuth checks the credentials against both the data and orders APIs
// before any work starts. A rejection on either is fatal for the run.
func VerifyAuth(httpClient *HTTPClient, creds *Credentials, dataURL, ordersURL string, logger *lib.Logger) error {
	for _, api := range []struct {
		name string
		url  string
	}{
		{"data", dataURL},
		{"orders", ordersURL},
	} {
		resp, err := httpClient.Get(api.url, creds)
		if err != nil {
			return fmt.Errorf("%s API unreachable: %w", api.name, err)
		}
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &lib.AuthenticationError{
				API:        api.name,
				StatusCode: resp.StatusCode,
				Body:       string(body),
			}
		}
		logger.Debug("API credential check passed", "api", api.name, "status", resp.StatusCode)
	}

	logger.Info("Data and orders API authentication successful")
	return nil
}
