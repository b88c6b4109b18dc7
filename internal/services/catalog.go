package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/coastalrc/planetfetch/internal/lib"
	"github.com/coastalrc/planetfetch/internal/models"
)

// Sensor codes embedded in item IDs of test-satellite scenes. Test scenes
// may lack the full range of associated assets, so they are never ordered.
var testSensorCodes = []string{"0f02", "0f06", "0f4c", "1055"}

// CatalogClient queries the data API's quick-search endpoint for the item
// IDs matching a combined filter, and turns the eligible IDs into product
// groups sized for the orders API.
type CatalogClient struct {
	api        models.APIConfig
	search     models.SearchConfig
	creds      *Credentials
	httpClient *HTTPClient
	logger     *lib.Logger
	imageDir   func(site string) string
}

// NewCatalogClient creates a catalog search client. imageDir maps a site
// name to its local download directory, used to skip already-fetched scenes.
func NewCatalogClient(api models.APIConfig, search models.SearchConfig, creds *Credentials, httpClient *HTTPClient, logger *lib.Logger, imageDir func(string) string) *CatalogClient {
	return &CatalogClient{
		api:        api,
		search:     search,
		creds:      creds,
		httpClient: httpClient,
		logger:     logger,
		imageDir:   imageDir,
	}
}

// searchRequest is the quick-search POST payload
type searchRequest struct {
	ItemTypes []string      `json:"item_types"`
	Filter    models.Filter `json:"filter"`
}

// searchFeature is one catalog scene in a quick-search response
type searchFeature struct {
	ID          string   `json:"id"`
	Permissions []string `json:"_permissions"`
}

type searchResponse struct {
	Features []searchFeature `json:"features"`
}

// Search returns the product groups for all eligible scenes matching the
// filter. Returns lib.ErrNoEligibleScenes when nothing is orderable; the
// caller must treat that as a skip, not a failure.
func (c *CatalogClient) Search(filter models.Filter, site string) ([]models.ProductGroup, error) {
	payload, err := json.Marshal(searchRequest{
		ItemTypes: []string{c.search.ItemType},
		Filter:    filter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	resp, err := c.httpClient.PostJSON(c.api.QuickSearchURL, payload, c.creds)
	if err != nil {
		return nil, fmt.Errorf("quick-search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &lib.AuthenticationError{API: "data", StatusCode: resp.StatusCode, Body: string(body)}
		}
		return nil, fmt.Errorf("quick-search rejected: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse quick-search response: %w", err)
	}

	ids := c.eligibleItemIDs(result.Features, site)
	if len(ids) == 0 {
		return nil, lib.ErrNoEligibleScenes
	}

	bundle := c.productBundle()
	groups := make([]models.ProductGroup, 0, 1)
	for _, chunk := range models.ChunkItemIDs(ids, c.search.QueryLimit) {
		groups = append(groups, models.ProductGroup{
			ItemIDs:       chunk,
			ItemType:      c.search.ItemType,
			ProductBundle: bundle,
		})
	}

	c.logger.Info("Catalog search completed",
		"site", site,
		"eligible", len(ids),
		"groups", len(groups))

	return groups, nil
}

// eligibleItemIDs applies the three exclusion passes: test sensors,
// missing asset permissions, and already-downloaded scenes.
func (c *CatalogClient) eligibleItemIDs(features []searchFeature, site string) []string {
	downloaded := c.downloadedFileNames(site)

	ids := make([]string, 0, len(features))
	for _, f := range features {
		if isTestSensor(f.ID) {
			c.logger.Debug("Skipping test-satellite scene", "id", f.ID)
			continue
		}
		if !c.hasRequiredPermissions(f.Permissions) {
			c.logger.Debug("Skipping scene without asset permissions", "id", f.ID)
			continue
		}
		if downloaded != "" && strings.Contains(downloaded, f.ID) {
			c.logger.Debug("Skipping already-downloaded scene", "id", f.ID)
			continue
		}
		ids = append(ids, f.ID)
	}
	return ids
}

// isTestSensor reports whether the item ID carries a test-satellite code
func isTestSensor(id string) bool {
	for _, code := range testSensorCodes {
		if strings.Contains(id, code) {
			return true
		}
	}
	return false
}

// hasRequiredPermissions checks a feature's permission set against the
// required download permissions. Features without permission data pass;
// strict mode requires every permission, otherwise one is enough.
func (c *CatalogClient) hasRequiredPermissions(perms []string) bool {
	if len(c.search.RequiredPermissions) == 0 || len(perms) == 0 {
		return true
	}

	have := make(map[string]bool, len(perms))
	for _, p := range perms {
		have[p] = true
	}

	matched := 0
	for _, required := range c.search.RequiredPermissions {
		if have[required] {
			matched++
		}
	}

	if c.search.StrictPermissions {
		return matched == len(c.search.RequiredPermissions)
	}
	return matched > 0
}

// downloadedFileNames concatenates the site's local download file names so
// item IDs can be checked with a single substring match.
func (c *CatalogClient) downloadedFileNames(site string) string {
	entries, err := os.ReadDir(c.imageDir(site))
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return strings.Join(names, "")
}

// productBundle resolves the bundle type for the configured item type.
// PSScene is not published under the plain analytic bundle.
func (c *CatalogClient) productBundle() string {
	if c.search.ItemType == "PSScene" && c.search.ProductBundle == "analytic" {
		return "analytic_udm2"
	}
	return c.search.ProductBundle
}
