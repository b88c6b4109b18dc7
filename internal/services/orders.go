package services

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/coastalrc/planetfetch/internal/lib"
	"github.com/coastalrc/planetfetch/internal/models"
)

// pruneMarker is the literal substring the orders API embeds in rejection
// bodies when some of the requested assets are not accessible to the
// account. The format is not part of the provider's stable contract, so
// all parsing of it is confined to parseInaccessibleItems.
const pruneMarker = `message":"No access to assets:`

// OrdersClient submits order requests and resolves their status. Permission
// gaps are only discoverable at submission time and are per item, so Submit
// prunes rejected item IDs and resubmits until the request converges on the
// maximal orderable subset.
type OrdersClient struct {
	ordersURL  string
	creds      *Credentials
	httpClient *HTTPClient
	logger     *lib.Logger
}

// NewOrdersClient creates an orders API client
func NewOrdersClient(ordersURL string, creds *Credentials, httpClient *HTTPClient, logger *lib.Logger) *OrdersClient {
	return &OrdersClient{
		ordersURL:  ordersURL,
		creds:      creds,
		httpClient: httpClient,
		logger:     logger,
	}
}

// BuildRequest assembles an order payload for a site: the product groups,
// a clip-to-AOI directive, and TOAR radiometric scaling. Empty product
// groups are dropped; lib.ErrNothingToOrder is returned when no groups
// remain (distinct from an error, callers skip the site).
func BuildRequest(name string, groups []models.ProductGroup, aoi models.Ring, toarScaleFactor int) (models.OrderRequest, error) {
	req := models.OrderRequest{
		Name:     name,
		Products: groups,
		Tools: []any{
			models.NewClipTool(aoi),
			models.NewTOARTool(toarScaleFactor),
		},
	}

	req = req.WithoutEmptyGroups()
	if len(req.Products) == 0 {
		return models.OrderRequest{}, lib.ErrNothingToOrder
	}
	return req, nil
}

// orderCreated is the success response of an order submission
type orderCreated struct {
	ID string `json:"id"`
}

// orderStatus is the orders API's status document
type orderStatus struct {
	State models.OrderState `json:"state"`
	Links struct {
		Results []models.OrderResult `json:"results"`
	} `json:"_links"`
}

// Submit posts an order request and returns the polling URL of the created
// order. A rejection naming inaccessible assets prunes exactly those item
// IDs and resubmits; the loop is capped by the initial item count, which
// guarantees termination because every pass removes at least one item.
// Any other rejection surfaces as a SubmissionError carrying the raw body.
func (c *OrdersClient) Submit(req models.OrderRequest) (string, error) {
	req = req.WithoutEmptyGroups()
	if req.ItemCount() == 0 {
		return "", lib.ErrNothingToOrder
	}

	maxPasses := req.ItemCount()
	for pass := 0; pass <= maxPasses; pass++ {
		payload, err := json.Marshal(req)
		if err != nil {
			return "", fmt.Errorf("failed to marshal order request: %w", err)
		}

		resp, err := c.httpClient.PostJSON(c.ordersURL, payload, c.creds)
		if err != nil {
			return "", fmt.Errorf("order submission failed: %w", err)
		}
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var created orderCreated
			if err := json.Unmarshal(body, &created); err != nil {
				return "", fmt.Errorf("failed to parse order response: %w", err)
			}
			if created.ID == "" {
				return "", fmt.Errorf("order response missing id: %s", string(body))
			}
			orderURL := c.ordersURL + "/" + created.ID
			c.logger.Info("Order placed", "name", req.Name, "items", req.ItemCount(), "url", orderURL)
			return orderURL, nil
		}

		inaccessible := parseInaccessibleItems(string(body))
		if len(inaccessible) == 0 {
			return "", &lib.SubmissionError{StatusCode: resp.StatusCode, Body: string(body)}
		}

		c.logger.Warn("Pruning inaccessible items and resubmitting",
			"name", req.Name,
			"pruned", len(inaccessible),
			"pass", pass+1)

		req = req.WithoutItems(inaccessible)
		if req.ItemCount() == 0 {
			return "", lib.ErrNothingToOrder
		}
	}

	// Unreachable unless the provider keeps naming items we already removed
	return "", &lib.SubmissionError{Body: "submission did not converge after pruning"}
}

// Degrade splits a request into one single-item request per item ID and
// submits each independently, collecting the successful order URLs.
// Individual failures are logged and skipped so one inaccessible scene
// never sinks the rest of the batch.
func (c *OrdersClient) Degrade(req models.OrderRequest) []string {
	var urls []string
	index := 0
	total := req.ItemCount()

	for _, group := range req.Products {
		for _, id := range group.ItemIDs {
			index++
			single := req
			single.Products = []models.ProductGroup{{
				ItemIDs:       []string{id},
				ItemType:      group.ItemType,
				ProductBundle: group.ProductBundle,
			}}

			c.logger.Info("Placing per-item order", "name", req.Name, "item", id, "index", index, "total", total)

			url, err := c.Submit(single)
			if err != nil {
				c.logger.Warn("Per-item order failed, skipping", "item", id, "error", err)
				continue
			}
			urls = append(urls, url)
		}
	}
	return urls
}

// Status fetches the current order status document
func (c *OrdersClient) Status(orderURL string) (*orderStatus, error) {
	resp, err := c.httpClient.Get(orderURL, c.creds)
	if err != nil {
		return nil, fmt.Errorf("order status request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("order status rejected: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var status orderStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to parse order status: %w", err)
	}
	return &status, nil
}

// Results fetches the downloadable result manifest of a completed order
func (c *OrdersClient) Results(orderURL string) ([]models.OrderResult, error) {
	status, err := c.Status(orderURL)
	if err != nil {
		return nil, err
	}
	return status.Links.Results, nil
}

// parseInaccessibleItems extracts the item IDs named by a "No access to
// assets" rejection body. The provider lists each denied asset as
// <item_type>/<item_id>/<asset_type> after the marker text; fragments
// mentioning "Details" are trailer text, not assets. This is a deliberate
// narrow match against the provider's literal error format: if the format
// changes, this function is the only place to touch.
func parseInaccessibleItems(body string) []string {
	if !strings.Contains(body, pruneMarker) {
		return nil
	}

	var ids []string
	seen := make(map[string]bool)
	fragments := strings.Split(body, pruneMarker)
	for _, fragment := range fragments[1:] {
		if strings.Contains(fragment, "Details") || !strings.Contains(fragment, "/") {
			continue
		}
		parts := strings.Split(fragment, "/")
		id := trimItemID(parts[1])
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// trimItemID cuts an ID candidate at the first character that cannot
// appear in an item identifier, dropping any trailing JSON punctuation.
func trimItemID(s string) string {
	for i, r := range s {
		isIDChar := r == '_' || r == '-' ||
			(r >= '0' && r <= '9') ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z')
		if !isIDChar {
			return s[:i]
		}
	}
	return s
}
