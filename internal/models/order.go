package models

// ProductGroup is one batch of catalog item IDs ordered together. Groups
// are value objects: pruning derives a new group rather than mutating an
// existing one, so requests never alias each other's item lists.
type ProductGroup struct {
	ItemIDs       []string `json:"item_ids"`
	ItemType      string   `json:"item_type"`
	ProductBundle string   `json:"product_bundle"`
}

// WithoutItems returns a copy of the group with the given item IDs removed,
// preserving the order of the remaining IDs.
func (g ProductGroup) WithoutItems(remove map[string]bool) ProductGroup {
	kept := make([]string, 0, len(g.ItemIDs))
	for _, id := range g.ItemIDs {
		if !remove[id] {
			kept = append(kept, id)
		}
	}
	out := g
	out.ItemIDs = kept
	return out
}

// ClipTool asks the provider to clip each scene to the AOI polygon
type ClipTool struct {
	Clip struct {
		AOI PolygonConfig `json:"aoi"`
	} `json:"clip"`
}

// TOARTool asks the provider to scale imagery to top-of-atmosphere
// reflectance during processing.
type TOARTool struct {
	TOAR struct {
		ScaleFactor int `json:"scale_factor"`
	} `json:"toar"`
}

// NewClipTool builds the clip directive for a closed AOI ring
func NewClipTool(ring Ring) ClipTool {
	var t ClipTool
	t.Clip.AOI = PolygonConfig{
		Type:        "Polygon",
		Coordinates: []Ring{ring.Close()},
	}
	return t
}

// NewTOARTool builds the radiometric scaling directive
func NewTOARTool(scaleFactor int) TOARTool {
	var t TOARTool
	t.TOAR.ScaleFactor = scaleFactor
	return t
}

// OrderRequest is one order submission payload: a name, the product groups
// to prepare, and the processing tool directives applied to every scene.
type OrderRequest struct {
	Name     string         `json:"name"`
	Products []ProductGroup `json:"products"`
	Tools    []any          `json:"tools"`
}

// ItemCount returns the total number of item IDs across all groups
func (r OrderRequest) ItemCount() int {
	n := 0
	for _, g := range r.Products {
		n += len(g.ItemIDs)
	}
	return n
}

// WithoutEmptyGroups returns a copy of the request with zero-item product
// groups dropped.
func (r OrderRequest) WithoutEmptyGroups() OrderRequest {
	kept := make([]ProductGroup, 0, len(r.Products))
	for _, g := range r.Products {
		if len(g.ItemIDs) > 0 {
			kept = append(kept, g)
		}
	}
	out := r
	out.Products = kept
	return out
}

// WithoutItems returns a copy of the request with the given item IDs
// removed from every group and any emptied group dropped.
func (r OrderRequest) WithoutItems(ids []string) OrderRequest {
	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	pruned := make([]ProductGroup, 0, len(r.Products))
	for _, g := range r.Products {
		pruned = append(pruned, g.WithoutItems(remove))
	}
	out := r
	out.Products = pruned
	return out.WithoutEmptyGroups()
}

// OrderState is the provider-side lifecycle state of an order
type OrderState string

const (
	OrderStateQueued  OrderState = "queued"
	OrderStateRunning OrderState = "running"
	OrderStateSuccess OrderState = "success"
	OrderStatePartial OrderState = "partial"
	OrderStateFailed  OrderState = "failed"
)

// IsTerminal reports whether the state ends polling
func (s OrderState) IsTerminal() bool {
	switch s {
	case OrderStateSuccess, OrderStatePartial, OrderStateFailed:
		return true
	default:
		return false
	}
}

// Downloadable reports whether a terminal state has result files to fetch.
// Partial orders still carry the subset of scenes that processed cleanly.
func (s OrderState) Downloadable() bool {
	return s == OrderStateSuccess || s == OrderStatePartial
}

// OrderResult is one downloadable file referenced by a completed order
type OrderResult struct {
	Location string `json:"location"`
	Name     string `json:"name"`
}

// ErrorType classifies errors for retry strategy
type ErrorType string

const (
	ErrorTypeTransient    ErrorType = "transient"     // Network, 5xx, timeout - automatic retry
	ErrorTypeNonTransient ErrorType = "non_transient" // 4xx, validation, malformed - manual intervention
)

// IsTransientHTTPStatus classifies HTTP status codes for retry logic
func IsTransientHTTPStatus(status int) bool {
	// 5xx server errors are transient (service might recover)
	if status >= 500 && status < 600 {
		return true
	}
	// 408 Request Timeout, 429 Too Many Requests are transient
	if status == 408 || status == 429 {
		return true
	}
	return false
}

// ChunkItemIDs partitions ids into ceil(len/limit) near-equal chunks, each
// of size ceil(len/nChunks) or less. Order is preserved and the union of
// the chunks is exactly the input. A list within the limit comes back as a
// single chunk.
func ChunkItemIDs(ids []string, limit int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	if limit <= 0 || len(ids) <= limit {
		return [][]string{ids}
	}

	nChunks := (len(ids) + limit - 1) / limit
	size := (len(ids) + nChunks - 1) / nChunks

	chunks := make([][]string, 0, nChunks)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
