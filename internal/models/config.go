package models

import (
	"fmt"
	"net/url"
	"path/filepath"
)

// ProjectConfig is the top-level configuration for planetfetch. Endpoint
// URLs live here rather than in package-level constants so every component
// receives them explicitly at construction.
type ProjectConfig struct {
	API      APIConfig      `yaml:"api" json:"api"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Poll     PollConfig     `yaml:"poll" json:"poll"`
	Download DownloadConfig `yaml:"download" json:"download"`
	Retry    RetryConfig    `yaml:"retry" json:"retry"`
	Fetch    FetchConfig    `yaml:"fetch" json:"fetch"`
	DataDir  string         `yaml:"data_dir" json:"data_dir"`
}

// APIConfig contains provider endpoints and credential settings
type APIConfig struct {
	DataURL               string `yaml:"data_url" json:"data_url"`
	QuickSearchURL        string `yaml:"quick_search_url" json:"quick_search_url"`
	OrdersURL             string `yaml:"orders_url" json:"orders_url"`
	KeyFile               string `yaml:"key_file" json:"key_file"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`
}

// SearchConfig controls catalog search and eligibility filtering
type SearchConfig struct {
	ItemType      string  `yaml:"item_type" json:"item_type"`
	ProductBundle string  `yaml:"product_bundle" json:"product_bundle"`
	CloudCeiling  float64 `yaml:"cloud_ceiling" json:"cloud_ceiling"`
	QueryLimit    int     `yaml:"query_limit" json:"query_limit"` // max item IDs per order
	MaxRangeDays  int     `yaml:"max_range_days" json:"max_range_days"`
	// RequiredPermissions lists the asset download permissions a scene must
	// carry to be orderable. StrictPermissions drops scenes missing any of
	// them; when false, scenes are kept as long as permission data is absent
	// or at least one required permission is present.
	RequiredPermissions []string `yaml:"required_permissions" json:"required_permissions"`
	StrictPermissions   bool     `yaml:"strict_permissions" json:"strict_permissions"`
}

// PollConfig controls order status polling
type PollConfig struct {
	IntervalSeconds int `yaml:"interval_seconds" json:"interval_seconds"`
	MaxPolls        int `yaml:"max_polls" json:"max_polls"` // 0 = poll forever
}

// DownloadConfig controls result file persistence
type DownloadConfig struct {
	// Extensions is the allow-list of file extensions persisted to disk.
	// Empty means keep everything except manifests.
	Extensions []string `yaml:"extensions" json:"extensions"`
	Overwrite  bool     `yaml:"overwrite" json:"overwrite"`
}

// RetryConfig controls the per-site poll+download retry loop
type RetryConfig struct {
	MaxAttempts  int `yaml:"max_attempts" json:"max_attempts"`
	DelaySeconds int `yaml:"delay_seconds" json:"delay_seconds"`
}

// FetchConfig controls multi-site scheduling
type FetchConfig struct {
	Concurrent         bool `yaml:"concurrent" json:"concurrent"`
	StaggerSeconds     int  `yaml:"stagger_seconds" json:"stagger_seconds"` // delay between order submissions
	MaxConcurrentSites int  `yaml:"max_concurrent_sites" json:"max_concurrent_sites"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() ProjectConfig {
	return ProjectConfig{
		API: APIConfig{
			DataURL:               "https://api.planet.com/data/v1",
			QuickSearchURL:        "https://api.planet.com/data/v1/quick-search",
			OrdersURL:             "https://api.planet.com/compute/ops/orders/v2",
			KeyFile:               "",
			RequestTimeoutSeconds: 60,
		},
		Search: SearchConfig{
			ItemType:      "PSScene",
			ProductBundle: "analytic",
			CloudCeiling:  0.1,
			QueryLimit:    500,
			MaxRangeDays:  200,
			RequiredPermissions: []string{
				"assets.ortho_analytic_4b_sr:download",
				"assets.ortho_udm2:download",
			},
			StrictPermissions: true,
		},
		Poll: PollConfig{
			IntervalSeconds: 10,
			MaxPolls:        200,
		},
		Download: DownloadConfig{
			Extensions: []string{".tif", ".json", ".xml"},
			Overwrite:  false,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			DelaySeconds: 30,
		},
		Fetch: FetchConfig{
			Concurrent:         false,
			StaggerSeconds:     60,
			MaxConcurrentSites: 0,
		},
		DataDir: "./data",
	}
}

// Validate checks the configuration for required fields and sane values
func (c *ProjectConfig) Validate() error {
	for name, raw := range map[string]string{
		"api.data_url":         c.API.DataURL,
		"api.quick_search_url": c.API.QuickSearchURL,
		"api.orders_url":       c.API.OrdersURL,
	} {
		if raw == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if c.Search.ItemType == "" {
		return fmt.Errorf("search.item_type is required")
	}
	if c.Search.CloudCeiling < 0 || c.Search.CloudCeiling > 1 {
		return fmt.Errorf("search.cloud_ceiling must be in [0,1], got %g", c.Search.CloudCeiling)
	}
	if c.Search.QueryLimit <= 0 {
		return fmt.Errorf("search.query_limit must be > 0, got %d", c.Search.QueryLimit)
	}
	if c.Search.MaxRangeDays <= 0 {
		return fmt.Errorf("search.max_range_days must be > 0, got %d", c.Search.MaxRangeDays)
	}
	if c.Poll.IntervalSeconds <= 0 {
		return fmt.Errorf("poll.interval_seconds must be > 0, got %d", c.Poll.IntervalSeconds)
	}
	if c.Poll.MaxPolls < 0 {
		return fmt.Errorf("poll.max_polls must be >= 0, got %d", c.Poll.MaxPolls)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0, got %d", c.Retry.MaxAttempts)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	return nil
}

// ResolveKeyFile returns the configured credential file path, falling back
// to the conventional location under the data directory.
func (c *ProjectConfig) ResolveKeyFile() string {
	if c.API.KeyFile != "" {
		return c.API.KeyFile
	}
	return filepath.Join(c.DataDir, "planetscope", "PlanetScope_API_key.txt")
}

// SiteImageDir returns the flat per-site output directory for downloads
func (c *ProjectConfig) SiteImageDir(site string) string {
	return filepath.Join(c.DataDir, "sat_images", site)
}

// SiteInfoDir returns the per-site directory holding AOI geojson files
func (c *ProjectConfig) SiteInfoDir(site string) string {
	return filepath.Join(c.DataDir, "siteinfo", site)
}
