package services

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/coastalrc/planetfetch/internal/models"
)

// LoadConfig loads configuration from file and environment.
// Priority order (highest to lowest):
//  1. CLI flags (via viper bindings)
//  2. Environment variables (PLANETFETCH_ prefix)
//  3. Configuration file
//  4. Default values
func LoadConfig(configFile string) (*models.ProjectConfig, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("planetfetch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/planetfetch")
		viper.AddConfigPath("/etc/planetfetch")
	}

	viper.SetEnvPrefix("PLANETFETCH")
	viper.AutomaticEnv()

	// Config file is optional - defaults cover everything but credentials
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	defaults := models.DefaultConfig()
	config := models.ProjectConfig{
		API: models.APIConfig{
			DataURL:               stringOr("api.data_url", defaults.API.DataURL),
			QuickSearchURL:        stringOr("api.quick_search_url", defaults.API.QuickSearchURL),
			OrdersURL:             stringOr("api.orders_url", defaults.API.OrdersURL),
			KeyFile:               viper.GetString("api.key_file"),
			RequestTimeoutSeconds: intOr("api.request_timeout_seconds", defaults.API.RequestTimeoutSeconds),
		},
		Search: models.SearchConfig{
			ItemType:            stringOr("search.item_type", defaults.Search.ItemType),
			ProductBundle:       stringOr("search.product_bundle", defaults.Search.ProductBundle),
			CloudCeiling:        floatOr("search.cloud_ceiling", defaults.Search.CloudCeiling),
			QueryLimit:          intOr("search.query_limit", defaults.Search.QueryLimit),
			MaxRangeDays:        intOr("search.max_range_days", defaults.Search.MaxRangeDays),
			RequiredPermissions: sliceOr("search.required_permissions", defaults.Search.RequiredPermissions),
			StrictPermissions:   boolOr("search.strict_permissions", defaults.Search.StrictPermissions),
		},
		Poll: models.PollConfig{
			IntervalSeconds: intOr("poll.interval_seconds", defaults.Poll.IntervalSeconds),
			MaxPolls:        intOr("poll.max_polls", defaults.Poll.MaxPolls),
		},
		Download: models.DownloadConfig{
			Extensions: sliceOr("download.extensions", defaults.Download.Extensions),
			Overwrite:  viper.GetBool("download.overwrite"),
		},
		Retry: models.RetryConfig{
			MaxAttempts:  intOr("retry.max_attempts", defaults.Retry.MaxAttempts),
			DelaySeconds: intOr("retry.delay_seconds", defaults.Retry.DelaySeconds),
		},
		Fetch: models.FetchConfig{
			Concurrent:         viper.GetBool("fetch.concurrent"),
			StaggerSeconds:     intOr("fetch.stagger_seconds", defaults.Fetch.StaggerSeconds),
			MaxConcurrentSites: intOr("fetch.max_concurrent_sites", defaults.Fetch.MaxConcurrentSites),
		},
		DataDir: stringOr("data_dir", defaults.DataDir),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &config, nil
}

// GetConfigFilePath returns the path to the config file that was loaded
func GetConfigFilePath() string {
	return viper.ConfigFileUsed()
}

// SetConfigValue allows runtime override of config values.
// Useful for CLI flag overrides.
func SetConfigValue(key string, value interface{}) {
	viper.Set(key, value)
}

func stringOr(key, fallback string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return fallback
}

func floatOr(key string, fallback float64) float64 {
	if viper.IsSet(key) {
		return viper.GetFloat64(key)
	}
	return fallback
}

func boolOr(key string, fallback bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	return fallback
}

func sliceOr(key string, fallback []string) []string {
	if viper.IsSet(key) {
		return viper.GetStringSlice(key)
	}
	return fallback
}
