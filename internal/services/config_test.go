package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfig validates the file/env/default layering
func TestLoadConfig(t *testing.T) {
	t.Run("defaults apply without a config file", func(t *testing.T) {
		viper.Reset()
		dir := t.TempDir()

		configFile := filepath.Join(dir, "planetfetch.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte("data_dir: "+filepath.Join(dir, "data")+"\n"), 0644))

		config, err := LoadConfig(configFile)
		require.NoError(t, err)

		assert.Equal(t, "https://api.planet.com/data/v1/quick-search", config.API.QuickSearchURL)
		assert.Equal(t, "PSScene", config.Search.ItemType)
		assert.Equal(t, 0.1, config.Search.CloudCeiling)
		assert.Equal(t, 10, config.Poll.IntervalSeconds)
		assert.DirExists(t, config.DataDir)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		viper.Reset()
		dir := t.TempDir()

		configYAML := `
data_dir: ` + filepath.Join(dir, "data") + `
search:
  cloud_ceiling: 0.05
  query_limit: 250
  strict_permissions: false
poll:
  interval_seconds: 5
  max_polls: 50
fetch:
  concurrent: true
  stagger_seconds: 15
`
		configFile := filepath.Join(dir, "planetfetch.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte(configYAML), 0644))

		config, err := LoadConfig(configFile)
		require.NoError(t, err)

		assert.Equal(t, 0.05, config.Search.CloudCeiling)
		assert.Equal(t, 250, config.Search.QueryLimit)
		assert.False(t, config.Search.StrictPermissions)
		assert.Equal(t, 5, config.Poll.IntervalSeconds)
		assert.Equal(t, 50, config.Poll.MaxPolls)
		assert.True(t, config.Fetch.Concurrent)
		assert.Equal(t, 15, config.Fetch.StaggerSeconds)

		// Untouched keys keep their defaults
		assert.Equal(t, []string{".tif", ".json", ".xml"}, config.Download.Extensions)
		assert.Equal(t, 3, config.Retry.MaxAttempts)
	})

	t.Run("runtime overrides beat file values and get validated", func(t *testing.T) {
		viper.Reset()
		dir := t.TempDir()

		configFile := filepath.Join(dir, "planetfetch.yaml")
		require.NoError(t, os.WriteFile(configFile,
			[]byte("data_dir: "+filepath.Join(dir, "data")+"\nsearch:\n  cloud_ceiling: 0.1\n"), 0644))

		SetConfigValue("search.cloud_ceiling", 0.25)
		SetConfigValue("fetch.concurrent", true)

		config, err := LoadConfig(configFile)
		require.NoError(t, err)
		assert.Equal(t, 0.25, config.Search.CloudCeiling)
		assert.True(t, config.Fetch.Concurrent)

		// An out-of-range override fails the same validation as a file value
		viper.Reset()
		SetConfigValue("search.cloud_ceiling", 2.5)
		_, err = LoadConfig(configFile)
		require.Error(t, err)
	})

	t.Run("the loaded file path is reported", func(t *testing.T) {
		viper.Reset()
		dir := t.TempDir()

		configFile := filepath.Join(dir, "planetfetch.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte("data_dir: "+filepath.Join(dir, "data")+"\n"), 0644))

		_, err := LoadConfig(configFile)
		require.NoError(t, err)
		assert.Equal(t, configFile, GetConfigFilePath())
	})

	t.Run("invalid values are rejected at load time", func(t *testing.T) {
		viper.Reset()
		dir := t.TempDir()

		configFile := filepath.Join(dir, "planetfetch.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte("search:\n  cloud_ceiling: 2.5\n"), 0644))

		_, err := LoadConfig(configFile)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cloud_ceiling")
	})
}
