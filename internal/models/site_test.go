package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSitePolygonRoundtrip validates that a written site AOI loads back as
// the same closed ring.
func TestSitePolygonRoundtrip(t *testing.T) {
	dir := t.TempDir()
	open := Ring{{-157.84, 21.27}, {-157.83, 21.27}, {-157.83, 21.28}, {-157.84, 21.28}}

	path, err := WriteSitePolygon(dir, "waikiki", open)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "waikiki_polygon.geojson"), path)

	ring, err := LoadSitePolygon(path)
	require.NoError(t, err)
	assert.Equal(t, open.Close(), ring)
	assert.True(t, ring.Closed())
}

func TestWriteSitePolygonRejectsDegenerate(t *testing.T) {
	_, err := WriteSitePolygon(t.TempDir(), "bad", Ring{{0, 0}, {1, 1}})
	require.Error(t, err)
}

func TestLoadSitePolygon(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSitePolygon(filepath.Join(t.TempDir(), "nope.geojson"))
		require.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.geojson")
		require.NoError(t, os.WriteFile(path, []byte("not geojson"), 0644))
		_, err := LoadSitePolygon(path)
		require.Error(t, err)
	})

	t.Run("multiple features rejected", func(t *testing.T) {
		fc := NewSitePolygon("twice", Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}})
		fc.Features = append(fc.Features, fc.Features[0])

		path := filepath.Join(t.TempDir(), "twice_polygon.geojson")
		data, err := json.MarshalIndent(fc, "", "  ")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0644))

		_, err = LoadSitePolygon(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one feature")
	})

	t.Run("non-polygon geometry rejected", func(t *testing.T) {
		fc := NewSitePolygon("point", Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}})
		fc.Features[0].Geometry.Type = "Point"

		path := filepath.Join(t.TempDir(), "point_polygon.geojson")
		data, err := json.MarshalIndent(fc, "", "  ")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0644))

		_, err = LoadSitePolygon(path)
		require.Error(t, err)
	})
}
