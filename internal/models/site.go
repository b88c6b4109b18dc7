package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FeatureCollection is the geojson file format used to persist a site AOI.
// Each site's file holds exactly one polygon feature.
type FeatureCollection struct {
	Type     string         `json:"type"`
	Name     string         `json:"name,omitempty"`
	CRS      map[string]any `json:"crs,omitempty"`
	Features []Feature      `json:"features"`
}

// Feature is one geojson feature
type Feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Geometry   Geometry       `json:"geometry"`
}

// Geometry is a geojson polygon geometry. Only the outer ring is used.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates []Ring `json:"coordinates"`
}

// PolygonFileName returns the conventional AOI file name for a site
func PolygonFileName(site string) string {
	return fmt.Sprintf("%s_polygon.geojson", site)
}

// NewSitePolygon builds the feature collection persisted for a site AOI.
// The ring is closed before writing.
func NewSitePolygon(site string, ring Ring) FeatureCollection {
	return FeatureCollection{
		Type: "FeatureCollection",
		Name: fmt.Sprintf("%s_polygon", site),
		CRS: map[string]any{
			"type":       "name",
			"properties": map[string]any{"name": "urn:ogc:def:crs:OGC:1.3:CRS84"},
		},
		Features: []Feature{
			{
				Type:       "Feature",
				Properties: map[string]any{"Name": "Polygon 1"},
				Geometry: Geometry{
					Type:        "Polygon",
					Coordinates: []Ring{ring.Close()},
				},
			},
		},
	}
}

// WriteSitePolygon persists a site AOI under dir, creating it if needed
func WriteSitePolygon(dir string, site string, ring Ring) (string, error) {
	if err := ring.Close().Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create site directory: %w", err)
	}

	path := filepath.Join(dir, PolygonFileName(site))
	data, err := json.MarshalIndent(NewSitePolygon(site, ring), "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal polygon: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write polygon file: %w", err)
	}
	return path, nil
}

// LoadSitePolygon reads a site AOI file and returns its closed outer ring
func LoadSitePolygon(path string) (Ring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read polygon file: %w", err)
	}

	var fc FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("invalid polygon file %s: %w", path, err)
	}

	if len(fc.Features) != 1 {
		return nil, fmt.Errorf("polygon file %s must contain exactly one feature, got %d", path, len(fc.Features))
	}
	geom := fc.Features[0].Geometry
	if geom.Type != "Polygon" || len(geom.Coordinates) == 0 {
		return nil, fmt.Errorf("polygon file %s does not contain a polygon geometry", path)
	}

	ring := geom.Coordinates[0].Close()
	if err := ring.Validate(); err != nil {
		return nil, fmt.Errorf("polygon file %s: %w", path, err)
	}
	return ring, nil
}
