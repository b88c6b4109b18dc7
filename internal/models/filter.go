package models

import (
	"fmt"
	"time"
)

// Point is one lon/lat vertex of an AOI ring
type Point [2]float64

// Ring is an ordered list of lon/lat vertices. A valid ring is closed: the
// first and last points are equal and it has at least 4 points.
type Ring []Point

// Closed reports whether the ring's first and last points are equal
func (r Ring) Closed() bool {
	return len(r) >= 2 && r[0] == r[len(r)-1]
}

// Close returns a closed copy of the ring. Closing is idempotent: an
// already-closed ring is returned unchanged.
func (r Ring) Close() Ring {
	if len(r) == 0 || r.Closed() {
		return r
	}
	closed := make(Ring, len(r)+1)
	copy(closed, r)
	closed[len(r)] = r[0]
	return closed
}

// Validate checks the closed-ring invariant
func (r Ring) Validate() error {
	if len(r) < 4 {
		return fmt.Errorf("polygon ring needs at least 4 points, got %d", len(r))
	}
	if !r.Closed() {
		return fmt.Errorf("polygon ring is not closed")
	}
	return nil
}

// SiteQuery describes one site's imagery request: where, when, and how
// cloudy the scenes are allowed to be.
type SiteQuery struct {
	Site         string
	Polygon      Ring
	StartDate    time.Time
	EndDate      time.Time
	CloudCeiling float64
}

// Validate checks the site query invariants. The polygon is closed before
// validation so callers may pass open rings.
func (q *SiteQuery) Validate() error {
	if q.Site == "" {
		return fmt.Errorf("site name is required")
	}
	if err := q.Polygon.Close().Validate(); err != nil {
		return fmt.Errorf("site %s: %w", q.Site, err)
	}
	if q.EndDate.Before(q.StartDate) {
		return fmt.Errorf("site %s: end date %s before start date %s",
			q.Site, q.EndDate.Format("2006-01-02"), q.StartDate.Format("2006-01-02"))
	}
	return nil
}

// Filter is one predicate in the provider's search filter grammar. Geometry,
// date-range and range filters all share the type/field_name/config shape;
// AndFilter carries its children in config.
type Filter struct {
	Type      string `json:"type"`
	FieldName string `json:"field_name,omitempty"`
	Config    any    `json:"config"`
}

// PolygonConfig is the GeoJSON-style geometry carried by a geometry filter
// and by the clip tool.
type PolygonConfig struct {
	Type        string `json:"type"`
	Coordinates []Ring `json:"coordinates"`
}

// DateRangeConfig bounds scene acquisition times. Both bounds are
// inclusive; see BuildFilter for the end-of-day convention.
type DateRangeConfig struct {
	GTE string `json:"gte"`
	LTE string `json:"lte"`
}

// RangeConfig is an inclusive numeric ceiling (cloud cover)
type RangeConfig struct {
	LTE float64 `json:"lte"`
}

// Timestamp layout the provider expects, millisecond precision UTC
const filterTimeLayout = "2006-01-02T15:04:05.000Z"

// FormatRangeStart renders the inclusive start-of-day bound for a date
func FormatRangeStart(d time.Time) string {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return day.Format(filterTimeLayout)
}

// FormatRangeEnd renders the inclusive end-of-day bound for a date. The
// convention is T23:59:59.999Z; the provider treats lte as inclusive, so
// this covers the whole end date without bleeding into the next day.
func FormatRangeEnd(d time.Time) string {
	day := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 999000000, time.UTC)
	return day.Format(filterTimeLayout)
}

// BuildFilter constructs the combined search predicate for a site query:
// geometry AND acquisition date range AND cloud cover. The polygon ring is
// closed first if the caller left it open.
func BuildFilter(q SiteQuery) Filter {
	geometry := Filter{
		Type:      "GeometryFilter",
		FieldName: "geometry",
		Config: PolygonConfig{
			Type:        "Polygon",
			Coordinates: []Ring{q.Polygon.Close()},
		},
	}

	dateRange := Filter{
		Type:      "DateRangeFilter",
		FieldName: "acquired",
		Config: DateRangeConfig{
			GTE: FormatRangeStart(q.StartDate),
			LTE: FormatRangeEnd(q.EndDate),
		},
	}

	cloud := Filter{
		Type:      "RangeFilter",
		FieldName: "cloud_cover",
		Config: RangeConfig{
			LTE: q.CloudCeiling,
		},
	}

	return Filter{
		Type:   "AndFilter",
		Config: []Filter{geometry, dateRange, cloud},
	}
}

// SubFilters returns the children of an AndFilter, or nil for leaf filters
func (f Filter) SubFilters() []Filter {
	children, ok := f.Config.([]Filter)
	if !ok {
		return nil
	}
	return children
}

// SplitDateRange partitions a site query into windows of at most maxDays
// each. The search backend caps result counts per query, so long ranges are
// searched and ordered window by window. Short ranges come back unsplit.
func SplitDateRange(q SiteQuery, maxDays int) []SiteQuery {
	days := int(q.EndDate.Sub(q.StartDate).Hours() / 24)
	if maxDays <= 0 || days <= maxDays {
		return []SiteQuery{q}
	}

	var windows []SiteQuery
	cursor := q.StartDate
	for cursor.Before(q.EndDate) {
		end := cursor.AddDate(0, 0, maxDays)
		if end.After(q.EndDate) {
			end = q.EndDate
		}
		window := q
		window.StartDate = cursor
		window.EndDate = end
		windows = append(windows, window)
		cursor = end.AddDate(0, 0, 1)
	}
	return windows
}
