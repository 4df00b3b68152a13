package domain

import (
	"math"
	"strconv"
	"strings"

	geo "github.com/paulmach/go.geo"
)

// BoundingBox is an area of interest in WGS84 decimal degrees.
type BoundingBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// NewBoundingBox builds a validated box from minLon, minLat, maxLon, maxLat.
func NewBoundingBox(coords []float64) (BoundingBox, error) {
	if len(coords) != 4 {
		return BoundingBox{}, Configurationf("aoi", "expected 4 coordinates (minLon,minLat,maxLon,maxLat), got %d", len(coords))
	}
	b := BoundingBox{MinLon: coords[0], MinLat: coords[1], MaxLon: coords[2], MaxLat: coords[3]}
	if err := b.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return b, nil
}

// Validate rejects non-finite, out of range, and degenerate boxes.
func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Configurationf("aoi", "coordinates must be finite numbers")
		}
	}
	if b.MinLon < -180 || b.MaxLon > 180 {
		return Configurationf("aoi", "longitude must be within [-180, 180]")
	}
	if b.MinLat < -90 || b.MaxLat > 90 {
		return Configurationf("aoi", "latitude must be within [-90, 90]")
	}
	if b.MinLon >= b.MaxLon {
		return Configurationf("aoi", "min longitude %v must be less than max longitude %v", b.MinLon, b.MaxLon)
	}
	if b.MinLat >= b.MaxLat {
		return Configurationf("aoi", "min latitude %v must be less than max latitude %v", b.MinLat, b.MaxLat)
	}
	return nil
}

// String renders the box in the comma separated order the products API expects.
func (b BoundingBox) String() string {
	parts := []string{
		strconv.FormatFloat(b.MinLon, 'f', -1, 64),
		strconv.FormatFloat(b.MinLat, 'f', -1, 64),
		strconv.FormatFloat(b.MaxLon, 'f', -1, 64),
		strconv.FormatFloat(b.MaxLat, 'f', -1, 64),
	}
	return strings.Join(parts, ",")
}

// Bound returns the box as a planar bound for intersection tests.
func (b BoundingBox) Bound() *geo.Bound {
	return geo.NewBound(b.MinLon, b.MaxLon, b.MinLat, b.MaxLat)
}

// Ring returns the closed exterior ring of the box in lon/lat order.
func (b BoundingBox) Ring() [][]float64 {
	return [][]float64{
		{b.MinLon, b.MinLat},
		{b.MaxLon, b.MinLat},
		{b.MaxLon, b.MaxLat},
		{b.MinLon, b.MaxLat},
		{b.MinLon, b.MinLat},
	}
}
