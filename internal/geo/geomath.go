// Package geo converts between E7 fixed-point WGS84 coordinates and screen pixels.
package geo

import (
	"fmt"
	"math"

	"github.com/wegman-software/osmedit/internal/editerr"
)

// Coordinate domain constants
const (
	// E7 is the fixed-point scale for degrees
	E7 = 1e7

	// MaxLat is the largest latitude representable in Web Mercator
	MaxLat   = 85.0511287798
	MaxLatE7 = 850511287
	MaxLonE7 = 1800000000

	// Semi-major axis of WGS84 ellipsoid in meters
	earthRadius = 6378137.0
	// metersPerDegree is the length of one degree of longitude at the equator
	metersPerDegree = earthRadius * math.Pi / 180.0
)

// ToE7 converts degrees to fixed-point E7 units, rounding to the nearest unit
func ToE7(deg float64) int32 {
	return int32(math.Round(deg * E7))
}

// FromE7 converts fixed-point E7 units to degrees
func FromE7(v int32) float64 {
	return float64(v) / E7
}

// LatToMercator projects a latitude in degrees onto the Mercator y axis, in degrees.
// Uses ln(tan(lat) + sec(lat)) and clamps to the Web Mercator limit near the poles.
func LatToMercator(lat float64) float64 {
	if lat > MaxLat {
		lat = MaxLat
	} else if lat < -MaxLat {
		lat = -MaxLat
	}
	r := lat * math.Pi / 180.0
	return math.Log(math.Tan(r)+1/math.Cos(r)) * 180.0 / math.Pi
}

// MercatorToLat is the inverse of LatToMercator
func MercatorToLat(merc float64) float64 {
	return math.Atan(math.Sinh(merc*math.Pi/180.0)) * 180.0 / math.Pi
}

// MercatorFactor returns the ratio of projected to geographic latitude at lat
func MercatorFactor(lat float64) float64 {
	if math.Abs(lat) < 1e-3 {
		return 1
	}
	return LatToMercator(lat) / lat
}

// LonE7ToX returns the screen x coordinate of a longitude within the view box
func LonE7ToX(width int, box *BoundingBox, lonE7 int32) float64 {
	w := box.Width()
	if w == 0 {
		return 0
	}
	return float64(int64(lonE7)-int64(box.Left)) / float64(w) * float64(width)
}

// LatE7ToY returns the screen y coordinate of a latitude within the view box
func LatE7ToY(height int, box *BoundingBox, latE7 int32) float64 {
	top, bottom := box.mercatorRange()
	if top == bottom {
		return 0
	}
	return (top - LatToMercator(FromE7(latE7))) / (top - bottom) * float64(height)
}

// XToLonE7 returns the longitude at screen x
func XToLonE7(width int, box *BoundingBox, x float64) int32 {
	if width == 0 {
		return box.Left
	}
	return int32(math.Round(float64(box.Left) + x/float64(width)*float64(box.Width())))
}

// YToLatE7 returns the latitude at screen y
func YToLatE7(height int, box *BoundingBox, y float64) int32 {
	if height == 0 {
		return box.Top
	}
	top, bottom := box.mercatorRange()
	return ToE7(MercatorToLat(top - y/float64(height)*(top-bottom)))
}

// CreateBoundingBoxForCoordinates returns a box of edge 2*radius meters centred on (lat, lon).
// Fails when the box would cross the antimeridian or leave the Mercator domain.
func CreateBoundingBoxForCoordinates(lat, lon, radius float64) (*BoundingBox, error) {
	if radius < 0 || math.IsNaN(radius) {
		return nil, fmt.Errorf("invalid radius %f: %w", radius, editerr.ErrGeometry)
	}
	vertical := radius / metersPerDegree
	horizontal := vertical / math.Cos(lat*math.Pi/180.0)

	left, right := lon-horizontal, lon+horizontal
	bottom, top := lat-vertical, lat+vertical
	if left < -180 || right > 180 {
		return nil, fmt.Errorf("longitude range %f..%f: %w", left, right, editerr.ErrGeometry)
	}
	if bottom < -MaxLat || top > MaxLat {
		return nil, fmt.Errorf("latitude range %f..%f: %w", bottom, top, editerr.ErrGeometry)
	}
	return NewBoundingBox(ToE7(left), ToE7(bottom), ToE7(right), ToE7(top))
}

// IsBetween reports whether v lies within [min(a,b)-tol, max(a,b)+tol]
func IsBetween(v, a, b, tol float64) bool {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo-tol <= v && v <= hi+tol
}

// PointToSegmentDistance returns the distance of (x, y) from the line through (x1, y1) and (x2, y2).
// Callers restrict to the segment itself with IsBetween.
func PointToSegmentDistance(x, y, x1, y1, x2, y2 float64) float64 {
	d := math.Hypot(x2-x1, y2-y1)
	if d == 0 {
		return math.Hypot(x-x1, y-y1)
	}
	return math.Abs((x2-x1)*(y1-y)-(x1-x)*(y2-y1)) / d
}

// ClosestPointOnSegment returns the point of segment (x1,y1)-(x2,y2) nearest to (x, y)
func ClosestPointOnSegment(x, y, x1, y1, x2, y2 float64) (float64, float64) {
	dx, dy := x2-x1, y2-y1
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return x1, y1
	}
	t := ((x-x1)*dx + (y-y1)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return x1 + t*dx, y1 + t*dy
}

// segmentsIntersect reports whether segments p1-p2 and p3-p4 share a point
func segmentsIntersect(x1, y1, x2, y2, x3, y3, x4, y4 float64) bool {
	d1 := cross(x3, y3, x4, y4, x1, y1)
	d2 := cross(x3, y3, x4, y4, x2, y2)
	d3 := cross(x1, y1, x2, y2, x3, y3)
	d4 := cross(x1, y1, x2, y2, x4, y4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	// Collinear touching cases
	switch {
	case d1 == 0 && onSegment(x3, y3, x4, y4, x1, y1):
		return true
	case d2 == 0 && onSegment(x3, y3, x4, y4, x2, y2):
		return true
	case d3 == 0 && onSegment(x1, y1, x2, y2, x3, y3):
		return true
	case d4 == 0 && onSegment(x1, y1, x2, y2, x4, y4):
		return true
	}
	return false
}

func cross(ax, ay, bx, by, cx, cy float64) float64 {
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}

func onSegment(ax, ay, bx, by, px, py float64) bool {
	return IsBetween(px, ax, bx, 0) && IsBetween(py, ay, by, 0)
}
