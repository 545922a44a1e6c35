package geo

import (
	"fmt"
	"math"

	"github.com/wegman-software/osmedit/internal/editerr"
)

// Zoom limits and steps for the view box
const (
	// MinZoomWidth is the narrowest view box, in E7 units of longitude
	MinZoomWidth = 1000
	// MaxZoomWidth is the widest view box, in E7 units of longitude
	MaxZoomWidth = 500000000

	ZoomInFactor  = 0.125
	ZoomOutFactor = -1.0 / 6.0
)

// BoundingBox is an axis-aligned rectangle in E7 lon/lat space.
// The same type serves as the original download box and as the view box.
type BoundingBox struct {
	Left, Bottom, Right, Top int32
}

// NewBoundingBox validates and returns a bounding box
func NewBoundingBox(left, bottom, right, top int32) (*BoundingBox, error) {
	b := &BoundingBox{Left: left, Bottom: bottom, Right: right, Top: top}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// NewBoundingBoxDegrees builds a box from degree values
func NewBoundingBoxDegrees(minLon, minLat, maxLon, maxLat float64) (*BoundingBox, error) {
	return NewBoundingBox(ToE7(minLon), ToE7(minLat), ToE7(maxLon), ToE7(maxLat))
}

// Validate checks ordering and coordinate ranges
func (b *BoundingBox) Validate() error {
	if b.Left > b.Right || b.Bottom > b.Top {
		return fmt.Errorf("bounding box %s is inverted: %w", b, editerr.ErrGeometry)
	}
	if b.Left < -MaxLonE7 || b.Right > MaxLonE7 {
		return fmt.Errorf("bounding box %s longitude out of range: %w", b, editerr.ErrGeometry)
	}
	if b.Bottom < -900000000 || b.Top > 900000000 {
		return fmt.Errorf("bounding box %s latitude out of range: %w", b, editerr.ErrGeometry)
	}
	return nil
}

// Copy returns an independent copy
func (b *BoundingBox) Copy() *BoundingBox {
	c := *b
	return &c
}

// String returns the box as "left,bottom,right,top" in degrees
func (b *BoundingBox) String() string {
	return fmt.Sprintf("%.7f,%.7f,%.7f,%.7f", FromE7(b.Left), FromE7(b.Bottom), FromE7(b.Right), FromE7(b.Top))
}

// Width returns the longitude extent in E7 units
func (b *BoundingBox) Width() int64 {
	return int64(b.Right) - int64(b.Left)
}

// Height returns the latitude extent in E7 units
func (b *BoundingBox) Height() int64 {
	return int64(b.Top) - int64(b.Bottom)
}

// Center returns the box centre
func (b *BoundingBox) Center() (latE7, lonE7 int32) {
	return int32((int64(b.Bottom) + int64(b.Top)) / 2), int32((int64(b.Left) + int64(b.Right)) / 2)
}

// IsIn reports whether the point lies inside the box, edges included
func (b *BoundingBox) IsIn(latE7, lonE7 int32) bool {
	return lonE7 >= b.Left && lonE7 <= b.Right && latE7 >= b.Bottom && latE7 <= b.Top
}

// IntersectsBox reports whether two boxes overlap
func (b *BoundingBox) IntersectsBox(o *BoundingBox) bool {
	return b.Left <= o.Right && o.Left <= b.Right && b.Bottom <= o.Top && o.Bottom <= b.Top
}

// Intersects reports whether the segment (lat1,lon1)-(lat2,lon2) touches the box
func (b *BoundingBox) Intersects(lat1, lon1, lat2, lon2 int32) bool {
	if b.IsIn(lat1, lon1) || b.IsIn(lat2, lon2) {
		return true
	}
	if max(lon1, lon2) < b.Left || min(lon1, lon2) > b.Right || max(lat1, lat2) < b.Bottom || min(lat1, lat2) > b.Top {
		return false
	}

	x1, y1, x2, y2 := float64(lon1), float64(lat1), float64(lon2), float64(lat2)
	l, r, bo, t := float64(b.Left), float64(b.Right), float64(b.Bottom), float64(b.Top)
	return segmentsIntersect(x1, y1, x2, y2, l, bo, r, bo) ||
		segmentsIntersect(x1, y1, x2, y2, r, bo, r, t) ||
		segmentsIntersect(x1, y1, x2, y2, r, t, l, t) ||
		segmentsIntersect(x1, y1, x2, y2, l, t, l, bo)
}

// Union grows the box to cover o
func (b *BoundingBox) Union(o *BoundingBox) {
	b.Left = min(b.Left, o.Left)
	b.Bottom = min(b.Bottom, o.Bottom)
	b.Right = max(b.Right, o.Right)
	b.Top = max(b.Top, o.Top)
}

// MercatorFactorPow3 returns the cubed mercator factor at the box's centre latitude.
// Vertical pans divide their latitude delta by this value.
func (b *BoundingBox) MercatorFactorPow3() float64 {
	lat, _ := b.Center()
	f := MercatorFactor(FromE7(lat))
	return f * f * f
}

func (b *BoundingBox) mercatorRange() (top, bottom float64) {
	return LatToMercator(FromE7(b.Top)), LatToMercator(FromE7(b.Bottom))
}

func (b *BoundingBox) setMercatorRange(top, bottom float64) {
	b.Top = ToE7(MercatorToLat(top))
	b.Bottom = ToE7(MercatorToLat(bottom))
}

// SetRatio adjusts the box height so that width/height in projected space equals ratio.
// With preserveCenter the vertical centre stays fixed, otherwise the bottom edge does.
func (b *BoundingBox) SetRatio(ratio float64, preserveCenter bool) error {
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return fmt.Errorf("invalid ratio %f: %w", ratio, editerr.ErrGeometry)
	}
	mercHeight := float64(b.Width()) / E7 / ratio
	top, bottom := b.mercatorRange()
	if preserveCenter {
		c := (top + bottom) / 2
		top, bottom = c+mercHeight/2, c-mercHeight/2
	} else {
		top = bottom + mercHeight
	}

	limit := LatToMercator(MaxLat)
	if top-bottom > 2*limit {
		return fmt.Errorf("ratio %f needs a box taller than the Mercator domain: %w", ratio, editerr.ErrGeometry)
	}
	if top > limit {
		bottom -= top - limit
		top = limit
	}
	if bottom < -limit {
		top += -limit - bottom
		bottom = -limit
	}
	b.setMercatorRange(top, bottom)
	return nil
}

// Shift moves the box by exact E7 deltas, clamped to the Mercator domain
func (b *BoundingBox) Shift(dLonE7, dLatE7 int64) {
	if int64(b.Left)+dLonE7 < -MaxLonE7 {
		dLonE7 = -MaxLonE7 - int64(b.Left)
	} else if int64(b.Right)+dLonE7 > MaxLonE7 {
		dLonE7 = MaxLonE7 - int64(b.Right)
	}
	if int64(b.Bottom)+dLatE7 < -MaxLatE7 {
		dLatE7 = -MaxLatE7 - int64(b.Bottom)
	} else if int64(b.Top)+dLatE7 > MaxLatE7 {
		dLatE7 = MaxLatE7 - int64(b.Top)
	}
	b.Left += int32(dLonE7)
	b.Right += int32(dLonE7)
	b.Bottom += int32(dLatE7)
	b.Top += int32(dLatE7)
}

// Translate moves the box like Shift but divides the latitude delta by MercatorFactorPow3,
// so that repeated vertical pans move a similar screen distance at any latitude
func (b *BoundingBox) Translate(dLonE7, dLatE7 int64) {
	b.Shift(dLonE7, int64(float64(dLatE7)/b.MercatorFactorPow3()))
}

// CanZoomIn reports whether one ZoomIn step stays above MinZoomWidth
func (b *BoundingBox) CanZoomIn() bool {
	return float64(b.Width())*(1-2*ZoomInFactor) >= MinZoomWidth
}

// CanZoomOut reports whether one ZoomOut step stays below MaxZoomWidth
func (b *BoundingBox) CanZoomOut() bool {
	return float64(b.Width())*(1-2*ZoomOutFactor) <= MaxZoomWidth
}

// ZoomIn shrinks the box around its centre by one step
func (b *BoundingBox) ZoomIn() bool {
	return b.Zoom(ZoomInFactor)
}

// ZoomOut grows the box around its centre by one step
func (b *BoundingBox) ZoomOut() bool {
	return b.Zoom(ZoomOutFactor)
}

// Zoom moves every edge towards the centre by factor times the box size.
// Positive factors zoom in. Returns false, leaving the box untouched, when the
// result would be narrower than MinZoomWidth or wider than MaxZoomWidth.
func (b *BoundingBox) Zoom(factor float64) bool {
	width := float64(b.Width())
	newWidth := width * (1 - 2*factor)
	if newWidth < MinZoomWidth || newWidth > MaxZoomWidth {
		return false
	}

	h := int64(width * factor)
	left := int64(b.Left) + h
	right := int64(b.Right) - h
	top, bottom := b.mercatorRange()
	v := (top - bottom) * factor
	top, bottom = top-v, bottom+v

	// Keep the result inside the domain
	if left < -MaxLonE7 {
		right += -MaxLonE7 - left
		left = -MaxLonE7
	}
	if right > MaxLonE7 {
		left = max(left-(right-MaxLonE7), -MaxLonE7)
		right = MaxLonE7
	}
	limit := LatToMercator(MaxLat)
	if top > limit {
		bottom = math.Max(bottom-(top-limit), -limit)
		top = limit
	}
	if bottom < -limit {
		top = math.Min(top+(-limit-bottom), limit)
		bottom = -limit
	}

	b.Left, b.Right = int32(left), int32(right)
	b.setMercatorRange(top, bottom)
	return true
}
