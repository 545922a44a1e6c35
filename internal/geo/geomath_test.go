package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/wegman-software/osmedit/internal/editerr"
)

func testBox(t *testing.T) *BoundingBox {
	t.Helper()
	box, err := NewBoundingBoxDegrees(7.58, 48.00, 7.59, 48.01)
	if err != nil {
		t.Fatalf("failed to create box: %v", err)
	}
	return box
}

func TestProjectionRoundTrip(t *testing.T) {
	box := testBox(t)
	const w, h = 800, 600

	for lat := box.Bottom; lat <= box.Top; lat += 737 {
		y := LatE7ToY(h, box, lat)
		if got := YToLatE7(h, box, y); absDiff(got, lat) > 1 {
			t.Fatalf("lat %d round-tripped to %d", lat, got)
		}
	}
	for lon := box.Left; lon <= box.Right; lon += 911 {
		x := LonE7ToX(w, box, lon)
		if got := XToLonE7(w, box, x); absDiff(got, lon) > 1 {
			t.Fatalf("lon %d round-tripped to %d", lon, got)
		}
	}
}

func TestProjectionEdges(t *testing.T) {
	box := testBox(t)

	if x := LonE7ToX(800, box, box.Left); x != 0 {
		t.Errorf("expected left edge at x=0, got %f", x)
	}
	if x := LonE7ToX(800, box, box.Right); math.Abs(x-800) > 1e-9 {
		t.Errorf("expected right edge at x=800, got %f", x)
	}
	if y := LatE7ToY(600, box, box.Top); math.Abs(y) > 1e-9 {
		t.Errorf("expected top edge at y=0, got %f", y)
	}
	if y := LatE7ToY(600, box, box.Bottom); math.Abs(y-600) > 1e-6 {
		t.Errorf("expected bottom edge at y=600, got %f", y)
	}
	// North is up
	if LatE7ToY(600, box, box.Top-10) >= LatE7ToY(600, box, box.Bottom+10) {
		t.Error("expected y to decrease with latitude")
	}
}

func TestMercatorInverse(t *testing.T) {
	for _, lat := range []float64{-80, -45.5, -1, 0, 0.0001, 12.3, 48.005, 85} {
		if got := MercatorToLat(LatToMercator(lat)); math.Abs(got-lat) > 1e-9 {
			t.Errorf("lat %f: got %f", lat, got)
		}
	}
	if LatToMercator(90) != LatToMercator(MaxLat) {
		t.Error("expected latitude to clamp at the Mercator limit")
	}
}

func TestCreateBoundingBoxForCoordinates(t *testing.T) {
	box, err := CreateBoundingBoxForCoordinates(0, 0, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 1000 m is about 0.009 degrees at the equator
	if w := box.Width(); w < 179000 || w > 181000 {
		t.Errorf("expected width near 179664, got %d", w)
	}
	if lat, lon := box.Center(); absDiff(lat, 0) > 1 || absDiff(lon, 0) > 1 {
		t.Errorf("expected box centred on origin, got %d,%d", lat, lon)
	}

	north, err := CreateBoundingBoxForCoordinates(60, 10, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if north.Width() <= north.Height() {
		t.Errorf("expected wider box in degrees at 60N, got %dx%d", north.Width(), north.Height())
	}

	tests := []struct {
		name          string
		lat, lon, rad float64
	}{
		{"antimeridian", 0, 179.999, 1000},
		{"north pole", 85.05, 0, 10000},
		{"negative radius", 0, 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateBoundingBoxForCoordinates(tt.lat, tt.lon, tt.rad)
			if !errors.Is(err, editerr.ErrGeometry) {
				t.Errorf("expected ErrGeometry, got %v", err)
			}
		})
	}
}

func TestIsBetween(t *testing.T) {
	tests := []struct {
		v, a, b, tol float64
		want         bool
	}{
		{5, 0, 10, 0, true},
		{5, 10, 0, 0, true},
		{-1, 0, 10, 0, false},
		{-1, 0, 10, 1, true},
		{11.5, 0, 10, 1, false},
	}
	for _, tt := range tests {
		if got := IsBetween(tt.v, tt.a, tt.b, tt.tol); got != tt.want {
			t.Errorf("IsBetween(%v,%v,%v,%v) = %v, expected %v", tt.v, tt.a, tt.b, tt.tol, got, tt.want)
		}
	}
}

func TestPointToSegmentDistance(t *testing.T) {
	if d := PointToSegmentDistance(5, 3, 0, 0, 10, 0); math.Abs(d-3) > 1e-12 {
		t.Errorf("expected 3, got %f", d)
	}
	if d := PointToSegmentDistance(3, 4, 0, 0, 0, 0); math.Abs(d-5) > 1e-12 {
		t.Errorf("expected 5 for degenerate segment, got %f", d)
	}
	x, y := ClosestPointOnSegment(15, 5, 0, 0, 10, 0)
	if x != 10 || y != 0 {
		t.Errorf("expected clamp to (10,0), got (%f,%f)", x, y)
	}
}

func absDiff(a, b int32) int64 {
	d := int64(a) - int64(b)
	if d < 0 {
		return -d
	}
	return d
}
