package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/wegman-software/osmedit/internal/editerr"
)

func TestNewBoundingBoxValidation(t *testing.T) {
	tests := []struct {
		name                     string
		left, bottom, right, top int32
		wantErr                  bool
	}{
		{"valid", 0, 0, 10, 10, false},
		{"point", 5, 5, 5, 5, false},
		{"inverted lon", 10, 0, 0, 10, true},
		{"inverted lat", 0, 10, 10, 0, true},
		{"lon out of range", -1800000001, 0, 0, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBoundingBox(tt.left, tt.bottom, tt.right, tt.top)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, editerr.ErrGeometry) {
				t.Errorf("expected ErrGeometry, got %v", err)
			}
		})
	}
}

func TestShiftClampsToDomain(t *testing.T) {
	box := &BoundingBox{Left: MaxLonE7 - 1000, Bottom: 0, Right: MaxLonE7 - 100, Top: 1000}
	box.Shift(5000, 0)
	if box.Right != MaxLonE7 || box.Width() != 900 {
		t.Errorf("expected right edge clamped at %d with width 900, got %d/%d", MaxLonE7, box.Right, box.Width())
	}

	box = &BoundingBox{Left: 0, Bottom: MaxLatE7 - 1000, Right: 1000, Top: MaxLatE7 - 10}
	box.Shift(0, 1000000)
	if box.Top != MaxLatE7 {
		t.Errorf("expected top clamped at %d, got %d", MaxLatE7, box.Top)
	}
}

func TestTranslateUsesMercatorCorrection(t *testing.T) {
	equator := &BoundingBox{Left: 0, Bottom: -5000, Right: 10000, Top: 5000}
	equator.Translate(0, 1000)
	if equator.Bottom != -4000 {
		t.Errorf("expected plain shift at the equator, got bottom %d", equator.Bottom)
	}

	north := &BoundingBox{Left: 0, Bottom: 600000000, Right: 10000, Top: 600010000}
	north.Translate(0, 1000)
	moved := int64(north.Bottom) - 600000000
	if moved <= 0 || moved >= 1000 {
		t.Errorf("expected damped shift at 60N, moved %d", moved)
	}
}

func TestZoom(t *testing.T) {
	box := testBox(t)
	width := box.Width()
	lat, lon := box.Center()

	if !box.ZoomIn() {
		t.Fatal("expected zoom in to succeed")
	}
	if got := box.Width(); math.Abs(float64(got)-float64(width)*0.75) > 2 {
		t.Errorf("expected width %d, got %d", width*3/4, got)
	}
	if cl, co := box.Center(); absDiff(cl, lat) > 2 || absDiff(co, lon) > 2 {
		t.Errorf("expected centre to be kept, got %d,%d", cl, co)
	}

	if !box.ZoomOut() {
		t.Fatal("expected zoom out to succeed")
	}
	if got := box.Width(); absDiff(int32(got), int32(width)) > 4 {
		t.Errorf("expected zoom out to undo zoom in, width %d vs %d", got, width)
	}

	tiny := &BoundingBox{Left: 0, Bottom: 0, Right: MinZoomWidth, Top: MinZoomWidth}
	if tiny.CanZoomIn() || tiny.ZoomIn() {
		t.Error("expected zoom in to be refused at the minimum width")
	}
	huge := &BoundingBox{Left: -MaxZoomWidth / 2, Bottom: -100000000, Right: MaxZoomWidth / 2, Top: 100000000}
	if huge.CanZoomOut() || huge.ZoomOut() {
		t.Error("expected zoom out to be refused at the maximum width")
	}
}

func TestSetRatio(t *testing.T) {
	box := testBox(t)
	if err := box.SetRatio(800.0/600.0, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	top, bottom := box.mercatorRange()
	got := float64(box.Width()) / E7 / (top - bottom)
	if math.Abs(got-800.0/600.0) > 1e-3 {
		t.Errorf("expected projected ratio 1.333, got %f", got)
	}

	// Horizontal projection is unaffected
	x := LonE7ToX(800, box, box.Left+int32(box.Width()/2))
	if math.Abs(x-400) > 0.01 {
		t.Errorf("expected centre at x=400, got %f", x)
	}

	if err := box.SetRatio(0, false); !errors.Is(err, editerr.ErrGeometry) {
		t.Errorf("expected ErrGeometry for zero ratio, got %v", err)
	}
}

func TestIntersects(t *testing.T) {
	box := &BoundingBox{Left: 0, Bottom: 0, Right: 100, Top: 100}
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 int32
		want                   bool
	}{
		{"inside", 10, 10, 20, 20, true},
		{"crossing", 50, -50, 50, 150, true},
		{"diagonal through corner region", -10, 50, 50, 110, true},
		{"outside", 200, 200, 300, 300, false},
		{"passing by", -10, 150, 150, 300, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := box.Intersects(tt.lat1, tt.lon1, tt.lat2, tt.lon2); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
