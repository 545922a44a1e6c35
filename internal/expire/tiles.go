// Package expire computes the map tiles touched by pending edits and writes
// them as a z/x/y expire list for tile servers.
package expire

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/wegman-software/osmedit/internal/geo"
)

// Tile represents a map tile at a specific zoom level
type Tile struct {
	Z int // Zoom level
	X int // X coordinate (column)
	Y int // Y coordinate (row)
}

// String returns the tile in z/x/y format
func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Web Mercator latitude limits
const (
	MaxMercatorLat = 85.0511287798
	MinMercatorLat = -85.0511287798
)

// PointE7 converts E7 coordinates to an orb point (lon, lat in degrees)
func PointE7(latE7, lonE7 int32) orb.Point {
	return orb.Point{geo.FromE7(lonE7), geo.FromE7(latE7)}
}

// LatLonToTile converts latitude/longitude to tile coordinates at a given zoom level
func LatLonToTile(lat, lon float64, zoom int) Tile {
	lat = min(max(lat, MinMercatorLat), MaxMercatorLat)
	lon = min(max(lon, -180), 180)

	t := maptile.At(orb.Point{lon, lat}, maptile.Zoom(zoom))
	last := (1 << zoom) - 1
	return Tile{Z: zoom, X: min(int(t.X), last), Y: min(int(t.Y), last)}
}

// TileRange represents a range of tiles at a specific zoom level
type TileRange struct {
	Z          int
	MinX, MaxX int
	MinY, MaxY int
}

// BoundToTileRange converts a bound to a range of tiles at a given zoom level
func BoundToTileRange(b orb.Bound, zoom int) TileRange {
	// Y increases southwards
	topLeft := LatLonToTile(b.Max.Lat(), b.Min.Lon(), zoom)
	bottomRight := LatLonToTile(b.Min.Lat(), b.Max.Lon(), zoom)

	return TileRange{
		Z:    zoom,
		MinX: topLeft.X,
		MaxX: bottomRight.X,
		MinY: topLeft.Y,
		MaxY: bottomRight.Y,
	}
}

// TileCount returns the number of tiles in the range
func (r TileRange) TileCount() int {
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// Tiles returns all tiles in the range
func (r TileRange) Tiles() []Tile {
	tiles := make([]Tile, 0, r.TileCount())
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			tiles = append(tiles, Tile{Z: r.Z, X: x, Y: y})
		}
	}
	return tiles
}

func validBound(b orb.Bound) bool {
	return b.Min.Lon() <= b.Max.Lon() && b.Min.Lat() <= b.Max.Lat() &&
		b.Min.Lon() >= -180 && b.Max.Lon() <= 180 &&
		b.Min.Lat() >= -90 && b.Max.Lat() <= 90
}

// AffectedTiles returns all tiles intersecting b across zoom levels
func AffectedTiles(b orb.Bound, minZoom, maxZoom int) []Tile {
	if !validBound(b) {
		return nil
	}
	var tiles []Tile
	for z := minZoom; z <= maxZoom; z++ {
		tiles = append(tiles, BoundToTileRange(b, z).Tiles()...)
	}
	return tiles
}
