package expire

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/logger"
)

// Tracker collects tiles that need to be re-rendered
type Tracker struct {
	mu      sync.Mutex
	tiles   map[Tile]struct{}
	minZoom int
	maxZoom int
}

// NewTracker creates a new tile expiry tracker
func NewTracker(minZoom, maxZoom int) *Tracker {
	return &Tracker{
		tiles:   make(map[Tile]struct{}),
		minZoom: minZoom,
		maxZoom: maxZoom,
	}
}

// ExpirePoint marks the tiles containing a point
func (t *Tracker) ExpirePoint(latE7, lonE7 int32) {
	p := PointE7(latE7, lonE7)
	t.ExpireBound(orb.Bound{Min: p, Max: p})
}

// ExpireBound marks every tile intersecting b
func (t *Tracker) ExpireBound(b orb.Bound) {
	t.addTiles(AffectedTiles(b, t.minZoom, t.maxZoom))
}

// ExpireElement marks the tiles covered by e: a node's position, a way's
// extent, or the extent of a relation's node and way members
func (t *Tracker) ExpireElement(e graph.Element) {
	if b, ok := elementBound(e); ok {
		t.ExpireBound(b)
	}
}

// ExpireChanges marks the tiles of every pending change, tombstones included
func (t *Tracker) ExpireChanges(cs *graph.ChangeSet) {
	for _, group := range [][]graph.Element{cs.Created, cs.Modified, cs.Deleted} {
		for _, e := range group {
			t.ExpireElement(e)
		}
	}
}

func elementBound(e graph.Element) (orb.Bound, bool) {
	switch v := e.(type) {
	case *graph.Node:
		p := PointE7(v.LatE7(), v.LonE7())
		return orb.Bound{Min: p, Max: p}, true
	case *graph.Way:
		if v.NodeCount() == 0 {
			return orb.Bound{}, false
		}
		ls := make(orb.LineString, 0, v.NodeCount())
		for _, n := range v.Nodes() {
			ls = append(ls, PointE7(n.LatE7(), n.LonE7()))
		}
		return ls.Bound(), true
	case *graph.Relation:
		// nested relations are left out
		var b orb.Bound
		found := false
		for _, m := range v.Members() {
			if _, nested := m.Element.(*graph.Relation); nested {
				continue
			}
			mb, ok := elementBound(m.Element)
			if !ok {
				continue
			}
			if !found {
				b, found = mb, true
			} else {
				b = b.Union(mb)
			}
		}
		return b, found
	}
	return orb.Bound{}, false
}

func (t *Tracker) addTiles(tiles []Tile) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tile := range tiles {
		t.tiles[tile] = struct{}{}
	}
}

// Count returns the number of unique expired tiles
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tiles)
}

// CountByZoom returns the count of tiles at each zoom level
func (t *Tracker) CountByZoom() map[int]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[int]int)
	for tile := range t.tiles {
		counts[tile.Z]++
	}
	return counts
}

// GetTiles returns all expired tiles sorted by z, x, y
func (t *Tracker) GetTiles() []Tile {
	t.mu.Lock()
	tiles := make([]Tile, 0, len(t.tiles))
	for tile := range t.tiles {
		tiles = append(tiles, tile)
	}
	t.mu.Unlock()

	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Z != tiles[j].Z {
			return tiles[i].Z < tiles[j].Z
		}
		if tiles[i].X != tiles[j].X {
			return tiles[i].X < tiles[j].X
		}
		return tiles[i].Y < tiles[j].Y
	})
	return tiles
}

// Clear removes all tracked tiles
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tiles = make(map[Tile]struct{})
}

// WriteTo writes the tiles one z/x/y per line
func (t *Tracker) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	for _, tile := range t.GetTiles() {
		n, err := fmt.Fprintln(bw, tile.String())
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

// WriteToFile writes expired tiles to a file in z/x/y format
func (t *Tracker) WriteToFile(filename string) error {
	log := logger.Get()

	if t.Count() == 0 {
		log.Info("No tiles to expire")
		return nil
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create expire file: %w", err)
	}
	defer f.Close()

	if _, err := t.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write expire file: %w", err)
	}

	counts := t.CountByZoom()
	zooms := make([]int, 0, len(counts))
	for z := range counts {
		zooms = append(zooms, z)
	}
	sort.Ints(zooms)

	fields := []zap.Field{zap.String("file", filename)}
	for _, z := range zooms {
		fields = append(fields, zap.Int(fmt.Sprintf("z%d", z), counts[z]))
	}
	fields = append(fields, zap.Int("total", t.Count()))
	log.Info("Wrote expire tiles", fields...)

	return nil
}
