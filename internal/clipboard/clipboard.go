// Package clipboard holds a single copied or cut element
package clipboard

import (
	"fmt"
	"math"

	"github.com/wegman-software/osmedit/internal/editerr"
	"github.com/wegman-software/osmedit/internal/graph"
)

// Clipboard is a single-slot store for a detached element and the position it
// was copied at
type Clipboard struct {
	frozen       *graph.Frozen
	latE7, lonE7 int32
	cut          bool
}

// New creates an empty clipboard
func New() *Clipboard {
	return &Clipboard{}
}

// IsEmpty reports whether nothing was copied yet
func (c *Clipboard) IsEmpty() bool {
	return c.frozen == nil
}

// Kind returns the kind of the held element
func (c *Clipboard) Kind() (graph.Kind, bool) {
	if c.frozen == nil {
		return 0, false
	}
	return c.frozen.Kind, true
}

// WasCut reports whether the content came from a cut
func (c *Clipboard) WasCut() bool {
	return c.cut
}

// Copy replaces the content with a snapshot of e anchored at the given position
func (c *Clipboard) Copy(e graph.Element, latE7, lonE7 int32) {
	c.frozen = graph.Freeze(e)
	c.latE7, c.lonE7 = latE7, lonE7
	c.cut = false
}

// Cut copies e and deletes it. Ways are deleted together with nodes no other
// way uses. Nothing is stored when the delete is refused.
func (c *Clipboard) Cut(d *graph.Delegator, e graph.Element, latE7, lonE7 int32) error {
	f := graph.Freeze(e)
	var err error
	switch v := e.(type) {
	case *graph.Node:
		err = d.RemoveNode(v)
	case *graph.Way:
		err = d.Erase(v, true)
	case *graph.Relation:
		err = d.EraseRelation(v)
	default:
		err = fmt.Errorf("cannot cut %T: %w", e, editerr.ErrInvariant)
	}
	if err != nil {
		return err
	}
	c.frozen = f
	c.latE7, c.lonE7 = latE7, lonE7
	c.cut = true
	return nil
}

// Paste inserts a fresh copy translated by the offset between the anchor and
// the given position
func (c *Clipboard) Paste(d *graph.Delegator, latE7, lonE7 int32) (graph.Element, error) {
	if c.frozen == nil {
		return nil, fmt.Errorf("clipboard is empty: %w", editerr.ErrInvariant)
	}
	dLat := int64(latE7) - int64(c.latE7)
	dLon := int64(lonE7) - int64(c.lonE7)
	if dLon < math.MinInt32 || dLon > math.MaxInt32 {
		return nil, fmt.Errorf("paste offset %d,%d: %w", dLat, dLon, editerr.ErrGeometry)
	}
	return d.Paste(c.frozen, int32(dLat), int32(dLon))
}
