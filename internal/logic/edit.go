package logic

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"

	"github.com/wegman-software/osmedit/internal/editerr"
	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/logger"
)

// run wraps fn in a named checkpoint, rolling everything back when fn fails
func (l *Logic) run(name string, fn func(d *graph.Delegator) error) error {
	d := l.delegator
	d.BeginCheckpoint(name)
	if err := fn(d); err != nil {
		d.RollbackCheckpoint()
		return err
	}
	if err := d.EndCheckpoint(); err != nil {
		return err
	}
	l.renderer.Invalidate()
	return nil
}

// clickedNodeOrWayNode returns the node under (x, y). Without one, a click on
// way segments creates a node at the nearest point of the closest segment and
// inserts it into every clicked way. Returns nil when nothing was hit.
func (l *Logic) clickedNodeOrWayNode(d *graph.Delegator, x, y float64) (*graph.Node, error) {
	if n := l.ClickedNode(x, y); n != nil {
		return n, nil
	}
	hits := l.clickedSegments(x, y)
	if len(hits) == 0 {
		return nil, nil
	}
	best := hits[0]
	for _, h := range hits[1:] {
		if h.dist < best.dist {
			best = h
		}
	}
	nodes := best.way.Nodes()
	x1, y1 := l.ScreenPosition(nodes[best.index])
	x2, y2 := l.ScreenPosition(nodes[best.index+1])
	px, py := geo.ClosestPointOnSegment(x, y, x1, y1, x2, y2)

	n, err := l.newNode(d, px, py)
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		prev := h.way.NodeAt(h.index)
		if err := d.AddNodeToWayAfter(prev, n, h.way); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (l *Logic) newNode(d *graph.Delegator, x, y float64) (*graph.Node, error) {
	lat, lon := l.toLatLon(x, y)
	n := d.Factory().CreateNode(lat, lon)
	if err := d.InsertElement(n); err != nil {
		return nil, err
	}
	return n, nil
}

// PerformAdd handles a click while drawing. Without a selected node it
// selects the clicked node or creates one. With a selected node, clicking it
// again finishes; any other click adds a node and extends the selected way,
// starting a new way when none is selected. Everything runs in one "add"
// checkpoint.
func (l *Logic) PerformAdd(x, y float64) error {
	if !l.IsEditable() {
		return ErrNotEditable
	}
	prevNode, prevWay := l.selectedNode, l.selectedWay
	var node *graph.Node
	way := prevWay
	err := l.run("add", func(d *graph.Delegator) error {
		n, err := l.clickedNodeOrWayNode(d, x, y)
		if err != nil {
			return err
		}
		if prevNode == nil {
			if n == nil {
				if n, err = l.newNode(d, x, y); err != nil {
					return err
				}
			}
			node = n
			return nil
		}
		if n == prevNode {
			return nil
		}
		if n == nil {
			if n, err = l.newNode(d, x, y); err != nil {
				return err
			}
		}
		if way == nil {
			if way, err = d.CreateAndInsertWay(prevNode); err != nil {
				return err
			}
			if err := d.AddNodeToWay(n, way); err != nil {
				return err
			}
		} else if err := d.AppendNodeToWay(prevNode, n, way); err != nil {
			return err
		}
		node = n
		return nil
	})
	if err != nil {
		return err
	}
	if node == nil {
		// Clicked the selected node again
		l.selectedNode, l.selectedWay = nil, nil
	} else {
		l.selectedNode, l.selectedWay = node, way
	}
	l.renderer.Invalidate()
	return nil
}

// PerformAppendStart prepares appending to a way ending at n. The selected way
// is preferred when n ends it.
func (l *Logic) PerformAppendStart(n *graph.Node) error {
	var way *graph.Way
	for _, w := range l.Storage().WaysContaining(n) {
		if w.IsClosed() || !w.IsEndNode(n) {
			continue
		}
		if way == nil || w == l.selectedWay {
			way = w
		}
	}
	if way == nil {
		return fmt.Errorf("node %d does not end an open way: %w", n.ID(), editerr.ErrInvariant)
	}
	l.selectedNode, l.selectedWay = n, way
	l.renderer.Invalidate()
	return nil
}

// PerformAppendAppend extends the selected way at the selected end node.
// Clicking the end node itself finishes appending.
func (l *Logic) PerformAppendAppend(x, y float64) error {
	if l.selectedNode == nil || l.selectedWay == nil {
		return fmt.Errorf("nothing to append to: %w", editerr.ErrInvariant)
	}
	return l.PerformAdd(x, y)
}

// PerformSplit splits every open way that passes through n, and returns the new ways
func (l *Logic) PerformSplit(n *graph.Node) ([]*graph.Way, error) {
	var created []*graph.Way
	err := l.run("split", func(d *graph.Delegator) error {
		for _, w := range l.Storage().WaysContaining(n) {
			if w.IsClosed() || w.IsEndNode(n) {
				continue
			}
			nw, err := d.SplitAtNode(w, n)
			if err != nil {
				return err
			}
			created = append(created, nw)
		}
		if len(created) == 0 {
			return fmt.Errorf("no way to split at node %d: %w", n.ID(), editerr.ErrInvariant)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.ClearSelection()
	return created, nil
}

// PerformSplitWay splits w at n and returns the new way
func (l *Logic) PerformSplitWay(w *graph.Way, n *graph.Node) (*graph.Way, error) {
	nw, err := l.delegator.SplitAtNode(w, n)
	if err != nil {
		return nil, err
	}
	l.ClearSelection()
	return nw, nil
}

// PerformClosedWaySplit splits the closed way w at a and b
func (l *Logic) PerformClosedWaySplit(w *graph.Way, a, b *graph.Node) (*graph.Way, error) {
	nw, err := l.delegator.ClosedWaySplit(w, a, b)
	if err != nil {
		return nil, err
	}
	l.ClearSelection()
	return nw, nil
}

// PerformMerge merges w2 into w1 and selects the result
func (l *Logic) PerformMerge(w1, w2 *graph.Way) error {
	if err := l.delegator.Merge(w1, w2); err != nil {
		return err
	}
	l.ClearSelection()
	l.SetSelectedWay(w1)
	return nil
}

// PerformJoin joins n onto target, a node or a way
func (l *Logic) PerformJoin(target graph.Element, n *graph.Node) error {
	if err := l.delegator.Join(target, n); err != nil {
		return err
	}
	if l.selectedNode == n && !l.delegator.Exists(n) {
		l.selectedNode = nil
	}
	l.renderer.Invalidate()
	return nil
}

// PerformUnjoin gives every way sharing n its own node
func (l *Logic) PerformUnjoin(n *graph.Node) error {
	if err := l.delegator.Unjoin(n); err != nil {
		return err
	}
	l.renderer.Invalidate()
	return nil
}

// PerformReverse reverses w. The result reports a oneway tag the caller may
// want to flip.
func (l *Logic) PerformReverse(w *graph.Way, force bool) (bool, error) {
	oneway, err := l.delegator.Reverse(w, force)
	if err != nil {
		return false, err
	}
	l.renderer.Invalidate()
	return oneway, nil
}

// PerformEraseNode deletes n
func (l *Logic) PerformEraseNode(n *graph.Node) error {
	if err := l.delegator.RemoveNode(n); err != nil {
		return err
	}
	l.dropStaleSelection()
	return nil
}

// PerformEraseWay deletes w, optionally with nodes no other way uses
func (l *Logic) PerformEraseWay(w *graph.Way, alsoDeleteNodes bool) error {
	if err := l.delegator.Erase(w, alsoDeleteNodes); err != nil {
		return err
	}
	l.dropStaleSelection()
	return nil
}

// PerformEraseRelation deletes r
func (l *Logic) PerformEraseRelation(r *graph.Relation) error {
	if err := l.delegator.EraseRelation(r); err != nil {
		return err
	}
	l.dropStaleSelection()
	return nil
}

// PerformErase deletes the node nearest to (x, y)
func (l *Logic) PerformErase(x, y float64) error {
	n := l.ClickedNode(x, y)
	if n == nil {
		return nil
	}
	return l.PerformEraseNode(n)
}

func (l *Logic) dropStaleSelection() {
	if l.selectedNode != nil && !l.delegator.Exists(l.selectedNode) {
		l.selectedNode = nil
	}
	if l.selectedWay != nil && !l.delegator.Exists(l.selectedWay) {
		l.selectedWay = nil
	}
	if l.selectedRelation != nil && !l.delegator.Exists(l.selectedRelation) {
		l.SetSelectedRelation(nil)
	}
	l.renderer.Invalidate()
}

// SetTags replaces the tags of e
func (l *Logic) SetTags(e graph.Element, tags map[string]string) error {
	if err := l.delegator.InsertTags(e, tags); err != nil {
		return err
	}
	l.renderer.Invalidate()
	return nil
}

// CreateRestriction creates a turn restriction and selects it
func (l *Logic) CreateRestriction(from *graph.Way, via graph.Element, to *graph.Way) (*graph.Relation, error) {
	r, err := l.delegator.CreateRestriction(from, via, to)
	if err != nil {
		return nil, err
	}
	l.ClearSelection()
	l.SetSelectedRelation(r)
	return r, nil
}

// CreateRelation creates an untyped relation with members
func (l *Logic) CreateRelation(members []graph.Member) (*graph.Relation, error) {
	r, err := l.delegator.CreateRelation("", members)
	if err != nil {
		return nil, err
	}
	l.renderer.Invalidate()
	return r, nil
}

// anchor returns the position the clipboard remembers for e
func (l *Logic) anchor(e graph.Element) (latE7, lonE7 int32) {
	if lat, lon, ok := graph.Freeze(e).Center(); ok {
		return lat, lon
	}
	return l.viewBox.Center()
}

// CopyToClipboard copies e
func (l *Logic) CopyToClipboard(e graph.Element) {
	lat, lon := l.anchor(e)
	l.clipboard.Copy(e, lat, lon)
}

// CutToClipboard copies e and deletes it
func (l *Logic) CutToClipboard(e graph.Element) error {
	lat, lon := l.anchor(e)
	if err := l.clipboard.Cut(l.delegator, e, lat, lon); err != nil {
		return err
	}
	l.dropStaleSelection()
	return nil
}

// PasteFromClipboard inserts the clipboard content centred at (x, y)
func (l *Logic) PasteFromClipboard(x, y float64) (graph.Element, error) {
	lat, lon := l.toLatLon(x, y)
	e, err := l.clipboard.Paste(l.delegator, lat, lon)
	if err != nil {
		return nil, err
	}
	l.renderer.Invalidate()
	return e, nil
}

// PerformRotate rotates the nodes of w by angle radians, clockwise on screen,
// around the centroid of a closed way or the bounds centre of an open one
func (l *Logic) PerformRotate(w *graph.Way, angle float64) error {
	if !l.delegator.Exists(w) {
		return fmt.Errorf("way %d is not in storage: %w", w.ID(), editerr.ErrInvariant)
	}
	nodes := w.Nodes()
	line := make(orb.LineString, len(nodes))
	for i, n := range nodes {
		x, y := l.ScreenPosition(n)
		line[i] = orb.Point{x, y}
	}
	var c orb.Point
	if w.IsClosed() && len(nodes) > 3 {
		c, _ = planar.CentroidArea(orb.Polygon{orb.Ring(line)})
	} else {
		c = line.Bound().Center()
	}

	sin, cos := math.Sincos(angle)
	return l.run("rotate", func(d *graph.Delegator) error {
		done := make(map[*graph.Node]bool, len(nodes))
		for i, n := range nodes {
			if done[n] {
				continue
			}
			done[n] = true
			dx, dy := line[i][0]-c[0], line[i][1]-c[1]
			lat, lon := l.toLatLon(c[0]+dx*cos-dy*sin, c[1]+dx*sin+dy*cos)
			if err := d.UpdateLatLon(n, lat, lon); err != nil {
				return err
			}
		}
		logger.Get().Debug("Rotated way", zap.Int64("id", w.ID()), zap.Float64("angle", angle))
		return nil
	})
}
