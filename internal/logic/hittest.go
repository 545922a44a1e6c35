package logic

import (
	"cmp"
	"math"
	"slices"

	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/graph"
)

type nodeHit struct {
	node *graph.Node
	dist float64
}

// ClickedNodes returns the nodes within the node tolerance of (x, y), nearest
// first. Only nodes inside the downloaded area or already edited are
// candidates. Nothing is returned while the view is not editable.
func (l *Logic) ClickedNodes(x, y float64) []*graph.Node {
	if !l.IsEditable() {
		return nil
	}
	s := l.Storage()
	var hits []nodeHit
	for _, n := range s.Nodes() {
		if l.clickable != nil && !l.clickable[n] {
			continue
		}
		if n.State() == graph.StateUnchanged && !s.ContainsPoint(n.LatE7(), n.LonE7()) {
			continue
		}
		if d := math.Hypot(l.toX(n.LonE7())-x, l.toY(n.LatE7())-y); d <= l.cfg.NodeTolerance {
			hits = append(hits, nodeHit{n, d})
		}
	}
	slices.SortStableFunc(hits, func(a, b nodeHit) int { return cmp.Compare(a.dist, b.dist) })
	nodes := make([]*graph.Node, len(hits))
	for i, h := range hits {
		nodes[i] = h.node
	}
	return nodes
}

// ClickedNode returns the nearest clicked node, or nil
func (l *Logic) ClickedNode(x, y float64) *graph.Node {
	if nodes := l.ClickedNodes(x, y); len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

// segmentHit is the first segment of a way passing near the click point
type segmentHit struct {
	way   *graph.Way
	index int
	dist  float64
}

// clickedSegments returns, per way, the first segment within half the way
// tolerance of (x, y)
func (l *Logic) clickedSegments(x, y float64) []segmentHit {
	if !l.IsEditable() {
		return nil
	}
	tol := l.cfg.WayTolerance / 2
	var hits []segmentHit
	for _, w := range l.Storage().Ways() {
		if l.clickable != nil && !l.clickable[w] {
			continue
		}
		nodes := w.Nodes()
		x1, y1 := l.ScreenPosition(nodes[0])
		for i := 1; i < len(nodes); i++ {
			x2, y2 := l.ScreenPosition(nodes[i])
			if geo.IsBetween(x, x1, x2, tol) && geo.IsBetween(y, y1, y2, tol) {
				if d := geo.PointToSegmentDistance(x, y, x1, y1, x2, y2); d <= tol {
					hits = append(hits, segmentHit{w, i - 1, d})
					break
				}
			}
			x1, y1 = x2, y2
		}
	}
	return hits
}

// ClickedWays returns the ways with a segment near (x, y), ordered by id
func (l *Logic) ClickedWays(x, y float64) []*graph.Way {
	hits := l.clickedSegments(x, y)
	ways := make([]*graph.Way, len(hits))
	for i, h := range hits {
		ways[i] = h.way
	}
	return ways
}

// ClickedNodesAndWays returns the clicked nodes followed by the clicked ways
func (l *Logic) ClickedNodesAndWays(x, y float64) []graph.Element {
	var elems []graph.Element
	for _, n := range l.ClickedNodes(x, y) {
		elems = append(elems, n)
	}
	for _, w := range l.ClickedWays(x, y) {
		elems = append(elems, w)
	}
	return elems
}

// ClickedElements returns the clicked nodes and ways followed by the relations
// they belong to. Relations are left out while a clickable set is active.
func (l *Logic) ClickedElements(x, y float64) []graph.Element {
	elems := l.ClickedNodesAndWays(x, y)
	if l.clickable != nil {
		return elems
	}
	seen := make(map[*graph.Relation]bool)
	var rels []graph.Element
	for _, e := range elems {
		for _, r := range e.Parents() {
			if !seen[r] {
				seen[r] = true
				rels = append(rels, r)
			}
		}
	}
	return append(elems, rels...)
}
