package graph

import (
	"fmt"
	"math"
	"slices"

	"github.com/wegman-software/osmedit/internal/editerr"
	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/tagging"
)

// RemoveNode deletes n. It is removed from every way and relation; ways left
// with fewer than two nodes are deleted as well. A closed way stays closed
// while three distinct nodes remain and is deleted otherwise.
func (d *Delegator) RemoveNode(n *Node) error {
	if err := d.requireLive(n); err != nil {
		return d.failed("delete node", err)
	}
	d.begin("delete node")
	d.removeNode(n)
	return d.end()
}

func (d *Delegator) removeNode(n *Node) {
	for _, w := range d.storage.WaysContaining(n) {
		closed := w.IsClosed()
		nodes := slices.DeleteFunc(slices.Clone(w.nodes), func(o *Node) bool { return o == n })
		nodes = collapseAdjacent(nodes)
		if closed {
			if len(nodes) > 1 && nodes[0] == nodes[len(nodes)-1] {
				nodes = nodes[:len(nodes)-1]
			}
			if distinct(nodes) < 3 {
				d.eraseWay(w)
				continue
			}
			nodes = append(nodes, nodes[0])
		}
		if len(nodes) < 2 {
			d.eraseWay(w)
			continue
		}
		d.setWayNodes(w, nodes)
	}
	d.detachFromRelations(n)
	d.retire(n)
}

func distinct(nodes []*Node) int {
	seen := make(map[*Node]struct{}, len(nodes))
	for _, n := range nodes {
		seen[n] = struct{}{}
	}
	return len(seen)
}

func (d *Delegator) eraseWay(w *Way) {
	d.detachFromRelations(w)
	d.retire(w)
}

// Erase deletes w. With alsoDeleteNodes every node of w that is in no other
// way afterwards is deleted too.
func (d *Delegator) Erase(w *Way, alsoDeleteNodes bool) error {
	if err := d.requireLive(w); err != nil {
		return d.failed("delete way", err)
	}
	d.begin("delete way")
	nodes := slices.Compact(slices.Clone(w.nodes))
	d.eraseWay(w)
	if alsoDeleteNodes {
		seen := make(map[*Node]bool, len(nodes))
		for _, n := range nodes {
			if seen[n] {
				continue
			}
			seen[n] = true
			if len(d.storage.waynodes[n]) == 0 {
				d.removeNode(n)
			}
		}
	}
	return d.end()
}

// copyMemberships adds repl right after every membership of orig
func (d *Delegator) copyMemberships(orig, repl Element) {
	for _, r := range orig.Parents() {
		var members []Member
		for _, m := range r.members {
			members = append(members, m)
			if m.Element == orig {
				members = append(members, Member{Element: repl, Role: m.Role})
			}
		}
		d.setMembers(r, members)
	}
}

// newWayLike inserts a created way with w's tags and memberships
func (d *Delegator) newWayLike(w *Way, nodes []*Node) *Way {
	nw := d.factory.CreateWay()
	nw.tags = w.tags.Clone()
	d.save(nw)
	nw.nodes = nodes
	d.storage.add(nw)
	d.copyMemberships(w, nw)
	return nw
}

// SplitAtNode splits the open way w at an interior node. w keeps the part up
// to n; the returned new way holds the rest and carries the same tags and
// relation memberships.
func (d *Delegator) SplitAtNode(w *Way, n *Node) (*Way, error) {
	if err := d.requireLive(w, n); err != nil {
		return nil, d.failed("split way", err)
	}
	if w.IsClosed() {
		return nil, d.failed("split way", fmt.Errorf("way %d is closed: %w", w.id, editerr.ErrInvariant))
	}
	i := -1
	for j := 1; j < len(w.nodes)-1; j++ {
		if w.nodes[j] == n {
			i = j
			break
		}
	}
	if i < 0 {
		return nil, d.failed("split way", fmt.Errorf("node %d is not inside way %d: %w", n.id, w.id, editerr.ErrInvariant))
	}

	d.begin("split way")
	head := slices.Clone(w.nodes[:i+1])
	tail := slices.Clone(w.nodes[i:])
	d.setWayNodes(w, head)
	nw := d.newWayLike(w, tail)
	return nw, d.end()
}

// ClosedWaySplit splits the closed way w at a and b into two open ways. w keeps
// the section running forward from the earlier of the two nodes.
func (d *Delegator) ClosedWaySplit(w *Way, a, b *Node) (*Way, error) {
	if err := d.requireLive(w, a, b); err != nil {
		return nil, d.failed("split closed way", err)
	}
	if !w.IsClosed() {
		return nil, d.failed("split closed way", fmt.Errorf("way %d is not closed: %w", w.id, editerr.ErrInvariant))
	}
	ring := w.nodes[:len(w.nodes)-1]
	i, j := slices.Index(ring, a), slices.Index(ring, b)
	if i < 0 || j < 0 || a == b {
		return nil, d.failed("split closed way", fmt.Errorf("need two distinct nodes of way %d: %w", w.id, editerr.ErrInvariant))
	}
	if i > j {
		i, j = j, i
	}

	d.begin("split closed way")
	first := slices.Clone(ring[i : j+1])
	second := append(slices.Clone(ring[j:]), ring[:i+1]...)
	d.setWayNodes(w, first)
	nw := d.newWayLike(w, second)
	return nw, d.end()
}

// Merge joins w2 onto w1 at a shared endpoint. w1 survives and keeps its
// direction; w2 is reversed when needed and deleted. The tags must be
// mergeable (one side empty or both equal), and a w2 carrying a oneway tag is never reversed.
func (d *Delegator) Merge(w1, w2 *Way) error {
	if err := d.requireLive(w1, w2); err != nil {
		return d.failed("merge ways", err)
	}
	if w1 == w2 || w1.IsClosed() || w2.IsClosed() {
		return d.failed("merge ways", fmt.Errorf("ways %d and %d cannot be merged: %w", w1.id, w2.id, editerr.ErrInvariant))
	}

	var merged []*Node
	reversed := false
	n1, n2 := w1.nodes, w2.nodes
	switch {
	case w1.LastNode() == w2.FirstNode():
		merged = append(slices.Clone(n1), n2[1:]...)
	case w1.LastNode() == w2.LastNode():
		r := reversedNodes(n2)
		merged = append(slices.Clone(n1), r[1:]...)
		reversed = true
	case w1.FirstNode() == w2.LastNode():
		merged = append(slices.Clone(n2[:len(n2)-1]), n1...)
	case w1.FirstNode() == w2.FirstNode():
		r := reversedNodes(n2)
		merged = append(r[:len(r)-1], n1...)
		reversed = true
	default:
		return d.failed("merge ways", fmt.Errorf("ways %d and %d share no endpoint: %w", w1.id, w2.id, editerr.ErrInvariant))
	}

	if !tagging.Mergeable(w1.tags, w2.tags) {
		return d.failed("merge ways", fmt.Errorf("ways %d and %d: %w", w1.id, w2.id, editerr.ErrMergeTagConflict))
	}
	if reversed && d.rules.HasOneway(w2.tags) {
		return d.failed("merge ways", fmt.Errorf("way %d would be reversed against its oneway tag: %w", w2.id, editerr.ErrMergeTagConflict))
	}

	d.begin("merge ways")
	d.setWayNodes(w1, merged)
	if len(w1.tags) == 0 {
		d.setTags(w1, w2.tags.Clone())
	}
	d.replaceMember(w2, w1)
	d.retire(w2)
	return d.end()
}

// Join connects n to target. A node target absorbs n: tags are combined, and
// every way and relation using n uses target instead. A way target gets n
// snapped onto its nearest segment.
func (d *Delegator) Join(target Element, n *Node) error {
	if err := d.requireLive(target, n); err != nil {
		return d.failed("join", err)
	}
	switch t := target.(type) {
	case *Node:
		return d.joinNodes(t, n)
	case *Way:
		return d.joinWay(t, n)
	}
	return d.failed("join", fmt.Errorf("cannot join to %s: %w", target.Key(), editerr.ErrInvariant))
}

func (d *Delegator) joinNodes(target, n *Node) error {
	if target == n {
		return d.failed("join", fmt.Errorf("node %d joined to itself: %w", n.id, editerr.ErrInvariant))
	}
	tags, ok := tagging.Union(target.tags, n.tags)
	if !ok {
		return d.failed("join", fmt.Errorf("nodes %d and %d: %w", target.id, n.id, editerr.ErrMergeTagConflict))
	}

	d.begin("join")
	for _, w := range d.storage.WaysContaining(n) {
		nodes := slices.Clone(w.nodes)
		for i := range nodes {
			if nodes[i] == n {
				nodes[i] = target
			}
		}
		nodes = collapseAdjacent(nodes)
		if len(nodes) < 2 {
			d.eraseWay(w)
			continue
		}
		d.setWayNodes(w, nodes)
	}
	d.replaceMember(n, target)
	d.setTags(target, tags)
	d.retire(n)
	return d.end()
}

func (d *Delegator) joinWay(w *Way, n *Node) error {
	if w.HasNode(n) {
		return d.failed("join", fmt.Errorf("node %d is already in way %d: %w", n.id, w.id, editerr.ErrInvariant))
	}
	best, bestDist := -1, math.Inf(1)
	var bestX, bestY float64
	x, y := float64(n.lon), float64(n.lat)
	for i := 0; i+1 < len(w.nodes); i++ {
		a, b := w.nodes[i], w.nodes[i+1]
		px, py := geo.ClosestPointOnSegment(x, y, float64(a.lon), float64(a.lat), float64(b.lon), float64(b.lat))
		if dist := math.Hypot(px-x, py-y); dist < bestDist {
			best, bestDist, bestX, bestY = i, dist, px, py
		}
	}

	d.begin("join")
	lat, lon := int32(math.Round(bestY)), int32(math.Round(bestX))
	if lat != n.lat || lon != n.lon {
		d.save(n)
		n.lat, n.lon = lat, lon
		d.markModified(n)
	}
	d.setWayNodes(w, slices.Insert(slices.Clone(w.nodes), best+1, n))
	return d.end()
}

// Unjoin gives every way sharing n, except the first, its own copy of n at the
// same position
func (d *Delegator) Unjoin(n *Node) error {
	if err := d.requireLive(n); err != nil {
		return d.failed("unjoin", err)
	}
	ways := d.storage.WaysContaining(n)
	if len(ways) < 2 {
		return d.failed("unjoin", fmt.Errorf("node %d is not shared: %w", n.id, editerr.ErrInvariant))
	}

	d.begin("unjoin")
	for _, w := range ways[1:] {
		nn := d.factory.CreateNode(n.lat, n.lon)
		d.save(nn)
		d.storage.add(nn)
		nodes := slices.Clone(w.nodes)
		for i := range nodes {
			if nodes[i] == n {
				nodes[i] = nn
			}
		}
		d.setWayNodes(w, nodes)
	}
	return d.end()
}

// Reverse flips the node order of w. It refuses ways whose direction is
// intrinsic unless force is set. The result reports whether w carries a
// oneway tag the caller may want to adjust.
func (d *Delegator) Reverse(w *Way, force bool) (bool, error) {
	if err := d.requireLive(w); err != nil {
		return false, d.failed("reverse way", err)
	}
	if !force && d.rules.IsNotReversible(w.tags) {
		return false, d.failed("reverse way", fmt.Errorf("way %d: %w", w.id, editerr.ErrNotReversible))
	}
	d.begin("reverse way")
	d.setWayNodes(w, reversedNodes(w.nodes))
	return d.rules.HasOneway(w.tags), d.end()
}

func reversedNodes(nodes []*Node) []*Node {
	r := slices.Clone(nodes)
	slices.Reverse(r)
	return r
}
