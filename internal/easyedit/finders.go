package easyedit

import (
	"slices"

	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/tagging"
)

// FindMergeableWays returns the open ways ending at an end of w whose tags are
// empty or equal to those of w
func FindMergeableWays(s *graph.Storage, w *graph.Way) []*graph.Way {
	if w.IsClosed() {
		return nil
	}
	var out []*graph.Way
	for _, end := range []*graph.Node{w.FirstNode(), w.LastNode()} {
		for _, o := range s.WaysContaining(end) {
			if o == w || o.IsClosed() || !o.IsEndNode(end) || slices.Contains(out, o) {
				continue
			}
			if tagging.Mergeable(w.Tags(), o.Tags()) {
				out = append(out, o)
			}
		}
	}
	return out
}

// FindAppendableNodes returns the end nodes of an open way
func FindAppendableNodes(w *graph.Way) []*graph.Node {
	if w.IsClosed() {
		return nil
	}
	return []*graph.Node{w.FirstNode(), w.LastNode()}
}

// FindViaElements returns candidate via elements for a restriction from w:
// each end node of w where another restricted way ends, followed by those ways.
// Ways that cannot carry restrictions yield nothing.
func FindViaElements(s *graph.Storage, rules *tagging.Rules, w *graph.Way) []graph.Element {
	if !rules.IsRestrictable(w.Tags()) {
		return nil
	}
	var nodes, ways []graph.Element
	for _, end := range FindAppendableNodes(w) {
		found := false
		for _, o := range s.WaysContaining(end) {
			if o == w || !o.IsEndNode(end) || !rules.IsRestrictable(o.Tags()) {
				continue
			}
			found = true
			if !slices.Contains(ways, graph.Element(o)) {
				ways = append(ways, o)
			}
		}
		if found {
			nodes = append(nodes, end)
		}
	}
	return append(nodes, ways...)
}

// FindToElements returns the restricted ways other than from that end at common
func FindToElements(s *graph.Storage, rules *tagging.Rules, from *graph.Way, common *graph.Node) []*graph.Way {
	var out []*graph.Way
	for _, o := range s.WaysContaining(common) {
		if o != from && o.IsEndNode(common) && rules.IsRestrictable(o.Tags()) {
			out = append(out, o)
		}
	}
	return out
}
