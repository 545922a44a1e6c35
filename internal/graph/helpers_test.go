package graph

import (
	"fmt"
	"slices"
	"strings"
	"testing"
)

// buildDelegator resolves a builder filled by fn and checks the result is valid
func buildDelegator(t *testing.T, fn func(b *Builder)) *Delegator {
	t.Helper()
	b := NewBuilder()
	fn(b)
	s, _ := b.Build()
	if err := s.Validate(); err != nil {
		t.Fatalf("fixture is invalid: %v", err)
	}
	return NewDelegator(s, 0, nil)
}

// addLine adds nodes with the given ids on a horizontal line at latitude 48.0
func addLine(b *Builder, ids ...int64) {
	for _, id := range ids {
		b.AddNode(id, 1, 480000000, 75800000+int32(id)*1000, nil, StateUnchanged)
	}
}

func nodeIDs(w *Way) []int64 {
	ids := make([]int64, 0, len(w.nodes))
	for _, n := range w.nodes {
		ids = append(ids, n.id)
	}
	return ids
}

func mustValidate(t *testing.T, s *Storage) {
	t.Helper()
	if err := s.Validate(); err != nil {
		t.Fatalf("storage invalid: %v", err)
	}
}

// dump renders the storage in a canonical form for equality checks
func dump(s *Storage) string {
	var sb strings.Builder
	parents := func(e Element) []int64 {
		var ids []int64
		for _, p := range e.base().parents {
			ids = append(ids, p.id)
		}
		slices.Sort(ids)
		return ids
	}
	tags := func(e Element) string {
		var kv []string
		for _, k := range e.Tags().Keys() {
			kv = append(kv, k+"="+e.Tags()[k])
		}
		return strings.Join(kv, ",")
	}
	for _, n := range s.Nodes() {
		fmt.Fprintf(&sb, "n%d %d,%d %s [%s] %v\n", n.id, n.lat, n.lon, n.state, tags(n), parents(n))
	}
	for _, w := range s.Ways() {
		fmt.Fprintf(&sb, "w%d %v %s [%s] %v\n", w.id, nodeIDs(w), w.state, tags(w), parents(w))
	}
	for _, r := range s.Relations() {
		var ms []string
		for _, m := range r.members {
			ms = append(ms, fmt.Sprintf("%s:%s", m.Element.Key(), m.Role))
		}
		fmt.Fprintf(&sb, "r%d %v %s [%s] %v\n", r.id, ms, r.state, tags(r), parents(r))
	}
	for _, e := range s.Deleted() {
		fmt.Fprintf(&sb, "x %s %s\n", e.Key(), e.State())
	}
	for _, n := range s.Nodes() {
		var ws []int64
		for _, w := range s.waynodes[n] {
			ws = append(ws, w.id)
		}
		slices.Sort(ws)
		fmt.Fprintf(&sb, "i%d %v\n", n.id, ws)
	}
	return sb.String()
}
