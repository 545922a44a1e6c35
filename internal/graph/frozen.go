package graph

import (
	"fmt"
	"slices"

	"github.com/wegman-software/osmedit/internal/editerr"
	"github.com/wegman-software/osmedit/internal/tagging"
)

// FrozenNode is a detached copy of a node
type FrozenNode struct {
	LatE7, LonE7 int32
	Tags         tagging.Tags
}

// FrozenMember is a relation member frozen by key and role
type FrozenMember struct {
	Key  Key
	Role string
}

// Frozen is a deep, detached copy of an element. Ways keep their node
// sequence as indexes into Nodes, so shared and closing nodes stay shared.
type Frozen struct {
	Kind    Kind
	Tags    tagging.Tags
	Nodes   []FrozenNode
	WayRefs []int
	Members []FrozenMember
}

// Freeze copies e
func Freeze(e Element) *Frozen {
	f := &Frozen{Kind: e.Kind(), Tags: e.Tags().Clone()}
	switch v := e.(type) {
	case *Node:
		f.Nodes = []FrozenNode{{LatE7: v.lat, LonE7: v.lon, Tags: v.tags.Clone()}}
	case *Way:
		index := make(map[*Node]int)
		for _, n := range v.nodes {
			i, ok := index[n]
			if !ok {
				i = len(f.Nodes)
				index[n] = i
				f.Nodes = append(f.Nodes, FrozenNode{LatE7: n.lat, LonE7: n.lon, Tags: n.tags.Clone()})
			}
			f.WayRefs = append(f.WayRefs, i)
		}
	case *Relation:
		for _, m := range v.members {
			f.Members = append(f.Members, FrozenMember{Key: m.Element.Key(), Role: m.Role})
		}
	}
	return f
}

// Center returns the mean position of the frozen nodes
func (f *Frozen) Center() (latE7, lonE7 int32, ok bool) {
	if len(f.Nodes) == 0 {
		return 0, 0, false
	}
	var lat, lon int64
	for _, n := range f.Nodes {
		lat += int64(n.LatE7)
		lon += int64(n.LonE7)
	}
	return int32(lat / int64(len(f.Nodes))), int32(lon / int64(len(f.Nodes))), true
}

// Paste inserts fresh copies of f shifted by the given deltas and returns the
// top-level element. Relation members are resolved against the live storage;
// members no longer present are skipped.
func (d *Delegator) Paste(f *Frozen, dLatE7, dLonE7 int32) (Element, error) {
	nodes := make([]*Node, len(f.Nodes))
	for i, fn := range f.Nodes {
		lat, lon := int64(fn.LatE7)+int64(dLatE7), int64(fn.LonE7)+int64(dLonE7)
		if lat < -900000000 || lat > 900000000 || lon < -1800000000 || lon > 1800000000 {
			return nil, d.failed("paste", fmt.Errorf("pasted position %d,%d: %w", lat, lon, editerr.ErrGeometry))
		}
		n := d.factory.CreateNode(int32(lat), int32(lon))
		n.tags = fn.Tags.Clone()
		nodes[i] = n
	}

	var members []Member
	if f.Kind == KindRelation {
		for _, fm := range f.Members {
			if e := d.storage.Get(fm.Key); e != nil {
				members = append(members, Member{Element: e, Role: fm.Role})
			}
		}
		if len(members) == 0 {
			return nil, d.failed("paste", fmt.Errorf("no member of the copied relation is left: %w", editerr.ErrInvariant))
		}
	}
	if f.Kind == KindWay && len(f.WayRefs) < 2 {
		return nil, d.failed("paste", fmt.Errorf("copied way has %d nodes: %w", len(f.WayRefs), editerr.ErrInvariant))
	}

	d.begin("paste")
	for _, n := range nodes {
		d.save(n)
		d.storage.add(n)
	}
	var result Element
	switch f.Kind {
	case KindNode:
		result = nodes[0]
	case KindWay:
		w := d.factory.CreateWay()
		w.tags = f.Tags.Clone()
		d.save(w)
		for _, i := range f.WayRefs {
			w.nodes = append(w.nodes, nodes[i])
		}
		w.nodes = slices.Compact(w.nodes)
		d.storage.add(w)
		result = w
	case KindRelation:
		r := d.factory.CreateRelation()
		r.tags = f.Tags.Clone()
		d.save(r)
		d.storage.add(r)
		d.setMembers(r, members)
		result = r
	}
	return result, d.end()
}
