package graph

import (
	"cmp"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/logger"
)

// MemberRef is an unresolved relation member as read from a data source
type MemberRef struct {
	Kind Kind
	Ref  int64
	Role string
}

type rawNode struct {
	id, version int64
	lat, lon    int32
	tags        map[string]string
	state       State
}

type rawWay struct {
	id, version int64
	nodeIDs     []int64
	tags        map[string]string
	state       State
}

type rawRelation struct {
	id, version int64
	members     []MemberRef
	tags        map[string]string
	state       State
}

// BuildStats counts references dropped while resolving a Builder
type BuildStats struct {
	Nodes, Ways, Relations int
	MissingWayNodes        int
	DroppedWays            int
	MissingMembers         int
}

// Builder collects raw elements from parsers and resolves them into a Storage.
// Adding an element with an id already present replaces the earlier record.
type Builder struct {
	nodes     map[int64]*rawNode
	ways      map[int64]*rawWay
	relations map[int64]*rawRelation
	box       *geo.BoundingBox
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{
		nodes:     make(map[int64]*rawNode),
		ways:      make(map[int64]*rawWay),
		relations: make(map[int64]*rawRelation),
	}
}

// AddNode records a node
func (b *Builder) AddNode(id int64, version int, latE7, lonE7 int32, tags map[string]string, state State) {
	b.nodes[id] = &rawNode{id: id, version: int64(version), lat: latE7, lon: lonE7, tags: tags, state: state}
}

// AddWay records a way with its node ids
func (b *Builder) AddWay(id int64, version int, nodeIDs []int64, tags map[string]string, state State) {
	b.ways[id] = &rawWay{id: id, version: int64(version), nodeIDs: nodeIDs, tags: tags, state: state}
}

// AddRelation records a relation with unresolved members
func (b *Builder) AddRelation(id int64, version int, members []MemberRef, tags map[string]string, state State) {
	b.relations[id] = &rawRelation{id: id, version: int64(version), members: members, tags: tags, state: state}
}

// MarkDeleted flags a recorded element as deleted; unknown keys are ignored
func (b *Builder) MarkDeleted(key Key) {
	switch key.Kind {
	case KindNode:
		if n := b.nodes[key.ID]; n != nil {
			n.state = deletedState(n.id)
			if n.state == StateCreated {
				delete(b.nodes, key.ID)
			}
		}
	case KindWay:
		if w := b.ways[key.ID]; w != nil {
			w.state = deletedState(w.id)
			if w.state == StateCreated {
				delete(b.ways, key.ID)
			}
		}
	case KindRelation:
		if r := b.relations[key.ID]; r != nil {
			r.state = deletedState(r.id)
			if r.state == StateCreated {
				delete(b.relations, key.ID)
			}
		}
	}
}

// Has reports whether an element with key was recorded
func (b *Builder) Has(key Key) bool {
	switch key.Kind {
	case KindNode:
		return b.nodes[key.ID] != nil
	case KindWay:
		return b.ways[key.ID] != nil
	case KindRelation:
		return b.relations[key.ID] != nil
	}
	return false
}

// deletedState returns StateCreated for never-uploaded ids, which are dropped instead of kept
func deletedState(id int64) State {
	if id < 0 {
		return StateCreated
	}
	return StateDeleted
}

// SetBounds records the original download box, growing any box already set
func (b *Builder) SetBounds(box *geo.BoundingBox) {
	if box == nil {
		return
	}
	if b.box == nil {
		b.box = box.Copy()
		return
	}
	b.box.Union(box)
}

// Len returns the number of recorded elements
func (b *Builder) Len() int {
	return len(b.nodes) + len(b.ways) + len(b.relations)
}

// Merge copies every record of o into b; records of o win on id clashes
func (b *Builder) Merge(o *Builder) {
	maps.Copy(b.nodes, o.nodes)
	maps.Copy(b.ways, o.ways)
	maps.Copy(b.relations, o.relations)
	b.SetBounds(o.box)
}

// Build resolves references and returns the storage. Missing way nodes are
// dropped, ways left with fewer than two nodes are dropped, and relation
// members that cannot be resolved are dropped.
func (b *Builder) Build() (*Storage, BuildStats) {
	s := NewStorage()
	s.originalBox = b.box
	var stats BuildStats

	live := func(st State) bool { return st != StateDeleted }

	nodes := make(map[int64]*Node, len(b.nodes))
	for _, id := range sortedKeys(b.nodes) {
		rn := b.nodes[id]
		n := NewNode(rn.id, int(rn.version), rn.lat, rn.lon, rn.tags, rn.state)
		nodes[id] = n
		if live(rn.state) {
			s.putLive(n)
		} else {
			s.deleted[n.Key()] = n
		}
	}

	for _, id := range sortedKeys(b.ways) {
		rw := b.ways[id]
		w := NewWay(rw.id, int(rw.version), rw.tags, rw.state)
		for _, ref := range rw.nodeIDs {
			n := nodes[ref]
			if n == nil || (live(rw.state) && !live(n.state)) {
				stats.MissingWayNodes++
				continue
			}
			w.nodes = append(w.nodes, n)
		}
		w.nodes = collapseAdjacent(w.nodes)
		if !live(rw.state) {
			s.deleted[w.Key()] = w
			continue
		}
		if len(w.nodes) < 2 {
			stats.DroppedWays++
			continue
		}
		s.add(w)
	}

	rels := make(map[int64]*Relation, len(b.relations))
	for _, id := range sortedKeys(b.relations) {
		rr := b.relations[id]
		r := NewRelation(rr.id, int(rr.version), rr.tags, rr.state)
		rels[id] = r
		if live(rr.state) {
			s.putLive(r)
		} else {
			s.deleted[r.Key()] = r
		}
	}
	for _, id := range sortedKeys(b.relations) {
		rr := b.relations[id]
		r := rels[id]
		for _, m := range rr.members {
			var e Element
			switch m.Kind {
			case KindNode:
				if n := s.nodes[m.Ref]; n != nil {
					e = n
				}
			case KindWay:
				if w := s.ways[m.Ref]; w != nil {
					e = w
				}
			case KindRelation:
				if o := s.relations[m.Ref]; o != nil {
					e = o
				}
			}
			if e == nil {
				stats.MissingMembers++
				continue
			}
			r.members = append(r.members, Member{Element: e, Role: m.Role})
			if live(rr.state) {
				e.base().addParent(r)
			}
		}
	}

	stats.Nodes, stats.Ways, stats.Relations = len(s.nodes), len(s.ways), len(s.relations)
	if stats.MissingWayNodes+stats.DroppedWays+stats.MissingMembers > 0 {
		logger.Get().Debug("Dropped unresolved references",
			zap.Int("way_nodes", stats.MissingWayNodes),
			zap.Int("ways", stats.DroppedWays),
			zap.Int("members", stats.MissingMembers))
	}
	return s, stats
}

// ToBuilder dumps the storage, tombstones included, into a new builder
func (s *Storage) ToBuilder() *Builder {
	b := NewBuilder()
	b.SetBounds(s.originalBox)
	addAll := func(e Element) {
		base := e.base()
		switch v := e.(type) {
		case *Node:
			b.AddNode(v.id, base.version, v.lat, v.lon, base.tags, base.state)
		case *Way:
			ids := make([]int64, len(v.nodes))
			for i, n := range v.nodes {
				ids[i] = n.id
			}
			b.AddWay(v.id, base.version, ids, base.tags, base.state)
		case *Relation:
			refs := make([]MemberRef, len(v.members))
			for i, m := range v.members {
				refs[i] = MemberRef{Kind: m.Element.Kind(), Ref: m.Element.ID(), Role: m.Role}
			}
			b.AddRelation(v.id, base.version, refs, base.tags, base.state)
		}
	}
	for _, n := range s.nodes {
		addAll(n)
	}
	for _, w := range s.ways {
		addAll(w)
	}
	for _, r := range s.relations {
		addAll(r)
	}
	for _, e := range s.deleted {
		addAll(e)
	}
	return b
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, cmp.Compare[int64])
	return keys
}
