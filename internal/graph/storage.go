package graph

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/wegman-software/osmedit/internal/editerr"
	"github.com/wegman-software/osmedit/internal/geo"
)

// Storage owns every live element plus the tombstones of deleted server elements.
// Only the Delegator mutates it.
type Storage struct {
	nodes     map[int64]*Node
	ways      map[int64]*Way
	relations map[int64]*Relation
	// waynodes indexes the ways containing each node, in insertion order
	waynodes map[*Node][]*Way
	// deleted holds elements with positive ids retired by an edit
	deleted map[Key]Element

	originalBox *geo.BoundingBox
}

// NewStorage creates an empty storage
func NewStorage() *Storage {
	return &Storage{
		nodes:     make(map[int64]*Node),
		ways:      make(map[int64]*Way),
		relations: make(map[int64]*Relation),
		waynodes:  make(map[*Node][]*Way),
		deleted:   make(map[Key]Element),
	}
}

// GetNode returns the live node with id, or nil
func (s *Storage) GetNode(id int64) *Node { return s.nodes[id] }

// GetWay returns the live way with id, or nil
func (s *Storage) GetWay(id int64) *Way { return s.ways[id] }

// GetRelation returns the live relation with id, or nil
func (s *Storage) GetRelation(id int64) *Relation { return s.relations[id] }

// Get returns the live element for key, or nil
func (s *Storage) Get(key Key) Element {
	switch key.Kind {
	case KindNode:
		if n := s.nodes[key.ID]; n != nil {
			return n
		}
	case KindWay:
		if w := s.ways[key.ID]; w != nil {
			return w
		}
	case KindRelation:
		if r := s.relations[key.ID]; r != nil {
			return r
		}
	}
	return nil
}

// Contains reports whether e itself is live in this storage
func (s *Storage) Contains(e Element) bool {
	if e == nil {
		return false
	}
	return s.Get(e.Key()) == e
}

// Nodes returns the live nodes ordered by id
func (s *Storage) Nodes() []*Node { return sortedByID(s.nodes) }

// Ways returns the live ways ordered by id
func (s *Storage) Ways() []*Way { return sortedByID(s.ways) }

// Relations returns the live relations ordered by id
func (s *Storage) Relations() []*Relation { return sortedByID(s.relations) }

// Deleted returns the tombstones ordered by kind and id
func (s *Storage) Deleted() []Element {
	out := slices.Collect(maps.Values(s.deleted))
	slices.SortFunc(out, compareElements)
	return out
}

// NodeCount returns the number of live nodes
func (s *Storage) NodeCount() int { return len(s.nodes) }

// WayCount returns the number of live ways
func (s *Storage) WayCount() int { return len(s.ways) }

// RelationCount returns the number of live relations
func (s *Storage) RelationCount() int { return len(s.relations) }

// WaysContaining returns the ways that reference n
func (s *Storage) WaysContaining(n *Node) []*Way {
	return slices.Clone(s.waynodes[n])
}

// IsEndNode reports whether n is the first or last node of any way
func (s *Storage) IsEndNode(n *Node) bool {
	for _, w := range s.waynodes[n] {
		if w.IsEndNode(n) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether there are no live elements
func (s *Storage) IsEmpty() bool {
	return len(s.nodes) == 0 && len(s.ways) == 0 && len(s.relations) == 0
}

// OriginalBox returns the downloaded area, or nil when unknown
func (s *Storage) OriginalBox() *geo.BoundingBox { return s.originalBox }

// SetOriginalBox records the downloaded area
func (s *Storage) SetOriginalBox(box *geo.BoundingBox) { s.originalBox = box }

// ContainsPoint reports whether the point lies in the original box.
// Without an original box every point counts as inside.
func (s *Storage) ContainsPoint(latE7, lonE7 int32) bool {
	if s.originalBox == nil {
		return true
	}
	return s.originalBox.IsIn(latE7, lonE7)
}

// putLive adds e to the live sets without touching the way index
func (s *Storage) putLive(e Element) {
	switch v := e.(type) {
	case *Node:
		s.nodes[v.id] = v
	case *Way:
		s.ways[v.id] = v
	case *Relation:
		s.relations[v.id] = v
	}
}

// dropLive removes e from the live sets without touching the way index
func (s *Storage) dropLive(e Element) {
	switch v := e.(type) {
	case *Node:
		delete(s.nodes, v.id)
		delete(s.waynodes, v)
	case *Way:
		delete(s.ways, v.id)
	case *Relation:
		delete(s.relations, v.id)
	}
}

func (s *Storage) add(e Element) {
	s.putLive(e)
	if w, ok := e.(*Way); ok {
		s.indexWay(w)
	}
}

func (s *Storage) remove(e Element) {
	if w, ok := e.(*Way); ok {
		s.unindexWay(w)
	}
	s.dropLive(e)
}

func (s *Storage) indexWay(w *Way) {
	for _, n := range w.nodes {
		if !slices.Contains(s.waynodes[n], w) {
			s.waynodes[n] = append(s.waynodes[n], w)
		}
	}
}

func (s *Storage) unindexWay(w *Way) {
	for _, n := range w.nodes {
		ways := slices.DeleteFunc(s.waynodes[n], func(o *Way) bool { return o == w })
		if len(ways) == 0 {
			delete(s.waynodes, n)
		} else {
			s.waynodes[n] = ways
		}
	}
}

func (s *Storage) hasID(key Key) bool {
	if s.Get(key) != nil {
		return true
	}
	_, ok := s.deleted[key]
	return ok
}

// Validate checks the graph invariants and returns the first violation
func (s *Storage) Validate() error {
	for _, w := range s.ways {
		if len(w.nodes) < 2 {
			return fmt.Errorf("way %d has %d nodes: %w", w.id, len(w.nodes), editerr.ErrInvariant)
		}
		for i, n := range w.nodes {
			if s.nodes[n.id] != n {
				return fmt.Errorf("way %d references missing node %d: %w", w.id, n.id, editerr.ErrInvariant)
			}
			if i > 0 && w.nodes[i-1] == n {
				return fmt.Errorf("way %d repeats node %d: %w", w.id, n.id, editerr.ErrInvariant)
			}
			if !slices.Contains(s.waynodes[n], w) {
				return fmt.Errorf("node %d is not indexed for way %d: %w", n.id, w.id, editerr.ErrInvariant)
			}
		}
	}
	for n, ways := range s.waynodes {
		for _, w := range ways {
			if s.ways[w.id] != w || !w.HasNode(n) {
				return fmt.Errorf("stale index entry node %d -> way %d: %w", n.id, w.id, editerr.ErrInvariant)
			}
		}
	}
	for _, r := range s.relations {
		for _, m := range r.members {
			if !s.Contains(m.Element) {
				return fmt.Errorf("relation %d references missing %s: %w", r.id, m.Element.Key(), editerr.ErrInvariant)
			}
			if !slices.Contains(m.Element.base().parents, r) {
				return fmt.Errorf("%s lacks back-reference to relation %d: %w", m.Element.Key(), r.id, editerr.ErrInvariant)
			}
		}
	}
	check := func(e Element) error {
		for _, p := range e.base().parents {
			if !s.Contains(p) || !p.HasMember(e) {
				return fmt.Errorf("%s has stale parent relation %d: %w", e.Key(), p.id, editerr.ErrInvariant)
			}
		}
		if e.State() == StateDeleted {
			return fmt.Errorf("%s is live but flagged deleted: %w", e.Key(), editerr.ErrInvariant)
		}
		return nil
	}
	for _, n := range s.nodes {
		if err := check(n); err != nil {
			return err
		}
	}
	for _, w := range s.ways {
		if err := check(w); err != nil {
			return err
		}
	}
	for _, r := range s.relations {
		if err := check(r); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy sharing no element with s.
// Background writers serialize the copy while editing continues.
func (s *Storage) Clone() *Storage {
	c := NewStorage()
	if s.originalBox != nil {
		c.originalBox = s.originalBox.Copy()
	}

	size := len(s.nodes) + len(s.ways) + len(s.relations) + len(s.deleted)
	mapped := make(map[Element]Element, size)
	copyBase := func(e *element) element {
		return element{id: e.id, version: e.version, state: e.state, tags: e.tags.Clone()}
	}
	all := make([]Element, 0, size)
	for _, n := range s.nodes {
		all = append(all, n)
	}
	for _, w := range s.ways {
		all = append(all, w)
	}
	for _, r := range s.relations {
		all = append(all, r)
	}
	for _, e := range s.deleted {
		all = append(all, e)
	}

	// First pass: allocate copies
	for _, e := range all {
		switch v := e.(type) {
		case *Node:
			mapped[v] = &Node{element: copyBase(&v.element), lat: v.lat, lon: v.lon}
		case *Way:
			mapped[v] = &Way{element: copyBase(&v.element)}
		case *Relation:
			mapped[v] = &Relation{element: copyBase(&v.element)}
		}
	}
	lookup := func(e Element) Element {
		if m, ok := mapped[e]; ok {
			return m
		}
		// Referenced element outside both sets; copy it detached
		n, ok := e.(*Node)
		if !ok {
			return nil
		}
		cp := &Node{element: copyBase(&n.element), lat: n.lat, lon: n.lon}
		mapped[e] = cp
		return cp
	}

	// Second pass: references
	for _, e := range all {
		switch v := e.(type) {
		case *Way:
			cw := mapped[v].(*Way)
			cw.nodes = make([]*Node, 0, len(v.nodes))
			for _, n := range v.nodes {
				if cn, ok := lookup(n).(*Node); ok {
					cw.nodes = append(cw.nodes, cn)
				}
			}
		case *Relation:
			cr := mapped[v].(*Relation)
			for _, m := range v.members {
				if ce := lookup(m.Element); ce != nil {
					cr.members = append(cr.members, Member{Element: ce, Role: m.Role})
				}
			}
		}
		for _, p := range e.base().parents {
			if cp, ok := mapped[p].(*Relation); ok {
				mapped[e].base().parents = append(mapped[e].base().parents, cp)
			}
		}
	}

	for _, n := range s.nodes {
		c.putLive(mapped[n])
	}
	for _, w := range s.ways {
		c.add(mapped[w])
	}
	for _, r := range s.relations {
		c.putLive(mapped[r])
	}
	for k, e := range s.deleted {
		c.deleted[k] = mapped[e]
	}
	return c
}

func sortedByID[E Element](m map[int64]E) []E {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b E) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

func compareElements(a, b Element) int {
	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	return cmp.Compare(a.ID(), b.ID())
}
