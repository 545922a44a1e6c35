// Package graph holds the in-memory OSM element graph and the delegator that
// performs every undoable edit on it.
package graph

import (
	"fmt"
	"slices"

	"github.com/wegman-software/osmedit/internal/tagging"
)

// Kind identifies the element variant
type Kind int

const (
	KindNode Kind = iota
	KindWay
	KindRelation
)

// String returns the OSM name of the kind
func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindWay:
		return "way"
	case KindRelation:
		return "relation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses "node", "way" or "relation"
func ParseKind(s string) (Kind, error) {
	switch s {
	case "node", "n":
		return KindNode, nil
	case "way", "w":
		return KindWay, nil
	case "relation", "r":
		return KindRelation, nil
	}
	return 0, fmt.Errorf("unknown element kind %q", s)
}

// State is the change state of an element relative to the server copy
type State int

const (
	StateUnchanged State = iota
	StateCreated
	StateModified
	StateDeleted
)

// String returns the lower-case state name
func (s State) String() string {
	switch s {
	case StateUnchanged:
		return "unchanged"
	case StateCreated:
		return "created"
	case StateModified:
		return "modified"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Key identifies an element across kinds
type Key struct {
	Kind Kind
	ID   int64
}

// String returns the key as "kind/id"
func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Kind, k.ID)
}

// Element is implemented by *Node, *Way and *Relation
type Element interface {
	ID() int64
	Kind() Kind
	Key() Key
	Version() int
	State() State
	// Tags returns the element's tag map; callers must not modify it
	Tags() tagging.Tags
	HasTag(key string) bool
	// Parents returns the relations the element is a member of
	Parents() []*Relation
	base() *element
}

type element struct {
	id      int64
	version int
	state   State
	tags    tagging.Tags
	parents []*Relation
}

func (e *element) ID() int64 { return e.id }
func (e *element) Version() int { return e.version }
func (e *element) State() State { return e.state }
func (e *element) Tags() tagging.Tags { return e.tags }
func (e *element) HasTag(key string) bool { return e.tags.Has(key) }
func (e *element) base() *element { return e }

func (e *element) Parents() []*Relation {
	return slices.Clone(e.parents)
}

func (e *element) addParent(r *Relation) {
	if !slices.Contains(e.parents, r) {
		e.parents = append(e.parents, r)
	}
}

func (e *element) removeParent(r *Relation) {
	e.parents = slices.DeleteFunc(e.parents, func(p *Relation) bool { return p == r })
}

// Node is a point element
type Node struct {
	element
	lat, lon int32
}

// Kind returns KindNode
func (n *Node) Kind() Kind { return KindNode }

// Key returns the node's key
func (n *Node) Key() Key { return Key{KindNode, n.id} }

// LatE7 returns the latitude in E7 units
func (n *Node) LatE7() int32 { return n.lat }

// LonE7 returns the longitude in E7 units
func (n *Node) LonE7() int32 { return n.lon }

// NewNode builds a node as read from a data source
func NewNode(id int64, version int, latE7, lonE7 int32, tags map[string]string, state State) *Node {
	return &Node{
		element: element{id: id, version: version, state: state, tags: tagging.Sanitize(tags)},
		lat:     latE7,
		lon:     lonE7,
	}
}

// Way is an ordered list of nodes
type Way struct {
	element
	nodes []*Node
}

// Kind returns KindWay
func (w *Way) Kind() Kind { return KindWay }

// Key returns the way's key
func (w *Way) Key() Key { return Key{KindWay, w.id} }

// Nodes returns a copy of the node list
func (w *Way) Nodes() []*Node { return slices.Clone(w.nodes) }

// NodeCount returns the number of node references, the closing node included
func (w *Way) NodeCount() int { return len(w.nodes) }

// NodeAt returns the i-th node reference
func (w *Way) NodeAt(i int) *Node { return w.nodes[i] }

// FirstNode returns the first node or nil
func (w *Way) FirstNode() *Node {
	if len(w.nodes) == 0 {
		return nil
	}
	return w.nodes[0]
}

// LastNode returns the last node or nil
func (w *Way) LastNode() *Node {
	if len(w.nodes) == 0 {
		return nil
	}
	return w.nodes[len(w.nodes)-1]
}

// IsClosed reports whether first and last node are the same
func (w *Way) IsClosed() bool {
	return len(w.nodes) > 1 && w.nodes[0] == w.nodes[len(w.nodes)-1]
}

// HasNode reports whether n is part of the way
func (w *Way) HasNode(n *Node) bool {
	return slices.Contains(w.nodes, n)
}

// IsEndNode reports whether n is the first or last node
func (w *Way) IsEndNode(n *Node) bool {
	return n != nil && (w.FirstNode() == n || w.LastNode() == n)
}

func (w *Way) indexOf(n *Node) int {
	return slices.Index(w.nodes, n)
}

// NewWay builds an empty way as read from a data source; nodes are attached by the Builder
func NewWay(id int64, version int, tags map[string]string, state State) *Way {
	return &Way{element: element{id: id, version: version, state: state, tags: tagging.Sanitize(tags)}}
}

// Member is one entry of a relation's member list
type Member struct {
	Element Element
	Role    string
}

// Relation groups elements with roles
type Relation struct {
	element
	members []Member
}

// Kind returns KindRelation
func (r *Relation) Kind() Kind { return KindRelation }

// Key returns the relation's key
func (r *Relation) Key() Key { return Key{KindRelation, r.id} }

// Members returns a copy of the member list
func (r *Relation) Members() []Member { return slices.Clone(r.members) }

// MemberCount returns the number of members
func (r *Relation) MemberCount() int { return len(r.members) }

// HasMember reports whether e is a member in any role
func (r *Relation) HasMember(e Element) bool {
	return slices.ContainsFunc(r.members, func(m Member) bool { return m.Element == e })
}

// MembersWithRole returns the members carrying role
func (r *Relation) MembersWithRole(role string) []Element {
	var out []Element
	for _, m := range r.members {
		if m.Role == role {
			out = append(out, m.Element)
		}
	}
	return out
}

// NewRelation builds an empty relation as read from a data source
func NewRelation(id int64, version int, tags map[string]string, state State) *Relation {
	return &Relation{element: element{id: id, version: version, state: state, tags: tagging.Sanitize(tags)}}
}

// collapseAdjacent removes consecutive duplicate nodes
func collapseAdjacent(nodes []*Node) []*Node {
	return slices.Compact(nodes)
}
