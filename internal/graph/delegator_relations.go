package graph

import (
	"fmt"
	"slices"

	"github.com/wegman-software/osmedit/internal/editerr"
	"github.com/wegman-software/osmedit/internal/tagging"
)

// Member roles of turn restrictions
const (
	RoleFrom = "from"
	RoleVia  = "via"
	RoleTo   = "to"
)

// setMembers replaces the member list of r and keeps back-references symmetric
func (d *Delegator) setMembers(r *Relation, members []Member) {
	d.save(r)
	for _, m := range r.members {
		if !slices.ContainsFunc(members, func(o Member) bool { return o.Element == m.Element }) {
			d.save(m.Element)
			m.Element.base().removeParent(r)
		}
	}
	for _, m := range members {
		if !slices.Contains(m.Element.base().parents, r) {
			d.save(m.Element)
			m.Element.base().addParent(r)
		}
	}
	r.members = members
	d.markModified(r)
}

// detachFromRelations removes every membership of e
func (d *Delegator) detachFromRelations(e Element) {
	for _, r := range e.Parents() {
		d.setMembers(r, slices.DeleteFunc(r.Members(), func(m Member) bool { return m.Element == e }))
	}
}

// replaceMember swaps old for repl in every relation containing old; when repl is
// already a member of a relation, old's entries there are dropped instead
func (d *Delegator) replaceMember(old, repl Element) {
	for _, r := range old.Parents() {
		already := r.HasMember(repl)
		var members []Member
		for _, m := range r.members {
			if m.Element == old {
				if already {
					continue
				}
				m.Element = repl
			}
			members = append(members, m)
		}
		d.setMembers(r, members)
	}
}

// CreateRelation creates a relation with the given members; a non-empty relType
// becomes its type tag
func (d *Delegator) CreateRelation(relType string, members []Member) (*Relation, error) {
	for _, m := range members {
		if err := d.requireLive(m.Element); err != nil {
			return nil, d.failed("create relation", err)
		}
	}
	r := d.factory.CreateRelation()
	if relType != "" {
		r.tags = tagging.Tags{"type": relType}
	}
	d.begin("create relation")
	d.save(r)
	d.storage.add(r)
	d.setMembers(r, slices.Clone(members))
	return r, d.end()
}

// AddMember appends e to r with role
func (d *Delegator) AddMember(r *Relation, e Element, role string) error {
	if err := d.requireLive(r, e); err != nil {
		return d.failed("add member", err)
	}
	if Element(r) == e {
		return d.failed("add member", fmt.Errorf("relation %d cannot contain itself: %w", r.id, editerr.ErrInvariant))
	}
	d.begin("add member")
	d.setMembers(r, append(r.Members(), Member{Element: e, Role: role}))
	return d.end()
}

// EraseRelation deletes r, detaching its members and removing it from parent relations
func (d *Delegator) EraseRelation(r *Relation) error {
	if err := d.requireLive(r); err != nil {
		return d.failed("delete relation", err)
	}
	d.begin("delete relation")
	d.setMembers(r, nil)
	d.detachFromRelations(r)
	d.retire(r)
	return d.end()
}

// CreateRestriction creates a type=restriction relation. A via node must end
// both ways; a via way must connect an end of from with an end of to.
func (d *Delegator) CreateRestriction(from *Way, via Element, to *Way) (*Relation, error) {
	if err := d.requireLive(from, via, to); err != nil {
		return nil, d.failed("create restriction", err)
	}
	switch v := via.(type) {
	case *Node:
		if !from.IsEndNode(v) || !to.IsEndNode(v) {
			return nil, d.failed("create restriction", fmt.Errorf("node %d does not end both ways: %w", v.id, editerr.ErrInvariant))
		}
	case *Way:
		first, last := v.FirstNode(), v.LastNode()
		forward := from.IsEndNode(first) && to.IsEndNode(last)
		backward := from.IsEndNode(last) && to.IsEndNode(first)
		if !forward && !backward {
			return nil, d.failed("create restriction", fmt.Errorf("way %d does not connect the ways: %w", v.id, editerr.ErrInvariant))
		}
	default:
		return nil, d.failed("create restriction", fmt.Errorf("via must be a node or way: %w", editerr.ErrInvariant))
	}
	d.begin("create restriction")
	r, err := d.CreateRelation("restriction", []Member{
		{Element: from, Role: RoleFrom},
		{Element: via, Role: RoleVia},
		{Element: to, Role: RoleTo},
	})
	if err != nil {
		d.abort()
		return nil, err
	}
	return r, d.end()
}
