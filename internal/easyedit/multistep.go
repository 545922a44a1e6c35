package easyedit

import (
	"errors"
	"slices"

	"github.com/wegman-software/osmedit/internal/editerr"
	"github.com/wegman-software/osmedit/internal/graph"
)

func nodesAsElements(nodes []*graph.Node) []graph.Element {
	out := make([]graph.Element, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out
}

func waysAsElements(ways []*graph.Way) []graph.Element {
	out := make([]graph.Element, len(ways))
	for i, w := range ways {
		out[i] = w
	}
	return out
}

// WaySplitting waits for the node to split the way at
type WaySplitting struct {
	baseState
	way *graph.Way
}

// NewWaySplitting creates the state splitting w
func NewWaySplitting(w *graph.Way) *WaySplitting {
	return &WaySplitting{way: w}
}

func (*WaySplitting) Name() string { return "WaySplitting" }

func (s *WaySplitting) Enter(m *Manager) {
	m.logic.ClearSelection()
	m.logic.SetSelectedWay(s.way)
	nodes := s.way.Nodes()
	if s.way.IsClosed() {
		nodes = nodes[:len(nodes)-1]
	} else {
		nodes = nodes[1 : len(nodes)-1]
	}
	m.logic.SetClickableElements(nodesAsElements(nodes))
}

func (s *WaySplitting) Exit(m *Manager) {
	m.logic.SetClickableElements(nil)
	m.logic.SetSelectedWay(nil)
}

func (s *WaySplitting) ElementClick(m *Manager, e graph.Element) bool {
	n, ok := e.(*graph.Node)
	if !ok || !s.way.HasNode(n) {
		return true
	}
	if s.way.IsClosed() {
		m.Start(NewClosedWaySplit(s.way, n))
		return true
	}
	if _, err := m.logic.PerformSplitWay(s.way, n); err != nil {
		m.report(err)
		return true
	}
	m.Finish()
	return true
}

// ClosedWaySplit waits for the second node of a closed way split
type ClosedWaySplit struct {
	baseState
	way   *graph.Way
	first *graph.Node
}

// NewClosedWaySplit creates the state splitting the closed way w at first and a node still to pick
func NewClosedWaySplit(w *graph.Way, first *graph.Node) *ClosedWaySplit {
	return &ClosedWaySplit{way: w, first: first}
}

func (*ClosedWaySplit) Name() string { return "ClosedWaySplit" }

func (s *ClosedWaySplit) Enter(m *Manager) {
	m.logic.ClearSelection()
	m.logic.SetSelectedWay(s.way)
	m.logic.SetSelectedNode(s.first)
	nodes := slices.DeleteFunc(s.way.Nodes(), func(n *graph.Node) bool { return n == s.first })
	m.logic.SetClickableElements(nodesAsElements(nodes))
}

func (s *ClosedWaySplit) Exit(m *Manager) {
	m.logic.SetClickableElements(nil)
	m.logic.ClearSelection()
}

func (s *ClosedWaySplit) ElementClick(m *Manager, e graph.Element) bool {
	n, ok := e.(*graph.Node)
	if !ok || n == s.first || !s.way.HasNode(n) {
		return true
	}
	if _, err := m.logic.PerformClosedWaySplit(s.way, s.first, n); err != nil {
		m.report(err)
		return true
	}
	m.Finish()
	return true
}

// WayMerging waits for the way to merge into the subject way
type WayMerging struct {
	baseState
	way *graph.Way
}

// NewWayMerging creates the state merging into w
func NewWayMerging(w *graph.Way) *WayMerging {
	return &WayMerging{way: w}
}

func (*WayMerging) Name() string { return "WayMerging" }

func (s *WayMerging) Enter(m *Manager) {
	m.logic.ClearSelection()
	m.logic.SetSelectedWay(s.way)
	m.logic.SetClickableElements(waysAsElements(FindMergeableWays(m.logic.Storage(), s.way)))
}

func (s *WayMerging) Exit(m *Manager) {
	m.logic.SetClickableElements(nil)
	m.logic.SetSelectedWay(nil)
}

func (s *WayMerging) ElementClick(m *Manager, e graph.Element) bool {
	other, ok := e.(*graph.Way)
	if !ok || other == s.way {
		return true
	}
	if err := m.logic.PerformMerge(s.way, other); err != nil {
		m.report(err)
		m.Finish()
		if errors.Is(err, editerr.ErrMergeTagConflict) {
			m.editTags(s.way, "")
		}
		return true
	}
	m.Start(NewWaySelected(s.way))
	return true
}

// WayAppending waits for the end node to continue the way from
type WayAppending struct {
	baseState
	way *graph.Way
}

// NewWayAppending creates the state appending to w
func NewWayAppending(w *graph.Way) *WayAppending {
	return &WayAppending{way: w}
}

func (*WayAppending) Name() string { return "WayAppending" }

func (s *WayAppending) Enter(m *Manager) {
	m.logic.ClearSelection()
	m.logic.SetSelectedWay(s.way)
	m.logic.SetClickableElements(nodesAsElements(FindAppendableNodes(s.way)))
}

func (s *WayAppending) Exit(m *Manager) {
	m.logic.SetClickableElements(nil)
	m.logic.SetSelectedWay(nil)
}

func (s *WayAppending) ElementClick(m *Manager, e graph.Element) bool {
	n, ok := e.(*graph.Node)
	if !ok || !slices.Contains(FindAppendableNodes(s.way), n) {
		return true
	}
	m.Start(NewPathAppend(n, s.way))
	return true
}

// RestrictionFrom waits for the via element of a turn restriction
type RestrictionFrom struct {
	baseState
	from *graph.Way
}

// NewRestrictionFrom starts a restriction from w
func NewRestrictionFrom(w *graph.Way) *RestrictionFrom {
	return &RestrictionFrom{from: w}
}

func (*RestrictionFrom) Name() string { return "RestrictionFrom" }

func (s *RestrictionFrom) vias(m *Manager) []graph.Element {
	return FindViaElements(m.logic.Storage(), m.logic.Delegator().Rules(), s.from)
}

func (s *RestrictionFrom) Enter(m *Manager) {
	m.logic.ClearSelection()
	m.logic.SetSelectedWay(s.from)
	m.logic.SetClickableElements(s.vias(m))
}

func (s *RestrictionFrom) Exit(m *Manager) {
	m.logic.SetClickableElements(nil)
	m.logic.SetSelectedWay(nil)
}

func (s *RestrictionFrom) ElementClick(m *Manager, e graph.Element) bool {
	if slices.Contains(s.vias(m), e) {
		m.Start(NewRestrictionVia(s.from, e))
	}
	return true
}

// RestrictionVia waits for the to way of a turn restriction
type RestrictionVia struct {
	baseState
	from *graph.Way
	via  graph.Element
}

// NewRestrictionVia continues a restriction from w over via
func NewRestrictionVia(from *graph.Way, via graph.Element) *RestrictionVia {
	return &RestrictionVia{from: from, via: via}
}

func (*RestrictionVia) Name() string { return "RestrictionVia" }

func (s *RestrictionVia) targets(m *Manager) []*graph.Way {
	st := m.logic.Storage()
	rules := m.logic.Delegator().Rules()
	switch v := s.via.(type) {
	case *graph.Node:
		return FindToElements(st, rules, s.from, v)
	case *graph.Way:
		// Continue from the end of the via way that does not touch from
		far := v.LastNode()
		if s.from.IsEndNode(far) {
			far = v.FirstNode()
		}
		return slices.DeleteFunc(FindToElements(st, rules, v, far), func(w *graph.Way) bool { return w == s.from })
	}
	return nil
}

func (s *RestrictionVia) Enter(m *Manager) {
	m.logic.ClearSelection()
	m.logic.SetSelectedWay(s.from)
	m.logic.SetClickableElements(waysAsElements(s.targets(m)))
}

func (s *RestrictionVia) Exit(m *Manager) {
	m.logic.SetClickableElements(nil)
	m.logic.SetSelectedWay(nil)
}

func (s *RestrictionVia) ElementClick(m *Manager, e graph.Element) bool {
	to, ok := e.(*graph.Way)
	if ok && slices.Contains(s.targets(m), to) {
		m.Start(NewRestrictionTo(s.from, s.via, to))
	}
	return true
}

// RestrictionTo creates the restriction and hands it to the tag editor
type RestrictionTo struct {
	baseState
	from *graph.Way
	via  graph.Element
	to   *graph.Way
}

// NewRestrictionTo completes a restriction
func NewRestrictionTo(from *graph.Way, via graph.Element, to *graph.Way) *RestrictionTo {
	return &RestrictionTo{from: from, via: via, to: to}
}

func (*RestrictionTo) Name() string { return "RestrictionTo" }

func (s *RestrictionTo) Enter(m *Manager) {
	r, err := m.logic.CreateRestriction(s.from, s.via, s.to)
	if err != nil {
		m.report(err)
		m.Finish()
		return
	}
	m.editTags(r, "restriction")
	m.Start(NewRelationSelected(r))
}

// AddRelationMember collects elements for a new relation. Leaving the state
// creates the relation from the collected members.
type AddRelationMember struct {
	baseState
	members []graph.Member
}

// NewAddRelationMember starts collecting members with e
func NewAddRelationMember(e graph.Element) *AddRelationMember {
	return &AddRelationMember{members: []graph.Member{{Element: e}}}
}

func (*AddRelationMember) Name() string { return "AddRelationMember" }

func (s *AddRelationMember) Enter(m *Manager) {
	m.logic.ClearSelection()
}

func (s *AddRelationMember) ElementClick(m *Manager, e graph.Element) bool {
	if !slices.ContainsFunc(s.members, func(o graph.Member) bool { return o.Element == e }) {
		s.members = append(s.members, graph.Member{Element: e})
	}
	return true
}

func (s *AddRelationMember) Menu(*Manager) []string {
	if len(s.members) == 0 {
		return nil
	}
	return []string{MenuRevert}
}

func (s *AddRelationMember) Action(m *Manager, item string) error {
	if item != MenuRevert {
		return ErrNoSuchAction
	}
	s.members = s.members[:len(s.members)-1]
	return nil
}

func (s *AddRelationMember) Exit(m *Manager) {
	if len(s.members) == 0 {
		return
	}
	r, err := m.logic.CreateRelation(s.members)
	if err != nil {
		m.report(err)
		return
	}
	m.editTags(r, "")
}
