package easyedit

import (
	"errors"

	"github.com/wegman-software/osmedit/internal/editerr"
	"github.com/wegman-software/osmedit/internal/graph"
)

// elementActions runs the menu items shared by every selection state
func elementActions(m *Manager, e graph.Element, item string) (bool, error) {
	l := m.logic
	switch item {
	case MenuTag:
		m.editTags(e, "")
	case MenuHistory:
		if url := l.HistoryURL(e); url != "" {
			m.ui.Notify(url)
		}
	case MenuCopy:
		l.CopyToClipboard(e)
		m.Finish()
	case MenuCut:
		if err := l.CutToClipboard(e); err != nil {
			return true, err
		}
		m.Finish()
	case MenuRelation:
		m.Start(NewAddRelationMember(e))
	default:
		return false, nil
	}
	return true, nil
}

// NodeSelected is active while a node is selected
type NodeSelected struct {
	baseState
	node *graph.Node
}

// NewNodeSelected creates the selection state for n
func NewNodeSelected(n *graph.Node) *NodeSelected {
	return &NodeSelected{node: n}
}

func (*NodeSelected) Name() string { return "NodeSelected" }

func (s *NodeSelected) subject() graph.Element { return s.node }

func (s *NodeSelected) Enter(m *Manager) {
	m.logic.ClearSelection()
	m.logic.SetSelectedNode(s.node)
}

func (s *NodeSelected) Exit(m *Manager) {
	m.logic.SetSelectedNode(nil)
}

func (s *NodeSelected) ElementClick(m *Manager, e graph.Element) bool {
	if e != graph.Element(s.node) {
		return false
	}
	m.editTags(s.node, "")
	return true
}

// joinTarget returns the nearest node or way at the node's position that is
// not yet connected to it
func (s *NodeSelected) joinTarget(m *Manager) graph.Element {
	x, y := m.logic.ScreenPosition(s.node)
	for _, e := range m.logic.ClickedNodesAndWays(x, y) {
		switch v := e.(type) {
		case *graph.Node:
			if v != s.node {
				return v
			}
		case *graph.Way:
			if !v.HasNode(s.node) {
				return v
			}
		}
	}
	return nil
}

func (s *NodeSelected) Menu(m *Manager) []string {
	items := []string{MenuTag, MenuDelete, MenuHistory, MenuCopy, MenuCut, MenuRelation}
	ways := m.logic.Storage().WaysContaining(s.node)
	for _, w := range ways {
		if !w.IsClosed() && w.IsEndNode(s.node) {
			items = append(items, MenuAppend)
			break
		}
	}
	if s.joinTarget(m) != nil {
		items = append(items, MenuJoin)
	}
	if len(ways) > 1 {
		items = append(items, MenuUnjoin)
	}
	return items
}

func (s *NodeSelected) Action(m *Manager, item string) error {
	if ok, err := elementActions(m, s.node, item); ok {
		return err
	}
	l := m.logic
	switch item {
	case MenuDelete:
		if err := l.PerformEraseNode(s.node); err != nil {
			return err
		}
		m.Finish()
	case MenuAppend:
		m.Start(NewPathAppend(s.node, nil))
	case MenuJoin:
		target := s.joinTarget(m)
		if err := l.PerformJoin(target, s.node); err != nil {
			if !errors.Is(err, editerr.ErrMergeTagConflict) {
				return err
			}
			m.report(err)
			m.editTags(target, "")
			return nil
		}
		m.Finish()
	case MenuUnjoin:
		if err := l.PerformUnjoin(s.node); err != nil {
			return err
		}
		m.Finish()
	default:
		return ErrNoSuchAction
	}
	return nil
}

// WaySelected is active while a way is selected
type WaySelected struct {
	baseState
	way *graph.Way
}

// NewWaySelected creates the selection state for w
func NewWaySelected(w *graph.Way) *WaySelected {
	return &WaySelected{way: w}
}

func (*WaySelected) Name() string { return "WaySelected" }

func (s *WaySelected) subject() graph.Element { return s.way }

func (s *WaySelected) Enter(m *Manager) {
	m.logic.ClearSelection()
	m.logic.SetSelectedWay(s.way)
}

func (s *WaySelected) Exit(m *Manager) {
	m.logic.SetSelectedWay(nil)
}

func (s *WaySelected) ElementClick(m *Manager, e graph.Element) bool {
	if e != graph.Element(s.way) {
		return false
	}
	m.editTags(s.way, "")
	return true
}

func (s *WaySelected) Menu(m *Manager) []string {
	st := m.logic.Storage()
	rules := m.logic.Delegator().Rules()
	items := []string{MenuTag, MenuDelete, MenuHistory, MenuReverse}
	if s.way.NodeCount() > 2 {
		items = append(items, MenuSplit)
	}
	if len(FindMergeableWays(st, s.way)) > 0 {
		items = append(items, MenuMerge)
	}
	if len(FindAppendableNodes(s.way)) > 0 {
		items = append(items, MenuAppend)
	}
	if len(FindViaElements(st, rules, s.way)) > 0 {
		items = append(items, MenuRestriction)
	}
	return append(items, MenuRotate, MenuCopy, MenuCut, MenuRelation)
}

func (s *WaySelected) Action(m *Manager, item string) error {
	if ok, err := elementActions(m, s.way, item); ok {
		return err
	}
	l := m.logic
	switch item {
	case MenuDelete:
		if err := l.PerformEraseWay(s.way, true); err != nil {
			return err
		}
		m.Finish()
	case MenuReverse:
		oneway, err := l.PerformReverse(s.way, false)
		if errors.Is(err, editerr.ErrNotReversible) && m.ui.Confirm("This way has an intrinsic direction. Reverse anyway?") {
			oneway, err = l.PerformReverse(s.way, true)
		}
		if err != nil {
			return err
		}
		if oneway {
			m.ui.Notify("The reversed way carries a oneway tag, check its direction")
		}
	case MenuSplit:
		m.Start(NewWaySplitting(s.way))
	case MenuMerge:
		m.Start(NewWayMerging(s.way))
	case MenuAppend:
		m.Start(NewWayAppending(s.way))
	case MenuRestriction:
		m.Start(NewRestrictionFrom(s.way))
	case MenuRotate:
		return l.PerformRotate(s.way, RotateStep)
	default:
		return ErrNoSuchAction
	}
	return nil
}

// RelationSelected is active while a relation is selected; its members are highlighted
type RelationSelected struct {
	baseState
	relation *graph.Relation
}

// NewRelationSelected creates the selection state for r
func NewRelationSelected(r *graph.Relation) *RelationSelected {
	return &RelationSelected{relation: r}
}

func (*RelationSelected) Name() string { return "RelationSelected" }

func (s *RelationSelected) subject() graph.Element { return s.relation }

func (s *RelationSelected) Enter(m *Manager) {
	m.logic.ClearSelection()
	m.logic.SetSelectedRelation(s.relation)
}

func (s *RelationSelected) Exit(m *Manager) {
	m.logic.SetSelectedRelation(nil)
}

func (s *RelationSelected) ElementClick(m *Manager, e graph.Element) bool {
	if e != graph.Element(s.relation) {
		return false
	}
	m.editTags(s.relation, "")
	return true
}

func (s *RelationSelected) Menu(*Manager) []string {
	return []string{MenuTag, MenuDelete}
}

func (s *RelationSelected) Action(m *Manager, item string) error {
	switch item {
	case MenuTag:
		m.editTags(s.relation, "")
	case MenuDelete:
		if err := m.logic.PerformEraseRelation(s.relation); err != nil {
			return err
		}
		m.Finish()
	default:
		return ErrNoSuchAction
	}
	return nil
}
