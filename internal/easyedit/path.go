package easyedit

import (
	"github.com/wegman-software/osmedit/internal/graph"
)

// LongClick is entered by a long press on the map. A following short click
// draws a path from the pressed point.
type LongClick struct {
	baseState
	x, y float64
}

// NewLongClick creates the state for a long press at (x, y)
func NewLongClick(x, y float64) *LongClick {
	return &LongClick{x: x, y: y}
}

func (*LongClick) Name() string { return "LongClick" }

func (s *LongClick) Enter(m *Manager) {
	m.logic.ClearSelection()
	m.crosshair, m.crossX, m.crossY = true, s.x, s.y
}

func (s *LongClick) Exit(m *Manager) {
	m.crosshair = false
}

func (s *LongClick) Click(m *Manager, x, y float64) bool {
	m.Start(NewPathCreation(s.x, s.y))
	return m.Current().Click(m, x, y)
}

func (s *LongClick) Menu(m *Manager) []string {
	items := []string{MenuNewBug, MenuNewNode, MenuNewWay}
	if !m.logic.Clipboard().IsEmpty() {
		items = append(items, MenuPaste)
	}
	return items
}

func (s *LongClick) Action(m *Manager, item string) error {
	l := m.logic
	switch item {
	case MenuNewBug:
		bug := l.MakeNewBug(s.x, s.y)
		if bug.Comment = m.ui.EditBug(bug); bug.Comment != "" {
			m.bugs = append(m.bugs, bug)
		}
		m.Finish()
	case MenuNewNode:
		if err := l.PerformAdd(s.x, s.y); err != nil {
			m.Finish()
			return err
		}
		n := l.SelectedNode()
		m.editTags(n, "")
		m.Start(NewNodeSelected(n))
	case MenuNewWay:
		m.Start(NewPathCreation(s.x, s.y))
	case MenuPaste:
		e, err := l.PasteFromClipboard(s.x, s.y)
		if err != nil {
			m.Finish()
			return err
		}
		m.Start(selectionFor(e))
	default:
		return ErrNoSuchAction
	}
	return nil
}

type pathStep struct {
	node *graph.Node
	way  *graph.Way
}

// PathCreation adds nodes with every click. Clicking the last added node
// finishes; the tag editor then opens for the new way.
type PathCreation struct {
	baseState
	startX, startY float64
	hasStart       bool

	appendNode *graph.Node
	appendWay  *graph.Way

	history     []pathStep
	createdWay  *graph.Way
	createdNode *graph.Node
}

// NewPathCreation starts a new path at (x, y)
func NewPathCreation(x, y float64) *PathCreation {
	return &PathCreation{startX: x, startY: y, hasStart: true}
}

// NewPathAppend continues an existing way from its end node n. A nil way picks
// any open way ending at n.
func NewPathAppend(n *graph.Node, w *graph.Way) *PathCreation {
	return &PathCreation{appendNode: n, appendWay: w}
}

func (*PathCreation) Name() string { return "PathCreation" }

func (s *PathCreation) Enter(m *Manager) {
	l := m.logic
	l.ClearSelection()
	if s.appendNode != nil {
		l.SetSelectedWay(s.appendWay)
		if err := l.PerformAppendStart(s.appendNode); err != nil {
			m.report(err)
			m.Finish()
		}
		return
	}
	if s.hasStart {
		s.add(m, s.startX, s.startY)
	}
}

func (s *PathCreation) add(m *Manager, x, y float64) {
	l := m.logic
	d := l.Delegator()
	before := pathStep{l.SelectedNode(), l.SelectedWay()}
	rev := d.Revision()

	if err := l.PerformAdd(x, y); err != nil {
		m.report(err)
		return
	}
	if d.Revision() != rev {
		s.history = append(s.history, before)
	}
	if n := l.SelectedNode(); n != nil && s.createdNode == nil && s.appendNode == nil && n.State() == graph.StateCreated {
		s.createdNode = n
	}
	if w := l.SelectedWay(); w != nil && s.appendNode == nil {
		s.createdWay = w
	}
	if l.SelectedNode() == nil {
		m.Finish()
	}
}

func (s *PathCreation) Click(m *Manager, x, y float64) bool {
	s.add(m, x, y)
	return true
}

func (s *PathCreation) Menu(m *Manager) []string {
	if len(s.history) == 0 {
		return nil
	}
	return []string{MenuUndo}
}

func (s *PathCreation) Action(m *Manager, item string) error {
	if item != MenuUndo {
		return ErrNoSuchAction
	}
	s.Undo(m)
	return nil
}

// Undo removes the last added node and selects the previous one. Undoing the
// first node ends path creation.
func (s *PathCreation) Undo(m *Manager) string {
	l := m.logic
	if len(s.history) == 0 {
		m.Finish()
		return ""
	}
	step := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	name := l.Undo()

	d := l.Delegator()
	if step.node == nil || !d.Exists(step.node) {
		l.ClearSelection()
		m.Finish()
		return name
	}
	l.SetSelectedNode(step.node)
	if step.way != nil && d.Exists(step.way) {
		l.SetSelectedWay(step.way)
	} else {
		l.SetSelectedWay(nil)
	}
	return name
}

func (s *PathCreation) Exit(m *Manager) {
	l := m.logic
	d := l.Delegator()
	l.ClearSelection()
	switch {
	case s.createdWay != nil && d.Exists(s.createdWay):
		m.editTags(s.createdWay, "")
	case s.createdNode != nil && d.Exists(s.createdNode) && len(l.Storage().WaysContaining(s.createdNode)) == 0:
		m.editTags(s.createdNode, "")
	}
}
