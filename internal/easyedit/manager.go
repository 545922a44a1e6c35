// Package easyedit drives multi-step edit gestures as a stack of states on
// top of the editor logic.
package easyedit

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/wegman-software/osmedit/internal/editerr"
	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/logger"
	"github.com/wegman-software/osmedit/internal/logic"
)

// ErrNoSuchAction is returned for menu items the current state does not offer
var ErrNoSuchAction = errors.New("menu item not available")

// UI is the platform collaborator: tag editor, dialogs and bug editor
type UI interface {
	// EditTags shows the tag editor for e. ok is false when the user cancels.
	EditTags(e graph.Element, preset string) (tags map[string]string, ok bool)
	// Confirm asks a yes/no question
	Confirm(prompt string) bool
	// Notify shows a non-blocking message
	Notify(msg string)
	// EditBug lets the user describe a new bug; returns the comment or "" to discard
	EditBug(b logic.Bug) string
}

// State is one step of an edit gesture. Click handlers report whether they
// consumed the event.
type State interface {
	Name() string
	Enter(m *Manager)
	Exit(m *Manager)
	Click(m *Manager, x, y float64) bool
	LongClick(m *Manager, x, y float64) bool
	ElementClick(m *Manager, e graph.Element) bool
	Menu(m *Manager) []string
	Action(m *Manager, item string) error
}

// undoer is implemented by states with their own undo behavior
type undoer interface {
	Undo(m *Manager) string
}

// baseState provides no-op handlers
type baseState struct{}

func (baseState) Enter(*Manager) {}
func (baseState) Exit(*Manager) {}
func (baseState) Click(*Manager, float64, float64) bool { return false }
func (baseState) LongClick(*Manager, float64, float64) bool { return false }
func (baseState) ElementClick(*Manager, graph.Element) bool { return false }
func (baseState) Menu(*Manager) []string { return nil }
func (baseState) Action(*Manager, string) error { return ErrNoSuchAction }

// Default is the idle state at the bottom of the stack
type Default struct{ baseState }

func (*Default) Name() string { return "Default" }

// Manager owns the state stack. The bottom is always Default; Start replaces
// whatever runs above it.
type Manager struct {
	logic *logic.Logic
	ui    UI
	stack []State
	bugs  []logic.Bug

	crosshair      bool
	crossX, crossY float64
}

// NewManager creates a manager in the Default state and switches l to easy-edit mode
func NewManager(l *logic.Logic, ui UI) *Manager {
	l.SetMode(logic.ModeEasyEdit)
	return &Manager{logic: l, ui: ui, stack: []State{&Default{}}}
}

// Logic returns the editor logic
func (m *Manager) Logic() *logic.Logic { return m.logic }

// Current returns the active state
func (m *Manager) Current() State { return m.stack[len(m.stack)-1] }

// Bugs returns the bugs created so far
func (m *Manager) Bugs() []logic.Bug { return slices.Clone(m.bugs) }

// Crosshair returns the long-press marker, if shown
func (m *Manager) Crosshair() (x, y float64, ok bool) {
	return m.crossX, m.crossY, m.crosshair
}

// Start finishes every running state and enters s
func (m *Manager) Start(s State) {
	for len(m.stack) > 1 {
		m.pop()
	}
	logger.Get().Debug("Entering edit state", zap.String("state", s.Name()))
	m.stack = append(m.stack, s)
	s.Enter(m)
}

// Finish leaves the current state; Default is never left
func (m *Manager) Finish() {
	if len(m.stack) > 1 {
		m.pop()
	}
}

func (m *Manager) pop() {
	top := m.Current()
	m.stack = m.stack[:len(m.stack)-1]
	logger.Get().Debug("Leaving edit state", zap.String("state", top.Name()))
	top.Exit(m)
}

// Click routes a short tap. The current state sees it first; otherwise the
// nearest element under the pointer is clicked, or nothing was touched.
func (m *Manager) Click(x, y float64) bool {
	if m.Current().Click(m, x, y) {
		return true
	}
	elems := m.logic.ClickedElements(x, y)
	if len(elems) == 0 {
		m.NothingTouched()
		return false
	}
	if len(elems) > 1 {
		logger.Get().Debug("Ambiguous click, using nearest element",
			zap.Int("candidates", len(elems)), zap.Stringer("element", elems[0].Key()))
	}
	return m.ElementClick(elems[0])
}

// LongClick routes a long press. Unless the current state consumes it, it
// starts the LongClick state.
func (m *Manager) LongClick(x, y float64) bool {
	if m.Current().LongClick(m, x, y) {
		return true
	}
	if !m.logic.IsEditable() {
		return false
	}
	m.Start(NewLongClick(x, y))
	return true
}

// ElementClick routes a click on e. Unless the current state consumes it, e
// becomes selected.
func (m *Manager) ElementClick(e graph.Element) bool {
	if m.Current().ElementClick(m, e) {
		return true
	}
	s := selectionFor(e)
	if s == nil {
		return false
	}
	m.Start(s)
	return true
}

// NothingTouched returns to the Default state
func (m *Manager) NothingTouched() {
	for len(m.stack) > 1 {
		m.pop()
	}
	m.logic.ClearSelection()
}

// Menu returns the items the current state offers
func (m *Manager) Menu() []string {
	return m.Current().Menu(m)
}

// Action runs a menu item of the current state
func (m *Manager) Action(item string) error {
	cur := m.Current()
	if !slices.Contains(cur.Menu(m), item) {
		return fmt.Errorf("%q in %s: %w", item, cur.Name(), ErrNoSuchAction)
	}
	return cur.Action(m, item)
}

// Undo reverts the newest edit. States such as path creation step back
// themselves; elsewhere a state whose element vanished is finished.
func (m *Manager) Undo() string {
	if u, ok := m.Current().(undoer); ok {
		return u.Undo(m)
	}
	name := m.logic.Undo()
	if s, ok := m.Current().(interface{ subject() graph.Element }); ok {
		if !m.logic.Delegator().Exists(s.subject()) {
			m.Finish()
		}
	}
	return name
}

// editTags opens the tag editor for e and applies the result
func (m *Manager) editTags(e graph.Element, preset string) {
	if e == nil || !m.logic.Delegator().Exists(e) {
		return
	}
	tags, ok := m.ui.EditTags(e, preset)
	if !ok {
		return
	}
	if err := m.logic.SetTags(e, tags); err != nil {
		m.report(err)
	}
}

// report shows a refused edit to the user
func (m *Manager) report(err error) {
	logger.Get().Warn("Edit failed", zap.Stringer("kind", editerr.KindOf(err)), zap.Error(err))
	m.ui.Notify(fmt.Sprintf("%s: %v", editerr.KindOf(err), err))
}

func selectionFor(e graph.Element) State {
	switch v := e.(type) {
	case *graph.Node:
		return NewNodeSelected(v)
	case *graph.Way:
		return NewWaySelected(v)
	case *graph.Relation:
		return NewRelationSelected(v)
	}
	return nil
}
