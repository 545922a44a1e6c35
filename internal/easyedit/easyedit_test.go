package easyedit

import (
	"errors"
	"maps"
	"slices"
	"testing"

	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/logic"
)

// fakeUI records every dialog and answers with canned values
type fakeUI struct {
	add     map[string]string
	cancel  bool
	confirm bool
	bug     string

	edited  []graph.Element
	presets []string
	notes   []string
}

func (u *fakeUI) EditTags(e graph.Element, preset string) (map[string]string, bool) {
	u.edited = append(u.edited, e)
	u.presets = append(u.presets, preset)
	if u.cancel {
		return nil, false
	}
	tags := maps.Clone(map[string]string(e.Tags()))
	if tags == nil {
		tags = map[string]string{}
	}
	maps.Copy(tags, u.add)
	return tags, true
}

func (u *fakeUI) Confirm(string) bool { return u.confirm }

func (u *fakeUI) Notify(msg string) {
	u.notes = append(u.notes, msg)
}

func (u *fakeUI) EditBug(logic.Bug) string { return u.bug }

// pt is a node placed at a screen position
type pt struct {
	id   int64
	x, y float64
	tags map[string]string
}

// wy is a way over the nodes with the given ids
type wy struct {
	id   int64
	refs []int64
	tags map[string]string
}

func newTestManager(t *testing.T, nodes []pt, ways []wy) (*Manager, *fakeUI) {
	t.Helper()
	box, err := geo.NewBoundingBox(75800000, 480000000, 75900000, 480100000)
	if err != nil {
		t.Fatalf("failed to create box: %v", err)
	}
	l := logic.New(logic.Config{ScreenWidth: 800, ScreenHeight: 600}, nil, box)
	if len(nodes) > 0 {
		b := graph.NewBuilder()
		for _, n := range nodes {
			pos := l.MakeNewBug(n.x, n.y)
			b.AddNode(n.id, 1, pos.LatE7, pos.LonE7, n.tags, graph.StateUnchanged)
		}
		for _, w := range ways {
			b.AddWay(w.id, 1, w.refs, w.tags, graph.StateUnchanged)
		}
		s, _ := b.Build()
		if err := s.Validate(); err != nil {
			t.Fatalf("invalid fixture: %v", err)
		}
		l.SetStorage(s)
	}
	ui := &fakeUI{}
	return NewManager(l, ui), ui
}

func highway(kind string) map[string]string {
	return map[string]string{"highway": kind}
}

func stateName(m *Manager) string {
	return m.Current().Name()
}

func mustValidate(t *testing.T, m *Manager) {
	t.Helper()
	if err := m.Logic().Storage().Validate(); err != nil {
		t.Fatalf("storage invalid: %v", err)
	}
}

func TestAddPathAndTag(t *testing.T) {
	m, ui := newTestManager(t, nil, nil)
	ui.add = map[string]string{"highway": "service"}
	l := m.Logic()

	if !m.LongClick(400, 300) {
		t.Fatal("expected the long click to be handled")
	}
	if got := stateName(m); got != "LongClick" {
		t.Fatalf("expected LongClick, got %s", got)
	}
	if x, y, ok := m.Crosshair(); !ok || x != 400 || y != 300 {
		t.Errorf("expected crosshair at 400,300, got %v,%v %v", x, y, ok)
	}

	m.Click(500, 300)
	if got := stateName(m); got != "PathCreation" {
		t.Fatalf("expected PathCreation, got %s", got)
	}
	if _, _, ok := m.Crosshair(); ok {
		t.Error("expected the crosshair to be cleared")
	}
	m.Click(500, 400)
	m.Click(500, 400)

	if got := stateName(m); got != "Default" {
		t.Errorf("expected Default after finishing, got %s", got)
	}
	mustValidate(t, m)
	s := l.Storage()
	if s.WayCount() != 1 || s.NodeCount() != 3 {
		t.Fatalf("expected 1 way and 3 nodes, got %d and %d", s.WayCount(), s.NodeCount())
	}
	w := s.Ways()[0]
	if w.State() != graph.StateCreated || w.ID() >= 0 {
		t.Errorf("expected a created way with negative id, got %d %s", w.ID(), w.State())
	}
	pixels := [][2]float64{{400, 300}, {500, 300}, {500, 400}}
	for i, n := range w.Nodes() {
		want := l.MakeNewBug(pixels[i][0], pixels[i][1])
		if n.LatE7() != want.LatE7 || n.LonE7() != want.LonE7 {
			t.Errorf("node %d: expected %d,%d, got %d,%d", i, want.LatE7, want.LonE7, n.LatE7(), n.LonE7())
		}
		if n.ID() >= 0 || n.State() != graph.StateCreated {
			t.Errorf("node %d: expected created negative id, got %d %s", i, n.ID(), n.State())
		}
	}
	if len(ui.edited) != 1 || ui.edited[0] != graph.Element(w) {
		t.Fatalf("expected the tag editor for the way, got %v", ui.edited)
	}
	if got := w.Tags().Get("highway"); got != "service" {
		t.Errorf("expected the edited tags to be applied, got %q", got)
	}
}

func TestPathCreationUndo(t *testing.T) {
	m, ui := newTestManager(t, nil, nil)
	l := m.Logic()

	m.LongClick(100, 100)
	m.Click(200, 100)
	m.Click(300, 100)
	if got := m.Menu(); !slices.Equal(got, []string{MenuUndo}) {
		t.Fatalf("expected the undo menu, got %v", got)
	}

	m.Undo()
	w := l.SelectedWay()
	if w == nil || w.NodeCount() != 2 {
		t.Fatalf("expected the way to shrink back to 2 nodes, got %v", w)
	}
	if n := l.SelectedNode(); n != w.LastNode() {
		t.Error("expected the previous node to be selected again")
	}

	if err := m.Action(MenuUndo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.Undo()
	if got := stateName(m); got != "Default" {
		t.Errorf("expected undoing the first node to finish, got %s", got)
	}
	if !l.Storage().IsEmpty() {
		t.Errorf("expected empty storage, got %d nodes", l.Storage().NodeCount())
	}
	if len(ui.edited) != 0 {
		t.Errorf("expected no tag editor without a path, got %v", ui.edited)
	}
}

func TestLongClickMenu(t *testing.T) {
	t.Run("new node", func(t *testing.T) {
		m, ui := newTestManager(t, nil, nil)
		ui.add = map[string]string{"amenity": "bench"}
		m.LongClick(200, 200)
		if got := m.Menu(); slices.Contains(got, MenuPaste) {
			t.Errorf("expected no paste with an empty clipboard, got %v", got)
		}
		if err := m.Action(MenuNewNode); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := stateName(m); got != "NodeSelected" {
			t.Errorf("expected NodeSelected, got %s", got)
		}
		n := m.Logic().SelectedNode()
		if n == nil || n.Tags().Get("amenity") != "bench" {
			t.Fatalf("expected a tagged node, got %v", n)
		}
	})

	t.Run("new bug", func(t *testing.T) {
		m, ui := newTestManager(t, nil, nil)
		ui.bug = "missing bridge"
		m.LongClick(200, 200)
		if err := m.Action(MenuNewBug); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		bugs := m.Bugs()
		if len(bugs) != 1 || bugs[0].Comment != "missing bridge" {
			t.Fatalf("expected one bug, got %v", bugs)
		}
		if want := m.Logic().MakeNewBug(200, 200); bugs[0].LatE7 != want.LatE7 || bugs[0].LonE7 != want.LonE7 {
			t.Errorf("expected bug at %d,%d, got %d,%d", want.LatE7, want.LonE7, bugs[0].LatE7, bugs[0].LonE7)
		}
		if !m.Logic().Storage().IsEmpty() {
			t.Error("expected a bug not to touch the storage")
		}
	})

	t.Run("discarded bug", func(t *testing.T) {
		m, _ := newTestManager(t, nil, nil)
		m.LongClick(200, 200)
		if err := m.Action(MenuNewBug); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(m.Bugs()) != 0 {
			t.Errorf("expected an empty comment to discard the bug, got %v", m.Bugs())
		}
	})

	t.Run("unknown item", func(t *testing.T) {
		m, _ := newTestManager(t, nil, nil)
		m.LongClick(200, 200)
		if err := m.Action(MenuSplit); !errors.Is(err, ErrNoSuchAction) {
			t.Errorf("expected ErrNoSuchAction, got %v", err)
		}
	})
}

func TestSplitThroughStates(t *testing.T) {
	m, _ := newTestManager(t,
		[]pt{{id: 1, x: 100, y: 300}, {id: 2, x: 300, y: 300}, {id: 3, x: 500, y: 300}, {id: 4, x: 700, y: 300}},
		[]wy{{id: 10, refs: []int64{1, 2, 3, 4}, tags: highway("residential")}})
	l := m.Logic()
	st := l.Storage()
	w := st.GetWay(10)

	m.Click(200, 300)
	if got := stateName(m); got != "WaySelected" {
		t.Fatalf("expected WaySelected, got %s", got)
	}
	if !slices.Contains(m.Menu(), MenuSplit) {
		t.Fatalf("expected split in %v", m.Menu())
	}
	if err := m.Action(MenuSplit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := stateName(m); got != "WaySplitting" {
		t.Fatalf("expected WaySplitting, got %s", got)
	}
	if l.ClickedNode(100, 300) != nil {
		t.Error("expected end nodes not to be clickable while splitting")
	}

	m.Click(500, 300)
	mustValidate(t, m)
	if got := stateName(m); got != "Default" {
		t.Errorf("expected Default after the split, got %s", got)
	}
	if l.HasClickableElements() {
		t.Error("expected the clickable set to be lifted")
	}
	if st.WayCount() != 2 {
		t.Fatalf("expected 2 ways, got %d", st.WayCount())
	}
	if ids := wayIDs(w); !slices.Equal(ids, []int64{1, 2, 3}) || w.State() != graph.StateModified {
		t.Errorf("expected modified way 1-2-3, got %v %s", ids, w.State())
	}
	var fresh *graph.Way
	for _, o := range st.Ways() {
		if o != w {
			fresh = o
		}
	}
	if ids := wayIDs(fresh); !slices.Equal(ids, []int64{3, 4}) || fresh.State() != graph.StateCreated {
		t.Errorf("expected created way 3-4, got %v %s", ids, fresh.State())
	}
	if got := fresh.Tags().Get("highway"); got != "residential" {
		t.Errorf("expected the new way to carry the tags, got %q", got)
	}
}

func TestClosedWaySplitThroughStates(t *testing.T) {
	m, _ := newTestManager(t,
		[]pt{{id: 1, x: 200, y: 200}, {id: 2, x: 600, y: 200}, {id: 3, x: 600, y: 500}, {id: 4, x: 200, y: 500}},
		[]wy{{id: 10, refs: []int64{1, 2, 3, 4, 1}, tags: map[string]string{"building": "yes"}}})
	l := m.Logic()
	m.Start(NewWaySplitting(l.Storage().GetWay(10)))

	m.Click(200, 200)
	if got := stateName(m); got != "ClosedWaySplit" {
		t.Fatalf("expected ClosedWaySplit, got %s", got)
	}
	m.ElementClick(l.Storage().GetNode(1))
	if got := stateName(m); got != "ClosedWaySplit" {
		t.Errorf("expected the first node to be ignored, got %s", got)
	}
	m.Click(600, 500)
	mustValidate(t, m)
	if got := stateName(m); got != "Default" {
		t.Errorf("expected Default, got %s", got)
	}
	ways := l.Storage().Ways()
	if len(ways) != 2 {
		t.Fatalf("expected 2 ways, got %d", len(ways))
	}
	for _, w := range ways {
		if w.IsClosed() {
			t.Errorf("expected open ways, got closed way %d", w.ID())
		}
	}
}

func wayIDs(w *graph.Way) []int64 {
	var ids []int64
	for _, n := range w.Nodes() {
		ids = append(ids, n.ID())
	}
	return ids
}

func TestMergeThroughStates(t *testing.T) {
	t.Run("tag conflict", func(t *testing.T) {
		m, ui := newTestManager(t,
			[]pt{{id: 1, x: 100, y: 300}, {id: 2, x: 400, y: 300}, {id: 3, x: 700, y: 300}},
			[]wy{
				{id: 10, refs: []int64{1, 2}, tags: map[string]string{"highway": "residential", "name": "X"}},
				{id: 11, refs: []int64{2, 3}, tags: map[string]string{"highway": "residential", "name": "Y"}},
			})
		st := m.Logic().Storage()
		w1, w2 := st.GetWay(10), st.GetWay(11)

		m.Start(NewWaySelected(w1))
		if slices.Contains(m.Menu(), MenuMerge) {
			t.Errorf("expected no merge offer for conflicting tags, got %v", m.Menu())
		}

		m.Start(NewWayMerging(w1))
		m.ElementClick(w2)
		mustValidate(t, m)
		if st.WayCount() != 2 || st.GetWay(11) == nil {
			t.Fatalf("expected both ways to remain, got %d", st.WayCount())
		}
		if len(ui.notes) != 1 {
			t.Errorf("expected the conflict to be reported, got %v", ui.notes)
		}
		if len(ui.edited) != 1 || ui.edited[0] != graph.Element(w1) {
			t.Errorf("expected the tag editor on the first way, got %v", ui.edited)
		}
		if got := stateName(m); got != "Default" {
			t.Errorf("expected Default, got %s", got)
		}
	})

	t.Run("merge", func(t *testing.T) {
		m, ui := newTestManager(t,
			[]pt{{id: 1, x: 100, y: 300}, {id: 2, x: 400, y: 300}, {id: 3, x: 700, y: 300}},
			[]wy{
				{id: 10, refs: []int64{1, 2}, tags: highway("residential")},
				{id: 11, refs: []int64{3, 2}},
			})
		st := m.Logic().Storage()
		w1 := st.GetWay(10)

		m.Start(NewWaySelected(w1))
		if err := m.Action(MenuMerge); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		m.Click(550, 300)
		mustValidate(t, m)
		if st.WayCount() != 1 {
			t.Fatalf("expected 1 way, got %d", st.WayCount())
		}
		if ids := wayIDs(w1); !slices.Equal(ids, []int64{1, 2, 3}) {
			t.Errorf("expected 1-2-3, got %v", ids)
		}
		if got := stateName(m); got != "WaySelected" || m.Logic().SelectedWay() != w1 {
			t.Errorf("expected the merged way selected, got %s", got)
		}
		if len(ui.edited) != 0 {
			t.Errorf("expected no tag editor, got %v", ui.edited)
		}
	})
}

func TestAppendThroughStates(t *testing.T) {
	m, _ := newTestManager(t,
		[]pt{{id: 1, x: 100, y: 300}, {id: 2, x: 400, y: 300}},
		[]wy{{id: 10, refs: []int64{1, 2}, tags: highway("residential")}})
	l := m.Logic()
	w := l.Storage().GetWay(10)

	m.Start(NewWaySelected(w))
	if err := m.Action(MenuAppend); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.Click(400, 300)
	if got := stateName(m); got != "PathCreation" {
		t.Fatalf("expected PathCreation, got %s", got)
	}
	m.Click(600, 300)
	m.Click(600, 300)
	mustValidate(t, m)
	if ids := wayIDs(w); len(ids) != 3 || ids[1] != 2 || ids[2] >= 0 {
		t.Errorf("expected the way to grow at node 2, got %v", ids)
	}
	if l.Storage().WayCount() != 1 {
		t.Errorf("expected no new way, got %d", l.Storage().WayCount())
	}
}

func TestCreateRestrictionThroughStates(t *testing.T) {
	m, ui := newTestManager(t,
		[]pt{{id: 1, x: 100, y: 300}, {id: 2, x: 400, y: 300}, {id: 3, x: 400, y: 100}},
		[]wy{
			{id: 10, refs: []int64{1, 2}, tags: highway("primary")},
			{id: 11, refs: []int64{2, 3}, tags: highway("primary")},
		})
	ui.add = map[string]string{"restriction": "no_left_turn"}
	st := m.Logic().Storage()
	from, v, to := st.GetWay(10), st.GetNode(2), st.GetWay(11)

	m.Click(250, 300)
	if !slices.Contains(m.Menu(), MenuRestriction) {
		t.Fatalf("expected restriction in %v", m.Menu())
	}
	if err := m.Action(MenuRestriction); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.Click(400, 300)
	if got := stateName(m); got != "RestrictionVia" {
		t.Fatalf("expected RestrictionVia, got %s", got)
	}
	m.Click(400, 200)
	mustValidate(t, m)

	if got := stateName(m); got != "RelationSelected" {
		t.Errorf("expected RelationSelected, got %s", got)
	}
	rels := st.Relations()
	if len(rels) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(rels))
	}
	r := rels[0]
	want := []graph.Member{{Element: from, Role: "from"}, {Element: v, Role: "via"}, {Element: to, Role: "to"}}
	if got := r.Members(); !slices.Equal(got, want) {
		t.Errorf("expected members %v, got %v", want, got)
	}
	if got := r.Tags().Get("type"); got != "restriction" {
		t.Errorf("expected type=restriction, got %q", got)
	}
	if got := r.Tags().Get("restriction"); got != "no_left_turn" {
		t.Errorf("expected the editor tags applied, got %q", got)
	}
	if len(ui.presets) != 1 || ui.presets[0] != "restriction" {
		t.Errorf("expected the restriction preset, got %v", ui.presets)
	}
}

func TestRestrictionRequiresHighway(t *testing.T) {
	m, _ := newTestManager(t,
		[]pt{{id: 1, x: 100, y: 300}, {id: 2, x: 400, y: 300}, {id: 3, x: 400, y: 100}},
		[]wy{
			{id: 10, refs: []int64{1, 2}, tags: map[string]string{"waterway": "stream"}},
			{id: 11, refs: []int64{2, 3}, tags: highway("primary")},
		})
	m.Start(NewWaySelected(m.Logic().Storage().GetWay(10)))
	if slices.Contains(m.Menu(), MenuRestriction) {
		t.Errorf("expected no restriction offer, got %v", m.Menu())
	}
}

func TestAddRelationMemberThroughStates(t *testing.T) {
	m, ui := newTestManager(t,
		[]pt{{id: 1, x: 100, y: 300}, {id: 2, x: 400, y: 300}, {id: 3, x: 600, y: 100}},
		[]wy{{id: 10, refs: []int64{1, 2}, tags: highway("residential")}})
	st := m.Logic().Storage()

	m.Click(600, 100)
	if got := stateName(m); got != "NodeSelected" {
		t.Fatalf("expected NodeSelected, got %s", got)
	}
	if err := m.Action(MenuRelation); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.Click(250, 300)
	m.Click(100, 300)
	if err := m.Action(MenuRevert); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.NothingTouched()
	mustValidate(t, m)

	rels := st.Relations()
	if len(rels) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(rels))
	}
	members := rels[0].Members()
	if len(members) != 2 || members[0].Element != graph.Element(st.GetNode(3)) || members[1].Element != graph.Element(st.GetWay(10)) {
		t.Errorf("expected node 3 and way 10 as members, got %v", members)
	}
	if len(ui.edited) != 1 || ui.edited[0] != graph.Element(rels[0]) {
		t.Errorf("expected the tag editor on the relation, got %v", ui.edited)
	}
}

func TestNodeSelectedActions(t *testing.T) {
	nodes := []pt{
		{id: 1, x: 100, y: 300}, {id: 2, x: 400, y: 300}, {id: 3, x: 700, y: 300},
		{id: 4, x: 400, y: 100}, {id: 5, x: 250, y: 310}, {id: 6, x: 400, y: 500},
	}
	ways := []wy{
		{id: 10, refs: []int64{1, 2, 3}, tags: highway("residential")},
		{id: 11, refs: []int64{4, 2, 6}, tags: highway("service")},
	}

	t.Run("menu", func(t *testing.T) {
		m, _ := newTestManager(t, nodes, ways)
		m.Click(400, 300)
		got := m.Menu()
		for _, item := range []string{MenuTag, MenuDelete, MenuUnjoin} {
			if !slices.Contains(got, item) {
				t.Errorf("expected %s in %v", item, got)
			}
		}
		if slices.Contains(got, MenuAppend) || slices.Contains(got, MenuJoin) {
			t.Errorf("expected no append or join for an inner shared node, got %v", got)
		}
	})

	t.Run("join", func(t *testing.T) {
		m, _ := newTestManager(t, nodes, ways)
		st := m.Logic().Storage()
		m.Click(250, 310)
		if !slices.Contains(m.Menu(), MenuJoin) {
			t.Fatalf("expected join in %v", m.Menu())
		}
		if err := m.Action(MenuJoin); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		mustValidate(t, m)
		if !st.GetWay(10).HasNode(st.GetNode(5)) {
			t.Error("expected node 5 to join way 10")
		}
	})

	t.Run("unjoin", func(t *testing.T) {
		m, _ := newTestManager(t, nodes, ways)
		st := m.Logic().Storage()
		m.Click(400, 300)
		if err := m.Action(MenuUnjoin); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		mustValidate(t, m)
		if st.GetWay(11).HasNode(st.GetNode(2)) == st.GetWay(10).HasNode(st.GetNode(2)) {
			t.Error("expected exactly one way to keep node 2")
		}
	})

	t.Run("append", func(t *testing.T) {
		m, _ := newTestManager(t, nodes, ways)
		m.Click(100, 300)
		if err := m.Action(MenuAppend); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := stateName(m); got != "PathCreation" {
			t.Errorf("expected PathCreation, got %s", got)
		}
	})

	t.Run("delete and undo", func(t *testing.T) {
		m, _ := newTestManager(t, nodes, ways)
		st := m.Logic().Storage()
		m.Click(700, 300)
		if err := m.Action(MenuDelete); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if st.GetNode(3) != nil {
			t.Error("expected node 3 to be deleted")
		}
		if got := stateName(m); got != "Default" {
			t.Errorf("expected Default, got %s", got)
		}
		m.Undo()
		mustValidate(t, m)
		if st.GetNode(3) == nil {
			t.Error("expected undo to restore node 3")
		}
	})
}

func TestWaySelectedActions(t *testing.T) {
	nodes := []pt{{id: 1, x: 100, y: 300}, {id: 2, x: 400, y: 300}, {id: 3, x: 700, y: 300}}

	t.Run("reverse oneway", func(t *testing.T) {
		m, ui := newTestManager(t, nodes, []wy{{id: 10, refs: []int64{1, 2, 3}, tags: map[string]string{"highway": "primary", "oneway": "yes"}}})
		w := m.Logic().Storage().GetWay(10)
		m.Start(NewWaySelected(w))
		if err := m.Action(MenuReverse); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ids := wayIDs(w); !slices.Equal(ids, []int64{3, 2, 1}) {
			t.Errorf("expected 3-2-1, got %v", ids)
		}
		if len(ui.notes) != 1 {
			t.Errorf("expected a oneway notice, got %v", ui.notes)
		}
	})

	t.Run("reverse refused", func(t *testing.T) {
		m, ui := newTestManager(t, nodes, []wy{{id: 10, refs: []int64{1, 2, 3}, tags: map[string]string{"waterway": "river"}}})
		w := m.Logic().Storage().GetWay(10)
		m.Start(NewWaySelected(w))
		ui.confirm = false
		if err := m.Action(MenuReverse); err == nil {
			t.Fatal("expected an error without confirmation")
		}
		ui.confirm = true
		if err := m.Action(MenuReverse); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ids := wayIDs(w); !slices.Equal(ids, []int64{3, 2, 1}) {
			t.Errorf("expected the confirmed reverse, got %v", ids)
		}
	})

	t.Run("delete", func(t *testing.T) {
		m, _ := newTestManager(t, nodes, []wy{{id: 10, refs: []int64{1, 2, 3}, tags: highway("primary")}})
		st := m.Logic().Storage()
		m.Start(NewWaySelected(st.GetWay(10)))
		if err := m.Action(MenuDelete); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !st.IsEmpty() {
			t.Errorf("expected the way and its nodes gone, got %d nodes", st.NodeCount())
		}
	})

	t.Run("copy and paste", func(t *testing.T) {
		m, _ := newTestManager(t, nodes, []wy{{id: 10, refs: []int64{1, 2, 3}, tags: highway("primary")}})
		st := m.Logic().Storage()
		m.Start(NewWaySelected(st.GetWay(10)))
		if err := m.Action(MenuCopy); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		m.LongClick(400, 500)
		if !slices.Contains(m.Menu(), MenuPaste) {
			t.Fatalf("expected paste in %v", m.Menu())
		}
		if err := m.Action(MenuPaste); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		mustValidate(t, m)
		if st.WayCount() != 2 {
			t.Errorf("expected a pasted way, got %d ways", st.WayCount())
		}
		if got := stateName(m); got != "WaySelected" {
			t.Errorf("expected the pasted way selected, got %s", got)
		}
	})

	t.Run("undo finishes vanished selection", func(t *testing.T) {
		m, _ := newTestManager(t, nil, nil)
		m.LongClick(100, 100)
		m.Click(300, 100)
		m.Click(300, 100)
		w := m.Logic().Storage().Ways()[0]
		m.Start(NewWaySelected(w))
		for m.Logic().Delegator().CanUndo() {
			m.Undo()
		}
		if got := stateName(m); got != "Default" {
			t.Errorf("expected Default once the way is gone, got %s", got)
		}
	})
}

func TestNothingTouched(t *testing.T) {
	m, _ := newTestManager(t,
		[]pt{{id: 1, x: 100, y: 300}, {id: 2, x: 400, y: 300}},
		[]wy{{id: 10, refs: []int64{1, 2}, tags: highway("residential")}})
	m.Click(250, 300)
	if m.Logic().SelectedWay() == nil {
		t.Fatal("expected the way to be selected")
	}
	if m.Click(250, 550) {
		t.Error("expected a click on empty map not to be handled")
	}
	if got := stateName(m); got != "Default" {
		t.Errorf("expected Default, got %s", got)
	}
	if m.Logic().SelectedWay() != nil {
		t.Error("expected the selection to be cleared")
	}
	if err := m.Action(MenuTag); !errors.Is(err, ErrNoSuchAction) {
		t.Errorf("expected ErrNoSuchAction in Default, got %v", err)
	}
}
