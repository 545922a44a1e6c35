package script

import (
	"regexp"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/logic"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

var directions = map[string]logic.Direction{
	"up":    logic.DirectionUp,
	"down":  logic.DirectionDown,
	"left":  logic.DirectionLeft,
	"right": logic.DirectionRight,
}

// registerAPI installs the editor global and print
func (r *Runtime) registerAPI() {
	L := r.L
	editor := L.NewTable()

	functions := map[string]lua.LGFunction{
		// gestures
		"long_click":      r.bound(r.luaLongClick),
		"click":           r.bound(r.luaClick),
		"element_click":   r.bound(r.luaElementClick),
		"nothing_touched": r.bound(r.luaNothingTouched),
		"menu":            r.bound(r.luaMenu),
		"undo":            r.bound(r.luaUndo),

		// view
		"set_view":  r.bound(r.luaSetView),
		"pan":       r.bound(r.luaPan),
		"zoom_in":   r.bound(r.luaZoomIn),
		"zoom_out":  r.bound(r.luaZoomOut),
		"to_screen": r.bound(r.luaToScreen),

		// queries
		"node":     r.bound(r.luaElement(graph.KindNode)),
		"way":      r.bound(r.luaElement(graph.KindWay)),
		"relation": r.bound(r.luaElement(graph.KindRelation)),
		"selected": r.bound(r.luaSelected),
		"state":    r.bound(r.luaState),
		"changes":  r.bound(r.luaChanges),
		"count":    r.bound(r.luaCount),
		"bugs":     r.bound(r.luaBugs),
		"notes":    r.luaNotes,

		// string helpers for tag callbacks
		"trim":         luaTrim,
		"clean_spaces": luaCleanSpaces,
		"lower":        luaLower,
		"filter_tags":  luaFilterTags,
	}
	for name, fn := range functions {
		L.SetField(editor, name, L.NewFunction(fn))
	}

	L.SetGlobal("editor", editor)
	L.SetGlobal("print", L.NewFunction(r.luaPrint))
}

// bound guards functions that need an editor
func (r *Runtime) bound(fn lua.LGFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		if r.manager == nil {
			L.RaiseError("%s", ErrNotBound.Error())
			return 0
		}
		return fn(L)
	}
}

// pushResult returns true, or false plus the error message
func pushResult(L *lua.LState, err error) int {
	if err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

func (r *Runtime) luaLongClick(L *lua.LState) int {
	L.Push(lua.LBool(r.manager.LongClick(float64(L.CheckNumber(1)), float64(L.CheckNumber(2)))))
	return 1
}

func (r *Runtime) luaClick(L *lua.LState) int {
	L.Push(lua.LBool(r.manager.Click(float64(L.CheckNumber(1)), float64(L.CheckNumber(2)))))
	return 1
}

// luaElementClick implements editor.element_click(kind, id)
func (r *Runtime) luaElementClick(L *lua.LState) int {
	e := r.lookup(L, L.CheckString(1), L.CheckInt64(2))
	if e == nil {
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LBool(r.manager.ElementClick(e)))
	return 1
}

func (r *Runtime) luaNothingTouched(L *lua.LState) int {
	r.manager.NothingTouched()
	return 0
}

// luaMenu implements editor.menu(): without an argument it lists the items of
// the current state, with one it runs that item
func (r *Runtime) luaMenu(L *lua.LState) int {
	if L.GetTop() == 0 {
		items := L.NewTable()
		for i, item := range r.manager.Menu() {
			items.RawSetInt(i+1, lua.LString(item))
		}
		L.Push(items)
		return 1
	}
	return pushResult(L, r.manager.Action(L.CheckString(1)))
}

func (r *Runtime) luaUndo(L *lua.LState) int {
	L.Push(lua.LString(r.manager.Undo()))
	return 1
}

// luaSetView implements editor.set_view(left, bottom, right, top) in degrees
func (r *Runtime) luaSetView(L *lua.LState) int {
	box, err := geo.NewBoundingBoxDegrees(
		float64(L.CheckNumber(1)), float64(L.CheckNumber(2)),
		float64(L.CheckNumber(3)), float64(L.CheckNumber(4)))
	if err != nil {
		return pushResult(L, err)
	}
	return pushResult(L, r.logic.SetViewBox(box))
}

func (r *Runtime) luaPan(L *lua.LState) int {
	dir, ok := directions[strings.ToLower(L.CheckString(1))]
	if !ok {
		L.ArgError(1, "expected up, down, left or right")
		return 0
	}
	r.logic.Pan(dir)
	return 0
}

func (r *Runtime) luaZoomIn(L *lua.LState) int {
	L.Push(lua.LBool(r.logic.ZoomIn()))
	return 1
}

func (r *Runtime) luaZoomOut(L *lua.LState) int {
	L.Push(lua.LBool(r.logic.ZoomOut()))
	return 1
}

// luaToScreen implements editor.to_screen(lat, lon) and returns x, y
func (r *Runtime) luaToScreen(L *lua.LState) int {
	w, h := r.logic.ScreenSize()
	box := r.logic.ViewBox()
	L.Push(lua.LNumber(geo.LonE7ToX(w, box, geo.ToE7(float64(L.CheckNumber(2))))))
	L.Push(lua.LNumber(geo.LatE7ToY(h, box, geo.ToE7(float64(L.CheckNumber(1))))))
	return 2
}

func (r *Runtime) lookup(L *lua.LState, kind string, id int64) graph.Element {
	k, err := graph.ParseKind(kind)
	if err != nil {
		L.ArgError(1, err.Error())
		return nil
	}
	return r.logic.Storage().Get(graph.Key{Kind: k, ID: id})
}

// luaElement implements editor.node(id), editor.way(id) and editor.relation(id).
// Nodes also carry their screen position as x and y.
func (r *Runtime) luaElement(kind graph.Kind) lua.LGFunction {
	return func(L *lua.LState) int {
		e := r.logic.Storage().Get(graph.Key{Kind: kind, ID: L.CheckInt64(1)})
		if e == nil {
			L.Push(lua.LNil)
			return 1
		}
		tbl := r.elementToLua(e)
		if n, ok := e.(*graph.Node); ok {
			x, y := r.logic.ScreenPosition(n)
			tbl.RawSetString("x", lua.LNumber(x))
			tbl.RawSetString("y", lua.LNumber(y))
		}
		L.Push(tbl)
		return 1
	}
}

// luaSelected returns the kind and id of the selection, or nil
func (r *Runtime) luaSelected(L *lua.LState) int {
	var e graph.Element
	switch {
	case r.logic.SelectedNode() != nil:
		e = r.logic.SelectedNode()
	case r.logic.SelectedWay() != nil:
		e = r.logic.SelectedWay()
	case r.logic.SelectedRelation() != nil:
		e = r.logic.SelectedRelation()
	default:
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(e.Kind().String()))
	L.Push(lua.LNumber(e.ID()))
	return 2
}

func (r *Runtime) luaState(L *lua.LState) int {
	L.Push(lua.LString(r.manager.Current().Name()))
	return 1
}

func (r *Runtime) luaChanges(L *lua.LState) int {
	tbl := L.NewTable()
	for i, line := range r.logic.Delegator().ListChanges() {
		tbl.RawSetInt(i+1, lua.LString(line))
	}
	L.Push(tbl)
	return 1
}

// luaCount implements editor.count(kind) over live elements
func (r *Runtime) luaCount(L *lua.LState) int {
	s := r.logic.Storage()
	k, err := graph.ParseKind(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	var n int
	switch k {
	case graph.KindNode:
		n = s.NodeCount()
	case graph.KindWay:
		n = s.WayCount()
	case graph.KindRelation:
		n = s.RelationCount()
	}
	L.Push(lua.LNumber(n))
	return 1
}

func (r *Runtime) luaBugs(L *lua.LState) int {
	tbl := L.NewTable()
	for i, b := range r.manager.Bugs() {
		bt := L.NewTable()
		bt.RawSetString("lat", lua.LNumber(geo.FromE7(b.LatE7)))
		bt.RawSetString("lon", lua.LNumber(geo.FromE7(b.LonE7)))
		bt.RawSetString("comment", lua.LString(b.Comment))
		tbl.RawSetInt(i+1, bt)
	}
	L.Push(tbl)
	return 1
}

func (r *Runtime) luaNotes(L *lua.LState) int {
	tbl := L.NewTable()
	for i, n := range r.notes {
		tbl.RawSetInt(i+1, lua.LString(n))
	}
	L.Push(tbl)
	return 1
}

func luaTrim(L *lua.LState) int {
	L.Push(lua.LString(strings.TrimSpace(L.CheckString(1))))
	return 1
}

func luaLower(L *lua.LState) int {
	L.Push(lua.LString(strings.ToLower(L.CheckString(1))))
	return 1
}

// luaCleanSpaces collapses runs of whitespace and trims
func luaCleanSpaces(L *lua.LState) int {
	cleaned := whitespaceRegex.ReplaceAllString(L.CheckString(1), " ")
	L.Push(lua.LString(strings.TrimSpace(cleaned)))
	return 1
}

// luaFilterTags keeps only the listed keys.
// Usage: editor.filter_tags(tags, {"name", "highway"})
func luaFilterTags(L *lua.LState) int {
	tags := L.CheckTable(1)
	keepKeys := L.CheckTable(2)

	keep := make(map[string]bool)
	keepKeys.ForEach(func(_, v lua.LValue) {
		if s := lua.LVAsString(v); s != "" {
			keep[s] = true
		}
	})

	result := L.NewTable()
	tags.ForEach(func(k, v lua.LValue) {
		if key := lua.LVAsString(k); keep[key] {
			L.SetField(result, key, v)
		}
	})
	L.Push(result)
	return 1
}
