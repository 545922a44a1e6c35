// Package script drives the easy-edit state machine from Lua. A script gets
// an `editor` global for gestures and queries, and may define on_tag_edit,
// on_confirm and on_bug to answer the dialogs an interactive UI would show.
package script

import (
	"errors"
	"fmt"
	"io"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wegman-software/osmedit/internal/easyedit"
	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/logger"
	"github.com/wegman-software/osmedit/internal/logic"
)

// Callback names looked up in the script's globals
const (
	CallbackTagEdit = "on_tag_edit"
	CallbackConfirm = "on_confirm"
	CallbackBug     = "on_bug"
)

// ErrNotBound is returned when a script runs before Bind
var ErrNotBound = errors.New("runtime is not bound to an editor")

// Runtime manages the Lua interpreter and implements easyedit.UI through
// script callbacks
type Runtime struct {
	L       *lua.LState
	out     io.Writer
	log     *zap.Logger
	logic   *logic.Logic
	manager *easyedit.Manager

	notes       []string
	callbackErr error
}

// NewRuntime creates a Lua runtime; print writes to out
func NewRuntime(out io.Writer) *Runtime {
	r := &Runtime{
		L:   lua.NewState(),
		out: out,
		log: logger.Named("script"),
	}
	r.registerAPI()
	return r
}

// Close releases Lua resources
func (r *Runtime) Close() {
	r.L.Close()
}

// Bind attaches the runtime to l and returns the manager it drives. The
// runtime acts as the manager's UI.
func (r *Runtime) Bind(l *logic.Logic) *easyedit.Manager {
	r.logic = l
	r.manager = easyedit.NewManager(l, r)
	return r.manager
}

// Manager returns the bound manager
func (r *Runtime) Manager() *easyedit.Manager {
	return r.manager
}

// Notes returns every notification shown so far
func (r *Runtime) Notes() []string {
	return r.notes
}

// LoadFile runs a Lua script file
func (r *Runtime) LoadFile(path string) error {
	if r.manager == nil {
		return ErrNotBound
	}
	r.callbackErr = nil
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to run Lua file: %w", err)
	}
	return r.callbackErr
}

// LoadString runs Lua code from a string
func (r *Runtime) LoadString(code string) error {
	if r.manager == nil {
		return ErrNotBound
	}
	r.callbackErr = nil
	if err := r.L.DoString(code); err != nil {
		return fmt.Errorf("failed to run Lua code: %w", err)
	}
	return r.callbackErr
}

// luaPrint implements the print function for Lua
func (r *Runtime) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	fmt.Fprintln(r.out, strings.Join(parts, "\t"))
	return 0
}

// callback invokes a global Lua function and returns its single result.
// A missing callback yields nil; a failing one is logged and remembered.
func (r *Runtime) callback(name string, args ...lua.LValue) lua.LValue {
	fn := r.L.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return lua.LNil
	}
	if err := r.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		r.log.Warn("Lua callback failed", zap.String("callback", name), zap.Error(err))
		if r.callbackErr == nil {
			r.callbackErr = fmt.Errorf("%s: %w", name, err)
		}
		return lua.LNil
	}
	ret := r.L.Get(-1)
	r.L.Pop(1)
	return ret
}

// EditTags implements easyedit.UI: on_tag_edit(element, preset) returns the
// new tag table, or nil to cancel
func (r *Runtime) EditTags(e graph.Element, preset string) (map[string]string, bool) {
	ret := r.callback(CallbackTagEdit, r.elementToLua(e), lua.LString(preset))
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, false
	}
	return tableToTags(tbl), true
}

// Confirm implements easyedit.UI; without on_confirm the answer is no
func (r *Runtime) Confirm(prompt string) bool {
	return lua.LVAsBool(r.callback(CallbackConfirm, lua.LString(prompt)))
}

// Notify implements easyedit.UI
func (r *Runtime) Notify(msg string) {
	r.log.Info("Editor notification", zap.String("message", msg))
	r.notes = append(r.notes, msg)
}

// EditBug implements easyedit.UI: on_bug(lat, lon) returns the comment
func (r *Runtime) EditBug(b logic.Bug) string {
	ret := r.callback(CallbackBug, lua.LNumber(geo.FromE7(b.LatE7)), lua.LNumber(geo.FromE7(b.LonE7)))
	if s, ok := ret.(lua.LString); ok {
		return string(s)
	}
	return ""
}

func tableToTags(tbl *lua.LTable) map[string]string {
	tags := make(map[string]string)
	tbl.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			return
		}
		switch v.(type) {
		case lua.LString, lua.LNumber:
			tags[string(key)] = v.String()
		case lua.LBool:
			if v == lua.LTrue {
				tags[string(key)] = "yes"
			} else {
				tags[string(key)] = "no"
			}
		}
	})
	return tags
}

func tagsToTable(L *lua.LState, tags map[string]string) *lua.LTable {
	tbl := L.NewTable()
	for k, v := range tags {
		tbl.RawSetString(k, lua.LString(v))
	}
	return tbl
}

// elementToLua converts an element to a Lua table
func (r *Runtime) elementToLua(e graph.Element) *lua.LTable {
	L := r.L
	tbl := L.NewTable()
	tbl.RawSetString("id", lua.LNumber(e.ID()))
	tbl.RawSetString("type", lua.LString(e.Kind().String()))
	tbl.RawSetString("version", lua.LNumber(e.Version()))
	tbl.RawSetString("state", lua.LString(e.State().String()))
	tbl.RawSetString("tags", tagsToTable(L, e.Tags()))

	switch v := e.(type) {
	case *graph.Node:
		tbl.RawSetString("lat", lua.LNumber(geo.FromE7(v.LatE7())))
		tbl.RawSetString("lon", lua.LNumber(geo.FromE7(v.LonE7())))
	case *graph.Way:
		tbl.RawSetString("is_closed", lua.LBool(v.IsClosed()))
		nodes := L.NewTable()
		for i, n := range v.Nodes() {
			nodes.RawSetInt(i+1, lua.LNumber(n.ID()))
		}
		tbl.RawSetString("nodes", nodes)
	case *graph.Relation:
		members := L.NewTable()
		for i, m := range v.Members() {
			mt := L.NewTable()
			mt.RawSetString("type", lua.LString(m.Element.Kind().String()))
			mt.RawSetString("ref", lua.LNumber(m.Element.ID()))
			mt.RawSetString("role", lua.LString(m.Role))
			members.RawSetInt(i+1, mt)
		}
		tbl.RawSetString("members", members)
	}
	return tbl
}
