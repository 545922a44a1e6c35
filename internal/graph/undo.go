package graph

import (
	"slices"

	"github.com/wegman-software/osmedit/internal/tagging"
)

// DefaultUndoLimit is the number of checkpoints kept when no limit is configured
const DefaultUndoLimit = 100

// snapshot is the state of one element when a checkpoint first touched it
type snapshot struct {
	elem    Element
	live    bool
	deleted bool

	version int
	state   State
	tags    tagging.Tags
	parents []*Relation

	lat, lon int32
	nodes    []*Node
	members  []Member
}

// Checkpoint is one atomic, undoable unit of edits
type Checkpoint struct {
	Name  string
	saved map[Element]*snapshot
	order []Element
}

func newCheckpoint(name string) *Checkpoint {
	return &Checkpoint{Name: name, saved: make(map[Element]*snapshot)}
}

// Len returns the number of elements the checkpoint touched
func (c *Checkpoint) Len() int {
	return len(c.order)
}

// save records e as it is now, once per checkpoint
func (c *Checkpoint) save(s *Storage, e Element) {
	if _, ok := c.saved[e]; ok {
		return
	}
	b := e.base()
	_, deleted := s.deleted[e.Key()]
	snap := &snapshot{
		elem:    e,
		live:    s.Contains(e),
		deleted: deleted && s.deleted[e.Key()] == e,
		version: b.version,
		state:   b.state,
		tags:    b.tags,
		parents: slices.Clone(b.parents),
	}
	switch v := e.(type) {
	case *Node:
		snap.lat, snap.lon = v.lat, v.lon
	case *Way:
		snap.nodes = slices.Clone(v.nodes)
	case *Relation:
		snap.members = slices.Clone(v.members)
	}
	c.saved[e] = snap
	c.order = append(c.order, e)
}

// restore puts every touched element back to its saved state and returns them
func (c *Checkpoint) restore(s *Storage) []Element {
	// Drop index entries of touched ways before their node lists change
	for _, e := range c.order {
		if w, ok := e.(*Way); ok && s.Contains(w) {
			s.unindexWay(w)
		}
	}

	for i := len(c.order) - 1; i >= 0; i-- {
		e := c.order[i]
		snap := c.saved[e]
		b := e.base()
		b.version = snap.version
		b.state = snap.state
		b.tags = snap.tags
		b.parents = snap.parents
		switch v := e.(type) {
		case *Node:
			v.lat, v.lon = snap.lat, snap.lon
		case *Way:
			v.nodes = snap.nodes
		case *Relation:
			v.members = snap.members
		}

		if s.Contains(e) && !snap.live {
			if n, ok := e.(*Node); ok {
				// Keep index entries of ways outside this checkpoint
				ways := s.waynodes[n]
				s.dropLive(e)
				if len(ways) > 0 {
					s.waynodes[n] = ways
				}
			} else {
				s.dropLive(e)
			}
		} else if !s.Contains(e) && snap.live {
			s.putLive(e)
		}
		if snap.deleted {
			s.deleted[e.Key()] = e
		} else if s.deleted[e.Key()] == e {
			delete(s.deleted, e.Key())
		}
	}

	for _, e := range c.order {
		if w, ok := e.(*Way); ok && s.Contains(w) {
			s.indexWay(w)
		}
	}
	return slices.Clone(c.order)
}

// UndoLog is a bounded stack of committed checkpoints
type UndoLog struct {
	checkpoints []*Checkpoint
	limit       int
}

// NewUndoLog creates an undo log keeping at most limit checkpoints
func NewUndoLog(limit int) *UndoLog {
	if limit < 1 {
		limit = DefaultUndoLimit
	}
	return &UndoLog{limit: limit}
}

func (u *UndoLog) push(c *Checkpoint) {
	u.checkpoints = append(u.checkpoints, c)
	if len(u.checkpoints) > u.limit {
		// Oldest checkpoint can no longer be undone
		u.checkpoints = slices.Delete(u.checkpoints, 0, len(u.checkpoints)-u.limit)
	}
}

func (u *UndoLog) pop() *Checkpoint {
	if len(u.checkpoints) == 0 {
		return nil
	}
	c := u.checkpoints[len(u.checkpoints)-1]
	u.checkpoints = u.checkpoints[:len(u.checkpoints)-1]
	return c
}

// CanUndo reports whether a checkpoint is available
func (u *UndoLog) CanUndo() bool {
	return len(u.checkpoints) > 0
}

// Len returns the number of stored checkpoints
func (u *UndoLog) Len() int {
	return len(u.checkpoints)
}

// Names returns checkpoint names, newest first
func (u *UndoLog) Names() []string {
	names := make([]string, 0, len(u.checkpoints))
	for i := len(u.checkpoints) - 1; i >= 0; i-- {
		names = append(names, u.checkpoints[i].Name)
	}
	return names
}

// Clear drops every checkpoint
func (u *UndoLog) Clear() {
	u.checkpoints = nil
}
