package graph

import (
	"fmt"
	"slices"
)

// ChangeSet groups the pending changes by action
type ChangeSet struct {
	Created  []Element
	Modified []Element
	Deleted  []Element
}

// Len returns the number of changed elements
func (c *ChangeSet) Len() int {
	return len(c.Created) + len(c.Modified) + len(c.Deleted)
}

// Changes collects every element that differs from the server copy, ordered
// by kind and id within each action
func (s *Storage) Changes() *ChangeSet {
	cs := &ChangeSet{}
	collect := func(e Element) {
		switch e.State() {
		case StateCreated:
			cs.Created = append(cs.Created, e)
		case StateModified:
			cs.Modified = append(cs.Modified, e)
		}
	}
	for _, n := range s.nodes {
		collect(n)
	}
	for _, w := range s.ways {
		collect(w)
	}
	for _, r := range s.relations {
		collect(r)
	}
	for _, e := range s.deleted {
		cs.Deleted = append(cs.Deleted, e)
	}
	slices.SortFunc(cs.Created, compareElements)
	slices.SortFunc(cs.Modified, compareElements)
	slices.SortFunc(cs.Deleted, compareElements)
	return cs
}

// HasChanges reports whether anything needs uploading
func (s *Storage) HasChanges() bool {
	if len(s.deleted) > 0 {
		return true
	}
	for _, n := range s.nodes {
		if n.state != StateUnchanged {
			return true
		}
	}
	for _, w := range s.ways {
		if w.state != StateUnchanged {
			return true
		}
	}
	for _, r := range s.relations {
		if r.state != StateUnchanged {
			return true
		}
	}
	return false
}

// ChangeScanner walks pending change descriptions once. It follows the
// bufio.Scanner pattern: call Next until it returns false, reading Text.
type ChangeScanner struct {
	entries []Element
	pos     int
	current string
}

// Next advances to the next change
func (c *ChangeScanner) Next() bool {
	if c.pos >= len(c.entries) {
		c.current = ""
		c.entries = nil
		return false
	}
	e := c.entries[c.pos]
	c.pos++
	c.current = Describe(e)
	return true
}

// Text returns the description of the current change
func (c *ChangeScanner) Text() string {
	return c.current
}

// Describe returns a one-line description such as "created node -3"
func Describe(e Element) string {
	return fmt.Sprintf("%s %s %d", e.State(), e.Kind(), e.ID())
}

// PendingChanges returns a scanner over the changes pending when it is
// called. Later edits do not show up in it.
func (d *Delegator) PendingChanges() *ChangeScanner {
	cs := d.storage.Changes()
	entries := make([]Element, 0, cs.Len())
	entries = append(entries, cs.Created...)
	entries = append(entries, cs.Modified...)
	entries = append(entries, cs.Deleted...)
	return &ChangeScanner{entries: entries}
}

// ListChanges returns every pending change description
func (d *Delegator) ListChanges() []string {
	var out []string
	sc := d.PendingChanges()
	for sc.Next() {
		out = append(out, sc.Text())
	}
	return out
}

// HasChanges reports whether the storage holds pending changes
func (d *Delegator) HasChanges() bool {
	return d.storage.HasChanges()
}
