package graph

import "github.com/wegman-software/osmedit/internal/tagging"

// Factory hands out fresh elements with strictly decreasing negative ids
type Factory struct {
	next int64
}

// NewFactory creates a factory starting at -1
func NewFactory() *Factory {
	return &Factory{next: -1}
}

// Observe makes sure future ids stay below id
func (f *Factory) Observe(id int64) {
	if id <= f.next {
		f.next = id - 1
	}
}

// PeekID returns the id the next element will get
func (f *Factory) PeekID() int64 {
	return f.next
}

func (f *Factory) nextID() int64 {
	id := f.next
	f.next--
	return id
}

// CreateNode returns a new node that is not yet part of any storage
func (f *Factory) CreateNode(latE7, lonE7 int32) *Node {
	return &Node{
		element: element{id: f.nextID(), state: StateCreated, tags: tagging.Tags{}},
		lat:     latE7,
		lon:     lonE7,
	}
}

// CreateWay returns a new empty way
func (f *Factory) CreateWay() *Way {
	return &Way{element: element{id: f.nextID(), state: StateCreated, tags: tagging.Tags{}}}
}

// CreateRelation returns a new empty relation
func (f *Factory) CreateRelation() *Relation {
	return &Relation{element: element{id: f.nextID(), state: StateCreated, tags: tagging.Tags{}}}
}
