package graph

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/wegman-software/osmedit/internal/editerr"
	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/logger"
	"github.com/wegman-software/osmedit/internal/tagging"
)

// Observer is notified about the outcome of edits
type Observer interface {
	CheckpointCommitted(name string, elements int)
	CheckpointUndone(name string)
	OperationFailed(op string, err error)
}

// Delegator is the only mutator of a Storage. Every public operation runs in a
// checkpoint: its own, or one opened with BeginCheckpoint.
type Delegator struct {
	storage  *Storage
	factory  *Factory
	undo     *UndoLog
	rules    *tagging.Rules
	observer Observer

	open     *Checkpoint
	depth    int
	revision uint64
}

// NewDelegator creates a delegator over s
func NewDelegator(s *Storage, undoLimit int, rules *tagging.Rules) *Delegator {
	if s == nil {
		s = NewStorage()
	}
	if rules == nil {
		rules = tagging.DefaultRules()
	}
	d := &Delegator{
		storage: s,
		factory: NewFactory(),
		undo:    NewUndoLog(undoLimit),
		rules:   rules,
	}
	d.observeIDs()
	return d
}

// SetObserver installs an observer; nil removes it
func (d *Delegator) SetObserver(o Observer) {
	d.observer = o
}

// Storage returns the current storage
func (d *Delegator) Storage() *Storage { return d.storage }

// Factory returns the element factory
func (d *Delegator) Factory() *Factory { return d.factory }

// Rules returns the tagging rules in use
func (d *Delegator) Rules() *tagging.Rules { return d.rules }

// UndoLog returns the undo history
func (d *Delegator) UndoLog() *UndoLog { return d.undo }

// SetStorage replaces the storage wholesale and clears the undo history
func (d *Delegator) SetStorage(s *Storage) {
	if d.open != nil {
		d.RollbackCheckpoint()
	}
	d.storage = s
	d.undo.Clear()
	d.observeIDs()
}

// observeIDs keeps new ids below any negative id already present
func (d *Delegator) observeIDs() {
	for _, n := range d.storage.nodes {
		d.factory.Observe(n.id)
	}
	for _, w := range d.storage.ways {
		d.factory.Observe(w.id)
	}
	for _, r := range d.storage.relations {
		d.factory.Observe(r.id)
	}
}

// BeginCheckpoint opens a named checkpoint that following operations join.
// Nested calls join the outermost checkpoint.
func (d *Delegator) BeginCheckpoint(name string) {
	d.begin(name)
}

// EndCheckpoint closes the checkpoint opened by the matching BeginCheckpoint.
// When the outermost checkpoint closes with a way left invalid, every change
// of the checkpoint is rolled back and ErrInvariant returned.
func (d *Delegator) EndCheckpoint() error {
	if d.open == nil {
		return fmt.Errorf("no open checkpoint: %w", editerr.ErrInvariant)
	}
	return d.end()
}

// RollbackCheckpoint discards the open checkpoint and restores its elements
func (d *Delegator) RollbackCheckpoint() {
	if d.open == nil {
		return
	}
	cp := d.open
	d.open, d.depth = nil, 0
	cp.restore(d.storage)
	logger.Get().Debug("Rolled back checkpoint", zap.String("name", cp.Name))
}

// InCheckpoint reports whether a checkpoint is open
func (d *Delegator) InCheckpoint() bool {
	return d.open != nil
}

// Undo reverts the newest checkpoint and returns its name; "" when there is
// nothing to undo. An open checkpoint is only rolled back.
func (d *Delegator) Undo() string {
	if cp := d.open; cp != nil {
		d.RollbackCheckpoint()
		d.revision++
		if d.observer != nil {
			d.observer.CheckpointUndone(cp.Name)
		}
		return cp.Name
	}
	cp := d.undo.pop()
	if cp == nil {
		return ""
	}
	cp.restore(d.storage)
	d.revision++
	logger.Get().Debug("Undid checkpoint", zap.String("name", cp.Name), zap.Int("elements", cp.Len()))
	if d.observer != nil {
		d.observer.CheckpointUndone(cp.Name)
	}
	return cp.Name
}

// CanUndo reports whether Undo would do something
func (d *Delegator) CanUndo() bool {
	return d.undo.CanUndo()
}

// Revision counts committed and undone checkpoints
func (d *Delegator) Revision() uint64 {
	return d.revision
}

// UndoNames lists the undoable checkpoints, newest first
func (d *Delegator) UndoNames() []string {
	return d.undo.Names()
}

// Exists reports whether e is live in the current storage
func (d *Delegator) Exists(e Element) bool {
	return d.storage.Contains(e)
}

func (d *Delegator) begin(name string) {
	if d.open == nil {
		d.open = newCheckpoint(name)
	}
	d.depth++
}

func (d *Delegator) end() error {
	d.depth--
	if d.depth > 0 {
		return nil
	}
	cp := d.open
	d.open = nil

	if err := d.checkWays(cp); err != nil {
		cp.restore(d.storage)
		return d.failed(cp.Name, err)
	}
	if cp.Len() == 0 {
		return nil
	}
	d.undo.push(cp)
	d.revision++
	logger.Get().Debug("Committed checkpoint", zap.String("name", cp.Name), zap.Int("elements", cp.Len()))
	if d.observer != nil {
		d.observer.CheckpointCommitted(cp.Name, cp.Len())
	}
	return nil
}

// abort leaves the current operation after a refused nested call. The
// outermost level restores whatever the checkpoint changed.
func (d *Delegator) abort() {
	d.depth--
	if d.depth > 0 {
		return
	}
	cp := d.open
	d.open = nil
	cp.restore(d.storage)
}

// checkWays verifies the node lists of every live way the checkpoint touched
func (d *Delegator) checkWays(cp *Checkpoint) error {
	for _, e := range cp.order {
		w, ok := e.(*Way)
		if !ok || !d.storage.Contains(w) {
			continue
		}
		if len(w.nodes) < 2 {
			return fmt.Errorf("way %d has %d nodes: %w", w.id, len(w.nodes), editerr.ErrInvariant)
		}
		for i := 1; i < len(w.nodes); i++ {
			if w.nodes[i] == w.nodes[i-1] {
				return fmt.Errorf("way %d repeats node %d: %w", w.id, w.nodes[i].id, editerr.ErrInvariant)
			}
		}
	}
	return nil
}

// failed reports a refused operation
func (d *Delegator) failed(op string, err error) error {
	logger.Get().Debug("Edit refused", zap.String("op", op), zap.Error(err))
	if d.observer != nil {
		d.observer.OperationFailed(op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (d *Delegator) save(e Element) {
	d.open.save(d.storage, e)
}

func (d *Delegator) markModified(e Element) {
	if b := e.base(); b.state == StateUnchanged {
		b.state = StateModified
	}
}

func (d *Delegator) requireLive(elems ...Element) error {
	for _, e := range elems {
		if e == nil {
			return fmt.Errorf("missing element: %w", editerr.ErrInvariant)
		}
		if !d.storage.Contains(e) {
			return fmt.Errorf("%s is not in storage: %w", e.Key(), editerr.ErrInvariant)
		}
	}
	return nil
}

// setWayNodes replaces a way's node list and keeps the index current
func (d *Delegator) setWayNodes(w *Way, nodes []*Node) {
	d.save(w)
	d.storage.unindexWay(w)
	w.nodes = nodes
	d.storage.indexWay(w)
	d.markModified(w)
}

func (d *Delegator) setTags(e Element, tags tagging.Tags) {
	if e.Tags().Equal(tags) {
		return
	}
	d.save(e)
	e.base().tags = tags
	d.markModified(e)
}

// retire removes e from the live sets. Elements never uploaded vanish; others
// become tombstones flagged deleted.
func (d *Delegator) retire(e Element) {
	d.save(e)
	d.storage.remove(e)
	b := e.base()
	if b.state == StateCreated {
		return
	}
	b.state = StateDeleted
	d.storage.deleted[e.Key()] = e
}

func validCoordinates(latE7, lonE7 int32) error {
	if latE7 < -900000000 || latE7 > 900000000 || lonE7 < -geo.MaxLonE7 || lonE7 > geo.MaxLonE7 {
		return fmt.Errorf("coordinates %d,%d: %w", latE7, lonE7, editerr.ErrGeometry)
	}
	return nil
}

// InsertElement adds a newly created element. Ways need at least two live
// nodes and relations live members.
func (d *Delegator) InsertElement(e Element) error {
	op := "insert " + e.Kind().String()
	if e.State() != StateCreated {
		return d.failed(op, fmt.Errorf("%s is not new: %w", e.Key(), editerr.ErrInvariant))
	}
	if d.storage.hasID(e.Key()) {
		return d.failed(op, fmt.Errorf("id collision for %s: %w", e.Key(), editerr.ErrInvariant))
	}
	switch v := e.(type) {
	case *Node:
		if err := validCoordinates(v.lat, v.lon); err != nil {
			return d.failed(op, err)
		}
	case *Way:
		if len(v.nodes) < 2 {
			return d.failed(op, fmt.Errorf("way needs two nodes: %w", editerr.ErrInvariant))
		}
		for i, n := range v.nodes {
			if err := d.requireLive(n); err != nil {
				return d.failed(op, err)
			}
			if i > 0 && v.nodes[i-1] == n {
				return d.failed(op, fmt.Errorf("way repeats node %d: %w", n.id, editerr.ErrInvariant))
			}
		}
	case *Relation:
		for _, m := range v.members {
			if err := d.requireLive(m.Element); err != nil {
				return d.failed(op, err)
			}
		}
	}

	d.begin(op)
	d.save(e)
	d.storage.add(e)
	if r, ok := e.(*Relation); ok {
		for _, m := range r.members {
			d.save(m.Element)
			m.Element.base().addParent(r)
		}
	}
	d.factory.Observe(e.ID())
	return d.end()
}

// UpdateLatLon moves a node
func (d *Delegator) UpdateLatLon(n *Node, latE7, lonE7 int32) error {
	if err := d.requireLive(n); err != nil {
		return d.failed("move node", err)
	}
	if err := validCoordinates(latE7, lonE7); err != nil {
		return d.failed("move node", err)
	}
	if n.lat == latE7 && n.lon == lonE7 {
		return nil
	}
	d.begin("move node")
	d.save(n)
	n.lat, n.lon = latE7, lonE7
	d.markModified(n)
	return d.end()
}

// InsertTags replaces the tags of e. Keys listed as discardable are dropped
// and blank keys or values are never stored.
func (d *Delegator) InsertTags(e Element, tags map[string]string) error {
	if err := d.requireLive(e); err != nil {
		return d.failed("set tags", err)
	}
	clean := d.rules.Clean(tags)
	if e.Tags().Equal(clean) {
		return nil
	}
	d.begin("set tags")
	d.setTags(e, clean)
	return d.end()
}

// AddNodeToWay appends n to the end of w
func (d *Delegator) AddNodeToWay(n *Node, w *Way) error {
	if err := d.requireLive(n, w); err != nil {
		return d.failed("add node to way", err)
	}
	if w.LastNode() == n {
		return d.failed("add node to way", fmt.Errorf("node %d already ends way %d: %w", n.id, w.id, editerr.ErrInvariant))
	}
	d.begin("add node to way")
	d.setWayNodes(w, append(slices.Clone(w.nodes), n))
	return d.end()
}

// AddNodeToWayAfter inserts n right after the first occurrence of prev in w
func (d *Delegator) AddNodeToWayAfter(prev, n *Node, w *Way) error {
	if err := d.requireLive(prev, n, w); err != nil {
		return d.failed("insert node into way", err)
	}
	i := w.indexOf(prev)
	if i < 0 {
		return d.failed("insert node into way", fmt.Errorf("node %d is not in way %d: %w", prev.id, w.id, editerr.ErrInvariant))
	}
	if prev == n || (i+1 < len(w.nodes) && w.nodes[i+1] == n) {
		return d.failed("insert node into way", fmt.Errorf("node %d would repeat in way %d: %w", n.id, w.id, editerr.ErrInvariant))
	}
	d.begin("insert node into way")
	d.setWayNodes(w, slices.Insert(slices.Clone(w.nodes), i+1, n))
	return d.end()
}

// AppendNodeToWay extends w at the end that last occupies: appended when last
// is the final node, prepended when it is the first
func (d *Delegator) AppendNodeToWay(last, n *Node, w *Way) error {
	if err := d.requireLive(last, n, w); err != nil {
		return d.failed("append node", err)
	}
	if last == n {
		return d.failed("append node", fmt.Errorf("node %d would repeat in way %d: %w", n.id, w.id, editerr.ErrInvariant))
	}
	var nodes []*Node
	switch {
	case w.LastNode() == last:
		nodes = append(slices.Clone(w.nodes), n)
	case w.FirstNode() == last:
		nodes = append([]*Node{n}, w.nodes...)
	default:
		return d.failed("append node", fmt.Errorf("node %d is not an end of way %d: %w", last.id, w.id, editerr.ErrInvariant))
	}
	d.begin("append node")
	d.setWayNodes(w, nodes)
	return d.end()
}

// CreateAndInsertWay starts a new way at first. The way is valid only once a
// second node is added, so this must run inside BeginCheckpoint/EndCheckpoint.
func (d *Delegator) CreateAndInsertWay(first *Node) (*Way, error) {
	if d.open == nil {
		return nil, d.failed("create way", fmt.Errorf("create way outside checkpoint: %w", editerr.ErrInvariant))
	}
	if err := d.requireLive(first); err != nil {
		return nil, d.failed("create way", err)
	}
	w := d.factory.CreateWay()
	d.begin("create way")
	d.save(w)
	w.nodes = []*Node{first}
	d.storage.add(w)
	return w, d.end()
}
