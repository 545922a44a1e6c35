package graph

import (
	"errors"
	"slices"
	"testing"

	"github.com/wegman-software/osmedit/internal/editerr"
)

// editFixture is a small street network:
//
//	w10 1-2-3, w11 3-4-5, w12 5-6 (river), closed w13 20-21-22-23-20,
//	free node 7 with tags, restriction r30 from w10 via n3 to w11
func editFixture(t *testing.T) *Delegator {
	return buildDelegator(t, func(b *Builder) {
		addLine(b, 1, 2, 3, 4, 5, 6)
		b.AddNode(7, 1, 480002000, 75804000, map[string]string{"amenity": "bench"}, StateUnchanged)
		b.AddNode(20, 1, 481000000, 75900000, nil, StateUnchanged)
		b.AddNode(21, 1, 481000000, 75910000, nil, StateUnchanged)
		b.AddNode(22, 1, 481010000, 75910000, nil, StateUnchanged)
		b.AddNode(23, 1, 481010000, 75900000, nil, StateUnchanged)
		b.AddWay(10, 1, []int64{1, 2, 3}, map[string]string{"highway": "residential"}, StateUnchanged)
		b.AddWay(11, 1, []int64{3, 4, 5}, map[string]string{"highway": "residential"}, StateUnchanged)
		b.AddWay(12, 1, []int64{5, 6}, map[string]string{"waterway": "river"}, StateUnchanged)
		b.AddWay(13, 1, []int64{20, 21, 22, 23, 20}, map[string]string{"building": "yes"}, StateUnchanged)
		b.AddRelation(30, 1, []MemberRef{
			{Kind: KindWay, Ref: 10, Role: RoleFrom},
			{Kind: KindNode, Ref: 3, Role: RoleVia},
			{Kind: KindWay, Ref: 11, Role: RoleTo},
		}, map[string]string{"type": "restriction", "restriction": "no_left_turn"}, StateUnchanged)
	})
}

func TestEveryOperationIsUndoable(t *testing.T) {
	tests := []struct {
		name string
		op   func(d *Delegator, s *Storage) error
	}{
		{"move node", func(d *Delegator, s *Storage) error {
			return d.UpdateLatLon(s.GetNode(2), 480001000, 75802000)
		}},
		{"set tags", func(d *Delegator, s *Storage) error {
			return d.InsertTags(s.GetWay(10), map[string]string{"highway": "service", "created_by": "x"})
		}},
		{"remove shared node", func(d *Delegator, s *Storage) error {
			return d.RemoveNode(s.GetNode(3))
		}},
		{"remove closing node", func(d *Delegator, s *Storage) error {
			return d.RemoveNode(s.GetNode(20))
		}},
		{"erase way with nodes", func(d *Delegator, s *Storage) error {
			return d.Erase(s.GetWay(11), true)
		}},
		{"split", func(d *Delegator, s *Storage) error {
			_, err := d.SplitAtNode(s.GetWay(10), s.GetNode(2))
			return err
		}},
		{"split closed", func(d *Delegator, s *Storage) error {
			_, err := d.ClosedWaySplit(s.GetWay(13), s.GetNode(21), s.GetNode(23))
			return err
		}},
		{"merge", func(d *Delegator, s *Storage) error {
			return d.Merge(s.GetWay(10), s.GetWay(11))
		}},
		{"join nodes", func(d *Delegator, s *Storage) error {
			return d.Join(s.GetNode(4), s.GetNode(7))
		}},
		{"join way", func(d *Delegator, s *Storage) error {
			return d.Join(s.GetWay(10), s.GetNode(7))
		}},
		{"unjoin", func(d *Delegator, s *Storage) error {
			return d.Unjoin(s.GetNode(3))
		}},
		{"reverse", func(d *Delegator, s *Storage) error {
			_, err := d.Reverse(s.GetWay(11), false)
			return err
		}},
		{"create restriction", func(d *Delegator, s *Storage) error {
			_, err := d.CreateRestriction(s.GetWay(11), s.GetNode(5), s.GetWay(12))
			return err
		}},
		{"erase relation", func(d *Delegator, s *Storage) error {
			return d.EraseRelation(s.GetRelation(30))
		}},
		{"add member", func(d *Delegator, s *Storage) error {
			return d.AddMember(s.GetRelation(30), s.GetNode(7), "")
		}},
		{"add node to way", func(d *Delegator, s *Storage) error {
			return d.AddNodeToWay(s.GetNode(7), s.GetWay(12))
		}},
		{"prepend node", func(d *Delegator, s *Storage) error {
			return d.AppendNodeToWay(s.GetNode(1), s.GetNode(7), s.GetWay(10))
		}},
		{"insert after", func(d *Delegator, s *Storage) error {
			return d.AddNodeToWayAfter(s.GetNode(1), s.GetNode(7), s.GetWay(10))
		}},
		{"paste", func(d *Delegator, s *Storage) error {
			_, err := d.Paste(Freeze(s.GetWay(13)), 5000, 5000)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := editFixture(t)
			s := d.Storage()
			before := dump(s)

			if err := tt.op(d, s); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			mustValidate(t, s)
			if dump(s) == before {
				t.Fatal("expected the operation to change the storage")
			}
			if !d.HasChanges() {
				t.Error("expected pending changes after the edit")
			}

			if name := d.Undo(); name == "" {
				t.Fatal("expected a checkpoint to undo")
			}
			mustValidate(t, s)
			if after := dump(s); after != before {
				t.Errorf("expected undo to restore the storage\nexpected:\n%s\ngot:\n%s", before, after)
			}
			if d.HasChanges() {
				t.Errorf("expected no pending changes after undo, got %v", d.ListChanges())
			}
		})
	}
}

func TestSplitAtNode(t *testing.T) {
	d := buildDelegator(t, func(b *Builder) {
		addLine(b, 1, 2, 3, 4)
		b.AddWay(10, 1, []int64{1, 2, 3, 4}, map[string]string{"highway": "residential"}, StateUnchanged)
		b.AddRelation(100, 1, []MemberRef{{Kind: KindWay, Ref: 10, Role: "outer"}}, nil, StateUnchanged)
		b.AddRelation(101, 1, []MemberRef{{Kind: KindNode, Ref: 3, Role: "stop"}}, nil, StateUnchanged)
	})
	s := d.Storage()
	w, c := s.GetWay(10), s.GetNode(3)
	before := dump(s)

	nw, err := d.SplitAtNode(w, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustValidate(t, s)

	if got := nodeIDs(w); !slices.Equal(got, []int64{1, 2, 3}) {
		t.Errorf("expected original way [1 2 3], got %v", got)
	}
	if got := nodeIDs(nw); !slices.Equal(got, []int64{3, 4}) {
		t.Errorf("expected new way [3 4], got %v", got)
	}
	if w.State() != StateModified || nw.State() != StateCreated {
		t.Errorf("expected states modified/created, got %s/%s", w.State(), nw.State())
	}
	if !nw.Tags().Equal(w.Tags()) {
		t.Errorf("expected copied tags, got %v", nw.Tags())
	}
	r := s.GetRelation(100)
	if r.MemberCount() != 2 || r.Members()[1].Element != nw || r.Members()[1].Role != "outer" {
		t.Errorf("expected new way added to relation after the original, got %v", r.Members())
	}
	if ps := c.Parents(); len(ps) != 1 || ps[0].ID() != 101 {
		t.Errorf("expected split node memberships unchanged, got %v", ps)
	}

	d.Undo()
	if dump(s) != before {
		t.Errorf("expected undo to restore the way")
	}
	if d.Exists(nw) {
		t.Error("expected the new way to be gone after undo")
	}
}

func TestSplitRefusals(t *testing.T) {
	d := editFixture(t)
	s := d.Storage()

	tests := []struct {
		name string
		w    *Way
		n    *Node
	}{
		{"first node", s.GetWay(10), s.GetNode(1)},
		{"last node", s.GetWay(10), s.GetNode(3)},
		{"foreign node", s.GetWay(10), s.GetNode(4)},
		{"closed way", s.GetWay(13), s.GetNode(21)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.SplitAtNode(tt.w, tt.n); !errors.Is(err, editerr.ErrInvariant) {
				t.Errorf("expected ErrInvariant, got %v", err)
			}
		})
	}
	if d.CanUndo() {
		t.Error("expected refused splits to leave no checkpoint")
	}
}

func TestClosedWaySplit(t *testing.T) {
	d := editFixture(t)
	s := d.Storage()
	w := s.GetWay(13)

	nw, err := d.ClosedWaySplit(w, s.GetNode(23), s.GetNode(21))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustValidate(t, s)
	if got := nodeIDs(w); !slices.Equal(got, []int64{21, 22, 23}) {
		t.Errorf("expected [21 22 23], got %v", got)
	}
	if got := nodeIDs(nw); !slices.Equal(got, []int64{23, 20, 21}) {
		t.Errorf("expected [23 20 21], got %v", got)
	}
	if w.IsClosed() || nw.IsClosed() {
		t.Error("expected both parts to be open")
	}
}

func TestMergeTagConflict(t *testing.T) {
	d := buildDelegator(t, func(b *Builder) {
		addLine(b, 1, 2, 3)
		b.AddWay(10, 1, []int64{1, 2}, map[string]string{"highway": "residential", "name": "X"}, StateUnchanged)
		b.AddWay(11, 1, []int64{2, 3}, map[string]string{"highway": "residential", "name": "Y"}, StateUnchanged)
	})
	s := d.Storage()
	before := dump(s)

	err := d.Merge(s.GetWay(10), s.GetWay(11))
	if !errors.Is(err, editerr.ErrMergeTagConflict) {
		t.Fatalf("expected ErrMergeTagConflict, got %v", err)
	}
	if editerr.KindOf(err) != editerr.KindMergeTagConflict {
		t.Errorf("expected kind MERGE_TAG_CONFLICT, got %s", editerr.KindOf(err))
	}
	if dump(s) != before {
		t.Error("expected both ways to remain untouched")
	}
	if d.CanUndo() {
		t.Error("expected no checkpoint for a refused merge")
	}
}

func TestMergeOnewayIsNotReversed(t *testing.T) {
	d := buildDelegator(t, func(b *Builder) {
		addLine(b, 1, 2, 3)
		b.AddWay(10, 1, []int64{1, 2}, nil, StateUnchanged)
		b.AddWay(11, 1, []int64{3, 2}, map[string]string{"highway": "primary", "oneway": "yes"}, StateUnchanged)
	})
	s := d.Storage()
	if err := d.Merge(s.GetWay(10), s.GetWay(11)); !errors.Is(err, editerr.ErrMergeTagConflict) {
		t.Errorf("expected ErrMergeTagConflict, got %v", err)
	}
}

func TestMergeThenSplit(t *testing.T) {
	tests := []struct {
		name     string
		w1, w2   []int64
		expected []int64
	}{
		{"last to first", []int64{1, 2, 3}, []int64{3, 4, 5}, []int64{1, 2, 3, 4, 5}},
		{"last to last", []int64{1, 2, 3}, []int64{5, 4, 3}, []int64{1, 2, 3, 4, 5}},
		{"first to last", []int64{3, 4, 5}, []int64{1, 2, 3}, []int64{1, 2, 3, 4, 5}},
		{"first to first", []int64{3, 4, 5}, []int64{3, 2, 1}, []int64{1, 2, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := buildDelegator(t, func(b *Builder) {
				addLine(b, 1, 2, 3, 4, 5)
				b.AddWay(10, 1, tt.w1, map[string]string{"highway": "track"}, StateUnchanged)
				b.AddWay(11, 1, tt.w2, nil, StateUnchanged)
			})
			s := d.Storage()
			w1 := s.GetWay(10)

			if err := d.Merge(w1, s.GetWay(11)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			mustValidate(t, s)
			if got := nodeIDs(w1); !slices.Equal(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
			if s.GetWay(11) != nil {
				t.Error("expected w2 to be deleted")
			}

			nw, err := d.SplitAtNode(w1, s.GetNode(3))
			if err != nil {
				t.Fatalf("unexpected split error: %v", err)
			}
			got := [][]int64{sortedIDs(nodeIDs(w1)), sortedIDs(nodeIDs(nw))}
			want := [][]int64{sortedIDs(tt.w1), sortedIDs(tt.w2)}
			slices.SortFunc(got, slices.Compare)
			slices.SortFunc(want, slices.Compare)
			if !slices.EqualFunc(got, want, slices.Equal) {
				t.Errorf("expected node sets %v, got %v", want, got)
			}
		})
	}
}

func sortedIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}

func TestUnjoin(t *testing.T) {
	d := buildDelegator(t, func(b *Builder) {
		addLine(b, 1, 2, 3, 4, 5)
		b.AddWay(10, 1, []int64{1, 3}, nil, StateUnchanged)
		b.AddWay(11, 1, []int64{3, 4}, nil, StateUnchanged)
		b.AddWay(12, 1, []int64{5, 3, 2}, nil, StateUnchanged)
	})
	s := d.Storage()
	n := s.GetNode(3)

	if err := d.Unjoin(n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustValidate(t, s)

	if !s.GetWay(10).HasNode(n) {
		t.Error("expected the first way to keep the node")
	}
	for _, id := range []int64{11, 12} {
		if s.GetWay(id).HasNode(n) {
			t.Errorf("expected way %d to get its own node", id)
		}
	}
	if ways := s.WaysContaining(n); len(ways) != 1 {
		t.Errorf("expected node in 1 way, got %d", len(ways))
	}
	at := 0
	for _, o := range s.Nodes() {
		if o.LatE7() == n.LatE7() && o.LonE7() == n.LonE7() {
			at++
		}
	}
	if at != 3 {
		t.Errorf("expected 3 nodes at the position, got %d", at)
	}

	if err := d.Unjoin(s.GetNode(1)); !errors.Is(err, editerr.ErrInvariant) {
		t.Errorf("expected ErrInvariant for an unshared node, got %v", err)
	}
}

func TestRemoveNode(t *testing.T) {
	d := editFixture(t)
	s := d.Storage()

	if err := d.RemoveNode(s.GetNode(3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustValidate(t, s)
	if got := nodeIDs(s.GetWay(10)); !slices.Equal(got, []int64{1, 2}) {
		t.Errorf("expected [1 2], got %v", got)
	}
	if s.GetRelation(30).MemberCount() != 2 {
		t.Errorf("expected via member dropped, got %v", s.GetRelation(30).Members())
	}
	deleted := s.Deleted()
	if len(deleted) != 1 || deleted[0].ID() != 3 || deleted[0].State() != StateDeleted {
		t.Errorf("expected tombstone for node 3, got %v", deleted)
	}

	// A two node way loses its only other node and disappears
	if err := d.RemoveNode(s.GetNode(6)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.GetWay(12) != nil {
		t.Error("expected way 12 to be deleted")
	}

	if err := d.RemoveNode(s.GetNode(20)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w := s.GetWay(13)
	if got := nodeIDs(w); !slices.Equal(got, []int64{21, 22, 23, 21}) {
		t.Errorf("expected ring closed on 21, got %v", got)
	}
	mustValidate(t, s)

	// The triangle left over loses its closing node and becomes degenerate
	if err := d.RemoveNode(s.GetNode(21)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.GetWay(13) != nil {
		t.Errorf("expected degenerate ring deleted, got %v", nodeIDs(s.GetWay(13)))
	}
	if s.GetNode(22) == nil || s.GetNode(23) == nil {
		t.Error("expected the remaining ring nodes to stay")
	}
	mustValidate(t, s)
}

func TestRemoveCreatedNodeLeavesNoTombstone(t *testing.T) {
	d := NewDelegator(nil, 0, nil)
	n := d.Factory().CreateNode(10, 10)
	if err := d.InsertElement(n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.RemoveNode(n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Storage().IsEmpty() || len(d.Storage().Deleted()) != 0 {
		t.Error("expected a created node to vanish entirely")
	}
	if d.HasChanges() {
		t.Error("expected no pending changes")
	}
}

func TestJoin(t *testing.T) {
	t.Run("nodes", func(t *testing.T) {
		d := editFixture(t)
		s := d.Storage()
		target := s.GetNode(4)
		if err := d.Join(target, s.GetNode(7)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.GetNode(7) != nil {
			t.Error("expected the joined node to be deleted")
		}
		if target.Tags().Get("amenity") != "bench" {
			t.Errorf("expected tags moved to target, got %v", target.Tags())
		}
	})

	t.Run("node tag conflict", func(t *testing.T) {
		d := buildDelegator(t, func(b *Builder) {
			b.AddNode(1, 1, 0, 0, map[string]string{"name": "A"}, StateUnchanged)
			b.AddNode(2, 1, 0, 10, map[string]string{"name": "B"}, StateUnchanged)
		})
		s := d.Storage()
		if err := d.Join(s.GetNode(1), s.GetNode(2)); !errors.Is(err, editerr.ErrMergeTagConflict) {
			t.Errorf("expected ErrMergeTagConflict, got %v", err)
		}
	})

	t.Run("node into way", func(t *testing.T) {
		d := buildDelegator(t, func(b *Builder) {
			b.AddNode(1, 1, 0, 0, nil, StateUnchanged)
			b.AddNode(2, 1, 0, 1000, nil, StateUnchanged)
			b.AddNode(3, 1, 0, 2000, nil, StateUnchanged)
			b.AddNode(4, 1, 40, 1500, nil, StateUnchanged)
			b.AddWay(10, 1, []int64{1, 2, 3}, nil, StateUnchanged)
		})
		s := d.Storage()
		n := s.GetNode(4)
		if err := d.Join(s.GetWay(10), n); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := nodeIDs(s.GetWay(10)); !slices.Equal(got, []int64{1, 2, 4, 3}) {
			t.Errorf("expected node inserted on the nearest segment, got %v", got)
		}
		if n.LatE7() != 0 || n.LonE7() != 1500 {
			t.Errorf("expected node snapped to 0,1500, got %d,%d", n.LatE7(), n.LonE7())
		}
	})
}

func TestReverse(t *testing.T) {
	d := editFixture(t)
	s := d.Storage()

	if _, err := d.Reverse(s.GetWay(12), false); !errors.Is(err, editerr.ErrNotReversible) {
		t.Errorf("expected ErrNotReversible for a river, got %v", err)
	}
	if _, err := d.Reverse(s.GetWay(12), true); err != nil {
		t.Fatalf("unexpected error when forced: %v", err)
	}
	if got := nodeIDs(s.GetWay(12)); !slices.Equal(got, []int64{6, 5}) {
		t.Errorf("expected [6 5], got %v", got)
	}

	if err := d.InsertTags(s.GetWay(10), map[string]string{"highway": "residential", "oneway": "yes"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oneway, err := d.Reverse(s.GetWay(10), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !oneway {
		t.Error("expected the oneway flag to be reported")
	}
}

func TestCreateRestriction(t *testing.T) {
	d := editFixture(t)
	s := d.Storage()

	r, err := d.CreateRestriction(s.GetWay(10), s.GetNode(3), s.GetWay(11))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustValidate(t, s)
	if r.Tags().Get("type") != "restriction" {
		t.Errorf("expected type=restriction, got %v", r.Tags())
	}
	roles := []string{}
	for _, m := range r.Members() {
		roles = append(roles, m.Role)
	}
	if !slices.Equal(roles, []string{RoleFrom, RoleVia, RoleTo}) {
		t.Errorf("expected from/via/to, got %v", roles)
	}
	if d.UndoLog().Len() != 1 {
		t.Errorf("expected one checkpoint, got %d", d.UndoLog().Len())
	}

	if _, err := d.CreateRestriction(s.GetWay(10), s.GetNode(2), s.GetWay(11)); !errors.Is(err, editerr.ErrInvariant) {
		t.Errorf("expected ErrInvariant for an interior via node, got %v", err)
	}
	if _, err := d.CreateRestriction(s.GetWay(10), s.GetWay(12), s.GetWay(11)); !errors.Is(err, editerr.ErrInvariant) {
		t.Errorf("expected ErrInvariant for a disconnected via way, got %v", err)
	}
}

func TestCheckpointGroupsOperations(t *testing.T) {
	d := editFixture(t)
	s := d.Storage()

	d.BeginCheckpoint("batch")
	if err := d.UpdateLatLon(s.GetNode(2), 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.InsertTags(s.GetNode(2), map[string]string{"barrier": "gate"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.EndCheckpoint(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.UndoLog().Len() != 1 {
		t.Fatalf("expected 1 checkpoint, got %d", d.UndoLog().Len())
	}
	if name := d.Undo(); name != "batch" {
		t.Errorf("expected to undo batch, got %q", name)
	}
	if n := s.GetNode(2); n.LatE7() == 1 || n.HasTag("barrier") {
		t.Error("expected both edits undone")
	}
}

func TestUndoOpenCheckpoint(t *testing.T) {
	d := editFixture(t)
	s := d.Storage()

	if err := d.InsertTags(s.GetNode(2), map[string]string{"barrier": "gate"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := s.GetNode(1)
	lat, lon := n.LatE7(), n.LonE7()
	d.BeginCheckpoint("move")
	if err := d.UpdateLatLon(n, lat+1000, lon+1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if name := d.Undo(); name != "move" {
		t.Errorf("expected to undo move, got %q", name)
	}
	if d.InCheckpoint() {
		t.Error("expected the open checkpoint to be closed")
	}
	if n.LatE7() != lat || n.LonE7() != lon {
		t.Errorf("expected node at %d,%d, got %d,%d", lat, lon, n.LatE7(), n.LonE7())
	}
	if !s.GetNode(2).HasTag("barrier") {
		t.Error("expected the committed tag edit to survive")
	}
	if names := d.UndoNames(); len(names) != 1 {
		t.Errorf("expected the tag checkpoint to stay undoable, got %v", names)
	}
}

func TestCheckpointRollsBackInvalidWay(t *testing.T) {
	d := NewDelegator(nil, 0, nil)
	n := d.Factory().CreateNode(0, 0)

	if _, err := d.CreateAndInsertWay(n); !errors.Is(err, editerr.ErrInvariant) {
		t.Errorf("expected ErrInvariant outside a checkpoint, got %v", err)
	}

	d.BeginCheckpoint("add")
	if err := d.InsertElement(n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := d.CreateAndInsertWay(n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.EndCheckpoint(); !errors.Is(err, editerr.ErrInvariant) {
		t.Fatalf("expected ErrInvariant for a one node way, got %v", err)
	}
	if !d.Storage().IsEmpty() {
		t.Error("expected the checkpoint to be rolled back")
	}
	if d.CanUndo() {
		t.Error("expected no checkpoint to be recorded")
	}
}

func TestInsertAndUndoWay(t *testing.T) {
	d := NewDelegator(nil, 0, nil)
	f := d.Factory()

	d.BeginCheckpoint("add")
	n1 := f.CreateNode(480000000, 75800000)
	if err := d.InsertElement(n1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w, err := d.CreateAndInsertWay(n1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n2 := f.CreateNode(480010000, 75810000)
	if err := d.InsertElement(n2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.AddNodeToWay(n2, w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.EndCheckpoint(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := d.Storage()
	mustValidate(t, s)
	if s.WayCount() != 1 || s.NodeCount() != 2 || w.ID() >= 0 {
		t.Errorf("expected one created way with two nodes, got %d ways %d nodes", s.WayCount(), s.NodeCount())
	}

	if name := d.Undo(); name != "add" {
		t.Errorf("expected to undo add, got %q", name)
	}
	mustValidate(t, s)
	if !s.IsEmpty() {
		t.Error("expected empty storage after undo")
	}
	if len(s.WaysContaining(n1)) != 0 || len(s.WaysContaining(n2)) != 0 {
		t.Error("expected no dangling way index entries")
	}
	if d.Undo() != "" {
		t.Error("expected nothing left to undo")
	}
}

func TestUndoLogLimit(t *testing.T) {
	d := editFixture(t)
	d.undo = NewUndoLog(3)
	n := d.Storage().GetNode(2)
	for i := range 5 {
		if err := d.UpdateLatLon(n, int32(i+1), 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if d.UndoLog().Len() != 3 {
		t.Errorf("expected 3 checkpoints, got %d", d.UndoLog().Len())
	}
	for d.CanUndo() {
		d.Undo()
	}
	if n.LatE7() != 2 {
		t.Errorf("expected the oldest kept edit to survive, got %d", n.LatE7())
	}
}

func TestInvalidEdits(t *testing.T) {
	d := editFixture(t)
	s := d.Storage()

	if err := d.UpdateLatLon(s.GetNode(1), 910000000, 0); !errors.Is(err, editerr.ErrGeometry) {
		t.Errorf("expected ErrGeometry, got %v", err)
	}
	if err := d.InsertElement(s.GetNode(1)); !errors.Is(err, editerr.ErrInvariant) {
		t.Errorf("expected ErrInvariant for a loaded node, got %v", err)
	}
	if err := d.AddNodeToWay(s.GetNode(3), s.GetWay(10)); !errors.Is(err, editerr.ErrInvariant) {
		t.Errorf("expected ErrInvariant for a repeated node, got %v", err)
	}
	if err := d.AppendNodeToWay(s.GetNode(2), s.GetNode(7), s.GetWay(10)); !errors.Is(err, editerr.ErrInvariant) {
		t.Errorf("expected ErrInvariant for an interior node, got %v", err)
	}
	orphan := NewNode(99, 1, 0, 0, nil, StateUnchanged)
	if err := d.RemoveNode(orphan); !errors.Is(err, editerr.ErrInvariant) {
		t.Errorf("expected ErrInvariant for an unknown node, got %v", err)
	}
	if d.CanUndo() {
		t.Error("expected refused edits to leave no checkpoint")
	}
}

func TestInsertTagsDropsDiscardable(t *testing.T) {
	d := editFixture(t)
	n := d.Storage().GetNode(1)
	if err := d.InsertTags(n, map[string]string{"created_by": "JOSM", "name": " Main "}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.HasTag("created_by") {
		t.Error("expected created_by dropped")
	}
	if err := d.InsertTags(n, map[string]string{"name": n.Tags().Get("name")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.UndoLog().Len() != 1 {
		t.Errorf("expected unchanged tags to add no checkpoint, got %d", d.UndoLog().Len())
	}
}

func TestPaste(t *testing.T) {
	d := editFixture(t)
	s := d.Storage()
	f := Freeze(s.GetWay(13))

	e, err := d.Paste(f, 1000, -1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustValidate(t, s)
	w := e.(*Way)
	if !w.IsClosed() || w.NodeCount() != 5 {
		t.Errorf("expected a closed copy with 5 node refs, got %v", nodeIDs(w))
	}
	if w.FirstNode().LatE7() != 481001000 || w.FirstNode().LonE7() != 75899000 {
		t.Errorf("expected shifted copy, got %d,%d", w.FirstNode().LatE7(), w.FirstNode().LonE7())
	}
	if w.State() != StateCreated || w.Tags().Get("building") != "yes" {
		t.Errorf("expected a created building, got %s %v", w.State(), w.Tags())
	}

	if _, err := d.Paste(Freeze(s.GetNode(1)), 900000000, 0); !errors.Is(err, editerr.ErrGeometry) {
		t.Errorf("expected ErrGeometry when pasting off the map, got %v", err)
	}
}

type recordingObserver struct {
	committed, undone, failed []string
}

func (o *recordingObserver) CheckpointCommitted(name string, _ int) {
	o.committed = append(o.committed, name)
}

func (o *recordingObserver) CheckpointUndone(name string) {
	o.undone = append(o.undone, name)
}

func (o *recordingObserver) OperationFailed(op string, _ error) {
	o.failed = append(o.failed, op)
}

func TestObserver(t *testing.T) {
	d := editFixture(t)
	o := &recordingObserver{}
	d.SetObserver(o)
	s := d.Storage()

	_ = d.UpdateLatLon(s.GetNode(1), 5, 5)
	_ = d.Merge(s.GetWay(10), s.GetWay(12))
	d.Undo()

	if !slices.Equal(o.committed, []string{"move node"}) {
		t.Errorf("expected [move node] committed, got %v", o.committed)
	}
	if !slices.Equal(o.failed, []string{"merge ways"}) {
		t.Errorf("expected [merge ways] failed, got %v", o.failed)
	}
	if !slices.Equal(o.undone, []string{"move node"}) {
		t.Errorf("expected [move node] undone, got %v", o.undone)
	}
}

func TestPendingChanges(t *testing.T) {
	d := editFixture(t)
	s := d.Storage()

	if _, err := d.SplitAtNode(s.GetWay(10), s.GetNode(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := d.RemoveNode(s.GetNode(6)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{
		"created way -1",
		"modified way 10",
		"modified relation 30",
		"deleted node 6",
		"deleted way 12",
	}
	if got := d.ListChanges(); !slices.Equal(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}

	sc := d.PendingChanges()
	for sc.Next() {
	}
	if sc.Next() || sc.Text() != "" {
		t.Error("expected an exhausted scanner to stay exhausted")
	}

	sc = d.PendingChanges()
	if err := d.UpdateLatLon(s.GetNode(1), 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var count int
	for sc.Next() {
		count++
	}
	if count != len(expected) {
		t.Errorf("expected %d changes from the earlier scan, got %d", len(expected), count)
	}
}
