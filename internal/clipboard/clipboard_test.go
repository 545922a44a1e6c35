package clipboard

import (
	"errors"
	"testing"

	"github.com/wegman-software/osmedit/internal/editerr"
	"github.com/wegman-software/osmedit/internal/graph"
)

func fixture(t *testing.T) *graph.Delegator {
	t.Helper()
	b := graph.NewBuilder()
	b.AddNode(1, 1, 480000000, 75800000, map[string]string{"amenity": "bench"}, graph.StateUnchanged)
	b.AddNode(2, 1, 480010000, 75810000, nil, graph.StateUnchanged)
	b.AddNode(3, 1, 480020000, 75800000, nil, graph.StateUnchanged)
	b.AddWay(10, 1, []int64{1, 2, 3}, map[string]string{"highway": "footway"}, graph.StateUnchanged)
	s, _ := b.Build()
	return graph.NewDelegator(s, 0, nil)
}

func TestCopyPasteTranslates(t *testing.T) {
	d := fixture(t)
	w := d.Storage().GetWay(10)
	c := New()
	if !c.IsEmpty() {
		t.Fatal("expected a new clipboard to be empty")
	}

	c.Copy(w, 480010000, 75810000)
	e, err := c.Paste(d, 480015000, 75805000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pasted, ok := e.(*graph.Way)
	if !ok {
		t.Fatalf("expected a way, got %T", e)
	}
	if pasted.ID() >= 0 || pasted.State() != graph.StateCreated {
		t.Errorf("expected a created way with negative id, got %d %s", pasted.ID(), pasted.State())
	}
	if !pasted.Tags().Equal(w.Tags()) {
		t.Errorf("expected tags %v, got %v", w.Tags(), pasted.Tags())
	}

	orig, got := w.Nodes(), pasted.Nodes()
	if len(orig) != len(got) {
		t.Fatalf("expected %d nodes, got %d", len(orig), len(got))
	}
	for i := range orig {
		if got[i].LatE7()-orig[i].LatE7() != 5000 || got[i].LonE7()-orig[i].LonE7() != -5000 {
			t.Errorf("node %d: expected offset 5000,-5000, got %d,%d", i,
				got[i].LatE7()-orig[i].LatE7(), got[i].LonE7()-orig[i].LonE7())
		}
		if got[i] == orig[i] {
			t.Errorf("node %d: expected a fresh node", i)
		}
	}
	if got[0].Tags().Get("amenity") != "bench" {
		t.Errorf("expected node tags to be copied, got %v", got[0].Tags())
	}

	// The clipboard keeps its content for further pastes
	if _, err := c.Paste(d, 480010000, 75810000); err != nil {
		t.Errorf("unexpected error on second paste: %v", err)
	}
	if d.Storage().WayCount() != 3 {
		t.Errorf("expected 3 ways, got %d", d.Storage().WayCount())
	}
}

func TestCut(t *testing.T) {
	d := fixture(t)
	s := d.Storage()
	c := New()

	if err := c.Cut(d, s.GetWay(10), 480010000, 75810000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.WayCount() != 0 || s.NodeCount() != 0 {
		t.Errorf("expected the way and its nodes gone, got %d ways %d nodes", s.WayCount(), s.NodeCount())
	}
	if !c.WasCut() {
		t.Error("expected the clipboard to remember the cut")
	}
	if kind, ok := c.Kind(); !ok || kind != graph.KindWay {
		t.Errorf("expected a way on the clipboard, got %v", kind)
	}

	e, err := c.Paste(d, 480010000, 75810000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w := e.(*graph.Way); w.NodeCount() != 3 || w.Nodes()[1].LatE7() != 480010000 {
		t.Errorf("expected the way back in place, got %d nodes", w.NodeCount())
	}
	if err := s.Validate(); err != nil {
		t.Errorf("storage invalid: %v", err)
	}
}

func TestCutRefusedKeepsClipboard(t *testing.T) {
	d := fixture(t)
	c := New()
	c.Copy(d.Storage().GetNode(1), 0, 0)

	orphan := graph.NewNode(99, 1, 0, 0, nil, graph.StateUnchanged)
	if err := c.Cut(d, orphan, 0, 0); !errors.Is(err, editerr.ErrInvariant) {
		t.Errorf("expected ErrInvariant, got %v", err)
	}
	if c.WasCut() {
		t.Error("expected the earlier copy to remain")
	}
}

func TestPasteEmpty(t *testing.T) {
	if _, err := New().Paste(fixture(t), 0, 0); !errors.Is(err, editerr.ErrInvariant) {
		t.Errorf("expected ErrInvariant, got %v", err)
	}
}
