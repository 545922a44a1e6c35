// Package osmio moves OSM data between files and the element graph: OSM XML
// 0.6 (with JOSM action attributes), PBF and osmChange.
package osmio

import (
	"fmt"
	"math"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osmedit/internal/editerr"
	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/tagging"
)

// Action is an osmChange block or a JOSM action attribute
type Action string

const (
	ActionCreate Action = "create"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
)

// Generator is written into every document
const Generator = "osmedit"

// Stats counts the elements read or applied per action
type Stats struct {
	NodesCreated      int64
	NodesModified     int64
	NodesDeleted      int64
	WaysCreated       int64
	WaysModified      int64
	WaysDeleted       int64
	RelationsCreated  int64
	RelationsModified int64
	RelationsDeleted  int64
	// Unchanged counts plain elements without an action
	Unchanged int64
}

// Total returns total number of elements
func (s *Stats) Total() int64 {
	return s.NodesCreated + s.NodesModified + s.NodesDeleted +
		s.WaysCreated + s.WaysModified + s.WaysDeleted +
		s.RelationsCreated + s.RelationsModified + s.RelationsDeleted + s.Unchanged
}

// Add accumulates o into s
func (s *Stats) Add(o Stats) {
	s.NodesCreated += o.NodesCreated
	s.NodesModified += o.NodesModified
	s.NodesDeleted += o.NodesDeleted
	s.WaysCreated += o.WaysCreated
	s.WaysModified += o.WaysModified
	s.WaysDeleted += o.WaysDeleted
	s.RelationsCreated += o.RelationsCreated
	s.RelationsModified += o.RelationsModified
	s.RelationsDeleted += o.RelationsDeleted
	s.Unchanged += o.Unchanged
}

func (s *Stats) count(action Action, kind graph.Kind) {
	var counters [3]*int64
	switch action {
	case ActionCreate:
		counters = [3]*int64{&s.NodesCreated, &s.WaysCreated, &s.RelationsCreated}
	case ActionModify:
		counters = [3]*int64{&s.NodesModified, &s.WaysModified, &s.RelationsModified}
	case ActionDelete:
		counters = [3]*int64{&s.NodesDeleted, &s.WaysDeleted, &s.RelationsDeleted}
	default:
		s.Unchanged++
		return
	}
	*counters[kind]++
}

// stateFor derives the element state from a JOSM action attribute and the id
func stateFor(action Action, id int64) graph.State {
	switch {
	case action == ActionDelete:
		return graph.StateDeleted
	case id < 0:
		return graph.StateCreated
	case action == ActionModify:
		return graph.StateModified
	}
	return graph.StateUnchanged
}

// actionFor is the inverse of stateFor
func actionFor(st graph.State) Action {
	switch st {
	case graph.StateCreated:
		return ActionCreate
	case graph.StateModified:
		return ActionModify
	case graph.StateDeleted:
		return ActionDelete
	}
	return ""
}

func parseErr(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), editerr.ErrParse)
}

// coords converts degrees to E7, rejecting values outside the valid range
func coords(id int64, lat, lon float64) (int32, int32, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return 0, 0, parseErr("node %d has invalid coordinates %f,%f", id, lat, lon)
	}
	return geo.ToE7(lat), geo.ToE7(lon), nil
}

func memberRefs(id int64, members osm.Members) ([]graph.MemberRef, error) {
	refs := make([]graph.MemberRef, 0, len(members))
	for _, m := range members {
		kind, err := graph.ParseKind(string(m.Type))
		if err != nil {
			return nil, parseErr("relation %d member %s/%d", id, m.Type, m.Ref)
		}
		refs = append(refs, graph.MemberRef{Kind: kind, Ref: m.Ref, Role: m.Role})
	}
	return refs, nil
}

func nodeRefs(nodes osm.WayNodes) []int64 {
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = int64(n.ID)
	}
	return ids
}

// addNode records n in b; state comes from the action
func addNode(b *graph.Builder, n *osm.Node, action Action) error {
	id := int64(n.ID)
	lat, lon, err := coords(id, n.Lat, n.Lon)
	if err != nil {
		return err
	}
	b.AddNode(id, n.Version, lat, lon, n.Tags.Map(), stateFor(action, id))
	return nil
}

func addWay(b *graph.Builder, w *osm.Way, action Action) {
	id := int64(w.ID)
	b.AddWay(id, w.Version, nodeRefs(w.Nodes), w.Tags.Map(), stateFor(action, id))
}

func addRelation(b *graph.Builder, r *osm.Relation, action Action) error {
	id := int64(r.ID)
	refs, err := memberRefs(id, r.Members)
	if err != nil {
		return err
	}
	b.AddRelation(id, r.Version, refs, r.Tags.Map(), stateFor(action, id))
	return nil
}

func osmTags(t tagging.Tags) osm.Tags {
	keys := t.Keys()
	tags := make(osm.Tags, len(keys))
	for i, k := range keys {
		tags[i] = osm.Tag{Key: k, Value: t[k]}
	}
	return tags
}

// toOSM converts a graph element into its paulmach/osm form
func toOSM(e graph.Element, changeset int64) osm.Object {
	visible := e.State() != graph.StateDeleted
	cs := osm.ChangesetID(changeset)
	switch v := e.(type) {
	case *graph.Node:
		return &osm.Node{
			ID:          osm.NodeID(v.ID()),
			Lat:         geo.FromE7(v.LatE7()),
			Lon:         geo.FromE7(v.LonE7()),
			Version:     v.Version(),
			Visible:     visible,
			ChangesetID: cs,
			Tags:        osmTags(v.Tags()),
		}
	case *graph.Way:
		nodes := v.Nodes()
		wn := make(osm.WayNodes, len(nodes))
		for i, n := range nodes {
			wn[i] = osm.WayNode{ID: osm.NodeID(n.ID())}
		}
		return &osm.Way{
			ID:          osm.WayID(v.ID()),
			Version:     v.Version(),
			Visible:     visible,
			ChangesetID: cs,
			Nodes:       wn,
			Tags:        osmTags(v.Tags()),
		}
	case *graph.Relation:
		members := v.Members()
		om := make(osm.Members, len(members))
		for i, m := range members {
			om[i] = osm.Member{Type: osm.Type(m.Element.Kind().String()), Ref: m.Element.ID(), Role: m.Role}
		}
		return &osm.Relation{
			ID:          osm.RelationID(v.ID()),
			Version:     v.Version(),
			Visible:     visible,
			ChangesetID: cs,
			Members:     om,
			Tags:        osmTags(v.Tags()),
		}
	}
	return nil
}
