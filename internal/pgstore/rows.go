package pgstore

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/graph"
)

const (
	tableSnapshots = "osmedit_snapshots"
	tableNodes     = "osmedit_nodes"
	tableWays      = "osmedit_ways"
	tableRelations = "osmedit_rels"
)

var (
	nodeColumns     = []string{"snapshot", "id", "version", "state", "lat", "lon", "tags"}
	wayColumns      = []string{"snapshot", "id", "version", "state", "nodes", "tags"}
	relationColumns = []string{"snapshot", "id", "version", "state", "members", "tags"}
)

// memberJSON is one relation member in the members column
type memberJSON struct {
	Type string `json:"type"`
	Ref  int64  `json:"ref"`
	Role string `json:"role"`
}

type snapshotRows struct {
	nodes     [][]any
	ways      [][]any
	relations [][]any
}

// buildRows flattens st, tombstones included, into COPY rows
func buildRows(id uuid.UUID, st *graph.Storage) snapshotRows {
	var rows snapshotRows
	add := func(e graph.Element) {
		switch v := e.(type) {
		case *graph.Node:
			rows.nodes = append(rows.nodes, nodeRow(id, v))
		case *graph.Way:
			rows.ways = append(rows.ways, wayRow(id, v))
		case *graph.Relation:
			rows.relations = append(rows.relations, relationRow(id, v))
		}
	}
	for _, n := range st.Nodes() {
		add(n)
	}
	for _, w := range st.Ways() {
		add(w)
	}
	for _, r := range st.Relations() {
		add(r)
	}
	for _, e := range st.Deleted() {
		add(e)
	}
	return rows
}

func tagsJSON(e graph.Element) []byte {
	if len(e.Tags()) == 0 {
		return nil
	}
	data, _ := json.Marshal(e.Tags())
	return data
}

func nodeRow(id uuid.UUID, n *graph.Node) []any {
	return []any{id, n.ID(), int32(n.Version()), int16(n.State()), n.LatE7(), n.LonE7(), tagsJSON(n)}
}

func wayRow(id uuid.UUID, w *graph.Way) []any {
	nodes := w.Nodes()
	refs := make([]int64, len(nodes))
	for i, n := range nodes {
		refs[i] = n.ID()
	}
	return []any{id, w.ID(), int32(w.Version()), int16(w.State()), refs, tagsJSON(w)}
}

func relationRow(id uuid.UUID, r *graph.Relation) []any {
	members := r.Members()
	mj := make([]memberJSON, len(members))
	for i, m := range members {
		mj[i] = memberJSON{Type: m.Element.Kind().String(), Ref: m.Element.ID(), Role: m.Role}
	}
	data, _ := json.Marshal(mj)
	return []any{id, r.ID(), int32(r.Version()), int16(r.State()), data, tagsJSON(r)}
}

func parseState(id int64, v int16) (graph.State, error) {
	st := graph.State(v)
	if st < graph.StateUnchanged || st > graph.StateDeleted {
		return 0, fmt.Errorf("element %d has unknown state %d", id, v)
	}
	return st, nil
}

func parseTags(id int64, data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var tags map[string]string
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("element %d tags: %w", id, err)
	}
	return tags, nil
}

type nodeRecord struct {
	ID       int64
	Version  int32
	State    int16
	Lat, Lon int32
	Tags     []byte
}

func (r *nodeRecord) addTo(b *graph.Builder) error {
	st, err := parseState(r.ID, r.State)
	if err != nil {
		return err
	}
	tags, err := parseTags(r.ID, r.Tags)
	if err != nil {
		return err
	}
	b.AddNode(r.ID, int(r.Version), r.Lat, r.Lon, tags, st)
	return nil
}

type wayRecord struct {
	ID      int64
	Version int32
	State   int16
	Nodes   []int64
	Tags    []byte
}

func (r *wayRecord) addTo(b *graph.Builder) error {
	st, err := parseState(r.ID, r.State)
	if err != nil {
		return err
	}
	tags, err := parseTags(r.ID, r.Tags)
	if err != nil {
		return err
	}
	b.AddWay(r.ID, int(r.Version), r.Nodes, tags, st)
	return nil
}

type relationRecord struct {
	ID      int64
	Version int32
	State   int16
	Members []byte
	Tags    []byte
}

func (r *relationRecord) addTo(b *graph.Builder) error {
	st, err := parseState(r.ID, r.State)
	if err != nil {
		return err
	}
	tags, err := parseTags(r.ID, r.Tags)
	if err != nil {
		return err
	}
	var mj []memberJSON
	if err := json.Unmarshal(r.Members, &mj); err != nil {
		return fmt.Errorf("relation %d members: %w", r.ID, err)
	}
	refs := make([]graph.MemberRef, len(mj))
	for i, m := range mj {
		kind, err := graph.ParseKind(m.Type)
		if err != nil {
			return fmt.Errorf("relation %d member %d: %w", r.ID, i, err)
		}
		refs[i] = graph.MemberRef{Kind: kind, Ref: m.Ref, Role: m.Role}
	}
	b.AddRelation(r.ID, int(r.Version), refs, tags, st)
	return nil
}

func bboxArray(box *geo.BoundingBox) []int32 {
	if box == nil {
		return nil
	}
	return []int32{box.Left, box.Bottom, box.Right, box.Top}
}

func bboxFromArray(v []int32) (*geo.BoundingBox, error) {
	switch len(v) {
	case 0:
		return nil, nil
	case 4:
		return geo.NewBoundingBox(v[0], v[1], v[2], v[3])
	}
	return nil, fmt.Errorf("snapshot bbox has %d values", len(v))
}
