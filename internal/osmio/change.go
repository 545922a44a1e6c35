package osmio

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/logger"
)

// ApplyChange applies an osmChange document onto b. Created elements with
// negative ids become pending creations, modified elements pending
// modifications, and deletions tombstones (or vanish, for elements that were
// never uploaded). A create carrying a positive id is server data and stays
// unchanged.
func ApplyChange(ctx context.Context, b *graph.Builder, r io.Reader) (Stats, error) {
	var stats Stats
	var action Action

	err := decodeElements(ctx, r, func(d *xml.Decoder, se xml.StartElement) error {
		switch se.Name.Local {
		case "create":
			action = ActionCreate
		case "modify":
			action = ActionModify
		case "delete":
			action = ActionDelete
		case "node":
			var n osm.Node
			if err := d.DecodeElement(&n, &se); err != nil {
				return parseErr("node: %v", err)
			}
			key := graph.Key{Kind: graph.KindNode, ID: int64(n.ID)}
			if action == ActionDelete && b.Has(key) {
				b.MarkDeleted(key)
			} else if !skipDeleted(action, key.ID) {
				if err := addNode(b, &n, action); err != nil {
					return err
				}
			}
			stats.count(action, graph.KindNode)
		case "way":
			var w osm.Way
			if err := d.DecodeElement(&w, &se); err != nil {
				return parseErr("way: %v", err)
			}
			key := graph.Key{Kind: graph.KindWay, ID: int64(w.ID)}
			if action == ActionDelete && b.Has(key) {
				b.MarkDeleted(key)
			} else if !skipDeleted(action, key.ID) {
				addWay(b, &w, action)
			}
			stats.count(action, graph.KindWay)
		case "relation":
			var rel osm.Relation
			if err := d.DecodeElement(&rel, &se); err != nil {
				return parseErr("relation: %v", err)
			}
			key := graph.Key{Kind: graph.KindRelation, ID: int64(rel.ID)}
			if action == ActionDelete && b.Has(key) {
				b.MarkDeleted(key)
			} else if !skipDeleted(action, key.ID) {
				if err := addRelation(b, &rel, action); err != nil {
					return err
				}
			}
			stats.count(action, graph.KindRelation)
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	logger.Get().Debug("Applied osmChange",
		zap.Int64("created", stats.NodesCreated+stats.WaysCreated+stats.RelationsCreated),
		zap.Int64("modified", stats.NodesModified+stats.WaysModified+stats.RelationsModified),
		zap.Int64("deleted", stats.NodesDeleted+stats.WaysDeleted+stats.RelationsDeleted))
	return stats, nil
}
