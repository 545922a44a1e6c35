package osmio

import (
	"encoding/xml"
	"fmt"
	"io"
	"slices"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/graph"
)

func xmlAttr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func newEncoder(w io.Writer) (*xml.Encoder, error) {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc, nil
}

// encodeElement writes e, with extra attributes ahead of the element's own
func encodeElement(enc *xml.Encoder, e graph.Element, changeset int64, attrs ...xml.Attr) error {
	start := xml.StartElement{Name: xml.Name{Local: e.Kind().String()}, Attr: attrs}
	if err := enc.EncodeElement(toOSM(e, changeset), start); err != nil {
		return fmt.Errorf("failed to encode %s: %w", e.Key(), err)
	}
	return nil
}

// WriteXML writes the whole storage as an OSM 0.6 document. Pending changes
// carry JOSM action attributes and tombstones are kept with action="delete",
// so reading the file back restores the edit state.
func WriteXML(w io.Writer, s *graph.Storage) error {
	enc, err := newEncoder(w)
	if err != nil {
		return err
	}
	root := xml.StartElement{
		Name: xml.Name{Local: "osm"},
		Attr: []xml.Attr{xmlAttr("version", "0.6"), xmlAttr("generator", Generator), xmlAttr("upload", "true")},
	}
	if err := enc.EncodeToken(root); err != nil {
		return fmt.Errorf("failed to write root: %w", err)
	}

	if box := s.OriginalBox(); box != nil {
		bounds := osm.Bounds{
			MinLat: geo.FromE7(box.Bottom), MaxLat: geo.FromE7(box.Top),
			MinLon: geo.FromE7(box.Left), MaxLon: geo.FromE7(box.Right),
		}
		if err := enc.EncodeElement(bounds, xml.StartElement{Name: xml.Name{Local: "bounds"}}); err != nil {
			return fmt.Errorf("failed to encode bounds: %w", err)
		}
	}

	elems := make([]graph.Element, 0, s.NodeCount()+s.WayCount()+s.RelationCount())
	for _, n := range s.Nodes() {
		elems = append(elems, n)
	}
	for _, w := range s.Ways() {
		elems = append(elems, w)
	}
	for _, r := range s.Relations() {
		elems = append(elems, r)
	}
	elems = append(elems, s.Deleted()...)
	slices.SortStableFunc(elems, func(a, b graph.Element) int { return int(a.Kind()) - int(b.Kind()) })

	for _, e := range elems {
		var attrs []xml.Attr
		if action := actionFor(e.State()); action == ActionModify || action == ActionDelete {
			attrs = append(attrs, xmlAttr("action", string(action)))
		}
		if err := encodeElement(enc, e, 0, attrs...); err != nil {
			return err
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return fmt.Errorf("failed to close root: %w", err)
	}
	return enc.Flush()
}

// WriteChange writes the pending changes as an osmChange document for the
// given changeset (0 when not uploading). Creations and modifications are
// ordered nodes, ways, relations; deletions the reverse, so every block can be
// applied in document order.
func WriteChange(w io.Writer, cs *graph.ChangeSet, changeset int64) error {
	enc, err := newEncoder(w)
	if err != nil {
		return err
	}
	root := xml.StartElement{
		Name: xml.Name{Local: "osmChange"},
		Attr: []xml.Attr{xmlAttr("version", "0.6"), xmlAttr("generator", Generator)},
	}
	if err := enc.EncodeToken(root); err != nil {
		return fmt.Errorf("failed to write root: %w", err)
	}

	deleted := slices.Clone(cs.Deleted)
	slices.SortStableFunc(deleted, func(a, b graph.Element) int { return int(b.Kind()) - int(a.Kind()) })

	blocks := []struct {
		action Action
		elems  []graph.Element
	}{
		{ActionCreate, cs.Created},
		{ActionModify, cs.Modified},
		{ActionDelete, deleted},
	}
	for _, blk := range blocks {
		if len(blk.elems) == 0 {
			continue
		}
		start := xml.StartElement{Name: xml.Name{Local: string(blk.action)}}
		if err := enc.EncodeToken(start); err != nil {
			return fmt.Errorf("failed to open %s block: %w", blk.action, err)
		}
		for _, e := range blk.elems {
			if err := encodeElement(enc, e, changeset); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(start.End()); err != nil {
			return fmt.Errorf("failed to close %s block: %w", blk.action, err)
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return fmt.Errorf("failed to close root: %w", err)
	}
	return enc.Flush()
}
