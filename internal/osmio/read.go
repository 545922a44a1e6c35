package osmio

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"go.uber.org/zap"

	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/logger"
)

// ReadFile loads an .osm, .osm.gz or .pbf file into a new builder
func ReadFile(ctx context.Context, filename string) (*graph.Builder, Stats, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to open OSM file: %w", err)
	}
	defer f.Close()
	return Read(ctx, f, filename)
}

// Read decodes r in the format implied by name's suffix
func Read(ctx context.Context, r io.Reader, name string) (*graph.Builder, Stats, error) {
	if strings.HasSuffix(name, ".pbf") {
		return ReadPBF(ctx, r)
	}
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, Stats{}, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return ReadXML(ctx, r)
}

// ReadXML decodes an OSM 0.6 document. JOSM action attributes set the element
// state; negative ids are created elements. A <bounds> element becomes the
// original box. Cancellation is checked between elements.
func ReadXML(ctx context.Context, r io.Reader) (*graph.Builder, Stats, error) {
	b := graph.NewBuilder()
	var stats Stats
	err := decodeElements(ctx, r, func(d *xml.Decoder, se xml.StartElement) error {
		action := Action(attr(se, "action"))
		switch se.Name.Local {
		case "bounds":
			var bounds osm.Bounds
			if err := d.DecodeElement(&bounds, &se); err != nil {
				return parseErr("bounds: %v", err)
			}
			box, err := geo.NewBoundingBoxDegrees(bounds.MinLon, bounds.MinLat, bounds.MaxLon, bounds.MaxLat)
			if err != nil {
				return parseErr("bounds: %v", err)
			}
			b.SetBounds(box)
		case "node":
			var n osm.Node
			if err := d.DecodeElement(&n, &se); err != nil {
				return parseErr("node: %v", err)
			}
			if skipDeleted(action, int64(n.ID)) {
				return nil
			}
			if err := addNode(b, &n, action); err != nil {
				return err
			}
			stats.count(action, graph.KindNode)
		case "way":
			var w osm.Way
			if err := d.DecodeElement(&w, &se); err != nil {
				return parseErr("way: %v", err)
			}
			if skipDeleted(action, int64(w.ID)) {
				return nil
			}
			addWay(b, &w, action)
			stats.count(action, graph.KindWay)
		case "relation":
			var rel osm.Relation
			if err := d.DecodeElement(&rel, &se); err != nil {
				return parseErr("relation: %v", err)
			}
			if skipDeleted(action, int64(rel.ID)) {
				return nil
			}
			if err := addRelation(b, &rel, action); err != nil {
				return err
			}
			stats.count(action, graph.KindRelation)
		}
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	logger.Get().Debug("Read OSM XML",
		zap.Int64("elements", stats.Total()),
		zap.Int("builder_size", b.Len()))
	return b, stats, nil
}

// skipDeleted reports whether an element was created and deleted again
// without ever reaching the server
func skipDeleted(action Action, id int64) bool {
	return action == ActionDelete && id < 0
}

// decodeElements runs fn for every start element below the root
func decodeElements(ctx context.Context, r io.Reader, fn func(*xml.Decoder, xml.StartElement) error) error {
	decoder := xml.NewDecoder(r)
	sawRoot := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			if !sawRoot {
				return parseErr("empty document")
			}
			return nil
		}
		if err != nil {
			return parseErr("XML parse error: %v", err)
		}

		se, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		if !sawRoot {
			sawRoot = true
			continue
		}
		if err := fn(decoder, se); err != nil {
			return err
		}
	}
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// ReadPBF loads a PBF stream. PBF carries no edit state, so every element is unchanged.
func ReadPBF(ctx context.Context, r io.Reader) (*graph.Builder, Stats, error) {
	b := graph.NewBuilder()
	var stats Stats

	// The osmpbf scanner already decodes in parallel
	scanner := osmpbf.New(ctx, r, runtime.NumCPU())
	defer scanner.Close()

	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			if err := addNode(b, o, ""); err != nil {
				return nil, stats, err
			}
			stats.count("", graph.KindNode)
		case *osm.Way:
			addWay(b, o, "")
			stats.count("", graph.KindWay)
		case *osm.Relation:
			if err := addRelation(b, o, ""); err != nil {
				return nil, stats, err
			}
			stats.count("", graph.KindRelation)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		if ctx.Err() != nil {
			return nil, stats, ctx.Err()
		}
		return nil, stats, parseErr("PBF: %v", err)
	}
	return b, stats, nil
}
