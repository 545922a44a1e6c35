package logic

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/logger"
)

// Direction is a cursor pan direction
type Direction int

const (
	DirectionUp Direction = iota
	DirectionDown
	DirectionLeft
	DirectionRight
)

// Panning constants
const (
	// PanFactor is the share of the view moved by one cursor pan
	PanFactor = 0.15
	// BorderTouchMargin is the distance from the screen edge, in pixels, that
	// starts auto-panning while a node is dragged
	BorderTouchMargin = 5
	// BorderTouchFactor is the share of the view width moved per drag tick at the edge
	BorderTouchFactor = 0.02
)

type dragState struct {
	node         *graph.Node
	lastX, lastY float64
}

// SetScreenSize sets the screen dimensions and fits the view box height to them
func (l *Logic) SetScreenSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid screen size %dx%d", width, height)
	}
	l.cfg.ScreenWidth, l.cfg.ScreenHeight = width, height
	if err := l.viewBox.SetRatio(float64(width)/float64(height), true); err != nil {
		return err
	}
	l.renderer.Invalidate()
	return nil
}

// SetViewBox shows box
func (l *Logic) SetViewBox(box *geo.BoundingBox) error {
	if err := box.Validate(); err != nil {
		return err
	}
	l.viewBox = box.Copy()
	l.renderer.Invalidate()
	return nil
}

// Pan moves the view by PanFactor of its size. Vertical moves are scaled down
// by the cubed Mercator factor.
func (l *Logic) Pan(dir Direction) {
	dx := int64(float64(l.viewBox.Width()) * PanFactor)
	dy := int64(float64(l.viewBox.Height()) * PanFactor)
	switch dir {
	case DirectionUp:
		l.viewBox.Translate(0, dy)
	case DirectionDown:
		l.viewBox.Translate(0, -dy)
	case DirectionLeft:
		l.viewBox.Translate(-dx, 0)
	case DirectionRight:
		l.viewBox.Translate(dx, 0)
	}
	l.renderer.Invalidate()
}

// ZoomIn zooms in one step; false when already at the limit
func (l *Logic) ZoomIn() bool {
	ok := l.viewBox.ZoomIn()
	if ok {
		l.renderer.Invalidate()
	}
	return ok
}

// ZoomOut zooms out one step; false when already at the limit
func (l *Logic) ZoomOut() bool {
	ok := l.viewBox.ZoomOut()
	if ok {
		l.renderer.Invalidate()
	}
	return ok
}

// StartDrag begins a drag gesture at (x, y). When the selected node is under
// the pointer and the view is editable the node is dragged, otherwise the map
// is. Reports whether a node drag started.
func (l *Logic) StartDrag(x, y float64) bool {
	l.drag = &dragState{lastX: x, lastY: y}
	n := l.selectedNode
	if n == nil || l.mode == ModeMove || !l.IsEditable() {
		return false
	}
	for _, hit := range l.ClickedNodes(x, y) {
		if hit == n {
			l.drag.node = n
			l.delegator.BeginCheckpoint("move")
			return true
		}
	}
	return false
}

// Drag continues the gesture. A dragged node follows the pointer and pans the
// view when it comes close to the screen edge.
func (l *Logic) Drag(x, y float64) error {
	if l.drag == nil {
		return nil
	}
	defer func() {
		if l.drag != nil {
			l.drag.lastX, l.drag.lastY = x, y
		}
	}()

	if l.drag.node == nil {
		l.panBy(x-l.drag.lastX, y-l.drag.lastY)
		return nil
	}
	l.borderTouch(x, y)
	lat, lon := l.toLatLon(x, y)
	if err := l.delegator.UpdateLatLon(l.drag.node, lat, lon); err != nil {
		l.delegator.RollbackCheckpoint()
		l.drag = nil
		return err
	}
	l.renderer.Invalidate()
	return nil
}

// EndDrag finishes the gesture, committing a node move as one checkpoint
func (l *Logic) EndDrag() error {
	d := l.drag
	l.drag = nil
	if d == nil || d.node == nil {
		return nil
	}
	if err := l.delegator.EndCheckpoint(); err != nil {
		return err
	}
	logger.Get().Debug("Moved node", zap.Int64("id", d.node.ID()),
		zap.Int32("lat", d.node.LatE7()), zap.Int32("lon", d.node.LonE7()))
	return nil
}

// panBy moves the view so the map follows a pointer moved by (dx, dy) pixels
func (l *Logic) panBy(dx, dy float64) {
	w, h := l.cfg.ScreenWidth, l.cfg.ScreenHeight
	if w == 0 || h == 0 || (dx == 0 && dy == 0) {
		return
	}
	dLon := -int64(math.Round(dx / float64(w) * float64(l.viewBox.Width())))
	cy := float64(h) / 2
	dLat := int64(geo.YToLatE7(h, l.viewBox, cy-dy)) - int64(geo.YToLatE7(h, l.viewBox, cy))
	l.viewBox.Shift(dLon, dLat)
	l.renderer.Invalidate()
}

// borderTouch shifts the view towards the nearest screen edge closer than BorderTouchMargin
func (l *Logic) borderTouch(x, y float64) {
	w, h := float64(l.cfg.ScreenWidth), float64(l.cfg.ScreenHeight)
	step := int64(float64(l.viewBox.Width()) * BorderTouchFactor)

	edges := []struct {
		dir  Direction
		dist float64
	}{
		{DirectionLeft, x},
		{DirectionRight, w - x},
		{DirectionUp, y},
		{DirectionDown, h - y},
	}
	nearest, dist := Direction(-1), float64(BorderTouchMargin)
	for _, e := range edges {
		if e.dist < dist {
			nearest, dist = e.dir, e.dist
		}
	}
	switch nearest {
	case DirectionLeft:
		l.viewBox.Shift(-step, 0)
	case DirectionRight:
		l.viewBox.Shift(step, 0)
	case DirectionUp:
		l.viewBox.Shift(0, step)
	case DirectionDown:
		l.viewBox.Shift(0, -step)
	}
}
