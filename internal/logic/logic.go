// Package logic is the editor facade: it owns the view box, the delegator, the
// current mode and the selection, and turns screen gestures into edits.
package logic

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wegman-software/osmedit/internal/clipboard"
	"github.com/wegman-software/osmedit/internal/geo"
	"github.com/wegman-software/osmedit/internal/graph"
	"github.com/wegman-software/osmedit/internal/logger"
	"github.com/wegman-software/osmedit/internal/tagging"
)

// ErrNotEditable is returned for edits attempted while zoomed out too far
var ErrNotEditable = errors.New("view box too wide for editing")

// Mode is the editing mode of the map
type Mode int

const (
	ModeMove Mode = iota
	ModeEdit
	ModeAdd
	ModeErase
	ModeAppend
	ModeTagEdit
	ModeSplit
	ModeOpenStreetBug
	ModeEasyEdit
)

var modeNames = [...]string{"MOVE", "EDIT", "ADD", "ERASE", "APPEND", "TAG_EDIT", "SPLIT", "OPENSTREETBUG", "EASYEDIT"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Renderer is the map view collaborator
type Renderer interface {
	// Invalidate requests a redraw after data, selection or view changes
	Invalidate()
}

type nopRenderer struct{}

func (nopRenderer) Invalidate() {}

// Config holds screen and tolerance settings
type Config struct {
	ScreenWidth, ScreenHeight int
	// NodeTolerance is the click radius around nodes, in pixels
	NodeTolerance float64
	// WayTolerance is the click band width around way segments, in pixels
	WayTolerance float64
	// MaxEditWidth is the view box width in E7 above which hit-testing is disabled
	MaxEditWidth int64
	UndoLimit    int
	Rules        *tagging.Rules
	// APIURL is the base used for history links
	APIURL string
}

// Default settings
const (
	DefaultNodeTolerance = 40
	DefaultWayTolerance  = 40
	DefaultMaxEditWidth  = 200000
	DefaultAPIURL        = "https://www.openstreetmap.org"
)

// Bug is a note placed on the map in OpenStreetBugs mode
type Bug struct {
	LatE7, LonE7 int32
	Comment      string
}

// Logic is the editor state. It is not safe for concurrent use; all calls
// belong to the UI goroutine.
type Logic struct {
	cfg       Config
	viewBox   *geo.BoundingBox
	delegator *graph.Delegator
	clipboard *clipboard.Clipboard
	renderer  Renderer

	mode             Mode
	selectedNode     *graph.Node
	selectedWay      *graph.Way
	selectedRelation *graph.Relation
	highlighted      map[graph.Element]bool
	clickable        map[graph.Element]bool

	drag *dragState
}

// New creates an editor over storage s showing viewBox
func New(cfg Config, s *graph.Storage, viewBox *geo.BoundingBox) *Logic {
	if cfg.NodeTolerance <= 0 {
		cfg.NodeTolerance = DefaultNodeTolerance
	}
	if cfg.WayTolerance <= 0 {
		cfg.WayTolerance = DefaultWayTolerance
	}
	if cfg.MaxEditWidth <= 0 {
		cfg.MaxEditWidth = DefaultMaxEditWidth
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	return &Logic{
		cfg:       cfg,
		viewBox:   viewBox.Copy(),
		delegator: graph.NewDelegator(s, cfg.UndoLimit, cfg.Rules),
		clipboard: clipboard.New(),
		renderer:  nopRenderer{},
		mode:      ModeMove,
	}
}

// SetRenderer installs the map view collaborator
func (l *Logic) SetRenderer(r Renderer) {
	if r == nil {
		r = nopRenderer{}
	}
	l.renderer = r
}

// Delegator returns the storage mutator
func (l *Logic) Delegator() *graph.Delegator { return l.delegator }

// Storage returns the current storage
func (l *Logic) Storage() *graph.Storage { return l.delegator.Storage() }

// Clipboard returns the clipboard
func (l *Logic) Clipboard() *clipboard.Clipboard { return l.clipboard }

// ViewBox returns a copy of the visible area
func (l *Logic) ViewBox() *geo.BoundingBox { return l.viewBox.Copy() }

// ScreenSize returns the screen dimensions in pixels
func (l *Logic) ScreenSize() (width, height int) {
	return l.cfg.ScreenWidth, l.cfg.ScreenHeight
}

// Mode returns the current mode
func (l *Logic) Mode() Mode { return l.mode }

// SetMode switches the mode. Changing the mode clears the selection.
func (l *Logic) SetMode(m Mode) {
	if m == l.mode {
		return
	}
	logger.Get().Debug("Mode changed", zap.Stringer("from", l.mode), zap.Stringer("to", m))
	l.mode = m
	l.ClearSelection()
}

// SetStorage replaces the data set. Undo history, selection and the clickable
// set are reset.
func (l *Logic) SetStorage(s *graph.Storage) {
	l.delegator.SetStorage(s)
	l.selectedNode, l.selectedWay, l.selectedRelation = nil, nil, nil
	l.highlighted = nil
	l.clickable = nil
	l.drag = nil
	l.renderer.Invalidate()
}

// SelectedNode returns the selected node, or nil
func (l *Logic) SelectedNode() *graph.Node { return l.selectedNode }

// SelectedWay returns the selected way, or nil
func (l *Logic) SelectedWay() *graph.Way { return l.selectedWay }

// SelectedRelation returns the selected relation, or nil
func (l *Logic) SelectedRelation() *graph.Relation { return l.selectedRelation }

// SetSelectedNode selects n, or clears the node selection with nil
func (l *Logic) SetSelectedNode(n *graph.Node) {
	l.selectedNode = n
	l.renderer.Invalidate()
}

// SetSelectedWay selects w, or clears the way selection with nil
func (l *Logic) SetSelectedWay(w *graph.Way) {
	l.selectedWay = w
	l.renderer.Invalidate()
}

// SetSelectedRelation selects r and highlights its members
func (l *Logic) SetSelectedRelation(r *graph.Relation) {
	l.selectedRelation = r
	l.highlighted = nil
	if r != nil {
		l.highlighted = make(map[graph.Element]bool, r.MemberCount())
		for _, m := range r.Members() {
			l.highlighted[m.Element] = true
		}
	}
	l.renderer.Invalidate()
}

// IsHighlighted reports whether e is a member of the selected relation
func (l *Logic) IsHighlighted(e graph.Element) bool {
	return l.highlighted[e]
}

// ClearSelection drops every selection
func (l *Logic) ClearSelection() {
	l.selectedNode, l.selectedWay = nil, nil
	l.SetSelectedRelation(nil)
}

// SetClickableElements restricts hit-testing to elems. nil lifts the restriction.
func (l *Logic) SetClickableElements(elems []graph.Element) {
	if elems == nil {
		l.clickable = nil
		return
	}
	l.clickable = make(map[graph.Element]bool, len(elems))
	for _, e := range elems {
		l.clickable[e] = true
	}
}

// HasClickableElements reports whether hit-testing is restricted
func (l *Logic) HasClickableElements() bool {
	return l.clickable != nil
}

// IsEditable reports whether the view is narrow enough for selecting and editing
func (l *Logic) IsEditable() bool {
	return l.viewBox.Width() < l.cfg.MaxEditWidth
}

// Undo reverts the newest checkpoint. Selected elements that no longer exist
// are deselected. Returns the checkpoint name, "" when nothing was undone.
func (l *Logic) Undo() string {
	l.drag = nil
	name := l.delegator.Undo()
	if name == "" {
		return ""
	}
	if l.selectedNode != nil && !l.delegator.Exists(l.selectedNode) {
		l.selectedNode = nil
	}
	if l.selectedWay != nil && !l.delegator.Exists(l.selectedWay) {
		l.selectedWay = nil
	}
	if l.selectedRelation != nil && !l.delegator.Exists(l.selectedRelation) {
		l.SetSelectedRelation(nil)
	}
	l.renderer.Invalidate()
	return name
}

// MakeNewBug returns a bug positioned at the screen point
func (l *Logic) MakeNewBug(x, y float64) Bug {
	lat, lon := l.toLatLon(x, y)
	return Bug{LatE7: lat, LonE7: lon}
}

// HistoryURL returns the web page listing the versions of e. Elements that
// were never uploaded have no history and yield "".
func (l *Logic) HistoryURL(e graph.Element) string {
	if e == nil || e.ID() <= 0 {
		return ""
	}
	base := l.cfg.APIURL
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return fmt.Sprintf("%s/browse/%s/%d/history", base, e.Kind(), e.ID())
}

func (l *Logic) toX(lonE7 int32) float64 {
	return geo.LonE7ToX(l.cfg.ScreenWidth, l.viewBox, lonE7)
}

func (l *Logic) toY(latE7 int32) float64 {
	return geo.LatE7ToY(l.cfg.ScreenHeight, l.viewBox, latE7)
}

func (l *Logic) toLatLon(x, y float64) (latE7, lonE7 int32) {
	return geo.YToLatE7(l.cfg.ScreenHeight, l.viewBox, y), geo.XToLonE7(l.cfg.ScreenWidth, l.viewBox, x)
}

// ScreenPosition returns the pixel position of n
func (l *Logic) ScreenPosition(n *graph.Node) (x, y float64) {
	return l.toX(n.LonE7()), l.toY(n.LatE7())
}
