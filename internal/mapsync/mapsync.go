// Package mapsync keeps the mapping canvas and the rest of the engine in
// lockstep: marker identity, bidirectional hover emphasis, and the single
// selection cursor.  The canvas itself (tiles, projection, animation) stays
// behind the Canvas interface.
package mapsync

import (
	"sync"

	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
	"github.com/lokaskor/lokaskor/pkg/types/geo"
)

// MarkerHandle is the canvas-assigned identity of a rendered marker.
type MarkerHandle string

// OverlayHandle is the canvas-assigned identity of a rendered overlay.
type OverlayHandle string

// MarkerStyle is everything the canvas needs to draw a marker.
type MarkerStyle struct {
	Class      location.ScoreClass `json:"class"`
	Label      string              `json:"label"`
	Emphasized bool                `json:"emphasized"`
	Selected   bool                `json:"selected"`
}

// Canvas is the mapping surface contract.  All coordinates are geographic;
// projecting them to pixels is entirely the canvas's concern.
type Canvas interface {
	AddMarker(pos geo.LatLng, style MarkerStyle) (MarkerHandle, error)
	UpdateMarker(h MarkerHandle, style MarkerStyle) error
	RemoveMarker(h MarkerHandle) error

	PanTo(pos geo.LatLng) error
	FitBounds(b geo.Bounds) error

	AddOverlay(spec any) (OverlayHandle, error)
	RemoveOverlay(h OverlayHandle) error

	ViewportBounds() geo.Bounds
	Zoom() int

	OnMarkerClick(fn func(MarkerHandle))
	OnMarkerHover(fn func(h MarkerHandle, entered bool))
	OnMapClick(fn func(pos geo.LatLng))
	OnZoomChange(fn func(zoom int))
	OnMoveEnd(fn func(bounds geo.Bounds))
}

// MarkerBinding ties a location to its rendered marker.  Position is fixed
// at upsert time; viewport changes never touch it.
type MarkerBinding struct {
	Handle   MarkerHandle
	Position geo.LatLng
	Style    MarkerStyle
}

// Layer synchronizes markers and cursors with the canvas.
type Layer struct {
	log    logging.Logger
	canvas Canvas

	mu       sync.Mutex
	bindings map[string]*MarkerBinding // locationID → binding
	byHandle map[MarkerHandle]string

	hoveredFromSidebar string
	hoveredFromMap     string
	selected           string

	onSelect         func(locationID string)
	onClearSelection func()
	sidebarHighlight func(locationID string, on bool)
}

// New constructs a Layer and wires the canvas events it needs.
func New(canvas Canvas, log logging.Logger) *Layer {
	l := &Layer{
		log:      log.Named("mapsync"),
		canvas:   canvas,
		bindings: make(map[string]*MarkerBinding),
		byHandle: make(map[MarkerHandle]string),
	}

	canvas.OnMarkerClick(func(h MarkerHandle) {
		if id, ok := l.lookupHandle(h); ok {
			l.Select(id)
		}
	})
	canvas.OnMarkerHover(func(h MarkerHandle, entered bool) {
		if id, ok := l.lookupHandle(h); ok {
			l.hoverFromMap(id, entered)
		}
	})
	canvas.OnMapClick(func(geo.LatLng) {
		l.ClearSelection()
	})
	return l
}

// SetOnSelect registers the callback invoked when selection moves to a
// location (from either the map or the sidebar).
func (l *Layer) SetOnSelect(fn func(locationID string)) { l.onSelect = fn }

// SetOnClearSelection registers the callback invoked when an empty-canvas
// click clears the selection (e.g. to close the detail view).
func (l *Layer) SetOnClearSelection(fn func()) { l.onClearSelection = fn }

// SetSidebarHighlighter registers the surface that mirrors map hover onto the
// sidebar entry.
func (l *Layer) SetSidebarHighlighter(fn func(locationID string, on bool)) {
	l.sidebarHighlight = fn
}

func (l *Layer) lookupHandle(h MarkerHandle) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.byHandle[h]
	return id, ok
}

// Upsert creates or refreshes the marker for a result.  Repeated upserts for
// the same location are idempotent: the style is refreshed in place, and the
// marker is only re-created when the geographic position itself changed.
func (l *Layer) Upsert(res location.AnalysisResult) error {
	style := MarkerStyle{
		Class: location.ClassForScore(res.TotalScore),
		Label: res.Address,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.bindings[res.LocationID]; ok {
		if b.Position == res.Position {
			style.Emphasized = b.Style.Emphasized
			style.Selected = b.Style.Selected
			if err := l.canvas.UpdateMarker(b.Handle, style); err != nil {
				return apperrors.Wrap(err, apperrors.CodeInternal, "marker update failed").
					WithDetail(res.LocationID)
			}
			b.Style = style
			return nil
		}
		// Position changed: replace the marker, dropping stale cursors.
		l.removeLocked(res.LocationID)
	}

	h, err := l.canvas.AddMarker(res.Position, style)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "marker creation failed").
			WithDetail(res.LocationID)
	}
	l.bindings[res.LocationID] = &MarkerBinding{Handle: h, Position: res.Position, Style: style}
	l.byHandle[h] = res.LocationID
	return nil
}

// Remove deletes the marker and clears any cursor pointing at the location.
func (l *Layer) Remove(locationID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeLocked(locationID)
}

func (l *Layer) removeLocked(locationID string) {
	b, ok := l.bindings[locationID]
	if !ok {
		return
	}
	if err := l.canvas.RemoveMarker(b.Handle); err != nil {
		l.log.Warn("marker removal failed",
			logging.String("location_id", locationID), logging.Err(err))
	}
	delete(l.byHandle, b.Handle)
	delete(l.bindings, locationID)

	if l.hoveredFromSidebar == locationID {
		l.hoveredFromSidebar = ""
	}
	if l.hoveredFromMap == locationID {
		l.hoveredFromMap = ""
	}
	if l.selected == locationID {
		l.selected = ""
	}
}

// Clear removes every marker and cursor.
func (l *Layer) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id := range l.bindings {
		l.removeLocked(id)
	}
}

// Binding returns a copy of the marker binding for a location.
func (l *Layer) Binding(locationID string) (MarkerBinding, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bindings[locationID]
	if !ok {
		return MarkerBinding{}, false
	}
	return *b, true
}

// Selected returns the currently selected location id, if any.
func (l *Layer) Selected() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selected, l.selected != ""
}

// HoverFromSidebar mirrors sidebar hover onto the map marker: emphasis only,
// selection untouched.
func (l *Layer) HoverFromSidebar(locationID string, entered bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entered {
		l.hoveredFromSidebar = locationID
	} else if l.hoveredFromSidebar == locationID {
		l.hoveredFromSidebar = ""
	}
	l.applyEmphasisLocked(locationID, entered)
}

// hoverFromMap mirrors marker hover onto the sidebar entry.
func (l *Layer) hoverFromMap(locationID string, entered bool) {
	l.mu.Lock()
	if entered {
		l.hoveredFromMap = locationID
	} else if l.hoveredFromMap == locationID {
		l.hoveredFromMap = ""
	}
	l.applyEmphasisLocked(locationID, entered)
	fn := l.sidebarHighlight
	l.mu.Unlock()

	if fn != nil {
		fn(locationID, entered)
	}
}

func (l *Layer) applyEmphasisLocked(locationID string, on bool) {
	b, ok := l.bindings[locationID]
	if !ok {
		return
	}
	if b.Style.Emphasized == on {
		return
	}
	b.Style.Emphasized = on
	if err := l.canvas.UpdateMarker(b.Handle, b.Style); err != nil {
		l.log.Warn("marker emphasis failed",
			logging.String("location_id", locationID), logging.Err(err))
	}
}

// Select moves the selection cursor to a location: the previous selection is
// restyled back, the new marker styled selected, and the camera pans to it.
// Selecting the already-selected location is a no-op.
func (l *Layer) Select(locationID string) {
	l.mu.Lock()
	b, ok := l.bindings[locationID]
	if !ok || l.selected == locationID {
		l.mu.Unlock()
		return
	}

	if prev, okPrev := l.bindings[l.selected]; okPrev {
		prev.Style.Selected = false
		if err := l.canvas.UpdateMarker(prev.Handle, prev.Style); err != nil {
			l.log.Warn("marker deselect failed", logging.Err(err))
		}
	}

	l.selected = locationID
	b.Style.Selected = true
	if err := l.canvas.UpdateMarker(b.Handle, b.Style); err != nil {
		l.log.Warn("marker select failed", logging.Err(err))
	}
	if err := l.canvas.PanTo(b.Position); err != nil {
		l.log.Warn("pan failed", logging.Err(err))
	}
	fn := l.onSelect
	l.mu.Unlock()

	if fn != nil {
		fn(locationID)
	}
}

// ClearSelection drops the selection cursor, restyles the marker, and
// invokes the close-detail callback.  No-op when nothing is selected.
func (l *Layer) ClearSelection() {
	l.mu.Lock()
	if l.selected == "" {
		l.mu.Unlock()
		return
	}
	if b, ok := l.bindings[l.selected]; ok {
		b.Style.Selected = false
		if err := l.canvas.UpdateMarker(b.Handle, b.Style); err != nil {
			l.log.Warn("marker deselect failed", logging.Err(err))
		}
	}
	l.selected = ""
	fn := l.onClearSelection
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// FitAll frames the camera around every marker.  No-op without markers.
func (l *Layer) FitAll() {
	l.mu.Lock()
	points := make([]geo.LatLng, 0, len(l.bindings))
	for _, b := range l.bindings {
		points = append(points, b.Position)
	}
	l.mu.Unlock()

	if len(points) == 0 {
		return
	}
	if err := l.canvas.FitBounds(geo.BoundsOf(points)); err != nil {
		l.log.Warn("fit bounds failed", logging.Err(err))
	}
}

// Count reports the number of live markers.
func (l *Layer) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bindings)
}
