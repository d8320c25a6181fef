package mapsync

import (
	"fmt"
	"sync"

	"github.com/lokaskor/lokaskor/pkg/types/geo"
)

// NopCanvas is a headless Canvas for deployments without a rendering surface
// (the HTTP API server, tests).  It keeps marker and overlay bookkeeping
// consistent so Layer and the heatmap engine behave exactly as they would
// against a real canvas, but draws nothing.
type NopCanvas struct {
	mu       sync.Mutex
	next     int
	markers  map[MarkerHandle]geo.LatLng
	overlays map[OverlayHandle]any
	viewport geo.Bounds
	zoom     int

	onMarkerClick func(MarkerHandle)
	onMarkerHover func(MarkerHandle, bool)
	onMapClick    func(geo.LatLng)
	onZoomChange  func(int)
	onMoveEnd     func(geo.Bounds)
}

// NewNopCanvas returns a headless canvas at the given zoom.
func NewNopCanvas(viewport geo.Bounds, zoom int) *NopCanvas {
	return &NopCanvas{
		markers:  make(map[MarkerHandle]geo.LatLng),
		overlays: make(map[OverlayHandle]any),
		viewport: viewport,
		zoom:     zoom,
	}
}

func (c *NopCanvas) AddMarker(pos geo.LatLng, _ MarkerStyle) (MarkerHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	h := MarkerHandle(fmt.Sprintf("m%d", c.next))
	c.markers[h] = pos
	return h, nil
}

func (c *NopCanvas) UpdateMarker(MarkerHandle, MarkerStyle) error { return nil }

func (c *NopCanvas) RemoveMarker(h MarkerHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markers, h)
	return nil
}

func (c *NopCanvas) PanTo(geo.LatLng) error { return nil }

func (c *NopCanvas) FitBounds(b geo.Bounds) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = b
	return nil
}

func (c *NopCanvas) AddOverlay(spec any) (OverlayHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	h := OverlayHandle(fmt.Sprintf("o%d", c.next))
	c.overlays[h] = spec
	return h, nil
}

func (c *NopCanvas) RemoveOverlay(h OverlayHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.overlays, h)
	return nil
}

func (c *NopCanvas) ViewportBounds() geo.Bounds {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

func (c *NopCanvas) Zoom() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

// SetZoom updates the reported zoom and fires the zoom-change handler.
func (c *NopCanvas) SetZoom(zoom int) {
	c.mu.Lock()
	c.zoom = zoom
	fn := c.onZoomChange
	c.mu.Unlock()
	if fn != nil {
		fn(zoom)
	}
}

// MarkerCount reports live markers.
func (c *NopCanvas) MarkerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.markers)
}

// OverlayCount reports live overlays.
func (c *NopCanvas) OverlayCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.overlays)
}

func (c *NopCanvas) OnMarkerClick(fn func(MarkerHandle))       { c.onMarkerClick = fn }
func (c *NopCanvas) OnMarkerHover(fn func(MarkerHandle, bool)) { c.onMarkerHover = fn }
func (c *NopCanvas) OnMapClick(fn func(geo.LatLng))            { c.onMapClick = fn }
func (c *NopCanvas) OnZoomChange(fn func(int))                 { c.onZoomChange = fn }
func (c *NopCanvas) OnMoveEnd(fn func(geo.Bounds))             { c.onMoveEnd = fn }
