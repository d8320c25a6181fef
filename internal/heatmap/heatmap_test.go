package heatmap

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	"github.com/lokaskor/lokaskor/internal/mapsync"
	"github.com/lokaskor/lokaskor/pkg/types/geo"
)

// overlayCanvas implements just enough of mapsync.Canvas for the engine.
type overlayCanvas struct {
	nextID   int
	overlays map[mapsync.OverlayHandle]any
}

func newOverlayCanvas() *overlayCanvas {
	return &overlayCanvas{overlays: make(map[mapsync.OverlayHandle]any)}
}

func (c *overlayCanvas) AddOverlay(spec any) (mapsync.OverlayHandle, error) {
	c.nextID++
	h := mapsync.OverlayHandle(fmt.Sprintf("o%d", c.nextID))
	c.overlays[h] = spec
	return h, nil
}

func (c *overlayCanvas) RemoveOverlay(h mapsync.OverlayHandle) error {
	delete(c.overlays, h)
	return nil
}

func (c *overlayCanvas) AddMarker(geo.LatLng, mapsync.MarkerStyle) (mapsync.MarkerHandle, error) {
	return "", nil
}
func (c *overlayCanvas) UpdateMarker(mapsync.MarkerHandle, mapsync.MarkerStyle) error { return nil }
func (c *overlayCanvas) RemoveMarker(mapsync.MarkerHandle) error                      { return nil }
func (c *overlayCanvas) PanTo(geo.LatLng) error                                       { return nil }
func (c *overlayCanvas) FitBounds(geo.Bounds) error                                   { return nil }
func (c *overlayCanvas) ViewportBounds() geo.Bounds                                   { return geo.Bounds{} }
func (c *overlayCanvas) Zoom() int                                                    { return 13 }
func (c *overlayCanvas) OnMarkerClick(func(mapsync.MarkerHandle))                     {}
func (c *overlayCanvas) OnMarkerHover(func(mapsync.MarkerHandle, bool))               {}
func (c *overlayCanvas) OnMapClick(func(geo.LatLng))                                  {}
func (c *overlayCanvas) OnZoomChange(func(int))                                       {}
func (c *overlayCanvas) OnMoveEnd(func(geo.Bounds))                                   {}

var testViewport = geo.Bounds{
	SouthWest: geo.LatLng{Lat: 40.95, Lng: 28.95},
	NorthEast: geo.LatLng{Lat: 41.05, Lng: 29.05},
}

func testSamples() []Sample {
	return []Sample{
		{Position: geo.LatLng{Lat: 40.96, Lng: 28.96}, Score: 30},
		{Position: geo.LatLng{Lat: 40.98, Lng: 28.98}, Score: 55},
		{Position: geo.LatLng{Lat: 41.00, Lng: 29.00}, Score: 70},
		{Position: geo.LatLng{Lat: 41.02, Lng: 29.02}, Score: 95},
	}
}

func newEngine(canvas mapsync.Canvas) *Engine {
	return New(canvas, Config{}, logging.NewNopLogger(), nil)
}

func TestRenderInstallsLayer(t *testing.T) {
	canvas := newOverlayCanvas()
	e := newEngine(canvas)

	out, err := e.Render(testSamples(), testViewport, 13)
	require.NoError(t, err)
	require.NotNil(t, out.Layer)
	assert.False(t, out.Suppressed)
	assert.NotEmpty(t, out.Layer.Cells)
	assert.Equal(t, DefaultRamp, out.Layer.Ramp)
	assert.Len(t, canvas.overlays, 1)

	current, ok := e.Current()
	require.True(t, ok)
	assert.Equal(t, out.Layer, current)
}

func TestRenderNormalizesIntensities(t *testing.T) {
	e := newEngine(newOverlayCanvas())

	out, err := e.Render(testSamples(), testViewport, 13)
	require.NoError(t, err)

	var lo, hi float64 = 2, -1
	for _, c := range out.Layer.Cells {
		assert.GreaterOrEqual(t, c.Intensity, 0.0)
		assert.LessOrEqual(t, c.Intensity, 1.0)
		if c.Intensity < lo {
			lo = c.Intensity
		}
		if c.Intensity > hi {
			hi = c.Intensity
		}
	}
	assert.Equal(t, 0.0, lo, "coldest cell sits at the ramp start")
	assert.Equal(t, 1.0, hi, "hottest cell sits at the ramp end")
	assert.Greater(t, out.Layer.AvgIntensity, 0.0)
}

func TestRenderBelowZoomSuppressesAndClears(t *testing.T) {
	canvas := newOverlayCanvas()
	e := newEngine(canvas)

	_, err := e.Render(testSamples(), testViewport, 13)
	require.NoError(t, err)
	require.Len(t, canvas.overlays, 1)

	out, err := e.Render(testSamples(), testViewport, 11)
	require.NoError(t, err)
	assert.True(t, out.Suppressed)
	assert.Equal(t, ZoomMessage, out.Message)
	assert.Nil(t, out.Layer)
	assert.Empty(t, canvas.overlays, "previous layer cleared")

	_, ok := e.Current()
	assert.False(t, ok)
}

func TestRenderEmptyViewport(t *testing.T) {
	canvas := newOverlayCanvas()
	e := newEngine(canvas)

	far := geo.Bounds{
		SouthWest: geo.LatLng{Lat: 50, Lng: 10},
		NorthEast: geo.LatLng{Lat: 51, Lng: 11},
	}
	out, err := e.Render(testSamples(), far, 13)
	require.NoError(t, err)
	assert.Nil(t, out.Layer)
	assert.False(t, out.Suppressed)
	assert.NotEmpty(t, out.Message)
}

func TestRenderSwapsAtomically(t *testing.T) {
	canvas := newOverlayCanvas()
	e := newEngine(canvas)

	out1, err := e.Render(testSamples(), testViewport, 13)
	require.NoError(t, err)
	out2, err := e.Render(testSamples(), testViewport, 14)
	require.NoError(t, err)

	assert.Greater(t, out2.Layer.Generation, out1.Layer.Generation)
	assert.Len(t, canvas.overlays, 1, "old overlay removed on swap")

	current, ok := e.Current()
	require.True(t, ok)
	assert.Equal(t, out2.Layer.Generation, current.Generation)
}

func TestLegendDerivedFromLayer(t *testing.T) {
	e := newEngine(newOverlayCanvas())

	assert.False(t, e.Legend().Visible)

	_, err := e.Render(testSamples(), testViewport, 13)
	require.NoError(t, err)
	legend := e.Legend()
	assert.True(t, legend.Visible)
	assert.Equal(t, DefaultRamp, legend.Ramp)

	e.Clear()
	assert.False(t, e.Legend().Visible)
}

func TestRampColorAt(t *testing.T) {
	r := DefaultRamp

	assert.Equal(t, "#3B82F6", r.colorAt(0))
	assert.Equal(t, "#F59E0B", r.colorAt(0.5))
	assert.Equal(t, "#DC2626", r.colorAt(1))

	// Midpoints blend between adjacent stops.
	mixed := r.colorAt(0.25)
	assert.True(t, strings.HasPrefix(mixed, "#"))
	assert.NotEqual(t, r.Low, mixed)
	assert.NotEqual(t, r.Mid, mixed)
}

func TestCellsAreImmutablePerRender(t *testing.T) {
	e := newEngine(newOverlayCanvas())

	out, err := e.Render(testSamples(), testViewport, 13)
	require.NoError(t, err)

	// Mutating the returned slice must not affect the installed layer.
	snapshot := make([]Cell, len(out.Layer.Cells))
	copy(snapshot, out.Layer.Cells)

	current, _ := e.Current()
	assert.Equal(t, snapshot, current.Cells)
}
