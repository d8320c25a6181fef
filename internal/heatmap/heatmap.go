// Package heatmap turns region-scan samples into the score overlay shown on
// the map.  Cell sets are immutable once built; installing a new layer is an
// atomic swap guarded by a generation counter, and the legend state is always
// derived from the installed layer.
package heatmap

import (
	"fmt"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/prometheus"
	"github.com/lokaskor/lokaskor/internal/mapsync"
	"github.com/lokaskor/lokaskor/pkg/types/geo"
)

// Ramp is the fixed three-stop color ramp.
type Ramp struct {
	Low  string `json:"low"`
	Mid  string `json:"mid"`
	High string `json:"high"`
}

// DefaultRamp matches the product's score gradient.
var DefaultRamp = Ramp{Low: "#3B82F6", Mid: "#F59E0B", High: "#DC2626"}

// DefaultMinZoom is the zoom threshold below which rendering is suppressed.
const DefaultMinZoom = 12

// ZoomMessage is reported when the viewport is zoomed out too far.
const ZoomMessage = "Zoom in to view the score heatmap"

// Sample is one scored point from a region scan.
type Sample struct {
	Position geo.LatLng `json:"position"`
	Score    float64    `json:"score"`
}

// Cell is one immutable cell of a rendered layer.
type Cell struct {
	Bounds    geo.Bounds `json:"bounds"`
	Intensity float64    `json:"intensity"` // normalized to [0, 1]
	Color     string     `json:"color"`
}

// Layer is an immutable rendered heatmap.
type Layer struct {
	Generation   int64   `json:"generation"`
	Cells        []Cell  `json:"cells"`
	Ramp         Ramp    `json:"ramp"`
	Opacity      float64 `json:"opacity"`
	AvgIntensity float64 `json:"avg_intensity"`
}

// Outcome reports what a render request produced.
type Outcome struct {
	Layer      *Layer `json:"layer,omitempty"`
	Suppressed bool   `json:"suppressed"`
	Message    string `json:"message,omitempty"`
}

// Legend describes the on-screen legend.  Visible is derived from the
// installed layer and can never disagree with it.
type Legend struct {
	Visible bool `json:"visible"`
	Ramp    Ramp `json:"ramp"`
}

// Config tunes the engine.
type Config struct {
	MinZoom  int
	CellSize float64 // cell edge length in meters
	Opacity  float64
}

// Engine renders heatmap layers onto the canvas.
type Engine struct {
	log     logging.Logger
	canvas  mapsync.Canvas
	cfg     Config
	metrics *prometheus.Metrics // optional

	generation atomic.Int64

	mu      sync.Mutex
	current *Layer
	overlay mapsync.OverlayHandle
}

// New constructs an Engine.  Zero config fields fall back to defaults.
func New(canvas mapsync.Canvas, cfg Config, log logging.Logger, metrics *prometheus.Metrics) *Engine {
	if cfg.MinZoom == 0 {
		cfg.MinZoom = DefaultMinZoom
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = 250
	}
	if cfg.Opacity <= 0 || cfg.Opacity > 1 {
		cfg.Opacity = 0.65
	}
	return &Engine{
		log:     log.Named("heatmap"),
		canvas:  canvas,
		cfg:     cfg,
		metrics: metrics,
	}
}

// Render builds a layer from the samples visible in the viewport and installs
// it, atomically replacing any previous layer.  Below the zoom threshold the
// current layer is cleared and a threshold message is reported instead.
func (e *Engine) Render(samples []Sample, viewport geo.Bounds, zoom int) (Outcome, error) {
	gen := e.generation.Add(1)

	if zoom < e.cfg.MinZoom {
		e.clearInstalled(gen)
		e.record("below_zoom")
		return Outcome{Suppressed: true, Message: ZoomMessage}, nil
	}

	visible := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if viewport.Contains(s.Position) {
			visible = append(visible, s)
		}
	}
	if len(visible) == 0 {
		e.clearInstalled(gen)
		e.record("empty")
		return Outcome{Message: "No scored areas in view"}, nil
	}

	layer := e.buildLayer(gen, visible, viewport)

	e.mu.Lock()
	defer e.mu.Unlock()
	// A younger render finished first; discard this one without touching the
	// installed layer.
	if e.generation.Load() != gen {
		e.record("stale")
		return Outcome{Layer: layer, Message: "superseded"}, nil
	}
	e.installLocked(layer)
	e.record("rendered")
	return Outcome{Layer: layer}, nil
}

// buildLayer grids the viewport, averages sample scores per cell, and
// min-max normalizes the intensities.
func (e *Engine) buildLayer(gen int64, samples []Sample, viewport geo.Bounds) *Layer {
	type bucket struct {
		scores []float64
		bounds geo.Bounds
	}

	origin := viewport.SouthWest
	cells := make(map[[2]int]*bucket)
	for _, s := range samples {
		northM := geo.DistanceMeters(origin, geo.LatLng{Lat: s.Position.Lat, Lng: origin.Lng})
		eastM := geo.DistanceMeters(origin, geo.LatLng{Lat: origin.Lat, Lng: s.Position.Lng})
		key := [2]int{int(northM / e.cfg.CellSize), int(eastM / e.cfg.CellSize)}

		b, ok := cells[key]
		if !ok {
			sw := geo.Offset(origin, float64(key[0])*e.cfg.CellSize, float64(key[1])*e.cfg.CellSize)
			b = &bucket{bounds: geo.Bounds{
				SouthWest: sw,
				NorthEast: geo.Offset(sw, e.cfg.CellSize, e.cfg.CellSize),
			}}
			cells[key] = b
		}
		b.scores = append(b.scores, s.Score)
	}

	means := make([]float64, 0, len(cells))
	ordered := make([]*bucket, 0, len(cells))
	for _, b := range cells {
		means = append(means, stat.Mean(b.scores, nil))
		ordered = append(ordered, b)
	}

	lo, hi := floats.Min(means), floats.Max(means)
	span := hi - lo

	out := make([]Cell, 0, len(ordered))
	intensities := make([]float64, 0, len(ordered))
	for i, b := range ordered {
		intensity := 1.0
		if span > 0 {
			intensity = clamp01((means[i] - lo) / span)
		}
		intensities = append(intensities, intensity)
		out = append(out, Cell{
			Bounds:    b.bounds,
			Intensity: intensity,
			Color:     DefaultRamp.colorAt(intensity),
		})
	}

	return &Layer{
		Generation:   gen,
		Cells:        out,
		Ramp:         DefaultRamp,
		Opacity:      e.cfg.Opacity,
		AvgIntensity: stat.Mean(intensities, nil),
	}
}

// installLocked swaps the canvas overlay.  Caller holds e.mu.
func (e *Engine) installLocked(layer *Layer) {
	if e.overlay != "" {
		if err := e.canvas.RemoveOverlay(e.overlay); err != nil {
			e.log.Warn("stale heatmap overlay removal failed", logging.Err(err))
		}
		e.overlay = ""
	}
	h, err := e.canvas.AddOverlay(layer)
	if err != nil {
		e.log.Error("heatmap overlay install failed", logging.Err(err))
		e.current = nil
		return
	}
	e.overlay = h
	e.current = layer
	e.log.Debug("heatmap installed",
		logging.Int64("generation", layer.Generation),
		logging.Int("cells", len(layer.Cells)))
}

func (e *Engine) clearInstalled(gen int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation.Load() != gen {
		return
	}
	if e.overlay != "" {
		if err := e.canvas.RemoveOverlay(e.overlay); err != nil {
			e.log.Warn("heatmap overlay removal failed", logging.Err(err))
		}
		e.overlay = ""
	}
	e.current = nil
}

// Clear removes the installed layer, hiding the legend with it.
func (e *Engine) Clear() {
	e.clearInstalled(e.generation.Add(1))
}

// Current returns the installed layer, if any.
func (e *Engine) Current() (*Layer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current, e.current != nil
}

// Legend derives the legend from the installed layer; there is no
// independent toggle.
func (e *Engine) Legend() Legend {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Legend{Visible: e.current != nil, Ramp: DefaultRamp}
}

func (e *Engine) record(outcome string) {
	if e.metrics != nil {
		e.metrics.HeatmapRenders.WithLabelValues(outcome).Inc()
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// colorAt interpolates the ramp at a normalized intensity: low to mid over
// the first half, mid to high over the second.
func (r Ramp) colorAt(intensity float64) string {
	intensity = clamp01(intensity)
	if intensity <= 0.5 {
		return lerpHex(r.Low, r.Mid, intensity*2)
	}
	return lerpHex(r.Mid, r.High, (intensity-0.5)*2)
}

func lerpHex(from, to string, t float64) string {
	fr, fg, fb := parseHex(from)
	tr, tg, tb := parseHex(to)
	lerp := func(a, b int) int { return a + int(float64(b-a)*t) }
	return fmt.Sprintf("#%02X%02X%02X", lerp(fr, tr), lerp(fg, tg), lerp(fb, tb))
}

func parseHex(c string) (r, g, b int) {
	fmt.Sscanf(c, "#%02x%02x%02x", &r, &g, &b)
	return
}
