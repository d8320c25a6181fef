// Package panel coordinates the detail panels attached to analysis results.
// At most one panel is live per location; opening a second category for the
// same location closes the first to completion before the new content is
// fetched.  The visual side lives behind the Surface interface so the
// presentation layer stays a collaborator.
package panel

import (
	"context"
	"fmt"
	"sync"

	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/prometheus"
	"github.com/lokaskor/lokaskor/internal/resultcache"
	"github.com/lokaskor/lokaskor/internal/statestore"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
)

// State is the lifecycle position of a panel.
type State string

const (
	StateClosed     State = "closed"
	StateExpanding  State = "expanding"
	StateOpen       State = "open"
	StateCollapsing State = "collapsing"
)

// Anchor identifies the UI element a panel opens next to.  It is opaque to
// the coordinator and passed through to the surface.
type Anchor string

// Container is a live panel created by the surface.
type Container interface {
	// Expand renders the content and runs the open animation to completion.
	Expand(ctx context.Context, content string) error

	// Collapse runs the close animation.  Implementations should return even
	// when interrupted; the coordinator discards the container either way.
	Collapse(ctx context.Context) error

	// Discard releases the container immediately without animation.
	Discard()
}

// Surface creates panel containers.  Implementations own all presentation
// concerns (positioning near the anchor, animation, styling).
type Surface interface {
	Create(key string, anchor Anchor) (Container, error)
}

// Renderer turns extracted detail data into panel content.
type Renderer func(data any) (string, error)

type panel struct {
	key        string
	category   location.Category
	locationID string
	state      State
	container  Container
}

// Coordinator owns the set of live panels for one session.
type Coordinator struct {
	log       logging.Logger
	store     *statestore.Store
	cache     resultcache.Cache
	surface   Surface
	metrics   *prometheus.Metrics // optional
	renderers map[location.Category]Renderer
	fallback  Renderer

	mu     sync.Mutex
	panels map[string]*panel
}

// New constructs a Coordinator.  metrics may be nil.
func New(store *statestore.Store, cache resultcache.Cache, surface Surface,
	log logging.Logger, metrics *prometheus.Metrics) *Coordinator {
	return &Coordinator{
		log:       log.Named("panel"),
		store:     store,
		cache:     cache,
		surface:   surface,
		metrics:   metrics,
		renderers: make(map[location.Category]Renderer),
		fallback:  fallbackRenderer,
	}
}

// RegisterRenderer installs the renderer for a category.  Categories without
// a registered renderer fall back to a generic rendering.
func (c *Coordinator) RegisterRenderer(category location.Category, r Renderer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderers[category] = r
}

func (c *Coordinator) ensurePanels() {
	if c.panels == nil {
		c.panels = make(map[string]*panel)
	}
}

// Key returns the canonical panel key for a category and location.
func Key(category location.Category, locationID string) string {
	return fmt.Sprintf("%s_%s", category, locationID)
}

// Toggle opens the panel for category+locationID, or closes it if it is
// already open.  Opening first closes any other panel on the same location to
// completion, then fetches content; a nil or failed extraction aborts the
// open, discards the container, and surfaces exactly one notification.
// A single mutex serializes all panel operations.
func (c *Coordinator) Toggle(ctx context.Context, category location.Category, locationID string, anchor Anchor) error {
	if !category.Valid() {
		return apperrors.Validation("unknown panel category").WithDetail(string(category))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensurePanels()

	key := Key(category, locationID)

	// Same panel again: close it.
	if p, ok := c.panels[key]; ok {
		c.closeLocked(ctx, p)
		c.recordToggle("close")
		return nil
	}

	// Exclusivity: close sibling panels on the same location first.
	for _, p := range c.panels {
		if p.locationID == locationID {
			c.closeLocked(ctx, p)
		}
	}

	// The close pass above must have freed the key.  A survivor means panel
	// bookkeeping is corrupted; abort without touching unrelated panels.
	if _, ok := c.panels[key]; ok {
		err := apperrors.State("panel key collision").WithDetail(key)
		c.log.Error("panel open aborted", logging.Err(err))
		c.recordToggle("abort")
		return err
	}

	container, err := c.surface.Create(key, anchor)
	if err != nil {
		c.recordToggle("abort")
		return apperrors.Wrap(err, apperrors.CodeInternal, "panel container creation failed").
			WithDetail(key)
	}

	p := &panel{key: key, category: category, locationID: locationID,
		state: StateExpanding, container: container}
	c.panels[key] = p

	data, err := c.cache.Get(ctx, category, locationID)
	if err != nil || data == nil {
		container.Discard()
		delete(c.panels, key)
		c.store.Notify(statestore.Notification{
			Kind:    statestore.NoticeWarning,
			Message: fmt.Sprintf("Details for %s are unavailable", category),
		})
		c.recordToggle("abort")
		if err != nil {
			c.log.Warn("panel content fetch failed",
				logging.String("key", key), logging.Err(err))
			return err
		}
		return apperrors.NotFound("no detail data").WithDetail(key)
	}

	content, err := c.renderLocked(category, data)
	if err != nil {
		container.Discard()
		delete(c.panels, key)
		c.store.Notify(statestore.Notification{
			Kind:    statestore.NoticeWarning,
			Message: fmt.Sprintf("Details for %s could not be displayed", category),
		})
		c.recordToggle("abort")
		return err
	}

	if err := container.Expand(ctx, content); err != nil {
		container.Discard()
		delete(c.panels, key)
		c.recordToggle("abort")
		return apperrors.Wrap(err, apperrors.CodeInternal, "panel expand interrupted").
			WithDetail(key)
	}

	p.state = StateOpen
	c.recordToggle("open")
	return nil
}

// closeLocked collapses and discards a panel.  The panel is removed from the
// registry even when the collapse is interrupted.
func (c *Coordinator) closeLocked(ctx context.Context, p *panel) {
	p.state = StateCollapsing
	if err := p.container.Collapse(ctx); err != nil {
		c.log.Debug("panel collapse interrupted",
			logging.String("key", p.key), logging.Err(err))
	}
	p.container.Discard()
	p.state = StateClosed
	delete(c.panels, p.key)
}

// CloseAll closes every open panel sequentially.  Idempotent.
func (c *Coordinator) CloseAll(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.panels {
		c.closeLocked(ctx, p)
		c.recordToggle("close")
	}
}

// CloseForLocation closes any panel attached to the location, used when a
// result is removed from the map.
func (c *Coordinator) CloseForLocation(ctx context.Context, locationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.panels {
		if p.locationID == locationID {
			c.closeLocked(ctx, p)
			c.recordToggle("close")
		}
	}
}

// Info describes one live panel.
type Info struct {
	Key        string            `json:"key"`
	Category   location.Category `json:"category"`
	LocationID string            `json:"location_id"`
	State      State             `json:"state"`
}

// Open lists the live panels.
func (c *Coordinator) Open() []Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Info, 0, len(c.panels))
	for _, p := range c.panels {
		out = append(out, Info{Key: p.key, Category: p.category,
			LocationID: p.locationID, State: p.state})
	}
	return out
}

func (c *Coordinator) renderLocked(category location.Category, data any) (string, error) {
	if r, ok := c.renderers[category]; ok {
		return r(data)
	}
	return c.fallback(data)
}

func (c *Coordinator) recordToggle(action string) {
	if c.metrics != nil {
		c.metrics.PanelToggles.WithLabelValues(action).Inc()
	}
}

// fallbackRenderer produces a plain representation for categories without a
// dedicated renderer.
func fallbackRenderer(data any) (string, error) {
	return fmt.Sprintf("%v", data), nil
}
