package panel

import (
	"context"
	"sync"
)

// HeadlessSurface is a Surface for deployments without a rendering layer
// (the HTTP API server, tests).  Containers skip animation and simply retain
// their rendered content, which callers can read back through Content.
type HeadlessSurface struct {
	mu         sync.Mutex
	containers map[string]*headlessContainer
}

// NewHeadlessSurface returns an empty headless surface.
func NewHeadlessSurface() *HeadlessSurface {
	return &HeadlessSurface{containers: make(map[string]*headlessContainer)}
}

// Create implements Surface.
func (s *HeadlessSurface) Create(key string, _ Anchor) (Container, error) {
	c := &headlessContainer{surface: s, key: key}
	s.mu.Lock()
	s.containers[key] = c
	s.mu.Unlock()
	return c, nil
}

// Content returns the rendered content of a live panel.
func (s *HeadlessSurface) Content(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.containers[key]
	if !ok {
		return "", false
	}
	return c.content, true
}

func (s *HeadlessSurface) drop(key string) {
	s.mu.Lock()
	delete(s.containers, key)
	s.mu.Unlock()
}

type headlessContainer struct {
	surface *HeadlessSurface
	key     string
	content string
}

func (c *headlessContainer) Expand(_ context.Context, content string) error {
	c.content = content
	return nil
}

func (c *headlessContainer) Collapse(context.Context) error { return nil }

func (c *headlessContainer) Discard() { c.surface.drop(c.key) }
