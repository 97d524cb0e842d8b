// Package cache holds the routing-state accelerator: a best-effort mapping
// from conversation id to routing mode. It is not a history store; the
// dialogue log stays authoritative for what was said. A lost entry reads as
// domain.ModeUnset and the router falls back to responder behavior.
package cache

import (
	"context"
	"sync"

	"relaybot/internal/domain"
)

// ModeCache is the in-process implementation of domain.ModeCache.
type ModeCache struct {
	mu    sync.RWMutex
	modes map[string]domain.Mode
}

func New() *ModeCache {
	return &ModeCache{modes: make(map[string]domain.Mode)}
}

// Get returns the mode for convID, or domain.ModeUnset when no mode has been
// chosen yet. Unset is reported as-is, never coerced to a named mode here.
func (c *ModeCache) Get(ctx context.Context, convID string) (domain.Mode, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mode, ok := c.modes[convID]
	if !ok {
		return domain.ModeUnset, nil
	}
	return mode, nil
}

func (c *ModeCache) Set(ctx context.Context, convID string, mode domain.Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mode == domain.ModeUnset {
		delete(c.modes, convID)
		return nil
	}
	c.modes[convID] = mode
	return nil
}

// Len reports how many conversations have an assigned mode.
func (c *ModeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.modes)
}
