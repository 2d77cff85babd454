package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Collection keeps one JSON array per project under "<prefix>/<project>"
// and caches it in memory after the first load.
//
// Save persists before it swaps the cache, so a failed write leaves the
// cached state untouched. Callers serialize writes per project.
type Collection[T any] struct {
	store  Store
	prefix string

	mu    sync.RWMutex
	cache map[string][]T
	group singleflight.Group
}

func NewCollection[T any](store Store, prefix string) *Collection[T] {
	return &Collection[T]{
		store:  store,
		prefix: prefix,
		cache:  make(map[string][]T),
	}
}

// Key returns the store key for a project.
func (c *Collection[T]) Key(project string) string {
	return c.prefix + "/" + project
}

// Load returns a copy of the project's records. Concurrent first loads of
// the same project share one store read.
func (c *Collection[T]) Load(ctx context.Context, project string) ([]T, error) {
	c.mu.RLock()
	items, ok := c.cache[project]
	c.mu.RUnlock()
	if ok {
		return slices.Clone(items), nil
	}

	v, err, _ := c.group.Do(project, func() (any, error) {
		raw, found, err := c.store.Get(ctx, c.Key(project))
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", c.Key(project), err)
		}
		var loaded []T
		if found && len(raw) > 0 {
			if err := json.Unmarshal(raw, &loaded); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", c.Key(project), err)
			}
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if cached, ok := c.cache[project]; ok {
			return cached, nil
		}
		c.cache[project] = loaded
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]T)), nil
}

// Save persists items as the project's full collection, then caches them.
func (c *Collection[T]) Save(ctx context.Context, project string, items []T) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", c.Key(project), err)
	}
	if len(items) == 0 {
		err = c.store.Remove(ctx, c.Key(project))
	} else {
		err = c.store.Set(ctx, c.Key(project), raw)
	}
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", c.Key(project), err)
	}
	var cached []T
	if len(items) > 0 {
		cached = slices.Clone(items)
	}
	c.mu.Lock()
	c.cache[project] = cached
	c.mu.Unlock()
	return nil
}

// Forget drops the cached copy so the next Load reads the store again.
func (c *Collection[T]) Forget(project string) {
	c.mu.Lock()
	delete(c.cache, project)
	c.mu.Unlock()
}
