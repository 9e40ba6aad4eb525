// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package validity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/segmentio/encoding/json"

	"github.com/pdiddy/citeconv/pkg/types"
)

// memoryCache keeps entries in a map. The JSON file at path is read on
// open and written only by Persist.
type memoryCache struct {
	mu   sync.RWMutex
	path string
	data map[string]bool

	// persistMu spans snapshot to rename so an older snapshot never
	// replaces a newer one.
	persistMu sync.Mutex
}

var _ Cache = (*memoryCache)(nil)

// NewMemory returns an empty transient cache bound to path. An empty path
// makes Persist a no-op.
func NewMemory(path string) Cache {
	return &memoryCache{path: path, data: make(map[string]bool)}
}

func openMemory(path string) (*memoryCache, error) {
	c := &memoryCache{path: path, data: make(map[string]bool)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, path, err)
	}
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c.data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

func (c *memoryCache) Get(_ context.Context, key string) (types.Validity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	if !ok {
		return types.Unresolved, nil
	}
	return types.ValidityOf(v), nil
}

func (c *memoryCache) Put(_ context.Context, key string, valid bool) error {
	c.mu.Lock()
	c.data[key] = valid
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Contains(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.data[key]
	return ok, nil
}

func (c *memoryCache) Keys(_ context.Context) ([]string, error) {
	c.mu.RLock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

// Persist writes the map to a temp file next to path and renames it over.
func (c *memoryCache) Persist(_ context.Context) error {
	if c.path == "" {
		return nil
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.RLock()
	data, err := json.Marshal(c.data)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".validity-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing cache: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (c *memoryCache) Delete(_ context.Context) error {
	c.mu.Lock()
	c.data = make(map[string]bool)
	c.mu.Unlock()
	if c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", c.path, err)
	}
	return nil
}

func (c *memoryCache) Close() error { return nil }

func (c *memoryCache) Backend() types.StorageBackend { return types.BackendMemory }

func (c *memoryCache) Location() string { return c.path }
