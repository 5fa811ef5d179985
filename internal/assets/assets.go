// Package assets resolves and caches the raw bytes of model, material and
// texture files.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned when no source contains the requested file.
var ErrNotFound = errors.New("asset not found")

// Manager reads assets from an ordered list of sources.
type Manager struct {
	sources []fs.FS
	cache   *Cache
	mu      sync.RWMutex
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// AddDir adds a filesystem directory as a source.
// Sources are searched in reverse order (last added = highest priority).
func (m *Manager) AddDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("adding search path %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("adding search path %s: not a directory", dir)
	}
	m.AddFS(os.DirFS(dir))
	return nil
}

// AddFS adds an arbitrary filesystem as a source.
func (m *Manager) AddFS(fsys fs.FS) {
	m.mu.Lock()
	m.sources = append(m.sources, fsys)
	m.mu.Unlock()
}

// Load returns the contents of name. Absolute paths are read directly from
// disk; relative paths are resolved against the sources.
func (m *Manager) Load(name string) ([]byte, error) {
	if data, ok := m.cache.Get(name); ok {
		return data, nil
	}

	if filepath.IsAbs(name) {
		data, err := os.ReadFile(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
			}
			return nil, err
		}
		m.cache.Set(name, data)
		return data, nil
	}

	clean := path.Clean(filepath.ToSlash(name))

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.sources) - 1; i >= 0; i-- {
		data, err := fs.ReadFile(m.sources[i], clean)
		if err == nil {
			m.cache.Set(name, data)
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrInvalid) {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Resolve joins ref onto the directory of base. Material libraries and
// texture maps are referenced relative to the file that names them.
func Resolve(base, ref string) string {
	if ref == "" || filepath.IsAbs(ref) {
		return ref
	}
	return path.Join(path.Dir(filepath.ToSlash(base)), filepath.ToSlash(ref))
}

// Invalidate drops cached data so the next Load reads the sources again.
func (m *Manager) Invalidate() {
	m.cache.Clear()
}

// Close releases all sources.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sources = nil
	m.cache.Clear()
}

// Cache is a simple in-memory cache for loaded assets.
type Cache struct {
	data map[string][]byte
	mu   sync.Mutex

	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
