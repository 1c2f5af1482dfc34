package snapshots

import "sync"

// FileCache is a read-through cache over a FileSource, keyed by file
// path. It is an explicit object owned by the caller, so two runs can
// use independent caches and tests can drop one without process-global
// state.
type FileCache struct {
	source *FileSource

	mu     sync.RWMutex
	series map[string]*Series
}

// NewFileCache wraps a source with an empty cache.
func NewFileCache(source *FileSource) *FileCache {
	return &FileCache{
		source: source,
		series: make(map[string]*Series),
	}
}

// Load returns the parsed series for a path, reading the file at most
// once. Loaded series are treated as immutable by all callers.
func (c *FileCache) Load(path string) (*Series, error) {
	c.mu.RLock()
	cached, ok := c.series[path]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	loaded, err := c.source.Load(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.series[path] = loaded
	c.mu.Unlock()
	return loaded, nil
}

// Len returns the number of cached paths.
func (c *FileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.series)
}

// Purge drops every cached series.
func (c *FileCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series = make(map[string]*Series)
}
