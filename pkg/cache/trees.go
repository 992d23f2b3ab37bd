package cache

import (
	"context"
	"sync"

	"github.com/gofhir/profiler/pkg/tree"
)

// LoadFunc builds the base tree of a canonical URL and version.
type LoadFunc func(ctx context.Context, url, version string) (*tree.ElementNode, error)

// Trees caches base trees by canonical URL and version. Callers always receive
// a deep clone, so edits never reach the cached tree.
type Trees struct {
	lru  *LRU[string, *tree.ElementNode]
	load LoadFunc

	// one load per key at a time
	mu      sync.Mutex
	loading map[string]*sync.Mutex
}

// NewTrees creates a tree cache that fills misses through load.
func NewTrees(capacity int, load LoadFunc) *Trees {
	return &Trees{
		lru:     NewLRU[string, *tree.ElementNode](capacity),
		load:    load,
		loading: make(map[string]*sync.Mutex),
	}
}

// Key returns the cache key of a canonical URL and version.
func Key(url, version string) string {
	if version == "" {
		return url
	}
	return url + "|" + version
}

// Get returns a clone of the cached tree, loading it on a miss. Failed loads
// are not cached.
func (t *Trees) Get(ctx context.Context, url, version string) (*tree.ElementNode, error) {
	key := Key(url, version)
	if root, ok := t.lru.Get(key); ok {
		return tree.Clone(root), nil
	}

	lock := t.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if root, ok := t.lru.Get(key); ok {
		return tree.Clone(root), nil
	}
	root, err := t.load(ctx, url, version)
	if err != nil {
		return nil, err
	}
	t.lru.Set(key, root)
	return tree.Clone(root), nil
}

// Put stores a tree under url and version. The cache keeps its own clone.
func (t *Trees) Put(url, version string, root *tree.ElementNode) {
	t.lru.Set(Key(url, version), tree.Clone(root))
}

// Invalidate drops a cached tree.
func (t *Trees) Invalidate(url, version string) {
	t.lru.Delete(Key(url, version))
}

// Stats returns the cache counters.
func (t *Trees) Stats() Stats {
	return t.lru.Stats()
}

func (t *Trees) keyLock(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.loading[key]
	if !ok {
		l = &sync.Mutex{}
		t.loading[key] = l
	}
	return l
}
