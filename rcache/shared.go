// Package rcache is the two-tier result cache (component J): a
// session-local first tier backed by a shared, namespace-invalidatable
// second tier whose eviction policy is a composed decorator chain (spec
// §4.5). The underlying key/value store is named an external dependency
// in spec §1's glossary, but the chain that gives it SESSION/STATEMENT
// scoping, LRU eviction with optional timed expiry and transactional
// staging is core (spec
// §3's component table, 6% of the module's weight) and lives here.
package rcache

import (
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/forbearing/sqlmap/catalog"
)

// SharedCache is the second-tier Cache Entry store: shared across every
// session, synchronized at its outermost layer, with values serialized
// via msgpack so a cached entry is an independent copy rather than a
// reference a caller could mutate after caching it (spec §3's "Value =
// serialized result object list").
type SharedCache struct {
	store Store

	mu            sync.Mutex
	namespaceKeys map[string]map[string]struct{}
}

// NewSharedCache builds a SharedCache per namespace cfg (spec §4.5's
// <cache> element): cfg.Size bounds the store and a positive
// cfg.FlushInterval adds timed expiry. Eviction is always
// least-recently-used; cfg.Eviction is not consulted, so a FIFO
// setting also gets LRU.
func NewSharedCache(cfg catalog.CacheConfig) (*SharedCache, error) {
	size := cfg.Size
	if size <= 0 {
		size = defaultCapacity
	}
	base, err := newLRUStore(size)
	if err != nil {
		return nil, err
	}
	var store Store = base
	if cfg.FlushInterval > 0 {
		store = newTimedStore(store, time.Duration(cfg.FlushInterval)*time.Second)
	}
	store = newSyncStore(store)
	return &SharedCache{store: store, namespaceKeys: make(map[string]map[string]struct{})}, nil
}

// Fetch looks up key's cached value, deserialized as T.
func Fetch[T any](c *SharedCache, key Key) (T, bool, error) {
	var zero T
	raw, ok := c.store.Get(key.String())
	if !ok {
		return zero, false, nil
	}
	var out T
	if err := msgpack.Unmarshal(raw, &out); err != nil {
		return zero, false, err
	}
	return out, true, nil
}

// Store serializes value and installs it under key, recording key as
// belonging to namespace for later InvalidateNamespace calls.
func Store[T any](c *SharedCache, key Key, namespace string, value T) error {
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	c.store.Set(key.String(), raw)
	c.trackNamespace(namespace, key.String())
	return nil
}

func (c *SharedCache) trackNamespace(namespace, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys, ok := c.namespaceKeys[namespace]
	if !ok {
		keys = make(map[string]struct{})
		c.namespaceKeys[namespace] = keys
	}
	keys[key] = struct{}{}
}

// InvalidateNamespace evicts every key written under namespace (spec
// §3's Cache Entry lifecycle: "invalidated for a namespace when any
// flushCache statement in that namespace commits").
func (c *SharedCache) InvalidateNamespace(namespace string) {
	c.mu.Lock()
	keys := c.namespaceKeys[namespace]
	delete(c.namespaceKeys, namespace)
	c.mu.Unlock()

	for key := range keys {
		c.store.Delete(key)
	}
}
