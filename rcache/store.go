package rcache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	gocache "github.com/patrickmn/go-cache"
)

// Store is the opaque byte-keyed contract every decorator in the
// second-tier chain implements (spec §4.5's "storage → LRU → FIFO/timed
// (optional) → synchronized wrapper").
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string)
}

// lruStore is the chain's storage+LRU layer in one: hashicorp/golang-lru's
// Cache is itself a bounded, access-ordered map (Get moves an entry to
// the front of its internal list, eviction drops the back), which is
// exactly spec §4.5's "bounded access-ordered structure... eviction
// chooses the least-recently-read entry; ties broken by insertion
// order" — so there is no separate bare-map "storage" layer beneath it
// to hand-roll; the library already owns that primitive.
type lruStore struct {
	cache *lru.Cache[string, []byte]
}

// defaultCapacity is spec §4.5's default LRU capacity.
const defaultCapacity = 1024

func newLRUStore(capacity int) (*lruStore, error) {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	c, err := lru.New[string, []byte](capacity)
	if err != nil {
		return nil, err
	}
	return &lruStore{cache: c}, nil
}

func (s *lruStore) Get(key string) ([]byte, bool) { return s.cache.Get(key) }
func (s *lruStore) Set(key string, value []byte)  { s.cache.Add(key, value) }
func (s *lruStore) Delete(key string)             { s.cache.Remove(key) }

// timedStore is the optional FIFO/timed decorator: entries expire after
// flushInterval regardless of access, using patrickmn/go-cache purely as
// the expiry clock (its OnEvicted callback deletes the matching entry
// from the wrapped inner store once its TTL elapses) rather than as a
// second, competing value store.
type timedStore struct {
	inner  Store
	expiry *gocache.Cache
}

func newTimedStore(inner Store, flushInterval time.Duration) *timedStore {
	expiry := gocache.New(flushInterval, flushInterval/2)
	ts := &timedStore{inner: inner, expiry: expiry}
	expiry.OnEvicted(func(key string, _ any) {
		inner.Delete(key)
	})
	return ts
}

func (t *timedStore) Get(key string) ([]byte, bool) {
	if _, alive := t.expiry.Get(key); !alive {
		return nil, false
	}
	return t.inner.Get(key)
}

func (t *timedStore) Set(key string, value []byte) {
	t.inner.Set(key, value)
	t.expiry.SetDefault(key, struct{}{})
}

func (t *timedStore) Delete(key string) {
	t.inner.Delete(key)
	t.expiry.Delete(key)
}

// syncStore is the chain's outermost layer: reads take a shared lock,
// writes an exclusive one (spec §5's shared-state rule for the
// second-tier cache).
type syncStore struct {
	mu    sync.RWMutex
	inner Store
}

func newSyncStore(inner Store) *syncStore { return &syncStore{inner: inner} }

func (s *syncStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.Get(key)
}

func (s *syncStore) Set(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.Set(key, value)
}

func (s *syncStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.Delete(key)
}
