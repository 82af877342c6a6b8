package rcache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forbearing/sqlmap/catalog"
	"github.com/forbearing/sqlmap/rcache"
)

func keyFor(i int) rcache.Key {
	return rcache.Key{Statement: "t.q", SQL: "SELECT 1", Params: []any{i}}
}

// TestLRUBoundS6 is spec scenario S6: inserting 1,025 distinct keys into
// an LRU cache of capacity 1,024, with a read in between that keeps key
// 0 warm, evicts key 1 (the oldest untouched entry) and nothing else.
func TestLRUBoundS6(t *testing.T) {
	shared, err := rcache.NewSharedCache(catalog.CacheConfig{Namespace: "t", Size: 1024})
	require.NoError(t, err)

	for i := 0; i < 1024; i++ {
		require.NoError(t, rcache.Store(shared, keyFor(i), "t", i))
	}

	// Touch key 0 so it is not the least-recently-used entry.
	_, ok, err := rcache.Fetch[int](shared, keyFor(0))
	require.NoError(t, err)
	require.True(t, ok)

	// The 1,025th distinct key forces one eviction.
	require.NoError(t, rcache.Store(shared, keyFor(1024), "t", 1024))

	_, ok, err = rcache.Fetch[int](shared, keyFor(0))
	require.NoError(t, err)
	require.True(t, ok, "recently touched key 0 must survive")

	_, ok, err = rcache.Fetch[int](shared, keyFor(1))
	require.NoError(t, err)
	require.False(t, ok, "untouched oldest key 1 must be evicted")

	for i := 2; i < 1024; i++ {
		_, ok, err := rcache.Fetch[int](shared, keyFor(i))
		require.NoError(t, err)
		require.True(t, ok, "key %d must survive", i)
	}
	_, ok, err = rcache.Fetch[int](shared, keyFor(1024))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSessionStageCommitVisibleAcrossSessions(t *testing.T) {
	shared, err := rcache.NewSharedCache(catalog.CacheConfig{Namespace: "t"})
	require.NoError(t, err)

	writer := rcache.NewSessionCache(shared, rcache.ScopeSession)
	reader := rcache.NewSessionCache(shared, rcache.ScopeSession)

	key := keyFor(1)
	require.NoError(t, rcache.Stage(writer, key, "t", []string{"row1"}))

	// Visible to the writer's own session immediately, before commit.
	v, ok, err := rcache.Lookup[[]string](writer, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"row1"}, v)

	// Not yet visible to another session.
	_, ok, err = rcache.Lookup[[]string](reader, key)
	require.NoError(t, err)
	require.False(t, ok)

	writer.Commit()

	v, ok, err = rcache.Lookup[[]string](reader, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"row1"}, v)
}

func TestSessionRollbackDiscardsStagedWrites(t *testing.T) {
	shared, err := rcache.NewSharedCache(catalog.CacheConfig{Namespace: "t"})
	require.NoError(t, err)

	sc := rcache.NewSessionCache(shared, rcache.ScopeSession)
	key := keyFor(2)
	require.NoError(t, rcache.Stage(sc, key, "t", 42))
	sc.Rollback()

	_, ok, err := rcache.Fetch[int](shared, key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStatementScopeEmptiesAfterCommit(t *testing.T) {
	shared, err := rcache.NewSharedCache(catalog.CacheConfig{Namespace: "t"})
	require.NoError(t, err)

	sc := rcache.NewSessionCache(shared, rcache.ScopeStatement)
	key := keyFor(3)
	require.NoError(t, rcache.Stage(sc, key, "t", 7))
	sc.Commit()

	// First tier was emptied at statement end; the read falls through to
	// (and refills from) the second tier, which does still have it.
	v, ok, err := rcache.Lookup[int](sc, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7, v)
}

func TestSessionFlushNamespaceDeferredToCommit(t *testing.T) {
	shared, err := rcache.NewSharedCache(catalog.CacheConfig{Namespace: "t"})
	require.NoError(t, err)

	key := keyFor(6)
	require.NoError(t, rcache.Store(shared, key, "t", "stale"))

	sc := rcache.NewSessionCache(shared, rcache.ScopeSession)
	sc.FlushNamespace("t")

	// The second tier is untouched until commit.
	_, ok, err := rcache.Fetch[string](shared, key)
	require.NoError(t, err)
	require.True(t, ok, "shared entry survives until the flush commits")

	sc.Commit()

	_, ok, err = rcache.Fetch[string](shared, key)
	require.NoError(t, err)
	require.False(t, ok, "shared entry is invalidated once the flush commits")
}

func TestSessionFlushNamespaceDiscardedOnRollback(t *testing.T) {
	shared, err := rcache.NewSharedCache(catalog.CacheConfig{Namespace: "t"})
	require.NoError(t, err)

	key := keyFor(7)
	require.NoError(t, rcache.Store(shared, key, "t", "value"))

	sc := rcache.NewSessionCache(shared, rcache.ScopeSession)
	sc.FlushNamespace("t")
	sc.Rollback()

	_, ok, err := rcache.Fetch[string](shared, key)
	require.NoError(t, err)
	require.True(t, ok, "a rolled-back flush never reaches the shared tier")
}

func TestFlushNamespaceInvalidatesSharedEntries(t *testing.T) {
	shared, err := rcache.NewSharedCache(catalog.CacheConfig{Namespace: "t"})
	require.NoError(t, err)

	require.NoError(t, rcache.Store(shared, keyFor(5), "t", "value"))
	shared.InvalidateNamespace("t")

	_, ok, err := rcache.Fetch[string](shared, keyFor(5))
	require.NoError(t, err)
	require.False(t, ok)
}
