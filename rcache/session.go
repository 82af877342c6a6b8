package rcache

import "github.com/vmihailenco/msgpack/v5"

// Scope is the first-tier cache's lifetime (spec §4.5).
type Scope int

const (
	// ScopeSession keeps entries for the session's whole lifetime.
	ScopeSession Scope = iota
	// ScopeStatement empties the first tier at the end of each
	// statement.
	ScopeStatement
)

type stagedEntry struct {
	namespace string
	raw       []byte
}

// SessionCache is the per-session first tier plus its transactional
// staging buffer. It is single-threaded by construction (spec §5: "a
// session must not be shared between threads"), so it holds no locks of
// its own.
type SessionCache struct {
	scope  Scope
	shared *SharedCache

	local        map[string]any
	staged       map[string]stagedEntry
	pendingFlush map[string]struct{}
}

// NewSessionCache builds a first-tier cache backed by shared.
func NewSessionCache(shared *SharedCache, scope Scope) *SessionCache {
	return &SessionCache{
		scope:        scope,
		shared:       shared,
		local:        make(map[string]any),
		staged:       make(map[string]stagedEntry),
		pendingFlush: make(map[string]struct{}),
	}
}

// Lookup checks the first tier, then the second tier on a miss, filling
// the first tier when the second tier had it (spec §4.5: "Reads check
// first tier, then second tier... misses execute and fill both" — the
// caller fills the second tier itself via Stage+Commit on an actual
// execute).
func Lookup[T any](sc *SessionCache, key Key) (T, bool, error) {
	var zero T
	ks := key.String()
	if v, ok := sc.local[ks]; ok {
		typed, ok := v.(T)
		if !ok {
			return zero, false, nil
		}
		return typed, true, nil
	}
	val, ok, err := Fetch[T](sc.shared, key)
	if err != nil {
		return zero, false, err
	}
	if ok {
		sc.local[ks] = val
	}
	return val, ok, nil
}

// Stage records value under key for this session's own immediate
// visibility, and buffers it (namespace-tagged) for the second tier
// until Commit (spec §5: "cache writes become visible to that session
// immediately on write but to other sessions only on commit").
func Stage[T any](sc *SessionCache, key Key, namespace string, value T) error {
	ks := key.String()
	sc.local[ks] = value
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	sc.staged[ks] = stagedEntry{namespace: namespace, raw: raw}
	return nil
}

// Commit flushes the staging buffer to the second tier under an
// exclusive lock (spec §4.5) and, per STATEMENT scope, empties the
// first tier.
func (sc *SessionCache) Commit() {
	for key, entry := range sc.staged {
		sc.shared.store.Set(key, entry.raw)
		sc.shared.trackNamespace(entry.namespace, key)
	}
	sc.staged = make(map[string]stagedEntry)
	for namespace := range sc.pendingFlush {
		sc.shared.InvalidateNamespace(namespace)
	}
	sc.pendingFlush = make(map[string]struct{})
	sc.endStatementIfScoped()
}

// Rollback discards the staging buffer and any pending namespace
// flushes without touching the second tier.
func (sc *SessionCache) Rollback() {
	sc.staged = make(map[string]stagedEntry)
	sc.pendingFlush = make(map[string]struct{})
	sc.endStatementIfScoped()
}

// FlushNamespace records namespace for invalidation on Commit (spec §3's
// Cache Entry lifecycle: "invalidated for a namespace when any
// flushCache statement in that namespace commits") and, conservatively,
// clears this session's entire first tier immediately rather than
// tracking per-key namespaces locally — a session that just issued a
// flushCache statement should not keep serving any of its own possibly
// related cached reads even before it commits.
func (sc *SessionCache) FlushNamespace(namespace string) {
	sc.pendingFlush[namespace] = struct{}{}
	sc.local = make(map[string]any)
}

func (sc *SessionCache) endStatementIfScoped() {
	if sc.scope == ScopeStatement {
		sc.local = make(map[string]any)
	}
}

// EndStatement is called by the session façade after each statement
// completes, for STATEMENT-scoped caches that did not go through
// Commit/Rollback (e.g. a cached read with no write to stage).
func (sc *SessionCache) EndStatement() {
	sc.endStatementIfScoped()
}
