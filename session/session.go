// Package session is the outer API (spec §5): it wires the catalog,
// binder, rowmap and rcache components the rest of this module builds in
// isolation into the Select/Insert/Update/Delete surface an application
// actually calls, plus the transaction and first-tier-cache lifecycle a
// unit of work owns.
//
// A Factory is built once per configured environment (spec §1's "the
// configured environment id, part of the Cache Entry key"); a Session is
// opened per unit of work and must not be shared between goroutines
// (spec §5).
package session

import (
	"context"
	"sync"

	"github.com/forbearing/sqlmap/binder"
	"github.com/forbearing/sqlmap/catalog"
	"github.com/forbearing/sqlmap/codec"
	"github.com/forbearing/sqlmap/config"
	"github.com/forbearing/sqlmap/driver"
	"github.com/forbearing/sqlmap/errs"
	"github.com/forbearing/sqlmap/rcache"
)

// anyCommand tells runWrite to accept any statement command kind.
const anyCommand catalog.CommandKind = -1

// Factory is the process-wide entry point for one configured environment.
type Factory struct {
	catalog *catalog.Catalog
	codecs  *codec.Registry
	binder  *binder.Binder
	mapping config.Mapping
	environment string

	connect func(ctx context.Context) (driver.Conn, error)

	mu     sync.Mutex
	shared map[string]*rcache.SharedCache
}

// Options configures a Factory. Catalog, Codecs and Connect are required.
type Options struct {
	Catalog *catalog.Catalog
	Codecs  *codec.Registry
	Mapping config.Mapping
	// Environment is the configured environment id named in spec §1's
	// glossary; it participates in the second-tier cache key so two
	// environments sharing a process never see each other's entries.
	Environment string
	// Connect opens a new driver.Conn for each session, e.g.
	// driver/sqlstd.Wrap or driver/sqlstd.Open bound to a DSN.
	Connect func(ctx context.Context) (driver.Conn, error)
}

// Open builds a Factory from opts.
func Open(opts Options) (*Factory, error) {
	if opts.Catalog == nil {
		return nil, errs.New(errs.ErrConfig, "session: nil catalog")
	}
	if opts.Codecs == nil {
		return nil, errs.New(errs.ErrConfig, "session: nil codec registry")
	}
	if opts.Connect == nil {
		return nil, errs.New(errs.ErrConfig, "session: nil connect func")
	}
	return &Factory{
		catalog:     opts.Catalog,
		codecs:      opts.Codecs,
		binder:      binder.New(opts.Codecs),
		mapping:     opts.Mapping,
		environment: opts.Environment,
		connect:     opts.Connect,
		shared:      make(map[string]*rcache.SharedCache),
	}, nil
}

// sharedFor lazily builds namespace's second-tier cache from its
// compiled <cache>/<cache-ref> configuration, or returns nil if the
// namespace declared neither.
func (f *Factory) sharedFor(namespace string) (*rcache.SharedCache, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sc, ok := f.shared[namespace]; ok {
		return sc, nil
	}
	cfg, ok := f.catalog.Cache(namespace)
	if !ok {
		return nil, nil
	}
	sc, err := rcache.NewSharedCache(*cfg)
	if err != nil {
		return nil, err
	}
	f.shared[namespace] = sc
	return sc, nil
}

// Open starts a new session against a fresh connection. Callers must
// Close it when done.
func (f *Factory) Open(ctx context.Context) (*Session, error) {
	conn, err := f.connect(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrExecution, err, "opening connection")
	}
	return &Session{
		factory: f,
		conn:    conn,
		caches:  make(map[string]*rcache.SessionCache),
	}, nil
}

// Session is one unit of work: a connection, an optional open
// transaction, and a per-namespace first-tier cache (spec §4.5, §5).
type Session struct {
	factory *Factory
	conn    driver.Conn
	tx      driver.Transaction

	caches map[string]*rcache.SessionCache
}

// cacheFor lazily creates namespace's first-tier cache, wrapping the
// factory's shared second tier. Returns (nil, nil) when the namespace
// has no second-tier cache at all.
func (s *Session) cacheFor(namespace string) (*rcache.SessionCache, error) {
	if sc, ok := s.caches[namespace]; ok {
		return sc, nil
	}
	shared, err := s.factory.sharedFor(namespace)
	if err != nil {
		return nil, err
	}
	if shared == nil {
		return nil, nil
	}
	scope := rcache.ScopeSession
	if s.factory.mapping.StatementScoped() {
		scope = rcache.ScopeStatement
	}
	sc := rcache.NewSessionCache(shared, scope)
	s.caches[namespace] = sc
	return sc, nil
}

// Begin opens a transaction. A session may have at most one open
// transaction at a time.
func (s *Session) Begin(ctx context.Context) error {
	if s.tx != nil {
		return errs.New(errs.ErrExecution, "session: transaction already open")
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return errs.Wrap(errs.ErrExecution, err, "beginning transaction")
	}
	s.tx = tx
	return nil
}

// Commit commits the open transaction, if any, and flushes every
// namespace's staged cache writes to the second tier (spec §5: cache
// writes become visible to other sessions only on commit).
func (s *Session) Commit() error {
	if s.tx != nil {
		if err := s.tx.Commit(); err != nil {
			return errs.Wrap(errs.ErrExecution, err, "committing transaction")
		}
		s.tx = nil
	}
	for _, sc := range s.caches {
		sc.Commit()
	}
	return nil
}

// Rollback rolls back the open transaction, if any, and discards every
// namespace's staged cache writes.
func (s *Session) Rollback() error {
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil {
			return errs.Wrap(errs.ErrExecution, err, "rolling back transaction")
		}
		s.tx = nil
	}
	for _, sc := range s.caches {
		sc.Rollback()
	}
	return nil
}

// Close releases the underlying connection. It does not resolve a
// still-open transaction — callers must Commit or Rollback explicitly.
func (s *Session) Close() error {
	return s.conn.Close()
}

// afterStatement applies a completed statement's flushCache attribute
// and, for STATEMENT-scoped caches, empties the first tier.
func (s *Session) afterStatement(st *catalog.Statement) {
	if st.FlushCache {
		if sc, err := s.cacheFor(st.Namespace); err == nil && sc != nil {
			sc.FlushNamespace(st.Namespace)
		}
	}
	if sc, ok := s.caches[st.Namespace]; ok {
		sc.EndStatement()
	}
}
