// Package sqlstd is the one concrete driver.Conn/driver.Statement/
// driver.Cursor implementation this module ships: a thin adapter over
// the standard library's database/sql, registered against
// github.com/go-sql-driver/mysql and modernc.org/sqlite so the catalog,
// binder, and result mapper can be exercised end-to-end without a
// hand-rolled fake (SPEC_FULL.md DOMAIN STACK).
package sqlstd

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/forbearing/sqlmap/driver"
	"github.com/forbearing/sqlmap/errs"
)

func contextWithTimeout(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

// Conn adapts a *sql.DB to driver.Conn.
type Conn struct {
	db *sql.DB
}

// Open opens a database/sql connection pool under driverName ("mysql" or
// "sqlite") and wraps it as a driver.Conn.
func Open(driverName, dsn string) (*Conn, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrExecution, err, "opening connection")
	}
	return &Conn{db: db}, nil
}

// Wrap adapts an already-open *sql.DB (e.g. one built against
// github.com/DATA-DOG/go-sqlmock in tests).
func Wrap(db *sql.DB) *Conn { return &Conn{db: db} }

func (c *Conn) Prepare(ctx context.Context, query string) (driver.Statement, error) {
	stmt, err := c.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, errs.Wrap(errs.ErrExecution, err, "preparing statement")
	}
	return &Statement{
		stmt:       stmt,
		returnRows: looksLikeQuery(query),
		args:       make(map[int]any),
	}, nil
}

func (c *Conn) Begin(ctx context.Context) (driver.Transaction, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrExecution, err, "beginning transaction")
	}
	return &Transaction{tx: tx}, nil
}

func (c *Conn) Close() error { return c.db.Close() }

func looksLikeQuery(sqlText string) bool {
	trimmed := strings.TrimSpace(sqlText)
	upper := strings.ToUpper(trimmed)
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH") || strings.HasPrefix(upper, "SHOW")
}

// Statement adapts a *sql.Stmt to driver.Statement.
type Statement struct {
	stmt       *sql.Stmt
	returnRows bool
	args       map[int]any
	outs       map[int]*any
	maxOrdinal int
	timeout    int
	fetchSize  int

	lastResult sql.Result
}

func (s *Statement) Bind(ordinal int, value any, _ string) error {
	s.args[ordinal] = value
	if ordinal > s.maxOrdinal {
		s.maxOrdinal = ordinal
	}
	return nil
}

func (s *Statement) RegisterOutput(ordinal int, _ string) error {
	if s.outs == nil {
		s.outs = make(map[int]*any)
	}
	dest := new(any)
	prior, bound := s.args[ordinal]
	if bound {
		*dest = prior
	}
	s.outs[ordinal] = dest
	s.args[ordinal] = sql.Out{Dest: dest, In: bound}
	if ordinal > s.maxOrdinal {
		s.maxOrdinal = ordinal
	}
	return nil
}

func (s *Statement) orderedArgs() []any {
	out := make([]any, s.maxOrdinal)
	for i := 1; i <= s.maxOrdinal; i++ {
		out[i-1] = s.args[i]
	}
	return out
}

func (s *Statement) Execute(ctx context.Context) (driver.Cursor, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = contextWithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if s.returnRows {
		rows, err := s.stmt.QueryContext(ctx, s.orderedArgs()...)
		if err != nil {
			return nil, errs.Wrap(errs.ErrExecution, err, "executing query")
		}
		return &Cursor{rows: rows}, nil
	}
	result, err := s.stmt.ExecContext(ctx, s.orderedArgs()...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrExecution, err, "executing statement")
	}
	s.lastResult = result
	return &Cursor{}, nil
}

// Result returns the last non-query Execute's generated key and affected
// row count, for the key generator / rows-affected reporting the outer
// session façade surfaces.
func (s *Statement) Result() (lastInsertID, rowsAffected int64, err error) {
	if s.lastResult == nil {
		return 0, 0, errs.New(errs.ErrExecution, "no result available")
	}
	id, err := s.lastResult.LastInsertId()
	if err != nil {
		id = 0
	}
	n, err := s.lastResult.RowsAffected()
	if err != nil {
		n = 0
	}
	return id, n, nil
}

func (s *Statement) Close() error            { return s.stmt.Close() }
func (s *Statement) SetTimeout(seconds int)  { s.timeout = seconds }
func (s *Statement) SetFetchSize(n int)      { s.fetchSize = n }

// Cursor adapts *sql.Rows to driver.Cursor. A non-query Execute produces
// a zero-value Cursor whose Next always reports false.
type Cursor struct {
	rows    *sql.Rows
	cols    []string
	current []any
}

func (c *Cursor) Next() bool {
	if c.rows == nil {
		return false
	}
	if !c.rows.Next() {
		return false
	}
	if c.cols == nil {
		cols, err := c.rows.Columns()
		if err == nil {
			c.cols = cols
		}
	}
	dest := make([]any, len(c.cols))
	ptrs := make([]any, len(c.cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		c.current = nil
		return false
	}
	c.current = dest
	return true
}

func (c *Cursor) Columns() ([]string, error) {
	if c.rows == nil {
		return nil, nil
	}
	if c.cols == nil {
		cols, err := c.rows.Columns()
		if err != nil {
			return nil, errs.Wrap(errs.ErrExecution, err, "reading column names")
		}
		c.cols = cols
	}
	return c.cols, nil
}

func (c *Cursor) Column(nameOrOrdinal any) (driver.Cell, error) {
	idx := -1
	switch v := nameOrOrdinal.(type) {
	case int:
		idx = v
	case string:
		for i, name := range c.cols {
			if name == v {
				idx = i
				break
			}
		}
	}
	if idx < 0 || idx >= len(c.current) {
		return driver.Cell{}, errs.Newf(errs.ErrMapping, "no such column %v", nameOrOrdinal)
	}
	return driver.Cell{Value: c.current[idx]}, nil
}

func (c *Cursor) Err() error {
	if c.rows == nil {
		return nil
	}
	return c.rows.Err()
}

func (c *Cursor) Close() error {
	if c.rows == nil {
		return nil
	}
	return c.rows.Close()
}

// Transaction adapts *sql.Tx to driver.Transaction.
type Transaction struct{ tx *sql.Tx }

func (t *Transaction) Commit() error   { return t.tx.Commit() }
func (t *Transaction) Rollback() error { return t.tx.Rollback() }
