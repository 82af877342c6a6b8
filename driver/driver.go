// Package driver declares the contract the core consumes from the
// underlying database access layer (spec §6 "Driver interface
// (consumed)"). The driver, the connection pool, and the transaction
// manager are external collaborators per spec §1 — this package only
// states the shape; driver/sqlstd supplies the one concrete
// database/sql-backed implementation this module ships.
package driver

import "context"

// Conn prepares statements and opens transactions against one database
// connection.
type Conn interface {
	Prepare(ctx context.Context, sql string) (Statement, error)
	Begin(ctx context.Context) (Transaction, error)
	Close() error
}

// Statement is a prepared SQL statement awaiting parameter bindings.
type Statement interface {
	// Bind attaches value at the 1-based ordinal, under the given
	// database type hint (empty if unknown).
	Bind(ordinal int, value any, dbType string) error
	// RegisterOutput marks the 1-based ordinal as an OUT (or INOUT,
	// after a preceding Bind) parameter.
	RegisterOutput(ordinal int, dbType string) error
	Execute(ctx context.Context) (Cursor, error)
	Close() error
	SetTimeout(seconds int)
	SetFetchSize(n int)
}

// Cursor iterates a statement's result rows.
type Cursor interface {
	Next() bool
	// Column returns the cell at the given column name (string) or
	// 0-based ordinal (int).
	Column(nameOrOrdinal any) (Cell, error)
	// Columns returns the names of the columns present in the current
	// row, in driver-reported order (spec §4.9 step 1).
	Columns() ([]string, error)
	Err() error
	Close() error
}

// Cell is one result column's raw value plus its driver-declared
// database type, consumed by a codec's Decode.
type Cell struct {
	Value  any
	DBType string
}

// Transaction commits or rolls back the writes issued on its Conn since
// it was opened.
type Transaction interface {
	Commit() error
	Rollback() error
}
