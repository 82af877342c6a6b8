// Package errs collects the sentinel error kinds shared by every stage of
// the compiler and runtime: each one is a distinct, wrapped
// github.com/cockroachdb/errors value so callers can errors.Is/errors.As
// through the wrapped cause while still getting a stack trace and
// contextual detail attached at the point of failure.
package errs

import "github.com/cockroachdb/errors"

// Bootstrap-time, fatal error kinds (raised while compiling a catalog).
var (
	ErrConfig                   = errors.New("sqlmap: config error")
	ErrIncompleteElement        = errors.New("sqlmap: incomplete element")
	ErrCyclicInclude            = errors.New("sqlmap: cyclic include")
	ErrCyclicResultMapExtension = errors.New("sqlmap: cyclic resultMap extension")
	ErrUnknownParameterOption   = errors.New("sqlmap: unknown parameter option")
)

// Per-invocation error kinds.
var (
	ErrBinding               = errors.New("sqlmap: binding error")
	ErrExecution             = errors.New("sqlmap: execution error")
	ErrMapping               = errors.New("sqlmap: mapping error")
	ErrMalformedPath         = errors.New("sqlmap: malformed path")
	ErrUnindexableNode       = errors.New("sqlmap: unindexable node")
	ErrNoDefaultConstructor  = errors.New("sqlmap: no default constructor")
	ErrAmbiguousAccessor     = errors.New("sqlmap: ambiguous accessor")
	ErrNullForEachCollection = errors.New("sqlmap: foreach collection is nil")
)

// Statement attaches the qualified statement name implicated by err.
func Statement(err error, qualifiedName string) error {
	return errors.WithDetail(err, "statement: "+qualifiedName)
}

// SQL attaches the final SQL text (after dynamic evaluation) implicated by err.
func SQL(err error, sql string) error {
	return errors.WithDetail(err, "sql: "+sql)
}

// Path attaches the property path or column name implicated by err.
func Path(err error, path string) error {
	return errors.WithDetail(err, "path: "+path)
}

// Wrap wraps cause with kind, recording msg as the human-readable detail.
func Wrap(kind error, cause error, msg string) error {
	return errors.WithDetail(errors.Mark(errors.Wrap(cause, msg), kind), msg)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind error, cause error, format string, args ...any) error {
	return errors.WithDetail(errors.Mark(errors.Wrapf(cause, format, args...), kind), errors.Wrapf(cause, format, args...).Error())
}

// New creates a new error of the given kind carrying msg as detail.
func New(kind error, msg string) error {
	return errors.WithDetail(errors.Mark(errors.Newf("%s: %s", kind, msg), kind), msg)
}

// Newf is New with a formatted message.
func Newf(kind error, format string, args ...any) error {
	return New(kind, errors.Newf(format, args...).Error())
}
