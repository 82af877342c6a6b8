package session

import (
	"context"
	"reflect"

	"github.com/forbearing/sqlmap/catalog"
	"github.com/forbearing/sqlmap/errs"
	"github.com/forbearing/sqlmap/rcache"
)

// RowBounds applies an in-memory offset/limit over a select's
// already-mapped rows, the way a real row-bounds feature actually works:
// it skips and truncates after the full result set is fetched and
// mapped, not via a SQL LIMIT/OFFSET clause.
type RowBounds struct {
	Offset int
	Limit  int
}

func (rb RowBounds) empty() bool { return rb == (RowBounds{}) }

// Select runs statement against param and decodes every row into dest,
// which must be a non-nil pointer to a slice of pointer-to-struct (e.g.
// *[]*Person). At most one RowBounds may be given.
func (s *Session) Select(ctx context.Context, statement string, param any, dest any, bounds ...RowBounds) error {
	if len(bounds) > 1 {
		return errs.New(errs.ErrExecution, "session: at most one RowBounds may be given")
	}
	var rb RowBounds
	if len(bounds) == 1 {
		rb = bounds[0]
	}

	st, err := s.factory.catalog.Statement(statement)
	if err != nil {
		return err
	}
	if st.Command != catalog.Select {
		return errs.New(errs.ErrExecution, "session: "+statement+" is not a select")
	}
	if len(st.ResultMaps) == 0 {
		return errs.New(errs.ErrConfig, "session: "+statement+" declares no result map")
	}
	resultMapName := st.ResultMaps[0]

	if !rb.empty() && s.factory.mapping.SafeRowBoundsEnabled {
		rm, err := s.factory.catalog.ResultMap(resultMapName)
		if err != nil {
			return err
		}
		if hasNested(rm) {
			return errs.New(errs.ErrExecution, "session: row bounds against a result map with nested associations/collections is unsafe")
		}
	}

	text, err := buildSQLText(st, param)
	if err != nil {
		return err
	}

	key := rcache.Key{
		Statement:   st.QualifiedName,
		SQL:         text.sql,
		Params:      text.params,
		Environment: s.factory.environment,
	}
	if rb.Offset != 0 {
		key.Offset, key.HasOffset = rb.Offset, true
	}
	if rb.Limit != 0 {
		key.Limit, key.HasLimit = rb.Limit, true
	}

	var sc *rcache.SessionCache
	if st.UseCache && s.factory.mapping.CacheEnabled {
		sc, err = s.cacheFor(st.Namespace)
		if err != nil {
			return err
		}
	}

	var rows CachedRows
	var fromCache bool
	if sc != nil {
		rows, fromCache, err = rcache.Lookup[CachedRows](sc, key)
		if err != nil {
			return err
		}
	}

	if !fromCache {
		stmt, cursor, err := s.execute(ctx, st, text)
		if err != nil {
			return err
		}
		rows, err = captureRows(cursor)
		cursor.Close()
		stmt.Close()
		if err != nil {
			return err
		}
		if sc != nil {
			if err := rcache.Stage(sc, key, st.Namespace, rows); err != nil {
				return err
			}
		}
	}

	mapped, err := s.mapRows(replay(rows), resultMapName)
	s.afterStatement(st)
	if err != nil {
		return err
	}
	mapped = applyRowBounds(mapped, rb)
	return assignResults(dest, mapped)
}

// SelectOne runs statement and decodes exactly one row into dest, which
// must be a non-nil pointer to pointer-to-struct (e.g. **Person). It
// fails if statement returns zero or more than one row.
func (s *Session) SelectOne(ctx context.Context, statement string, param any, dest any) error {
	destType := reflect.TypeOf(dest)
	if destType == nil || destType.Kind() != reflect.Pointer {
		return errs.New(errs.ErrMapping, "session: SelectOne dest must be a pointer")
	}
	sliceType := reflect.SliceOf(destType.Elem())
	slicePtr := reflect.New(sliceType)
	if err := s.Select(ctx, statement, param, slicePtr.Interface()); err != nil {
		return err
	}
	results := slicePtr.Elem()
	switch results.Len() {
	case 0:
		return errs.New(errs.ErrMapping, "session: "+statement+" returned no rows")
	case 1:
		reflect.ValueOf(dest).Elem().Set(results.Index(0))
		return nil
	default:
		return errs.Newf(errs.ErrMapping, "session: %s returned %d rows, expected exactly one", statement, results.Len())
	}
}

// hasNested reports whether rm declares any <association>/<collection>
// mapping, nested or nested-query, that a client-side RowBounds offset
// could incorrectly apply against partial joined rows.
func hasNested(rm *catalog.ResultMap) bool {
	for _, mp := range rm.Mappings {
		if mp.Nested != nil || mp.NestedQuery != nil {
			return true
		}
	}
	return false
}

// applyRowBounds skips and truncates an already-mapped result slice.
func applyRowBounds(results []any, rb RowBounds) []any {
	if rb.empty() {
		return results
	}
	start := rb.Offset
	if start > len(results) {
		start = len(results)
	}
	results = results[start:]
	if rb.Limit > 0 && rb.Limit < len(results) {
		results = results[:rb.Limit]
	}
	return results
}

// assignResults copies results (each element a *T from rowmap.MapRows)
// into dest, a pointer to a slice of that same concrete type.
func assignResults(dest any, results []any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return errs.New(errs.ErrMapping, "session: dest must be a non-nil pointer to a slice")
	}
	sliceVal := dv.Elem()
	if sliceVal.Kind() != reflect.Slice {
		return errs.New(errs.ErrMapping, "session: dest must point to a slice")
	}
	elemType := sliceVal.Type().Elem()
	out := reflect.MakeSlice(sliceVal.Type(), 0, len(results))
	for _, r := range results {
		rv := reflect.ValueOf(r)
		switch {
		case rv.Type().AssignableTo(elemType):
		case rv.Type().ConvertibleTo(elemType):
			rv = rv.Convert(elemType)
		default:
			return errs.Newf(errs.ErrMapping, "session: mapped row type %s is not assignable to %s", rv.Type(), elemType)
		}
		out = reflect.Append(out, rv)
	}
	sliceVal.Set(out)
	return nil
}
