package session

import (
	"context"
	"reflect"

	"github.com/forbearing/sqlmap/catalog"
	"github.com/forbearing/sqlmap/driver"
	"github.com/forbearing/sqlmap/errs"
	"github.com/forbearing/sqlmap/internal/navigator"
	"github.com/forbearing/sqlmap/sqlnode"
)

// sqlText is a statement's final SQL plus everything needed to bind it
// and to key a cache lookup against it.
type sqlText struct {
	sql    string
	params []any // cache-key params, in binding order

	staticParams []catalog.ParameterDescriptor // set for a Static Source
	paramObj     any                           // the (possibly wrapped) param BindStatic navigates
	dynamicRefs  []sqlnode.ParamRef            // set for a Dynamic Source
}

// wrapParam mirrors MyBatis's single-primitive-parameter convention: a
// scalar (or pointer to scalar) parameter object is addressed in mapping
// documents as #{value}, since there is no property to navigate to. A
// struct or map is passed through untouched.
func wrapParam(param any) any {
	if param == nil {
		return param
	}
	v := reflect.ValueOf(param)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return param
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct, reflect.Map:
		return param
	default:
		return map[string]any{"value": param}
	}
}

// buildSQLText evaluates st's source against param (a Dynamic Source is
// re-evaluated fresh every call; a Static Source's SQL is already fixed)
// and collects the cache-key parameter values along the way.
func buildSQLText(st *catalog.Statement, param any) (sqlText, error) {
	wrapped := wrapParam(param)
	switch src := st.Source.(type) {
	case catalog.StaticSource:
		params := make([]any, 0, len(src.Params))
		for _, d := range src.Params {
			if d.Mode == catalog.Out {
				continue
			}
			v, err := navigator.Read(wrapped, d.Path)
			if err != nil {
				return sqlText{}, errs.Statement(errs.Wrap(errs.ErrBinding, err, "reading parameter "+d.Path), st.QualifiedName)
			}
			params = append(params, v)
		}
		return sqlText{sql: src.SQL, params: params, staticParams: src.Params, paramObj: wrapped}, nil
	case catalog.DynamicSource:
		scope := sqlnode.NewScope(wrapped)
		acc := sqlnode.NewAccumulator()
		if err := src.Root.Evaluate(scope, acc); err != nil {
			return sqlText{}, errs.Statement(errs.Wrap(errs.ErrBinding, err, "evaluating dynamic sql"), st.QualifiedName)
		}
		params := make([]any, 0, len(acc.Params))
		for _, ref := range acc.Params {
			params = append(params, ref.Value)
		}
		return sqlText{sql: acc.SQL(), params: params, dynamicRefs: acc.Params}, nil
	default:
		return sqlText{}, errs.New(errs.ErrConfig, "session: unknown sql source")
	}
}

// execute prepares text.sql on the session's connection, binds it per
// text's source kind, applies timeout/fetch-size options and runs it.
// Callers must Close both the returned statement and cursor.
func (s *Session) execute(ctx context.Context, st *catalog.Statement, text sqlText) (driver.Statement, driver.Cursor, error) {
	stmt, err := s.conn.Prepare(ctx, text.sql)
	if err != nil {
		return nil, nil, errs.Statement(errs.Wrap(errs.ErrExecution, err, "preparing statement"), st.QualifiedName)
	}
	if text.dynamicRefs != nil || st.Source.Dynamic() {
		err = s.factory.binder.BindDynamic(stmt, text.dynamicRefs)
	} else {
		err = s.factory.binder.BindStatic(stmt, text.staticParams, text.paramObj)
	}
	if err != nil {
		stmt.Close()
		return nil, nil, errs.Statement(err, st.QualifiedName)
	}

	timeout := s.factory.mapping.DefaultStatementTimeout
	if st.HasTimeout {
		timeout = st.Timeout
	}
	if timeout > 0 {
		stmt.SetTimeout(timeout)
	}
	fetchSize := s.factory.mapping.DefaultFetchSize
	if st.HasFetchSize {
		fetchSize = st.FetchSize
	}
	if fetchSize > 0 {
		stmt.SetFetchSize(fetchSize)
	}

	cursor, err := stmt.Execute(ctx)
	if err != nil {
		stmt.Close()
		return nil, nil, errs.Statement(errs.Wrap(errs.ErrExecution, err, "executing statement"), st.QualifiedName)
	}
	return stmt, cursor, nil
}
