package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/forbearing/sqlmap/catalog"
	"github.com/forbearing/sqlmap/errs"
	"github.com/forbearing/sqlmap/internal/navigator"
)

// resultReader is the optional extra driver.Statement implements to
// report a generated key and affected row count after Execute.
type resultReader interface {
	Result() (lastInsertID, rowsAffected int64, err error)
}

// Insert runs an insert statement against param. If the statement
// declares useGeneratedKeys, the driver-reported last insert id is
// written back into param's key property; if it instead names a uuid or
// xid key type, the key is generated and written into param before
// binding, so it goes out in the bound #{...} placeholder.
func (s *Session) Insert(ctx context.Context, statement string, param any) (int64, error) {
	st, err := s.factory.catalog.Statement(statement)
	if err != nil {
		return 0, err
	}
	if st.Command != catalog.Insert {
		return 0, errs.New(errs.ErrExecution, "session: "+statement+" is not an insert")
	}

	kg := st.KeyGen
	if !kg.UseGeneratedKeys && kg.KeyProperty != "" {
		var pregenerated any
		switch kg.KeyType {
		case "uuid":
			pregenerated = uuid.NewString()
		case "xid":
			pregenerated = xid.New().String()
		}
		if pregenerated != nil {
			if err := navigator.Write(param, kg.KeyProperty, pregenerated); err != nil {
				return 0, errs.Statement(errs.Wrap(errs.ErrBinding, err, "writing pre-generated key"), st.QualifiedName)
			}
		}
	}

	text, err := buildSQLText(st, param)
	if err != nil {
		return 0, err
	}
	lastID, affected, err := s.runAndDrain(ctx, st, text)
	if err != nil {
		return 0, err
	}

	if kg.UseGeneratedKeys && kg.KeyProperty != "" {
		if err := navigator.Write(param, kg.KeyProperty, lastID); err != nil {
			return 0, errs.Statement(errs.Wrap(errs.ErrBinding, err, "writing generated key"), st.QualifiedName)
		}
	}

	s.afterStatement(st)
	return affected, nil
}

// Update runs an update statement against param and reports rows affected.
func (s *Session) Update(ctx context.Context, statement string, param any) (int64, error) {
	return s.runWrite(ctx, statement, param, catalog.Update)
}

// Delete runs a delete statement against param and reports rows affected.
func (s *Session) Delete(ctx context.Context, statement string, param any) (int64, error) {
	return s.runWrite(ctx, statement, param, catalog.Delete)
}

// Exec runs statement against param regardless of its declared command
// kind and reports rows affected, for callers that don't need Insert's
// key-generation handling.
func (s *Session) Exec(ctx context.Context, statement string, param any) (int64, error) {
	return s.runWrite(ctx, statement, param, anyCommand)
}

func (s *Session) runWrite(ctx context.Context, statement string, param any, want catalog.CommandKind) (int64, error) {
	st, err := s.factory.catalog.Statement(statement)
	if err != nil {
		return 0, err
	}
	if want >= 0 && st.Command != want {
		return 0, errs.Newf(errs.ErrExecution, "session: %s is not a %s statement", statement, want)
	}
	text, err := buildSQLText(st, param)
	if err != nil {
		return 0, err
	}
	_, affected, err := s.runAndDrain(ctx, st, text)
	if err != nil {
		return 0, err
	}
	s.afterStatement(st)
	return affected, nil
}

// runAndDrain executes text against st, drains its cursor (a
// non-SELECT statement reports no rows but some drivers still require
// the cursor be exhausted) and reads back the generated key / affected
// count if the statement reports one.
func (s *Session) runAndDrain(ctx context.Context, st *catalog.Statement, text sqlText) (lastID, affected int64, err error) {
	stmt, cursor, err := s.execute(ctx, st, text)
	if err != nil {
		return 0, 0, err
	}
	defer stmt.Close()
	defer cursor.Close()
	for cursor.Next() {
	}
	if err := cursor.Err(); err != nil {
		return 0, 0, errs.Statement(errs.Wrap(errs.ErrExecution, err, "draining cursor"), st.QualifiedName)
	}
	if rr, ok := stmt.(resultReader); ok {
		lastID, affected, err = rr.Result()
		if err != nil {
			return 0, 0, errs.Statement(errs.Wrap(errs.ErrExecution, err, "reading statement result"), st.QualifiedName)
		}
	}
	return lastID, affected, nil
}
