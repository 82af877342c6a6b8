package session

import (
	"context"

	"github.com/forbearing/sqlmap/driver"
	"github.com/forbearing/sqlmap/errs"
	"github.com/forbearing/sqlmap/logger"
	"github.com/forbearing/sqlmap/rowmap"
)

// mapRows builds a Mapper from this session's factory configuration and
// maps cursor's rows through resultMapName, wiring a nested query runner
// that re-enters this same session (spec §4.9 step 5: nested selects run
// against the session that triggered them, so they see its uncommitted
// writes).
func (s *Session) mapRows(cursor driver.Cursor, resultMapName string) ([]any, error) {
	mapper := rowmap.New(rowmap.Options{
		Catalog:                   s.factory.catalog,
		Codecs:                    s.factory.codecs,
		AutoMapping:               s.factory.mapping.AutoMapping(),
		UnknownColumnFailing:      s.factory.mapping.UnknownColumnFailing(),
		MapUnderscoreToCamelCase:  s.factory.mapping.MapUnderscoreToCamelCase,
		ReturnInstanceForEmptyRow: s.factory.mapping.ReturnInstanceForEmptyRow,
		NestedQuery:               s.nestedQueryRunner(),
		Logger:                    logger.RowMap,
	})
	return mapper.MapRows(cursor, resultMapName)
}

// nestedQueryRunner returns the rowmap.NestedQueryRunner this session
// supplies for <association>/<collection select="...">: it runs the
// named statement to completion against keyValue and reports its mapped
// rows, leaving shapeNestedResult (in package rowmap) to narrow that to
// a single association or a typed collection slice.
func (s *Session) nestedQueryRunner() rowmap.NestedQueryRunner {
	return func(statementQualifiedName string, keyValue any) (any, error) {
		st, err := s.factory.catalog.Statement(statementQualifiedName)
		if err != nil {
			return nil, err
		}
		if len(st.ResultMaps) == 0 {
			return nil, errs.New(errs.ErrConfig, "session: nested query "+statementQualifiedName+" declares no result map")
		}
		text, err := buildSQLText(st, keyValue)
		if err != nil {
			return nil, err
		}
		stmt, cursor, err := s.execute(context.Background(), st, text)
		if err != nil {
			return nil, err
		}
		defer stmt.Close()
		defer cursor.Close()
		return s.mapRows(cursor, st.ResultMaps[0])
	}
}
