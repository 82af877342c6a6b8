package session

import (
	"github.com/forbearing/sqlmap/driver"
	"github.com/forbearing/sqlmap/errs"
)

// CachedRows is what the result cache actually stores (spec §3's Cache
// Entry "Value = serialized result object list"). Caching the decoded
// Go objects directly isn't expressible through rcache's Fetch[T]/
// Store[T] generics, since the concrete result type is only known at
// runtime via a statement's resultMap — so a hit instead replays the raw
// row data through rowmap.MapRows exactly as a live query would, trading
// one SQL round-trip (the actual cost a Cache Entry exists to avoid) for
// a second mapping pass.
type CachedRows = []map[string]driver.Cell

// captureRows drains cursor and snapshots every row's cells, independent
// of the driver connection and cursor lifetime that produced them.
func captureRows(cursor driver.Cursor) (CachedRows, error) {
	var rows CachedRows
	for cursor.Next() {
		cols, err := cursor.Columns()
		if err != nil {
			return nil, err
		}
		r := make(map[string]driver.Cell, len(cols))
		for _, name := range cols {
			cell, err := cursor.Column(name)
			if err != nil {
				return nil, err
			}
			r[name] = cell
		}
		rows = append(rows, r)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// replayCursor plays a CachedRows snapshot back through the driver.Cursor
// interface, letting a cache hit run through the same rowmap.MapRows path
// a live query would (grounded on rowmap_test.go's fakeCursor).
type replayCursor struct {
	rows []map[string]driver.Cell
	cols []string
	pos  int
}

func replay(rows CachedRows) *replayCursor {
	var cols []string
	if len(rows) > 0 {
		cols = make([]string, 0, len(rows[0]))
		for name := range rows[0] {
			cols = append(cols, name)
		}
	}
	return &replayCursor{rows: rows, cols: cols, pos: -1}
}

func (c *replayCursor) Next() bool {
	c.pos++
	return c.pos < len(c.rows)
}

func (c *replayCursor) Column(nameOrOrdinal any) (driver.Cell, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return driver.Cell{}, errs.New(errs.ErrMapping, "replay cursor: Column called out of row range")
	}
	row := c.rows[c.pos]
	switch k := nameOrOrdinal.(type) {
	case string:
		cell, ok := row[k]
		if !ok {
			return driver.Cell{}, errs.Newf(errs.ErrMapping, "no such column %q", k)
		}
		return cell, nil
	case int:
		if k < 0 || k >= len(c.cols) {
			return driver.Cell{}, errs.Newf(errs.ErrMapping, "column ordinal %d out of range", k)
		}
		return row[c.cols[k]], nil
	default:
		return driver.Cell{}, errs.New(errs.ErrMapping, "column selector must be a string or int")
	}
}

func (c *replayCursor) Columns() ([]string, error) { return c.cols, nil }
func (c *replayCursor) Err() error                 { return nil }
func (c *replayCursor) Close() error               { return nil }
