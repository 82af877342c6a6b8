// Package rowmap is the result mapper (component I): it walks a
// statement's result rows, applies codecs, constructs target objects via
// the type metamodel, and populates nested mappings per the compiled
// result map (spec §4.9).
package rowmap

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/stoewer/go-strcase"
	"go.uber.org/zap"

	"github.com/forbearing/sqlmap/catalog"
	"github.com/forbearing/sqlmap/codec"
	"github.com/forbearing/sqlmap/driver"
	"github.com/forbearing/sqlmap/errs"
	"github.com/forbearing/sqlmap/internal/navigator"
	"github.com/forbearing/sqlmap/internal/pathexpr"
	"github.com/forbearing/sqlmap/internal/reflectmeta"
)

// NestedQueryRunner executes a nested sub-select (spec §4.9 step 5),
// keyed by the owning row's column value, and returns its mapped result.
// The session façade supplies the implementation; it is the only thing
// that knows how to open a fresh statement and run it to completion.
type NestedQueryRunner func(statementQualifiedName string, keyValue any) (any, error)

// Options configures a Mapper. Catalog and Codecs are required; New
// applies no defaults, so every other field keeps its zero value when
// unset (see AutoMapping).
type Options struct {
	Catalog *catalog.Catalog
	Codecs  *codec.Registry

	// AutoMapping is the statement-level default auto-mapping behavior,
	// used for result maps that did not declare their own autoMapping
	// attribute. The zero value is AutoMapNone; the session façade passes
	// config.Mapping.AutoMapping(), which is PARTIAL unless configured.
	AutoMapping catalog.AutoMappingBehavior
	// UnknownColumnFailing mirrors autoMappingUnknownColumnBehavior=
	// FAILING: an auto-mapping pass that finds no writable property for
	// a column is an error instead of being silently ignored.
	UnknownColumnFailing bool
	// MapUnderscoreToCamelCase enables matching e.g. column user_name to
	// property UserName during auto-mapping.
	MapUnderscoreToCamelCase bool
	// ReturnInstanceForEmptyRow is the statement-level default for
	// result maps that did not set their own flag.
	ReturnInstanceForEmptyRow bool

	// NestedQuery resolves <association>/<collection> select= sub-
	// queries. Nil disables nested queries; mapping a result map that
	// declares one without a runner configured is an error.
	NestedQuery NestedQueryRunner

	Logger *zap.SugaredLogger
}

// Mapper maps a driver.Cursor's rows into Go values per a compiled
// catalog.ResultMap.
type Mapper struct {
	opts Options
}

// New builds a Mapper. opts.Catalog and opts.Codecs must be non-nil.
func New(opts Options) *Mapper {
	return &Mapper{opts: opts}
}

type row map[string]driver.Cell

// state is shared across every row of one MapRows call: it holds the
// identity cache that lets successive child rows attach to the same
// parent object instead of constructing a duplicate (spec §4.9 step 4).
type state struct {
	identities map[string]any
}

// MapRows consumes cursor to completion and returns the distinct
// top-level objects produced by resultMapQualifiedName, in first-seen
// order.
func (m *Mapper) MapRows(cursor driver.Cursor, resultMapQualifiedName string) ([]any, error) {
	cols, err := cursor.Columns()
	if err != nil {
		return nil, err
	}
	rm, err := m.opts.Catalog.ResultMap(resultMapQualifiedName)
	if err != nil {
		return nil, err
	}

	st := &state{identities: make(map[string]any)}
	var results []any
	seenTop := make(map[string]bool)
	for cursor.Next() {
		r, err := readRow(cursor, cols)
		if err != nil {
			return nil, err
		}
		obj, identityKey, isNew, err := m.mapRow(r, rm, "", st, "")
		if err != nil {
			return nil, err
		}
		if obj == nil {
			continue
		}
		if identityKey == "" {
			// No id-flagged columns: every row is a distinct object.
			results = append(results, obj)
			continue
		}
		if isNew && !seenTop[identityKey] {
			seenTop[identityKey] = true
			results = append(results, obj)
		}
	}
	if err := cursor.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func readRow(cursor driver.Cursor, cols []string) (row, error) {
	r := make(row, len(cols))
	for _, name := range cols {
		cell, err := cursor.Column(name)
		if err != nil {
			return nil, err
		}
		r[name] = cell
	}
	return r, nil
}

// mapRow maps one row against rm (after resolving any discriminator
// chain), scoped under columnPrefix and parentKey (the caller's own
// identity key, empty at the top level). It returns the mapped object
// (nil under the null-object policy), the identity key used for
// deduplication (empty if rm declares no id-flagged columns), and
// whether this call constructed a new object versus reusing one found
// in st.identities.
func (m *Mapper) mapRow(r row, rm *catalog.ResultMap, columnPrefix string, st *state, parentKey string) (any, string, bool, error) {
	effective, err := m.resolveDiscriminator(r, rm, columnPrefix)
	if err != nil {
		return nil, "", false, err
	}

	leaf := leafMappings(effective.Mappings)
	idCols, hasID := idColumns(leaf, columnPrefix)

	var key string
	if hasID {
		key = parentKey + ">" + effective.QualifiedName + "|" + strings.Join(idCols.values(r), "\x1f")
		if existing, ok := st.identities[key]; ok {
			if err := m.mapNested(r, effective, columnPrefix, st, key, existing); err != nil {
				return nil, key, false, err
			}
			return existing, key, false, nil
		}
	}

	if allNull(r, leaf, columnPrefix) && !effective.ReturnInstanceForEmptyRow {
		return nil, key, false, nil
	}

	objPtr := reflect.New(effective.Type)
	if err := m.setLeafMappings(objPtr, r, leaf, columnPrefix); err != nil {
		return nil, key, false, err
	}
	if err := m.autoMap(objPtr, r, effective, columnPrefix); err != nil {
		return nil, key, false, err
	}

	obj := objPtr.Interface()
	if hasID {
		st.identities[key] = obj
	}
	if err := m.mapNested(r, effective, columnPrefix, st, key, obj); err != nil {
		return nil, key, false, err
	}
	if err := m.mapNestedQueries(r, effective, columnPrefix, objPtr); err != nil {
		return nil, key, false, err
	}
	return obj, key, true, nil
}

func (m *Mapper) resolveDiscriminator(r row, rm *catalog.ResultMap, columnPrefix string) (*catalog.ResultMap, error) {
	effective := rm
	seen := map[string]bool{}
	for effective.Discriminator != nil {
		if seen[effective.QualifiedName] {
			return nil, errs.New(errs.ErrMapping, "cyclic discriminator chain at "+effective.QualifiedName)
		}
		seen[effective.QualifiedName] = true

		d := effective.Discriminator
		cell, ok := r[columnPrefix+d.Column]
		if !ok {
			return nil, errs.New(errs.ErrMapping, "discriminator column missing: "+columnPrefix+d.Column)
		}
		c := m.opts.Codecs.Lookup(d.AppType, d.DBType)
		decoded, err := c.Decode(cell.Value, d.AppType)
		if err != nil {
			return nil, errs.Statement(errs.Wrap(errs.ErrMapping, err, "decoding discriminator column"), effective.QualifiedName)
		}
		caseKey := fmt.Sprint(decoded)
		nextQN, ok := d.Cases[caseKey]
		if !ok {
			return nil, errs.Newf(errs.ErrMapping, "no discriminator case for value %q", caseKey)
		}
		next, err := m.opts.Catalog.ResultMap(nextQN)
		if err != nil {
			return nil, err
		}
		effective = next
	}
	return effective, nil
}

func leafMappings(mappings []catalog.ResultMapping) []catalog.ResultMapping {
	out := make([]catalog.ResultMapping, 0, len(mappings))
	for _, mp := range mappings {
		if mp.Nested == nil && mp.NestedQuery == nil {
			out = append(out, mp)
		}
	}
	return out
}

type idColumnSet []string

func (s idColumnSet) values(r row) []string {
	out := make([]string, len(s))
	for i, col := range s {
		if cell, ok := r[col]; ok {
			out[i] = fmt.Sprint(cell.Value)
		} else {
			out[i] = "\x00missing"
		}
	}
	return out
}

func idColumns(leaf []catalog.ResultMapping, columnPrefix string) (idColumnSet, bool) {
	var cols idColumnSet
	for _, mp := range leaf {
		if mp.ID {
			cols = append(cols, columnPrefix+mp.Column)
		}
	}
	return cols, len(cols) > 0
}

func allNull(r row, leaf []catalog.ResultMapping, columnPrefix string) bool {
	for _, mp := range leaf {
		cell, ok := r[columnPrefix+mp.Column]
		if !ok {
			continue
		}
		if cell.Value != nil {
			return false
		}
	}
	return true
}

// setLeafMappings writes every ordinary (non-nested) mapping's column
// onto objPtr's property path, including constructor-flagged and
// id-flagged mappings. Go structs have no overloaded-constructor
// selection to emulate (spec §9's constructor-arity dispatch is Java-
// specific); constructor mappings collapse to ordinary property writes
// performed immediately after the nullary allocation, which is the
// closest Go equivalent and is recorded as a deliberate simplification
// in the grounding ledger.
func (m *Mapper) setLeafMappings(objPtr reflect.Value, r row, leaf []catalog.ResultMapping, columnPrefix string) error {
	for _, mp := range leaf {
		col := columnPrefix + mp.Column
		cell, ok := r[col]
		if !ok {
			continue
		}
		appType := mp.AppType
		if appType == nil {
			appType = resolvePropertyType(objPtr.Type().Elem(), mp.Property)
		}
		c := m.opts.Codecs.Lookup(appType, mp.DBType)
		decoded, err := c.Decode(cell.Value, appType)
		if err != nil {
			return errs.Path(errs.Wrap(errs.ErrMapping, err, "decoding column "+col), mp.Property)
		}
		if err := navigator.Write(objPtr.Interface(), mp.Property, decoded); err != nil {
			return err
		}
	}
	return nil
}

// autoMap matches row columns not mentioned by rm's own mappings (after
// prefix-stripping) to writable properties of the target type by
// case-insensitive, optionally underscore-to-camelCase-normalized name
// (spec §4.9 step 1, §6 autoMappingBehavior/autoMappingUnknownColumnBehavior).
func (m *Mapper) autoMap(objPtr reflect.Value, r row, rm *catalog.ResultMap, columnPrefix string) error {
	behavior := m.opts.AutoMapping
	if rm.HasAutoMap {
		behavior = rm.AutoMapping
	}
	if behavior == catalog.AutoMapNone {
		return nil
	}
	if behavior == catalog.AutoMapPartial && columnPrefix != "" {
		// PARTIAL skips result maps reached through a column prefix; a
		// nested result map without one is auto-mapped like the top level.
		return nil
	}

	mapped := make(map[string]bool, len(rm.Mappings))
	for _, mp := range rm.Mappings {
		mapped[columnPrefix+mp.Column] = true
	}
	if rm.Discriminator != nil {
		mapped[columnPrefix+rm.Discriminator.Column] = true
	}

	meta, err := reflectmeta.Of(rm.Type)
	if err != nil {
		return err
	}

	for col, cell := range r {
		if !strings.HasPrefix(col, columnPrefix) {
			continue
		}
		if mapped[col] {
			continue
		}
		name := strings.TrimPrefix(col, columnPrefix)
		if name == "" {
			continue
		}

		acc, ok := meta.PropertyFold(name)
		if !ok && m.opts.MapUnderscoreToCamelCase {
			acc, ok = meta.PropertyFold(strcase.UpperCamelCase(name))
		}
		if !ok {
			if m.opts.UnknownColumnFailing {
				return errs.New(errs.ErrMapping, "unmapped column with no matching property: "+col)
			}
			if m.opts.Logger != nil {
				m.opts.Logger.Warnf("auto-mapping: no writable property for column %s on %s", col, rm.Type)
			}
			continue
		}
		c := m.opts.Codecs.Lookup(acc.Type, "")
		decoded, err := c.Decode(cell.Value, acc.Type)
		if err != nil {
			return errs.Wrap(errs.ErrMapping, err, "auto-mapping column "+col)
		}
		if err := navigator.Write(objPtr.Interface(), acc.Name, decoded); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mapper) mapNested(r row, rm *catalog.ResultMap, columnPrefix string, st *state, parentKey string, parent any) error {
	for _, mp := range rm.Mappings {
		if mp.Nested == nil {
			continue
		}
		childPrefix := columnPrefix + mp.Nested.ColumnPrefix
		if notNull(r, childPrefix, mp.Nested.NotNullCols) {
			continue
		}
		nestedRM, err := m.opts.Catalog.ResultMap(mp.Nested.ResultMap)
		if err != nil {
			return err
		}
		child, _, isNew, err := m.mapRow(r, nestedRM, childPrefix, st, parentKey)
		if err != nil {
			return err
		}
		if child == nil {
			continue
		}
		if !isNew {
			continue
		}
		if mp.Nested.Collection {
			if err := appendToSlice(parent, mp.Property, child); err != nil {
				return err
			}
		} else {
			if err := navigator.Write(parent, mp.Property, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// notNull reports whether rm's NotNullCols say this row has no nested
// object at all for this mapping (at least one guard column is null).
func notNull(r row, childPrefix string, notNullCols []string) bool {
	for _, col := range notNullCols {
		cell, ok := r[childPrefix+col]
		if !ok || cell.Value == nil {
			return true
		}
	}
	return false
}

// appendToSlice appends child onto parent's named slice property. Nested
// collections are addressed by a bare top-level property name (not a
// dotted path), matching how a <collection property="..."> attribute
// names the target field.
func appendToSlice(parent any, property string, child any) error {
	v := reflect.ValueOf(parent)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	meta, err := reflectmeta.Of(v.Type())
	if err != nil {
		return err
	}
	acc, ok := meta.Property(property)
	if !ok {
		return errs.New(errs.ErrMapping, "no such property "+property)
	}
	cur, err := acc.Get(v)
	if err != nil {
		return err
	}
	if !cur.IsValid() || cur.IsNil() {
		cur = reflect.MakeSlice(acc.Type, 0, 1)
	}
	cur = reflect.Append(cur, adaptNestedElem(reflect.ValueOf(child), acc.Type.Elem()))
	return acc.Set(v, cur)
}

func (m *Mapper) mapNestedQueries(r row, rm *catalog.ResultMap, columnPrefix string, objPtr reflect.Value) error {
	for _, mp := range rm.Mappings {
		if mp.NestedQuery == nil {
			continue
		}
		cell, ok := r[columnPrefix+mp.NestedQuery.Column]
		if !ok {
			continue
		}
		keyValue := cell.Value
		nq := mp.NestedQuery
		property := mp.Property
		collection := nq.Collection
		if nq.Lazy {
			lazy := NewLazy(func() (any, error) {
				if m.opts.NestedQuery == nil {
					return nil, errs.New(errs.ErrMapping, "no nested query runner configured for "+nq.Statement)
				}
				rows, err := m.opts.NestedQuery(nq.Statement, keyValue)
				if err != nil {
					return nil, err
				}
				return shapeNestedResult(objPtr, property, rows, collection)
			})
			if err := navigator.Write(objPtr.Interface(), mp.Property, lazy); err != nil {
				return err
			}
			continue
		}
		if m.opts.NestedQuery == nil {
			return errs.New(errs.ErrMapping, "no nested query runner configured for "+nq.Statement)
		}
		rows, err := m.opts.NestedQuery(nq.Statement, keyValue)
		if err != nil {
			return errs.Statement(errs.Wrap(errs.ErrMapping, err, "executing nested query "+nq.Statement), rm.QualifiedName)
		}
		shaped, err := shapeNestedResult(objPtr, property, rows, collection)
		if err != nil {
			return err
		}
		if err := navigator.Write(objPtr.Interface(), mp.Property, shaped); err != nil {
			return err
		}
	}
	return nil
}

// shapeNestedResult adapts a NestedQueryRunner's result into the shape
// mp.Property expects. A runner always reports its mapped rows as []any
// of pointer-to-struct values (the same convention MapRows returns);
// shapeNestedResult narrows that to a single element for an association
// or converts it to the property's concrete slice type for a collection.
// A value that doesn't come back as []any (e.g. a runner short-circuiting
// with an already-shaped result) is passed through unchanged.
func shapeNestedResult(objPtr reflect.Value, property string, rows any, collection bool) (any, error) {
	elems, ok := rows.([]any)
	if !ok {
		return rows, nil
	}
	v := objPtr
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	meta, err := reflectmeta.Of(v.Type())
	if err != nil {
		return nil, err
	}
	acc, ok := meta.Property(property)
	if !ok {
		return nil, errs.New(errs.ErrMapping, "no such property "+property)
	}
	if collection {
		slice := reflect.MakeSlice(acc.Type, 0, len(elems))
		for _, e := range elems {
			slice = reflect.Append(slice, adaptNestedElem(reflect.ValueOf(e), acc.Type.Elem()))
		}
		return slice.Interface(), nil
	}
	if len(elems) == 0 {
		return nil, nil
	}
	return adaptNestedElem(reflect.ValueOf(elems[0]), acc.Type).Interface(), nil
}

// adaptNestedElem reconciles a mapped row's pointer-to-struct kind with
// the target property's kind (pointer or value).
func adaptNestedElem(v reflect.Value, target reflect.Type) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Pointer && target.Kind() != reflect.Pointer {
		v = v.Elem()
	}
	if !v.IsValid() {
		return reflect.Zero(target)
	}
	if v.Type().AssignableTo(target) {
		return v
	}
	if v.Type().ConvertibleTo(target) {
		return v.Convert(target)
	}
	return v
}

// resolvePropertyType walks path against root the way the navigator
// would, but over types instead of values, so a leaf mapping with no
// declared AppType can still pick the correct codec.
func resolvePropertyType(root reflect.Type, path string) reflect.Type {
	segs, err := pathexpr.Tokenize(path)
	if err != nil {
		return nil
	}
	cur := root
	for _, seg := range segs {
		for cur != nil && cur.Kind() == reflect.Pointer {
			cur = cur.Elem()
		}
		if cur == nil {
			return nil
		}
		if seg.Name != "" {
			if cur.Kind() != reflect.Struct {
				return nil
			}
			meta, err := reflectmeta.Of(cur)
			if err != nil {
				return nil
			}
			acc, ok := meta.Property(seg.Name)
			if !ok {
				return nil
			}
			cur = acc.Type
		}
		if seg.HasIndex {
			for cur != nil && cur.Kind() == reflect.Pointer {
				cur = cur.Elem()
			}
			if cur == nil {
				return nil
			}
			switch cur.Kind() {
			case reflect.Slice, reflect.Array:
				cur = cur.Elem()
			case reflect.Map:
				cur = cur.Elem()
			default:
				return nil
			}
		}
	}
	return cur
}
