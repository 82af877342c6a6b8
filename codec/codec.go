// Package codec is the value codec registry (component E): a bidirectional
// converter between application values and database cells, looked up by a
// declared or inferred (application type, database type) pair.
//
// Lookup order is exact (app, db) -> app-only -> db-only -> opaque
// fallback, matching spec §4.5. The opaque fallback and the numeric/string
// coercions it performs lean on github.com/spf13/cast instead of
// hand-rolled type switches, and on github.com/araddon/dateparse for
// string-to-time.Time coercion (common with text-affinity SQLite columns).
package codec

import (
	"encoding"
	"reflect"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cast"

	"github.com/forbearing/sqlmap/errs"
)

// Codec converts one property's value to and from a database cell.
type Codec interface {
	// Encode prepares an application value for binding onto a driver
	// statement.
	Encode(appValue any) (any, error)
	// Decode converts a database cell into a value assignable to appType.
	Decode(cell any, appType reflect.Type) (any, error)
}

// Func adapts a pair of plain functions to the Codec interface.
type Func struct {
	EncodeFn func(any) (any, error)
	DecodeFn func(any, reflect.Type) (any, error)
}

func (f Func) Encode(v any) (any, error)                { return f.EncodeFn(v) }
func (f Func) Decode(c any, t reflect.Type) (any, error) { return f.DecodeFn(c, t) }

type regKey struct {
	app reflect.Type
	db  string
}

// Registry is the process-wide (or per-configuration) codec lookup table.
type Registry struct {
	mu     sync.RWMutex
	exact  map[regKey]Codec
	byApp  map[reflect.Type]Codec
	byDB   map[string]Codec
	opaque Codec
}

// NewRegistry builds a registry preloaded with the time.Time codec only;
// every other type falls through to the opaque codec. Callers register
// additional/overriding codecs via Register.
func NewRegistry() *Registry {
	r := &Registry{
		exact:  make(map[regKey]Codec),
		byApp:  make(map[reflect.Type]Codec),
		byDB:   make(map[string]Codec),
		opaque: opaqueCodec{},
	}
	r.byApp[reflect.TypeFor[time.Time]()] = timeCodec{}
	return r
}

// Register installs c for the exact (appType, dbType) pair. A nil appType
// or empty dbType registers into the app-only/db-only tier instead.
func (r *Registry) Register(appType reflect.Type, dbType string, c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case appType != nil && dbType != "":
		r.exact[regKey{appType, dbType}] = c
	case appType != nil:
		r.byApp[appType] = c
	case dbType != "":
		r.byDB[dbType] = c
	default:
		r.opaque = c
	}
}

// Lookup resolves a codec for (appType, dbType) following spec §4.5's
// order: exact -> app-only -> db-only -> opaque. Named types (Go's analog
// of enums) default to a name-based codec via encoding.TextMarshaler /
// encoding.TextUnmarshaler unless a more specific registration exists.
func (r *Registry) Lookup(appType reflect.Type, dbType string) Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if appType != nil && dbType != "" {
		if c, ok := r.exact[regKey{appType, dbType}]; ok {
			return c
		}
	}
	if appType != nil {
		if c, ok := r.byApp[appType]; ok {
			return c
		}
	}
	if dbType != "" {
		if c, ok := r.byDB[dbType]; ok {
			return c
		}
	}
	if appType != nil && isEnumLike(appType) {
		return enumCodec{}
	}
	return r.opaque
}

// isEnumLike reports whether t is a named scalar type implementing
// encoding.TextMarshaler, the idiomatic Go equivalent of a Java enum with
// a name-based wire representation.
func isEnumLike(t reflect.Type) bool {
	if t.Name() == "" {
		return false
	}
	switch t.Kind() {
	case reflect.String, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return false
	}
	return reflect.PointerTo(t).Implements(reflect.TypeFor[encoding.TextMarshaler]())
}

type enumCodec struct{}

func (enumCodec) Encode(v any) (any, error) {
	if m, ok := v.(encoding.TextMarshaler); ok {
		b, err := m.MarshalText()
		if err != nil {
			return nil, errs.Wrap(errs.ErrMapping, err, "encoding enum value")
		}
		return string(b), nil
	}
	return v, nil
}

func (enumCodec) Decode(cell any, appType reflect.Type) (any, error) {
	target := reflect.New(appType)
	if u, ok := target.Interface().(encoding.TextUnmarshaler); ok {
		s, err := cast.ToStringE(cell)
		if err != nil {
			return nil, errs.Wrap(errs.ErrMapping, err, "decoding enum value")
		}
		if err := u.UnmarshalText([]byte(s)); err != nil {
			return nil, errs.Wrap(errs.ErrMapping, err, "decoding enum value "+s)
		}
		return target.Elem().Interface(), nil
	}
	return opaqueCodec{}.Decode(cell, appType)
}

type timeCodec struct{}

func (timeCodec) Encode(v any) (any, error) { return v, nil }

func (timeCodec) Decode(cell any, _ reflect.Type) (any, error) {
	switch c := cell.(type) {
	case time.Time:
		return c, nil
	case string:
		t, err := dateparse.ParseAny(c)
		if err != nil {
			return nil, errs.Wrap(errs.ErrMapping, err, "parsing time from string cell "+c)
		}
		return t, nil
	case []byte:
		t, err := dateparse.ParseAny(string(c))
		if err != nil {
			return nil, errs.Wrap(errs.ErrMapping, err, "parsing time from byte cell")
		}
		return t, nil
	case int64:
		return time.Unix(c, 0), nil
	case nil:
		return time.Time{}, nil
	default:
		return nil, errs.Newf(errs.ErrMapping, "cannot decode %T into time.Time", cell)
	}
}

// opaqueCodec is the fallback for every (appType, dbType) pair with no
// closer registration: values pass through unchanged on Encode, and Decode
// coerces via spf13/cast according to appType's kind.
type opaqueCodec struct{}

func (opaqueCodec) Encode(v any) (any, error) { return v, nil }

func (opaqueCodec) Decode(cell any, appType reflect.Type) (any, error) {
	if appType == nil {
		return cell, nil
	}
	if cell == nil {
		return reflect.Zero(appType).Interface(), nil
	}
	if reflect.TypeOf(cell).AssignableTo(appType) {
		return cell, nil
	}
	switch appType.Kind() {
	case reflect.String:
		return cast.ToStringE(cell)
	case reflect.Bool:
		return cast.ToBoolE(cell)
	case reflect.Int:
		return cast.ToIntE(cell)
	case reflect.Int8:
		return cast.ToInt8E(cell)
	case reflect.Int16:
		return cast.ToInt16E(cell)
	case reflect.Int32:
		return cast.ToInt32E(cell)
	case reflect.Int64:
		return cast.ToInt64E(cell)
	case reflect.Uint:
		return cast.ToUintE(cell)
	case reflect.Uint8:
		return cast.ToUint8E(cell)
	case reflect.Uint16:
		return cast.ToUint16E(cell)
	case reflect.Uint32:
		return cast.ToUint32E(cell)
	case reflect.Uint64:
		return cast.ToUint64E(cell)
	case reflect.Float32:
		return cast.ToFloat32E(cell)
	case reflect.Float64:
		return cast.ToFloat64E(cell)
	case reflect.Pointer:
		elem, err := (opaqueCodec{}).Decode(cell, appType.Elem())
		if err != nil {
			return nil, err
		}
		ptr := reflect.New(appType.Elem())
		ptr.Elem().Set(reflect.ValueOf(elem))
		return ptr.Interface(), nil
	default:
		v := reflect.ValueOf(cell)
		if v.Type().ConvertibleTo(appType) {
			return v.Convert(appType).Interface(), nil
		}
		return nil, errs.Newf(errs.ErrMapping, "no codec for cell %T into %s", cell, appType)
	}
}
