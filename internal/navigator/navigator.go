// Package navigator is the object navigator (component C): given a root
// object and a property expression tokenized by pathexpr, it reads or
// writes the value at that path through the reflectmeta type metamodel.
//
// Reads are side-effect-free and null-propagating: an intermediate nil
// yields a nil result for the whole expression. Writes materialize
// intermediate nils via each type's nullary constructor and mutate only
// the target leaf.
package navigator

import (
	"reflect"
	"strconv"

	"github.com/forbearing/sqlmap/errs"
	"github.com/forbearing/sqlmap/internal/pathexpr"
	"github.com/forbearing/sqlmap/internal/reflectmeta"
)

// Read evaluates path against root and returns the value found, or nil if
// any intermediate along the path is nil.
func Read(root any, path string) (any, error) {
	if root == nil {
		return nil, nil
	}
	segs, err := pathexpr.Tokenize(path)
	if err != nil {
		return nil, err
	}
	cur := reflect.ValueOf(root)
	for _, seg := range segs {
		cur, err = stepRead(cur, seg)
		if err != nil {
			return nil, errs.Path(err, path)
		}
		if !cur.IsValid() {
			return nil, nil
		}
	}
	if !cur.IsValid() {
		return nil, nil
	}
	return cur.Interface(), nil
}

// Write evaluates path against root (which must be a non-nil pointer) and
// assigns value to the leaf, materializing any nil intermediate structs or
// pointers along the way.
func Write(root any, path string, value any) error {
	rv := reflect.ValueOf(root)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errs.New(errs.ErrBinding, "navigator write root must be a non-nil pointer")
	}
	segs, err := pathexpr.Tokenize(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return errs.New(errs.ErrMalformedPath, "empty path")
	}
	cur := rv
	for i, seg := range segs {
		isLast := i == len(segs)-1
		cur, err = stepWrite(cur, seg, isLast, value)
		if err != nil {
			return errs.Path(err, path)
		}
	}
	return nil
}

func stepRead(cur reflect.Value, seg pathexpr.Segment) (reflect.Value, error) {
	cur = deref(cur)
	if !cur.IsValid() {
		return reflect.Value{}, nil
	}
	var err error
	if seg.Name != "" {
		cur, err = getNamed(cur, seg.Name)
		if err != nil || !cur.IsValid() {
			return cur, err
		}
	}
	if seg.HasIndex {
		cur = deref(cur)
		if !cur.IsValid() {
			return reflect.Value{}, nil
		}
		cur, err = getIndexedRead(cur, seg.Index)
	}
	return cur, err
}

func stepWrite(cur reflect.Value, seg pathexpr.Segment, isLast bool, value any) (reflect.Value, error) {
	cur = materialize(cur)
	if !cur.IsValid() {
		return reflect.Value{}, errs.New(errs.ErrNoDefaultConstructor, "cannot materialize nil intermediate")
	}

	switch {
	case seg.Name != "" && !seg.HasIndex:
		if isLast {
			return reflect.Value{}, setNamed(cur, seg.Name, value)
		}
		return getOrMakeNamed(cur, seg.Name)
	case seg.Name != "" && seg.HasIndex:
		named, err := getOrMakeNamed(cur, seg.Name)
		if err != nil {
			return reflect.Value{}, err
		}
		named = materialize(named)
		if !named.IsValid() {
			return reflect.Value{}, errs.New(errs.ErrNoDefaultConstructor, "cannot materialize nil intermediate")
		}
		if isLast {
			return reflect.Value{}, setIndexed(named, seg.Index, value)
		}
		return getOrMakeIndexed(named, seg.Index)
	default: // bare index against root
		if isLast {
			return reflect.Value{}, setIndexed(cur, seg.Index, value)
		}
		return getOrMakeIndexed(cur, seg.Index)
	}
}

// deref follows pointer/interface chains, returning an invalid Value if it
// bottoms out on nil.
func deref(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// materialize is deref, except nil pointers along the way are allocated
// in place (requires the pointer itself be settable).
func materialize(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Pointer {
		if v.IsNil() {
			if !v.CanSet() {
				return reflect.Value{}
			}
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	return v
}

func getNamed(cur reflect.Value, name string) (reflect.Value, error) {
	switch cur.Kind() {
	case reflect.Struct:
		acc, err := lookupAccessor(cur.Type(), name)
		if err != nil {
			return reflect.Value{}, err
		}
		return acc.Get(cur)
	case reflect.Map:
		kt := cur.Type().Key()
		if kt.Kind() != reflect.String {
			return reflect.Value{}, errs.New(errs.ErrUnindexableNode, "non-string-keyed map property access: "+name)
		}
		val := cur.MapIndex(reflect.ValueOf(name).Convert(kt))
		return val, nil
	default:
		return reflect.Value{}, errs.New(errs.ErrUnindexableNode, "cannot read property "+name+" from "+cur.Kind().String())
	}
}

func getOrMakeNamed(cur reflect.Value, name string) (reflect.Value, error) {
	switch cur.Kind() {
	case reflect.Struct:
		acc, err := lookupAccessor(cur.Type(), name)
		if err != nil {
			return reflect.Value{}, err
		}
		return acc.Get(cur)
	case reflect.Map:
		if cur.IsNil() {
			if !cur.CanSet() {
				return reflect.Value{}, errs.New(errs.ErrNoDefaultConstructor, "nil map cannot be materialized")
			}
			cur.Set(reflect.MakeMap(cur.Type()))
		}
		kt := cur.Type().Key()
		if kt.Kind() != reflect.String {
			return reflect.Value{}, errs.New(errs.ErrUnindexableNode, "non-string-keyed map property access: "+name)
		}
		key := reflect.ValueOf(name).Convert(kt)
		val := cur.MapIndex(key)
		if val.IsValid() {
			return val, nil
		}
		et := cur.Type().Elem()
		if et.Kind() == reflect.Pointer {
			nv := reflect.New(et.Elem())
			cur.SetMapIndex(key, nv)
			return nv, nil
		}
		cur.SetMapIndex(key, reflect.Zero(et))
		return cur.MapIndex(key), nil
	default:
		return reflect.Value{}, errs.New(errs.ErrUnindexableNode, "cannot navigate property "+name+" on "+cur.Kind().String())
	}
}

func setNamed(cur reflect.Value, name string, value any) error {
	switch cur.Kind() {
	case reflect.Struct:
		acc, err := lookupAccessor(cur.Type(), name)
		if err != nil {
			return err
		}
		return acc.Set(cur, coerce(value, acc.Type))
	case reflect.Map:
		if cur.IsNil() {
			if !cur.CanSet() {
				return errs.New(errs.ErrNoDefaultConstructor, "nil map cannot be materialized")
			}
			cur.Set(reflect.MakeMap(cur.Type()))
		}
		kt := cur.Type().Key()
		if kt.Kind() != reflect.String {
			return errs.New(errs.ErrUnindexableNode, "non-string-keyed map property access: "+name)
		}
		cur.SetMapIndex(reflect.ValueOf(name).Convert(kt), coerce(value, cur.Type().Elem()))
		return nil
	default:
		return errs.New(errs.ErrUnindexableNode, "cannot write property "+name+" on "+cur.Kind().String())
	}
}

func getIndexedRead(cur reflect.Value, idx string) (reflect.Value, error) {
	switch cur.Kind() {
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(idx)
		if err != nil {
			return reflect.Value{}, errs.New(errs.ErrMalformedPath, "non-integer index: "+idx)
		}
		if i < 0 || i >= cur.Len() {
			return reflect.Value{}, nil
		}
		return cur.Index(i), nil
	case reflect.Map:
		kt := cur.Type().Key()
		key := reflect.ValueOf(idx)
		if kt.Kind() != reflect.String {
			n, err := strconv.ParseInt(idx, 10, 64)
			if err != nil {
				return reflect.Value{}, errs.New(errs.ErrUnindexableNode, "map key type mismatch: "+idx)
			}
			key = reflect.ValueOf(n)
		}
		if !key.Type().ConvertibleTo(kt) {
			return reflect.Value{}, errs.New(errs.ErrUnindexableNode, "map key type mismatch: "+idx)
		}
		return cur.MapIndex(key.Convert(kt)), nil
	default:
		return reflect.Value{}, errs.New(errs.ErrUnindexableNode, "cannot index "+cur.Kind().String())
	}
}

func getOrMakeIndexed(cur reflect.Value, idx string) (reflect.Value, error) {
	switch cur.Kind() {
	case reflect.Slice:
		i, err := strconv.Atoi(idx)
		if err != nil {
			return reflect.Value{}, errs.New(errs.ErrMalformedPath, "non-integer index: "+idx)
		}
		if i < 0 {
			return reflect.Value{}, errs.New(errs.ErrBinding, "negative index: "+idx)
		}
		if i >= cur.Len() {
			if !cur.CanSet() {
				return reflect.Value{}, errs.New(errs.ErrNoDefaultConstructor, "cannot grow unaddressable slice")
			}
			grown := reflect.MakeSlice(cur.Type(), i+1, i+1)
			reflect.Copy(grown, cur)
			cur.Set(grown)
		}
		return cur.Index(i), nil
	case reflect.Array:
		i, err := strconv.Atoi(idx)
		if err != nil {
			return reflect.Value{}, errs.New(errs.ErrMalformedPath, "non-integer index: "+idx)
		}
		if i < 0 || i >= cur.Len() {
			return reflect.Value{}, errs.New(errs.ErrBinding, "index out of range: "+idx)
		}
		return cur.Index(i), nil
	case reflect.Map:
		return getOrMakeNamed(cur, idx)
	default:
		return reflect.Value{}, errs.New(errs.ErrUnindexableNode, "cannot index "+cur.Kind().String())
	}
}

func setIndexed(cur reflect.Value, idx string, value any) error {
	switch cur.Kind() {
	case reflect.Slice:
		i, err := strconv.Atoi(idx)
		if err != nil {
			return errs.New(errs.ErrMalformedPath, "non-integer index: "+idx)
		}
		if i < 0 {
			return errs.New(errs.ErrBinding, "negative index: "+idx)
		}
		if i >= cur.Len() {
			if !cur.CanSet() {
				return errs.New(errs.ErrNoDefaultConstructor, "cannot grow unaddressable slice")
			}
			grown := reflect.MakeSlice(cur.Type(), i+1, i+1)
			reflect.Copy(grown, cur)
			cur.Set(grown)
		}
		cur.Index(i).Set(coerce(value, cur.Type().Elem()))
		return nil
	case reflect.Array:
		i, err := strconv.Atoi(idx)
		if err != nil {
			return errs.New(errs.ErrMalformedPath, "non-integer index: "+idx)
		}
		if i < 0 || i >= cur.Len() {
			return errs.New(errs.ErrBinding, "index out of range: "+idx)
		}
		cur.Index(i).Set(coerce(value, cur.Type().Elem()))
		return nil
	case reflect.Map:
		return setNamed(cur, idx, value)
	default:
		return errs.New(errs.ErrUnindexableNode, "cannot index "+cur.Kind().String())
	}
}

func lookupAccessor(t reflect.Type, name string) (*reflectmeta.Accessor, error) {
	meta, err := reflectmeta.Of(t)
	if err != nil {
		return nil, err
	}
	if acc, ok := meta.Property(name); ok {
		return acc, nil
	}
	if acc, ok := meta.PropertyFold(name); ok {
		return acc, nil
	}
	return nil, errs.New(errs.ErrBinding, "no such property: "+name)
}

// coerce adapts value to t when directly assignable or convertible,
// falling back to the raw reflect.Value of value (final type-level
// coercion is the codec registry's job, not the navigator's).
func coerce(value any, t reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(t)
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(t) {
		return v
	}
	if v.Type().ConvertibleTo(t) {
		return v.Convert(t)
	}
	return v
}
