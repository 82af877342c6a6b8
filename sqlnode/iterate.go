package sqlnode

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/forbearing/sqlmap/errs"
)

// iterate normalizes a ForEach collection value (sequence, mapping, or
// array) into parallel value/key slices. Map iteration order is not
// defined by Go; keys are sorted by their string form to keep evaluation
// deterministic, matching the determinism invariant in spec §8.
func iterate(val any) (items []any, keys []any, err error) {
	v := reflect.ValueOf(val)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil, errs.New(errs.ErrNullForEachCollection, "")
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		n := v.Len()
		items = make([]any, n)
		keys = make([]any, n)
		for i := range n {
			items[i] = v.Index(i).Interface()
			keys[i] = i
		}
		return items, keys, nil
	case reflect.Map:
		mapKeys := v.MapKeys()
		sort.Slice(mapKeys, func(i, j int) bool {
			return keyString(mapKeys[i]) < keyString(mapKeys[j])
		})
		items = make([]any, len(mapKeys))
		keys = make([]any, len(mapKeys))
		for i, k := range mapKeys {
			items[i] = v.MapIndex(k).Interface()
			keys[i] = k.Interface()
		}
		return items, keys, nil
	default:
		return nil, nil, errs.Newf(errs.ErrUnindexableNode, "foreach collection is not a sequence or mapping: %s", v.Kind())
	}
}

func keyString(v reflect.Value) string {
	return fmt.Sprint(v.Interface())
}
