// Package reflectmeta is the type metamodel (component B): for a given
// application type it publishes the set of readable/writable property
// names, each property's declared (and, for single-parameter generic
// sequences, element) type, and an accessor pair that reads/writes a live
// instance. Analysis happens once per type and is cached process-wide.
package reflectmeta

import (
	"reflect"
	"strings"
	"sync"

	"github.com/forbearing/sqlmap/errs"
)

// metaCache is a process-wide, weakly-keyed-in-spirit cache: Go gives us no
// true weak references, so we key by reflect.Type (itself process-interned
// by the runtime) and rely on LoadOrStore so concurrent first population of
// the same type converges on a single published *TypeMeta, matching the
// compare-and-set publication discipline the metamodel's concurrency model
// requires.
var metaCache sync.Map // map[reflect.Type]*TypeMeta

// Accessor reads and writes one property of a live instance.
type Accessor struct {
	Name     string
	Type     reflect.Type // declared property type
	ElemType reflect.Type // element type when Type is a single-param generic sequence; equals Type otherwise
	Readable bool
	Writable bool

	isBool bool // true for an IsX-form boolean reader, used in conflict resolution
	get    func(reflect.Value) (reflect.Value, error)
	set    func(reflect.Value, reflect.Value) error
}

// Get reads the property off recv, which must be the addressable struct
// value (not a pointer) the metamodel was built for.
func (a *Accessor) Get(recv reflect.Value) (reflect.Value, error) {
	if !a.Readable {
		return reflect.Value{}, errs.New(errs.ErrBinding, "property not readable: "+a.Name)
	}
	return a.get(recv)
}

// Set writes val into the property on recv.
func (a *Accessor) Set(recv reflect.Value, val reflect.Value) error {
	if !a.Writable {
		return errs.New(errs.ErrBinding, "property not writable: "+a.Name)
	}
	return a.set(recv, val)
}

// TypeMeta is the per-type metamodel entry.
type TypeMeta struct {
	Type       reflect.Type
	properties map[string]*Accessor
	order      []string
	canonical  map[string]string // lower(name) -> canonical name, for case-insensitive column matching
}

// Of returns the metamodel for t (or *t, **t, ...), building and publishing
// it on first use.
func Of(t reflect.Type) (*TypeMeta, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := metaCache.Load(t); ok {
		return cached.(*TypeMeta), nil //nolint:errcheck
	}
	built, err := build(t)
	if err != nil {
		return nil, err
	}
	actual, _ := metaCache.LoadOrStore(t, built)
	return actual.(*TypeMeta), nil //nolint:errcheck
}

// OfValue is a convenience wrapper around Of(reflect.TypeOf(v)).
func OfValue(v any) (*TypeMeta, error) { return Of(reflect.TypeOf(v)) }

// Property looks up a property by its exact (case-sensitive) name.
func (m *TypeMeta) Property(name string) (*Accessor, bool) {
	a, ok := m.properties[name]
	return a, ok
}

// Canonical resolves name case-insensitively to the metamodel's canonical
// spelling, the way a result-row column name is matched to a property.
func (m *TypeMeta) Canonical(name string) (string, bool) {
	c, ok := m.canonical[strings.ToLower(name)]
	return c, ok
}

// PropertyFold looks up a property case-insensitively.
func (m *TypeMeta) PropertyFold(name string) (*Accessor, bool) {
	canonical, ok := m.Canonical(name)
	if !ok {
		return nil, false
	}
	return m.Property(canonical)
}

// ReadableNames returns property names in declaration order.
func (m *TypeMeta) ReadableNames() []string {
	out := make([]string, 0, len(m.order))
	for _, n := range m.order {
		if m.properties[n].Readable {
			out = append(out, n)
		}
	}
	return out
}

// WritableNames returns property names in declaration order.
func (m *TypeMeta) WritableNames() []string {
	out := make([]string, 0, len(m.order))
	for _, n := range m.order {
		if m.properties[n].Writable {
			out = append(out, n)
		}
	}
	return out
}

// New constructs a zero value of the metamodel's type via its nullary
// constructor equivalent. Interface types have no canonical zero concrete
// value and fail with NoDefaultConstructor.
func (m *TypeMeta) New() (reflect.Value, error) {
	if m.Type.Kind() == reflect.Interface {
		return reflect.Value{}, errs.New(errs.ErrNoDefaultConstructor, "cannot construct interface type "+m.Type.String())
	}
	return reflect.New(m.Type).Elem(), nil
}

func build(t reflect.Type) (*TypeMeta, error) {
	m := &TypeMeta{
		Type:       t,
		properties: make(map[string]*Accessor),
		canonical:  make(map[string]string),
	}
	if t.Kind() != reflect.Struct {
		return m, nil
	}

	var walkFields func(rt reflect.Type, index []int)
	walkFields = func(rt reflect.Type, index []int) {
		for i := range rt.NumField() {
			f := rt.Field(i)
			idx := append(append([]int{}, index...), i)
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				walkFields(f.Type, idx)
				continue
			}
			if !f.IsExported() {
				continue
			}
			name := f.Name
			if tag := f.Tag.Get("db"); tag != "" && tag != "-" {
				name = strings.Split(tag, ",")[0]
			}
			fieldIndex := idx
			acc := &Accessor{
				Name:     name,
				Type:     f.Type,
				ElemType: elemType(f.Type),
				Readable: true,
				Writable: true,
				get: func(recv reflect.Value) (reflect.Value, error) {
					return recv.FieldByIndex(fieldIndex), nil
				},
				set: func(recv reflect.Value, val reflect.Value) error {
					recv.FieldByIndex(fieldIndex).Set(val)
					return nil
				},
			}
			if err := m.publish(name, acc, f.Type); err != nil {
				// A field-vs-field collision (e.g. two db tags mapping to the
				// same name) that resolveConflict cannot settle (unrelated
				// types) keeps the accessor already published and drops
				// this one; Of reports no ErrAmbiguousAccessor for it, and
				// registerGetter below treats method conflicts the same way.
				continue
			}
		}
	}
	walkFields(t, nil)

	collectMethodAccessors(t, m)

	return m, nil
}

// collectMethodAccessors walks *T's method set looking for GetX/IsX reader
// methods and SetX writer methods, merging them into m's property set
// alongside (and, on conflict, via the same resolution rule as) the
// field-based accessors already collected.
func collectMethodAccessors(t reflect.Type, m *TypeMeta) {
	pt := reflect.PointerTo(t)
	for i := range pt.NumMethod() {
		method := pt.Method(i)
		switch {
		case strings.HasPrefix(method.Name, "Get") && len(method.Name) > 3:
			registerGetter(m, method, method.Name[3:], false)
		case strings.HasPrefix(method.Name, "Is") && len(method.Name) > 2:
			registerGetter(m, method, method.Name[2:], true)
		case strings.HasPrefix(method.Name, "Set") && len(method.Name) > 3:
			registerSetter(m, method, method.Name[3:])
		}
	}
}

func registerGetter(m *TypeMeta, method reflect.Method, name string, isBool bool) {
	mt := method.Type
	if mt.NumIn() != 1 || mt.NumOut() != 1 {
		return
	}
	if isBool && mt.Out(0).Kind() != reflect.Bool {
		return
	}
	retType := mt.Out(0)
	idx := method.Index
	acc := &Accessor{
		Name:     name,
		Type:     retType,
		ElemType: elemType(retType),
		Readable: true,
		isBool:   isBool,
		get: func(recv reflect.Value) (reflect.Value, error) {
			ptr := recv.Addr()
			out := ptr.Method(idx).Call(nil)
			return out[0], nil
		},
	}
	if existing, ok := m.properties[name]; ok {
		merged := *existing
		merged.Type = acc.Type
		merged.ElemType = acc.ElemType
		merged.Readable = true
		merged.isBool = acc.isBool
		merged.get = acc.get
		winner, err := resolveConflict(existing, &merged)
		if err != nil {
			return
		}
		m.properties[name] = winner
		return
	}
	m.properties[name] = acc
	m.order = append(m.order, name)
	m.canonical[strings.ToLower(name)] = name
}

func registerSetter(m *TypeMeta, method reflect.Method, name string) {
	mt := method.Type
	if mt.NumIn() != 2 || mt.NumOut() != 0 {
		return
	}
	paramType := mt.In(1)
	idx := method.Index
	set := func(recv reflect.Value, val reflect.Value) error {
		recv.Addr().Method(idx).Call([]reflect.Value{val})
		return nil
	}
	if existing, ok := m.properties[name]; ok {
		existing.Writable = true
		existing.set = set
		return
	}
	m.properties[name] = &Accessor{
		Name:     name,
		Type:     paramType,
		ElemType: elemType(paramType),
		Writable: true,
		set:      set,
	}
	m.order = append(m.order, name)
	m.canonical[strings.ToLower(name)] = name
}

// elemType resolves the declared element type for slices, arrays and
// channels, and the value type for maps; everything else's element type
// is itself.
func elemType(t reflect.Type) reflect.Type {
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Chan:
		return t.Elem()
	case reflect.Map:
		return t.Elem()
	default:
		return t
	}
}

// publish registers a freshly discovered accessor for name, applying the
// conflict-resolution rule (more specific return type wins; isX beats getX
// at equal specificity; unrelated types are AmbiguousAccessor).
func (m *TypeMeta) publish(name string, acc *Accessor, _ reflect.Type) error {
	existing, ok := m.properties[name]
	if !ok {
		m.properties[name] = acc
		m.order = append(m.order, name)
		m.canonical[strings.ToLower(name)] = name
		return nil
	}
	winner, err := resolveConflict(existing, acc)
	if err != nil {
		return err
	}
	m.properties[name] = winner
	return nil
}

// resolveConflict implements §4.2's accessor conflict resolution: prefer
// the more specific (assignable-to-the-other) return type; boolean isX
// beats getX at identical return types; unrelated types fail.
func resolveConflict(a, b *Accessor) (*Accessor, error) {
	if a.Type == b.Type {
		if a.isBool && !b.isBool { //nolint:staticcheck // isBool is set by registerGetter for IsX methods
			return a, nil
		}
		if b.isBool && !a.isBool {
			return b, nil
		}
		return b, nil // identical specificity, later declaration wins (methods override fields)
	}
	if a.Type.AssignableTo(b.Type) {
		return a, nil // a is the more specific (narrower) type
	}
	if b.Type.AssignableTo(a.Type) {
		return b, nil
	}
	return nil, errs.New(errs.ErrAmbiguousAccessor, "ambiguous accessor for property "+a.Name)
}
