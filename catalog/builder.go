package catalog

import (
	"encoding/xml"
	"reflect"
	"strings"

	"github.com/samber/lo"

	"github.com/forbearing/sqlmap/errs"
)

// pendingStatement is a pass-1 skeleton: parsed attributes plus the raw,
// not-yet-include-resolved body.
type pendingStatement struct {
	qualifiedName string
	namespace     string
	command       CommandKind
	body          *rawNode
	attrs         map[string]string
	resultMaps    []string
}

// pendingResultMap is a pass-1 skeleton for a <resultMap>.
type pendingResultMap struct {
	qualifiedName string
	namespace     string
	typeName      string
	extends       string
	autoMapping   string
	raw           *rawNode
	resolved      *ResultMap // filled in during Resolve, after extends merge
}

// Builder accumulates mapping documents across the two-pass compilation
// described in spec §4.6. It is mutable; Build() hands off to an
// immutable *Catalog and the Builder must not be reused afterward,
// modeling the source's Builder -> Compiled phase transition (spec §9).
type Builder struct {
	types map[string]reflect.Type

	namespaces map[string]bool
	fragments  map[string]*rawNode
	statements map[string]*pendingStatement
	resultMaps map[string]*pendingResultMap
	caches     map[string]*CacheConfig
	cacheRefs  map[string]string // namespace -> referenced namespace

	resolved bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		types:      make(map[string]reflect.Type),
		namespaces: make(map[string]bool),
		fragments:  make(map[string]*rawNode),
		statements: make(map[string]*pendingStatement),
		resultMaps: make(map[string]*pendingResultMap),
		caches:     make(map[string]*CacheConfig),
		cacheRefs:  make(map[string]string),
	}
}

// RegisterType associates a parameterType/resultType/javaType name used in
// mapping XML with a concrete Go type, taking a zero-value-or-pointer
// sample. Go has no runtime class lookup by name (spec §9 design note on
// reflection metamodels in languages lacking the source's introspection
// facility), so the caller supplies this "shape descriptor" up front.
func (b *Builder) RegisterType(name string, sample any) {
	t := reflect.TypeOf(sample)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	b.types[name] = t
}

func (b *Builder) resolveTypeName(name string) reflect.Type {
	if name == "" {
		return nil
	}
	return b.types[name]
}

// Emit is pass 1: parses one mapping document, registers its namespace,
// collects <sql> fragments, and emits statement/result-map/cache
// skeletons. Cross-file references are left pending for Resolve.
func (b *Builder) Emit(document []byte) error {
	if b.resolved {
		return errs.New(errs.ErrConfig, "Emit called after Resolve")
	}
	doc, err := parseMapperDocument(document)
	if err != nil {
		return errs.Wrap(errs.ErrConfig, err, "malformed mapping document")
	}
	if doc.Namespace == "" {
		return errs.New(errs.ErrConfig, "<mapper> missing namespace attribute")
	}
	b.namespaces[doc.Namespace] = true

	for _, el := range doc.Root.elements() {
		switch el.XMLName.Local {
		case "sql":
			id, ok := el.attr("id")
			if !ok {
				return errs.New(errs.ErrConfig, "<sql> missing id attribute")
			}
			b.fragments[qualify(doc.Namespace, id)] = el
		case "select", "insert", "update", "delete":
			if err := b.emitStatement(doc.Namespace, el); err != nil {
				return err
			}
		case "resultMap":
			if err := b.emitResultMap(doc.Namespace, el); err != nil {
				return err
			}
		case "cache":
			b.caches[doc.Namespace] = parseCacheConfig(doc.Namespace, el)
		case "cache-ref":
			ref, ok := el.attr("namespace")
			if !ok {
				return errs.New(errs.ErrConfig, "<cache-ref> missing namespace attribute")
			}
			b.cacheRefs[doc.Namespace] = ref
		}
	}
	return nil
}

func (b *Builder) emitStatement(namespace string, el *rawNode) error {
	id, ok := el.attr("id")
	if !ok {
		return errs.New(errs.ErrConfig, "statement missing id attribute")
	}
	var cmd CommandKind
	switch el.XMLName.Local {
	case "select":
		cmd = Select
	case "insert":
		cmd = Insert
	case "update":
		cmd = Update
	case "delete":
		cmd = Delete
	}
	attrs := make(map[string]string)
	for _, a := range el.Attrs {
		attrs[a.Name.Local] = a.Value
	}
	var resultMaps []string
	if rm, ok := attrs["resultMap"]; ok {
		for _, name := range strings.Split(rm, ",") {
			resultMaps = append(resultMaps, qualify(namespace, strings.TrimSpace(name)))
		}
	}
	qn := qualify(namespace, id)
	b.statements[qn] = &pendingStatement{
		qualifiedName: qn,
		namespace:     namespace,
		command:       cmd,
		body:          el,
		attrs:         attrs,
		resultMaps:    resultMaps,
	}
	return nil
}

func (b *Builder) emitResultMap(namespace string, el *rawNode) error {
	id, ok := el.attr("id")
	if !ok {
		return errs.New(errs.ErrConfig, "<resultMap> missing id attribute")
	}
	qn := qualify(namespace, id)
	extends, _ := el.attr("extends")
	if extends != "" {
		extends = qualify(namespace, extends)
	}
	b.resultMaps[qn] = &pendingResultMap{
		qualifiedName: qn,
		namespace:     namespace,
		typeName:      el.attrOr("type", ""),
		extends:       extends,
		autoMapping:   el.attrOr("autoMapping", ""),
		raw:           el,
	}
	return nil
}

func parseCacheConfig(namespace string, el *rawNode) *CacheConfig {
	cfg := &CacheConfig{
		Namespace: namespace,
		Eviction:  CacheEviction(el.attrOr("eviction", string(EvictionLRU))),
		Size:      1024,
		ReadOnly:  el.attrOr("readOnly", "false") == "true",
		Blocking:  el.attrOr("blocking", "false") == "true",
	}
	if v, ok := el.attr("size"); ok {
		cfg.Size = atoiOr(v, 1024)
	}
	if v, ok := el.attr("flushInterval"); ok {
		cfg.FlushInterval = atoiOr(v, 0)
	}
	return cfg
}

func atoiOr(s string, def int) int {
	n := 0
	neg := false
	for i, c := range s {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	return n
}

// Resolve is pass 2: substitutes <include> fragments, merges <resultMap>
// extends chains, and resolves <cache-ref> to a fixed point (spec §4.6).
func (b *Builder) Resolve() error {
	if b.resolved {
		return errs.New(errs.ErrConfig, "Resolve called twice")
	}

	for _, stmt := range b.statements {
		resolved, err := b.resolveIncludes(stmt.namespace, stmt.body, nil, nil)
		if err != nil {
			return errs.Statement(err, stmt.qualifiedName)
		}
		stmt.body = resolved
	}

	if err := b.resolveResultMapExtends(); err != nil {
		return err
	}

	if err := b.resolveCacheRefsFixedPoint(); err != nil {
		return err
	}

	b.resolved = true
	return nil
}

// resolveIncludes substitutes every <include refid> in n (recursively)
// with the referenced <sql> fragment's children, applying <property>
// bindings as ${...} substitutions first. stack detects cycles.
func (b *Builder) resolveIncludes(namespace string, n *rawNode, stack []string, props map[string]string) (*rawNode, error) {
	out := &rawNode{XMLName: n.XMLName, Attrs: substituteAttrs(n.Attrs, props)}
	for _, c := range n.Children {
		switch {
		case c.IsText:
			out.Children = append(out.Children, rawChild{IsText: true, Text: substituteText(c.Text, props)})
		case c.Elem.XMLName.Local == "include":
			refid, ok := c.Elem.attr("refid")
			if !ok {
				return nil, errs.New(errs.ErrConfig, "<include> missing refid attribute")
			}
			qn := qualify(namespace, refid)
			for _, s := range stack {
				if s == qn {
					return nil, errs.New(errs.ErrCyclicInclude, qn)
				}
			}
			frag, ok := b.fragments[qn]
			if !ok {
				return nil, errs.Newf(errs.ErrIncompleteElement, "unresolved <include refid=%q>", refid)
			}
			childProps := mergeProps(props, collectIncludeProperties(c.Elem))
			resolved, err := b.resolveIncludes(namespace, frag, append(stack, qn), childProps)
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, resolved.Children...)
		default:
			resolved, err := b.resolveIncludes(namespace, c.Elem, stack, props)
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, rawChild{Elem: resolved})
		}
	}
	return out, nil
}

func collectIncludeProperties(includeEl *rawNode) map[string]string {
	props := make(map[string]string)
	for _, p := range includeEl.elements() {
		if p.XMLName.Local != "property" {
			continue
		}
		name, _ := p.attr("name")
		value, _ := p.attr("value")
		props[name] = value
	}
	return props
}

func mergeProps(outer, inner map[string]string) map[string]string {
	if len(outer) == 0 {
		return inner
	}
	merged := make(map[string]string, len(outer)+len(inner))
	for k, v := range outer {
		merged[k] = v
	}
	for k, v := range inner {
		merged[k] = v
	}
	return merged
}

func substituteAttrs(attrs []xml.Attr, props map[string]string) []xml.Attr {
	if len(props) == 0 {
		return attrs
	}
	out := make([]xml.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = xml.Attr{Name: a.Name, Value: substituteText(a.Value, props)}
	}
	return out
}

func substituteText(text string, props map[string]string) string {
	if len(props) == 0 {
		return text
	}
	for name, value := range props {
		text = strings.ReplaceAll(text, "${"+name+"}", value)
	}
	return text
}

// resolveResultMapExtends merges each pendingResultMap's inherited chain
// into a flat ResultMap, applying spec §4.6's override-by-(column,property)
// rule and constructor-mapping drop rule.
func (b *Builder) resolveResultMapExtends() error {
	resolving := make(map[string]bool)
	var resolve func(qn string) (*ResultMap, error)
	resolve = func(qn string) (*ResultMap, error) {
		pending, ok := b.resultMaps[qn]
		if !ok {
			return nil, errs.Newf(errs.ErrIncompleteElement, "unresolved resultMap reference %q", qn)
		}
		if pending.resolved != nil {
			return pending.resolved, nil
		}
		if resolving[qn] {
			return nil, errs.New(errs.ErrCyclicResultMapExtension, qn)
		}
		resolving[qn] = true
		defer delete(resolving, qn)

		own, discriminator, err := b.parseResultMapBody(pending)
		if err != nil {
			return nil, err
		}

		rm := &ResultMap{
			QualifiedName: pending.qualifiedName,
			Namespace:     pending.namespace,
			Type:          b.resolveTypeName(pending.typeName),
			Mappings:      own,
			Discriminator: discriminator,
			Extends:       pending.extends,
		}
		if pending.autoMapping != "" {
			rm.HasAutoMap = true
			rm.AutoMapping = parseAutoMapping(pending.autoMapping)
		}

		if pending.extends != "" {
			parent, err := resolve(pending.extends)
			if err != nil {
				return nil, err
			}
			rm.Mappings = mergeResultMappings(parent.Mappings, own)
			if rm.Type == nil {
				rm.Type = parent.Type
			}
			if !rm.HasAutoMap {
				rm.AutoMapping = parent.AutoMapping
				rm.HasAutoMap = parent.HasAutoMap
			}
		}

		pending.resolved = rm
		return rm, nil
	}

	// Parsing an <association>/<collection>/<discriminator> body can
	// register fresh synthetic resultMap entries (see parseNested,
	// parseDiscriminator), so resolution runs to a fixed point rather
	// than a single pass over the initial key set.
	for {
		progressed := false
		for qn, pending := range b.resultMaps {
			if pending.resolved != nil {
				continue
			}
			if _, err := resolve(qn); err != nil {
				return err
			}
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return nil
}

// mergeResultMappings implements spec §4.6: parent mappings not overridden
// by a child (column, property) tuple survive; if the child declares any
// constructor mapping, all parent constructor mappings are dropped,
// otherwise constructor mappings from both merge like any other.
func mergeResultMappings(parent, child []ResultMapping) []ResultMapping {
	childHasCtor := lo.SomeBy(child, func(m ResultMapping) bool { return m.Constructor })
	type key struct{ col, prop string }
	childKeys := lo.SliceToMap(child, func(m ResultMapping) (key, bool) {
		return key{m.Column, m.Property}, true
	})

	var merged []ResultMapping
	for _, m := range parent {
		if m.Constructor && childHasCtor {
			continue
		}
		if childKeys[key{m.Column, m.Property}] {
			continue
		}
		merged = append(merged, m)
	}
	merged = append(merged, child...)
	return merged
}

func parseAutoMapping(v string) AutoMappingBehavior {
	switch strings.ToUpper(v) {
	case "FULL":
		return AutoMapFull
	case "NONE":
		return AutoMapNone
	default:
		return AutoMapPartial
	}
}

// resolveCacheRefsFixedPoint resolves <cache-ref> chains, retrying
// unresolved references across passes until the queue stops shrinking
// (spec §4.6, §9's forward-reference work-queue design note).
func (b *Builder) resolveCacheRefsFixedPoint() error {
	pending := lo.Keys(b.cacheRefs)
	for len(pending) > 0 {
		progressed := false
		var next []string
		for _, ns := range pending {
			target := b.cacheRefs[ns]
			if resolvedCfg, ok := b.caches[target]; ok {
				cfg := *resolvedCfg
				cfg.Namespace = ns
				cfg.RefNamespace = target
				b.caches[ns] = &cfg
				progressed = true
				continue
			}
			if _, stillPending := b.cacheRefs[target]; stillPending {
				next = append(next, ns)
				continue
			}
			return errs.Newf(errs.ErrIncompleteElement, "<cache-ref namespace=%q> could not be resolved", target)
		}
		if !progressed && len(next) > 0 {
			return errs.Newf(errs.ErrIncompleteElement, "%d <cache-ref> elements form an unresolvable chain", len(next))
		}
		pending = next
	}
	return nil
}
