package catalog

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/forbearing/sqlmap/errs"
	"github.com/forbearing/sqlmap/internal/pathexpr"
	"github.com/forbearing/sqlmap/internal/paramtext"
	"github.com/forbearing/sqlmap/internal/reflectmeta"
)

// Build finalizes a resolved Builder into an immutable Catalog. Each
// statement body is classified Static or Dynamic (spec §4.6) and
// compiled accordingly; each resolved result map is copied into the
// catalog verbatim.
func (b *Builder) Build() (*Catalog, error) {
	if !b.resolved {
		if err := b.Resolve(); err != nil {
			return nil, err
		}
	}

	cat := &Catalog{
		statements: make(map[string]*Statement),
		resultMaps: make(map[string]*ResultMap),
		caches:     make(map[string]*CacheConfig),
	}

	// compileStatement may register synthetic resultType-only result maps
	// (see below), so statements compile before result maps are copied.
	for qn, stmt := range b.statements {
		compiled, err := b.compileStatement(stmt)
		if err != nil {
			return nil, errs.Statement(err, qn)
		}
		cat.statements[qn] = compiled
	}

	for qn, p := range b.resultMaps {
		if p.resolved == nil {
			return nil, errs.Newf(errs.ErrIncompleteElement, "resultMap %q never resolved", qn)
		}
		cat.resultMaps[qn] = p.resolved
	}
	for ns, cfg := range b.caches {
		cat.caches[ns] = cfg
	}

	return cat, nil
}

func (b *Builder) compileStatement(p *pendingStatement) (*Statement, error) {
	paramType := b.resolveTypeName(p.attrs["parameterType"])

	var source SQLSource
	var err error
	if isDynamicBody(p.body) {
		root, cerr := compileChildren(p.body.Children)
		if cerr != nil {
			return nil, cerr
		}
		source = DynamicSource{Root: root}
	} else {
		source, err = b.compileStaticSource(flattenStaticText(p.body), paramType)
		if err != nil {
			return nil, err
		}
	}

	stmt := &Statement{
		QualifiedName: p.qualifiedName,
		Namespace:     p.namespace,
		Command:       p.command,
		Source:        source,
		ParamType:     paramType,
		ResultMaps:    p.resultMaps,
		FlushCache:    p.attrs["flushCache"] == "true",
		UseCache:      p.attrs["useCache"] != "false",
		DatabaseID:    p.attrs["databaseId"],
		KeyGen: KeyGenerator{
			UseGeneratedKeys: p.attrs["useGeneratedKeys"] == "true",
			KeyProperty:      p.attrs["keyProperty"],
			KeyColumn:        p.attrs["keyColumn"],
			KeyType:          p.attrs["keyType"],
		},
	}
	if v, ok := p.attrs["fetchSize"]; ok {
		if n, cerr := strconv.Atoi(v); cerr == nil {
			stmt.FetchSize, stmt.HasFetchSize = n, true
		}
	}
	if v, ok := p.attrs["timeout"]; ok {
		if n, cerr := strconv.Atoi(v); cerr == nil {
			stmt.Timeout, stmt.HasTimeout = n, true
		}
	}
	if stmt.Command == Select && len(stmt.ResultMaps) == 0 {
		if rt, ok := p.attrs["resultType"]; ok {
			cat := qualify(p.namespace, "$resultType$"+rt)
			stmt.ResultMaps = []string{cat}
			if _, exists := b.resultMaps[cat]; !exists {
				b.resultMaps[cat] = &pendingResultMap{
					qualifiedName: cat,
					namespace:     p.namespace,
					typeName:      rt,
					raw:           &rawNode{},
					resolved: &ResultMap{
						QualifiedName: cat,
						Namespace:     p.namespace,
						Type:          b.resolveTypeName(rt),
						AutoMapping:   AutoMapPartial,
					},
				}
			}
		}
	}
	return stmt, nil
}

func (b *Builder) compileStaticSource(sql string, paramType reflect.Type) (StaticSource, error) {
	clean, phs, err := paramtext.Static(sql)
	if err != nil {
		return StaticSource{}, err
	}
	descriptors := make([]ParameterDescriptor, 0, len(phs))
	for i, ph := range phs {
		d := ParameterDescriptor{
			Ordinal:      i + 1,
			Path:         ph.Name,
			DBType:       ph.Options.JdbcType,
			Codec:        ph.Options.TypeHandler,
			NumericScale: ph.Options.NumericScale,
			HasScale:     ph.Options.HasNumericScale,
			Mode:         parseParamMode(ph.Options.Mode),
		}
		d.AppType = b.resolveParamAppType(paramType, ph.Name, ph.Options.JavaType, d.Mode)
		descriptors = append(descriptors, d)
	}
	return StaticSource{SQL: clean, Params: descriptors}, nil
}

func parseParamMode(mode string) ParamMode {
	switch strings.ToUpper(mode) {
	case "OUT":
		return Out
	case "INOUT":
		return InOut
	default:
		return In
	}
}

// resolveParamAppType picks a descriptor's application type in this
// order: explicit javaType; then, for an OUT parameter, opaque; then the
// declared parameter type's property named by the path's first segment
// (via B); then opaque. Opaque is nil: the binder/codec registry falls
// back to its opaque codec, resolving lazily once a runtime value's type
// is known. There is no cursor type: an OUT parameter without javaType,
// cursor or not, is always opaque and never takes the property type.
func (b *Builder) resolveParamAppType(paramType reflect.Type, path, javaType string, mode ParamMode) reflect.Type {
	if javaType != "" {
		return b.resolveTypeName(javaType)
	}
	if mode == Out {
		return nil
	}
	if paramType == nil {
		return nil
	}
	segs, err := pathexpr.Tokenize(path)
	if err != nil || len(segs) == 0 {
		return nil
	}
	t := paramType
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	meta, err := reflectmeta.Of(t)
	if err != nil {
		return nil
	}
	acc, ok := meta.Property(segs[0].Name)
	if !ok {
		return nil
	}
	return acc.Type
}
