package catalog

import "github.com/forbearing/sqlmap/errs"

// parseResultMapBody walks one <resultMap>'s direct children into the
// mapping's own (non-inherited) ResultMapping list plus its optional
// Discriminator. Inline <association>/<collection> bodies with no
// resultMap attribute are synthesized into a fresh qualified resultMap
// entry registered under the parent's name, so nested mapping resolution
// (spec §4.9) only ever has to deal with named result maps.
func (b *Builder) parseResultMapBody(p *pendingResultMap) ([]ResultMapping, *Discriminator, error) {
	var mappings []ResultMapping
	var disc *Discriminator

	for _, el := range p.raw.elements() {
		switch el.XMLName.Local {
		case "id", "result":
			m, err := b.parseLeafMapping(el, el.XMLName.Local == "id", false)
			if err != nil {
				return nil, nil, err
			}
			mappings = append(mappings, m)
		case "constructor":
			for _, arg := range el.elements() {
				m, err := b.parseLeafMapping(arg, arg.XMLName.Local == "idArg", true)
				if err != nil {
					return nil, nil, err
				}
				mappings = append(mappings, m)
			}
		case "association":
			m, err := b.parseNested(p, el, false)
			if err != nil {
				return nil, nil, err
			}
			mappings = append(mappings, m)
		case "collection":
			m, err := b.parseNested(p, el, true)
			if err != nil {
				return nil, nil, err
			}
			mappings = append(mappings, m)
		case "discriminator":
			d, err := b.parseDiscriminator(p, el)
			if err != nil {
				return nil, nil, err
			}
			disc = d
		}
	}
	return mappings, disc, nil
}

func (b *Builder) parseLeafMapping(el *rawNode, id, constructor bool) (ResultMapping, error) {
	property, _ := el.attr("property")
	column, hasCol := el.attr("column")
	if !hasCol {
		column, _ = el.attr("name") // <idArg name="..."> when unnamed ctor arg
	}
	return ResultMapping{
		Property:    property,
		Column:      column,
		AppType:     b.resolveTypeName(el.attrOr("javaType", "")),
		DBType:      el.attrOr("jdbcType", ""),
		Codec:       el.attrOr("typeHandler", ""),
		Constructor: constructor,
		ID:          id,
	}, nil
}

func (b *Builder) parseNested(parent *pendingResultMap, el *rawNode, collection bool) (ResultMapping, error) {
	property, _ := el.attr("property")
	column, _ := el.attr("column")

	if selectID, ok := el.attr("select"); ok {
		return ResultMapping{
			Property: property,
			Column:   column,
			NestedQuery: &NestedQuery{
				Statement:  qualify(parent.namespace, selectID),
				Column:     column,
				Lazy:       el.attrOr("fetchType", "") == "lazy",
				Collection: collection,
			},
		}, nil
	}

	refID, hasRef := el.attr("resultMap")
	var nestedQN string
	if hasRef {
		nestedQN = qualify(parent.namespace, refID)
	} else {
		nestedQN = parent.qualifiedName + "$" + property
		if _, exists := b.resultMaps[nestedQN]; !exists {
			b.resultMaps[nestedQN] = &pendingResultMap{
				qualifiedName: nestedQN,
				namespace:     parent.namespace,
				typeName:      el.attrOr("javaType", el.attrOr("ofType", "")),
				raw:           el,
			}
		}
	}

	var notNull []string
	if v, ok := el.attr("notNullColumn"); ok {
		notNull = append(notNull, v)
	}

	return ResultMapping{
		Property: property,
		Column:   column,
		Nested: &NestedResultMap{
			ResultMap:    nestedQN,
			ColumnPrefix: el.attrOr("columnPrefix", ""),
			NotNullCols:  notNull,
			Collection:   collection,
		},
	}, nil
}

func (b *Builder) parseDiscriminator(parent *pendingResultMap, el *rawNode) (*Discriminator, error) {
	column, ok := el.attr("column")
	if !ok {
		return nil, errs.New(errs.ErrConfig, "<discriminator> missing column attribute")
	}
	d := &Discriminator{
		Column:  column,
		AppType: b.resolveTypeName(el.attrOr("javaType", "")),
		DBType:  el.attrOr("jdbcType", ""),
		Cases:   make(map[string]string),
	}
	for _, c := range el.elements() {
		if c.XMLName.Local != "case" {
			continue
		}
		value, _ := c.attr("value")
		if refID, ok := c.attr("resultMap"); ok {
			d.Cases[value] = qualify(parent.namespace, refID)
			continue
		}
		caseQN := parent.qualifiedName + "$case$" + value
		if _, exists := b.resultMaps[caseQN]; !exists {
			b.resultMaps[caseQN] = &pendingResultMap{
				qualifiedName: caseQN,
				namespace:     parent.namespace,
				typeName:      parent.typeName,
				raw:           c,
			}
		}
		d.Cases[value] = caseQN
	}
	return d, nil
}
