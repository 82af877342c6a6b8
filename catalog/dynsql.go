package catalog

import (
	"strings"

	"github.com/forbearing/sqlmap/errs"
	"github.com/forbearing/sqlmap/internal/paramtext"
	"github.com/forbearing/sqlmap/sqlnode"
)

// isDynamicBody reports whether a (post-include-substitution) statement or
// fragment body must become a Dynamic Source: any surviving element is a
// dynamic tag (plain <sql>/<include> have already been flattened away by
// Resolve), and any text run may still carry ${...} interpolation (spec
// §4.6).
func isDynamicBody(n *rawNode) bool {
	for _, c := range n.Children {
		if c.Elem != nil {
			return true
		}
		if paramtext.HasDynamicMarkers(c.Text) {
			return true
		}
	}
	return false
}

// flattenStaticText concatenates a body's text runs for the Static Source
// path; it is only called once isDynamicBody has confirmed there are no
// element children and no ${...} markers.
func flattenStaticText(n *rawNode) string {
	var b strings.Builder
	for _, c := range n.Children {
		b.WriteString(c.Text)
	}
	return b.String()
}

// compileChildren compiles an ordered list of text/element children into a
// single sqlnode.Node.
func compileChildren(children []rawChild) (sqlnode.Node, error) {
	var nodes []sqlnode.Node
	for _, c := range children {
		if c.IsText {
			if paramtext.HasDynamicMarkers(c.Text) {
				nodes = append(nodes, sqlnode.InterpolatedText{Text: c.Text})
			} else {
				nodes = append(nodes, sqlnode.StaticText{Text: c.Text})
			}
			continue
		}
		child, err := compileElement(c.Elem)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, child)
	}
	return sqlnode.Mixed{Children: nodes}, nil
}

func compileElement(el *rawNode) (sqlnode.Node, error) {
	switch el.XMLName.Local {
	case "if":
		child, err := compileChildren(el.Children)
		if err != nil {
			return nil, err
		}
		test, _ := el.attr("test")
		return sqlnode.If{Test: test, Child: child}, nil

	case "choose":
		var whens []sqlnode.When
		var otherwise sqlnode.Node
		for _, c := range el.elements() {
			switch c.XMLName.Local {
			case "when":
				child, err := compileChildren(c.Children)
				if err != nil {
					return nil, err
				}
				test, _ := c.attr("test")
				whens = append(whens, sqlnode.When{Test: test, Child: child})
			case "otherwise":
				child, err := compileChildren(c.Children)
				if err != nil {
					return nil, err
				}
				otherwise = child
			}
		}
		return sqlnode.Choose{Whens: whens, Otherwise: otherwise}, nil

	case "trim":
		child, err := compileChildren(el.Children)
		if err != nil {
			return nil, err
		}
		return sqlnode.Trim{
			Prefix:          el.attrOr("prefix", ""),
			Suffix:          el.attrOr("suffix", ""),
			PrefixOverrides: splitOverrides(el.attrOr("prefixOverrides", "")),
			SuffixOverrides: splitOverrides(el.attrOr("suffixOverrides", "")),
			Child:           child,
		}, nil

	case "where":
		child, err := compileChildren(el.Children)
		if err != nil {
			return nil, err
		}
		return sqlnode.Where(child), nil

	case "set":
		child, err := compileChildren(el.Children)
		if err != nil {
			return nil, err
		}
		return sqlnode.Set(child), nil

	case "foreach":
		child, err := compileChildren(el.Children)
		if err != nil {
			return nil, err
		}
		collection, _ := el.attr("collection")
		item, _ := el.attr("item")
		return sqlnode.ForEach{
			Collection: collection,
			Item:       item,
			Index:      el.attrOr("index", ""),
			Open:       el.attrOr("open", ""),
			Close:      el.attrOr("close", ""),
			Separator:  el.attrOr("separator", ""),
			Child:      child,
		}, nil

	case "bind":
		name, _ := el.attr("name")
		value, _ := el.attr("value")
		return sqlnode.VarDecl{Name: name, Expr: value}, nil

	default:
		return nil, errs.Newf(errs.ErrConfig, "unrecognized dynamic SQL tag <%s>", el.XMLName.Local)
	}
}

func splitOverrides(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
