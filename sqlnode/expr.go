package sqlnode

import (
	"strconv"
	"strings"

	"github.com/forbearing/sqlmap/errs"
	"github.com/spf13/cast"
)

// EvalTest evaluates a test expression (§Glossary: property access,
// comparisons, boolean connectives, string/number literals) against scope
// and returns its truthiness.
func EvalTest(expr string, scope *Scope) (bool, error) {
	v, err := EvalValue(expr, scope)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

// EvalValue evaluates expr to a value, for VarDecl and for the leaf of a
// test expression.
func EvalValue(expr string, scope *Scope) (any, error) {
	p := &exprParser{toks: tokenize(expr), scope: scope}
	v, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, errs.New(errs.ErrConfig, "unexpected trailing tokens in expression: "+expr)
	}
	return v, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		f, _ := cast.ToFloat64E(x)
		return f != 0
	default:
		return true
	}
}

type token struct {
	kind string // "ident", "num", "str", "op", "lparen", "rparen"
	text string
}

func tokenize(expr string) []token {
	var toks []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{"lparen", "("})
			i++
		case c == ')':
			toks = append(toks, token{"rparen", ")"})
			i++
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(expr) && expr[j] != quote {
				j++
			}
			toks = append(toks, token{"str", expr[i+1 : j]})
			i = j + 1
		case strings.HasPrefix(expr[i:], "=="), strings.HasPrefix(expr[i:], "!="),
			strings.HasPrefix(expr[i:], "<="), strings.HasPrefix(expr[i:], ">="):
			toks = append(toks, token{"op", expr[i : i+2]})
			i += 2
		case c == '<' || c == '>':
			toks = append(toks, token{"op", string(c)})
			i++
		default:
			j := i
			for j < len(expr) && !strings.ContainsRune(" \t\n\r()=!<>", rune(expr[j])) {
				j++
			}
			if j == i {
				i++
				continue
			}
			toks = append(toks, token{"ident", expr[i:j]})
			i = j
		}
	}
	return toks
}

type exprParser struct {
	toks  []token
	pos   int
	scope *Scope
}

func (p *exprParser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *exprParser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *exprParser) parseOr() (any, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != "ident" || !strings.EqualFold(t.text, "or") {
			return left, nil
		}
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = truthy(left) || truthy(right)
	}
}

func (p *exprParser) parseAnd() (any, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != "ident" || !strings.EqualFold(t.text, "and") {
			return left, nil
		}
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = truthy(left) && truthy(right)
	}
}

func (p *exprParser) parseNot() (any, error) {
	if t, ok := p.peek(); ok && t.kind == "ident" && strings.EqualFold(t.text, "not") {
		p.next()
		v, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	}
	return p.parseComparison()
}

func (p *exprParser) parseComparison() (any, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	t, ok := p.peek()
	if !ok || t.kind != "op" {
		return left, nil
	}
	p.next()
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return compare(t.text, left, right)
}

func (p *exprParser) parsePrimary() (any, error) {
	t, ok := p.next()
	if !ok {
		return nil, errs.New(errs.ErrConfig, "unexpected end of expression")
	}
	switch t.kind {
	case "lparen":
		v, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if r, ok := p.next(); !ok || r.kind != "rparen" {
			return nil, errs.New(errs.ErrConfig, "unclosed parenthesis in expression")
		}
		return v, nil
	case "str":
		return t.text, nil
	case "ident":
		switch strings.ToLower(t.text) {
		case "null", "nil":
			return nil, nil
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		if n, err := strconv.ParseFloat(t.text, 64); err == nil {
			return n, nil
		}
		return p.scope.Lookup(t.text)
	default:
		return nil, errs.New(errs.ErrConfig, "unexpected token in expression: "+t.text)
	}
}

func compare(op string, a, b any) (bool, error) {
	switch op {
	case "==":
		return equal(a, b), nil
	case "!=":
		return !equal(a, b), nil
	}
	af, aerr := cast.ToFloat64E(a)
	bf, berr := cast.ToFloat64E(b)
	if aerr == nil && berr == nil {
		switch op {
		case "<":
			return af < bf, nil
		case "<=":
			return af <= bf, nil
		case ">":
			return af > bf, nil
		case ">=":
			return af >= bf, nil
		}
	}
	as, _ := cast.ToStringE(a)
	bs, _ := cast.ToStringE(b)
	switch op {
	case "<":
		return as < bs, nil
	case "<=":
		return as <= bs, nil
	case ">":
		return as > bs, nil
	case ">=":
		return as >= bs, nil
	}
	return false, errs.New(errs.ErrConfig, "unsupported comparison operator: "+op)
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aerr := cast.ToFloat64E(a); aerr == nil {
		if bf, berr := cast.ToFloat64E(b); berr == nil {
			return af == bf
		}
	}
	as, aerr := cast.ToStringE(a)
	bs, berr := cast.ToStringE(b)
	if aerr == nil && berr == nil {
		return as == bs
	}
	return a == b
}
