// Package sqlnode is the SQL node tree (component F): a tagged-variant AST
// of static and dynamic SQL fragments, evaluated against a Scope to
// produce a text+bindings pair. Evaluation is exhaustive over the node
// kinds below (a missing case is a compile error, not a runtime one),
// matching spec §9's "closed enum of node kinds" design note.
//
// The accumulator is linear: nodes only ever append, matching §4.7's "no
// rewind" contract.
package sqlnode

import (
	"strings"

	"github.com/forbearing/sqlmap/errs"
	"github.com/forbearing/sqlmap/internal/paramtext"
	"github.com/spf13/cast"
)

// ParamRef is one #{...} placeholder discovered while evaluating a dynamic
// source. Unlike a compile-time ParameterDescriptor, Value is already
// resolved against the Scope active at the point of discovery — this is
// what lets the same literal placeholder name inside a <foreach> body bind
// a different value on every iteration.
type ParamRef struct {
	Path    string
	Options paramtext.ParamOptions
	Value   any
}

// Accumulator is the mutable buffer a Node tree evaluates into: the
// produced SQL text plus the ordered list of parameter references
// discovered along the way.
type Accumulator struct {
	text   strings.Builder
	Params []ParamRef
}

func NewAccumulator() *Accumulator { return &Accumulator{} }

func (a *Accumulator) writeLiteral(s string) { a.text.WriteString(s) }

// SQL returns the text accumulated so far.
func (a *Accumulator) SQL() string { return a.text.String() }

// Node is the single operation every SQL node kind implements.
type Node interface {
	Evaluate(scope *Scope, acc *Accumulator) error
}

// StaticText is a literal SQL fragment that may still contain #{...}
// placeholders (resolved fresh on every evaluation for a dynamic source).
type StaticText struct{ Text string }

func (n StaticText) Evaluate(scope *Scope, acc *Accumulator) error {
	clean, phs, err := paramtext.Static(n.Text)
	if err != nil {
		return err
	}
	acc.writeLiteral(clean)
	for _, ph := range phs {
		val, err := scope.Lookup(ph.Name)
		if err != nil {
			return errs.Path(err, ph.Name)
		}
		acc.Params = append(acc.Params, ParamRef{Path: ph.Name, Options: ph.Options, Value: val})
	}
	return nil
}

// InterpolatedText is a literal containing ${...} segments resolved at
// evaluation time by text substitution; it produces no binding.
type InterpolatedText struct{ Text string }

func (n InterpolatedText) Evaluate(scope *Scope, acc *Accumulator) error {
	out, err := paramtext.Interpolate(n.Text, func(name string) (any, error) {
		return scope.Lookup(name)
	}, stringify)
	if err != nil {
		return err
	}
	acc.writeLiteral(out)
	return nil
}

func stringify(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	return cast.ToStringE(v)
}

// If evaluates Child only when Test is truthy against scope.
type If struct {
	Test  string
	Child Node
}

func (n If) Evaluate(scope *Scope, acc *Accumulator) error {
	ok, err := EvalTest(n.Test, scope)
	if err != nil {
		return err
	}
	if ok {
		return n.Child.Evaluate(scope, acc)
	}
	return nil
}

// When is one branch of a Choose.
type When struct {
	Test  string
	Child Node
}

// Choose evaluates Whens in order, stopping at the first truthy test;
// Otherwise runs if no When matched and it is present.
type Choose struct {
	Whens     []When
	Otherwise Node
}

func (n Choose) Evaluate(scope *Scope, acc *Accumulator) error {
	for _, w := range n.Whens {
		ok, err := EvalTest(w.Test, scope)
		if err != nil {
			return err
		}
		if ok {
			return w.Child.Evaluate(scope, acc)
		}
	}
	if n.Otherwise != nil {
		return n.Otherwise.Evaluate(scope, acc)
	}
	return nil
}

// Trim evaluates Child, strips a single matching prefix/suffix override
// (case-insensitive, at the trimmed leading/trailing position), then wraps
// the remainder in Prefix/Suffix — unless the remainder is empty, in which
// case Trim contributes nothing at all.
type Trim struct {
	Prefix, Suffix                   string
	PrefixOverrides, SuffixOverrides []string
	Child                            Node
}

func (n Trim) Evaluate(scope *Scope, acc *Accumulator) error {
	sub := NewAccumulator()
	if err := n.Child.Evaluate(scope, sub); err != nil {
		return err
	}
	body := strings.TrimSpace(sub.SQL())
	body = stripOverride(body, n.PrefixOverrides, true)
	body = stripOverride(body, n.SuffixOverrides, false)
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	acc.writeLiteral(n.Prefix + body + n.Suffix)
	acc.Params = append(acc.Params, sub.Params...)
	return nil
}

func stripOverride(s string, overrides []string, leading bool) string {
	for _, ov := range overrides {
		if leading {
			if len(s) >= len(ov) && strings.EqualFold(s[:len(ov)], ov) {
				return s[len(ov):]
			}
		} else {
			if len(s) >= len(ov) && strings.EqualFold(s[len(s)-len(ov):], ov) {
				return s[:len(s)-len(ov)]
			}
		}
	}
	return s
}

// Where is Trim with prefix "WHERE " and the standard AND/OR overrides.
func Where(child Node) Trim {
	return Trim{
		Prefix: "WHERE ",
		PrefixOverrides: []string{
			"AND ", "OR ", "AND\t", "OR\t", "AND\n", "OR\n",
		},
		Child: child,
	}
}

// Set is Trim with prefix "SET " and a trailing-comma suffix override.
func Set(child Node) Trim {
	return Trim{
		Prefix:          "SET ",
		SuffixOverrides: []string{","},
		Child:           child,
	}
}

// ForEach iterates a sequence, mapping, or array read from scope, emitting
// Open before the first iteration, Close after the last, and Separator
// between iterations. Each iteration gets a fresh child scope binding Item
// and Index. An empty collection still emits Open/Close with no body
// between them; a nil collection fails.
type ForEach struct {
	Collection string
	Item       string
	Index      string
	Open       string
	Close      string
	Separator  string
	Child      Node
}

func (n ForEach) Evaluate(scope *Scope, acc *Accumulator) error {
	val, err := scope.Lookup(n.Collection)
	if err != nil {
		return err
	}
	if val == nil {
		return errs.New(errs.ErrNullForEachCollection, n.Collection)
	}
	items, keys, err := iterate(val)
	if err != nil {
		return errs.Path(err, n.Collection)
	}
	acc.writeLiteral(n.Open)
	for i, item := range items {
		if i > 0 {
			acc.writeLiteral(n.Separator)
		}
		child := scope.Child()
		if n.Item != "" {
			child.Bind(n.Item, item)
		}
		if n.Index != "" {
			child.Bind(n.Index, keys[i])
		}
		sub := NewAccumulator()
		if err := n.Child.Evaluate(child, sub); err != nil {
			return err
		}
		acc.writeLiteral(sub.SQL())
		acc.Params = append(acc.Params, sub.Params...)
	}
	acc.writeLiteral(n.Close)
	return nil
}

// VarDecl evaluates Expr and binds the result under Name for subsequent
// sibling/child nodes, following ordinary lexical shadowing.
type VarDecl struct {
	Name string
	Expr string
}

func (n VarDecl) Evaluate(scope *Scope, acc *Accumulator) error {
	val, err := EvalValue(n.Expr, scope)
	if err != nil {
		return err
	}
	scope.Bind(n.Name, val)
	return nil
}

// Mixed evaluates its children in order.
type Mixed struct{ Children []Node }

func (n Mixed) Evaluate(scope *Scope, acc *Accumulator) error {
	for _, c := range n.Children {
		if err := c.Evaluate(scope, acc); err != nil {
			return err
		}
	}
	return nil
}
