package sqlnode

import (
	"strings"

	"github.com/forbearing/sqlmap/internal/navigator"
	"github.com/forbearing/sqlmap/internal/pathexpr"
)

// Scope is the evaluation scope from spec §3/§Glossary: a chain of
// name->value mappings layered over the caller's parameter object. Lookup
// checks local bindings (from VarDecl/ForEach) before falling through to
// the host parameter object's properties via the object navigator.
// Scopes nest on ForEach iterations and are discarded on exit; VarDecl
// binds into the scope it is evaluated in.
type Scope struct {
	parent *Scope
	locals map[string]any
	param  any // only set on the root scope
}

// NewScope creates the root scope wrapping the invocation's parameter object.
func NewScope(param any) *Scope {
	return &Scope{param: param}
}

// Child creates a nested scope for a ForEach iteration.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s}
}

// Bind adds a local binding visible to this scope and its children.
func (s *Scope) Bind(name string, value any) {
	if s.locals == nil {
		s.locals = make(map[string]any)
	}
	s.locals[name] = value
}

func (s *Scope) root() *Scope {
	cur := s
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// Lookup resolves expr (a possibly dotted/indexed property expression)
// against local bindings first, then the host parameter object. A missing
// intermediate yields (nil, nil), matching the navigator's null-propagation
// read semantics.
func (s *Scope) Lookup(expr string) (any, error) {
	segs, err := pathexpr.Tokenize(expr)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, nil
	}
	first := segs[0].Name

	for cur := s; cur != nil; cur = cur.parent {
		local, ok := cur.locals[first]
		if !ok {
			continue
		}
		if len(segs) == 1 && !segs[0].HasIndex {
			return local, nil
		}
		rest := rebuild(segs[0], segs[1:])
		return navigator.Read(map[string]any{"v": local}, rest)
	}

	root := s.root()
	if root.param != nil {
		return navigator.Read(root.param, expr)
	}
	return nil, nil
}

// rebuild reconstructs a navigator-compatible path string "v[idx].rest..."
// for re-navigating a local binding by everything after its own name.
func rebuild(first pathexpr.Segment, rest []pathexpr.Segment) string {
	var b strings.Builder
	b.WriteString("v")
	if first.HasIndex {
		b.WriteByte('[')
		b.WriteString(first.Index)
		b.WriteByte(']')
	}
	for _, seg := range rest {
		if seg.Name != "" {
			b.WriteByte('.')
			b.WriteString(seg.Name)
		}
		if seg.HasIndex {
			b.WriteByte('[')
			b.WriteString(seg.Index)
			b.WriteByte(']')
		}
	}
	return b.String()
}
