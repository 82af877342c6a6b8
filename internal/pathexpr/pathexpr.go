// Package pathexpr tokenizes dotted/indexed property expressions such as
// "a.b[k].c[0]" into an ordered sequence of segments, the way the
// reflection-heavy layers of the catalog and binder need to walk a
// parameter or result object graph one hop at a time.
package pathexpr

import (
	"iter"
	"strings"

	"github.com/forbearing/sqlmap/errs"
)

// Segment is one hop of a property path: a name, and an optional bracketed
// index whose content is passed through uninterpreted (it may be an
// integer ordinal or a mapping key — the navigator decides which).
type Segment struct {
	Name     string
	Index    string
	HasIndex bool
}

// Tokenize performs a single left-to-right scan of expr and returns its
// segments in order. Tokenization is re-entrant: calling Tokenize again on
// the same or a reassembled string yields identical segments.
//
// "." inside a bracket is part of the index, not a segment separator.
// Nested brackets are not supported and fail with errs.ErrMalformedPath.
func Tokenize(expr string) ([]Segment, error) {
	var segs []Segment
	for seg, err := range All(expr) {
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// All returns a lazy sequence of segments, yielding a fresh scan on every
// call so callers can iterate the same path expression independently and
// concurrently.
func All(expr string) iter.Seq2[Segment, error] {
	return func(yield func(Segment, error) bool) {
		var name strings.Builder
		var idx strings.Builder
		inBracket := false
		haveIndex := false

		flush := func() bool {
			if name.Len() == 0 && !haveIndex {
				return true
			}
			seg := Segment{Name: name.String(), Index: idx.String(), HasIndex: haveIndex}
			name.Reset()
			idx.Reset()
			haveIndex = false
			return yield(seg, nil)
		}

		for i := 0; i < len(expr); i++ {
			c := expr[i]
			switch {
			case c == '[' && !inBracket:
				inBracket = true
				haveIndex = true
			case c == '[' && inBracket:
				yield(Segment{}, errs.New(errs.ErrMalformedPath, "nested brackets in path: "+expr))
				return
			case c == ']' && inBracket:
				inBracket = false
			case c == '.' && !inBracket:
				if !flush() {
					return
				}
			case inBracket:
				idx.WriteByte(c)
			default:
				name.WriteByte(c)
			}
		}
		if inBracket {
			yield(Segment{}, errs.New(errs.ErrMalformedPath, "unclosed bracket in path: "+expr))
			return
		}
		flush()
	}
}
