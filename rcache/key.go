package rcache

import (
	"fmt"
	"strconv"

	"github.com/segmentio/fasthash/fnv1a"
)

// Key is a Cache Entry's identity (spec §3 Glossary "Cache Entry"):
// the statement's qualified name, its final bound SQL text, the ordered
// bound parameter values, an optional pagination window, and the
// configured environment id.
type Key struct {
	Statement   string
	SQL         string
	Params      []any
	Offset      int
	HasOffset   bool
	Limit       int
	HasLimit    bool
	Environment string
}

// String renders Key to a stable, collision-resistant cache key. Params
// are hashed via fmt.Sprint, which stringifies a Go array and a Go slice
// holding the same elements identically ("[1 2 3]" either way) — this is
// what gives array-vs-slice bindings the same cache key, the literal
// reading of the corresponding Open Question recorded in DESIGN.md.
func (k Key) String() string {
	h := fnv1a.Init64
	h = fnv1a.AddString64(h, k.Statement)
	h = fnv1a.AddString64(h, k.SQL)
	for _, p := range k.Params {
		h = fnv1a.AddString64(h, fmt.Sprint(p))
	}
	if k.HasOffset {
		h = fnv1a.AddUint64(h, uint64(k.Offset))
	}
	if k.HasLimit {
		h = fnv1a.AddUint64(h, uint64(k.Limit))
	}
	h = fnv1a.AddString64(h, k.Environment)
	return strconv.FormatUint(h, 16)
}
