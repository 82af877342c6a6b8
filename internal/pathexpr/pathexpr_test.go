package pathexpr_test

import (
	"testing"

	"github.com/forbearing/sqlmap/internal/pathexpr"
	"github.com/stretchr/testify/require"
)

func TestTokenizeSimple(t *testing.T) {
	segs, err := pathexpr.Tokenize("a.b.c")
	require.NoError(t, err)
	require.Equal(t, []pathexpr.Segment{
		{Name: "a"}, {Name: "b"}, {Name: "c"},
	}, segs)
}

func TestTokenizeIndexed(t *testing.T) {
	segs, err := pathexpr.Tokenize("a.b[k].c[0]")
	require.NoError(t, err)
	require.Equal(t, []pathexpr.Segment{
		{Name: "a"},
		{Name: "b", Index: "k", HasIndex: true},
		{Name: "c", Index: "0", HasIndex: true},
	}, segs)
}

func TestTokenizeDotInsideBracket(t *testing.T) {
	segs, err := pathexpr.Tokenize("a[b.c]")
	require.NoError(t, err)
	require.Equal(t, []pathexpr.Segment{
		{Name: "a", Index: "b.c", HasIndex: true},
	}, segs)
}

func TestTokenizeNestedBracketsFail(t *testing.T) {
	_, err := pathexpr.Tokenize("a[b[c]]")
	require.Error(t, err)
}

func TestTokenizeUnclosedBracketFails(t *testing.T) {
	_, err := pathexpr.Tokenize("a[b")
	require.Error(t, err)
}

func TestTokenizeIdempotent(t *testing.T) {
	segs1, err := pathexpr.Tokenize("a.b[k].c[0]")
	require.NoError(t, err)
	var rebuilt string
	for i, s := range segs1 {
		if i > 0 {
			rebuilt += "."
		}
		rebuilt += s.Name
		if s.HasIndex {
			rebuilt += "[" + s.Index + "]"
		}
	}
	segs2, err := pathexpr.Tokenize(rebuilt)
	require.NoError(t, err)
	require.Equal(t, segs1, segs2)
}
