package sqlnode_test

import (
	"testing"

	"github.com/forbearing/sqlmap/sqlnode"
	"github.com/stretchr/testify/require"
)

func TestStaticPlaceholder(t *testing.T) {
	scope := sqlnode.NewScope(map[string]any{"id": 7})
	acc := sqlnode.NewAccumulator()
	n := sqlnode.StaticText{Text: "SELECT id FROM t WHERE id = #{id}"}
	require.NoError(t, n.Evaluate(scope, acc))
	require.Equal(t, "SELECT id FROM t WHERE id = ?", acc.SQL())
	require.Equal(t, []any{7}, []any{acc.Params[0].Value})
}

func TestWhereTrim(t *testing.T) {
	mkNode := func() sqlnode.Node {
		return sqlnode.Where(sqlnode.Mixed{Children: []sqlnode.Node{
			sqlnode.If{Test: "a != null", Child: sqlnode.StaticText{Text: "AND a = #{a}"}},
			sqlnode.If{Test: "b != null", Child: sqlnode.StaticText{Text: "AND b = #{b}"}},
		}})
	}

	scope1 := sqlnode.NewScope(map[string]any{"a": 1, "b": nil})
	acc1 := sqlnode.NewAccumulator()
	require.NoError(t, mkNode().Evaluate(scope1, acc1))
	require.Equal(t, "WHERE a = ?", acc1.SQL())
	require.Len(t, acc1.Params, 1)

	scope2 := sqlnode.NewScope(map[string]any{"a": nil, "b": nil})
	acc2 := sqlnode.NewAccumulator()
	require.NoError(t, mkNode().Evaluate(scope2, acc2))
	require.Equal(t, "", acc2.SQL())
	require.Len(t, acc2.Params, 0)
}

func TestForEach(t *testing.T) {
	n := sqlnode.Mixed{Children: []sqlnode.Node{
		sqlnode.StaticText{Text: "SELECT * FROM t WHERE id IN "},
		sqlnode.ForEach{
			Collection: "ids", Item: "i", Open: "(", Close: ")", Separator: ",",
			Child: sqlnode.StaticText{Text: "#{i}"},
		},
	}}

	scope := sqlnode.NewScope(map[string]any{"ids": []int{3, 4, 5}})
	acc := sqlnode.NewAccumulator()
	require.NoError(t, n.Evaluate(scope, acc))
	require.Equal(t, "SELECT * FROM t WHERE id IN (?,?,?)", acc.SQL())
	require.Len(t, acc.Params, 3)
	require.Equal(t, 3, acc.Params[0].Value)
	require.Equal(t, 4, acc.Params[1].Value)
	require.Equal(t, 5, acc.Params[2].Value)

	scopeEmpty := sqlnode.NewScope(map[string]any{"ids": []int{}})
	accEmpty := sqlnode.NewAccumulator()
	require.NoError(t, n.Evaluate(scopeEmpty, accEmpty))
	require.Equal(t, "SELECT * FROM t WHERE id IN ()", accEmpty.SQL())
	require.Len(t, accEmpty.Params, 0)
}

func TestForEachNullCollectionFails(t *testing.T) {
	n := sqlnode.ForEach{Collection: "ids", Item: "i", Child: sqlnode.StaticText{Text: "#{i}"}}
	scope := sqlnode.NewScope(map[string]any{"ids": nil})
	acc := sqlnode.NewAccumulator()
	require.Error(t, n.Evaluate(scope, acc))
}

func TestInterpolatedInclude(t *testing.T) {
	n := sqlnode.Mixed{Children: []sqlnode.Node{
		sqlnode.StaticText{Text: "SELECT "},
		sqlnode.InterpolatedText{Text: "${alias}.id, ${alias}.name"},
		sqlnode.StaticText{Text: " FROM person p"},
	}}
	scope := sqlnode.NewScope(map[string]any{"alias": "p"})
	acc := sqlnode.NewAccumulator()
	require.NoError(t, n.Evaluate(scope, acc))
	require.Equal(t, "SELECT p.id, p.name FROM person p", acc.SQL())
}

func TestDeterminism(t *testing.T) {
	mk := func() sqlnode.Node {
		return sqlnode.Where(sqlnode.If{Test: "a != null", Child: sqlnode.StaticText{Text: "AND a = #{a}"}})
	}
	scope := func() *sqlnode.Scope { return sqlnode.NewScope(map[string]any{"a": 5}) }

	acc1 := sqlnode.NewAccumulator()
	require.NoError(t, mk().Evaluate(scope(), acc1))
	acc2 := sqlnode.NewAccumulator()
	require.NoError(t, mk().Evaluate(scope(), acc2))
	require.Equal(t, acc1.SQL(), acc2.SQL())
	require.Equal(t, acc1.Params, acc2.Params)
}

func TestChoose(t *testing.T) {
	n := sqlnode.Choose{
		Whens: []sqlnode.When{
			{Test: "type == 'a'", Child: sqlnode.StaticText{Text: "A"}},
			{Test: "type == 'b'", Child: sqlnode.StaticText{Text: "B"}},
		},
		Otherwise: sqlnode.StaticText{Text: "C"},
	}
	scope := sqlnode.NewScope(map[string]any{"type": "b"})
	acc := sqlnode.NewAccumulator()
	require.NoError(t, n.Evaluate(scope, acc))
	require.Equal(t, "B", acc.SQL())
}
