package paramtext_test

import (
	"fmt"
	"testing"

	"github.com/forbearing/sqlmap/internal/paramtext"
	"github.com/stretchr/testify/require"
)

func TestStaticSimple(t *testing.T) {
	sql, phs, err := paramtext.Static("SELECT id FROM t WHERE id = #{id}")
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM t WHERE id = ?", sql)
	require.Len(t, phs, 1)
	require.Equal(t, "id", phs[0].Name)
}

func TestStaticWithOptions(t *testing.T) {
	sql, phs, err := paramtext.Static("#{age, javaType=int, jdbcType=INTEGER, mode=IN}")
	require.NoError(t, err)
	require.Equal(t, "?", sql)
	require.Equal(t, "age", phs[0].Name)
	require.Equal(t, "int", phs[0].Options.JavaType)
	require.Equal(t, "INTEGER", phs[0].Options.JdbcType)
	require.Equal(t, "IN", phs[0].Options.Mode)
}

func TestStaticUnknownOption(t *testing.T) {
	_, _, err := paramtext.Static("#{id, bogus=1}")
	require.Error(t, err)
}

func TestInterpolate(t *testing.T) {
	sql, err := paramtext.Interpolate("${alias}.id, ${alias}.name", func(name string) (any, error) {
		return "p", nil
	}, func(v any) (string, error) { return fmt.Sprint(v), nil })
	require.NoError(t, err)
	require.Equal(t, "p.id, p.name", sql)
}

func TestHasDynamicMarkers(t *testing.T) {
	require.True(t, paramtext.HasDynamicMarkers("SELECT ${col} FROM t"))
	require.False(t, paramtext.HasDynamicMarkers("SELECT id FROM t WHERE id = #{id}"))
}

func TestMultiplePlaceholdersOrdered(t *testing.T) {
	sql, phs, err := paramtext.Static("WHERE a = #{a} AND b = #{b}")
	require.NoError(t, err)
	require.Equal(t, "WHERE a = ? AND b = ?", sql)
	require.Equal(t, []string{"a", "b"}, []string{phs[0].Name, phs[1].Name})
}
