package rowmap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forbearing/sqlmap/catalog"
	"github.com/forbearing/sqlmap/codec"
	"github.com/forbearing/sqlmap/driver"
	"github.com/forbearing/sqlmap/rowmap"
)

type person struct {
	ID        int
	Name      string
	Addresses []address
}

type address struct {
	ID   int
	Line string
}

// fakeCursor replays a fixed slice of rows (column name -> raw value) as
// a driver.Cursor, the way go-sqlmock would replay canned rows in an
// integration test.
type fakeCursor struct {
	cols []string
	rows []map[string]any
	i    int
}

func (c *fakeCursor) Next() bool {
	if c.i >= len(c.rows) {
		return false
	}
	c.i++
	return true
}

func (c *fakeCursor) Columns() ([]string, error) { return c.cols, nil }

func (c *fakeCursor) Column(nameOrOrdinal any) (driver.Cell, error) {
	name, _ := nameOrOrdinal.(string)
	return driver.Cell{Value: c.rows[c.i-1][name]}, nil
}

func (c *fakeCursor) Err() error   { return nil }
func (c *fakeCursor) Close() error { return nil }

func buildCatalog(t *testing.T, doc string, types map[string]any) *catalog.Catalog {
	t.Helper()
	b := catalog.NewBuilder()
	for name, sample := range types {
		b.RegisterType(name, sample)
	}
	require.NoError(t, b.Emit([]byte(doc)))
	cat, err := b.Build()
	require.NoError(t, err)
	return cat
}

func TestFlatResultMap(t *testing.T) {
	cat := buildCatalog(t, `<mapper namespace="t">
		<resultMap id="personMap" type="person">
			<id property="ID" column="id"/>
			<result property="Name" column="name"/>
		</resultMap>
	</mapper>`, map[string]any{"person": person{}})

	mapper := rowmap.New(rowmap.Options{Catalog: cat, Codecs: codec.NewRegistry()})
	cursor := &fakeCursor{
		cols: []string{"id", "name"},
		rows: []map[string]any{
			{"id": int64(1), "name": "John"},
			{"id": int64(2), "name": "Ann"},
		},
	}

	results, err := mapper.MapRows(cursor, "t.personMap")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "John", results[0].(*person).Name)
	require.Equal(t, "Ann", results[1].(*person).Name)
}

// TestNestedCollectionS5 is spec scenario S5: two joined rows sharing the
// same person identity collapse into one person with a two-element
// Addresses collection.
func TestNestedCollectionS5(t *testing.T) {
	cat := buildCatalog(t, `<mapper namespace="t">
		<resultMap id="addressMap" type="address">
			<id property="ID" column="id"/>
			<result property="Line" column="line"/>
		</resultMap>
		<resultMap id="personMap" type="person">
			<id property="ID" column="id"/>
			<result property="Name" column="name"/>
			<collection property="Addresses" resultMap="t.addressMap" columnPrefix="addr_"/>
		</resultMap>
	</mapper>`, map[string]any{"person": person{}, "address": address{}})

	mapper := rowmap.New(rowmap.Options{Catalog: cat, Codecs: codec.NewRegistry()})
	cursor := &fakeCursor{
		cols: []string{"id", "name", "addr_id", "addr_line"},
		rows: []map[string]any{
			{"id": int64(1), "name": "John", "addr_id": int64(1), "addr_line": "Addr1"},
			{"id": int64(1), "name": "John", "addr_id": int64(2), "addr_line": "Addr2"},
		},
	}

	results, err := mapper.MapRows(cursor, "t.personMap")
	require.NoError(t, err)
	require.Len(t, results, 1)

	p := results[0].(*person)
	require.Equal(t, 1, p.ID)
	require.Equal(t, "John", p.Name)
	require.Len(t, p.Addresses, 2)
	require.Equal(t, "Addr1", p.Addresses[0].Line)
	require.Equal(t, "Addr2", p.Addresses[1].Line)
}

func TestNullObjectPolicy(t *testing.T) {
	cat := buildCatalog(t, `<mapper namespace="t">
		<resultMap id="addressMap" type="address">
			<id property="ID" column="id"/>
			<result property="Line" column="line"/>
		</resultMap>
		<resultMap id="personMap" type="person">
			<id property="ID" column="id"/>
			<result property="Name" column="name"/>
			<association property="Addresses" resultMap="t.addressMap" columnPrefix="addr_" notNullColumn="id"/>
		</resultMap>
	</mapper>`, map[string]any{"person": person{}, "address": address{}})

	mapper := rowmap.New(rowmap.Options{Catalog: cat, Codecs: codec.NewRegistry()})
	cursor := &fakeCursor{
		cols: []string{"id", "name", "addr_id", "addr_line"},
		rows: []map[string]any{
			{"id": int64(1), "name": "John", "addr_id": nil, "addr_line": nil},
		},
	}

	results, err := mapper.MapRows(cursor, "t.personMap")
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestDiscriminator(t *testing.T) {
	cat := buildCatalog(t, `<mapper namespace="t">
		<resultMap id="addressMap" type="address">
			<id property="ID" column="id"/>
			<result property="Line" column="line"/>
		</resultMap>
		<resultMap id="baseMap" type="person">
			<id property="ID" column="id"/>
			<discriminator column="kind" javaType="string">
				<case value="full" resultMap="t.addressMap"/>
			</discriminator>
		</resultMap>
	</mapper>`, map[string]any{"person": person{}, "address": address{}, "string": ""})

	mapper := rowmap.New(rowmap.Options{Catalog: cat, Codecs: codec.NewRegistry()})
	cursor := &fakeCursor{
		cols: []string{"id", "kind", "line"},
		rows: []map[string]any{
			{"id": int64(9), "kind": "full", "line": "L1"},
		},
	}

	results, err := mapper.MapRows(cursor, "t.baseMap")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.IsType(t, &address{}, results[0])
}

func TestNestedQueryEager(t *testing.T) {
	cat := buildCatalog(t, `<mapper namespace="t">
		<resultMap id="personMap" type="person">
			<id property="ID" column="id"/>
			<association property="Name" select="t.lookupName" column="id"/>
		</resultMap>
	</mapper>`, map[string]any{"person": person{}})

	var calledWith any
	mapper := rowmap.New(rowmap.Options{
		Catalog: cat,
		Codecs:  codec.NewRegistry(),
		NestedQuery: func(stmt string, key any) (any, error) {
			calledWith = key
			require.Equal(t, "t.lookupName", stmt)
			return "Resolved", nil
		},
	})
	cursor := &fakeCursor{
		cols: []string{"id"},
		rows: []map[string]any{{"id": int64(5)}},
	}

	results, err := mapper.MapRows(cursor, "t.personMap")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Resolved", results[0].(*person).Name)
	require.Equal(t, int64(5), calledWith)
}

func TestNestedQueryCollection(t *testing.T) {
	cat := buildCatalog(t, `<mapper namespace="t">
		<resultMap id="personMap" type="person">
			<id property="ID" column="id"/>
			<collection property="Addresses" select="t.lookupAddresses" column="id"/>
		</resultMap>
	</mapper>`, map[string]any{"person": person{}})

	mapper := rowmap.New(rowmap.Options{
		Catalog: cat,
		Codecs:  codec.NewRegistry(),
		NestedQuery: func(stmt string, key any) (any, error) {
			require.Equal(t, "t.lookupAddresses", stmt)
			require.Equal(t, int64(5), key)
			return []any{&address{ID: 1, Line: "L1"}, &address{ID: 2, Line: "L2"}}, nil
		},
	})
	cursor := &fakeCursor{
		cols: []string{"id"},
		rows: []map[string]any{{"id": int64(5)}},
	}

	results, err := mapper.MapRows(cursor, "t.personMap")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, []address{{ID: 1, Line: "L1"}, {ID: 2, Line: "L2"}}, results[0].(*person).Addresses)
}
