package session_test

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"

	"github.com/forbearing/sqlmap/catalog"
	"github.com/forbearing/sqlmap/codec"
	"github.com/forbearing/sqlmap/config"
	"github.com/forbearing/sqlmap/driver"
	"github.com/forbearing/sqlmap/driver/sqlstd"
	"github.com/forbearing/sqlmap/session"
)

type person struct {
	ID   int64
	Name string
	Age  int
	Pets []*pet
}

type pet struct {
	ID    int64
	Name  string
	Owner int64
}

const mappingDoc = `<mapper namespace="person">
	<cache/>

	<resultMap id="personMap" type="person">
		<id property="ID" column="id"/>
		<result property="Name" column="name"/>
		<result property="Age" column="age"/>
		<collection property="Pets" column="id" select="person.petsByOwner"/>
	</resultMap>

	<insert id="create" useGeneratedKeys="true" keyProperty="ID">
		INSERT INTO person (name, age) VALUES (#{Name}, #{Age})
	</insert>

	<select id="byId" resultMap="personMap">
		SELECT id, name, age FROM person WHERE id = #{value}
	</select>

	<select id="all" resultMap="personMap" useCache="true">
		SELECT id, name, age FROM person ORDER BY id
	</select>

	<update id="rename">
		UPDATE person SET name = #{Name} WHERE id = #{ID}
	</update>

	<delete id="remove" flushCache="true">
		DELETE FROM person WHERE id = #{value}
	</delete>
</mapper>`

const petMappingDoc = `<mapper namespace="person">
	<resultMap id="petMap" type="pet">
		<id property="ID" column="id"/>
		<result property="Name" column="name"/>
		<result property="Owner" column="owner"/>
	</resultMap>

	<select id="petsByOwner" resultMap="petMap">
		SELECT id, name, owner FROM pet WHERE owner = #{value}
	</select>
</mapper>`

func openTestFactory(t *testing.T, db *sql.DB) *session.Factory {
	t.Helper()

	b := catalog.NewBuilder()
	b.RegisterType("person", person{})
	b.RegisterType("pet", pet{})
	require.NoError(t, b.Emit([]byte(mappingDoc)))
	require.NoError(t, b.Emit([]byte(petMappingDoc)))
	cat, err := b.Build()
	require.NoError(t, err)

	factory, err := session.Open(session.Options{
		Catalog:     cat,
		Codecs:      codec.NewRegistry(),
		Mapping:     config.Mapping{CacheEnabled: true},
		Environment: "test",
		Connect: func(ctx context.Context) (driver.Conn, error) {
			return sqlstd.Wrap(db), nil
		},
	})
	require.NoError(t, err)
	return factory
}

func TestSessionCRUDAndNestedCollection(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE person (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, age INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE pet (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, owner INTEGER)`)
	require.NoError(t, err)

	factory := openTestFactory(t, db)

	ctx := context.Background()
	sess, err := factory.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	p := &person{Name: "Ada", Age: 30}
	affected, err := sess.Insert(ctx, "person.create", p)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)
	require.NotZero(t, p.ID)

	_, err = db.Exec(`INSERT INTO pet (name, owner) VALUES (?, ?)`, "Rex", p.ID)
	require.NoError(t, err)

	var one *person
	require.NoError(t, sess.SelectOne(ctx, "person.byId", p.ID, &one))
	require.Equal(t, "Ada", one.Name)
	require.Len(t, one.Pets, 1)
	require.Equal(t, "Rex", one.Pets[0].Name)

	var all []*person
	require.NoError(t, sess.Select(ctx, "person.all", nil, &all))
	require.Len(t, all, 1)

	// Second call hits the session's first-tier cache filled by the first
	// (nothing has been committed to the second tier yet).
	var cached []*person
	require.NoError(t, sess.Select(ctx, "person.all", nil, &cached))
	require.Len(t, cached, 1)
	require.Equal(t, "Ada", cached[0].Name)

	renamed := &person{ID: p.ID, Name: "Ada Lovelace"}
	affected, err = sess.Update(ctx, "person.rename", renamed)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	// flushCache on remove invalidates the cached "all" list.
	affected, err = sess.Delete(ctx, "person.remove", p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	var empty []*person
	require.NoError(t, sess.Select(ctx, "person.all", nil, &empty))
	require.Len(t, empty, 0)
}

func TestSessionTransactionRollback(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE person (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, age INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE pet (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, owner INTEGER)`)
	require.NoError(t, err)

	factory := openTestFactory(t, db)

	ctx := context.Background()
	sess, err := factory.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.Begin(ctx))
	_, err = sess.Insert(ctx, "person.create", &person{Name: "Grace", Age: 40})
	require.NoError(t, err)
	require.NoError(t, sess.Rollback())

	var all []*person
	require.NoError(t, sess.Select(ctx, "person.all", nil, &all))
	require.Len(t, all, 0)
}
