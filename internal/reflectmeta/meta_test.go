package reflectmeta_test

import (
	"reflect"
	"sync"
	"testing"

	"github.com/forbearing/sqlmap/internal/reflectmeta"
	"github.com/stretchr/testify/require"
)

type Address struct {
	Line string `db:"line"`
	City string `db:"city"`
}

type Person struct {
	ID        int64 `db:"id"`
	Name      string
	Addresses []Address
	Tags      map[string]string
}

func TestFieldAccessors(t *testing.T) {
	m, err := reflectmeta.Of(reflect.TypeOf(Person{}))
	require.NoError(t, err)

	acc, ok := m.Property("id")
	require.True(t, ok)
	require.True(t, acc.Readable)
	require.True(t, acc.Writable)

	p := Person{}
	v := reflect.ValueOf(&p).Elem()
	require.NoError(t, acc.Set(v, reflect.ValueOf(int64(7))))
	got, err := acc.Get(v)
	require.NoError(t, err)
	require.Equal(t, int64(7), got.Interface())
}

func TestCaseInsensitiveCanonical(t *testing.T) {
	m, err := reflectmeta.Of(reflect.TypeOf(Person{}))
	require.NoError(t, err)
	canon, ok := m.Canonical("NAME")
	require.True(t, ok)
	require.Equal(t, "Name", canon)
}

func TestElementTypeResolution(t *testing.T) {
	m, err := reflectmeta.Of(reflect.TypeOf(Person{}))
	require.NoError(t, err)
	acc, ok := m.Property("Addresses")
	require.True(t, ok)
	require.Equal(t, reflect.TypeOf(Address{}), acc.ElemType)
}

func TestNewNullaryConstructor(t *testing.T) {
	m, err := reflectmeta.Of(reflect.TypeOf(Address{}))
	require.NoError(t, err)
	v, err := m.New()
	require.NoError(t, err)
	require.True(t, v.IsValid())
}

func TestConcurrentFirstPopulationConverges(t *testing.T) {
	type Once struct{ X int }
	var wg sync.WaitGroup
	results := make([]*reflectmeta.TypeMeta, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := reflectmeta.Of(reflect.TypeOf(Once{}))
			require.NoError(t, err)
			results[i] = m
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		require.Same(t, results[0], r)
	}
}
