package navigator_test

import (
	"testing"

	"github.com/forbearing/sqlmap/internal/navigator"
	"github.com/stretchr/testify/require"
)

type Addr struct {
	City string
}

type Person struct {
	Name  string
	Addr  *Addr
	Tags  map[string]string
	Items []string
}

func TestReadWriteRoundTrip(t *testing.T) {
	p := &Person{}
	require.NoError(t, navigator.Write(p, "Name", "Ada"))
	got, err := navigator.Read(p, "Name")
	require.NoError(t, err)
	require.Equal(t, "Ada", got)
}

func TestWriteMaterializesIntermediateNilPointer(t *testing.T) {
	p := &Person{}
	require.NoError(t, navigator.Write(p, "Addr.City", "Berlin"))
	require.NotNil(t, p.Addr)
	require.Equal(t, "Berlin", p.Addr.City)
}

func TestReadIntermediateNilYieldsNil(t *testing.T) {
	p := &Person{}
	got, err := navigator.Read(p, "Addr.City")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMapKeyAccess(t *testing.T) {
	p := &Person{}
	require.NoError(t, navigator.Write(p, "Tags[env]", "prod"))
	got, err := navigator.Read(p, "Tags[env]")
	require.NoError(t, err)
	require.Equal(t, "prod", got)
}

func TestSliceIndexAccess(t *testing.T) {
	p := &Person{Items: []string{"a", "b", "c"}}
	got, err := navigator.Read(p, "Items[1]")
	require.NoError(t, err)
	require.Equal(t, "b", got)
}

func TestUnindexableNode(t *testing.T) {
	p := &Person{Name: "Ada"}
	_, err := navigator.Read(p, "Name[0]")
	require.Error(t, err)
}
