package binder_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forbearing/sqlmap/binder"
	"github.com/forbearing/sqlmap/catalog"
	"github.com/forbearing/sqlmap/codec"
	"github.com/forbearing/sqlmap/driver"
	"github.com/forbearing/sqlmap/sqlnode"
)

type fakeStatement struct {
	bound map[int]any
	outs  map[int]bool
}

func newFakeStatement() *fakeStatement {
	return &fakeStatement{bound: make(map[int]any), outs: make(map[int]bool)}
}

func (f *fakeStatement) Bind(ordinal int, value any, _ string) error {
	f.bound[ordinal] = value
	return nil
}
func (f *fakeStatement) RegisterOutput(ordinal int, _ string) error {
	f.outs[ordinal] = true
	return nil
}
func (f *fakeStatement) Execute(context.Context) (driver.Cursor, error) { return nil, nil }
func (f *fakeStatement) Close() error                                  { return nil }
func (f *fakeStatement) SetTimeout(int)                                {}
func (f *fakeStatement) SetFetchSize(int)                              {}

type params struct {
	ID   int
	Name string
}

func TestBindStaticInParameters(t *testing.T) {
	b := binder.New(codec.NewRegistry())
	stmt := newFakeStatement()

	descriptors := []catalog.ParameterDescriptor{
		{Ordinal: 1, Path: "ID", Mode: catalog.In, AppType: reflect.TypeFor[int]()},
		{Ordinal: 2, Path: "Name", Mode: catalog.In, AppType: reflect.TypeFor[string]()},
	}
	require.NoError(t, b.BindStatic(stmt, descriptors, params{ID: 7, Name: "ann"}))
	require.Equal(t, 7, stmt.bound[1])
	require.Equal(t, "ann", stmt.bound[2])
}

func TestBindStaticOutParameter(t *testing.T) {
	b := binder.New(codec.NewRegistry())
	stmt := newFakeStatement()

	descriptors := []catalog.ParameterDescriptor{
		{Ordinal: 1, Path: "ID", Mode: catalog.Out},
	}
	require.NoError(t, b.BindStatic(stmt, descriptors, params{ID: 7}))
	require.True(t, stmt.outs[1])
	require.NotContains(t, stmt.bound, 1)
}

func TestBindDynamicUsesPreResolvedValues(t *testing.T) {
	b := binder.New(codec.NewRegistry())
	stmt := newFakeStatement()

	refs := []sqlnode.ParamRef{
		{Path: "i", Value: 3},
		{Path: "i", Value: 4},
		{Path: "i", Value: 5},
	}
	require.NoError(t, b.BindDynamic(stmt, refs))
	require.Equal(t, 3, stmt.bound[1])
	require.Equal(t, 4, stmt.bound[2])
	require.Equal(t, 5, stmt.bound[3])
}
