// Package binder is the parameter binder (component H): it walks a
// statement's ordered parameter list and applies each value onto a
// driver.Statement through the codec registry, following spec §4.8.
//
// A Static Source's ordered catalog.ParameterDescriptor list is read
// through the Object Navigator against the invocation's parameter object
// (ordinals were fixed at compile time). A Dynamic Source instead hands
// the binder the sqlnode.ParamRef list its evaluation produced — each
// ref's Value was already resolved against the evaluation Scope active
// at the point its #{...} was discovered, so the binder here only
// applies codecs and ordinals; it does not re-navigate anything.
package binder

import (
	"reflect"

	"github.com/forbearing/sqlmap/catalog"
	"github.com/forbearing/sqlmap/codec"
	"github.com/forbearing/sqlmap/driver"
	"github.com/forbearing/sqlmap/errs"
	"github.com/forbearing/sqlmap/internal/navigator"
	"github.com/forbearing/sqlmap/sqlnode"
)

// Binder applies resolved parameter values onto a driver.Statement.
type Binder struct {
	codecs *codec.Registry
}

// New returns a Binder backed by registry for codec lookups.
func New(registry *codec.Registry) *Binder {
	return &Binder{codecs: registry}
}

// BindStatic binds a Static Source's descriptor list against param onto
// stmt. Ordinals are 1-based and contiguous, matching the descriptor
// list's own Ordinal field (spec §4.8).
func (b *Binder) BindStatic(stmt driver.Statement, descriptors []catalog.ParameterDescriptor, param any) error {
	for _, d := range descriptors {
		var value any
		if d.Mode != catalog.Out {
			v, err := navigator.Read(param, d.Path)
			if err != nil {
				return errs.Wrap(errs.ErrBinding, err, "reading parameter "+d.Path)
			}
			value = v
		}

		appType := d.AppType
		if appType == nil && value != nil {
			appType = reflect.TypeOf(value)
		}
		c := b.codecs.Lookup(appType, d.DBType)

		switch d.Mode {
		case catalog.Out:
			if err := stmt.RegisterOutput(d.Ordinal, d.DBType); err != nil {
				return errs.Wrap(errs.ErrBinding, err, "registering OUT parameter "+d.Path)
			}
		case catalog.InOut:
			encoded, err := c.Encode(value)
			if err != nil {
				return errs.Path(errs.Wrap(errs.ErrBinding, err, "encoding parameter"), d.Path)
			}
			if err := stmt.Bind(d.Ordinal, encoded, d.DBType); err != nil {
				return errs.Wrap(errs.ErrBinding, err, "binding parameter "+d.Path)
			}
			if err := stmt.RegisterOutput(d.Ordinal, d.DBType); err != nil {
				return errs.Wrap(errs.ErrBinding, err, "registering INOUT parameter "+d.Path)
			}
		default: // In
			encoded, err := c.Encode(value)
			if err != nil {
				return errs.Path(errs.Wrap(errs.ErrBinding, err, "encoding parameter"), d.Path)
			}
			if err := stmt.Bind(d.Ordinal, encoded, d.DBType); err != nil {
				return errs.Wrap(errs.ErrBinding, err, "binding parameter "+d.Path)
			}
		}
	}
	return nil
}

// BindDynamic binds a Dynamic Source's already-resolved ParamRef list
// (produced by evaluating its sqlnode.Node tree) onto stmt, in order.
func (b *Binder) BindDynamic(stmt driver.Statement, refs []sqlnode.ParamRef) error {
	for i, ref := range refs {
		ordinal := i + 1
		mode := parseMode(ref.Options.Mode)

		var value any
		if mode != catalog.Out {
			value = ref.Value
		}
		var appType reflect.Type
		if value != nil {
			appType = reflect.TypeOf(value)
		}
		c := b.codecs.Lookup(appType, ref.Options.JdbcType)

		switch mode {
		case catalog.Out:
			if err := stmt.RegisterOutput(ordinal, ref.Options.JdbcType); err != nil {
				return errs.Wrap(errs.ErrBinding, err, "registering OUT parameter "+ref.Path)
			}
		case catalog.InOut:
			encoded, err := c.Encode(value)
			if err != nil {
				return errs.Path(errs.Wrap(errs.ErrBinding, err, "encoding parameter"), ref.Path)
			}
			if err := stmt.Bind(ordinal, encoded, ref.Options.JdbcType); err != nil {
				return errs.Wrap(errs.ErrBinding, err, "binding parameter "+ref.Path)
			}
			if err := stmt.RegisterOutput(ordinal, ref.Options.JdbcType); err != nil {
				return errs.Wrap(errs.ErrBinding, err, "registering INOUT parameter "+ref.Path)
			}
		default:
			encoded, err := c.Encode(value)
			if err != nil {
				return errs.Path(errs.Wrap(errs.ErrBinding, err, "encoding parameter"), ref.Path)
			}
			if err := stmt.Bind(ordinal, encoded, ref.Options.JdbcType); err != nil {
				return errs.Wrap(errs.ErrBinding, err, "binding parameter "+ref.Path)
			}
		}
	}
	return nil
}

func parseMode(mode string) catalog.ParamMode {
	switch mode {
	case "OUT":
		return catalog.Out
	case "INOUT":
		return catalog.InOut
	default:
		return catalog.In
	}
}
