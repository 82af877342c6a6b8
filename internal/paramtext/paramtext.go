// Package paramtext is the token-parameter parser (component D). It
// performs a single, escape-aware left-to-right scan of raw SQL text,
// substituting #{name, opt=val, ...} placeholders at compile time (each
// becomes a "?" plus a Placeholder descriptor) and ${name} interpolations
// at evaluation time (resolved and stringified in place, no quoting).
package paramtext

import (
	"strconv"
	"strings"

	"github.com/forbearing/sqlmap/errs"
)

// ParamOptions are the recognized #{...} options from spec §4.4.
type ParamOptions struct {
	JavaType        string
	JdbcType        string
	Mode            string // IN, OUT, INOUT
	NumericScale    int
	HasNumericScale bool
	ResultMap       string
	TypeHandler     string
	JdbcTypeName    string
}

// Placeholder is one #{...} occurrence found during Static.
type Placeholder struct {
	Name    string
	Options ParamOptions
}

// HasDynamicMarkers reports whether sql contains any unescaped ${...},
// which forces the owning statement to become a Dynamic Source regardless
// of what else it contains.
func HasDynamicMarkers(sql string) bool {
	for i := 0; i < len(sql); i++ {
		if sql[i] == '\\' && i+1 < len(sql) {
			i++
			continue
		}
		if sql[i] == '$' && i+1 < len(sql) && sql[i+1] == '{' {
			return true
		}
	}
	return false
}

// Static replaces every #{...} in sql with "?" and returns the cleaned SQL
// plus the ordered placeholders found, for the caller to turn into
// parameter descriptors. A placeholder with an unrecognized option fails
// with errs.ErrUnknownParameterOption.
func Static(sql string) (string, []Placeholder, error) {
	var out strings.Builder
	var phs []Placeholder
	i := 0
	for i < len(sql) {
		c := sql[i]
		if c == '\\' && i+1 < len(sql) && (sql[i+1] == '#' || sql[i+1] == '$') {
			out.WriteByte(sql[i+1])
			i += 2
			continue
		}
		if c == '#' && i+1 < len(sql) && sql[i+1] == '{' {
			end := strings.IndexByte(sql[i+2:], '}')
			if end < 0 {
				return "", nil, errs.New(errs.ErrConfig, "unterminated #{ in sql")
			}
			body := sql[i+2 : i+2+end]
			ph, err := parsePlaceholder(body)
			if err != nil {
				return "", nil, err
			}
			phs = append(phs, ph)
			out.WriteByte('?')
			i = i + 2 + end + 1
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String(), phs, nil
}

// Interpolate replaces every ${name} in sql with stringify(lookup(name)),
// unquoted, for runtime evaluation of an InterpolatedText node.
func Interpolate(sql string, lookup func(name string) (any, error), stringify func(any) (string, error)) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(sql) {
		c := sql[i]
		if c == '\\' && i+1 < len(sql) && (sql[i+1] == '#' || sql[i+1] == '$') {
			out.WriteByte(sql[i+1])
			i += 2
			continue
		}
		if c == '$' && i+1 < len(sql) && sql[i+1] == '{' {
			end := strings.IndexByte(sql[i+2:], '}')
			if end < 0 {
				return "", errs.New(errs.ErrExecution, "unterminated ${ in sql")
			}
			name := strings.TrimSpace(sql[i+2 : i+2+end])
			val, err := lookup(name)
			if err != nil {
				return "", err
			}
			s, err := stringify(val)
			if err != nil {
				return "", err
			}
			out.WriteString(s)
			i = i + 2 + end + 1
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String(), nil
}

func parsePlaceholder(body string) (Placeholder, error) {
	parts := strings.Split(body, ",")
	if len(parts) == 0 || strings.TrimSpace(parts[0]) == "" {
		return Placeholder{}, errs.New(errs.ErrConfig, "empty #{} placeholder")
	}
	ph := Placeholder{Name: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return Placeholder{}, errs.New(errs.ErrConfig, "malformed #{} option: "+p)
		}
		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		switch key {
		case "javaType":
			ph.Options.JavaType = val
		case "jdbcType":
			ph.Options.JdbcType = val
		case "mode":
			ph.Options.Mode = val
		case "numericScale":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Placeholder{}, errs.New(errs.ErrConfig, "invalid numericScale: "+val)
			}
			ph.Options.NumericScale = n
			ph.Options.HasNumericScale = true
		case "resultMap":
			ph.Options.ResultMap = val
		case "typeHandler":
			ph.Options.TypeHandler = val
		case "jdbcTypeName":
			ph.Options.JdbcTypeName = val
		default:
			return Placeholder{}, errs.Newf(errs.ErrUnknownParameterOption, "unknown #{} option %q", key)
		}
	}
	return ph, nil
}
