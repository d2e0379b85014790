package executor

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// fielder is implemented by values that expose named sub-fields to
// ${name.field} placeholders (filter.Range does).
type fielder interface {
	Field(name string) (any, bool)
}

type placeholder struct {
	name     string
	field    string
	modifier string
}

// Bind rewrites named placeholders into positional arguments.
//
// A placeholder that appears more than once reuses its argument position.
// ${name:list} expands a slice into one argument per element; an empty
// slice binds as NULL so "IN (NULL)" matches nothing. ${name:json} binds the
// JSON encoding of the value. Text inside single-quoted literals and
// double-quoted identifiers is copied unchanged.
func Bind(sql string, params Params) (string, []any, error) {
	var (
		out  strings.Builder
		args []any
		seen = map[string]string{}
	)
	out.Grow(len(sql))

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			end := strings.IndexByte(sql[i+1:], c)
			if end < 0 {
				out.WriteString(sql[i:])
				return out.String(), args, nil
			}
			out.WriteString(sql[i : i+end+2])
			i += end + 1

		case c == '$' && i+1 < len(sql) && sql[i+1] == '{':
			end := strings.IndexByte(sql[i:], '}')
			if end < 0 {
				return "", nil, fmt.Errorf("%w: unterminated at offset %d", ErrBadPlaceholder, i)
			}
			token := sql[i+2 : i+end]
			i += end

			if text, ok := seen[token]; ok {
				out.WriteString(text)
				continue
			}
			ph, err := parsePlaceholder(token)
			if err != nil {
				return "", nil, err
			}
			value, err := lookup(params, ph)
			if err != nil {
				return "", nil, err
			}
			text, bound, err := expand(ph, value, len(args))
			if err != nil {
				return "", nil, err
			}
			args = append(args, bound...)
			seen[token] = text
			out.WriteString(text)

		default:
			out.WriteByte(c)
		}
	}
	return out.String(), args, nil
}

func parsePlaceholder(token string) (placeholder, error) {
	var ph placeholder
	name := token
	if idx := strings.IndexByte(name, ':'); idx >= 0 {
		ph.modifier = name[idx+1:]
		name = name[:idx]
	}
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		ph.field = name[idx+1:]
		name = name[:idx]
	}
	ph.name = strings.TrimSpace(name)
	if ph.name == "" {
		return ph, fmt.Errorf("%w: ${%s}", ErrBadPlaceholder, token)
	}
	switch ph.modifier {
	case "", "list", "json":
	default:
		return ph, fmt.Errorf("%w: unknown modifier %q in ${%s}", ErrBadPlaceholder, ph.modifier, token)
	}
	return ph, nil
}

func lookup(params Params, ph placeholder) (any, error) {
	value, ok := params[ph.name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingParam, ph.name)
	}
	if ph.field == "" {
		return value, nil
	}
	switch v := value.(type) {
	case fielder:
		if f, ok := v.Field(ph.field); ok {
			return f, nil
		}
	case map[string]any:
		if f, ok := v[ph.field]; ok {
			return f, nil
		}
	case Params:
		if f, ok := v[ph.field]; ok {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrMissingParam, ph.name, ph.field)
}

// expand renders the positional text for one placeholder, numbering from
// offset+1, and returns the arguments it consumes.
func expand(ph placeholder, value any, offset int) (string, []any, error) {
	switch ph.modifier {
	case "list":
		items, ok := listValues(value)
		if !ok {
			return "", nil, fmt.Errorf("%w: ${%s:list} needs a slice, got %T", ErrBadPlaceholder, ph.name, value)
		}
		if len(items) == 0 {
			return "NULL", nil, nil
		}
		refs := make([]string, len(items))
		for i := range items {
			refs[i] = "$" + strconv.Itoa(offset+i+1)
		}
		return strings.Join(refs, ", "), items, nil

	case "json":
		b, err := json.Marshal(value)
		if err != nil {
			return "", nil, fmt.Errorf("encode ${%s:json}: %w", ph.name, err)
		}
		return "$" + strconv.Itoa(offset+1), []any{string(b)}, nil
	}
	return "$" + strconv.Itoa(offset+1), []any{value}, nil
}

func listValues(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []byte, string, nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
