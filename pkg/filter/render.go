package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"strconv"
	"time"

	"github.com/realityu/pgnest/internal/sqlgen/sqldsl"
)

// opPattern accepts symbolic operators (>, <=, !=, ~*, @>) and word
// operators (LIKE, NOT ILIKE, IS NOT, SIMILAR TO). Operators are inlined
// verbatim, so nothing else is allowed through.
var opPattern = regexp.MustCompile(`^(?:[<>=!~*@&|%^#?-]{1,3}|[A-Za-z]+(?: [A-Za-z]+){0,3})$`)

// Render lowers one column filter into a SQL predicate.
func Render(col sqldsl.Col, f Filter) (sqldsl.Expr, error) {
	switch f := f.(type) {
	case Equals:
		rhs, err := renderScalar(f.Value)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.SQL(), err)
		}
		return sqldsl.Eq(col, rhs), nil

	case Compare:
		op, err := checkOp(f.Op)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.SQL(), err)
		}
		rhs, err := renderScalar(f.Value)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.SQL(), err)
		}
		return sqldsl.Cmp{Left: col, Op: op, Right: rhs}, nil

	case InList:
		switch v := f.Values.(type) {
		case Param:
			ph := sqldsl.Placeholder{Name: string(v), Kind: sqldsl.ListParam}
			return sqldsl.In{Expr: col, Values: []sqldsl.Expr{ph}, Negate: f.Negate}, nil
		case List:
			values := make([]sqldsl.Expr, len(v))
			for i, item := range v {
				lit, err := Literal(item)
				if err != nil {
					return nil, fmt.Errorf("column %s: %w", col.SQL(), err)
				}
				values[i] = lit
			}
			return sqldsl.In{Expr: col, Values: values, Negate: f.Negate}, nil
		}

	case Between:
		switch v := f.Range.(type) {
		case Param:
			return sqldsl.Between{
				Expr:   col,
				Low:    sqldsl.Placeholder{Name: string(v), Field: "low"},
				High:   sqldsl.Placeholder{Name: string(v), Field: "high"},
				Negate: f.Negate,
			}, nil
		case Range:
			low, err := Literal(v.Low)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col.SQL(), err)
			}
			high, err := Literal(v.High)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col.SQL(), err)
			}
			return sqldsl.Between{Expr: col, Low: low, High: high, Negate: f.Negate}, nil
		}
	}
	return nil, fmt.Errorf("%w: column %s: unsupported filter %T", ErrInvalidFilter, col.SQL(), f)
}

// RenderMap renders every term of m against table, in insertion order.
func RenderMap(table string, m Map) ([]sqldsl.Expr, error) {
	out := make([]sqldsl.Expr, 0, m.Len())
	for _, t := range m.terms {
		e, err := Render(sqldsl.Col{Table: table, Column: t.Column}, t.Filter)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func renderScalar(v ScalarOperand) (sqldsl.Expr, error) {
	switch v := v.(type) {
	case Param:
		return sqldsl.Placeholder{Name: string(v)}, nil
	case Lit:
		return Literal(v.Value)
	}
	return nil, fmt.Errorf("%w: unsupported operand %T", ErrInvalidFilter, v)
}

func checkOp(op string) (string, error) {
	switch normalizeOp(op) {
	case "IN", "NOT IN", "NOTIN", "BETWEEN", "NOT BETWEEN":
		return "", fmt.Errorf("%w: operator %q needs an InList or Between filter", ErrInvalidFilter, op)
	}
	if !opPattern.MatchString(op) {
		return "", fmt.Errorf("%w: operator %q", ErrInvalidFilter, op)
	}
	return op, nil
}

// Literal renders a Go value as an escaped SQL literal. Strings are quoted
// with embedded quotes doubled, slices are comma-joined element by element,
// and nil renders NULL. 64-bit integers render as exact decimal text.
func Literal(v any) (sqldsl.Expr, error) {
	switch v := v.(type) {
	case nil:
		return sqldsl.Null{}, nil
	case string:
		return sqldsl.Lit(v), nil
	case bool:
		return sqldsl.Bool(v), nil
	case int:
		return sqldsl.Int(v), nil
	case int8:
		return sqldsl.Int(v), nil
	case int16:
		return sqldsl.Int(v), nil
	case int32:
		return sqldsl.Int(v), nil
	case int64:
		return sqldsl.Int(v), nil
	case uint:
		return sqldsl.Raw(strconv.FormatUint(uint64(v), 10)), nil
	case uint8:
		return sqldsl.Int(v), nil
	case uint16:
		return sqldsl.Int(v), nil
	case uint32:
		return sqldsl.Int(v), nil
	case uint64:
		return sqldsl.Raw(strconv.FormatUint(v, 10)), nil
	case float32:
		return renderFloat(float64(v))
	case float64:
		return renderFloat(v)
	case json.Number:
		if _, err := strconv.ParseFloat(string(v), 64); err != nil {
			return nil, fmt.Errorf("%w: malformed number %q", ErrUnsupportedLiteral, string(v))
		}
		return sqldsl.Raw(string(v)), nil
	case *big.Int:
		if v == nil {
			return sqldsl.Null{}, nil
		}
		return sqldsl.Raw(v.String()), nil
	case time.Time:
		return sqldsl.Lit(v.Format(time.RFC3339Nano)), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return sqldsl.Null{}, nil
		}
		return Literal(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if b, ok := v.([]byte); ok {
			return sqldsl.Lit(string(b)), nil
		}
		items := make(sqldsl.List, rv.Len())
		for i := range items {
			lit, err := Literal(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			items[i] = lit
		}
		return items, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedLiteral, v)
}

func renderFloat(f float64) (sqldsl.Expr, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: non-finite float %v", ErrUnsupportedLiteral, f)
	}
	return sqldsl.Raw(strconv.FormatFloat(f, 'f', -1, 64)), nil
}
