package filter

import (
	"fmt"
	"reflect"
)

// Parse converts the loosely typed filter shape used in definition files
// into a Filter:
//
//	"minAge"                     -> column = ${minAge}
//	["Ann"]                      -> column = 'Ann'
//	[">", "minAge"]              -> column > ${minAge}
//	[">", [18]]                  -> column > 18
//	["IN", "ids"]                -> column IN (${ids:list})
//	["IN", [1, 2]]               -> column IN (1, 2)
//	["BETWEEN", "span"]          -> column BETWEEN ${span.low} AND ${span.high}
//	["BETWEEN", [{low, high}]]   -> column BETWEEN low AND high
//
// Any other sequence length is ErrInvalidFilter.
func Parse(v any) (Filter, error) {
	if f, ok := v.(Filter); ok {
		return f, nil
	}
	seq, isSeq := asSlice(v)
	if !isSeq {
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: parameter reference must be a string, got %T", ErrInvalidFilter, v)
		}
		return Equals{Value: Param(name)}, nil
	}

	switch len(seq) {
	case 1:
		return Equals{Value: Lit{Value: seq[0]}}, nil
	case 2:
		op, ok := seq[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: operator must be a string, got %T", ErrInvalidFilter, seq[0])
		}
		return parseBinary(op, seq[1])
	default:
		return nil, fmt.Errorf("%w: expected 1 or 2 elements, got %d", ErrInvalidFilter, len(seq))
	}
}

func parseBinary(op string, operand any) (Filter, error) {
	values, literal := asSlice(operand)
	name, isName := operand.(string)
	if !literal && !isName {
		return nil, fmt.Errorf("%w: operand for %q must be a parameter name or a literal list", ErrInvalidFilter, op)
	}

	switch norm := normalizeOp(op); norm {
	case "IN", "NOT IN", "NOTIN":
		negate := norm != "IN"
		if literal {
			return InList{Negate: negate, Values: List(values)}, nil
		}
		return InList{Negate: negate, Values: Param(name)}, nil

	case "BETWEEN", "NOT BETWEEN":
		negate := norm != "BETWEEN"
		if !literal {
			return Between{Negate: negate, Range: Param(name)}, nil
		}
		if len(values) != 1 {
			return nil, fmt.Errorf("%w: %s literal must be a single {low, high} pair", ErrInvalidFilter, norm)
		}
		r, err := asRange(values[0])
		if err != nil {
			return nil, err
		}
		return Between{Negate: negate, Range: r}, nil

	default:
		if !literal {
			return Compare{Op: op, Value: Param(name)}, nil
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: %s literal list is empty", ErrInvalidFilter, op)
		}
		return Compare{Op: op, Value: Lit{Value: values[0]}}, nil
	}
}

// asSlice reports whether v is a slice or array (other than []byte) and
// returns its elements.
func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil, []byte:
		return nil, false
	case []any:
		return s, true
	case List:
		return s, true
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

func asRange(v any) (Range, error) {
	switch r := v.(type) {
	case Range:
		return r, nil
	case map[string]any:
		low, okLow := r["low"]
		high, okHigh := r["high"]
		if okLow && okHigh {
			return Range{Low: low, High: high}, nil
		}
	}
	return Range{}, fmt.Errorf("%w: expected {low, high}, got %T", ErrInvalidFilter, v)
}
