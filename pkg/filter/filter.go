// Package filter models column predicates used in WHERE clauses.
//
// A Filter is a closed union of four shapes: Equals, Compare, InList and
// Between. Each shape holds an operand that is either a named bound
// parameter (Param) or literal data (Lit, List, Range). Literal operands are
// escaped and inlined into the SQL text; parameters render as ${name}
// placeholders that the executor binds positionally.
package filter

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidFilter is returned for malformed filters: a sequence of the
	// wrong length, an unknown operand, or an operator that cannot be inlined.
	ErrInvalidFilter = errors.New("pgnest: invalid filter")

	// ErrUnsupportedLiteral is returned when a literal value has no SQL rendering.
	ErrUnsupportedLiteral = errors.New("pgnest: unsupported literal value")
)

// IsInvalidFilterErr returns true if err is or wraps ErrInvalidFilter.
func IsInvalidFilterErr(err error) bool {
	return errors.Is(err, ErrInvalidFilter)
}

// Filter is a predicate on one column.
type Filter interface {
	filter()
}

// ScalarOperand is a Param or a Lit.
type ScalarOperand interface {
	scalarOperand()
}

// ListOperand is a Param or a List.
type ListOperand interface {
	listOperand()
}

// RangeOperand is a Param or a Range.
type RangeOperand interface {
	rangeOperand()
}

// Param names a bound parameter supplied at execution time.
type Param string

func (Param) scalarOperand() {}
func (Param) listOperand()   {}
func (Param) rangeOperand()  {}

// Lit is a single literal value inlined into the SQL text.
type Lit struct {
	Value any
}

func (Lit) scalarOperand() {}

// List is a literal value list for IN / NOT IN.
type List []any

func (List) listOperand() {}

// Range is a literal {low, high} pair for BETWEEN. It also satisfies the
// ${name.low} / ${name.high} placeholders when passed as a parameter value.
type Range struct {
	Low  any `json:"low" yaml:"low"`
	High any `json:"high" yaml:"high"`
}

func (Range) rangeOperand() {}

// Field returns the bound named by a placeholder field.
func (r Range) Field(name string) (any, bool) {
	switch name {
	case "low":
		return r.Low, true
	case "high":
		return r.High, true
	}
	return nil, false
}

// Equals renders "column = value".
type Equals struct {
	Value ScalarOperand
}

// Compare renders "column <op> value" for any other binary operator.
type Compare struct {
	Op    string
	Value ScalarOperand
}

// InList renders "column IN (...)" or "column NOT IN (...)".
type InList struct {
	Negate bool
	Values ListOperand
}

// Between renders "column BETWEEN low AND high" or its negation.
type Between struct {
	Negate bool
	Range  RangeOperand
}

func (Equals) filter()  {}
func (Compare) filter() {}
func (InList) filter()  {}
func (Between) filter() {}

// Eq matches a literal value.
func Eq(v any) Filter { return Equals{Value: Lit{Value: v}} }

// EqParam matches the named parameter.
func EqParam(name string) Filter { return Equals{Value: Param(name)} }

// Op compares against a literal value with an arbitrary operator.
func Op(op string, v any) Filter { return Compare{Op: op, Value: Lit{Value: v}} }

// OpParam compares against the named parameter with an arbitrary operator.
func OpParam(op, name string) Filter { return Compare{Op: op, Value: Param(name)} }

// Ne, Gt, Gte, Lt, Lte, Like and ILike are literal comparisons.
func Ne(v any) Filter    { return Op("!=", v) }
func Gt(v any) Filter    { return Op(">", v) }
func Gte(v any) Filter   { return Op(">=", v) }
func Lt(v any) Filter    { return Op("<", v) }
func Lte(v any) Filter   { return Op("<=", v) }
func Like(v any) Filter  { return Op("LIKE", v) }
func ILike(v any) Filter { return Op("ILIKE", v) }

// In matches any of the literal values.
func In(values ...any) Filter { return InList{Values: List(values)} }

// InParam matches any element of the named list parameter.
func InParam(name string) Filter { return InList{Values: Param(name)} }

// NotIn excludes the literal values.
func NotIn(values ...any) Filter { return InList{Negate: true, Values: List(values)} }

// NotInParam excludes every element of the named list parameter.
func NotInParam(name string) Filter { return InList{Negate: true, Values: Param(name)} }

// InRange matches values between two literal bounds.
func InRange(low, high any) Filter { return Between{Range: Range{Low: low, High: high}} }

// InRangeParam matches values between ${name.low} and ${name.high}.
func InRangeParam(name string) Filter { return Between{Range: Param(name)} }

// OutOfRange excludes values between two literal bounds.
func OutOfRange(low, high any) Filter {
	return Between{Negate: true, Range: Range{Low: low, High: high}}
}

// OutOfRangeParam excludes values between ${name.low} and ${name.high}.
func OutOfRangeParam(name string) Filter { return Between{Negate: true, Range: Param(name)} }

// normalizeOp upper-cases and collapses whitespace so "not  in" and "NOT IN"
// compare equal.
func normalizeOp(op string) string {
	return strings.ToUpper(strings.Join(strings.Fields(op), " "))
}
