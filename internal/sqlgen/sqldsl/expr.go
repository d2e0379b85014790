package sqldsl

import (
	"strconv"
	"strings"
)

// Expr is the interface that all SQL expression types implement.
type Expr interface {
	SQL() string
}

// Col represents a table column reference (e.g., user.id).
type Col struct {
	Table  string
	Column string
}

// SQL renders the column reference.
func (c Col) SQL() string {
	if c.Table == "" {
		return c.Column
	}
	return c.Table + "." + c.Column
}

// Star represents every column of a table (table.*).
type Star struct {
	Table string
}

// SQL renders the star reference.
func (s Star) SQL() string {
	if s.Table == "" {
		return "*"
	}
	return s.Table + ".*"
}

// Lit represents a literal string value (auto-quoted with single quotes).
type Lit string

// SQL renders the literal with single quotes.
func (l Lit) SQL() string {
	// Escape single quotes by doubling them
	escaped := strings.ReplaceAll(string(l), "'", "''")
	return "'" + escaped + "'"
}

// Raw is an escape hatch for arbitrary SQL expressions.
type Raw string

// SQL renders the raw SQL as-is.
func (r Raw) SQL() string {
	return string(r)
}

// Int represents an integer literal.
type Int int64

// SQL renders the integer.
func (i Int) SQL() string {
	return strconv.FormatInt(int64(i), 10)
}

// Bool represents a boolean literal.
type Bool bool

// SQL renders the boolean.
func (b Bool) SQL() string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// Null represents SQL NULL.
type Null struct{}

// SQL renders NULL.
func (Null) SQL() string {
	return "NULL"
}

// List renders expressions separated by commas, without surrounding parentheses.
type List []Expr

// SQL renders the list.
func (l List) SQL() string {
	return joinExprs(l, ", ")
}

// PlaceholderKind selects how the executor binds a named placeholder.
type PlaceholderKind int

const (
	// ScalarParam binds the value as a single argument.
	ScalarParam PlaceholderKind = iota
	// ListParam expands a slice into one argument per element.
	ListParam
	// JSONParam serializes the value to JSON text before binding.
	JSONParam
)

// Placeholder is a named bound parameter. The executor rewrites it to a
// positional argument; the value itself never appears in the SQL text.
//
//	Placeholder{Name: "minAge"}                   -> ${minAge}
//	Placeholder{Name: "ids", Kind: ListParam}     -> ${ids:list}
//	Placeholder{Name: "doc", Kind: JSONParam}     -> ${doc:json}
//	Placeholder{Name: "range", Field: "low"}      -> ${range.low}
type Placeholder struct {
	Name  string
	Field string
	Kind  PlaceholderKind
}

// SQL renders the placeholder.
func (p Placeholder) SQL() string {
	var sb strings.Builder
	sb.WriteString("${")
	sb.WriteString(p.Name)
	if p.Field != "" {
		sb.WriteString(".")
		sb.WriteString(p.Field)
	}
	switch p.Kind {
	case ListParam:
		sb.WriteString(":list")
	case JSONParam:
		sb.WriteString(":json")
	}
	sb.WriteString("}")
	return sb.String()
}

// Func represents a SQL function call.
type Func struct {
	Name string
	Args []Expr
}

// SQL renders the function call.
func (f Func) SQL() string {
	return f.Name + "(" + joinExprs(f.Args, ", ") + ")"
}

// Alias wraps an expression with an alias (expr AS alias).
type Alias struct {
	Expr Expr
	Name string
}

// SQL renders the aliased expression.
func (a Alias) SQL() string {
	return a.Expr.SQL() + " AS " + a.Name
}

// Paren wraps an expression in parentheses.
type Paren struct {
	Expr Expr
}

// SQL renders the parenthesized expression.
func (p Paren) SQL() string {
	return "(" + p.Expr.SQL() + ")"
}

// Cast renders a PostgreSQL cast (expr::TYPE).
type Cast struct {
	Expr Expr
	Type string
}

// SQL renders the cast.
func (c Cast) SQL() string {
	return c.Expr.SQL() + "::" + c.Type
}

// Concat represents SQL string concatenation (||).
type Concat struct {
	Parts []Expr
}

// SQL renders the concatenation.
func (c Concat) SQL() string {
	if len(c.Parts) == 0 {
		return "''"
	}
	return joinExprs(c.Parts, " || ")
}

// Coalesce renders COALESCE(expr, fallback).
func Coalesce(expr, fallback Expr) Func {
	return Func{Name: "COALESCE", Args: []Expr{expr, fallback}}
}

// ToJSON renders to_json(expr).
func ToJSON(expr Expr) Func {
	return Func{Name: "to_json", Args: []Expr{expr}}
}

// JSONAgg renders json_agg(expr).
func JSONAgg(expr Expr) Func {
	return Func{Name: "json_agg", Args: []Expr{expr}}
}

// Count renders COUNT(expr).
func Count(expr Expr) Func {
	return Func{Name: "COUNT", Args: []Expr{expr}}
}

// EmptyJSONArray is the '[]'::json literal used as the fallback for
// aggregated relations with no rows.
var EmptyJSONArray = Cast{Expr: Lit("[]"), Type: "json"}

func joinExprs(exprs []Expr, sep string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.SQL()
	}
	return strings.Join(parts, sep)
}
