package sqldsl

// Cmp is a binary comparison. Op is rendered verbatim, so callers must
// validate operators that come from outside the package.
type Cmp struct {
	Left  Expr
	Op    string
	Right Expr
}

func (c Cmp) SQL() string { return c.Left.SQL() + " " + c.Op + " " + c.Right.SQL() }

// Eq creates an equality comparison (=).
func Eq(left, right Expr) Cmp { return Cmp{Left: left, Op: "=", Right: right} }

// In represents an IN / NOT IN clause. An empty value list renders "IN ()",
// which PostgreSQL rejects at execution time; the shape is kept so the
// caller sees the engine's error rather than a silently rewritten predicate.
type In struct {
	Expr   Expr
	Values []Expr
	Negate bool
}

func (i In) SQL() string {
	op := " IN ("
	if i.Negate {
		op = " NOT IN ("
	}
	return i.Expr.SQL() + op + joinExprs(i.Values, ", ") + ")"
}

// Between represents a BETWEEN / NOT BETWEEN range check.
type Between struct {
	Expr   Expr
	Low    Expr
	High   Expr
	Negate bool
}

func (b Between) SQL() string {
	op := " BETWEEN "
	if b.Negate {
		op = " NOT BETWEEN "
	}
	return b.Expr.SQL() + op + b.Low.SQL() + " AND " + b.High.SQL()
}

// AndExpr is a logical AND of expressions rendered without surrounding
// parentheses, as used at the top of a WHERE clause.
type AndExpr struct {
	Exprs []Expr
}

func (a AndExpr) SQL() string {
	if len(a.Exprs) == 0 {
		return "TRUE"
	}
	return joinExprs(a.Exprs, " AND ")
}

// And creates an AND expression, skipping nil entries.
func And(exprs ...Expr) AndExpr {
	filtered := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return AndExpr{Exprs: filtered}
}
