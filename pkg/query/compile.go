package query

import (
	"strconv"
	"strings"

	"github.com/realityu/pgnest/internal/sqlgen/sqldsl"
	"github.com/realityu/pgnest/pkg/filter"
)

// bigintTag is appended to 64-bit integer columns so the read side can
// restore them from text without float64 truncation.
const bigintTag = ":bigint"

// Join is the result of compiling one relation descriptor.
type Join struct {
	// Alias is the temporary table name the subquery is joined as.
	Alias string
	// Key is the correlation column exposed by the subquery.
	Key string
	// SQL is the unterminated subquery text.
	SQL string
}

// Compile lowers a root descriptor into a terminated SELECT statement.
//
// Relations are compiled depth first with one alias counter shared across
// the tree: each relation node takes the next T<n> alias, and its
// aggregate wrapper takes one more after its own children, so every alias
// in the statement is unique.
//
// A root descriptor in count mode compiles to a COUNT of its rows; joins,
// order and limit are ignored.
func Compile(d Descriptor, cat Catalog) (string, error) {
	c := &compiler{cat: cat}
	stmt, err := c.root(d)
	if err != nil {
		return "", err
	}
	return sqldsl.Terminate(stmt), nil
}

// CompileJoin compiles a relation descriptor on its own, as it would be
// emitted for the first join of a query.
func CompileJoin(d Descriptor, cat Catalog) (Join, error) {
	c := &compiler{cat: cat}
	j, _, err := c.relation(d, 1)
	return j, err
}

type compiler struct {
	cat Catalog
}

func (c *compiler) root(d Descriptor) (sqldsl.SelectStmt, error) {
	if err := d.validate(true); err != nil {
		return sqldsl.SelectStmt{}, err
	}
	where, err := filter.RenderMap(d.Table, d.Where)
	if err != nil {
		return sqldsl.SelectStmt{}, err
	}
	if d.Count {
		return sqldsl.SelectStmt{
			Keyword: "Select",
			Columns: []sqldsl.Expr{sqldsl.Alias{Expr: sqldsl.Count(sqldsl.Col{Table: d.Table, Column: "id"}), Name: "count"}},
			From:    sqldsl.TableRef{Name: d.Table},
			Where:   where,
		}, nil
	}

	n := 0
	joins := make([]Join, len(d.Joins))
	for i, jd := range d.Joins {
		joins[i], n, err = c.relation(jd, n+1)
		if err != nil {
			return sqldsl.SelectStmt{}, err
		}
	}

	columns, err := c.columns(d, true)
	if err != nil {
		return sqldsl.SelectStmt{}, err
	}
	columns = append(columns, projections(d.Joins, joins)...)

	return sqldsl.SelectStmt{
		Keyword: "Select",
		Columns: columns,
		From:    sqldsl.TableRef{Name: d.Table},
		Joins:   joinClauses(d, joins),
		Where:   where,
		OrderBy: d.Order,
		Limit:   d.Limit,
	}, nil
}

// relation compiles a join descriptor using alias T<n> and returns the last
// counter value it consumed.
func (c *compiler) relation(d Descriptor, n int) (Join, int, error) {
	if err := d.validate(false); err != nil {
		return Join{}, n, err
	}
	out := Join{Alias: alias(n), Key: alias(n) + "_match"}

	var err error
	joins := make([]Join, len(d.Joins))
	for i, jd := range d.Joins {
		joins[i], n, err = c.relation(jd, n+1)
		if err != nil {
			return Join{}, n, err
		}
	}

	var columns []sqldsl.Expr
	if d.Count {
		columns = []sqldsl.Expr{sqldsl.Col{Table: d.Table, Column: "id"}}
	} else if columns, err = c.columns(d, false); err != nil {
		return Join{}, n, err
	}

	key := sqldsl.Col{Table: d.Table, Column: d.ForeignKey}
	if d.Kind.Through() {
		key = sqldsl.Col{Table: d.ThroughTable, Column: d.MyPivotKey}
	}
	columns = append(columns, sqldsl.Alias{Expr: key, Name: out.Key})
	columns = append(columns, projections(d.Joins, joins)...)

	var where []sqldsl.Expr
	if d.Kind.Through() {
		if where, err = filter.RenderMap(d.ThroughTable, d.PivotFilter); err != nil {
			return Join{}, n, err
		}
	}
	base, err := filter.RenderMap(d.Table, d.Where)
	if err != nil {
		return Join{}, n, err
	}
	where = append(where, base...)

	inner := sqldsl.SelectStmt{
		Keyword: "Select",
		Columns: columns,
		From:    sqldsl.TableRef{Name: d.Table},
		Joins:   joinClauses(d, joins),
		Where:   where,
		OrderBy: d.Order,
		Limit:   d.Limit,
	}

	n++
	x := alias(n)
	matched := sqldsl.Col{Table: x, Column: out.Key}
	wrapper := sqldsl.SelectStmt{From: sqldsl.Subquery{Query: inner, Alias: x}}
	switch {
	case !d.Kind.Many():
		wrapper.Columns = []sqldsl.Expr{sqldsl.Alias{Expr: sqldsl.ToJSON(sqldsl.Star{Table: x}), Name: "Val"}, matched}
	case d.Count:
		wrapper.Columns = []sqldsl.Expr{sqldsl.Alias{Expr: sqldsl.Count(sqldsl.Col{Table: x, Column: "id"}), Name: "Val"}, matched}
		wrapper.GroupBy = []sqldsl.Expr{matched}
	default:
		wrapper.Columns = []sqldsl.Expr{sqldsl.Alias{Expr: sqldsl.JSONAgg(sqldsl.ToJSON(sqldsl.Star{Table: x})), Name: "Val"}, matched}
		wrapper.GroupBy = []sqldsl.Expr{matched}
	}
	out.SQL = wrapper.SQL()
	return out, n, nil
}

// columns resolves the select list of d. Top-level bigint columns are
// wrapped in to_json so the tagged text travels as a JSON string.
func (c *compiler) columns(d Descriptor, top bool) ([]sqldsl.Expr, error) {
	var declared []Column
	registered := false
	if c.cat != nil {
		declared, registered = c.cat.Columns(d.Table)
	}
	types := make(map[string]ColumnType, len(declared))
	for _, col := range declared {
		types[col.Name] = col.Type
	}

	names := d.Fields
	if names == nil {
		if !registered || len(declared) == 0 {
			return []sqldsl.Expr{sqldsl.Star{Table: d.Table}}, nil
		}
		names = make([]string, len(declared))
		for i, col := range declared {
			names[i] = col.Name
		}
	}

	out := make([]sqldsl.Expr, 0, len(names))
	for _, name := range names {
		if !isIdent(name) {
			out = append(out, sqldsl.Raw(name))
			continue
		}
		col := sqldsl.Col{Table: d.Table, Column: name}
		if types[name] == Bigint {
			out = append(out, bigintColumn(col, top))
			continue
		}
		out = append(out, col)
	}
	return out, nil
}

func bigintColumn(col sqldsl.Col, top bool) sqldsl.Expr {
	tagged := sqldsl.Concat{Parts: []sqldsl.Expr{sqldsl.Cast{Expr: col, Type: "TEXT"}, sqldsl.Lit(bigintTag)}}
	if top {
		return sqldsl.Alias{Expr: sqldsl.ToJSON(tagged), Name: col.Column}
	}
	return sqldsl.Alias{Expr: sqldsl.Paren{Expr: tagged}, Name: col.Column}
}

// projections renders the parent-side select entry of each compiled join.
func projections(descs []Descriptor, joins []Join) []sqldsl.Expr {
	out := make([]sqldsl.Expr, len(joins))
	for i, j := range joins {
		val := sqldsl.Col{Table: j.Alias, Column: "Val"}
		d := descs[i]
		switch {
		case !d.Kind.Many():
			out[i] = sqldsl.Alias{Expr: val, Name: d.Name}
		case d.Count:
			out[i] = sqldsl.Alias{Expr: sqldsl.Coalesce(val, sqldsl.Int(0)), Name: d.Name}
		default:
			out[i] = sqldsl.Alias{Expr: sqldsl.Coalesce(val, sqldsl.EmptyJSONArray), Name: d.Name}
		}
	}
	return out
}

func joinClauses(d Descriptor, joins []Join) []sqldsl.JoinClause {
	var out []sqldsl.JoinClause
	if d.Kind.Through() {
		out = append(out, sqldsl.LeftOuterJoin(
			sqldsl.TableRef{Name: d.ThroughTable},
			sqldsl.Eq(sqldsl.Col{Table: d.ThroughTable, Column: d.ForeignPivotKey}, sqldsl.Col{Table: d.Table, Column: d.ForeignKey}),
		))
	}
	for i, j := range joins {
		out = append(out, sqldsl.LeftOuterJoin(
			sqldsl.Subquery{Query: sqldsl.RawQuery(j.SQL), Alias: j.Alias},
			sqldsl.Eq(sqldsl.Col{Table: j.Alias, Column: j.Key}, sqldsl.Col{Table: d.Table, Column: d.Joins[i].MyKey}),
		))
	}
	return out
}

func alias(n int) string { return "T" + strconv.Itoa(n) }

// isIdent reports whether s is a bare column name that should be qualified
// with its table. Anything else (expressions, qualified names) is emitted
// verbatim.
func isIdent(s string) bool {
	if s == "" {
		return false
	}
	return !strings.ContainsAny(s, ".()* ,:'\"")
}
