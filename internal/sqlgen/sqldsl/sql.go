package sqldsl

import (
	"strconv"
	"strings"
)

// SQLer is implemented by complete statements.
type SQLer interface {
	SQL() string
}

// Terminate renders a statement followed by a semicolon.
func Terminate(s SQLer) string {
	return s.SQL() + ";"
}

// JoinClause represents a SQL JOIN clause.
type JoinClause struct {
	Type      string // "INNER", "LEFT OUTER", etc.
	TableExpr TableExpr
	On        Expr
}

// SQL renders the JOIN clause.
func (j JoinClause) SQL() string {
	// Don't add "JOIN" if Type already contains it
	joinKeyword := j.Type + " JOIN"
	if strings.Contains(j.Type, "JOIN") {
		joinKeyword = j.Type
	}
	if j.On == nil {
		return joinKeyword + " " + j.TableExpr.TableSQL()
	}
	return joinKeyword + " " + j.TableExpr.TableSQL() + " ON " + j.On.SQL()
}

// LeftOuterJoin creates a LEFT OUTER JOIN clause.
func LeftOuterJoin(table TableExpr, on Expr) JoinClause {
	return JoinClause{Type: "LEFT OUTER", TableExpr: table, On: on}
}

// SelectStmt represents a SELECT query rendered on a single line.
type SelectStmt struct {
	// Keyword overrides the leading SELECT keyword (e.g. "Select").
	Keyword string
	Columns []Expr
	From    TableExpr
	Joins   []JoinClause
	Where   []Expr
	GroupBy []Expr
	OrderBy []string
	// Limit is omitted when nil; a zero limit is rendered.
	Limit *int
}

// SQL renders the SELECT statement.
func (s SelectStmt) SQL() string {
	keyword := s.Keyword
	if keyword == "" {
		keyword = "SELECT"
	}
	parts := []string{keyword + " " + s.columnsSQL()}
	if s.From != nil {
		parts = append(parts, "FROM "+s.From.TableSQL())
	}
	for _, j := range s.Joins {
		parts = append(parts, j.SQL())
	}
	if len(s.Where) > 0 {
		parts = append(parts, "WHERE "+And(s.Where...).SQL())
	}
	if len(s.GroupBy) > 0 {
		parts = append(parts, "GROUP BY "+joinExprs(s.GroupBy, ", "))
	}
	if len(s.OrderBy) > 0 {
		parts = append(parts, "ORDER BY "+strings.Join(s.OrderBy, ", "))
	}
	if s.Limit != nil {
		parts = append(parts, "LIMIT "+strconv.Itoa(*s.Limit))
	}
	return strings.Join(parts, " ")
}

func (s SelectStmt) columnsSQL() string {
	if len(s.Columns) == 0 {
		return "1"
	}
	return joinExprs(s.Columns, ", ")
}

// Assignment is one "column = value" pair of an UPDATE.
type Assignment struct {
	Column string
	Value  Expr
}

// InsertStmt represents an INSERT. With no columns it renders DEFAULT VALUES.
type InsertStmt struct {
	Table     string
	Columns   []string
	Values    []Expr
	Returning []string
}

// SQL renders the INSERT statement.
func (i InsertStmt) SQL() string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(i.Table)
	if len(i.Columns) == 0 {
		sb.WriteString(" DEFAULT VALUES")
	} else {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(i.Columns, ", "))
		sb.WriteString(") VALUES (")
		sb.WriteString(joinExprs(i.Values, ", "))
		sb.WriteString(")")
	}
	sb.WriteString(returningSQL(i.Returning))
	return sb.String()
}

// UpdateStmt represents an UPDATE.
type UpdateStmt struct {
	Table     string
	Set       []Assignment
	Where     []Expr
	Returning []string
}

// SQL renders the UPDATE statement.
func (u UpdateStmt) SQL() string {
	sets := make([]string, len(u.Set))
	for i, a := range u.Set {
		sets[i] = a.Column + " = " + a.Value.SQL()
	}
	out := "UPDATE " + u.Table + " SET " + strings.Join(sets, ", ")
	if len(u.Where) > 0 {
		out += " WHERE " + And(u.Where...).SQL()
	}
	return out + returningSQL(u.Returning)
}

// DeleteStmt represents a DELETE.
type DeleteStmt struct {
	Table string
	Where []Expr
}

// SQL renders the DELETE statement.
func (d DeleteStmt) SQL() string {
	out := "DELETE FROM " + d.Table
	if len(d.Where) > 0 {
		out += " WHERE " + And(d.Where...).SQL()
	}
	return out
}

func returningSQL(cols []string) string {
	if len(cols) == 0 {
		return ""
	}
	return " RETURNING " + strings.Join(cols, ", ")
}

// IntPtr returns a pointer to n, for SelectStmt.Limit.
func IntPtr(n int) *int { return &n }
