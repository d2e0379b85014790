// Package sqldsl provides a typed DSL for building the PostgreSQL statements
// emitted by the pgnest query compiler and ORM.
//
// # Overview
//
// Rather than constructing SQL strings through concatenation, this package
// provides typed building blocks that compose together to form complete
// statements. Literal values are escaped by the types that render them, and
// bound parameters are rendered as named placeholders that the executor
// rewrites to positional arguments.
//
// # Core Interfaces
//
// All DSL types implement one of two interfaces:
//
//   - Expr: SQL expressions (columns, literals, placeholders, operators, function calls)
//   - SQLer: complete SQL statements (SELECT, INSERT, UPDATE, DELETE)
//
// Both define a SQL() method that renders the PostgreSQL syntax on a single line.
//
// # Expression Types
//
//	Col{Table: "user", Column: "id"}           // user.id
//	Lit("Ann")                                 // 'Ann'
//	Int(42)                                    // 42
//	Bool(true)                                 // TRUE
//	Null{}                                     // NULL
//	Raw("CURRENT_TIMESTAMP")                   // raw SQL (escape hatch)
//	Star{Table: "user"}                        // user.*
//	Placeholder{Name: "ids", Kind: ListParam}  // ${ids:list}
//	Cast{Expr: col, Type: "TEXT"}              // user.id::TEXT
//
// Operators:
//
//	Cmp{Left: col, Op: ">", Right: p}          // col > ${p}
//	In{Expr: col, Values: []Expr{...}}         // col IN ('a', 'b')
//	Between{Expr: col, Low: lo, High: hi}      // col BETWEEN lo AND hi
//
// # Statements
//
//	SelectStmt{
//	    Columns: []Expr{Col{Table: "user", Column: "name"}},
//	    From:    TableRef{Name: "user"},
//	    Where:   []Expr{Eq(Col{Table: "user", Column: "name"}, Lit("Ann"))},
//	}.SQL()
//	// SELECT user.name FROM user WHERE user.name = 'Ann'
//
// Joined subqueries use Subquery as the table expression, rendering
// "(<query>) <alias>".
package sqldsl
