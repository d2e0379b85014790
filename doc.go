// Package pgnest is a small ORM for PostgreSQL that loads a model together
// with its related rows in one statement.
//
// # Core Concepts
//
// A Model is a named table with declared columns, default filters and
// relations to other models. Relations come in four shapes: to-one,
// to-many, and the through-table variants of each. A Builder accumulates
// a query against a model (columns, filters, ordering, limit and the
// relations to nest) and compiles it with package query into a single
// SELECT in which every relation appears as a JSON object or array.
//
//	users, err := registry.Model("user")
//	rows, err := users.With(users.MustRelation("posts")).
//		Where(filter.Where("name", filter.Eq("Ann"))).
//		Get(ctx, nil)
//
// # Registration
//
// Models are declared up front and registered together. Registration is
// two-phase: every model is defined first, then relations are attached, so
// models may refer to each other in any order. The registry is sealed
// afterwards and only hook lists may change.
//
//	reg := pgnest.NewRegistry(pool)
//	err := reg.Register(userDef, postDef)
//
// # Instances
//
// An Instance holds one row's values. Save inserts or updates depending on
// whether the identity column is set; Delete removes the row. After-create,
// after-save and after-delete hooks fire once the write is durable: right
// away without a transaction, or after a successful commit with one.
//
// # Transactions
//
// A Transaction wraps one database transaction and tracks callbacks that
// fire after commit or after rollback. Use Registry.InTransaction for the
// common begin, run, commit-or-rollback sequence.
package pgnest
