// Package main provides the pgnest command line.
//
// The CLI supports:
//   - validate: Check that the schema file parses, registers and compiles
//   - compile: Print the SQL of a named query or a model
//   - query: Run a named query and print the nested JSON result
//   - status: Show configuration, schema and database reachability
//   - doctor: Run health checks against the database
//
// Usage:
//
//	pgnest [flags] <command>
//
// Commands that touch the database (query, doctor, status) read the
// connection from pgnest.yaml, PGNEST_* variables or --db.
package main

func main() {
	Execute()
}
