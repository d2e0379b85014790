// Package cli provides shared configuration and utilities for the pgnest CLI.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/realityu/pgnest"
	"github.com/realityu/pgnest/pkg/executor"
	"github.com/realityu/pgnest/pkg/filter"
	"github.com/realityu/pgnest/pkg/query"
	"github.com/realityu/pgnest/pkg/schema"
)

// Process exit codes. Scripts can tell a broken schema file from a query
// the database rejected.
const (
	ExitSuccess     = 0
	ExitGeneral     = 1
	ExitConfig      = 2
	ExitSchemaParse = 3
	ExitDBConnect   = 4
	ExitQuery       = 5
)

// ExitError is a command failure with the exit code it maps to.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode picks the exit code for err. An *ExitError keeps its own code;
// other errors are classified by the pgnest error they wrap.
func ExitCode(err error) int {
	var exitErr *ExitError
	var queryErr *pgnest.QueryError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	case schema.IsInvalidSchemaErr(err),
		pgnest.IsUnknownModelErr(err),
		pgnest.IsUnknownRelationErr(err),
		errors.Is(err, pgnest.ErrInvalidDefinition),
		errors.Is(err, pgnest.ErrRelationCycle):
		return ExitSchemaParse
	case errors.As(err, &queryErr),
		errors.Is(err, filter.ErrInvalidFilter),
		errors.Is(err, query.ErrInvalidDescriptor):
		return ExitQuery
	default:
		return ExitGeneral
	}
}

// Describe renders err for the terminal. A statement the database
// rejected is printed indented below the message, and errors showing the
// database no longer matches the schema point at the doctor command.
func Describe(err error) string {
	var b strings.Builder
	b.WriteString("Error: ")

	var queryErr *pgnest.QueryError
	if errors.As(err, &queryErr) {
		msg := strings.Replace(err.Error(), "\n"+queryErr.SQL, "", 1)
		b.WriteString(msg)
		b.WriteString("\n  statement: ")
		b.WriteString(queryErr.SQL)
	} else {
		b.WriteString(err.Error())
	}

	switch executor.Code(err) {
	case executor.CodeUndefinedTable, executor.CodeUndefinedColumn:
		b.WriteString("\n  hint: the database does not match the schema file; run 'pgnest doctor'")
	}
	return b.String()
}

// ExitWithError prints err to stderr and exits with its exit code.
func ExitWithError(err error) {
	_, _ = fmt.Fprintln(os.Stderr, Describe(err))
	os.Exit(ExitCode(err))
}

// ConfigError reports an unusable pgnest.yaml or flag value.
func ConfigError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitConfig, Message: msg, Err: err}
}

// SchemaParseError reports a schema file that does not load or register.
func SchemaParseError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitSchemaParse, Message: msg, Err: err}
}

// DBConnectError reports a database that cannot be reached.
func DBConnectError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitDBConnect, Message: msg, Err: err}
}

// QueryError reports a query that does not build, compile or run.
func QueryError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitQuery, Message: msg, Err: err}
}

// GeneralError reports any other failure.
func GeneralError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitGeneral, Message: msg, Err: err}
}
