// Package executor runs compiled statements against PostgreSQL.
//
// Statements use named placeholders (${name}, ${name:list}, ${name:json},
// ${name.low}) which Bind rewrites into positional $n arguments. Values are
// always sent as bound arguments and never spliced into the SQL text.
//
// Two implementations are provided: Pool, backed by pgxpool, and SQL,
// backed by database/sql with either the lib/pq or the pgx stdlib driver.
// Both decode result rows into Row maps, restoring ":bigint" tagged text to
// int64 and decoding JSON columns with full numeric precision.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Params are the named values bound to a statement's placeholders.
type Params map[string]any

// Row is one result row keyed by column name.
type Row map[string]any

// Querier executes a statement and returns every result row.
type Querier interface {
	Query(ctx context.Context, sql string, params Params) ([]Row, error)
}

// Tx is a Querier bound to one open database transaction.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB is a Querier that can open transactions.
type DB interface {
	Querier
	Begin(ctx context.Context) (Tx, error)
}

var (
	// ErrMissingParam is returned when a placeholder names a parameter that
	// was not supplied.
	ErrMissingParam = errors.New("pgnest: missing query parameter")

	// ErrBadPlaceholder is returned for an unterminated or malformed placeholder.
	ErrBadPlaceholder = errors.New("pgnest: malformed placeholder")
)

// IsMissingParamErr returns true if err is or wraps ErrMissingParam.
func IsMissingParamErr(err error) bool {
	return errors.Is(err, ErrMissingParam)
}

// PostgreSQL error codes used by callers to classify failures.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeUndefinedTable      = "42P01"
	CodeUndefinedColumn     = "42703"
)

// Code returns the SQLSTATE of a PostgreSQL error raised through either
// driver, or "" for other errors.
func Code(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool { return Code(err) == CodeUniqueViolation }

// IsUndefinedTable reports whether err is an undefined_table error.
func IsUndefinedTable(err error) bool { return Code(err) == CodeUndefinedTable }

// IsUndefinedColumn reports whether err is an undefined_column error.
func IsUndefinedColumn(err error) bool { return Code(err) == CodeUndefinedColumn }

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// compact collapses whitespace for log and error messages.
func compact(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
