package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver
)

// SQL executes statements through database/sql. Any PostgreSQL driver
// works; "postgres" (lib/pq) and "pgx" are registered by this package.
type SQL struct {
	db *sql.DB
}

var _ DB = (*SQL)(nil)

// Open opens a database/sql handle for driver and dsn.
func Open(driver, dsn string) (*SQL, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return &SQL{db: db}, nil
}

// NewSQL wraps an existing handle.
func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

// DB returns the underlying handle.
func (s *SQL) DB() *sql.DB { return s.db }

// Query implements Querier.
func (s *SQL) Query(ctx context.Context, query string, params Params) ([]Row, error) {
	return sqlQuery(ctx, s.db, query, params)
}

// Begin implements DB.
func (s *SQL) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapErr("begin", err)
	}
	return &sqlTx{tx: tx}, nil
}

// Ping checks connectivity.
func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the handle.
func (s *SQL) Close() error {
	return s.db.Close()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Query(ctx context.Context, query string, params Params) ([]Row, error) {
	return sqlQuery(ctx, t.tx, query, params)
}

func (t *sqlTx) Commit(context.Context) error {
	return wrapErr("commit", t.tx.Commit())
}

func (t *sqlTx) Rollback(context.Context) error {
	return wrapErr("rollback", t.tx.Rollback())
}

// queryer is implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func sqlQuery(ctx context.Context, q queryer, query string, params Params) ([]Row, error) {
	text, args, err := Bind(query, params)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", compact(text), err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", compact(text), err)
	}
	return out, nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(types))
		for i, ct := range types {
			v, err := convertColumn(ct.DatabaseTypeName(), values[i])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", ct.Name(), err)
			}
			row[ct.Name()] = DecodeValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Row{}
	}
	return out, nil
}

// convertColumn turns driver byte slices into Go values: JSON columns are
// decoded, BYTEA stays binary, and everything else becomes a string.
func convertColumn(dbType string, v any) (any, error) {
	var raw []byte
	switch v := v.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return v, nil
	}
	switch strings.ToUpper(dbType) {
	case "JSON", "JSONB":
		var decoded any
		if err := unmarshalJSON(raw, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	case "BYTEA":
		return raw, nil
	}
	return string(raw), nil
}
