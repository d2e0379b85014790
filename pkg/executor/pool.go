package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool executes statements on a pgx connection pool.
type Pool struct {
	pool *pgxpool.Pool
}

var _ DB = (*Pool)(nil)

// PoolOption adjusts the pool configuration parsed from the DSN.
type PoolOption func(*pgxpool.Config)

// WithMaxConns caps the pool size. Values below one keep the pgx default.
func WithMaxConns(n int32) PoolOption {
	return func(cfg *pgxpool.Config) {
		if n > 0 {
			cfg.MaxConns = n
		}
	}
}

// NewPool connects a pool to dsn and verifies it with a ping.
func NewPool(ctx context.Context, dsn string, opts ...PoolOption) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.AfterConnect = registerJSONCodecs
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Pool{pool: pool}, nil
}

// registerJSONCodecs replaces the json and jsonb codecs with ones that
// decode numbers as json.Number.
func registerJSONCodecs(_ context.Context, conn *pgx.Conn) error {
	tm := conn.TypeMap()
	tm.RegisterType(&pgtype.Type{
		Name:  "json",
		OID:   pgtype.JSONOID,
		Codec: &pgtype.JSONCodec{Marshal: json.Marshal, Unmarshal: unmarshalJSON},
	})
	tm.RegisterType(&pgtype.Type{
		Name:  "jsonb",
		OID:   pgtype.JSONBOID,
		Codec: &pgtype.JSONBCodec{Marshal: json.Marshal, Unmarshal: unmarshalJSON},
	})
	return nil
}

// MaxConns returns the configured pool size.
func (p *Pool) MaxConns() int32 { return p.pool.Config().MaxConns }

// Query implements Querier.
func (p *Pool) Query(ctx context.Context, sql string, params Params) ([]Row, error) {
	return pgxQuery(ctx, p.pool, sql, params)
}

// Begin implements DB.
func (p *Pool) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, wrapErr("begin", err)
	}
	return &pgxTx{tx: tx}, nil
}

// Ping checks connectivity.
func (p *Pool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases every pooled connection.
func (p *Pool) Close() {
	p.pool.Close()
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Query(ctx context.Context, sql string, params Params) ([]Row, error) {
	return pgxQuery(ctx, t.tx, sql, params)
}

func (t *pgxTx) Commit(ctx context.Context) error {
	return wrapErr("commit", t.tx.Commit(ctx))
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	return wrapErr("rollback", t.tx.Rollback(ctx))
}

type pgxQueryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func pgxQuery(ctx context.Context, q pgxQueryer, sql string, params Params) ([]Row, error) {
	text, args, err := Bind(sql, params)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", compact(text), err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", compact(text), err)
	}
	out := make([]Row, len(maps))
	for i, m := range maps {
		out[i] = DecodeRow(m)
	}
	return out, nil
}
