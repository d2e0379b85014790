package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/realityu/pgnest"
	"github.com/realityu/pgnest/pkg/executor"
	"github.com/realityu/pgnest/pkg/logging"
	"github.com/realityu/pgnest/pkg/schema"
)

// Database is an executor with a reachable server behind it.
type Database interface {
	executor.DB
	Ping(ctx context.Context) error
}

// NewReporter builds the failure reporter from the log settings.
func (c *Config) NewReporter(w io.Writer) *logging.Reporter {
	return logging.NewReporter(logging.NewLogger(w, c.Log.Level, c.Log.Format))
}

// OpenDB connects with the configured driver. The returned function
// releases the connection.
func (c *Config) OpenDB(ctx context.Context) (Database, func(), error) {
	dsn, err := c.DSN()
	if err != nil {
		return nil, nil, ConfigError("invalid database configuration", err)
	}

	switch c.Database.Driver {
	case "", "pgxpool":
		pool, err := executor.NewPool(ctx, dsn, executor.WithMaxConns(c.Database.MaxConns))
		if err != nil {
			return nil, nil, DBConnectError("connecting to database", err)
		}
		return pool, pool.Close, nil
	case "pgx", "postgres":
		db, err := executor.Open(c.Database.Driver, dsn)
		if err != nil {
			return nil, nil, DBConnectError("connecting to database", err)
		}
		return db, func() { _ = db.Close() }, nil
	default:
		return nil, nil, ConfigError("invalid database configuration",
			fmt.Errorf("unknown driver %q (want pgxpool, pgx or postgres)", c.Database.Driver))
	}
}

// LoadSchema parses the configured schema file.
func (c *Config) LoadSchema() (*schema.Schema, error) {
	if c.Schema == "" {
		return nil, ConfigError("no schema configured", nil)
	}
	s, err := schema.Load(c.Schema)
	if err != nil {
		return nil, SchemaParseError("loading schema", err)
	}
	return s, nil
}

// LoadRegistry parses the schema and registers its models on db.
func (c *Config) LoadRegistry(db executor.DB, rep *logging.Reporter) (*schema.Schema, *pgnest.Registry, error) {
	s, err := c.LoadSchema()
	if err != nil {
		return nil, nil, err
	}
	opts := []pgnest.RegistryOption{pgnest.WithReporter(rep)}
	if c.Query.Batch > 0 {
		opts = append(opts, pgnest.WithBatchLimit(c.Query.Batch))
	}
	r := pgnest.NewRegistry(db, opts...)
	if err := s.Register(r); err != nil {
		return nil, nil, SchemaParseError("registering models", err)
	}
	return s, r, nil
}
