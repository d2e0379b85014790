package pgnest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/realityu/pgnest/pkg/executor"
	"github.com/realityu/pgnest/pkg/filter"
	"github.com/realityu/pgnest/pkg/query"
)

// Builder accumulates a query against one model. Builders are values in
// spirit: every method mutates and returns the receiver, so chain from a
// fresh builder (Model.Query, Model.Relation) for each query.
//
// Errors met while chaining, such as an unknown relation name, are kept
// and returned by SQL and Get.
type Builder struct {
	reg   *Registry
	model *Model
	desc  query.Descriptor
	q     executor.Querier
	err   error
}

// Model returns the model the builder queries.
func (b *Builder) Model() *Model { return b.model }

// Descriptor returns a copy of the accumulated descriptor.
func (b *Builder) Descriptor() query.Descriptor { return b.desc.Clone() }

// Err returns the first error met while chaining.
func (b *Builder) Err() error { return b.err }

// With nests relation builders, typically from Model.Relation. Each
// join's descriptor is copied, so the builders can be reused.
func (b *Builder) With(joins ...*Builder) *Builder {
	for _, j := range joins {
		if j == nil {
			continue
		}
		if j.err != nil {
			b.setErr(j.err)
			continue
		}
		b.desc.Joins = append(b.desc.Joins, j.desc.Clone())
	}
	return b
}

// WithRelation nests relations of the builder's model by name.
func (b *Builder) WithRelation(names ...string) *Builder {
	for _, name := range names {
		j, err := b.model.Relation(name)
		if err != nil {
			b.setErr(err)
			continue
		}
		b.desc.Joins = append(b.desc.Joins, j.desc)
	}
	return b
}

// Collect adds columns to select. Without any, the model's declared
// columns are selected.
func (b *Builder) Collect(cols ...string) *Builder {
	b.desc.Fields = append(b.desc.Fields, cols...)
	return b
}

// Where merges filter maps into the query. Later maps win on the same
// column.
func (b *Builder) Where(filters ...filter.Map) *Builder {
	b.desc.Where = b.desc.Where.Merge(filters...)
	return b
}

// Order appends ORDER BY terms such as "name" or "created DESC". Bare
// column names are qualified with the model's table.
func (b *Builder) Order(terms ...string) *Builder {
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		b.desc.Order = append(b.desc.Order, qualify(b.desc.Table, t))
	}
	return b
}

func qualify(table, term string) string {
	head, _, _ := strings.Cut(term, " ")
	if strings.ContainsAny(head, ".()") {
		return term
	}
	return table + "." + term
}

// Limit caps the number of rows. Negative limits fail at compile time.
func (b *Builder) Limit(n int) *Builder {
	b.desc.Limit = &n
	return b
}

// Count switches the query to counting rows.
func (b *Builder) Count() *Builder {
	b.desc.Count = true
	return b
}

// Using runs the query on q instead of the registry executor, for example
// a Transaction.
func (b *Builder) Using(q executor.Querier) *Builder {
	b.q = q
	return b
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// SQL compiles the query.
func (b *Builder) SQL() (string, error) {
	if b.err != nil {
		return "", b.err
	}
	return query.Compile(b.desc, b.reg)
}

// Get compiles and runs the query. Executor failures are reported with
// the SQL attached and returned as *QueryError.
func (b *Builder) Get(ctx context.Context, params executor.Params) ([]executor.Row, error) {
	sql, err := b.SQL()
	if err != nil {
		return nil, err
	}
	q := b.q
	if q == nil {
		q = b.reg.db
	}
	rows, err := q.Query(ctx, sql, params)
	if err != nil {
		b.reg.reporter.UnknownError(ctx, err, map[string]any{"table": b.desc.Table, "sql": sql})
		return nil, &QueryError{SQL: sql, Err: err}
	}
	return rows, nil
}

// GetOne runs the query limited to one row and returns it, or nil when
// nothing matches. The builder itself is left unchanged.
func (b *Builder) GetOne(ctx context.Context, params executor.Params) (executor.Row, error) {
	rows, err := b.clone().Limit(1).Get(ctx, params)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// CountRows runs the query in count mode and returns the count.
func (b *Builder) CountRows(ctx context.Context, params executor.Params) (int64, error) {
	rows, err := b.clone().Count().Get(ctx, params)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return toInt64(rows[0]["count"])
}

func (b *Builder) clone() *Builder {
	c := *b
	c.desc = b.desc.Clone()
	return &c
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, errors.New("pgnest: count column missing")
	}
	return 0, fmt.Errorf("pgnest: unexpected count type %T", v)
}
