package pgnest

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/realityu/pgnest/internal/sqlgen/sqldsl"
	"github.com/realityu/pgnest/pkg/executor"
	"github.com/realityu/pgnest/pkg/query"
)

// Instance is one row of a model. A column is either unset, set to a
// value, or set to NULL; only set columns are written by Save.
//
// An Instance is not safe for concurrent mutation.
type Instance struct {
	model  *Model
	values map[string]any
}

// Model returns the instance's model.
func (i *Instance) Model() *Model { return i.model }

// Get returns the value of col and whether it is set. NULL columns are set
// with a nil value.
func (i *Instance) Get(col string) (any, bool) {
	v, ok := i.values[col]
	return v, ok
}

// Set assigns v to col. A nil v sets the column to NULL.
func (i *Instance) Set(col string, v any) error {
	if _, ok := i.model.ColumnType(col); !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, i.model.name, col)
	}
	i.values[col] = v
	return nil
}

// SetNull sets col to NULL.
func (i *Instance) SetNull(col string) error { return i.Set(col, nil) }

// Unset removes col so Save leaves it untouched.
func (i *Instance) Unset(col string) { delete(i.values, col) }

// IsSet reports whether col holds a value or NULL.
func (i *Instance) IsSet(col string) bool {
	_, ok := i.values[col]
	return ok
}

// ID returns the identity value. It is false when the identity is unset
// or NULL.
func (i *Instance) ID() (any, bool) {
	v, ok := i.values[i.model.identity]
	return v, ok && v != nil
}

// Naked returns a copy of the set columns.
func (i *Instance) Naked() map[string]any { return maps.Clone(i.values) }

// Save inserts the instance when it has no identity and updates its set
// columns otherwise. An insert reloads the stored row, defaults included.
// After-save hooks fire after tx commits, or immediately when tx is nil.
func (i *Instance) Save(ctx context.Context, tx *Transaction) error {
	m := i.model
	id, hasID := i.ID()

	var (
		stmt   string
		params executor.Params
	)
	var err error
	if hasID {
		stmt, params, err = i.update(id)
	} else {
		stmt, params, err = m.insert(i)
	}
	if err != nil {
		return err
	}
	rows, err := m.run(ctx, tx, stmt, params)
	if err != nil {
		return err
	}
	if !hasID && len(rows) > 0 {
		i.load(rows[0])
	}
	m.fire(ctx, hookSave, i, tx)
	return nil
}

// Delete removes the row by identity. After-delete hooks fire after tx
// commits, or immediately when tx is nil.
func (i *Instance) Delete(ctx context.Context, tx *Transaction) error {
	m := i.model
	id, ok := i.ID()
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingIdentity, m.name)
	}
	stmt := sqldsl.DeleteStmt{
		Table: m.table,
		Where: []sqldsl.Expr{sqldsl.Eq(sqldsl.Raw(m.identity), sqldsl.Placeholder{Name: m.identity})},
	}
	if _, err := m.run(ctx, tx, sqldsl.Terminate(stmt), executor.Params{m.identity: id}); err != nil {
		return err
	}
	m.fire(ctx, hookDelete, i, tx)
	return nil
}

// update builds an UPDATE of every set column keyed by identity.
func (i *Instance) update(id any) (string, executor.Params, error) {
	m := i.model
	stmt := sqldsl.UpdateStmt{
		Table: m.table,
		Where: []sqldsl.Expr{sqldsl.Eq(sqldsl.Raw(m.identity), sqldsl.Placeholder{Name: m.identity})},
	}
	params := executor.Params{m.identity: id}
	for _, col := range i.setColumns() {
		stmt.Set = append(stmt.Set, sqldsl.Assignment{Column: col, Value: m.placeholder(col)})
		v, err := i.bindValue(col)
		if err != nil {
			return "", nil, err
		}
		params[col] = v
	}
	return sqldsl.Terminate(stmt), params, nil
}

// setColumns lists the set columns in declaration order, or sorted by
// name for models without declared fields.
func (i *Instance) setColumns() []string {
	m := i.model
	if len(m.fields) == 0 {
		return slices.Sorted(maps.Keys(i.values))
	}
	cols := make([]string, 0, len(i.values))
	for _, f := range m.fields {
		if _, ok := i.values[f.Name]; ok {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// bindValue prepares col's value for binding. Slices and maps stored in
// non-json columns are sent as JSON text.
func (i *Instance) bindValue(col string) (any, error) {
	v := i.values[col]
	if t, _ := i.model.ColumnType(col); t == query.JSON || v == nil {
		return v, nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		if _, raw := v.([]byte); raw {
			return v, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %w", ErrInvalidValue, i.model.name, col, err)
		}
		return string(b), nil
	}
	return v, nil
}

// load replaces the instance values with the declared columns of row.
func (i *Instance) load(row executor.Row) {
	for k, v := range row {
		if _, ok := i.model.ColumnType(k); ok {
			i.values[k] = v
		}
	}
}
