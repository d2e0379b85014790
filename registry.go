package pgnest

import (
	"context"
	"fmt"
	"sort"

	"github.com/realityu/pgnest/pkg/executor"
	"github.com/realityu/pgnest/pkg/filter"
	"github.com/realityu/pgnest/pkg/logging"
	"github.com/realityu/pgnest/pkg/query"
)

// Field declares one column of a model.
type Field struct {
	Name string
	Type query.ColumnType
}

// Func is a model-level helper bound at registration. It receives the
// registry so it can reach other models.
type Func func(ctx context.Context, r *Registry, args ...any) (any, error)

// RelationSpec declares a relation by the related model's name, so
// definitions can be written before the related model exists.
type RelationSpec struct {
	Kind  query.Kind
	Model string
	RelationOptions
}

// Definition describes a model before registration.
type Definition struct {
	Name  string
	Table string
	// Fields lists the declared columns in select order. A model without
	// fields selects table.*.
	Fields []Field
	// Identity is the primary key column. Defaults to "id".
	Identity string
	// DefaultFilters is applied to every query started from the model,
	// including when the model is the target of a relation.
	DefaultFilters func() filter.Map
	Relations      []RelationSpec
	// Associate runs after every model is defined, for relations that need
	// code rather than a RelationSpec.
	Associate func(r *Registry, m *Model) error
	Functions map[string]Func
}

// Registry holds the registered models and the executor they run on.
//
// Models are defined and associated during Register; afterwards the
// registry is sealed and safe for concurrent reads.
type Registry struct {
	db       executor.DB
	reporter *logging.Reporter
	batch    int

	models  map[string]*Model
	byTable map[string]*Model
	sealed  bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithReporter sets the reporter query failures and hook panics go to.
func WithReporter(rep *logging.Reporter) RegistryOption {
	return func(r *Registry) { r.reporter = rep }
}

// WithBatchLimit bounds the concurrent statements of FindAll.
func WithBatchLimit(n int) RegistryOption {
	return func(r *Registry) { r.batch = n }
}

// NewRegistry creates an empty registry running statements on db.
func NewRegistry(db executor.DB, opts ...RegistryOption) *Registry {
	r := &Registry{
		db:      db,
		batch:   8,
		models:  make(map[string]*Model),
		byTable: make(map[string]*Model),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.reporter == nil {
		r.reporter = logging.Discard()
	}
	return r
}

// DB returns the executor the registry runs statements on.
func (r *Registry) DB() executor.DB { return r.db }

// Reporter returns the registry's failure reporter.
func (r *Registry) Reporter() *logging.Reporter { return r.reporter }

// Define adds one model without relations. Use Register to define a set
// of models and attach their relations in one step.
func (r *Registry) Define(def Definition) (*Model, error) {
	if r.sealed {
		return nil, fmt.Errorf("%w: define %s", ErrRegistrySealed, def.Name)
	}
	if def.Name == "" || def.Table == "" {
		return nil, fmt.Errorf("%w: model needs a name and a table", ErrInvalidDefinition)
	}
	if _, ok := r.models[def.Name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateModel, def.Name)
	}
	if other, ok := r.byTable[def.Table]; ok {
		return nil, fmt.Errorf("%w: table %s already used by %s", ErrDuplicateModel, def.Table, other.name)
	}

	m, err := newModel(r, def)
	if err != nil {
		return nil, err
	}
	r.models[def.Name] = m
	r.byTable[def.Table] = m
	return m, nil
}

// Register defines every model, then attaches declared relations, runs
// Associate hooks and binds functions, then seals the registry. On error
// the models defined by this call are removed again, so a corrected set
// can be registered.
func (r *Registry) Register(defs ...Definition) (err error) {
	if r.sealed {
		return ErrRegistrySealed
	}
	models := make([]*Model, 0, len(defs))
	defer func() {
		if err != nil {
			r.forget(models)
		}
	}()
	for _, def := range defs {
		m, err := r.Define(def)
		if err != nil {
			return err
		}
		models = append(models, m)
	}
	for i, def := range defs {
		m := models[i]
		for _, spec := range def.Relations {
			related, err := r.Model(spec.Model)
			if err != nil {
				return fmt.Errorf("relation %s.%s: %w", m.name, spec.Name, err)
			}
			if err := m.addRelation(spec.Kind, related, spec.RelationOptions); err != nil {
				return err
			}
		}
		if def.Associate != nil {
			if err := def.Associate(r, m); err != nil {
				return fmt.Errorf("associate %s: %w", m.name, err)
			}
		}
		for name, fn := range def.Functions {
			m.functions[name] = fn
		}
	}
	r.sealed = true
	r.reporter.Debug(context.Background(), logging.Record{
		Message: "models registered",
		Source:  "registry",
		Vars:    map[string]any{"models": r.Names()},
	})
	return nil
}

func (r *Registry) forget(models []*Model) {
	for _, m := range models {
		delete(r.models, m.name)
		delete(r.byTable, m.table)
	}
}

// Seal stops further definitions. Register seals automatically.
func (r *Registry) Seal() { r.sealed = true }

// Sealed reports whether registration has completed.
func (r *Registry) Sealed() bool { return r.sealed }

// Model returns a registered model by name.
func (r *Registry) Model(name string) (*Model, error) {
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return m, nil
}

// MustModel is like Model but panics on unknown names.
func (r *Registry) MustModel(name string) *Model {
	m, err := r.Model(name)
	if err != nil {
		panic(err)
	}
	return m
}

// ModelForTable returns the model registered for table.
func (r *Registry) ModelForTable(table string) (*Model, bool) {
	m, ok := r.byTable[table]
	return m, ok
}

// Names returns the registered model names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Columns implements query.Catalog over the registered models.
func (r *Registry) Columns(table string) ([]query.Column, bool) {
	m, ok := r.byTable[table]
	if !ok || len(m.fields) == 0 {
		return nil, false
	}
	cols := make([]query.Column, len(m.fields))
	for i, f := range m.fields {
		cols[i] = query.Column{Name: f.Name, Type: f.Type}
	}
	return cols, true
}

// Transaction returns a new transaction in the open state. Statements run
// on the plain executor until Begin is called.
func (r *Registry) Transaction() *Transaction {
	return newTransaction(r.db, r.reporter)
}

// Begin returns a transaction that has already begun.
func (r *Registry) Begin(ctx context.Context) (*Transaction, error) {
	tx := r.Transaction()
	if err := tx.Begin(ctx); err != nil {
		return nil, err
	}
	return tx, nil
}

// InTransaction runs fn inside a transaction. It commits when fn returns
// nil and rolls back with fn's error otherwise.
func (r *Registry) InTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx, err); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}
