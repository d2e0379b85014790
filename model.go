package pgnest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/realityu/pgnest/internal/sqlgen/sqldsl"
	"github.com/realityu/pgnest/pkg/executor"
	"github.com/realityu/pgnest/pkg/filter"
	"github.com/realityu/pgnest/pkg/logging"
	"github.com/realityu/pgnest/pkg/query"
)

// Hook is called after a durable create, save or delete.
type Hook func(ctx context.Context, inst *Instance)

// RelationOptions configures one relation.
//
// ForeignKey is the key on the related table (or, for through relations,
// the related table's key matched by the pivot). MyKey is this model's key
// the relation is matched on. Through relations also name the pivot table
// and both pivot keys.
type RelationOptions struct {
	Name       string
	ForeignKey string
	MyKey      string

	ThroughTable    string
	ForeignPivotKey string
	MyPivotKey      string
	PivotFilter     filter.Map

	// Filter is merged over the related model's default filters.
	Filter filter.Map
	// Join names relations of the related model to nest inside this one.
	Join []string
}

type relation struct {
	kind    query.Kind
	related *Model
	opts    RelationOptions
}

// Model is a registered table with its columns, default filters,
// relations and hooks. Everything except the hook lists is fixed once the
// registry is sealed.
type Model struct {
	reg      *Registry
	name     string
	table    string
	identity string
	fields   []Field
	types    map[string]query.ColumnType
	defaults func() filter.Map

	relations map[string]*relation
	relOrder  []string
	functions map[string]Func

	hookMu      sync.RWMutex
	afterCreate []Hook
	afterSave   []Hook
	afterDelete []Hook
}

func newModel(r *Registry, def Definition) (*Model, error) {
	m := &Model{
		reg:       r,
		name:      def.Name,
		table:     def.Table,
		identity:  def.Identity,
		fields:    slices.Clone(def.Fields),
		types:     make(map[string]query.ColumnType, len(def.Fields)),
		defaults:  def.DefaultFilters,
		relations: make(map[string]*relation),
		functions: make(map[string]Func),
	}
	if m.identity == "" {
		m.identity = "id"
	}
	for _, f := range def.Fields {
		if f.Name == "" || !f.Type.Valid() {
			return nil, fmt.Errorf("%w: field %q of %s has type %q", ErrInvalidDefinition, f.Name, def.Name, f.Type)
		}
		if _, dup := m.types[f.Name]; dup {
			return nil, fmt.Errorf("%w: field %q declared twice on %s", ErrInvalidDefinition, f.Name, def.Name)
		}
		m.types[f.Name] = f.Type
	}
	return m, nil
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Table returns the backing table.
func (m *Model) Table() string { return m.table }

// Identity returns the primary key column.
func (m *Model) Identity() string { return m.identity }

// Fields returns the declared columns in order.
func (m *Model) Fields() []Field { return slices.Clone(m.fields) }

// Registry returns the registry the model belongs to.
func (m *Model) Registry() *Registry { return m.reg }

// ColumnType returns the declared type of col. Models without declared
// fields accept every column as a string.
func (m *Model) ColumnType(col string) (query.ColumnType, bool) {
	if len(m.fields) == 0 {
		return query.String, true
	}
	t, ok := m.types[col]
	return t, ok
}

// DefaultFilters evaluates the model's default filters.
func (m *Model) DefaultFilters() filter.Map {
	if m.defaults == nil {
		return filter.Map{}
	}
	return m.defaults()
}

// AddToOne declares a relation yielding at most one related row as an object.
func (m *Model) AddToOne(related *Model, opts RelationOptions) error {
	return m.addRelation(query.HasOne, related, opts)
}

// AddToMany declares a relation yielding an array of related rows.
func (m *Model) AddToMany(related *Model, opts RelationOptions) error {
	return m.addRelation(query.HasMany, related, opts)
}

// AddToOneThrough declares a to-one relation through a pivot table.
func (m *Model) AddToOneThrough(related *Model, opts RelationOptions) error {
	return m.addRelation(query.HasOneThrough, related, opts)
}

// AddToManyThrough declares a to-many relation through a pivot table.
func (m *Model) AddToManyThrough(related *Model, opts RelationOptions) error {
	return m.addRelation(query.HasManyThrough, related, opts)
}

func (m *Model) addRelation(kind query.Kind, related *Model, opts RelationOptions) error {
	if m.reg.sealed {
		return fmt.Errorf("%w: relation %s.%s", ErrRegistrySealed, m.name, opts.Name)
	}
	invalid := func(what string) error {
		return fmt.Errorf("%w: %s relation %s.%s %s", ErrInvalidDefinition, kind, m.name, opts.Name, what)
	}
	switch {
	case related == nil:
		return invalid("has no related model")
	case related.reg != m.reg:
		return invalid("relates to a model of another registry")
	case opts.Name == "":
		return invalid("has no name")
	case opts.ForeignKey == "" || opts.MyKey == "":
		return invalid("needs foreignKey and myKey")
	}
	if kind.Through() && (opts.ThroughTable == "" || opts.ForeignPivotKey == "" || opts.MyPivotKey == "") {
		return invalid("needs throughTable, foreignPivotKey and myPivotKey")
	}
	if _, dup := m.relations[opts.Name]; dup {
		return invalid("is declared twice")
	}
	opts.Join = slices.Clone(opts.Join)
	m.relations[opts.Name] = &relation{kind: kind, related: related, opts: opts}
	m.relOrder = append(m.relOrder, opts.Name)
	return nil
}

// Relations returns the declared relation names in declaration order.
func (m *Model) Relations() []string { return slices.Clone(m.relOrder) }

// Relation returns a fresh builder for the named relation, with the
// related model's default filters, the relation filter and any nested
// joins applied. Each call returns an independent copy.
func (m *Model) Relation(name string) (*Builder, error) {
	rel, ok := m.relations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, m.name, name)
	}
	d, err := m.relationDescriptor(name, nil)
	if err != nil {
		return nil, err
	}
	return &Builder{reg: m.reg, model: rel.related, desc: d}, nil
}

// MustRelation is like Relation but panics on error.
func (m *Model) MustRelation(name string) *Builder {
	b, err := m.Relation(name)
	if err != nil {
		panic(err)
	}
	return b
}

func (m *Model) relationDescriptor(name string, path []string) (query.Descriptor, error) {
	rel, ok := m.relations[name]
	if !ok {
		return query.Descriptor{}, fmt.Errorf("%w: %s.%s", ErrUnknownRelation, m.name, name)
	}
	key := m.name + "." + name
	if slices.Contains(path, key) {
		return query.Descriptor{}, fmt.Errorf("%w: %s -> %s", ErrRelationCycle, strings.Join(path, " -> "), key)
	}
	path = append(path[:len(path):len(path)], key)

	o := rel.opts
	d := query.Descriptor{
		Kind:            rel.kind,
		Name:            o.Name,
		Table:           rel.related.table,
		Where:           rel.related.DefaultFilters().Merge(o.Filter),
		ForeignKey:      o.ForeignKey,
		MyKey:           o.MyKey,
		ThroughTable:    o.ThroughTable,
		ForeignPivotKey: o.ForeignPivotKey,
		MyPivotKey:      o.MyPivotKey,
		PivotFilter:     o.PivotFilter,
	}
	for _, j := range o.Join {
		jd, err := rel.related.relationDescriptor(j, path)
		if err != nil {
			return query.Descriptor{}, err
		}
		d.Joins = append(d.Joins, jd)
	}
	return d, nil
}

// OnAfterCreate registers a hook fired after Create succeeds.
func (m *Model) OnAfterCreate(h Hook) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.afterCreate = append(m.afterCreate, h)
}

// OnAfterSave registers a hook fired after Instance.Save succeeds.
func (m *Model) OnAfterSave(h Hook) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.afterSave = append(m.afterSave, h)
}

// OnAfterDelete registers a hook fired after Instance.Delete succeeds.
func (m *Model) OnAfterDelete(h Hook) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.afterDelete = append(m.afterDelete, h)
}

type hookKind int

const (
	hookCreate hookKind = iota
	hookSave
	hookDelete
)

func (k hookKind) String() string {
	switch k {
	case hookCreate:
		return "afterCreate"
	case hookSave:
		return "afterSave"
	default:
		return "afterDelete"
	}
}

// fire schedules the hooks of kind for inst: after commit when tx is
// non-nil, immediately otherwise.
func (m *Model) fire(ctx context.Context, kind hookKind, inst *Instance, tx *Transaction) {
	if tx != nil {
		tx.AfterCommit(func(ctx context.Context) { m.runHooks(ctx, kind, inst) })
		return
	}
	m.runHooks(ctx, kind, inst)
}

func (m *Model) runHooks(ctx context.Context, kind hookKind, inst *Instance) {
	m.hookMu.RLock()
	var hooks []Hook
	switch kind {
	case hookCreate:
		hooks = slices.Clone(m.afterCreate)
	case hookSave:
		hooks = slices.Clone(m.afterSave)
	case hookDelete:
		hooks = slices.Clone(m.afterDelete)
	}
	m.hookMu.RUnlock()

	for _, h := range hooks {
		safeCall(ctx, m.reg.reporter, "model."+m.name+"."+kind.String(), func() { h(ctx, inst) })
	}
}

// safeCall runs fn, reporting a panic instead of propagating it.
func safeCall(ctx context.Context, rep *logging.Reporter, source string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			rep.Error(ctx, logging.Record{
				Message: "callback panicked",
				Source:  source,
				Err:     fmt.Errorf("panic: %v", p),
			})
		}
	}()
	fn()
}

// Query starts a builder on the model with its default filters applied.
func (m *Model) Query() *Builder {
	return &Builder{
		reg:   m.reg,
		model: m,
		desc:  query.Descriptor{Table: m.table, Where: m.DefaultFilters()},
	}
}

// With starts a query nesting the given relations.
func (m *Model) With(joins ...*Builder) *Builder { return m.Query().With(joins...) }

// WithRelation starts a query nesting the named relations.
func (m *Model) WithRelation(names ...string) *Builder { return m.Query().WithRelation(names...) }

// Collect starts a query selecting only cols.
func (m *Model) Collect(cols ...string) *Builder { return m.Query().Collect(cols...) }

// Where starts a query with extra filters.
func (m *Model) Where(filters ...filter.Map) *Builder { return m.Query().Where(filters...) }

// Order starts an ordered query.
func (m *Model) Order(terms ...string) *Builder { return m.Query().Order(terms...) }

// Limit starts a limited query.
func (m *Model) Limit(n int) *Builder { return m.Query().Limit(n) }

// Count starts a counting query.
func (m *Model) Count() *Builder { return m.Query().Count() }

// Get runs the default query of the model.
func (m *Model) Get(ctx context.Context, params executor.Params) ([]executor.Row, error) {
	return m.Query().Get(ctx, params)
}

// GetOne returns the first row of the default query, or nil.
func (m *Model) GetOne(ctx context.Context, params executor.Params) (executor.Row, error) {
	return m.Query().GetOne(ctx, params)
}

// NewInstance returns an unsaved instance holding the declared columns of
// values. Other keys are ignored.
func (m *Model) NewInstance(values map[string]any) *Instance {
	inst := &Instance{model: m, values: make(map[string]any, len(values))}
	for k, v := range values {
		if _, ok := m.ColumnType(k); ok {
			inst.values[k] = v
		}
	}
	return inst
}

// Create inserts one row from the declared columns present in values and
// returns it as stored, defaults included. After-create hooks fire after
// tx commits, or immediately when tx is nil.
func (m *Model) Create(ctx context.Context, values map[string]any, tx *Transaction) (*Instance, error) {
	inst := m.NewInstance(values)
	stmt, params, err := m.insert(inst)
	if err != nil {
		return nil, err
	}
	rows, err := m.run(ctx, tx, stmt, params)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		inst.load(rows[0])
	}
	m.fire(ctx, hookCreate, inst, tx)
	return inst, nil
}

// Find loads one row by identity. It returns nil when no row matches.
func (m *Model) Find(ctx context.Context, id any) (*Instance, error) {
	stmt, params := m.selectByID(id)
	rows, err := m.run(ctx, nil, stmt, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	inst := &Instance{model: m, values: make(map[string]any)}
	inst.load(rows[0])
	return inst, nil
}

// FindAll loads several rows by identity concurrently. The result is
// aligned with ids; missing rows are nil.
func (m *Model) FindAll(ctx context.Context, ids ...any) ([]*Instance, error) {
	stmts := make([]executor.Statement, len(ids))
	for i, id := range ids {
		stmt, params := m.selectByID(id)
		stmts[i] = executor.Statement{SQL: stmt, Params: params}
	}
	results, err := executor.Batch(ctx, m.reg.db, stmts, m.reg.batch)
	if err != nil {
		m.reg.reporter.UnknownError(ctx, err, map[string]any{"model": m.name, "ids": len(ids)})
		return nil, err
	}
	out := make([]*Instance, len(ids))
	for i, rows := range results {
		if len(rows) == 0 {
			continue
		}
		out[i] = &Instance{model: m, values: make(map[string]any)}
		out[i].load(rows[0])
	}
	return out, nil
}

// Call runs a function bound at registration.
func (m *Model) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, ok := m.functions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownFunction, m.name, name)
	}
	return fn(ctx, m.reg, args...)
}

func (m *Model) selectByID(id any) (string, executor.Params) {
	stmt := sqldsl.SelectStmt{
		Columns: []sqldsl.Expr{sqldsl.Raw("*")},
		From:    sqldsl.TableRef{Name: m.table},
		Where:   []sqldsl.Expr{sqldsl.Eq(sqldsl.Raw(m.identity), sqldsl.Placeholder{Name: m.identity})},
	}
	return sqldsl.Terminate(stmt), executor.Params{m.identity: id}
}

// insert builds the INSERT for the set columns of inst in declaration order.
func (m *Model) insert(inst *Instance) (string, executor.Params, error) {
	stmt := sqldsl.InsertStmt{Table: m.table, Returning: []string{"*"}}
	params := executor.Params{}
	for _, col := range inst.setColumns() {
		stmt.Columns = append(stmt.Columns, col)
		stmt.Values = append(stmt.Values, m.placeholder(col))
		v, err := inst.bindValue(col)
		if err != nil {
			return "", nil, err
		}
		params[col] = v
	}
	return sqldsl.Terminate(stmt), params, nil
}

// placeholder binds json columns as JSON text and everything else as is.
func (m *Model) placeholder(col string) sqldsl.Placeholder {
	ph := sqldsl.Placeholder{Name: col}
	if t, _ := m.ColumnType(col); t == query.JSON {
		ph.Kind = sqldsl.JSONParam
	}
	return ph
}

// run executes a statement on tx when given, on the registry executor
// otherwise, reporting failures with the statement attached.
func (m *Model) run(ctx context.Context, tx *Transaction, stmt string, params executor.Params) ([]executor.Row, error) {
	var q executor.Querier = m.reg.db
	if tx != nil {
		q = tx
	}
	rows, err := q.Query(ctx, stmt, params)
	if err != nil {
		m.reg.reporter.UnknownError(ctx, err, map[string]any{"model": m.name, "sql": stmt})
		return nil, &QueryError{SQL: stmt, Err: err}
	}
	return rows, nil
}
