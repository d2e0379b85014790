// Package query holds the query descriptor tree and the compiler that lowers
// it into a single PostgreSQL statement returning pre-nested JSON results.
package query

import (
	"errors"
	"fmt"

	"github.com/realityu/pgnest/pkg/filter"
)

var (
	// ErrInvalidDescriptor is returned when a descriptor is missing a table,
	// a relation name, or one of the keys its kind requires.
	ErrInvalidDescriptor = errors.New("pgnest: invalid query descriptor")

	// ErrInvalidLimit is returned for negative limits.
	ErrInvalidLimit = errors.New("pgnest: invalid limit")
)

// Kind distinguishes the root select from the four relation shapes.
type Kind int

const (
	Base Kind = iota
	HasOne
	HasMany
	HasOneThrough
	HasManyThrough
)

func (k Kind) String() string {
	switch k {
	case Base:
		return "base"
	case HasOne:
		return "has_one"
	case HasMany:
		return "has_many"
	case HasOneThrough:
		return "has_one_through"
	case HasManyThrough:
		return "has_many_through"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Many reports whether the relation yields an aggregated array.
func (k Kind) Many() bool { return k == HasMany || k == HasManyThrough }

// Through reports whether the relation traverses a pivot table.
func (k Kind) Through() bool { return k == HasOneThrough || k == HasManyThrough }

// Descriptor describes one row set. The root of a query is a Base
// descriptor; every entry of Joins is a relation descriptor.
//
// For HasOne and HasMany the related Table's ForeignKey column is matched
// against the parent's MyKey column. For the Through kinds, ThroughTable is
// joined on ThroughTable.ForeignPivotKey = Table.ForeignKey and the parent
// correlation is ThroughTable.MyPivotKey = parent.MyKey.
type Descriptor struct {
	Kind Kind
	// Name is the output column the relation is projected as.
	Name  string
	Table string
	// Fields is the explicit column list; nil selects the catalog default.
	Fields []string
	Joins  []Descriptor
	Where  filter.Map
	// Order terms are emitted verbatim.
	Order []string
	// Limit is omitted when nil.
	Limit *int
	Count bool

	ForeignKey string
	MyKey      string

	ThroughTable    string
	ForeignPivotKey string
	MyPivotKey      string
	PivotFilter     filter.Map
}

// Clone returns a deep copy whose slices can be appended to independently.
func (d Descriptor) Clone() Descriptor {
	out := d
	if d.Fields != nil {
		out.Fields = append([]string(nil), d.Fields...)
	}
	if d.Order != nil {
		out.Order = append([]string(nil), d.Order...)
	}
	if d.Limit != nil {
		n := *d.Limit
		out.Limit = &n
	}
	if d.Joins != nil {
		out.Joins = make([]Descriptor, len(d.Joins))
		for i, j := range d.Joins {
			out.Joins[i] = j.Clone()
		}
	}
	return out
}

func (d Descriptor) validate(root bool) error {
	if d.Table == "" {
		return fmt.Errorf("%w: empty table", ErrInvalidDescriptor)
	}
	if d.Limit != nil && *d.Limit < 0 {
		return fmt.Errorf("%w: %d on %s", ErrInvalidLimit, *d.Limit, d.Table)
	}
	if root {
		return nil
	}
	if d.Kind == Base {
		return fmt.Errorf("%w: join on %s has no relation kind", ErrInvalidDescriptor, d.Table)
	}
	missing := func(what string) error {
		return fmt.Errorf("%w: %s relation %q on %s missing %s", ErrInvalidDescriptor, d.Kind, d.Name, d.Table, what)
	}
	switch {
	case d.Name == "":
		return missing("name")
	case d.MyKey == "":
		return missing("my key")
	case d.ForeignKey == "":
		return missing("foreign key")
	}
	if d.Kind.Through() {
		switch {
		case d.ThroughTable == "":
			return missing("through table")
		case d.ForeignPivotKey == "":
			return missing("foreign pivot key")
		case d.MyPivotKey == "":
			return missing("my pivot key")
		}
	}
	return nil
}

// ColumnType is the declared storage kind of a model column.
type ColumnType string

const (
	String ColumnType = "string"
	Number ColumnType = "number"
	JSON   ColumnType = "json"
	Bigint ColumnType = "bigint"
)

// Valid reports whether t is one of the known column types.
func (t ColumnType) Valid() bool {
	switch t {
	case String, Number, JSON, Bigint:
		return true
	}
	return false
}

// Column is one declared column.
type Column struct {
	Name string
	Type ColumnType
}

// Catalog resolves the declared columns of a table. Unregistered tables
// return false and compile to table.*.
type Catalog interface {
	Columns(table string) ([]Column, bool)
}

// StaticCatalog is a fixed Catalog keyed by table name.
type StaticCatalog map[string][]Column

// Columns implements Catalog.
func (c StaticCatalog) Columns(table string) ([]Column, bool) {
	cols, ok := c[table]
	return cols, ok
}
