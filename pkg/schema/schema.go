// Package schema loads model and named query definitions from YAML.
//
// A schema file lists models and, optionally, named queries:
//
//	models:
//	  - name: user
//	    table: user
//	    fields:
//	      id: bigint
//	      name: string
//	    defaultFilters:
//	      deleted: [false]
//	    relations:
//	      - name: posts
//	        kind: many
//	        model: post
//	        foreignKey: user_id
//	        myKey: id
//	        join: comments
//	queries:
//	  - name: userByName
//	    model: user
//	    with: [posts]
//	    where:
//	      name: name
//
// Mappings whose order matters (fields and every filter map) keep the
// order they are written in. Filter values use the shapes accepted by
// filter.Parse: a bare string names a bound parameter, a one-element
// list is a literal, a two-element list is an operator and its operand.
package schema

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/realityu/pgnest"
	"github.com/realityu/pgnest/pkg/filter"
	"github.com/realityu/pgnest/pkg/query"
)

// ErrInvalidSchema is returned for schema files that do not describe a
// valid set of models and queries.
var ErrInvalidSchema = errors.New("pgnest: invalid schema")

// IsInvalidSchemaErr returns true if err is or wraps ErrInvalidSchema.
func IsInvalidSchemaErr(err error) bool {
	return errors.Is(err, ErrInvalidSchema)
}

// Schema is a parsed schema file.
type Schema struct {
	Definitions []pgnest.Definition
	queries     map[string]Query
	order       []string
}

// Query is a named, reusable query over a registered model.
type Query struct {
	Name    string
	Model   string
	With    []string
	Collect []string
	Where   filter.Map
	Order   []string
	Limit   *int
	Count   bool
}

// Builder starts a builder for q against r.
func (q Query) Builder(r *pgnest.Registry) (*pgnest.Builder, error) {
	m, err := r.Model(q.Model)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Name, err)
	}
	b := m.WithRelation(q.With...).Collect(q.Collect...).Where(q.Where).Order(q.Order...)
	if q.Limit != nil {
		b.Limit(*q.Limit)
	}
	if q.Count {
		b.Count()
	}
	return b, b.Err()
}

// Load reads and parses the schema file at path.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse parses schema YAML.
func Parse(data []byte) (*Schema, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	s := &Schema{queries: make(map[string]Query)}
	for _, rm := range raw.Models {
		def, err := rm.definition()
		if err != nil {
			return nil, err
		}
		s.Definitions = append(s.Definitions, def)
	}
	for _, rq := range raw.Queries {
		q, err := rq.query()
		if err != nil {
			return nil, err
		}
		if _, dup := s.queries[q.Name]; dup {
			return nil, fmt.Errorf("%w: query %q declared twice", ErrInvalidSchema, q.Name)
		}
		s.queries[q.Name] = q
		s.order = append(s.order, q.Name)
	}
	return s, nil
}

// Register registers every model of s with r and checks that each named
// query refers to a registered model and relations.
func (s *Schema) Register(r *pgnest.Registry) error {
	if err := r.Register(s.Definitions...); err != nil {
		return err
	}
	for _, name := range s.order {
		if _, err := s.queries[name].Builder(r); err != nil {
			return err
		}
	}
	return nil
}

// Query returns a named query.
func (s *Schema) Query(name string) (Query, bool) {
	q, ok := s.queries[name]
	return q, ok
}

// QueryNames returns the query names in file order.
func (s *Schema) QueryNames() []string {
	return append([]string(nil), s.order...)
}

// ModelNames returns the model names in sorted order.
func (s *Schema) ModelNames() []string {
	names := make([]string, len(s.Definitions))
	for i, d := range s.Definitions {
		names[i] = d.Name
	}
	sort.Strings(names)
	return names
}

type rawFile struct {
	Models  []rawModel `yaml:"models"`
	Queries []rawQuery `yaml:"queries"`
}

type rawModel struct {
	Name           string        `yaml:"name"`
	Table          string        `yaml:"table"`
	Identity       string        `yaml:"identity"`
	Fields         orderedMap    `yaml:"fields"`
	DefaultFilters orderedMap    `yaml:"defaultFilters"`
	Relations      []rawRelation `yaml:"relations"`
}

type rawRelation struct {
	Name            string     `yaml:"name"`
	Kind            string     `yaml:"kind"`
	Model           string     `yaml:"model"`
	ForeignKey      string     `yaml:"foreignKey"`
	MyKey           string     `yaml:"myKey"`
	Through         string     `yaml:"through"`
	ForeignPivotKey string     `yaml:"foreignPivotKey"`
	MyPivotKey      string     `yaml:"myPivotKey"`
	PivotFilter     orderedMap `yaml:"pivotFilter"`
	Filter          orderedMap `yaml:"filter"`
	Join            StringList `yaml:"join"`
}

type rawQuery struct {
	Name    string     `yaml:"name"`
	Model   string     `yaml:"model"`
	With    StringList `yaml:"with"`
	Collect StringList `yaml:"collect"`
	Where   orderedMap `yaml:"where"`
	Order   StringList `yaml:"order"`
	Limit   *int       `yaml:"limit"`
	Count   bool       `yaml:"count"`
}

func (rm rawModel) definition() (pgnest.Definition, error) {
	if rm.Name == "" {
		return pgnest.Definition{}, fmt.Errorf("%w: model without a name", ErrInvalidSchema)
	}
	def := pgnest.Definition{
		Name:     rm.Name,
		Table:    rm.Table,
		Identity: rm.Identity,
	}
	if def.Table == "" {
		def.Table = rm.Name
	}
	for _, e := range rm.Fields {
		typ, ok := e.Value.(string)
		if !ok || !query.ColumnType(typ).Valid() {
			return def, fmt.Errorf("%w: model %s line %d: field %s has type %v", ErrInvalidSchema, rm.Name, e.Line, e.Key, e.Value)
		}
		def.Fields = append(def.Fields, pgnest.Field{Name: e.Key, Type: query.ColumnType(typ)})
	}

	defaults, err := rm.DefaultFilters.filters("model " + rm.Name + " defaultFilters")
	if err != nil {
		return def, err
	}
	if defaults.Len() > 0 {
		def.DefaultFilters = func() filter.Map { return defaults }
	}

	for _, rr := range rm.Relations {
		spec, err := rr.spec(rm.Name)
		if err != nil {
			return def, err
		}
		def.Relations = append(def.Relations, spec)
	}
	return def, nil
}

var relationKinds = map[string]query.Kind{
	"one":         query.HasOne,
	"many":        query.HasMany,
	"oneThrough":  query.HasOneThrough,
	"manyThrough": query.HasManyThrough,
}

func (rr rawRelation) spec(owner string) (pgnest.RelationSpec, error) {
	label := fmt.Sprintf("relation %s.%s", owner, rr.Name)
	kind, ok := relationKinds[rr.Kind]
	if !ok {
		for _, k := range relationKinds {
			if k.String() == rr.Kind {
				kind, ok = k, true
			}
		}
	}
	if !ok {
		return pgnest.RelationSpec{}, fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidSchema, label, rr.Kind)
	}
	where, err := rr.Filter.filters(label + " filter")
	if err != nil {
		return pgnest.RelationSpec{}, err
	}
	pivot, err := rr.PivotFilter.filters(label + " pivotFilter")
	if err != nil {
		return pgnest.RelationSpec{}, err
	}
	return pgnest.RelationSpec{
		Kind:  kind,
		Model: rr.Model,
		RelationOptions: pgnest.RelationOptions{
			Name:            rr.Name,
			ForeignKey:      rr.ForeignKey,
			MyKey:           rr.MyKey,
			ThroughTable:    rr.Through,
			ForeignPivotKey: rr.ForeignPivotKey,
			MyPivotKey:      rr.MyPivotKey,
			PivotFilter:     pivot,
			Filter:          where,
			Join:            rr.Join,
		},
	}, nil
}

func (rq rawQuery) query() (Query, error) {
	if rq.Name == "" || rq.Model == "" {
		return Query{}, fmt.Errorf("%w: query needs a name and a model", ErrInvalidSchema)
	}
	where, err := rq.Where.filters("query " + rq.Name + " where")
	if err != nil {
		return Query{}, err
	}
	if rq.Limit != nil && *rq.Limit < 0 {
		return Query{}, fmt.Errorf("%w: query %s: negative limit", ErrInvalidSchema, rq.Name)
	}
	return Query{
		Name:    rq.Name,
		Model:   rq.Model,
		With:    rq.With,
		Collect: rq.Collect,
		Where:   where,
		Order:   rq.Order,
		Limit:   rq.Limit,
		Count:   rq.Count,
	}, nil
}

// entry is one key of an orderedMap.
type entry struct {
	Key   string
	Value any
	Line  int
}

// orderedMap is a YAML mapping decoded in document order.
type orderedMap []entry

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *orderedMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	out := make(orderedMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		var value any
		if err := v.Decode(&value); err != nil {
			return fmt.Errorf("line %d: %w", v.Line, err)
		}
		out = append(out, entry{Key: k.Value, Value: value, Line: k.Line})
	}
	*m = out
	return nil
}

func (m orderedMap) filters(where string) (filter.Map, error) {
	var out filter.Map
	for _, e := range m {
		f, err := filter.Parse(e.Value)
		if err != nil {
			return filter.Map{}, fmt.Errorf("%w: %s line %d: column %s: %w", ErrInvalidSchema, where, e.Line, e.Key, err)
		}
		out = out.And(e.Key, f)
	}
	return out, nil
}

// StringList is a YAML value that is either one string or a list of them.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{strings.TrimSpace(node.Value)}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list", node.Line)
	}
}
