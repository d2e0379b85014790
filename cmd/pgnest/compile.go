package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/realityu/pgnest"
	"github.com/realityu/pgnest/internal/cli"
	"github.com/realityu/pgnest/pkg/filter"
	"github.com/realityu/pgnest/pkg/schema"
)

// builderFlags shape an ad hoc query when the target is a model.
type builderFlags struct {
	with    []string
	collect []string
	where   []string
	order   []string
	limit   int
	count   bool
}

func (f *builderFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringSliceVar(&f.with, "with", nil, "relations to join (model targets only)")
	fl.StringSliceVar(&f.collect, "collect", nil, "columns to select (model targets only)")
	fl.StringArrayVar(&f.where, "where", nil, "column=filter, e.g. name=name or 'age=[\">\", [18]]'")
	fl.StringSliceVar(&f.order, "order", nil, "order terms")
	fl.IntVar(&f.limit, "limit", -1, "row limit")
	fl.BoolVar(&f.count, "count", false, "count rows instead of selecting them")
}

// builderFor resolves target as a named query first and a model second.
func builderFor(s *schema.Schema, r *pgnest.Registry, target string, f builderFlags) (*pgnest.Builder, error) {
	var b *pgnest.Builder
	if q, ok := s.Query(target); ok {
		var err error
		if b, err = q.Builder(r); err != nil {
			return nil, err
		}
	} else {
		m, err := r.Model(target)
		if err != nil {
			return nil, fmt.Errorf("%q is neither a query (%s) nor a model (%s)", target,
				strings.Join(s.QueryNames(), ", "), strings.Join(r.Names(), ", "))
		}
		b = m.WithRelation(f.with...).Collect(f.collect...)
	}

	where, err := parseWhere(f.where)
	if err != nil {
		return nil, err
	}
	b.Where(where).Order(f.order...)
	if f.limit >= 0 {
		b.Limit(f.limit)
	}
	if f.count {
		b.Count()
	}
	return b, b.Err()
}

// parseWhere turns column=filter pairs into a filter map in flag order.
func parseWhere(pairs []string) (filter.Map, error) {
	var where filter.Map
	for _, pair := range pairs {
		values, err := cli.ParseParams("", []string{pair})
		if err != nil {
			return filter.Map{}, fmt.Errorf("--where: %w", err)
		}
		for col, v := range values {
			f, err := filter.Parse(v)
			if err != nil {
				return filter.Map{}, fmt.Errorf("--where %s: %w", col, err)
			}
			where = where.And(col, f)
		}
	}
	return where, nil
}

var compileFlags builderFlags
var compileSchema string

var compileCmd = &cobra.Command{
	Use:   "compile <query|model>",
	Short: "Print the SQL for a named query or a model",
	Long: `Compile a named query from the schema file, or an ad hoc query over a
model, and print the SQL. Placeholders are left in ${name} form.`,
	Example: `  # Compile a named query
  pgnest compile userWithPosts

  # Compile an ad hoc query
  pgnest compile user --with posts --where name=name --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyOverrides("", compileSchema)

		s, err := cfg.LoadSchema()
		if err != nil {
			return err
		}
		r := pgnest.NewRegistry(nil)
		if err := s.Register(r); err != nil {
			return cli.SchemaParseError("registering models", err)
		}

		b, err := builderFor(s, r, args[0], compileFlags)
		if err != nil {
			return cli.QueryError("building query", err)
		}
		sql, err := b.SQL()
		if err != nil {
			return cli.QueryError("compiling query", err)
		}
		fmt.Println(sql)

		if !quiet {
			if params := placeholders(sql); len(params) > 0 {
				fmt.Printf("-- params: %s\n", strings.Join(params, ", "))
			}
		}
		return nil
	},
}

func init() {
	compileFlags.register(compileCmd)
	compileCmd.Flags().StringVar(&compileSchema, "schema", "", "path to schema file")
}

// placeholders lists the parameter names a statement binds, sorted.
func placeholders(sql string) []string {
	seen := map[string]bool{}
	for rest := sql; ; {
		i := strings.Index(rest, "${")
		if i < 0 {
			break
		}
		rest = rest[i+2:]
		j := strings.IndexByte(rest, '}')
		if j < 0 {
			break
		}
		name := rest[:j]
		if k := strings.IndexAny(name, ":."); k >= 0 {
			name = name[:k]
		}
		seen[name] = true
		rest = rest[j+1:]
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
