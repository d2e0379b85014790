package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/realityu/pgnest"
	"github.com/realityu/pgnest/internal/cli"
	"github.com/realityu/pgnest/pkg/query"
)

var validateSchema string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the schema file",
	Long: `Parse the schema file, register its models and compile every relation
and named query. Does not connect to the database.`,
	Example: `  # Validate a specific schema file
  pgnest validate --schema models.yaml

  # Validate using config file settings
  pgnest validate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Resolve schema path: flag > config > default
		applyOverrides("", validateSchema)

		if _, err := os.Stat(cfg.Schema); err != nil {
			return cli.SchemaParseError(fmt.Sprintf("schema not found: %s", cfg.Schema), nil)
		}

		s, err := cfg.LoadSchema()
		if err != nil {
			return err
		}
		r := pgnest.NewRegistry(nil)
		if err := s.Register(r); err != nil {
			return cli.SchemaParseError("registering models", err)
		}

		for _, name := range r.Names() {
			m := r.MustModel(name)
			for _, rel := range m.Relations() {
				b, err := m.Relation(rel)
				if err == nil {
					_, err = query.CompileJoin(b.Descriptor(), r)
				}
				if err != nil {
					return cli.SchemaParseError(fmt.Sprintf("relation %s.%s", name, rel), err)
				}
			}
		}
		for _, name := range s.QueryNames() {
			q, _ := s.Query(name)
			b, err := q.Builder(r)
			if err == nil {
				_, err = b.SQL()
			}
			if err != nil {
				return cli.SchemaParseError(fmt.Sprintf("query %s", name), err)
			}
		}

		if !quiet {
			fmt.Printf("Schema is valid. Found %d models:\n", len(r.Names()))
			for _, name := range r.Names() {
				m := r.MustModel(name)
				fmt.Printf("  - %s (table %s, %d fields, %d relations)\n", name, m.Table(), len(m.Fields()), len(m.Relations()))
			}
			if names := s.QueryNames(); len(names) > 0 {
				fmt.Printf("\n%d named queries:\n", len(names))
				for _, name := range names {
					fmt.Printf("  - %s\n", name)
				}
			}
		}

		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateSchema, "schema", "", "path to schema file")
}
