package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/realityu/pgnest/internal/cli"
)

var (
	queryFlags  builderFlags
	queryDB     string
	querySchema string
	queryParams []string
	queryDoc    string
)

var queryCmd = &cobra.Command{
	Use:   "query <query|model>",
	Short: "Run a query and print the nested JSON result",
	Long: `Run a named query, or an ad hoc query over a model, and print the rows
as JSON. Parameters are given with --param key=value or as a YAML or JSON
document with --params (prefix a path with @ to read a file).`,
	Example: `  # Run a named query
  pgnest query userWithPosts --param name=Ann

  # Parameters from a file
  pgnest query countPosts --params @params.yaml

  # Ad hoc query over a model
  pgnest query user --with posts --limit 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyOverrides(queryDB, querySchema)

		params, err := cli.ParseParams(queryDoc, queryParams)
		if err != nil {
			return cli.ConfigError("invalid parameters", err)
		}

		ctx := context.Background()
		db, closeDB, err := cfg.OpenDB(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		s, r, err := cfg.LoadRegistry(db, cfg.NewReporter(os.Stderr))
		if err != nil {
			return err
		}

		b, err := builderFor(s, r, args[0], queryFlags)
		if err != nil {
			return cli.QueryError("building query", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if b.Descriptor().Count {
			n, err := b.CountRows(ctx, params)
			if err != nil {
				return cli.QueryError("running query", err)
			}
			return enc.Encode(map[string]int64{"count": n})
		}

		if b.Descriptor().Limit == nil && cfg.Query.Limit > 0 {
			b.Limit(cfg.Query.Limit)
		}
		rows, err := b.Get(ctx, params)
		if err != nil {
			return cli.QueryError("running query", err)
		}
		return enc.Encode(rows)
	},
}

func init() {
	queryFlags.register(queryCmd)
	f := queryCmd.Flags()
	f.StringVar(&queryDB, "db", "", "database URL")
	f.StringVar(&querySchema, "schema", "", "path to schema file")
	f.StringArrayVarP(&queryParams, "param", "p", nil, "query parameter as key=value (repeatable)")
	f.StringVar(&queryDoc, "params", "", "query parameters as YAML/JSON, or @file")
}
