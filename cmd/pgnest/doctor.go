package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/realityu/pgnest/internal/cli"
	"github.com/realityu/pgnest/internal/doctor"
	"github.com/realityu/pgnest/pkg/executor"
)

var (
	doctorDB      string
	doctorSchema  string
	doctorVerbose bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long:  `Check the schema file and that the tables and columns it declares exist in the database.`,
	Example: `  # Run health checks
  pgnest doctor --db postgres://localhost/mydb

  # Run with verbose output
  pgnest doctor --db postgres://localhost/mydb --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyOverrides(doctorDB, doctorSchema)
		return runDoctor(resolveBool(doctorVerbose, cfg.Doctor.Verbose))
	},
}

func init() {
	f := doctorCmd.Flags()
	f.StringVar(&doctorDB, "db", "", "database URL")
	f.StringVar(&doctorSchema, "schema", "", "path to schema file")
	f.BoolVar(&doctorVerbose, "verbose", false, "show detailed output")
}

func runDoctor(verboseFlag bool) error {
	ctx := context.Background()

	var db executor.Querier
	if cfg.HasDatabase() {
		conn, closeDB, err := cfg.OpenDB(ctx)
		if err != nil {
			return err
		}
		defer closeDB()
		db = conn
	}

	if !quiet {
		fmt.Printf("pgnest doctor: checking %s\n", cfg.Schema)
	}

	d := doctor.New(db, cfg.Schema)
	report, err := d.Run(ctx)
	if err != nil {
		return cli.GeneralError("running doctor", err)
	}

	report.Print(os.Stdout, verboseFlag)

	if err := report.Err(); err != nil {
		return cli.GeneralError("doctor", err)
	}

	return nil
}
