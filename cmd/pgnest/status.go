package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	statusDB     string
	statusSchema string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and database status",
	Long:  `Show the config file in use, the schema file and whether the database is reachable.`,
	Example: `  # Check status
  pgnest status --db postgres://localhost/mydb`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyOverrides(statusDB, statusSchema)
		return runStatus()
	},
}

func init() {
	f := statusCmd.Flags()
	f.StringVar(&statusDB, "db", "", "database URL")
	f.StringVar(&statusSchema, "schema", "", "path to schema file")
}

func runStatus() error {
	if configPath != "" {
		fmt.Printf("Config file:  %s\n", configPath)
	} else {
		fmt.Println("Config file:  (none, using defaults)")
	}

	if _, err := os.Stat(cfg.Schema); err != nil {
		fmt.Printf("Schema file:  missing (%s)\n", cfg.Schema)
	} else if s, err := cfg.LoadSchema(); err != nil {
		fmt.Printf("Schema file:  invalid (%v)\n", err)
	} else {
		fmt.Printf("Schema file:  %s (%d models, %d queries)\n", cfg.Schema, len(s.ModelNames()), len(s.QueryNames()))
	}

	if !cfg.HasDatabase() {
		fmt.Println("Database:     not configured")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, closeDB, err := cfg.OpenDB(ctx)
	if err != nil {
		fmt.Printf("Database:     unreachable (%v)\n", err)
		return nil
	}
	defer closeDB()

	if err := db.Ping(ctx); err != nil {
		fmt.Printf("Database:     unreachable (%v)\n", err)
		return nil
	}
	driver := cfg.Database.Driver
	if driver == "" {
		driver = "pgxpool"
	}
	fmt.Printf("Database:     reachable (driver %s)\n", driver)
	return nil
}
